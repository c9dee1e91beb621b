package chat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kcaldas/tradechat/pkg/events"
	"github.com/kcaldas/tradechat/pkg/logging"
	"github.com/kcaldas/tradechat/pkg/protocol"
	"github.com/kcaldas/tradechat/pkg/sse"
	"github.com/kcaldas/tradechat/pkg/turn"
)

const (
	readBufferSize = 32 * 1024
	// maxErrorBody caps how much of a non-2xx response is kept.
	maxErrorBody = 64 * 1024
)

// stream is the read loop of one turn. Everything except cancel runs on the
// goroutine started by Client.Start.
type stream struct {
	client  *Client
	turn    *Turn
	ctx     context.Context
	cancel  context.CancelCauseFunc
	request Request
	handler Handler
	logger  logging.Logger
	started time.Time

	tracker    *turn.Tracker
	classifier *protocol.Classifier
	decoder    *sse.Decoder
	idle       *time.Timer
}

type chunk struct {
	data []byte
	err  error
}

func (s *stream) run(req *http.Request) {
	s.classifier = protocol.NewClassifier()
	s.decoder = sse.NewDecoder(s.client.cfg.MaxFrameSize)
	if d := s.client.cfg.IdleTimeout; d > 0 {
		s.idle = time.AfterFunc(d, func() { s.cancel(errIdleTimeout) })
	}

	_ = s.tracker.Connect()
	s.logger.Info("chat turn started", "session_id", s.request.SessionID)
	events.Emit(s.client.publisher, events.TurnStartedEvent{
		TurnID:    s.turn.id,
		SessionID: s.request.SessionID,
		Message:   s.request.Message,
		StartedAt: s.started,
	})

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		s.abort(err)
		return
	}

	var closeOnce sync.Once
	closeBody := func() {
		closeOnce.Do(func() { _ = resp.Body.Close() })
	}
	defer closeBody()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.fail(transportError(resp.StatusCode, strings.TrimSpace(string(body))))
		return
	}

	chunks := make(chan chunk)
	quit := make(chan struct{})
	defer close(quit)
	go readChunks(resp.Body, chunks, quit)

	for {
		select {
		case <-s.ctx.Done():
			s.finishFromContext()
			return
		case c := <-chunks:
			s.resetIdle()
			if len(c.data) > 0 && s.feed(c.data) {
				return
			}
			if c.err == nil {
				continue
			}
			if errors.Is(c.err, io.EOF) {
				s.endOfStream()
				return
			}
			s.abort(c.err)
			return
		}
	}
}

func readChunks(body io.Reader, out chan<- chunk, quit <-chan struct{}) {
	for {
		buf := make([]byte, readBufferSize)
		n, err := body.Read(buf)
		select {
		case out <- chunk{data: buf[:n], err: err}:
		case <-quit:
			return
		}
		if err != nil {
			return
		}
	}
}

// feed decodes one chunk and processes its frames. It reports whether the
// turn finished.
func (s *stream) feed(data []byte) bool {
	frames, err := s.decoder.Feed(data)
	for _, f := range frames {
		if s.process(f) {
			return true
		}
	}
	if err != nil {
		s.fail(mapError(err))
		return true
	}
	return false
}

// process classifies and applies one frame. It reports whether the turn
// finished.
func (s *stream) process(f sse.Frame) bool {
	if s.ctx.Err() != nil {
		s.finishFromContext()
		return true
	}

	ev, err := s.classifier.Classify(f.Data)
	if err != nil {
		return !s.warn(mapError(err))
	}
	s.logger.Debug("frame classified", "kind", ev.Kind().String(), "bytes", len(f.Data))

	if pe, ok := ev.(protocol.ProtocolError); ok && pe.ErrorKind == protocol.UnrecognizedShape && s.client.cfg.LenientShapes {
		return !s.warn(protocolError(pe))
	}

	eff := s.tracker.Apply(ev)
	for _, w := range eff.Warnings {
		if !s.warn(w) {
			return true
		}
	}
	if eff.Failure != nil {
		s.fail(protocolError(*eff.Failure))
		return true
	}
	if !eff.Ignored && !s.deliver(func() { s.handler.HandleEvent(ev) }) {
		return true
	}
	if eff.Completed {
		// A handler may have cancelled the turn while seeing its last event.
		if s.ctx.Err() != nil {
			s.finishFromContext()
			return true
		}
		s.complete()
		return true
	}
	return false
}

// deliver runs a handler callback unless the turn was cancelled meanwhile,
// in which case the turn is finished instead and false is returned.
func (s *stream) deliver(fn func()) bool {
	if s.ctx.Err() != nil {
		s.finishFromContext()
		return false
	}
	fn()
	return true
}

func (s *stream) warn(err error) bool {
	s.logger.Warn("chat turn warning", "error", err)
	events.Emit(s.client.publisher, events.TurnWarningEvent{TurnID: s.turn.id, Err: err})
	return s.deliver(func() { s.handler.HandleWarning(err) })
}

func (s *stream) endOfStream() {
	if f, ok := s.decoder.Flush(); ok && s.process(f) {
		return
	}
	if s.ctx.Err() != nil {
		s.finishFromContext()
		return
	}
	if s.tracker.EndOfStream() {
		s.complete()
		return
	}
	s.fail(unexpectedEOF())
}

func (s *stream) resetIdle() {
	if s.idle != nil {
		s.idle.Reset(s.client.cfg.IdleTimeout)
	}
}

// abort handles a failed request or read. Errors caused by the turn's own
// context are reported by cause.
func (s *stream) abort(err error) {
	if s.ctx.Err() != nil {
		s.finishFromContext()
		return
	}
	s.fail(mapError(err))
}

func (s *stream) finishFromContext() {
	cause := context.Cause(s.ctx)
	if errors.Is(cause, errIdleTimeout) && s.tracker.SettleAfterIdle() {
		s.logger.Warn("idle timeout after message stop, detail links left partial")
		s.complete()
		return
	}
	chatErr := mapError(cause)
	if chatErr.Kind == KindAborted {
		s.cancelled(chatErr)
		return
	}
	s.fail(chatErr)
}

func (s *stream) complete() {
	s.reportOrphans()
	out := s.tracker.Outcome(turn.StatusCompleted, nil)
	elapsed := time.Since(s.started)
	s.logger.Info("chat turn completed",
		"session_id", out.Session.SessionID,
		"answer_chars", len(out.Answer.Text),
		"links", len(out.Links.Links),
		"duration", elapsed)
	events.Emit(s.client.publisher, events.TurnCompletedEvent{
		TurnID:     s.turn.id,
		SessionID:  out.Session.SessionID,
		AnswerLen:  len(out.Answer.Text),
		LinkCount:  len(out.Links.Links),
		StopReason: out.StopReason,
		Duration:   elapsed,
	})
	s.finish(out)
}

func (s *stream) fail(err *Error) {
	s.reportOrphans()
	s.tracker.Fail()
	out := s.tracker.Outcome(turn.StatusErrored, err)
	elapsed := time.Since(s.started)
	s.logger.Error("chat turn failed", "kind", err.Kind.String(), "error", err, "duration", elapsed)
	events.Emit(s.client.publisher, events.TurnFailedEvent{TurnID: s.turn.id, Err: err, Duration: elapsed})
	s.finish(out)
}

func (s *stream) cancelled(err *Error) {
	s.reportOrphans()
	s.tracker.Cancel()
	out := s.tracker.Outcome(turn.StatusCancelled, err)
	elapsed := time.Since(s.started)
	s.logger.Info("chat turn cancelled", "duration", elapsed)
	events.Emit(s.client.publisher, events.TurnCancelledEvent{TurnID: s.turn.id, Duration: elapsed})
	s.finish(out)
}

// reportOrphans warns about deltas whose block never started. The handler
// only hears about them while the turn's context is live.
func (s *stream) reportOrphans() {
	for _, w := range s.tracker.OrphanWarnings() {
		s.logger.Warn("chat turn warning", "error", w)
		events.Emit(s.client.publisher, events.TurnWarningEvent{TurnID: s.turn.id, Err: w})
		if s.ctx.Err() == nil {
			s.handler.HandleWarning(w)
		}
	}
}

// finish publishes the outcome. It runs exactly once per turn.
func (s *stream) finish(out turn.Outcome) {
	if s.idle != nil {
		s.idle.Stop()
	}
	s.turn.outcome = out
	s.cancel(errTurnDone)
	s.client.release()
	close(s.turn.done)
}
