package turn

import (
	"errors"
	"fmt"

	"github.com/kcaldas/tradechat/pkg/protocol"
)

// ErrAfterMessageStop is reported for content events that arrive once the
// message has stopped.
var ErrAfterMessageStop = errors.New("content event after message stop")

// LinkErrIdleTimeout is the link error code recorded when the stream went
// quiet before the detail links settled.
const LinkErrIdleTimeout = "IDLE_TIMEOUT"

// Options tune how a tracker decides the turn is complete.
type Options struct {
	// ExpectDetailLinks keeps the turn open after message stop until the
	// detail-link sub-task settles, even if it has not started yet.
	ExpectDetailLinks bool
}

// Effect describes what applying one event did.
type Effect struct {
	// Warnings are non-fatal problems with the event.
	Warnings []error
	// Ignored is set when the event had no effect on the turn.
	Ignored bool
	// Completed is set when this event completed the turn.
	Completed bool
	// Failure is set when the event was a protocol error that ends the turn.
	Failure *protocol.ProtocolError
}

// Tracker folds the events of one turn into its state. It is owned by a
// single read loop and is not safe for concurrent use.
type Tracker struct {
	opts    Options
	machine Machine
	answer  *Assembler
	links   *LinkAggregator

	session    SessionContext
	sessionSet bool
	stopReason string
	citations  []protocol.SearchItem
	saved      int
}

func NewTracker(opts Options) *Tracker {
	return &Tracker{
		opts:   opts,
		answer: NewAssembler(),
		links:  NewLinkAggregator(),
	}
}

// Connect marks the request as sent.
func (t *Tracker) Connect() error {
	return t.machine.Connect()
}

func (t *Tracker) State() State {
	return t.machine.State()
}

// Apply folds one event into the turn.
func (t *Tracker) Apply(ev protocol.Event) Effect {
	if t.machine.State().Terminal() {
		return Effect{Ignored: true}
	}

	var eff Effect
	warn := func(err error) {
		if err != nil {
			eff.Warnings = append(eff.Warnings, err)
		}
	}

	switch e := ev.(type) {
	case protocol.SessionInfo:
		if t.sessionSet {
			eff.Ignored = true
			break
		}
		t.session = SessionContext{
			SessionID:        e.SessionID,
			UserKind:         e.UserKind,
			RecordingEnabled: e.RecordingEnabled,
		}
		t.sessionSet = true
		warn(t.machine.EstablishSession())
	case protocol.Heartbeat, protocol.ProcessingStatus:
	case protocol.MessageStart:
		if t.rejectAfterStop(ev, &eff) {
			break
		}
		warn(t.machine.BeginStreaming())
	case protocol.ContentBlockStart:
		if !t.acceptContent(ev, &eff) {
			break
		}
		warn(t.answer.Start(e.Index, e.BlockKind, e.Text))
	case protocol.ContentBlockDelta:
		if !t.acceptContent(ev, &eff) {
			break
		}
		if e.OpensBlock {
			t.answer.Open(e.Index, blockKindForDelta(e.DeltaKind))
		}
		warn(t.answer.Delta(e.Index, e.Text))
	case protocol.ContentBlockStop:
		if !t.acceptContent(ev, &eff) {
			break
		}
		warn(t.answer.Stop(e.Index))
	case protocol.WebSearchResults:
		if t.rejectAfterStop(ev, &eff) {
			break
		}
		t.citations = append(t.citations, e.Items...)
	case protocol.MessageDelta:
		if t.rejectAfterStop(ev, &eff) {
			break
		}
		t.stopReason = e.StopReason
	case protocol.MessageStop:
		if t.machine.MessageStopped() {
			eff.Ignored = true
			break
		}
		warn(t.machine.EndStreaming(t.linksSettled()))
	case protocol.DetailLinksStart:
		warn(t.links.Start(e.ExpectedCount))
		t.settleLinks()
	case protocol.DetailLinkReady:
		warn(t.links.Ready(e.Link))
		t.settleLinks()
	case protocol.DetailLinksComplete:
		warn(t.links.Complete())
		t.settleLinks()
	case protocol.DetailLinksError:
		warn(t.links.Fail(e.Code, e.Retryable))
		t.settleLinks()
	case protocol.MemberRecordSaved:
		t.saved = e.MessageCount
	case protocol.ProtocolError:
		pe := e
		eff.Failure = &pe
		t.machine.Fail()
	default:
		warn(fmt.Errorf("unhandled event kind %s", ev.Kind()))
	}

	eff.Completed = t.machine.State() == StateCompleted
	return eff
}

func (t *Tracker) rejectAfterStop(ev protocol.Event, eff *Effect) bool {
	if !t.machine.MessageStopped() {
		return false
	}
	eff.Ignored = true
	eff.Warnings = append(eff.Warnings, fmt.Errorf("%w: %s", ErrAfterMessageStop, ev.Kind()))
	return true
}

// acceptContent rejects content after message stop and implicitly enters
// streaming for dialects that never send a message start.
func (t *Tracker) acceptContent(ev protocol.Event, eff *Effect) bool {
	if t.rejectAfterStop(ev, eff) {
		return false
	}
	if t.machine.State() != StateStreaming {
		if err := t.machine.BeginStreaming(); err != nil {
			eff.Warnings = append(eff.Warnings, err)
		}
	}
	return true
}

func (t *Tracker) linksSettled() bool {
	if t.links.Terminal() {
		return true
	}
	return !t.links.Started() && !t.opts.ExpectDetailLinks
}

func (t *Tracker) settleLinks() {
	if t.links.Terminal() {
		t.machine.SettleLinks()
	}
}

func blockKindForDelta(deltaKind string) protocol.BlockKind {
	if deltaKind == "thinking_delta" {
		return protocol.BlockThinking
	}
	return protocol.BlockText
}

// EndOfStream handles the server closing the stream. A turn that already
// saw message stop completes with whatever links arrived; it reports false
// when the stream ended before the message did.
func (t *Tracker) EndOfStream() bool {
	switch t.machine.State() {
	case StateCompleted:
		return true
	case StateAwaitingDetailLinks:
		return t.machine.SettleLinks()
	default:
		return false
	}
}

// SettleAfterIdle decides a turn whose stream went quiet. A turn that already
// completed stays completed. One that is only waiting on detail links gives
// up on them, keeping the links that arrived, and completes. It reports false
// when the message itself never finished.
func (t *Tracker) SettleAfterIdle() bool {
	switch t.machine.State() {
	case StateCompleted:
		return true
	case StateAwaitingDetailLinks:
		if !t.links.Terminal() {
			_ = t.links.Fail(LinkErrIdleTimeout, true)
		}
		return t.machine.SettleLinks()
	default:
		return false
	}
}

// Fail moves the turn to errored, reporting whether it was still open.
func (t *Tracker) Fail() bool {
	return t.machine.Fail()
}

// Cancel moves the turn to cancelled, reporting whether it was still open.
func (t *Tracker) Cancel() bool {
	return t.machine.Cancel()
}

// Session returns the session context, if one was seen.
func (t *Tracker) Session() (SessionContext, bool) {
	return t.session, t.sessionSet
}

// Outcome snapshots everything gathered so far.
func (t *Tracker) Outcome(status Status, err error) Outcome {
	return Outcome{
		Status:        status,
		Answer:        t.answer.Snapshot(),
		Links:         t.links.Result(),
		Session:       t.session,
		StopReason:    t.stopReason,
		Citations:     append([]protocol.SearchItem(nil), t.citations...),
		SavedMessages: t.saved,
		Err:           err,
	}
}

// PendingDeltas counts deltas that never found their block.
func (t *Tracker) PendingDeltas() int {
	return t.answer.PendingDeltas()
}

// OrphanWarnings describes each block whose deltas are still buffered.
func (t *Tracker) OrphanWarnings() []error {
	orphans := t.answer.Orphans()
	if len(orphans) == 0 {
		return nil
	}
	warnings := make([]error, 0, len(orphans))
	for _, o := range orphans {
		warnings = append(warnings, fmt.Errorf("%w: index %d, %d bytes", ErrOrphanedDelta, o.Index, len(o.Text)))
	}
	return warnings
}
