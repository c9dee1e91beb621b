package chat

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kcaldas/tradechat/pkg/config"
	"github.com/kcaldas/tradechat/pkg/logging"
	"github.com/kcaldas/tradechat/pkg/protocol"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func sseResponse(body io.ReadCloser) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       body,
	}
}

// staticDoer serves body to every request and remembers the last request.
type staticDoer struct {
	mu      sync.Mutex
	body    string
	status  int
	last    *http.Request
	payload string
}

func (d *staticDoer) Do(r *http.Request) (*http.Response, error) {
	payload, _ := io.ReadAll(r.Body)
	d.mu.Lock()
	d.last = r
	d.payload = string(payload)
	d.mu.Unlock()

	resp := sseResponse(io.NopCloser(strings.NewReader(d.body)))
	if d.status != 0 {
		resp.StatusCode = d.status
	}
	return resp, nil
}

// pipeDoer hands the test the writing end of the response body.
type pipeDoer struct {
	pr *io.PipeReader
	pw *io.PipeWriter
}

func newPipeDoer() *pipeDoer {
	pr, pw := io.Pipe()
	return &pipeDoer{pr: pr, pw: pw}
}

func (d *pipeDoer) Do(*http.Request) (*http.Response, error) {
	return sseResponse(d.pr), nil
}

func (d *pipeDoer) send(t *testing.T, payloads ...string) {
	t.Helper()
	_, err := d.pw.Write([]byte(frames(payloads...)))
	require.NoError(t, err)
}

func frames(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: ")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String()
}

type recordingHandler struct {
	mu       sync.Mutex
	events   []protocol.Event
	warnings []error
	seen     chan protocol.Event
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: make(chan protocol.Event, 64)}
}

func (h *recordingHandler) HandleEvent(ev protocol.Event) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	h.seen <- ev
}

func (h *recordingHandler) HandleWarning(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.warnings = append(h.warnings, err)
}

func (h *recordingHandler) kinds() []protocol.Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.Kind, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, ev.Kind())
	}
	return out
}

func (h *recordingHandler) warningList() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.warnings...)
}

func (h *recordingHandler) waitFor(t *testing.T, kind protocol.Kind) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.seen:
			if ev.Kind() == kind {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func testConfig() config.ChatConfig {
	cfg := config.DefaultChatConfig()
	cfg.BaseURL = "http://chat.test"
	cfg.IdleTimeout = 0
	return cfg
}

func newTestClient(t *testing.T, cfg config.ChatConfig, doer httpDoer, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(doer), WithLogger(logging.NewDisabledLogger())}, opts...)
	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return c
}

const (
	sessionFrame   = `{"session_uuid":"sess-42","timestamp":1718000000.5}`
	startFrame     = `{"type":"message_start","message":{"id":"msg-1"}}`
	blockFrame     = `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`
	stopBlockFrame = `{"type":"content_block_stop","index":0}`
	deltaReason    = `{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`
	stopFrame      = `{"type":"message_stop"}`
)

func deltaFrame(text string) string {
	return `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"` + text + `"}}`
}

func waitOutcome(t *testing.T, tr *Turn) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("turn did not finish")
	}
}
