package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcaldas/tradechat/pkg/protocol"
)

func connected(t *testing.T, opts Options) *Tracker {
	t.Helper()
	tr := NewTracker(opts)
	require.NoError(t, tr.Connect())
	return tr
}

func applyAll(t *testing.T, tr *Tracker, events ...protocol.Event) []Effect {
	t.Helper()
	effects := make([]Effect, 0, len(events))
	for _, ev := range events {
		effects = append(effects, tr.Apply(ev))
	}
	return effects
}

func classifyAll(t *testing.T, payloads ...string) []protocol.Event {
	t.Helper()
	c := protocol.NewClassifier()
	events := make([]protocol.Event, 0, len(payloads))
	for _, p := range payloads {
		ev, err := c.Classify([]byte(p))
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func TestTracker_CompleteTurn(t *testing.T) {
	tr := connected(t, Options{})

	effects := applyAll(t, tr,
		protocol.SessionInfo{SessionID: "s-1", UserKind: protocol.UserMember, RecordingEnabled: true},
		protocol.ProcessingStatus{Stage: "intent", Progress: 0.2},
		protocol.MessageStart{},
		protocol.ContentBlockStart{Index: 0, BlockKind: protocol.BlockText},
		protocol.ContentBlockDelta{Index: 0, Text: "Steel tariffs "},
		protocol.WebSearchResults{Items: []protocol.SearchItem{{Title: "WTO", URL: "https://wto.example"}}},
		protocol.ContentBlockDelta{Index: 0, Text: "are 25%."},
		protocol.ContentBlockStop{Index: 0},
		protocol.MessageDelta{StopReason: "end_turn"},
		protocol.MessageStop{},
	)

	last := effects[len(effects)-1]
	assert.True(t, last.Completed)
	for _, eff := range effects[:len(effects)-1] {
		assert.False(t, eff.Completed)
		assert.Empty(t, eff.Warnings)
	}

	out := tr.Outcome(StatusCompleted, nil)
	assert.Equal(t, "Steel tariffs are 25%.", out.Answer.Text)
	assert.Equal(t, "s-1", out.Session.SessionID)
	assert.True(t, out.Session.RecordingEnabled)
	assert.Equal(t, "end_turn", out.StopReason)
	assert.Len(t, out.Citations, 1)
	assert.Equal(t, StateCompleted, tr.State())
}

func TestTracker_FramesAfterMessageStopIgnored(t *testing.T) {
	tr := connected(t, Options{})
	applyAll(t, tr,
		protocol.MessageStart{},
		protocol.ContentBlockDelta{Index: 0, Text: "done", OpensBlock: true},
		protocol.MessageStop{},
	)
	require.Equal(t, StateCompleted, tr.State())

	for _, ev := range []protocol.Event{
		protocol.ContentBlockDelta{Index: 0, Text: " more"},
		protocol.MessageStop{},
		protocol.ProtocolError{ErrorKind: protocol.ServerDeclared, Code: "late"},
	} {
		eff := tr.Apply(ev)
		assert.True(t, eff.Ignored)
		assert.False(t, eff.Completed, "terminal must not fire twice")
		assert.Nil(t, eff.Failure)
	}
	assert.Equal(t, "done", tr.Outcome(StatusCompleted, nil).Answer.Text)
}

func TestTracker_WaitsForStartedDetailLinks(t *testing.T) {
	tr := connected(t, Options{})

	effects := applyAll(t, tr,
		protocol.MessageStart{},
		protocol.DetailLinksStart{ExpectedCount: count(2)},
		protocol.ContentBlockDelta{Index: 0, Text: "answer", OpensBlock: true},
		protocol.DetailLinkReady{Link: link(1, "https://a")},
		protocol.MessageStop{},
	)
	assert.False(t, effects[len(effects)-1].Completed)
	assert.Equal(t, StateAwaitingDetailLinks, tr.State())

	eff := tr.Apply(protocol.ContentBlockDelta{Index: 0, Text: "late"})
	assert.True(t, eff.Ignored)
	require.Len(t, eff.Warnings, 1)
	assert.ErrorIs(t, eff.Warnings[0], ErrAfterMessageStop)

	eff = tr.Apply(protocol.DetailLinkReady{Link: link(2, "https://b")})
	assert.True(t, eff.Completed)

	out := tr.Outcome(StatusCompleted, nil)
	assert.Equal(t, "answer", out.Answer.Text)
	assert.True(t, out.Links.Complete)
	assert.Len(t, out.Links.Links, 2)
}

func TestTracker_DetailLinkTerminationEquivalence(t *testing.T) {
	three := []protocol.Event{
		protocol.DetailLinksStart{ExpectedCount: count(3)},
		protocol.DetailLinkReady{Link: link(1, "a")},
		protocol.DetailLinkReady{Link: link(2, "b")},
		protocol.DetailLinkReady{Link: link(3, "c")},
	}
	twoPlusComplete := []protocol.Event{
		protocol.DetailLinksStart{ExpectedCount: count(3)},
		protocol.DetailLinkReady{Link: link(1, "a")},
		protocol.DetailLinkReady{Link: link(2, "b")},
		protocol.DetailLinksComplete{PreparedCount: 2},
	}

	for name, events := range map[string][]protocol.Event{"three ready": three, "two plus complete": twoPlusComplete} {
		t.Run(name, func(t *testing.T) {
			tr := connected(t, Options{ExpectDetailLinks: true})
			applyAll(t, tr, protocol.MessageStart{}, protocol.MessageStop{})
			require.Equal(t, StateAwaitingDetailLinks, tr.State())

			effects := applyAll(t, tr, events...)

			assert.True(t, effects[len(effects)-1].Completed)
			assert.True(t, tr.Outcome(StatusCompleted, nil).Links.Complete)
		})
	}
}

func TestTracker_DetailLinkErrorIsNonFatal(t *testing.T) {
	tr := connected(t, Options{})
	applyAll(t, tr,
		protocol.MessageStart{},
		protocol.DetailLinksStart{ExpectedCount: count(3)},
		protocol.DetailLinkReady{Link: link(1, "a")},
		protocol.MessageStop{},
	)

	eff := tr.Apply(protocol.DetailLinksError{Code: "PREP_FAILED", Retryable: false})

	assert.True(t, eff.Completed)
	assert.Nil(t, eff.Failure)
	out := tr.Outcome(StatusCompleted, nil)
	assert.Equal(t, LinksFailed, out.Links.State)
	assert.Len(t, out.Links.Links, 1)
}

func TestTracker_ExpectDetailLinksKeepsTurnOpen(t *testing.T) {
	tr := connected(t, Options{ExpectDetailLinks: true})
	effects := applyAll(t, tr, protocol.MessageStart{}, protocol.MessageStop{})

	assert.False(t, effects[1].Completed)
	assert.Equal(t, StateAwaitingDetailLinks, tr.State())

	assert.True(t, tr.EndOfStream(), "EOF settles a turn that already stopped")
	out := tr.Outcome(StatusCompleted, nil)
	assert.False(t, out.Links.Complete)
}

func TestTracker_EndOfStreamBeforeMessageStop(t *testing.T) {
	tr := connected(t, Options{})
	applyAll(t, tr, protocol.MessageStart{}, protocol.ContentBlockDelta{Index: 0, Text: "partial", OpensBlock: true})

	assert.False(t, tr.EndOfStream())
	assert.True(t, tr.Fail())
	out := tr.Outcome(StatusErrored, assert.AnError)
	assert.Equal(t, "partial", out.Answer.Text, "partial content survives the error")
	assert.Equal(t, assert.AnError, out.Err)
}

func TestTracker_ProtocolErrorFails(t *testing.T) {
	tr := connected(t, Options{})
	eff := tr.Apply(protocol.ProtocolError{ErrorKind: protocol.ServerDeclared, Code: "overloaded", Message: "busy"})

	require.NotNil(t, eff.Failure)
	assert.Equal(t, "overloaded", eff.Failure.Code)
	assert.Equal(t, StateErrored, tr.State())
	assert.False(t, tr.Cancel())
}

func TestTracker_SessionReadOnly(t *testing.T) {
	tr := connected(t, Options{})
	applyAll(t, tr,
		protocol.SessionInfo{SessionID: "first", UserKind: protocol.UserGuest},
	)
	eff := tr.Apply(protocol.SessionInfo{SessionID: "second"})

	assert.True(t, eff.Ignored)
	session, ok := tr.Session()
	require.True(t, ok)
	assert.Equal(t, "first", session.SessionID)
	assert.Equal(t, protocol.UserGuest, session.UserKind)
}

func TestTracker_MemberRecordSaved(t *testing.T) {
	tr := connected(t, Options{ExpectDetailLinks: true})
	applyAll(t, tr,
		protocol.MessageStart{},
		protocol.MessageStop{},
		protocol.MemberRecordSaved{MessageCount: 4},
		protocol.DetailLinksStart{ExpectedCount: count(0)},
	)

	assert.Equal(t, StateCompleted, tr.State())
	assert.Equal(t, 4, tr.Outcome(StatusCompleted, nil).SavedMessages)
}

func TestTracker_DialectEquivalence(t *testing.T) {
	typeDialect := connected(t, Options{})
	applyAll(t, typeDialect, classifyAll(t,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"trade"}}`,
	)...)

	eventDialect := connected(t, Options{})
	applyAll(t, eventDialect, classifyAll(t,
		`{"event":"content_delta","data":{"index":0,"text":"Hello "}}`,
		`{"event":"content_delta","data":{"index":0,"delta":{"type":"text_delta","text":"trade"}}}`,
	)...)

	assert.Equal(t,
		typeDialect.Outcome(StatusCompleted, nil).Answer,
		eventDialect.Outcome(StatusCompleted, nil).Answer)
	assert.Equal(t, StateStreaming, eventDialect.State(), "content implies streaming without a message start")
}

func TestTracker_OutOfOrderDeltasAcrossBlocks(t *testing.T) {
	tr := connected(t, Options{})
	applyAll(t, tr,
		protocol.MessageStart{},
		protocol.ContentBlockDelta{Index: 1, Text: "world"},
		protocol.ContentBlockStart{Index: 1},
		protocol.ContentBlockDelta{Index: 0, Text: "Hello "},
		protocol.ContentBlockStart{Index: 0},
		protocol.MessageStop{},
	)

	assert.Equal(t, "Hello world", tr.Outcome(StatusCompleted, nil).Answer.Text)
	assert.Equal(t, 0, tr.PendingDeltas())
}

func TestTracker_CitationsAfterMessageStopIgnored(t *testing.T) {
	tr := connected(t, Options{ExpectDetailLinks: true})
	applyAll(t, tr, protocol.MessageStart{}, protocol.MessageStop{})

	eff := tr.Apply(protocol.WebSearchResults{Items: []protocol.SearchItem{{Title: "late", URL: "u"}}})

	assert.True(t, eff.Ignored)
	require.Len(t, eff.Warnings, 1)
	assert.ErrorIs(t, eff.Warnings[0], ErrAfterMessageStop)
	assert.Empty(t, tr.Outcome(StatusCompleted, nil).Citations)
}

func TestTracker_SettleAfterIdle(t *testing.T) {
	t.Run("awaiting links", func(t *testing.T) {
		tr := connected(t, Options{})
		applyAll(t, tr,
			protocol.MessageStart{},
			protocol.DetailLinksStart{ExpectedCount: count(3)},
			protocol.DetailLinkReady{Link: link(1, "a")},
			protocol.MessageStop{},
		)

		assert.True(t, tr.SettleAfterIdle())
		assert.Equal(t, StateCompleted, tr.State())
		links := tr.Outcome(StatusCompleted, nil).Links
		assert.Equal(t, LinksFailed, links.State)
		assert.Equal(t, LinkErrIdleTimeout, links.ErrorCode)
		assert.Len(t, links.Links, 1)
	})

	t.Run("already completed", func(t *testing.T) {
		tr := connected(t, Options{})
		applyAll(t, tr, protocol.MessageStart{}, protocol.MessageStop{})
		assert.True(t, tr.SettleAfterIdle())
	})

	t.Run("still streaming", func(t *testing.T) {
		tr := connected(t, Options{})
		applyAll(t, tr, protocol.MessageStart{})
		assert.False(t, tr.SettleAfterIdle())
		assert.Equal(t, StateStreaming, tr.State())
	})
}

func TestTracker_OrphanWarnings(t *testing.T) {
	tr := connected(t, Options{})
	applyAll(t, tr,
		protocol.MessageStart{},
		protocol.ContentBlockDelta{Index: 2, Text: "lost "},
		protocol.ContentBlockDelta{Index: 2, Text: "text"},
		protocol.ContentBlockDelta{Index: 0, Text: "kept", OpensBlock: true},
		protocol.MessageStop{},
	)

	warnings := tr.OrphanWarnings()
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], ErrOrphanedDelta)
	assert.Contains(t, warnings[0].Error(), "index 2")

	answer := tr.Outcome(StatusCompleted, nil).Answer
	assert.Equal(t, "kept", answer.Text)
	assert.Equal(t, []Block{{Index: 2, Kind: protocol.BlockText, Text: "lost text"}}, answer.Orphaned)
}
