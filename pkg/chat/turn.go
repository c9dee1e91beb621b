package chat

import (
	"context"
	"sync"

	"github.com/kcaldas/tradechat/pkg/turn"
)

// Turn is a handle on one running chat turn.
type Turn struct {
	id string

	cancelOnce sync.Once
	cancel     context.CancelCauseFunc

	done    chan struct{}
	outcome turn.Outcome
}

func newTurn(id string, cancel context.CancelCauseFunc) *Turn {
	return &Turn{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID is the turn id, also sent as the X-Request-ID header.
func (t *Turn) ID() string {
	return t.id
}

// Cancel stops the turn. The read loop stops before the next event and the
// connection is released; handlers are not called again once it has
// noticed. Calling Cancel more than once, or after the turn ended, has no
// further effect.
func (t *Turn) Cancel() {
	t.cancelOnce.Do(func() {
		t.cancel(errAborted)
	})
}

// Done is closed once the outcome is available.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the turn ends and returns its outcome.
func (t *Turn) Wait() turn.Outcome {
	<-t.done
	return t.outcome
}

// Outcome returns the outcome without blocking. ok is false while the turn is
// still running.
func (t *Turn) Outcome() (out turn.Outcome, ok bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return turn.Outcome{}, false
	}
}
