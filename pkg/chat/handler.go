package chat

import "github.com/kcaldas/tradechat/pkg/protocol"

// Handler receives the events of a turn in decode order, on the turn's read
// goroutine. HandleEvent sees every event that changed the turn, HandleWarning
// sees non-fatal problems such as a malformed frame. The terminal outcome is
// reported through Turn.Wait, never through the handler.
type Handler interface {
	HandleEvent(ev protocol.Event)
	HandleWarning(err error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	OnEvent   func(ev protocol.Event)
	OnWarning func(err error)
}

func (h HandlerFuncs) HandleEvent(ev protocol.Event) {
	if h.OnEvent != nil {
		h.OnEvent(ev)
	}
}

func (h HandlerFuncs) HandleWarning(err error) {
	if h.OnWarning != nil {
		h.OnWarning(err)
	}
}

var _ Handler = HandlerFuncs{}
