// Package turn aggregates the events of one chat turn: the lifecycle state
// machine, the content assembler and the detail-link aggregator.
package turn

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a turn.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSessionEstablished
	StateStreaming
	// StateAwaitingDetailLinks is entered on message stop while the
	// detail-link sub-task is still running.
	StateAwaitingDetailLinks
	StateCompleted
	StateErrored
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:                "idle",
	StateConnecting:          "connecting",
	StateSessionEstablished:  "session_established",
	StateStreaming:           "streaming",
	StateAwaitingDetailLinks: "awaiting_detail_links",
	StateCompleted:           "completed",
	StateErrored:             "errored",
	StateCancelled:           "cancelled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateCancelled
}

// ErrInvalidTransition is returned for a transition the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid turn state transition")

// Machine enforces the ordering of the turn lifecycle.
type Machine struct {
	state State
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) transition(to State, from ...State) error {
	for _, s := range from {
		if m.state == s {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
}

// Connect moves an idle turn to connecting.
func (m *Machine) Connect() error {
	return m.transition(StateConnecting, StateIdle)
}

// EstablishSession records the first session info. Later session info is a
// no-op since the session is read-only for the rest of the turn.
func (m *Machine) EstablishSession() error {
	switch m.state {
	case StateSessionEstablished, StateStreaming, StateAwaitingDetailLinks:
		return nil
	}
	return m.transition(StateSessionEstablished, StateConnecting)
}

// BeginStreaming enters streaming. Servers that skip session info go
// straight from connecting.
func (m *Machine) BeginStreaming() error {
	if m.state == StateStreaming {
		return nil
	}
	return m.transition(StateStreaming, StateConnecting, StateSessionEstablished)
}

// EndStreaming handles message stop. The turn completes at once when the
// detail links are settled, otherwise it waits for them.
func (m *Machine) EndStreaming(linksSettled bool) error {
	to := StateAwaitingDetailLinks
	if linksSettled {
		to = StateCompleted
	}
	return m.transition(to, StateConnecting, StateSessionEstablished, StateStreaming)
}

// MessageStopped reports whether message stop has been applied.
func (m *Machine) MessageStopped() bool {
	return m.state == StateAwaitingDetailLinks || m.state == StateCompleted
}

// SettleLinks completes a turn that was only waiting on detail links.
func (m *Machine) SettleLinks() bool {
	if m.state != StateAwaitingDetailLinks {
		return false
	}
	m.state = StateCompleted
	return true
}

// Fail moves any non-terminal turn to errored. It reports whether the
// transition happened.
func (m *Machine) Fail() bool {
	if m.state.Terminal() {
		return false
	}
	m.state = StateErrored
	return true
}

// Cancel moves any non-terminal turn to cancelled. Repeated calls are no-ops.
func (m *Machine) Cancel() bool {
	if m.state.Terminal() {
		return false
	}
	m.state = StateCancelled
	return true
}
