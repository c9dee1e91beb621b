package turn

import "github.com/kcaldas/tradechat/pkg/protocol"

// Status is the terminal status of a turn.
type Status int

const (
	StatusCompleted Status = iota + 1
	StatusErrored
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusErrored:
		return "errored"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SessionContext is taken from the first session-describing event.
type SessionContext struct {
	SessionID        string            `json:"session_id,omitempty"`
	UserKind         protocol.UserKind `json:"-"`
	RecordingEnabled bool              `json:"recording_enabled"`
}

// Outcome is the single terminal value of a turn. Content assembled before
// an error or cancellation is kept.
type Outcome struct {
	Status     Status                `json:"-"`
	Answer     Answer                `json:"answer"`
	Links      LinkSet               `json:"detail_links"`
	Session    SessionContext        `json:"session"`
	StopReason string                `json:"stop_reason,omitempty"`
	Citations  []protocol.SearchItem `json:"citations,omitempty"`
	// SavedMessages is the message count confirmed by a member record save,
	// or zero when no confirmation arrived.
	SavedMessages int   `json:"saved_messages,omitempty"`
	Err           error `json:"-"`
}
