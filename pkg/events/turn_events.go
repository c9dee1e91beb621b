package events

import "time"

// Topics published for every chat turn.
const (
	TopicTurnStarted   = "turn.started"
	TopicTurnWarning   = "turn.warning"
	TopicTurnCompleted = "turn.completed"
	TopicTurnFailed    = "turn.failed"
	TopicTurnCancelled = "turn.cancelled"
)

// TurnStartedEvent is published once the request has been accepted by the
// server and the stream is open.
type TurnStartedEvent struct {
	TurnID    string
	SessionID string // session the request continued, empty for a new one
	Message   string
	StartedAt time.Time
}

// Topic returns the event topic for started turns
func (e TurnStartedEvent) Topic() string {
	return TopicTurnStarted
}

// TurnWarningEvent carries a non-fatal problem seen while streaming, such as
// a malformed frame that was skipped.
type TurnWarningEvent struct {
	TurnID string
	Err    error
}

// Topic returns the event topic for turn warnings
func (e TurnWarningEvent) Topic() string {
	return TopicTurnWarning
}

// TurnCompletedEvent is published when a turn finishes normally.
type TurnCompletedEvent struct {
	TurnID     string
	SessionID  string
	AnswerLen  int
	LinkCount  int
	StopReason string
	Duration   time.Duration
}

// Topic returns the event topic for completed turns
func (e TurnCompletedEvent) Topic() string {
	return TopicTurnCompleted
}

// TurnFailedEvent is published when a turn ends with an error.
type TurnFailedEvent struct {
	TurnID   string
	Err      error
	Duration time.Duration
}

// Topic returns the event topic for failed turns
func (e TurnFailedEvent) Topic() string {
	return TopicTurnFailed
}

// TurnCancelledEvent is published when the caller cancels a turn.
type TurnCancelledEvent struct {
	TurnID   string
	Duration time.Duration
}

// Topic returns the event topic for cancelled turns
func (e TurnCancelledEvent) Topic() string {
	return TopicTurnCancelled
}
