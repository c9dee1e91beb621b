package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kcaldas/tradechat/pkg/protocol"
	"github.com/kcaldas/tradechat/pkg/sse"
)

var (
	// ErrAlreadyInProgress is returned by Start while another turn is open on
	// the same client.
	ErrAlreadyInProgress = errors.New("chat turn already in progress")
	// ErrInvalidRequest is returned by Start for requests that cannot be sent.
	ErrInvalidRequest = errors.New("invalid chat request")

	errIdleTimeout = errors.New("no data received within idle timeout")
	errAborted     = errors.New("turn cancelled by caller")
	errTurnDone    = errors.New("turn finished")
)

// Kind classifies every failure a turn can report.
type Kind int

const (
	// KindTransport is a non-2xx response to the initial request.
	KindTransport Kind = iota + 1
	// KindNetwork is a connection failure before or during streaming.
	KindNetwork
	// KindParse is a single malformed frame. It is the only non-terminal kind.
	KindParse
	// KindProtocol is an unrecognized shape or a server-declared error.
	KindProtocol
	// KindAborted is a caller-initiated cancellation.
	KindAborted
	// KindTimeout is an idle timeout or an expired context deadline.
	KindTimeout
	// KindFrameTooLarge is a record that outgrew the decoder's bound.
	KindFrameTooLarge
)

var kindNames = map[Kind]string{
	KindTransport:     "transport",
	KindNetwork:       "network",
	KindParse:         "parse",
	KindProtocol:      "protocol",
	KindAborted:       "aborted",
	KindTimeout:       "timeout",
	KindFrameTooLarge: "frame_too_large",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the single error type surfaced by a turn. Fields beyond Kind are
// populated according to the kind.
type Error struct {
	Kind Kind

	// StatusCode and Body describe a transport failure.
	StatusCode int
	Body       string

	// Raw is the offending record of a parse failure.
	Raw string

	// Shape, Code and Message describe a protocol failure.
	Shape   protocol.ProtocolErrorKind
	Code    string
	Message string

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		if e.Body != "" {
			return fmt.Sprintf("chat transport error: status %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("chat transport error: status %d", e.StatusCode)
	case KindProtocol:
		if e.Shape == protocol.UnrecognizedShape {
			return fmt.Sprintf("chat protocol error: %s", e.Message)
		}
		return fmt.Sprintf("chat protocol error: server declared %s: %s", e.Code, e.Message)
	case KindParse:
		return fmt.Sprintf("chat parse error: %v", e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("chat %s error: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("chat %s error", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Terminal reports whether the error ends the turn.
func (e *Error) Terminal() bool {
	return e.Kind != KindParse
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var chatErr *Error
	return errors.As(err, &chatErr) && chatErr.Kind == kind
}

// mapError normalizes anything the read loop can run into.
func mapError(err error) *Error {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr
	}

	var parseErr *protocol.ParseError
	switch {
	case errors.As(err, &parseErr):
		return &Error{Kind: KindParse, Raw: parseErr.Raw, Err: err}
	case errors.Is(err, sse.ErrFrameTooLarge):
		return &Error{Kind: KindFrameTooLarge, Err: err}
	case errors.Is(err, errIdleTimeout), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, errAborted), errors.Is(err, context.Canceled):
		return &Error{Kind: KindAborted, Err: err}
	default:
		return &Error{Kind: KindNetwork, Err: err}
	}
}

func transportError(status int, body string) *Error {
	return &Error{Kind: KindTransport, StatusCode: status, Body: body}
}

func protocolError(pe protocol.ProtocolError) *Error {
	return &Error{
		Kind:    KindProtocol,
		Shape:   pe.ErrorKind,
		Code:    pe.Code,
		Message: pe.Message,
	}
}

func unexpectedEOF() *Error {
	return &Error{Kind: KindNetwork, Err: fmt.Errorf("stream ended before message stop: %w", io.ErrUnexpectedEOF)}
}
