package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Message length bounds, counted in characters after trimming.
const (
	MinMessageLength = 2
	MaxMessageLength = 1000
)

// Request is the body of one chat turn.
type Request struct {
	Message   string          `json:"message"`
	SessionID string          `json:"sessionId,omitempty"`
	Context   *RequestContext `json:"context,omitempty"`
}

// RequestContext describes the caller.
type RequestContext struct {
	Locale     string `json:"locale,omitempty"`
	ClientInfo string `json:"clientInfo,omitempty"`
}

// NewRequest builds a request continuing sessionID, which may be empty.
func NewRequest(message, sessionID string) Request {
	return Request{Message: message, SessionID: sessionID}
}

// Validate checks the message length.
func (r Request) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(r.Message))
	if n < MinMessageLength || n > MaxMessageLength {
		return fmt.Errorf("%w: message must be %d to %d characters, got %d",
			ErrInvalidRequest, MinMessageLength, MaxMessageLength, n)
	}
	return nil
}

// normalized returns a copy with a trimmed message and the caller context
// filled from defaults where the request left it blank.
func (r Request) normalized(locale, clientInfo string) Request {
	out := Request{
		Message:   strings.TrimSpace(r.Message),
		SessionID: strings.TrimSpace(r.SessionID),
	}
	ctx := RequestContext{Locale: locale, ClientInfo: clientInfo}
	if r.Context != nil {
		if r.Context.Locale != "" {
			ctx.Locale = r.Context.Locale
		}
		if r.Context.ClientInfo != "" {
			ctx.ClientInfo = r.Context.ClientInfo
		}
	}
	if ctx != (RequestContext{}) {
		out.Context = &ctx
	}
	return out
}
