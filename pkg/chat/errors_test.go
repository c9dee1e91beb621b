package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kcaldas/tradechat/pkg/protocol"
	"github.com/kcaldas/tradechat/pkg/sse"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "parse", err: &protocol.ParseError{Raw: "{", Err: errors.New("eof")}, want: KindParse},
		{name: "frame too large", err: fmt.Errorf("%w: 9 bytes", sse.ErrFrameTooLarge), want: KindFrameTooLarge},
		{name: "idle", err: errIdleTimeout, want: KindTimeout},
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "aborted", err: errAborted, want: KindAborted},
		{name: "context cancelled", err: context.Canceled, want: KindAborted},
		{name: "read failure", err: io.ErrClosedPipe, want: KindNetwork},
		{name: "already mapped", err: transportError(502, "bad gateway"), want: KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.want != KindParse, got.Terminal())
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "chat transport error: status 503: busy", transportError(503, "busy").Error())
	assert.Equal(t, "chat transport error: status 500", transportError(500, "").Error())
	assert.Equal(t, "chat protocol error: server declared overloaded: try later",
		protocolError(protocol.ProtocolError{ErrorKind: protocol.ServerDeclared, Code: "overloaded", Message: "try later"}).Error())
	assert.Equal(t, "chat protocol error: unrecognized type value \"x\"",
		protocolError(protocol.ProtocolError{ErrorKind: protocol.UnrecognizedShape, Message: `unrecognized type value "x"`}).Error())
	assert.Contains(t, unexpectedEOF().Error(), "chat network error")
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestIsKind(t *testing.T) {
	wrapped := fmt.Errorf("turn: %w", &Error{Kind: KindTimeout, Err: errIdleTimeout})
	assert.True(t, IsKind(wrapped, KindTimeout))
	assert.False(t, IsKind(wrapped, KindNetwork))
	assert.False(t, IsKind(errors.New("plain"), KindTimeout))
	assert.ErrorIs(t, wrapped, errIdleTimeout)
}
