// Package chat drives one streaming chat turn at a time: it sends the request,
// decodes the event stream, folds it into a turn outcome and tears the
// connection down exactly once.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kcaldas/tradechat/pkg/config"
	"github.com/kcaldas/tradechat/pkg/credentials"
	"github.com/kcaldas/tradechat/pkg/events"
	"github.com/kcaldas/tradechat/pkg/logging"
	"github.com/kcaldas/tradechat/pkg/turn"
	"github.com/kcaldas/tradechat/pkg/version"
)

// RequestIDHeader carries the turn id so server logs can be correlated.
const RequestIDHeader = "X-Request-ID"

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the chat client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client httpDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPublisher sets where turn lifecycle events go.
func WithPublisher(publisher events.Publisher) Option {
	return func(c *Client) {
		if publisher != nil {
			c.publisher = publisher
		}
	}
}

// Client runs chat turns against one endpoint. At most one turn is open at a
// time.
type Client struct {
	cfg        config.ChatConfig
	endpoint   string
	clientInfo string

	httpClient httpDoer
	logger     logging.Logger
	publisher  events.Publisher

	inFlight atomic.Bool
}

// NewClient creates a chat client for cfg.
func NewClient(cfg config.ChatConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("chat config: %w", err)
	}
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("chat config: %w", err)
	}

	client := &Client{
		cfg:        cfg,
		endpoint:   endpoint,
		clientInfo: version.ClientInfo(),
		// No client-wide timeout: the stream is bounded by the idle timeout
		// and the caller's context instead.
		httpClient: &http.Client{},
		publisher:  &events.NoOpEventBus{},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() config.ChatConfig {
	return c.cfg
}

// Start opens a turn. The request is validated and the credential provider
// consulted before anything is sent; failures there are returned directly and
// never become turn outcomes. Everything after that, including the HTTP
// round trip, happens on the turn's own goroutine and ends in exactly one
// outcome available from Turn.Wait.
//
// Cancelling ctx cancels the turn. A nil provider sends the request as a
// guest and a nil handler discards events.
func (c *Client) Start(ctx context.Context, req Request, creds credentials.Provider, h Handler) (*Turn, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInProgress
	}

	t, err := c.start(ctx, req, creds, h)
	if err != nil {
		c.inFlight.Store(false)
		return nil, err
	}
	return t, nil
}

func (c *Client) start(ctx context.Context, req Request, creds credentials.Provider, h Handler) (*Turn, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if creds == nil {
		creds = credentials.Guest
	}
	if h == nil {
		h = HandlerFuncs{}
	}

	token, err := creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}

	body := req.normalized(c.cfg.Locale, c.clientInfo)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	turnCtx, cancel := context.WithCancelCause(ctx)
	httpReq, err := http.NewRequestWithContext(turnCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		cancel(err)
		return nil, fmt.Errorf("creating request: %w", err)
	}

	id := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("User-Agent", c.clientInfo)
	httpReq.Header.Set(RequestIDHeader, id)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	t := newTurn(id, cancel)
	s := &stream{
		client:  c,
		turn:    t,
		ctx:     turnCtx,
		cancel:  cancel,
		request: body,
		handler: h,
		logger:  c.turnLogger(id),
		tracker: turn.NewTracker(turn.Options{ExpectDetailLinks: c.cfg.ExpectDetailLinks}),
		started: time.Now(),
	}
	go s.run(httpReq)

	return t, nil
}

func (c *Client) turnLogger(id string) logging.Logger {
	if c.logger == nil {
		return logging.NewTurnLogger(id)
	}
	return c.logger.With("turn_id", id)
}

// release frees the client for the next turn.
func (c *Client) release() {
	c.inFlight.Store(false)
}
