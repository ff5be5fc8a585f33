package event

import (
	"context"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/cockpit/internal/auth"
	"github.com/Iron-Ham/cockpit/internal/errors"
	"github.com/Iron-Ham/cockpit/internal/logging"
)

// DefaultReconnectDelay is the pause between a dropped connection and the
// next dial attempt.
const DefaultReconnectDelay = 3 * time.Second

// Handler receives each decoded message. Handlers are invoked synchronously
// from the channel's single reader goroutine, one message at a time, in
// arrival order.
type Handler func(Message)

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Credentials supplies the bearer token appended to the dial URL.
	Credentials *auth.Store

	// Handler receives every decoded message.
	Handler Handler

	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration

	// Logger defaults to a no-op logger.
	Logger *logging.Logger
}

// Channel is the persistent event-channel connection. It dials the server,
// reads frames sequentially, dispatches decoded messages to the handler, and
// reconnects after transport failures until its context is cancelled.
type Channel struct {
	cfg    ChannelConfig
	logger *logging.Logger

	// mu serializes writes: gorilla/websocket does not support concurrent
	// writers on one connection.
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewChannel creates a Channel. The handler is required.
func NewChannel(cfg ChannelConfig) (*Channel, error) {
	if cfg.URL == "" {
		return nil, errors.NewValidationError("channel URL cannot be empty").WithField("URL")
	}
	if cfg.Handler == nil {
		return nil, errors.NewValidationError("channel handler cannot be nil").WithField("Handler")
	}
	if cfg.Credentials == nil {
		cfg.Credentials = auth.NewStore("")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Channel{
		cfg:    cfg,
		logger: logger.WithComponent("event-channel"),
	}, nil
}

// Run dials the server and processes messages until ctx is cancelled. Dropped
// connections are redialed after the configured delay; Run only returns the
// context's error.
func (c *Channel) Run(ctx context.Context) error {
	for {
		if err := c.connectAndRead(ctx); err != nil {
			c.logger.Warn("event channel disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// connectAndRead dials once and reads frames until the connection fails or
// the context is cancelled.
func (c *Channel) connectAndRead(ctx context.Context) error {
	endpoint, err := c.dialURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return errors.NewChannelError("dial failed", err).WithEndpoint(c.cfg.URL)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("event channel connected", "endpoint", c.cfg.URL)

	// Close the transport when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errors.NewChannelError("read failed", err).WithEndpoint(c.cfg.URL)
		}
		c.dispatch(data)
	}
}

// dispatch decodes one frame and hands it to the handler. A panicking handler
// is recovered so one bad message cannot stop subsequent messages from being
// processed.
func (c *Channel) dispatch(data []byte) {
	msg := decodeMessage(data)
	if msg == nil {
		c.logger.Debug("dropping unrecognized channel frame", "bytes", len(data))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("message handler panicked",
				"type", msg.MessageType(), "panic", r, "stack", string(debug.Stack()))
		}
	}()
	c.cfg.Handler(msg)
}

// Send writes a JSON frame to the server. Returns ErrChannelNotConnected when
// no transport is open.
func (c *Channel) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.ErrChannelNotConnected
	}
	return c.conn.WriteJSON(v)
}

// Connected reports whether a transport is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// dialURL appends the bearer token as a query parameter, matching the
// server's websocket auth contract.
func (c *Channel) dialURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", errors.NewValidationError("invalid channel URL").WithField("URL").WithValue(c.cfg.URL)
	}
	if token := c.cfg.Credentials.Token(); token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
