// Package realtime implements a Centrifuge JSON protocol client over gorilla/websocket.
//
// The client keeps a declarative set of desired channels. Subscribe and Unsubscribe
// edit that set and, while connected, send the matching command. After every
// (re)connect the whole set is subscribed again, so callers never resubscribe by hand.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("realtime client closed")

// State is the connection state reported to the Handler.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)

// Handler receives publications and state transitions.
// Calls are made from the client's read goroutine, one at a time, in arrival order.
type Handler interface {
	HandlePublication(channel string, data json.RawMessage)
	HandleState(state State, err error)
}

// Config configures client behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
	// ReadTimeout is timeout for reading messages. Servers ping every 25s.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// ClientName is sent in the connect command.
	ClientName string
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		ClientName:        "go",
	}
}

// Option configures Client.
type Option func(*Client)

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.config = cfg
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is a single Centrifuge connection with automatic reconnect.
type Client struct {
	endpoint string
	token    string
	config   Config
	handler  Handler
	logger   *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected atomic.Bool
	closed    atomic.Bool
	started   atomic.Bool
	requestID atomic.Uint32

	// channels is the desired subscription set, replayed after reconnect
	channels   map[string]struct{}
	channelsMu sync.Mutex

	// connectID is the request id of the pending connect command
	connectID atomic.Uint32

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewClient creates a client. Nothing is dialed until Start.
func NewClient(endpoint, token string, handler Handler, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		token:    token,
		config:   DefaultConfig(),
		handler:  handler,
		logger:   zap.NewNop(),
		channels: make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("realtime")
	return c
}

// Start launches the connection loop. It returns immediately; progress is
// reported through Handler.HandleState. Calling Start twice is a no-op.
func (c *Client) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.started.Swap(true) {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Subscribe adds channel to the desired set. Subscribing to a channel already
// in the set is a no-op.
func (c *Client) Subscribe(channel string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()

	if _, ok := c.channels[channel]; ok {
		return nil
	}
	c.channels[channel] = struct{}{}

	if !c.connected.Load() {
		return nil
	}
	if err := c.send(command{ID: c.requestID.Add(1), Subscribe: &channelRequest{Channel: channel}}); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return nil
}

// Unsubscribe removes channel from the desired set. Unknown channels are ignored.
func (c *Client) Unsubscribe(channel string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()

	if _, ok := c.channels[channel]; !ok {
		return nil
	}
	delete(c.channels, channel)

	if !c.connected.Load() {
		return nil
	}
	if err := c.send(command{ID: c.requestID.Add(1), Unsubscribe: &channelRequest{Channel: channel}}); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", channel, err)
	}
	return nil
}

// Channels returns the desired subscription set, sorted.
func (c *Client) Channels() []string {
	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()

	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Connected reports whether the server accepted the connect command.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close stops the connection loop and closes the socket. Safe to call twice.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)
	if c.cancel != nil {
		c.cancel()
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

// run owns the connection lifecycle: dial, read until failure, back off, repeat.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.emit(StateConnecting, nil)

		established, err := c.session(ctx)
		c.connected.Store(false)

		if c.closed.Load() || ctx.Err() != nil {
			c.emit(StateDisconnected, nil)
			return
		}
		if err != nil {
			c.logger.Warn("session ended", zap.Error(err), zap.Duration("retry_in", delay))
			c.emit(StateError, err)
		}
		c.emit(StateDisconnected, nil)

		// Reset delay after a session that got through the handshake
		if established {
			delay = c.config.ReconnectDelay
		}

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// session dials, sends connect and reads until the connection fails.
// established reports whether the server accepted the connect command.
func (c *Client) session(ctx context.Context) (established bool, err error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	if c.closed.Load() {
		c.connMu.Unlock()
		conn.Close()
		return false, nil
	}
	c.conn = conn
	c.connMu.Unlock()

	defer func() {
		c.connMu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.connMu.Unlock()
		conn.Close()
	}()

	id := c.requestID.Add(1)
	c.connectID.Store(id)
	if err := c.send(command{ID: id, Connect: &connectRequest{Token: c.token, Name: c.config.ClientName}}); err != nil {
		return false, fmt.Errorf("write connect: %w", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, frame, err := conn.ReadMessage()
		if err != nil {
			return established, fmt.Errorf("read: %w", err)
		}

		replies, errs := decodeFrame(frame)
		for _, derr := range errs {
			c.logger.Debug("dropping undecodable reply", zap.Error(derr))
		}

		for i := range replies {
			ok, err := c.handleReply(&replies[i])
			if ok {
				established = true
			}
			if err != nil {
				return established, err
			}
		}
	}
}

// handleReply processes one server message. connectedNow is true when the
// reply accepted the connect command.
func (c *Client) handleReply(r *reply) (connectedNow bool, err error) {
	switch {
	case r.isPing():
		if err := c.sendRaw(pongFrame); err != nil {
			return false, fmt.Errorf("write pong: %w", err)
		}
		return false, nil

	case r.Push != nil:
		if r.Push.Disconnect != nil {
			return false, fmt.Errorf("server disconnect %d: %s", r.Push.Disconnect.Code, r.Push.Disconnect.Reason)
		}
		if r.Push.Pub != nil && c.handler != nil {
			c.handler.HandlePublication(r.Push.Channel, r.Push.Pub.Data)
		}
		return false, nil

	case r.ID != 0 && r.ID == c.connectID.Load():
		if r.Error != nil {
			return false, fmt.Errorf("connect rejected: %w", r.Error)
		}
		c.onConnected()
		return true, nil

	case r.Error != nil:
		// Subscribe/unsubscribe failures do not end the session
		c.logger.Warn("command rejected", zap.Uint32("id", r.ID), zap.Error(r.Error))
		return false, nil
	}
	return false, nil
}

// onConnected replays the desired channel set and reports the transition.
func (c *Client) onConnected() {
	c.channelsMu.Lock()
	c.connected.Store(true)
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	for _, ch := range channels {
		if err := c.send(command{ID: c.requestID.Add(1), Subscribe: &channelRequest{Channel: ch}}); err != nil {
			// Read loop will see the broken connection and reconnect
			c.logger.Warn("resubscribe failed", zap.String("channel", ch), zap.Error(err))
		}
	}
	c.channelsMu.Unlock()

	c.emit(StateConnected, nil)
}

func (c *Client) send(cmd command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	return c.sendRaw(payload)
}

func (c *Client) sendRaw(payload []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) emit(state State, err error) {
	if c.handler != nil {
		c.handler.HandleState(state, err)
	}
}
