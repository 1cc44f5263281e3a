// Package channel maintains the websocket connection to the agent backend
// and fans inbound messages out to per-type handlers.
package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"deskmate/internal/domain"
	"deskmate/internal/infra/config"
)

// wsConn is the subset of *websocket.Conn the client uses. Tests substitute
// an in-memory implementation.
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

type dialFunc func(ctx context.Context, url string) (wsConn, error)

func defaultDial(ctx context.Context, url string) (wsConn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	// Tool results can carry full screenshots.
	conn.SetReadLimit(32 << 20)
	return conn, nil
}

// Client is a reconnecting websocket channel. Handlers are registered per
// message type and removed via the returned unsubscribe func.
type Client struct {
	url          string
	maxAttempts  int
	baseDelay    time.Duration
	sendTimeout  time.Duration
	logger       *slog.Logger
	dial         dialFunc
	after        func(d time.Duration, fn func()) // injectable timer
	mu           sync.Mutex
	conn         wsConn
	connected    bool
	closed       bool
	attempts     int
	nextID       int
	handlers     map[domain.MessageType]map[int]func(domain.ChannelMessage)
	dropHandlers map[int]func()
}

func NewClient(cfg config.BackendConfig, logger *slog.Logger) *Client {
	return &Client{
		url:          cfg.URL,
		maxAttempts:  cfg.ReconnectMaxAttempts,
		baseDelay:    cfg.ReconnectBaseDelay,
		sendTimeout:  cfg.SendTimeout,
		logger:       logger,
		dial:         defaultDial,
		after:        func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		handlers:     make(map[domain.MessageType]map[int]func(domain.ChannelMessage)),
		dropHandlers: make(map[int]func()),
	}
}

// Connect dials the backend. Calling it while already connected is a no-op,
// so every query cycle can call it unconditionally.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.url)
	if err != nil {
		return domain.NewDomainError("channel.connect", domain.ErrNotConnected, err.Error())
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Info("channel connected", "url", c.url)
	go c.readLoop(conn)
	return nil
}

// Connected reports whether the socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send marshals and writes one message. It fails fast when disconnected
// rather than queueing.
func (c *Client) Send(msg domain.ChannelMessage) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		return domain.NewDomainError("channel.send", domain.ErrNotConnected, string(msg.Type))
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return domain.NewDomainError("channel.send", err, "marshal "+string(msg.Type))
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.sendTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return domain.NewDomainError("channel.send", err, string(msg.Type))
	}
	return nil
}

// OnMessage registers a handler for one message type and returns its
// unsubscribe func.
func (c *Client) OnMessage(msgType domain.MessageType, handler func(domain.ChannelMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handlers[msgType] == nil {
		c.handlers[msgType] = make(map[int]func(domain.ChannelMessage))
	}
	id := c.nextID
	c.nextID++
	c.handlers[msgType][id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[msgType], id)
	}
}

// OnDisconnect registers a handler invoked whenever the connection drops.
func (c *Client) OnDisconnect(handler func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.dropHandlers[id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.dropHandlers, id)
	}
}

// HandlerCount reports how many message handlers are registered.
func (c *Client) HandlerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, hs := range c.handlers {
		n += len(hs)
	}
	return n
}

// Close shuts the connection down and disables reconnection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	return nil
}

func (c *Client) readLoop(conn wsConn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.handleDrop(conn, err)
			return
		}
		c.dispatch(data)
	}
}

// dispatch decodes one frame and fans it out. Malformed or unrecognized
// frames are logged and dropped; they never take the connection down.
func (c *Client) dispatch(data []byte) {
	var msg domain.ChannelMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	switch msg.Type {
	case domain.MessageText, domain.MessageToolRequest, domain.MessageComplete, domain.MessageError:
	case domain.MessageStatus:
		c.logger.Info("channel status", "status", msg.Status)
		return
	default:
		c.logger.Warn("dropping frame with unknown type", "type", msg.Type)
		return
	}

	c.mu.Lock()
	snapshot := make([]func(domain.ChannelMessage), 0, len(c.handlers[msg.Type]))
	for _, h := range c.handlers[msg.Type] {
		snapshot = append(snapshot, h)
	}
	c.mu.Unlock()

	// Handlers run outside the lock so they may register or unsubscribe.
	for _, h := range snapshot {
		h(msg)
	}
}

func (c *Client) handleDrop(conn wsConn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	closed := c.closed
	drops := make([]func(), 0, len(c.dropHandlers))
	for _, h := range c.dropHandlers {
		drops = append(drops, h)
	}
	c.mu.Unlock()

	c.logger.Warn("channel disconnected", "error", cause)
	for _, h := range drops {
		h()
	}

	if !closed {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms the next dial attempt with a linearly growing
// delay. After maxAttempts failures it gives up quietly; the next explicit
// Connect starts fresh.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	if attempt > c.maxAttempts {
		c.logger.Warn("reconnect attempts exhausted", "attempts", attempt-1)
		return
	}

	delay := c.baseDelay * time.Duration(attempt)
	c.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)

	c.after(delay, func() {
		c.mu.Lock()
		if c.connected || c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.dial(context.Background(), c.url)
		if err != nil {
			c.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
			c.scheduleReconnect()
			return
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.attempts = 0
		c.mu.Unlock()

		c.logger.Info("channel reconnected", "url", c.url)
		go c.readLoop(conn)
	})
}
