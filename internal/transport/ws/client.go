// Package ws maintains the single authenticated push connection to
// the game backend.
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"omcip.game/internal/protocol"
	"omcip.game/internal/tuning"
)

// Client is the push channel. One connection per session: repeated
// Connect calls before a Close are no-ops. While disconnected, Send
// reports false so callers can fall back to request/response delivery.
type Client struct {
	url   string
	token string
	log   *log.Logger
	tune  tuning.Tuning

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	handler   func(protocol.Envelope)
	cancel    context.CancelFunc
}

func NewClient(url, token string, tune tuning.Tuning, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Client{url: url, token: token, log: logger, tune: tune}
}

// OnMessage installs the inbound handler. Must be set before Connect;
// messages are dispatched from the read loop in arrival order.
func (c *Client) OnMessage(h func(protocol.Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Connect dials once and starts the read loop. The credential rides in
// the request header as an opaque bearer string.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return errClosed
	}
	c.conn = conn
	c.connected = true
	c.cancel = cancel
	c.mu.Unlock()

	go c.readLoop(runCtx, conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	dialer := websocket.Dialer{
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.url, header)
	return conn, err
}

// Send marshals data under the tag and queues it on the connection.
// The return is accepted-for-delivery, not delivery confirmation.
func (c *Client) Send(tag string, data any) bool {
	c.mu.Lock()
	conn, ok := c.conn, c.connected
	c.mu.Unlock()
	if !ok || conn == nil {
		return false
	}

	b, err := protocol.Encode(tag, data)
	if err != nil {
		c.log.Printf("encode %s: %v", tag, err)
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.log.Printf("write %s: %v", tag, err)
		c.markDisconnected(conn)
		return false
	}
	return true
}

// Connected reports current channel availability.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.markDisconnected(conn)
			select {
			case <-ctx.Done():
			default:
				c.reconnect(ctx)
			}
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type == "" {
			continue
		}
		env, err := protocol.DecodeEnvelope(msg)
		if err != nil {
			continue
		}
		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h(env)
		}
	}
}

// reconnect retries the dial with capped backoff. After the attempt
// budget runs out the channel stays down; request/response fallback
// carries the session from there.
func (c *Client) reconnect(ctx context.Context) {
	for attempt := 1; attempt <= c.tune.ReconnectAttempts; attempt++ {
		delay := c.tune.ReconnectDelay(attempt)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Printf("reconnect attempt %d/%d failed: %v", attempt, c.tune.ReconnectAttempts, err)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		c.log.Printf("reconnected after %d attempt(s)", attempt)
		c.readLoop(ctx, conn)
		return
	}
	c.log.Printf("reconnect attempts exhausted, push channel down")
}

func (c *Client) markDisconnected(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.connected = false
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// Close tears the connection down. The engine flushes pending state
// before calling this.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

type wsError string

func (e wsError) Error() string { return string(e) }

const errClosed = wsError("ws client closed")
