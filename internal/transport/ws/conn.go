package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

// closeGrace bounds how long Close waits to queue the closure frame.
const closeGrace = time.Second

// Conn adapts a websocket connection to protocol.Conn. Every frame is one
// JSON text message.
type Conn struct {
	raw *websocket.Conn
	mu  sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established websocket connection. A zero timeout disables
// the corresponding deadline.
//
// Precondition: raw must be an open websocket connection.
// Postcondition: Returns a Conn ready for Send and Receive.
func NewConn(raw *websocket.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Send encodes v as JSON and writes it as a single text message.
// Concurrent senders are serialized.
func (c *Conn) Send(v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.raw.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing to %s: %w", c.RemoteAddr(), err)
	}
	return nil
}

// Receive blocks until the next text message. Binary messages are rejected
// as protocol violations.
func (c *Conn) Receive() ([]byte, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	kind, data, err := c.raw.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading from %s: %w", c.RemoteAddr(), err)
	}
	if kind != websocket.TextMessage {
		return nil, fmt.Errorf("%w: expected text frame, got type %d", protocol.ErrProtocolViolation, kind)
	}
	return data, nil
}

// Close sends a normal closure frame and closes the socket. Safe to call more
// than once and concurrently with a blocked Send, which then fails.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.closeErr = c.raw.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer's network address.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}
