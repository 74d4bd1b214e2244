package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeBufferSize = 100
	writeTimeout    = 5 * time.Second
)

// Connection wraps a websocket connection with a single-writer goroutine.
// All outbound frames go through writeCh so concurrent broadcasts never
// race on the underlying connection.
type Connection struct {
	id        string
	conn      *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	username string
}

// NewConnection wraps an upgraded websocket connection and starts its
// write loop. The connection ID is assigned here and never changes.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      uuid.New().String(),
		conn:    conn,
		writeCh: make(chan []byte, writeBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

// ID returns the server-assigned connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Username returns the display name recorded for this connection.
func (c *Connection) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// SetUsername records the display name for this connection.
func (c *Connection) SetUsername(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = name
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues v for delivery on the write loop. It returns
// ErrConnectionClosed once the connection is shut down and
// ErrWriteTimeout when the write buffer stays full.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts down the write loop and the underlying connection.
// Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}
