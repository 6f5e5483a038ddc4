package web

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

// ErrConnClosed reports a write against a connection already known to
// be dead.
var ErrConnClosed = errors.New("connection closed")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// wsConn adapts a gorilla websocket connection to the session's Conn
// interface. Writes are serialized by a mutex because background image
// tasks send frames concurrently with the turn loop.
type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected atomic.Bool
	pingDone  chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn:     conn,
		pingDone: make(chan struct{}),
	}
	c.connected.Store(true)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go c.pingLoop()
	return c
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.pingDone:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.connected.Store(false)
				return
			}
		}
	}
}

func (c *wsConn) IsConnected() bool {
	return c.connected.Load()
}

func (c *wsConn) SendText(data []byte) error {
	if !c.connected.Load() {
		return ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.connected.Store(false)
		return fmt.Errorf("websocket write failed: %w", err)
	}
	return nil
}

func (c *wsConn) ReceiveText(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.connected.Store(false)
		return nil, fmt.Errorf("websocket read failed: %w", err)
	}
	return data, nil
}

func (c *wsConn) Close() error {
	c.connected.Store(false)
	var err error
	c.closeOnce.Do(func() {
		close(c.pingDone)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
