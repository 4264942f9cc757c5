package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"go-storefront-sse/internal/infrastructure/logger"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketConnection implements the Connection interface for WebSocket
// clients. Every record is sent as one text message.
type WebSocketConnection struct {
	*stream
	conn *websocket.Conn
}

var _ Connection = (*WebSocketConnection)(nil)

func NewWebSocketConnection(
	ctx context.Context,
	id string,
	conn *websocket.Conn,
	opts StreamOptions,
	logger logger.Logger,
) *WebSocketConnection {
	return &WebSocketConnection{
		stream: newStream(ctx, id, opts, logger),
		conn:   conn,
	}
}

// Type returns the connection type
func (c *WebSocketConnection) Type() string {
	return "websocket"
}

// Serve runs the write loop on the calling goroutine and a read loop that
// only watches for the peer going away. It closes the connection and the
// underlying socket before returning.
func (c *WebSocketConnection) Serve() error {
	defer func() {
		c.Close()
		c.conn.Close()
	}()

	c.setupReadDeadline()
	go c.readPump()

	ping, stop := c.keepAliveChan()
	defer stop()

	for {
		select {
		case frame := <-c.frames:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Errorf("Failed to write message: %v", err)
				return fmt.Errorf("writing message: %w", err)
			}

		case <-ping:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Errorf("Failed to send ping: %v", err)
				return fmt.Errorf("writing ping: %w", err)
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = c.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			return nil
		}
	}
}

// setupReadDeadline expects a pong within two ping periods when pings are on.
func (c *WebSocketConnection) setupReadDeadline() {
	if c.opts.KeepAliveInterval == 0 {
		return
	}
	pongTimeout := 2 * c.opts.KeepAliveInterval
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
}

// readPump discards client messages; its only job is to notice closure.
func (c *WebSocketConnection) readPump() {
	defer c.Close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				c.logger.Warnf("WebSocket read error: %v", err)
			}
			return
		}
	}
}
