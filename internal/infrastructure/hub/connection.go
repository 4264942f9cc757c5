package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-contrib/sse"

	"go-storefront-sse/internal/infrastructure/logger"
)

const sseKeepAlive = ": keepalive\n\n"

// SSEConnection implements the Connection interface for Server-Sent Events.
// Each record is written as a single "data:" line holding the JSON value,
// terminated by a blank line.
type SSEConnection struct {
	*stream
	writer http.ResponseWriter
}

var _ Connection = (*SSEConnection)(nil)

// NewSSEConnection wraps w. ctx should be the request context so the stream
// ends when the client goes away.
func NewSSEConnection(
	ctx context.Context,
	id string,
	w http.ResponseWriter,
	opts StreamOptions,
	logger logger.Logger,
) *SSEConnection {
	conn := &SSEConnection{
		stream: newStream(ctx, id, opts, logger),
		writer: w,
	}
	conn.setupSSEHeaders()
	return conn
}

// Type returns the connection type
func (c *SSEConnection) Type() string {
	return "sse"
}

// Serve writes queued records until the context ends or a write fails. It
// must run on the goroutine that owns the ResponseWriter and it closes the
// connection before returning.
func (c *SSEConnection) Serve() error {
	defer c.Close()

	keepAlive, stop := c.keepAliveChan()
	defer stop()

	c.writer.WriteHeader(http.StatusOK)
	c.flush()

	for {
		select {
		case frame := <-c.frames:
			if err := sse.Encode(c.writer, sse.Event{Data: string(frame)}); err != nil {
				c.logger.Errorf("Failed to write event: %v", err)
				return fmt.Errorf("writing event: %w", err)
			}
			c.flush()

		case <-keepAlive:
			if _, err := io.WriteString(c.writer, sseKeepAlive); err != nil {
				c.logger.Errorf("Failed to send keep-alive: %v", err)
				return fmt.Errorf("writing keep-alive: %w", err)
			}
			c.flush()

		case <-c.ctx.Done():
			return nil
		}
	}
}

func (c *SSEConnection) flush() {
	if flusher, ok := c.writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (c *SSEConnection) setupSSEHeaders() {
	h := c.writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // For nginx
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Cache-Control")
}
