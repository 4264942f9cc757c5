package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"go-storefront-sse/internal/infrastructure/logger"
	"go-storefront-sse/internal/infrastructure/metrics"
)

// ConnectedRecord is written to every connection as it is registered, so a
// client can tell an open but quiet stream from one that never opened.
var ConnectedRecord = []byte(`{"type":"connected"}`)

// BroadcastResult summarizes one broadcast. Delivery failures are counted,
// never returned as errors.
type BroadcastResult struct {
	Recipients int
	Delivered  int
	Failed     int
	// Err is set only when the event could not be serialized, in which case
	// nothing was sent.
	Err error
}

// Hub owns the live set of client connections.
type Hub struct {
	connections   map[string]Connection
	connectionsMu sync.RWMutex

	logger  logger.Logger
	metrics *metrics.Metrics
}

type Option func(*Hub)

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// New creates an empty Hub.
func New(logger logger.Logger, opts ...Option) *Hub {
	h := &Hub{
		connections: make(map[string]Connection),
		logger:      logger.WithField("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register activates conn, queues the connected record on it and adds it to
// the live set. The record is queued before the connection becomes visible to
// Broadcast, so it always precedes broadcast records. Registering the same
// connection twice is not supported.
func (h *Hub) Register(conn Connection) error {
	if !conn.Activate() {
		return fmt.Errorf("registering %s: %w", conn.ID(), ErrConnectionClosed)
	}
	if err := conn.Send(ConnectedRecord); err != nil {
		return fmt.Errorf("acknowledging %s: %w", conn.ID(), err)
	}

	h.connectionsMu.Lock()
	h.connections[conn.ID()] = conn
	total := len(h.connections)
	h.connectionsMu.Unlock()

	h.metrics.ConnectionOpened(conn.Type())
	h.logger.Infof("Connection %s registered (type: %s, total: %d)", conn.ID(), conn.Type(), total)
	return nil
}

// Unregister removes conn from the live set. Removing a connection that is
// not present is a no-op.
func (h *Hub) Unregister(conn Connection) {
	h.connectionsMu.Lock()
	current, exists := h.connections[conn.ID()]
	exists = exists && current == conn
	if exists {
		delete(h.connections, conn.ID())
	}
	total := len(h.connections)
	h.connectionsMu.Unlock()

	if exists {
		h.metrics.ConnectionClosed(conn.Type())
		h.logger.Infof("Connection %s unregistered (total: %d)", conn.ID(), total)
	}
}

// Broadcast serializes event once and queues it on every connection present
// when the call starts. A failing connection is logged and skipped; it stays
// registered until its transport unregisters it.
func (h *Hub) Broadcast(event any) BroadcastResult {
	frame, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("Failed to serialize broadcast event: %v", err)
		return BroadcastResult{Err: fmt.Errorf("serializing event: %w", err)}
	}

	connections := h.Connections()
	result := BroadcastResult{Recipients: len(connections)}
	for _, conn := range connections {
		if err := conn.Send(frame); err != nil {
			result.Failed++
			h.logger.Warnf("Failed to send broadcast to connection %s: %v", conn.ID(), err)
			continue
		}
		result.Delivered++
	}

	h.metrics.BroadcastDone(result.Delivered, result.Failed)
	h.logger.Debugf("Broadcasted event to %d/%d connections", result.Delivered, result.Recipients)
	return result
}

// GetConnection returns a connection by ID
func (h *Hub) GetConnection(connID string) (Connection, bool) {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()

	conn, exists := h.connections[connID]
	return conn, exists
}

// Connections returns a snapshot of the live set.
func (h *Hub) Connections() []Connection {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()

	connections := make([]Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		connections = append(connections, conn)
	}
	return connections
}

// ConnectionCount returns the number of registered connections
func (h *Hub) ConnectionCount() int {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()
	return len(h.connections)
}
