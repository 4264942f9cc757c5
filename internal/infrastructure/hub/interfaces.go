package hub

import (
	"context"
	"errors"
)

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrBufferFull       = errors.New("connection send buffer is full")
)

// State is the lifecycle position of a client stream. Transitions only move
// forward: open -> active -> closed, or open -> closed.
type State int32

const (
	StateOpen State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection represents one long-lived outbound stream (SSE, WebSocket, ...).
// The hub only writes to it and identifies it; the transport that created it
// owns the underlying resource and reports closure through Hub.Unregister.
type Connection interface {
	ID() string
	Type() string
	// Send queues an already-serialized record without blocking.
	Send(frame []byte) error
	// Activate moves an open connection to active. It reports false when the
	// connection is no longer open.
	Activate() bool
	Close() error
	IsClosed() bool
	State() State
	Context() context.Context
}
