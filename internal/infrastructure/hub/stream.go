package hub

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"go-storefront-sse/internal/infrastructure/logger"
)

// StreamOptions tunes the per-connection writer.
type StreamOptions struct {
	// BufferSize bounds the records queued for a connection. Send fails with
	// ErrBufferFull once it is reached and that record is dropped for that
	// connection only, even though it is still open.
	BufferSize int
	// KeepAliveInterval is the idle ping period; zero disables pings.
	KeepAliveInterval time.Duration
	Clock             clockwork.Clock
}

func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		BufferSize:        16,
		KeepAliveInterval: 30 * time.Second,
		Clock:             clockwork.NewRealClock(),
	}
}

func (o StreamOptions) withDefaults() StreamOptions {
	d := DefaultStreamOptions()
	if o.BufferSize <= 0 {
		o.BufferSize = d.BufferSize
	}
	if o.KeepAliveInterval < 0 {
		o.KeepAliveInterval = 0
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	return o
}

// stream carries the state shared by every transport: identity, lifecycle
// and the bounded queue of serialized records drained by the transport's
// Serve loop.
type stream struct {
	id     string
	frames chan []byte
	state  atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	opts   StreamOptions
	logger logger.Logger
}

func newStream(ctx context.Context, id string, opts StreamOptions, log logger.Logger) *stream {
	opts = opts.withDefaults()
	sctx, cancel := context.WithCancel(ctx)
	return &stream{
		id:     id,
		frames: make(chan []byte, opts.BufferSize),
		ctx:    sctx,
		cancel: cancel,
		opts:   opts,
		logger: log.WithField("connection_id", id),
	}
}

func (s *stream) ID() string { return s.id }

func (s *stream) Send(frame []byte) error {
	if s.IsClosed() {
		return ErrConnectionClosed
	}
	select {
	case s.frames <- frame:
		return nil
	default:
		return ErrBufferFull
	}
}

func (s *stream) Activate() bool {
	return s.state.CompareAndSwap(int32(StateOpen), int32(StateActive))
}

// Close marks the stream closed and cancels its context. The frame queue is
// left open so a racing Send cannot panic.
func (s *stream) Close() error {
	if State(s.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	s.cancel()
	return nil
}

func (s *stream) IsClosed() bool { return s.State() == StateClosed }

func (s *stream) State() State { return State(s.state.Load()) }

// Context is cancelled when the stream closes or its parent context ends.
func (s *stream) Context() context.Context { return s.ctx }

// keepAliveChan returns the ping ticker channel, or nil when pings are off.
func (s *stream) keepAliveChan() (<-chan time.Time, func()) {
	if s.opts.KeepAliveInterval == 0 {
		return nil, func() {}
	}
	ticker := s.opts.Clock.NewTicker(s.opts.KeepAliveInterval)
	return ticker.Chan(), ticker.Stop
}
