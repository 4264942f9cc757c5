package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go-storefront-sse/internal/infrastructure/logger"
)

type Options struct {
	Addr        string
	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

type HTTPServer struct {
	handler http.Handler
	opts    Options
	logger  logger.Logger

	mu      sync.Mutex
	srv     *http.Server
	stopped bool
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(handler http.Handler, opts Options, logger logger.Logger) *HTTPServer {
	return &HTTPServer{
		handler: handler,
		opts:    opts,
		logger:  logger.WithField("component", "http"),
		srv: &http.Server{
			Handler:     handler,
			ReadTimeout: opts.ReadTimeout,
			// No WriteTimeout: subscribe streams are long-lived writes.
			IdleTimeout: opts.IdleTimeout,
		},
	}
}

// Start serves until Stop is called. Request contexts derive from ctx, so
// cancelling it ends every open stream.
func (h *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return err
	}
	return h.Serve(ctx, ln)
}

// Serve returns immediately when Stop already ran or ctx is done.
func (h *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	h.mu.Lock()
	if h.stopped || ctx.Err() != nil {
		h.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	h.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	h.mu.Unlock()

	h.logger.Infof("Listening on %s", ln.Addr())
	err := h.srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Stop shuts the server down. A Serve that has not started yet will not
// start.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	return h.srv.Shutdown(ctx)
}
