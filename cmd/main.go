package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"go-storefront-sse/internal/infrastructure/broker"
	"go-storefront-sse/internal/infrastructure/logger"
	"go-storefront-sse/internal/infrastructure/server"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type Application struct {
	logger          logger.Logger
	httpSrv         server.Server
	natsSrc         *broker.NATSSource
	shutdownTimeout time.Duration
}

func newApplication(
	logger logger.Logger,
	httpSrv server.Server,
	natsSrc *broker.NATSSource,
	shutdownTimeout time.Duration,
) *Application {
	return &Application{
		logger:          logger.WithField("app", "storefront-sse"),
		httpSrv:         httpSrv,
		natsSrc:         natsSrc,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run blocks until ctx is cancelled or a component fails. Open streams end
// with the server's base context, so they unregister before Shutdown waits
// on them.
func (app *Application) Run(ctx context.Context) error {
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return app.httpSrv.Start(gctx)
	})

	if app.natsSrc != nil {
		eg.Go(func() error {
			return app.natsSrc.Run(gctx)
		})
	}

	eg.Go(func() error {
		<-gctx.Done()
		app.logger.Info("Shutting down")

		gracefulshutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			app.shutdownTimeout,
		)
		defer cancel()

		return app.httpSrv.Stop(gracefulshutdownCtx)
	})

	return eg.Wait()
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
