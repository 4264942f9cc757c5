package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"go-storefront-sse/internal/application/ingest"
	"go-storefront-sse/internal/infrastructure/broker"
	"go-storefront-sse/internal/infrastructure/config"
	"go-storefront-sse/internal/infrastructure/hub"
	"go-storefront-sse/internal/infrastructure/logger"
	"go-storefront-sse/internal/infrastructure/metrics"
	"go-storefront-sse/internal/infrastructure/server"
	"go-storefront-sse/internal/infrastructure/upstream"
	"go-storefront-sse/internal/interfaces/pubsub"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "storefront-sse",
		Short:         "Storefront frontend server with live order updates",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml if present)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "topology",
		Short: "Print the pub/sub subscription declaration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent([]pubsub.Subscription{subscriptionOf(cfg)}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	})

	return root
}

func subscriptionOf(cfg *config.Config) pubsub.Subscription {
	return pubsub.Subscription{
		PubSubName: cfg.PubSub.Name,
		Topic:      cfg.PubSub.Topic,
		Route:      cfg.PubSub.Route,
	}
}

func runServe(parent context.Context, configPath string) error {
	sctx := WithSignal(parent)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogrusLogger(cfg.Log.LoggerConfig())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	hubInstance := hub.New(log, hub.WithMetrics(m))
	ingestSvc := ingest.NewService(hubInstance, log, m)

	client := upstream.NewClient(upstream.Config{
		BaseURL:         cfg.Upstream.BaseURL,
		Timeout:         cfg.Upstream.Timeout,
		BreakerFailures: cfg.Upstream.BreakerFailures,
		BreakerOpenFor:  cfg.Upstream.BreakerOpenFor,
	}, []string{cfg.Upstream.OrdersAppID, cfg.Upstream.ProductsAppID}, log, m)
	store := upstream.NewStore(client, cfg.Upstream.OrdersAppID, cfg.Upstream.ProductsAppID)

	router := InitRouter(routerDeps{
		logger:   log,
		hub:      hubInstance,
		ingester: ingestSvc,
		store:    store,
		registry: registry,
		stream: hub.StreamOptions{
			BufferSize:        cfg.Stream.BufferSize,
			KeepAliveInterval: cfg.Stream.KeepAliveInterval,
		},
		subscription: subscriptionOf(cfg),
		staticDir:    cfg.StaticDir,
	})

	httpSrv := server.NewHTTPServer(router, server.Options{
		Addr:        cfg.HTTP.Addr,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
	}, log)

	var natsSrc *broker.NATSSource
	if cfg.NATS.URL != "" {
		natsSrc, err = broker.NewNATSSource(cfg.NATS.URL, cfg.NATS.Subject, ingestSvc, log)
		if err != nil {
			return err
		}
	}

	log.Infof("Starting storefront server on %s (subscription %s/%s -> %s)",
		cfg.HTTP.Addr, cfg.PubSub.Name, cfg.PubSub.Topic, cfg.PubSub.Route)

	app := newApplication(log, httpSrv, natsSrc, cfg.HTTP.ShutdownTimeout)
	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
		return err
	}
	return nil
}
