// Package broker feeds order-change notifications published on a NATS
// subject into the ingestion service, as an alternative to HTTP push.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"go-storefront-sse/internal/application/ingest"
	"go-storefront-sse/internal/infrastructure/logger"
)

const sourceNATS = "nats"

// Ingester is implemented by ingest.Service.
type Ingester interface {
	Ingest(ctx context.Context, source string, env ingest.Envelope) ingest.Ack
}

// NATSSource subscribes to one subject and ingests every message as an
// encoded-string envelope.
type NATSSource struct {
	conn     *nats.Conn
	subject  string
	ingester Ingester
	logger   logger.Logger
}

// NewNATSSource connects with automatic reconnection. Extra options are
// appended to the defaults.
func NewNATSSource(url, subject string, ing Ingester, log logger.Logger, opts ...nats.Option) (*NATSSource, error) {
	l := log.WithFields(logger.Fields{"component": "broker", "subject": subject})
	defaults := []nats.Option{
		nats.Name("storefront-sse"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSource{conn: nc, subject: subject, ingester: ing, logger: l}, nil
}

// Run subscribes and blocks until ctx is done, then drains the subscription
// and closes the connection.
func (s *NATSSource) Run(ctx context.Context) error {
	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		s.ingester.Ingest(ctx, sourceNATS, ingest.Envelope{Body: msg.Data, Kind: ingest.KindText})
	})
	if err != nil {
		s.conn.Close()
		return fmt.Errorf("subscribing to %s: %w", s.subject, err)
	}
	// Make sure the server knows about the subscription before reporting
	// readiness, so publishes from other connections are routed to us.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		s.conn.Close()
		return fmt.Errorf("flushing subscription: %w", err)
	}
	s.logger.Info("NATS ingestion started")

	<-ctx.Done()

	// Drain lets in-flight messages finish, then closes the connection.
	if err := s.conn.Drain(); err != nil {
		s.logger.Warnf("Draining NATS connection: %v", err)
		s.conn.Close()
	}
	s.logger.Info("NATS ingestion stopped")
	return nil
}
