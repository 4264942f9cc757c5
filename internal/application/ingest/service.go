package ingest

import (
	"context"

	"go-storefront-sse/internal/infrastructure/hub"
	"go-storefront-sse/internal/infrastructure/logger"
	"go-storefront-sse/internal/infrastructure/metrics"
)

// AckSuccess is the only status Ingest ever reports.
const AckSuccess = "SUCCESS"

// Broadcaster is the part of the hub ingestion depends on.
type Broadcaster interface {
	Broadcast(event any) hub.BroadcastResult
}

// Ack is returned to the publisher.
type Ack struct {
	Status     string  `json:"status"`
	Outcome    Outcome `json:"-"`
	Recipients int     `json:"-"`
}

type Service struct {
	broadcaster Broadcaster
	logger      logger.Logger
	metrics     *metrics.Metrics
}

func NewService(b Broadcaster, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		broadcaster: b,
		logger:      log.WithField("component", "ingest"),
		metrics:     m,
	}
}

// Ingest normalizes env, broadcasts the result and acknowledges. Every
// branch broadcasts something and acknowledges success. source labels the
// delivery path in logs and metrics.
func (s *Service) Ingest(ctx context.Context, source string, env Envelope) Ack {
	log := s.logger.WithContext(ctx).WithField("source", source)

	res := Normalize(env)
	if res.Err != nil {
		log.Warnf("Normalizing %s notification failed, broadcasting empty event: %v", env.Kind, res.Err)
	}
	s.metrics.NotificationIngested(source, res.Outcome.String())

	delivery := s.broadcaster.Broadcast(res.Event)
	log.Infof("Received order update (%s), dispatched to %d/%d connections",
		res.Outcome, delivery.Delivered, delivery.Recipients)

	return Ack{Status: AckSuccess, Outcome: res.Outcome, Recipients: delivery.Recipients}
}
