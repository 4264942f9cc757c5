package pubsub

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-storefront-sse/internal/application/ingest"
	"go-storefront-sse/internal/infrastructure/logger"
)

// maxNotificationBytes bounds a single push body. Larger bodies are
// truncated and end up malformed.
const maxNotificationBytes = 1 << 20

type Ingester interface {
	Ingest(ctx context.Context, source string, env ingest.Envelope) ingest.Ack
}

// Subscription is one entry of the topology declaration returned to the
// sidecar.
type Subscription struct {
	PubSubName string `json:"pubsubname"`
	Topic      string `json:"topic"`
	Route      string `json:"route"`
}

type Handler struct {
	ingester     Ingester
	subscription Subscription
	logger       logger.Logger
}

func NewHandler(ing Ingester, sub Subscription, logger logger.Logger) *Handler {
	return &Handler{
		ingester:     ing,
		subscription: sub,
		logger:       logger.WithField("handler", "pubsub"),
	}
}

// Subscriptions declares the topic this service consumes.
func (h *Handler) Subscriptions(c *gin.Context) {
	c.JSON(http.StatusOK, []Subscription{h.subscription})
}

// Publish receives a pushed notification. The publisher always gets a
// success acknowledgement, whatever the body looks like.
func (h *Handler) Publish(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBytes))
	if err != nil {
		h.logger.Warnf("Reading notification body: %v", err)
	}

	env := ingest.Envelope{
		Body: body,
		Kind: ingest.KindFromContentType(c.ContentType()),
	}
	ack := h.ingester.Ingest(c.Request.Context(), "http", env)

	c.JSON(http.StatusOK, ack)
}
