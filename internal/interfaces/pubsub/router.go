package pubsub

import (
	"github.com/gin-gonic/gin"

	"go-storefront-sse/internal/infrastructure/logger"
)

// InitPubSubRouter mounts the topology declaration and the push route.
func InitPubSubRouter(
	logger logger.Logger,
	ing Ingester,
	sub Subscription,
	rg *gin.RouterGroup,
) {
	h := NewHandler(ing, sub, logger)

	rg.GET("/dapr/subscribe", h.Subscriptions)
	rg.POST(sub.Route, h.Publish)
}
