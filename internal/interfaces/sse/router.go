package sse

import (
	"github.com/gin-gonic/gin"

	"go-storefront-sse/internal/infrastructure/hub"
	"go-storefront-sse/internal/infrastructure/logger"
)

func InitSSERouter(
	logger logger.Logger,
	hubInstance *hub.Hub,
	opts hub.StreamOptions,
	rg *gin.RouterGroup,
) {
	sseHandler := NewServerSentEventHandler(hubInstance, opts, logger)

	rg.GET("/api/cart-updates", sseHandler.Connect)
	rg.GET("/api/v1/connections", sseHandler.GetConnections)
}
