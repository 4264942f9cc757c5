package websocket

import (
	"github.com/gin-gonic/gin"

	"go-storefront-sse/internal/infrastructure/hub"
	"go-storefront-sse/internal/infrastructure/logger"
)

// InitWebSocketRouter initializes WebSocket routes
func InitWebSocketRouter(
	logger logger.Logger,
	hubInstance *hub.Hub,
	opts hub.StreamOptions,
	rg *gin.RouterGroup,
) {
	wsHandler := NewWebSocketHandler(hubInstance, opts, logger)
	rg.GET("/ws/cart-updates", wsHandler.Connect)
}
