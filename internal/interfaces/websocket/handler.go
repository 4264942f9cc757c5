package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-storefront-sse/internal/infrastructure/hub"
	"go-storefront-sse/internal/infrastructure/logger"
)

// WebSocketHandler serves the same order-update stream as the SSE endpoint
// over WebSocket.
type WebSocketHandler struct {
	hub      *hub.Hub
	opts     hub.StreamOptions
	logger   logger.Logger
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(
	hubInstance *hub.Hub,
	opts hub.StreamOptions,
	logger logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hubInstance,
		opts:   opts,
		logger: logger.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Subscribers are not authenticated; any origin may listen.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect upgrades the request and streams records until either side closes.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	connID := "ws-" + uuid.NewString()
	conn := hub.NewWebSocketConnection(c.Request.Context(), connID, ws, h.opts, h.logger)

	if err := h.hub.Register(conn); err != nil {
		h.logger.Errorf("Failed to register WebSocket connection: %v", err)
		_ = ws.Close()
		return
	}
	defer h.hub.Unregister(conn)

	if err := conn.Serve(); err != nil {
		h.logger.Warnf("WebSocket connection %s ended with error: %v", connID, err)
		return
	}
	h.logger.Infof("WebSocket connection %s disconnected", connID)
}
