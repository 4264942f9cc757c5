package sse

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-storefront-sse/internal/infrastructure/hub"
	"go-storefront-sse/internal/infrastructure/logger"
)

type ServerSentEventHandler struct {
	hub    *hub.Hub
	opts   hub.StreamOptions
	logger logger.Logger
}

func NewServerSentEventHandler(
	hubInstance *hub.Hub,
	opts hub.StreamOptions,
	logger logger.Logger,
) *ServerSentEventHandler {
	return &ServerSentEventHandler{
		hub:    hubInstance,
		opts:   opts,
		logger: logger.WithField("handler", "sse"),
	}
}

// Connect opens an order-update stream. The connection stays registered
// until the client disconnects or the server shuts down.
func (h *ServerSentEventHandler) Connect(c *gin.Context) {
	connID := "sse-" + uuid.NewString()
	conn := hub.NewSSEConnection(c.Request.Context(), connID, c.Writer, h.opts, h.logger)

	if err := h.hub.Register(conn); err != nil {
		h.logger.Errorf("Failed to register connection: %v", err)
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	defer h.hub.Unregister(conn)

	if err := conn.Serve(); err != nil {
		h.logger.Warnf("SSE connection %s ended with error: %v", connID, err)
		return
	}
	h.logger.Infof("SSE connection %s disconnected", connID)
}

// GetConnections lists the registered connections of every transport.
func (h *ServerSentEventHandler) GetConnections(c *gin.Context) {
	connections := h.hub.Connections()
	connectionInfo := make([]gin.H, len(connections))

	for i, conn := range connections {
		connectionInfo[i] = gin.H{
			"id":    conn.ID(),
			"type":  conn.Type(),
			"state": conn.State().String(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"connections":       connectionInfo,
	})
}
