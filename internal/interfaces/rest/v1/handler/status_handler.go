package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-storefront-sse/internal/infrastructure/hub"
)

type StatusHandler struct {
	hub *hub.Hub
	now func() time.Time
}

func NewStatusHandler(hubInstance *hub.Hub) *StatusHandler {
	return &StatusHandler{hub: hubInstance, now: time.Now}
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HubStatus reports how many streams are registered and their states.
func (h *StatusHandler) HubStatus(c *gin.Context) {
	connections := h.hub.Connections()
	byType := make(map[string]int)
	for _, conn := range connections {
		byType[conn.Type()]++
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"connections": len(connections),
		"by_type":     byType,
	})
}
