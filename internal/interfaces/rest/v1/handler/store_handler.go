package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-storefront-sse/internal/infrastructure/logger"
	"go-storefront-sse/internal/infrastructure/upstream"
)

// StoreGateway is the catalog and order surface the handler forwards to.
type StoreGateway interface {
	Products(ctx context.Context) (json.RawMessage, error)
	CurrentOrder(ctx context.Context) (json.RawMessage, error)
	AddItem(ctx context.Context, item upstream.AddItemRequest) (json.RawMessage, error)
}

type StoreHandler struct {
	store  StoreGateway
	logger logger.Logger
}

func NewStoreHandler(store StoreGateway, logger logger.Logger) *StoreHandler {
	return &StoreHandler{
		store:  store,
		logger: logger.WithField("handler", "store"),
	}
}

func (h *StoreHandler) GetProducts(c *gin.Context) {
	body, err := h.store.Products(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to get products")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *StoreHandler) GetCurrentOrder(c *gin.Context) {
	body, err := h.store.CurrentOrder(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to get current order")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *StoreHandler) AddOrderItem(c *gin.Context) {
	var req upstream.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request format: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid item format",
		})
		return
	}

	body, err := h.store.AddItem(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Failed to add item to cart")
		return
	}

	h.logger.Infof("Added product %d (x%d) to current order", req.ProductID, req.Quantity)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// fail maps an upstream error to a response. Error text from the transport
// is logged, never returned.
func (h *StoreHandler) fail(c *gin.Context, err error, message string) {
	h.logger.Errorf("%s: %v", message, err)

	var se *upstream.StatusError
	if errors.As(err, &se) {
		message = "service invocation failed"
	}
	c.JSON(upstream.StatusOf(err), gin.H{"error": message})
}
