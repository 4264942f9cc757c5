package upstream

import (
	"context"
	"encoding/json"
	"net/http"
)

// AddItemRequest is the body the order service expects when appending an
// item to the current order. Product IDs are checked by the order service;
// zero is a valid ID.
type AddItemRequest struct {
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"   binding:"required,gt=0"`
	Price     float64 `json:"price"      binding:"gte=0"`
	Name      string  `json:"name"       binding:"required"`
}

// Store is the catalog and order surface exposed to the browser.
type Store struct {
	client      *Client
	ordersApp   string
	productsApp string
}

func NewStore(client *Client, ordersApp, productsApp string) *Store {
	return &Store{client: client, ordersApp: ordersApp, productsApp: productsApp}
}

func (s *Store) Products(ctx context.Context) (json.RawMessage, error) {
	return s.client.Invoke(ctx, s.productsApp, http.MethodGet, "products", nil)
}

func (s *Store) CurrentOrder(ctx context.Context) (json.RawMessage, error) {
	return s.client.Invoke(ctx, s.ordersApp, http.MethodGet, "orders/current", nil)
}

func (s *Store) AddItem(ctx context.Context, item AddItemRequest) (json.RawMessage, error) {
	return s.client.Invoke(ctx, s.ordersApp, http.MethodPost, "orders/current/items", item)
}
