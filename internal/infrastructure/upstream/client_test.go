package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront-sse/internal/infrastructure/logger"
)

func newTestStore(t *testing.T, handler http.HandlerFunc, failures uint32) (*Store, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:         srv.URL,
		Timeout:         time.Second,
		BreakerFailures: failures,
		BreakerOpenFor:  time.Minute,
	}, []string{"orders", "products"}, logger.Nop(), nil)
	return NewStore(client, "orders", "products"), client
}

func TestStore_Products(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1.0/invoke/products/method/products", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":1,"name":"Tea","price":3.5}]`)
	}, 5)

	raw, err := store.Products(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"Tea","price":3.5}]`, string(raw))
}

func TestStore_AddItemForwardsBody(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1.0/invoke/orders/method/orders/current/items", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var item AddItemRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		assert.Equal(t, AddItemRequest{ProductID: 2, Quantity: 3, Price: 1.25, Name: "Scone"}, item)

		_, _ = io.WriteString(w, `{"id":1,"items":[{"product_id":2,"quantity":3,"price":1.25,"name":"Scone"}]}`)
	}, 5)

	raw, err := store.AddItem(context.Background(), AddItemRequest{ProductID: 2, Quantity: 3, Price: 1.25, Name: "Scone"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"quantity":3`)
}

func TestClient_StatusError(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}, 5)

	_, err := store.CurrentOrder(context.Background())
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestClient_TransportFailureIs500(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond},
		[]string{"orders"}, logger.Nop(), nil)

	_, err := client.Invoke(context.Background(), "orders", http.MethodGet, "orders/current", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
}

func TestClient_InvalidJSONResponse(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>`)
	}, 5)

	_, err := store.Products(context.Background())
	assert.Error(t, err)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, 2)

	for i := 0; i < 2; i++ {
		_, err := store.Products(context.Background())
		assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	}

	_, err := store.Products(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, int32(2), calls.Load())

	// Order calls use a separate breaker.
	_, err = store.CurrentOrder(context.Background())
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}, 1)

	for i := 0; i < 3; i++ {
		_, err := store.AddItem(context.Background(), AddItemRequest{ProductID: 1, Quantity: 1, Name: "x"})
		assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	}
}

func TestClient_UnknownApp(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost"}, nil, logger.Nop(), nil)
	_, err := client.Invoke(context.Background(), "inventory", http.MethodGet, "stock", nil)
	assert.Error(t, err)
}
