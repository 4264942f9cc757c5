package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront-sse/internal/application/ingest"
	"go-storefront-sse/internal/infrastructure/hub"
	"go-storefront-sse/internal/infrastructure/logger"
	"go-storefront-sse/internal/infrastructure/metrics"
	"go-storefront-sse/internal/infrastructure/upstream"
	"go-storefront-sse/internal/interfaces/pubsub"
)

type stubStore struct{}

func (stubStore) Products(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (stubStore) CurrentOrder(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"items":[]}`), nil
}

func (stubStore) AddItem(context.Context, upstream.AddItemRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"items":[]}`), nil
}

func newTestRouter(t *testing.T, staticDir string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	hubInstance := hub.New(log, hub.WithMetrics(m))

	return InitRouter(routerDeps{
		logger:   log,
		hub:      hubInstance,
		ingester: ingest.NewService(hubInstance, log, m),
		store:    stubStore{},
		registry: registry,
		stream:   hub.DefaultStreamOptions(),
		subscription: pubsub.Subscription{
			PubSubName: "pubsub",
			Topic:      "cart-updates",
			Route:      "/cart-updates",
		},
		staticDir: staticDir,
	})
}

func TestInitRouter_PublishIsCounted(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/cart-updates", strings.NewReader(`{"order":{}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `outcome="direct"`)
}

func TestInitRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/products", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestInitRouter_StaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	router := newTestRouter(t, dir)

	tests := []struct {
		path string
		want string
	}{
		{path: "/app.js", want: "console.log(1)"},
		{path: "/orders/42", want: "<html>app</html>"},
		{path: "/../../etc/passwd", want: "<html>app</html>"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}

func TestTopologyCommand(t *testing.T) {
	t.Setenv("STOREFRONT_PUBSUB_TOPIC", "orders-changed")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"topology"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.JSONEq(t,
		`[{"pubsubname":"pubsub","topic":"orders-changed","route":"/cart-updates"}]`,
		out.String())
}
