package main

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-storefront-sse/internal/infrastructure/hub"
	"go-storefront-sse/internal/infrastructure/logger"
	"go-storefront-sse/internal/interfaces/pubsub"
	"go-storefront-sse/internal/interfaces/rest/v1/handler"
	"go-storefront-sse/internal/interfaces/sse"
	"go-storefront-sse/internal/interfaces/websocket"
)

type routerDeps struct {
	logger       logger.Logger
	hub          *hub.Hub
	ingester     pubsub.Ingester
	store        handler.StoreGateway
	registry     *prometheus.Registry
	stream       hub.StreamOptions
	subscription pubsub.Subscription
	staticDir    string
}

func InitRouter(deps routerDeps) http.Handler {
	log := deps.logger

	router := gin.New()
	router.Use(requestLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	rootGroup := router.Group("")

	statusHandler := handler.NewStatusHandler(deps.hub)
	rootGroup.GET("/health", statusHandler.Health)
	rootGroup.GET("/hub/status", statusHandler.HubStatus)

	if deps.registry != nil {
		rootGroup.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{})))
	}

	storeHandler := handler.NewStoreHandler(deps.store, log)
	apiGroup := rootGroup.Group("/api")
	{
		apiGroup.GET("/products", storeHandler.GetProducts)
		apiGroup.GET("/orders/current", storeHandler.GetCurrentOrder)
		apiGroup.POST("/orders/current/items", storeHandler.AddOrderItem)
	}

	pubsub.InitPubSubRouter(log, deps.ingester, deps.subscription, rootGroup)
	sse.InitSSERouter(log, deps.hub, deps.stream, rootGroup)
	websocket.InitWebSocketRouter(log, deps.hub, deps.stream, rootGroup)

	if deps.staticDir != "" {
		router.NoRoute(spaFallback(deps.staticDir))
	}

	return router
}

// requestLogger routes gin's access log through the service logger.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	access := log.WithField("component", "access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		access.WithFields(logger.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Debug("request")
	}
}

// spaFallback serves files from dir and answers every other GET with
// index.html so client-side routes resolve.
func spaFallback(dir string) gin.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}

		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
		if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
			c.File(name)
			return
		}
		c.File(index)
	}
}
