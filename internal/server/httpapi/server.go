// Package httpapi exposes the gateway over HTTP: the two wire protocols,
// health and readiness probes, the metrics scrape endpoint, and an internal
// execution-history view.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"codegate/internal/config"
	"codegate/internal/gateway"
	"codegate/internal/logging"
	"codegate/internal/observability"
)

// Server hosts the gateway's HTTP surface.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	svc        *gateway.Service
	metrics    *observability.MetricsCollector
	logger     *logging.Logger
}

// New builds the server and its routes.
func New(cfg *config.Config, svc *gateway.Service, metrics *observability.MetricsCollector) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(accessLogMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	engine.Use(cors.New(corsConfig))

	server := &Server{
		engine:  engine,
		svc:     svc,
		metrics: metrics,
		logger:  logging.NewComponentLogger("httpapi"),
	}

	// No WriteTimeout: streaming responses stay open as long as the agent
	// runs.
	server.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.engine.POST("/v1/chat/completions", s.handleChatCompletions)
	s.engine.POST("/v1/responses", s.handleResponses)

	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/readyz", s.handleReadyz)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.PrometheusHandler()))
	}

	s.engine.GET("/api/internal/executions", s.handleExecutions)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
