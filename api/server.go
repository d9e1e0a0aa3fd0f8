package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/config"
	"example.com/backstage/services/portal/handlers"
	"example.com/backstage/services/portal/metrics"
	"example.com/backstage/services/portal/repositories"
	"example.com/backstage/services/portal/tracing"
)

// Dispatcher handles a serialized command
type Dispatcher interface {
	Dispatch(ctx context.Context, commandType string, data json.RawMessage) (*handlers.Result, error)
}

// ServerDeps are the collaborators of the HTTP server. Gatherer, Tracer and
// Health are optional.
type ServerDeps struct {
	Dispatcher   Dispatcher
	Repositories *repositories.Repositories
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Tracer       tracing.Tracer
	Health       func(ctx context.Context) error
}

// Server is the HTTP server for commands and read model queries
type Server struct {
	cfg        config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	deps       ServerDeps
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps ServerDeps) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if deps.Tracer == nil {
		deps.Tracer = tracing.Disabled()
	}

	server := &Server{
		cfg:    cfg,
		router: gin.New(),
		deps:   deps,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(RequestIDMiddleware())
	if s.cfg.CorsEnabled {
		s.router.Use(CORSMiddleware(s.cfg.CorsOrigins))
	}
	s.router.Use(NewRelicMiddleware(s.deps.Tracer.Application()))
	s.router.Use(LoggingMiddleware(s.deps.Metrics))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)
	if s.deps.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	v1.POST("/commands", s.postCommand)

	v1.GET("/realms", s.listRealms)
	v1.GET("/realms/:id", s.getRealm)
	v1.GET("/languages", s.listLanguages)
	v1.GET("/field-types", s.listFieldTypes)
	v1.GET("/field-types/:id", s.getFieldType)
	v1.GET("/content-types", s.listContentTypes)
	v1.GET("/content-types/:id", s.getContentType)
	v1.GET("/content-types/:id/contents", s.listContents)
	v1.GET("/contents/:id", s.getContent)
	v1.GET("/contents/:id/indices", s.getContentIndices)
}

// Handler exposes the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("address", s.cfg.Address).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
