// Package http provides the HTTP API for indexd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sellerdesk/indexd/internal/indexer"
	"github.com/sellerdesk/indexd/internal/logging"
	"github.com/sellerdesk/indexd/internal/retrieval"
	"github.com/sellerdesk/indexd/internal/status"
)

// TriggerQueue accepts indexing triggers.
type TriggerQueue interface {
	Enqueue(trigger indexer.Trigger) error
}

// Enricher enriches prompts with retrieved tenant context.
type Enricher interface {
	Enrich(ctx context.Context, tenantID, query, basePrompt string) retrieval.Enrichment
}

// Server provides HTTP endpoints for indexd.
type Server struct {
	echo     *echo.Echo
	queue    TriggerQueue
	tracker  status.Tracker
	enricher Enricher
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(queue TriggerQueue, tracker status.Tracker, enricher Enricher, logger *logging.Logger, cfg *Config) (*Server, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue cannot be nil")
	}
	if tracker == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}
	if enricher == nil {
		return nil, fmt.Errorf("enricher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		queue:    queue,
		tracker:  tracker,
		enricher: enricher,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/tenants/:tenant/index", s.handleIndex)
	v1.GET("/tenants/:tenant/status", s.handleStatus)
	v1.POST("/enrich", s.handleEnrich)
}

// IndexRequest is the optional request body for POST /v1/tenants/:tenant/index.
type IndexRequest struct {
	FullRebuild bool `json:"full_rebuild"`
}

// IndexResponse is the response body for POST /v1/tenants/:tenant/index.
type IndexResponse struct {
	TenantID string `json:"tenant_id"`
	Full     bool   `json:"full"`
	Queued   bool   `json:"queued"`
}

// EnrichRequest is the request body for POST /v1/enrich.
type EnrichRequest struct {
	TenantID string `json:"tenant_id"`
	Query    string `json:"query"`
	Prompt   string `json:"prompt"`
}

// EnrichResponse is the response body for POST /v1/enrich.
type EnrichResponse struct {
	Prompt   string            `json:"prompt"`
	Enriched bool              `json:"enriched"`
	Chunks   []retrieval.Chunk `json:"chunks,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleIndex enqueues an indexing run for the tenant. The run happens
// asynchronously; poll the status endpoint for the outcome. A trigger
// arriving while the tenant is already indexing is coalesced.
func (s *Server) handleIndex(c echo.Context) error {
	tenantID := c.Param("tenant")
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant is required")
	}
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	full := req.FullRebuild || c.QueryParam("full") == "true"

	err := s.queue.Enqueue(indexer.Trigger{TenantID: tenantID, Full: full})
	if err != nil {
		if errors.Is(err, indexer.ErrQueueFull) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "indexing queue is full, retry later")
		}
		s.logger.Error(c.Request().Context(), "enqueue failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue indexing run")
	}

	return c.JSON(http.StatusAccepted, IndexResponse{
		TenantID: tenantID,
		Full:     full,
		Queued:   true,
	})
}

// handleStatus returns the tenant's index status.
func (s *Server) handleStatus(c echo.Context) error {
	tenantID := c.Param("tenant")
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant is required")
	}

	st, err := s.tracker.Get(c.Request().Context(), tenantID)
	if err != nil {
		s.logger.Error(c.Request().Context(), "status lookup failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load index status")
	}

	return c.JSON(http.StatusOK, st)
}

// handleEnrich enriches the provided prompt with retrieved tenant context.
// Enrichment never fails: when retrieval is unavailable the base prompt is
// returned unmodified with enriched=false.
func (s *Server) handleEnrich(c echo.Context) error {
	var req EnrichRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid enrich request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.TenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id field is required")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt field is required")
	}

	result := s.enricher.Enrich(c.Request().Context(), req.TenantID, req.Query, req.Prompt)

	return c.JSON(http.StatusOK, EnrichResponse{
		Prompt:   result.Prompt,
		Enriched: result.Enriched,
		Chunks:   result.Chunks,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
