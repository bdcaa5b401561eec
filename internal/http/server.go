// Package http hosts the MCP SSE transport and operational endpoints for shelld.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelld/internal/logging"
	"github.com/fyrsmithlabs/shelld/internal/secrets"
	"github.com/fyrsmithlabs/shelld/internal/telemetry"
)

// StatusProvider reports runtime state for GET /api/v1/status.
type StatusProvider interface {
	SessionCount() int
	ToolNames() []string
}

// Server provides HTTP endpoints for shelld.
type Server struct {
	echo     *echo.Echo
	scrubber secrets.Scrubber
	status   StatusProvider
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string

	// Telemetry health is reported by /api/v1/status when set.
	Telemetry *telemetry.Telemetry
}

// NewServer creates a new HTTP server. mcpHandler serves the SSE transport
// at /sse.
func NewServer(mcpHandler http.Handler, status StatusProvider, scrubber secrets.Scrubber, logger *logging.Logger, cfg *Config) (*Server, error) {
	if mcpHandler == nil {
		return nil, fmt.Errorf("mcp handler cannot be nil")
	}
	if scrubber == nil {
		return nil, fmt.Errorf("scrubber cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8765,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			ctx := logging.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(cfg.Telemetry.Meter(httpInstrumentationName), logger).MetricsMiddleware())

	s := &Server{
		echo:     e,
		scrubber: scrubber,
		status:   status,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes(mcpHandler)

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes(mcpHandler http.Handler) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// The SSE handler streams on GET and accepts client messages on POST.
	sse := echo.WrapHandler(mcpHandler)
	s.echo.GET("/sse", sse)
	s.echo.POST("/sse", sse)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/scrub", s.handleScrub)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStatus reports sessions, tools and telemetry health.
func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{
		Status:  "ok",
		Version: s.config.Version,
		Tools:   []string{},
	}
	if s.status != nil {
		resp.Sessions = s.status.SessionCount()
		resp.Tools = s.status.ToolNames()
	}
	if s.config.Telemetry != nil && s.config.Telemetry.IsEnabled() {
		health := s.config.Telemetry.Health()
		resp.Telemetry = &health
		if health.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleScrub scrubs secrets from the provided content.
func (s *Server) handleScrub(c echo.Context) error {
	var req ScrubRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid scrub request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result := s.scrubber.Scrub(req.Content)
	s.logger.Debug(c.Request().Context(), "scrubbed content",
		zap.Int("findings", len(result.Findings)),
		zap.Strings("rules", result.RuleIDs()),
	)

	return c.JSON(http.StatusOK, ScrubResponse{
		Content:       result.Text,
		FindingsCount: len(result.Findings),
		Rules:         result.RuleIDs(),
	})
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
