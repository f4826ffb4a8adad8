// Package httpapi provides the HTTP API for ragify.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragify/internal/config"
	"github.com/fyrsmithlabs/ragify/internal/pipeline"
	"github.com/fyrsmithlabs/ragify/internal/provider"
	"github.com/fyrsmithlabs/ragify/internal/rewrite"
)

// Server provides HTTP endpoints for ragify.
type Server struct {
	echo       *echo.Echo
	cfg        *config.Config
	registry   *provider.Registry
	cache      *pipeline.Cache
	defaultKey pipeline.Key
	logger     *zap.Logger
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(cfg *config.Config, registry *provider.Registry, cache *pipeline.Cache, defaultKey pipeline.Key, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if registry == nil || cache == nil {
		return nil, fmt.Errorf("registry and cache are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
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
		echo:       e,
		cfg:        cfg,
		registry:   registry,
		cache:      cache,
		defaultKey: defaultKey,
		logger:     logger,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.POST("/ask", s.handleAsk)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/config", s.handleConfig)
	s.echo.GET("/providers", s.handleProviders)
}

// AskRequest is the request body for POST /ask. The question may arrive in
// either the question or message field; model selection fields are optional
// and default to the configured models.
type AskRequest struct {
	Question string         `json:"question"`
	Message  string         `json:"message"`
	History  []rewrite.Turn `json:"history"`

	LLMProvider       string `json:"llm_provider"`
	LLMModel          string `json:"llm_model"`
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
}

// ErrorResponse is the error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	question := req.Question
	if question == "" {
		question = req.Message
	}
	if question == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question field is required"})
	}

	key := s.defaultKey
	if req.LLMProvider != "" {
		key.LLMProvider = req.LLMProvider
		key.LLMModel = req.LLMModel
	} else if req.LLMModel != "" {
		key.LLMModel = req.LLMModel
	}
	if req.EmbeddingProvider != "" {
		key.EmbeddingProvider = req.EmbeddingProvider
		key.EmbeddingModel = req.EmbeddingModel
	} else if req.EmbeddingModel != "" {
		key.EmbeddingModel = req.EmbeddingModel
	}

	ctx := c.Request().Context()

	p, err := s.cache.GetOrCreate(ctx, key)
	if err != nil {
		return s.pipelineError(c, err)
	}

	answer, err := p.Answer(ctx, question, req.History)
	if err != nil {
		return s.pipelineError(c, err)
	}
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) pipelineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, provider.ErrUnsupportedProvider),
		errors.Is(err, provider.ErrMissingCredentials):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, pipeline.ErrRetrieval), errors.Is(err, pipeline.ErrSynthesis):
		s.logger.Error("pipeline failure", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("internal error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// handleHealth reports readiness: the default pipeline must be constructible,
// which covers the index, the embedding client, and the generation client.
func (s *Server) handleHealth(c echo.Context) error {
	if _, err := s.cache.GetOrCreate(c.Request().Context(), s.defaultKey); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status: "degraded",
			Error:  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleConfig returns the effective configuration. Secrets are redacted by
// their JSON marshaling.
func (s *Server) handleConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cfg)
}

func (s *Server) handleProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.Providers())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
