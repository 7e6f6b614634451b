package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"freeway/config"
	"freeway/internal/admin"
	"freeway/internal/core"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	AdminAPIKey     string // Key granting the admin role
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   int64  // Max request body size in bytes (default: 10MB)
	SwaggerEnabled  bool   // Whether to serve Swagger UI at /swagger/*
}

// Auth groups the authentication collaborators. Limiter may be nil.
type Auth struct {
	Keys    KeyValidator
	Limiter RateLimiter
}

// New creates a new HTTP server. adminHandler may be nil, which leaves the
// admin API unmounted.
func New(handler *Handler, adminHandler *admin.Handler, auth Auth, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware stack (order matters)
	e.Use(requestIDMiddleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	bodySizeLimit := config.DefaultBodySizeLimit
	if cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	// Public routes
	e.GET("/", handler.Root)
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean("/" + cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	if cfg.SwaggerEnabled {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	authenticate := AuthMiddleware(cfg.AdminAPIKey, auth.Keys)
	var limiter echo.MiddlewareFunc = passThrough
	if auth.Limiter != nil {
		limiter = RateLimitMiddleware(auth.Limiter)
	}

	// Any valid key
	anyKey := []echo.MiddlewareFunc{authenticate, limiter}
	e.GET("/model/free", handler.SelectedFreeModel, anyKey...)
	e.GET("/model/paid", handler.SelectedPaidModel, anyKey...)
	e.GET("/models/free", handler.FreeModels, anyKey...)
	e.GET("/models/paid", handler.PaidModels, anyKey...)
	e.GET("/v1/models", handler.ListModels, anyKey...)
	e.GET("/v1/providers", handler.ListProviders, anyKey...)

	// Project keys only
	projectKey := []echo.MiddlewareFunc{authenticate, RequireProject(), limiter}
	e.POST("/chat/completions", handler.ChatCompletion, projectKey...)
	e.POST("/v1/chat/completions", handler.ChatCompletion, projectKey...)

	if adminHandler != nil {
		adminHandler.Register(e.Group("/admin", authenticate, RequireAdmin()))
	}

	return &Server{
		echo:    e,
		handler: handler,
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// requestIDMiddleware propagates X-Request-ID, generating one when the client
// sent none, and stores it in the request context.
func requestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
				req.Header.Set(echo.HeaderXRequestID, id)
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(core.WithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
