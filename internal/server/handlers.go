// Package server provides HTTP handlers and server setup for the Freeway gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"freeway/internal/benchmark"
	"freeway/internal/core"
	"freeway/internal/modelcache"
	"freeway/internal/providermodels"
	"freeway/internal/usage"
	"freeway/internal/version"
)

// ProviderLookup resolves adapters by name. *providers.Registry satisfies this interface.
type ProviderLookup interface {
	Get(name string) (core.Provider, bool)
	All() []core.Provider
}

// Fallback runs a completion across the ranked free providers.
// *orchestrator.Orchestrator satisfies this interface.
type Fallback interface {
	ExecuteWithFallback(ctx context.Context, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult
}

// ModelCatalog is the ranked aggregator catalog. *modelcache.Cache satisfies this interface.
type ModelCatalog interface {
	GetFreeModels() []modelcache.CachedModel
	GetPaidModels() []modelcache.CachedModel
	GetSelectedFreeModel() (modelcache.CachedModel, bool)
	GetSelectedPaidModel() (modelcache.CachedModel, bool)
	GetModelByID(id string) (modelcache.CachedModel, bool)
	GetLastUpdated() time.Time
}

// ProviderCatalog holds the validated per-provider model lists.
// *providermodels.Cache satisfies this interface.
type ProviderCatalog interface {
	GetAllProviderModels() map[string][]core.ProviderModelInfo
	FindProvidersForModel(modelID string) []string
	IsValidModel(provider, modelID string) bool
	GetCacheSummary() providermodels.Summary
}

// Scoreboard reports benchmark rankings. *benchmark.Cache satisfies this interface.
type Scoreboard interface {
	GetRankedProviders() []string
	GetProviderScore(name string) (benchmark.ProviderScore, bool)
}

// ProjectCounter reports the number of cached active projects.
type ProjectCounter interface {
	Count() int
}

// Deps are the collaborators of the API Handler. Catalogs, Scores, Projects
// and Usage may be nil.
type Deps struct {
	Providers ProviderLookup
	Fallback  Fallback
	Models    ModelCatalog
	Catalogs  ProviderCatalog
	Scores    Scoreboard
	Projects  ProjectCounter
	Usage     usage.LoggerInterface
}

// Handler holds the HTTP handlers
type Handler struct {
	providers ProviderLookup
	fallback  Fallback
	models    ModelCatalog
	catalogs  ProviderCatalog
	scores    Scoreboard
	projects  ProjectCounter
	usage     usage.LoggerInterface

	now func() time.Time
}

// NewHandler creates a new handler with the given dependencies
func NewHandler(deps Deps) *Handler {
	logger := deps.Usage
	if logger == nil {
		logger = &usage.NoopLogger{}
	}
	return &Handler{
		providers: deps.Providers,
		fallback:  deps.Fallback,
		models:    deps.Models,
		catalogs:  deps.Catalogs,
		scores:    deps.Scores,
		projects:  deps.Projects,
		usage:     logger,
		now:       time.Now,
	}
}

// ChatCompletion handles POST /chat/completions and /v1/chat/completions.
// Streaming is not supported; a stream flag is accepted and answered with a
// single response.
func (h *Handler) ChatCompletion(c echo.Context) error {
	var req core.ChatRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if err := req.Validate(); err != nil {
		return handleError(c, err)
	}

	res, err := h.resolveModel(req.Model)
	if err != nil {
		return handleError(c, err)
	}

	ctx := c.Request().Context()
	opts := req.Options()

	var result *core.ChatCompletionResult
	if res.Fallback {
		result = h.fallback.ExecuteWithFallback(ctx, req.Messages, opts)
	} else {
		p, ok := h.providers.Get(res.Provider)
		if !ok {
			return handleError(c, core.NewUnavailableError(fmt.Sprintf("Provider '%s' is not configured", res.Provider)))
		}
		result = p.CreateChatCompletion(ctx, res.ModelID, req.Messages, opts)
	}
	if result == nil {
		result = core.ErrorResult(res.Provider, "empty provider result", 0, 0)
	}

	h.logUsage(ctx, req, res, result)

	if !result.Success {
		msg := result.ErrorMessage
		if msg == "" {
			msg = "API error"
		}
		return handleError(c, core.NewProviderError(result.ProviderName, http.StatusBadGateway, msg, nil))
	}
	return c.JSON(http.StatusOK, core.NewChatResponse(result))
}

// logUsage hands the completion to the usage logger. The write is buffered
// and never blocks the response.
func (h *Handler) logUsage(ctx context.Context, req core.ChatRequest, res resolution, result *core.ChatCompletionResult) {
	caller, _ := core.GetCaller(ctx)
	entry := usage.ExtractFromResult(usage.Request{
		ProjectID: caller.ProjectID,
		RequestID: core.GetRequestID(ctx),
		ModelID:   res.ModelID,
		ModelType: res.ModelType,
		Model:     res.Model,
		Messages:  req.Messages,
		Options:   req.Options(),
	}, result, h.now())
	h.usage.Write(entry)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string     `json:"status"`
	Service           string     `json:"service"`
	Version           string     `json:"version"`
	FreeModelsCount   int        `json:"free_models_count"`
	PaidModelsCount   int        `json:"paid_models_count"`
	SelectedFreeModel string     `json:"selected_free_model,omitempty"`
	SelectedPaidModel string     `json:"selected_paid_model,omitempty"`
	LastRefresh       *time.Time `json:"last_refresh,omitempty"`
	ProviderModels    int        `json:"provider_models_count"`
	ActiveProjects    int        `json:"active_projects"`
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	resp := HealthResponse{
		Status:          "healthy",
		Service:         "freeway",
		Version:         version.Version,
		FreeModelsCount: len(h.models.GetFreeModels()),
		PaidModelsCount: len(h.models.GetPaidModels()),
	}
	if m, ok := h.models.GetSelectedFreeModel(); ok {
		resp.SelectedFreeModel = m.ID
	}
	if m, ok := h.models.GetSelectedPaidModel(); ok {
		resp.SelectedPaidModel = m.ID
	}
	if t := h.models.GetLastUpdated(); !t.IsZero() {
		resp.LastRefresh = &t
	}
	if h.catalogs != nil {
		resp.ProviderModels = h.catalogs.GetCacheSummary().TotalModelCount
	}
	if h.projects != nil {
		resp.ActiveProjects = h.projects.Count()
	}
	return c.JSON(http.StatusOK, resp)
}

// Root handles GET /
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name":        "Freeway API",
		"version":     version.Version,
		"description": "LLM gateway with free-provider fallback and project management",
		"endpoints": []string{
			"GET /health",
			"GET /model/free",
			"GET /model/paid",
			"GET /models/free",
			"GET /models/paid",
			"GET /v1/models",
			"GET /v1/providers",
			"POST /chat/completions",
			"GET /admin/projects",
			"GET /admin/analytics/summary",
		},
	})
}

// handleError converts gateway errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	slog.Error("request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
