// Package admin provides the HTTP handlers for the admin API: project
// management, model pinning, job triggers and usage analytics.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"freeway/internal/core"
	"freeway/internal/jobs"
	"freeway/internal/modelcache"
	"freeway/internal/projects"
	"freeway/internal/providermodels"
	"freeway/internal/usage"
)

// ProjectService manages projects. *projects.Service satisfies this interface.
type ProjectService interface {
	Create(ctx context.Context, req projects.CreateRequest) (*projects.ProjectWithKey, error)
	List(ctx context.Context) ([]projects.Project, error)
	Get(ctx context.Context, id string) (*projects.Project, error)
	Update(ctx context.Context, id string, req projects.UpdateRequest) (*projects.Project, error)
	Deactivate(ctx context.Context, id string) error
	RotateKey(ctx context.Context, id string) (*projects.RotatedKey, error)
	RefreshCache()
}

// ModelSelector pins and reports the selected models.
// *modelcache.Cache satisfies this interface.
type ModelSelector interface {
	GetFreeModels() []modelcache.CachedModel
	GetPaidModels() []modelcache.CachedModel
	GetSelectedFreeModel() (modelcache.CachedModel, bool)
	GetSelectedPaidModel() (modelcache.CachedModel, bool)
	SetSelectedFreeModel(id string) bool
	SetSelectedPaidModel(id string) bool
}

// JobRunner runs background jobs on demand. *jobs.Runner satisfies this interface.
type JobRunner interface {
	ValidateModels(ctx context.Context) (*jobs.ValidationReport, error)
	RunBenchmark(ctx context.Context) (*jobs.BenchmarkReport, error)
	RefreshModels(ctx context.Context) error
}

// ProviderCatalogs reports the validated provider catalogs.
type ProviderCatalogs interface {
	GetCacheSummary() providermodels.Summary
}

// SnapshotSaver persists the model caches after a pin.
type SnapshotSaver interface {
	Save(ctx context.Context) (bool, error)
}

// Deps are the collaborators of the admin Handler. Usage and Snapshots may
// be nil.
type Deps struct {
	Projects  ProjectService
	Models    ModelSelector
	Catalogs  ProviderCatalogs
	Jobs      JobRunner
	Usage     usage.UsageReader
	Snapshots SnapshotSaver
}

// Handler serves admin API endpoints.
type Handler struct {
	projects  ProjectService
	models    ModelSelector
	catalogs  ProviderCatalogs
	jobs      JobRunner
	usage     usage.UsageReader
	snapshots SnapshotSaver

	startTime time.Time
	now       func() time.Time
}

// NewHandler creates a new admin API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		projects:  deps.Projects,
		models:    deps.Models,
		catalogs:  deps.Catalogs,
		jobs:      deps.Jobs,
		usage:     deps.Usage,
		snapshots: deps.Snapshots,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Register mounts the admin routes on g. Authentication is the caller's job.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/overview", h.Overview)

	g.GET("/projects", h.ListProjects)
	g.POST("/projects", h.CreateProject)
	g.POST("/projects/refresh-cache", h.RefreshProjectCache)
	g.GET("/projects/:id", h.GetProject)
	g.PATCH("/projects/:id", h.UpdateProject)
	g.DELETE("/projects/:id", h.DeleteProject)
	g.POST("/projects/:id/rotate-key", h.RotateProjectKey)

	g.PUT("/model/free", h.SetSelectedFreeModel)
	g.PUT("/model/paid", h.SetSelectedPaidModel)

	g.POST("/jobs/validate-models", h.ValidateModels)
	g.POST("/jobs/benchmark", h.RunBenchmark)
	g.POST("/jobs/refresh-models", h.RefreshModels)

	g.GET("/analytics/summary", h.AnalyticsSummary)
	g.GET("/analytics/usage/:projectId", h.ProjectUsage)
	g.GET("/analytics/logs", h.UsageLogs)
}

// messageResponse is the body of endpoints that only acknowledge.
type messageResponse struct {
	Message string `json:"message"`
}

// handleError converts errors to HTTP responses in the same envelope the
// public API uses.
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	slog.Error("admin request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}

// bindJSON decodes the request body, reporting malformed input as a 400.
func bindJSON(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return core.NewInvalidRequestError("invalid request body", err)
	}
	return nil
}
