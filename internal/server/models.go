package server

import (
	"cmp"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"freeway/internal/core"
	"freeway/internal/modelcache"
)

// Pricing is the per-token price pair of a catalog model.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// ModelInfo is one ranked catalog model.
type ModelInfo struct {
	ModelID       string  `json:"model_id"`
	ModelName     string  `json:"model_name"`
	Description   string  `json:"description,omitempty"`
	ContextLength int     `json:"context_length"`
	Pricing       Pricing `json:"pricing"`
	Rank          int     `json:"rank,omitempty"`
}

// ModelsList is the body of GET /models/free and /models/paid.
type ModelsList struct {
	Models      []ModelInfo `json:"models"`
	TotalCount  int         `json:"total_count"`
	LastUpdated *time.Time  `json:"last_updated,omitempty"`
}

// ProviderModel is one entry of GET /v1/models.
type ProviderModel struct {
	ID            string     `json:"id"`
	Object        string     `json:"object"`
	Name          string     `json:"name,omitempty"`
	Provider      string     `json:"provider"`
	Description   string     `json:"description,omitempty"`
	ContextLength int        `json:"context_length,omitempty"`
	OwnedBy       string     `json:"owned_by,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// ProviderModelsList is the body of GET /v1/models.
type ProviderModelsList struct {
	Object                string                `json:"object"`
	Data                  []ProviderModel       `json:"data"`
	TotalCount            int                   `json:"total_count"`
	ProviderCount         int                   `json:"provider_count"`
	LastUpdatedByProvider map[string]*time.Time `json:"last_updated_by_provider"`
}

// ProviderInfo is one entry of GET /v1/providers.
type ProviderInfo struct {
	Name              string     `json:"name"`
	DisplayName       string     `json:"display_name"`
	IsEnabled         bool       `json:"is_enabled"`
	IsFreeProvider    bool       `json:"is_free_provider"`
	DefaultModelID    string     `json:"default_model_id"`
	ModelCount        int        `json:"model_count"`
	LastValidated     *time.Time `json:"last_validated,omitempty"`
	BenchmarkRank     *int       `json:"benchmark_rank,omitempty"`
	SuccessRate       *float64   `json:"success_rate,omitempty"`
	AvgResponseTimeMs *float64   `json:"avg_response_time_ms,omitempty"`
}

// ProvidersList is the body of GET /v1/providers.
type ProvidersList struct {
	Providers         []ProviderInfo `json:"providers"`
	TotalCount        int            `json:"total_count"`
	EnabledCount      int            `json:"enabled_count"`
	FreeProviderCount int            `json:"free_provider_count"`
}

func toModelInfo(m modelcache.CachedModel, withRank bool) ModelInfo {
	info := ModelInfo{
		ModelID:       m.ID,
		ModelName:     m.Name,
		Description:   m.Description,
		ContextLength: m.ContextLength,
		Pricing:       Pricing{Prompt: m.PromptPrice, Completion: m.CompletionPrice},
	}
	if withRank {
		info.Rank = m.Rank
	}
	return info
}

// SelectedFreeModel handles GET /model/free
func (h *Handler) SelectedFreeModel(c echo.Context) error {
	m, ok := h.models.GetSelectedFreeModel()
	if !ok {
		return handleError(c, core.NewUnavailableError("No free models available"))
	}
	return c.JSON(http.StatusOK, toModelInfo(m, false))
}

// SelectedPaidModel handles GET /model/paid
func (h *Handler) SelectedPaidModel(c echo.Context) error {
	m, ok := h.models.GetSelectedPaidModel()
	if !ok {
		return handleError(c, core.NewUnavailableError("No paid models available"))
	}
	return c.JSON(http.StatusOK, toModelInfo(m, false))
}

// FreeModels handles GET /models/free
func (h *Handler) FreeModels(c echo.Context) error {
	return c.JSON(http.StatusOK, h.modelsList(h.models.GetFreeModels()))
}

// PaidModels handles GET /models/paid
func (h *Handler) PaidModels(c echo.Context) error {
	return c.JSON(http.StatusOK, h.modelsList(h.models.GetPaidModels()))
}

func (h *Handler) modelsList(models []modelcache.CachedModel) ModelsList {
	out := ModelsList{Models: make([]ModelInfo, 0, len(models)), TotalCount: len(models)}
	for _, m := range models {
		out.Models = append(out.Models, toModelInfo(m, true))
	}
	if t := h.models.GetLastUpdated(); !t.IsZero() {
		out.LastUpdated = &t
	}
	return out
}

// ListModels handles GET /v1/models. The optional provider query parameter
// filters by provider name.
func (h *Handler) ListModels(c echo.Context) error {
	out := ProviderModelsList{Object: "list", Data: []ProviderModel{}}
	if h.catalogs == nil {
		return c.JSON(http.StatusOK, out)
	}

	filter := c.QueryParam("provider")
	for provider, models := range h.catalogs.GetAllProviderModels() {
		if filter != "" && !strings.EqualFold(provider, filter) {
			continue
		}
		for _, m := range models {
			out.Data = append(out.Data, ProviderModel{
				ID:            m.ID,
				Object:        "model",
				Name:          m.Name,
				Provider:      provider,
				Description:   m.Description,
				ContextLength: m.ContextLength,
				OwnedBy:       m.OwnedBy,
				CreatedAt:     m.CreatedAt,
			})
		}
	}
	slices.SortFunc(out.Data, func(a, b ProviderModel) int {
		if n := strings.Compare(a.Provider, b.Provider); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})

	summary := h.catalogs.GetCacheSummary()
	out.TotalCount = len(out.Data)
	out.ProviderCount = summary.ProviderCount
	out.LastUpdatedByProvider = summary.LastValidatedByProvider
	return c.JSON(http.StatusOK, out)
}

// ListProviders handles GET /v1/providers. Ranked providers come first, in
// rank order.
func (h *Handler) ListProviders(c echo.Context) error {
	var ranking []string
	if h.scores != nil {
		ranking = h.scores.GetRankedProviders()
	}
	var modelCounts map[string]int
	var lastValidated map[string]*time.Time
	if h.catalogs != nil {
		summary := h.catalogs.GetCacheSummary()
		modelCounts = summary.ModelCountByProvider
		lastValidated = summary.LastValidatedByProvider
	}

	all := h.providers.All()
	out := ProvidersList{Providers: make([]ProviderInfo, 0, len(all))}
	for _, p := range all {
		info := ProviderInfo{
			Name:           p.Name(),
			DisplayName:    p.DisplayName(),
			IsEnabled:      p.IsEnabled(),
			IsFreeProvider: p.IsFreeProvider(),
			DefaultModelID: p.DefaultModelID(),
			ModelCount:     modelCounts[p.Name()],
			LastValidated:  lastValidated[p.Name()],
		}
		if i := slices.Index(ranking, p.Name()); i >= 0 {
			rank := i + 1
			info.BenchmarkRank = &rank
		}
		if h.scores != nil {
			if score, ok := h.scores.GetProviderScore(p.Name()); ok {
				info.SuccessRate = &score.SuccessRate
				info.AvgResponseTimeMs = &score.AvgResponseTimeMs
			}
		}
		out.Providers = append(out.Providers, info)

		if info.IsEnabled {
			out.EnabledCount++
		}
		if info.IsFreeProvider {
			out.FreeProviderCount++
		}
	}
	slices.SortStableFunc(out.Providers, func(a, b ProviderInfo) int {
		return cmp.Compare(rankOrder(a), rankOrder(b))
	})
	out.TotalCount = len(out.Providers)
	return c.JSON(http.StatusOK, out)
}

func rankOrder(p ProviderInfo) int {
	if p.BenchmarkRank == nil {
		return math.MaxInt
	}
	return *p.BenchmarkRank
}
