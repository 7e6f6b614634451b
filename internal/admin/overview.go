package admin

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"freeway/internal/version"
)

// OverviewResponse describes the running gateway.
type OverviewResponse struct {
	Version            string `json:"version"`
	GoVersion          string `json:"go_version"`
	Uptime             string `json:"uptime"`
	FreeModelCount     int    `json:"free_model_count"`
	PaidModelCount     int    `json:"paid_model_count"`
	SelectedFreeModel  string `json:"selected_free_model,omitempty"`
	SelectedPaidModel  string `json:"selected_paid_model,omitempty"`
	ProviderCount      int    `json:"provider_count"`
	ProviderModelCount int    `json:"provider_model_count"`
}

// Overview handles GET /admin/overview.
func (h *Handler) Overview(c echo.Context) error {
	out := OverviewResponse{
		Version:        version.Version,
		GoVersion:      runtime.Version(),
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		FreeModelCount: len(h.models.GetFreeModels()),
		PaidModelCount: len(h.models.GetPaidModels()),
	}
	if m, ok := h.models.GetSelectedFreeModel(); ok {
		out.SelectedFreeModel = m.ID
	}
	if m, ok := h.models.GetSelectedPaidModel(); ok {
		out.SelectedPaidModel = m.ID
	}
	if h.catalogs != nil {
		summary := h.catalogs.GetCacheSummary()
		out.ProviderCount = summary.ProviderCount
		out.ProviderModelCount = summary.TotalModelCount
	}
	return c.JSON(http.StatusOK, out)
}
