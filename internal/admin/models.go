package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"freeway/internal/core"
	"freeway/internal/modelcache"
)

// SetModelRequest is the body of the model pin endpoints.
type SetModelRequest struct {
	ModelID string `json:"model_id"`
}

// SelectedModelResponse reports the pinned model.
type SelectedModelResponse struct {
	Message string                 `json:"message"`
	Model   modelcache.CachedModel `json:"model"`
}

// SetSelectedFreeModel handles PUT /admin/model/free.
func (h *Handler) SetSelectedFreeModel(c echo.Context) error {
	return h.pin(c, "free", h.models.SetSelectedFreeModel, h.models.GetSelectedFreeModel)
}

// SetSelectedPaidModel handles PUT /admin/model/paid.
func (h *Handler) SetSelectedPaidModel(c echo.Context) error {
	return h.pin(c, "paid", h.models.SetSelectedPaidModel, h.models.GetSelectedPaidModel)
}

func (h *Handler) pin(
	c echo.Context,
	tier string,
	set func(string) bool,
	selected func() (modelcache.CachedModel, bool),
) error {
	var req SetModelRequest
	if err := bindJSON(c, &req); err != nil {
		return handleError(c, err)
	}
	id := strings.TrimSpace(req.ModelID)
	if id == "" {
		return handleError(c, core.NewInvalidRequestError("model_id is required", nil))
	}

	if !set(id) {
		return handleError(c, core.NewNotFoundError(
			fmt.Sprintf("Model '%s' not found in %s models", id, tier)))
	}
	model, _ := selected()

	slog.Info("model pinned", "tier", tier, "model", id)
	if h.snapshots != nil {
		if _, err := h.snapshots.Save(c.Request().Context()); err != nil {
			slog.Warn("failed to save model cache snapshot", "error", err)
		}
	}

	return c.JSON(http.StatusOK, SelectedModelResponse{
		Message: fmt.Sprintf("Selected %s model set to %s", tier, id),
		Model:   model,
	})
}
