package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"freeway/internal/projects"
)

// ListProjects handles GET /admin/projects.
func (h *Handler) ListProjects(c echo.Context) error {
	list, err := h.projects.List(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	if list == nil {
		list = []projects.Project{}
	}
	return c.JSON(http.StatusOK, list)
}

// CreateProject handles POST /admin/projects. The raw API key is only ever
// returned here.
func (h *Handler) CreateProject(c echo.Context) error {
	var req projects.CreateRequest
	if err := bindJSON(c, &req); err != nil {
		return handleError(c, err)
	}

	created, err := h.projects.Create(c.Request().Context(), req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// GetProject handles GET /admin/projects/:id.
func (h *Handler) GetProject(c echo.Context) error {
	p, err := h.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateProject handles PATCH /admin/projects/:id.
func (h *Handler) UpdateProject(c echo.Context) error {
	var req projects.UpdateRequest
	if err := bindJSON(c, &req); err != nil {
		return handleError(c, err)
	}

	p, err := h.projects.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// DeleteProject handles DELETE /admin/projects/:id. Projects are deactivated,
// never removed, so their usage history stays attributable.
func (h *Handler) DeleteProject(c echo.Context) error {
	if err := h.projects.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RotateProjectKey handles POST /admin/projects/:id/rotate-key.
func (h *Handler) RotateProjectKey(c echo.Context) error {
	rotated, err := h.projects.RotateKey(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, rotated)
}

// RefreshProjectCache handles POST /admin/projects/refresh-cache.
func (h *Handler) RefreshProjectCache(c echo.Context) error {
	h.projects.RefreshCache()
	return c.JSON(http.StatusOK, messageResponse{Message: "Project cache refreshed successfully"})
}
