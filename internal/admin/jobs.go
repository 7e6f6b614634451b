package admin

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"freeway/internal/core"
	"freeway/internal/jobs"
)

// ValidateModels handles POST /admin/jobs/validate-models. The run happens
// inline and its report is returned.
func (h *Handler) ValidateModels(c echo.Context) error {
	report, err := h.jobs.ValidateModels(c.Request().Context())
	if err != nil {
		return handleJobError(c, jobs.JobValidateModels, err)
	}
	return c.JSON(http.StatusOK, report)
}

// RunBenchmark handles POST /admin/jobs/benchmark.
func (h *Handler) RunBenchmark(c echo.Context) error {
	report, err := h.jobs.RunBenchmark(c.Request().Context())
	if err != nil {
		return handleJobError(c, jobs.JobRunBenchmark, err)
	}
	return c.JSON(http.StatusOK, report)
}

// RefreshModels handles POST /admin/jobs/refresh-models.
func (h *Handler) RefreshModels(c echo.Context) error {
	if err := h.jobs.RefreshModels(c.Request().Context()); err != nil {
		return handleJobError(c, jobs.JobRefreshModels, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Model catalog refreshed successfully"})
}

func handleJobError(c echo.Context, job string, err error) error {
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		return handleError(c, core.NewInvalidRequestErrorWithStatus(
			http.StatusConflict, job+" is already running", err))
	}
	return handleError(c, core.NewUnavailableError(job+" failed: "+err.Error()))
}
