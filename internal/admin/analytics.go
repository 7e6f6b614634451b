package admin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"freeway/internal/core"
	"freeway/internal/usage"
)

const dateLayout = "2006-01-02"

// GlobalSummary is the response of GET /admin/analytics/summary.
type GlobalSummary struct {
	TotalProjects     int                `json:"total_projects"`
	ActiveProjects    int                `json:"active_projects"`
	RequestsToday     int                `json:"requests_today"`
	RequestsThisMonth int                `json:"requests_this_month"`
	CostTodayUSD      float64            `json:"cost_today_usd"`
	CostThisMonthUSD  float64            `json:"cost_this_month_usd"`
	AllTime           usage.UsageSummary `json:"all_time"`
}

// Period is the date range a report covers. Zero bounds are open.
type Period struct {
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// ProjectUsageResponse is the response of GET /admin/analytics/usage/:projectId.
type ProjectUsageResponse struct {
	ProjectID   string             `json:"project_id"`
	ProjectName string             `json:"project_name"`
	Summary     usage.UsageSummary `json:"summary"`
	ByModel     []usage.ModelUsage `json:"by_model"`
	Period      Period             `json:"period"`
}

// AnalyticsSummary handles GET /admin/analytics/summary.
func (h *Handler) AnalyticsSummary(c echo.Context) error {
	ctx := c.Request().Context()

	list, err := h.projects.List(ctx)
	if err != nil {
		return handleError(c, err)
	}
	out := GlobalSummary{TotalProjects: len(list)}
	for _, p := range list {
		if p.IsActive {
			out.ActiveProjects++
		}
	}

	if h.usage == nil {
		return c.JSON(http.StatusOK, out)
	}

	now := h.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	day, err := h.summary(ctx, usage.UsageQueryParams{StartDate: today})
	if err != nil {
		return handleError(c, err)
	}
	month, err := h.summary(ctx, usage.UsageQueryParams{StartDate: monthStart})
	if err != nil {
		return handleError(c, err)
	}
	all, err := h.summary(ctx, usage.UsageQueryParams{})
	if err != nil {
		return handleError(c, err)
	}

	out.RequestsToday = day.TotalRequests
	out.CostTodayUSD = day.TotalCostUSD
	out.RequestsThisMonth = month.TotalRequests
	out.CostThisMonthUSD = month.TotalCostUSD
	out.AllTime = all
	return c.JSON(http.StatusOK, out)
}

// ProjectUsage handles GET /admin/analytics/usage/:projectId.
func (h *Handler) ProjectUsage(c echo.Context) error {
	ctx := c.Request().Context()

	project, err := h.projects.Get(ctx, c.Param("projectId"))
	if err != nil {
		return handleError(c, err)
	}

	params, err := parseUsageParams(c)
	if err != nil {
		return handleError(c, err)
	}
	params.ProjectID = project.ID

	out := ProjectUsageResponse{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		ByModel:     []usage.ModelUsage{},
		Period:      periodOf(params),
	}
	if h.usage == nil {
		return c.JSON(http.StatusOK, out)
	}

	if out.Summary, err = h.summary(ctx, params); err != nil {
		return handleError(c, err)
	}
	byModel, err := h.usage.GetModelUsage(ctx, params)
	if err != nil {
		return handleError(c, err)
	}
	if byModel != nil {
		out.ByModel = byModel
	}
	return c.JSON(http.StatusOK, out)
}

// UsageLogs handles GET /admin/analytics/logs.
//
// Query parameters: project_id, start_date, end_date, limit (default 100,
// at most 1000) and offset.
func (h *Handler) UsageLogs(c echo.Context) error {
	params, err := parseUsageParams(c)
	if err != nil {
		return handleError(c, err)
	}
	params.ProjectID = c.QueryParam("project_id")

	limit, err := intParam(c, "limit")
	if err != nil {
		return handleError(c, err)
	}
	offset, err := intParam(c, "offset")
	if err != nil {
		return handleError(c, err)
	}

	if h.usage == nil {
		return c.JSON(http.StatusOK, usage.LogPage{Logs: []usage.UsageEntry{}, Limit: usage.DefaultLogLimit})
	}

	page, err := h.usage.GetLogs(c.Request().Context(), usage.LogQueryParams{
		UsageQueryParams: params,
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		return handleError(c, err)
	}
	if page.Logs == nil {
		page.Logs = []usage.UsageEntry{}
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) summary(ctx context.Context, params usage.UsageQueryParams) (usage.UsageSummary, error) {
	s, err := h.usage.GetSummary(ctx, params)
	if err != nil || s == nil {
		return usage.UsageSummary{}, err
	}
	return *s, nil
}

// parseUsageParams reads start_date and end_date. Both accept YYYY-MM-DD or
// RFC 3339; a date-only end_date covers the whole day.
func parseUsageParams(c echo.Context) (usage.UsageQueryParams, error) {
	var params usage.UsageQueryParams

	if s := c.QueryParam("start_date"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return params, core.NewInvalidRequestError("invalid start_date format, expected YYYY-MM-DD or RFC 3339", err)
		}
		params.StartDate = t
	}

	if s := c.QueryParam("end_date"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return params, core.NewInvalidRequestError("invalid end_date format, expected YYYY-MM-DD or RFC 3339", err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		params.EndDate = t
	}

	if !params.StartDate.IsZero() && !params.EndDate.IsZero() && params.EndDate.Before(params.StartDate) {
		return params, core.NewInvalidRequestError("end_date must not be before start_date", nil)
	}
	return params, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

func intParam(c echo.Context, name string) (int, error) {
	s := c.QueryParam(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, core.NewInvalidRequestError("invalid "+name+": must be an integer", err)
	}
	return n, nil
}

func periodOf(params usage.UsageQueryParams) Period {
	var p Period
	if !params.StartDate.IsZero() {
		start := params.StartDate
		p.StartDate = &start
	}
	if !params.EndDate.IsZero() {
		end := params.EndDate
		p.EndDate = &end
	}
	return p
}
