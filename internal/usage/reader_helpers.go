package usage

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// buildWhereClause joins condition strings into a SQL WHERE clause.
// Returns an empty string when conditions is empty.
func buildWhereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

// sqlFilter builds the WHERE clause for params. placeholder renders the
// n-th (1-based) bind parameter; formatTime renders time arguments.
func sqlFilter(params UsageQueryParams, placeholder func(n int) string, formatTime func(time.Time) any) (string, []any) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, placeholder(len(args))))
	}
	if params.ProjectID != "" {
		add("project_id = %s", params.ProjectID)
	}
	if !params.StartDate.IsZero() {
		add("created_at >= %s", formatTime(params.StartDate))
	}
	if !params.EndDate.IsZero() {
		add("created_at <= %s", formatTime(params.EndDate))
	}
	return buildWhereClause(conditions), args
}

// clampLimitOffset normalises pagination parameters:
//   - limit defaults to DefaultLogLimit and is capped at MaxLogLimit
//   - offset floors at 0
func clampLimitOffset(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func finishSummary(s *UsageSummary) *UsageSummary {
	s.FailedRequests = s.TotalRequests - s.SuccessfulRequests
	return s
}

// sortModelUsage orders by request count descending, then model ID.
func sortModelUsage(stats []ModelUsage) {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Requests != stats[j].Requests {
			return stats[i].Requests > stats[j].Requests
		}
		return stats[i].ModelID < stats[j].ModelID
	})
}
