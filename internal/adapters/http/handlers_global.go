package web

import (
	"net/http"
	"net/url"

	"vitality/internal/application/listutil"
	"vitality/internal/application/projections"
)

// globalPage is the data for global.html.
type globalPage struct {
	projections.GlobalAnalyticsResult
	Limit      int
	Limits     []int
	Configured bool
	Query      url.Values
}

// globalLimitOptions are the rows-per-page choices on the analytics view.
var globalLimitOptions = []int{5, 10, 25, 50, 100}

// handleGlobalAnalytics renders one page of the shared analytics sheet.
func handleGlobalAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := listutil.ParsePageParams(q).Page
	limit := listutil.ParseLimit(q, "limit", projections.DefaultGlobalLimit, projections.MaxGlobalLimit)

	result := projections.QueryGlobalAnalytics(r.Context(), projections.GlobalAnalyticsQuery{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
		Tab:    q.Get("tab"),
	}, projections.GlobalAnalyticsDeps{Sheets: services.Sheets})

	renderTemplate(w, r, "global.html", globalPage{
		GlobalAnalyticsResult: result,
		Limit:                 limit,
		Limits:                globalLimitOptions,
		Configured:            services.Sheets.Configured(),
		Query:                 q,
	})
}
