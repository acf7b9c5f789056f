package projections

import (
	"context"
	"log/slog"
	"strings"

	"vitality/internal/application/listutil"
	"vitality/internal/domain/sheet"
)

// Global analytics page size bounds.
const (
	DefaultGlobalLimit = 5
	MaxGlobalLimit     = 100
)

// GlobalAnalyticsQuery carries the sheet view's query string state.
type GlobalAnalyticsQuery struct {
	Page   int
	Limit  int
	Search string
	Tab    string
}

// GlobalColumn is one table column with its display metadata.
type GlobalColumn struct {
	Key   string
	Label string
	Kind  string
}

// GlobalAnalyticsResult is the rendered-ready sheet page. Error is set,
// and the rest is empty, when the upstream could not be read.
type GlobalAnalyticsResult struct {
	Rows     []sheet.Row
	Columns  []GlobalColumn
	PageInfo listutil.PageInfo
	Links    []listutil.PageLink
	Search   string
	Tab      string
	Error    string
}

// GlobalAnalyticsDeps holds dependencies for QueryGlobalAnalytics.
type GlobalAnalyticsDeps struct {
	Sheets SheetSource
}

// QueryGlobalAnalytics fetches one page of sheet rows.
// PRE: none; zero values take defaults
// POST: Upstream failures are reported in Error, never returned
func QueryGlobalAnalytics(ctx context.Context, query GlobalAnalyticsQuery, deps GlobalAnalyticsDeps) GlobalAnalyticsResult {
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = DefaultGlobalLimit
	}
	if limit > MaxGlobalLimit {
		limit = MaxGlobalLimit
	}
	tab := query.Tab
	if tab == "" {
		tab = "data"
	}
	search := strings.TrimSpace(query.Search)

	res := GlobalAnalyticsResult{Search: search, Tab: tab}
	p, err := deps.Sheets.FetchDashboard(ctx, page, limit, search)
	if err != nil {
		slog.Warn("global_analytics_fetch_failed", "page", page, "limit", limit, "error", err)
		res.Error = err.Error()
		res.PageInfo = listutil.NewPageInfo(1, limit, 0)
		return res
	}

	if p.Page < 1 {
		p.Page = page
	}
	res.Rows = p.Data
	for _, key := range p.Columns() {
		res.Columns = append(res.Columns, GlobalColumn{Key: key, Label: sheet.FieldLabel(key), Kind: sheet.FieldKind(key)})
	}
	res.PageInfo = listutil.PageInfo{
		Page:       p.Page,
		PerPage:    limit,
		Total:      p.TotalRecords,
		TotalPages: p.TotalPages,
	}
	if p.TotalPages > 0 {
		res.Links = listutil.PageLinks(p.Page, p.TotalPages)
	}
	return res
}
