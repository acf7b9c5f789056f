package listutil

import (
	"net/url"
	"strconv"
	"strings"
)

// PageParams carries pagination parameters parsed from a request.
type PageParams struct {
	Page    int // 1-indexed page number
	PerPage int // rows per page
}

// FilterParams carries search and filter parameters.
type FilterParams struct {
	Search  string            // free-text search query
	Filters map[string]string // exact-match filters (e.g. cluster=2)
}

// PageInfo carries pagination metadata for rendering.
type PageInfo struct {
	Page       int // current page (1-indexed)
	PerPage    int // rows per page
	Total      int // total matching rows
	TotalPages int // ceil(Total / PerPage)
}

// DefaultPerPage is the default number of member cards per page.
const DefaultPerPage = 24

// PerPageOptions are the allowed cards-per-page values.
var PerPageOptions = []int{12, 24, 48, 96}

// WindowSize is the number of page links shown around the current page.
const WindowSize = 5

// ParsePageParams extracts page and per_page from URL query values.
// PRE: none
// POST: returns valid PageParams with defaults applied
func ParsePageParams(q url.Values) PageParams {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if !isValidPerPage(perPage) {
		perPage = DefaultPerPage
	}
	return PageParams{Page: page, PerPage: perPage}
}

// ParseLimit reads a free-form positive page size from key, clamped to max.
// PRE: def >= 1, max >= def
// POST: returns a value in [1, max]; def when absent or invalid
func ParseLimit(q url.Values, key string, def, max int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ParseFilterParams extracts search and named filters from URL query values.
// Values are trimmed; "all" counts as no filter.
// PRE: filterKeys lists the allowed filter parameter names
// POST: returns FilterParams with only recognised keys
func ParseFilterParams(q url.Values, filterKeys []string) FilterParams {
	fp := FilterParams{
		Search:  strings.TrimSpace(q.Get("q")),
		Filters: make(map[string]string),
	}
	for _, key := range filterKeys {
		if v := strings.TrimSpace(q.Get(key)); v != "" && v != "all" {
			fp.Filters[key] = v
		}
	}
	return fp
}

// NewPageInfo computes pagination metadata.
// PRE: total >= 0, perPage > 0, page >= 1
// POST: returns PageInfo with TotalPages computed; Page clamped to valid range
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return PageInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset returns the index of the first row on the current page.
// PRE: PageInfo is valid
// POST: Returns (Page-1) * PerPage
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// StartRow returns the 1-indexed first row number on the current page.
// PRE: PageInfo is valid
// POST: Returns 0 if Total is 0, otherwise Offset+1
func (p PageInfo) StartRow() int {
	if p.Total == 0 {
		return 0
	}
	return p.Offset() + 1
}

// EndRow returns the 1-indexed last row number on the current page.
// PRE: PageInfo is valid
// POST: Returns min(Offset+PerPage, Total)
func (p PageInfo) EndRow() int {
	end := p.Offset() + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return end
}

// Links returns the pagination controls for this page.
func (p PageInfo) Links() []PageLink {
	return PageLinks(p.Page, p.TotalPages)
}

// ShowPagination returns true if pagination controls should be displayed.
// PRE: PageInfo is valid
// POST: Returns true if Total > PerPage
func (p PageInfo) ShowPagination() bool {
	return p.Total > p.PerPage
}

// Paginate returns the slice of items on the page described by p.
// POST: the result aliases items; len <= p.PerPage
func Paginate[T any](items []T, p PageInfo) []T {
	start := p.Offset()
	if start >= len(items) {
		return items[:0]
	}
	end := p.EndRow()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func isValidPerPage(n int) bool {
	for _, opt := range PerPageOptions {
		if n == opt {
			return true
		}
	}
	return false
}
