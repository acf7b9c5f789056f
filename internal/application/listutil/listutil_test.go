package listutil

import (
	"net/url"
	"testing"
)

// TestParsePageParams_Defaults verifies default page params when no query values provided.
func TestParsePageParams_Defaults(t *testing.T) {
	p := ParsePageParams(url.Values{})
	if p.Page != 1 {
		t.Errorf("expected page 1, got %d", p.Page)
	}
	if p.PerPage != DefaultPerPage {
		t.Errorf("expected per_page %d, got %d", DefaultPerPage, p.PerPage)
	}
}

// TestParsePageParams_InvalidPerPage verifies fallback to default for per_page outside the options.
func TestParsePageParams_InvalidPerPage(t *testing.T) {
	p := ParsePageParams(url.Values{"page": {"-3"}, "per_page": {"25"}})
	if p.PerPage != DefaultPerPage {
		t.Errorf("expected default per_page %d for invalid value, got %d", DefaultPerPage, p.PerPage)
	}
	if p.Page != 1 {
		t.Errorf("expected page 1 for negative input, got %d", p.Page)
	}
	if ParsePageParams(url.Values{"per_page": {"48"}}).PerPage != 48 {
		t.Error("expected per_page 48 to be accepted")
	}
}

// TestParseLimit verifies the free-form limit used by the analytics view.
func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 5},
		{"abc", 5},
		{"0", 5},
		{"7", 7},
		{"5000", 100},
	}
	for _, tt := range tests {
		got := ParseLimit(url.Values{"limit": {tt.raw}}, "limit", 5, 100)
		if got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

// TestParseFilterParams verifies search and filter extraction from query values.
func TestParseFilterParams(t *testing.T) {
	q := url.Values{"q": {" m-10 "}, "cluster": {"2"}, "program": {"all"}, "unknown": {"x"}}
	f := ParseFilterParams(q, []string{"cluster", "program"})
	if f.Search != "m-10" {
		t.Errorf("expected trimmed search, got %q", f.Search)
	}
	if f.Filters["cluster"] != "2" {
		t.Errorf("expected cluster=2, got %s", f.Filters["cluster"])
	}
	if _, ok := f.Filters["program"]; ok {
		t.Error("\"all\" should not be a filter")
	}
	if _, ok := f.Filters["unknown"]; ok {
		t.Error("unexpected filter key 'unknown'")
	}
}

// TestNewPageInfo verifies pagination metadata computation.
func TestNewPageInfo(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		perPage    int
		total      int
		wantPages  int
		wantPage   int
		wantStart  int
		wantEnd    int
		wantOffset int
	}{
		{"basic", 1, 24, 100, 5, 1, 1, 24, 0},
		{"lastPage", 5, 24, 100, 5, 5, 97, 100, 96},
		{"pageBeyondTotal", 10, 24, 100, 5, 5, 97, 100, 96},
		{"emptyList", 1, 24, 0, 1, 1, 0, 0, 0},
		{"exactFit", 1, 12, 12, 1, 1, 1, 12, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pi := NewPageInfo(tt.page, tt.perPage, tt.total)
			if pi.TotalPages != tt.wantPages {
				t.Errorf("TotalPages: got %d, want %d", pi.TotalPages, tt.wantPages)
			}
			if pi.Page != tt.wantPage {
				t.Errorf("Page: got %d, want %d", pi.Page, tt.wantPage)
			}
			if pi.StartRow() != tt.wantStart {
				t.Errorf("StartRow: got %d, want %d", pi.StartRow(), tt.wantStart)
			}
			if pi.EndRow() != tt.wantEnd {
				t.Errorf("EndRow: got %d, want %d", pi.EndRow(), tt.wantEnd)
			}
			if pi.Offset() != tt.wantOffset {
				t.Errorf("Offset: got %d, want %d", pi.Offset(), tt.wantOffset)
			}
		})
	}
}

// TestPaginate verifies slicing of in-memory rows.
func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	if got := Paginate(items, NewPageInfo(2, 2, len(items))); len(got) != 2 || got[0] != 3 {
		t.Errorf("page 2 = %v", got)
	}
	if got := Paginate(items, NewPageInfo(3, 2, len(items))); len(got) != 1 || got[0] != 5 {
		t.Errorf("page 3 = %v", got)
	}
	if got := Paginate([]int{}, NewPageInfo(1, 2, 0)); len(got) != 0 {
		t.Errorf("empty = %v", got)
	}
}

// TestShowPagination verifies pagination visibility logic.
func TestShowPagination(t *testing.T) {
	if NewPageInfo(1, 12, 12).ShowPagination() {
		t.Error("should not show pagination when total == perPage")
	}
	if !NewPageInfo(1, 12, 13).ShowPagination() {
		t.Error("should show pagination when total > perPage")
	}
}
