package listutil

// Link kinds rendered by the pagination partial.
const (
	LinkPrev     = "prev"
	LinkPage     = "page"
	LinkEllipsis = "ellipsis"
	LinkNext     = "next"
)

// PageLink is one control in a pagination bar.
// Page is 0 for ellipses. Disabled marks prev/next at a boundary and the
// current page.
type PageLink struct {
	Kind     string
	Page     int
	Current  bool
	Disabled bool
}

// PageNumbers returns the sliding window of at most WindowSize pages around
// current.
// PRE: total >= 1, 1 <= current <= total
// POST: start = max(1, current-2), pulled back so the window stays full when
// the last page is reached
func PageNumbers(current, total int) []int {
	start := current - WindowSize/2
	if start < 1 {
		start = 1
	}
	end := start + WindowSize - 1
	if end > total {
		end = total
	}
	if end-start+1 < WindowSize {
		start = end - WindowSize + 1
		if start < 1 {
			start = 1
		}
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// PageLinks builds the full control set: prev, first page and a leading
// ellipsis when the window starts after page 2, the window, a trailing
// ellipsis when it ends before total-1, the last page, and next.
// INVARIANT: pages 1 and total are always present
func PageLinks(current, total int) []PageLink {
	if total < 1 {
		total = 1
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}
	window := PageNumbers(current, total)
	start, end := window[0], window[len(window)-1]

	links := []PageLink{{Kind: LinkPrev, Page: current - 1, Disabled: current <= 1}}
	if start > 1 {
		links = append(links, PageLink{Kind: LinkPage, Page: 1})
		if start > 2 {
			links = append(links, PageLink{Kind: LinkEllipsis})
		}
	}
	for _, n := range window {
		links = append(links, PageLink{Kind: LinkPage, Page: n, Current: n == current, Disabled: n == current})
	}
	if end < total {
		if end < total-1 {
			links = append(links, PageLink{Kind: LinkEllipsis})
		}
		links = append(links, PageLink{Kind: LinkPage, Page: total})
	}
	links = append(links, PageLink{Kind: LinkNext, Page: current + 1, Disabled: current >= total})
	return links
}
