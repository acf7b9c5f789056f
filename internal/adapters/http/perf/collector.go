package perf

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// EntryKind distinguishes inbound requests, database queries and calls to
// the planner or sheets upstreams.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindQuery
	KindUpstream
)

// Entry is a single timing record stored in the ring buffer.
type Entry struct {
	Kind       EntryKind
	Path       string // HTTP path, "ExecContext", or "planner.GeneratePlans"
	StatusCode int    // HTTP status (0 for queries and transport failures)
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring buffer for timing entries.
// Writes are non-blocking; when full, oldest entries are overwritten.
// Aggregation happens only on read (Snapshot).
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	count   int64 // total entries ever written (atomic for stats)
}

// NewCollector creates a collector with the given ring buffer capacity.
// PRE: size > 0
// POST: Returns a ready-to-use collector with pre-allocated storage
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Record appends an entry to the ring buffer.
// PRE: e is a valid Entry
// POST: Entry stored; if buffer full, oldest entry overwritten
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % c.size
	c.mu.Unlock()
	atomic.AddInt64(&c.count, 1)
}

// ObserveUpstream records one outbound call. Safe on a nil Collector so
// clients can be built without one.
func (c *Collector) ObserveUpstream(op string, status int, start time.Time) {
	if c == nil {
		return
	}
	c.Record(Entry{
		Kind:       KindUpstream,
		Path:       op,
		StatusCode: status,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:  start,
	})
}

// TotalRecorded returns the total number of entries ever recorded.
// PRE: none
// POST: returns count >= 0
func (c *Collector) TotalRecorded() int64 {
	return atomic.LoadInt64(&c.count)
}

// Snapshot holds aggregated performance data computed on read.
type Snapshot struct {
	TotalRequests    int64      `json:"total_recorded"`
	RequestP50Ms     float64    `json:"request_p50_ms"`
	RequestP95Ms     float64    `json:"request_p95_ms"`
	RequestP99Ms     float64    `json:"request_p99_ms"`
	SlowestPaths     []PathStat `json:"slowest_paths"`
	SlowestQueries   []PathStat `json:"slowest_queries"`
	SlowestUpstream  []PathStat `json:"slowest_upstream"`
	UpstreamFailures int        `json:"upstream_failures"`
}

// PathStat aggregates timing for a single path, query op or upstream op.
type PathStat struct {
	Path    string  `json:"path"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	Count   int     `json:"count"`
	TotalMs float64 `json:"total_ms"`
}

// Snapshot computes aggregated stats from the ring buffer.
// This is expensive (sorts) and should only be called on demand.
// PRE: none
// POST: Returns a Snapshot with percentiles and top-N lists
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := make([]Entry, c.size)
	copy(buf, c.entries)
	c.mu.Unlock()

	var requestDurations []float64
	byKind := map[EntryKind]map[string]*PathStat{
		KindRequest:  {},
		KindQuery:    {},
		KindUpstream: {},
	}
	failures := 0

	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		stats, ok := byKind[e.Kind]
		if !ok {
			continue
		}
		if e.Kind == KindRequest {
			requestDurations = append(requestDurations, e.DurationMs)
		}
		if e.Kind == KindUpstream && (e.StatusCode == 0 || e.StatusCode >= 400) {
			failures++
		}
		s, ok := stats[e.Path]
		if !ok {
			s = &PathStat{Path: e.Path}
			stats[e.Path] = s
		}
		s.Count++
		s.TotalMs += e.DurationMs
		if e.DurationMs > s.MaxMs {
			s.MaxMs = e.DurationMs
		}
	}

	for _, stats := range byKind {
		for _, s := range stats {
			s.AvgMs = s.TotalMs / float64(s.Count)
		}
	}

	snap := Snapshot{
		TotalRequests:    c.TotalRecorded(),
		SlowestPaths:     topByAvg(byKind[KindRequest], topN),
		SlowestQueries:   topByAvg(byKind[KindQuery], topN),
		SlowestUpstream:  topByAvg(byKind[KindUpstream], topN),
		UpstreamFailures: failures,
	}

	if len(requestDurations) > 0 {
		sort.Float64s(requestDurations)
		snap.RequestP50Ms = percentile(requestDurations, 50)
		snap.RequestP95Ms = percentile(requestDurations, 95)
		snap.RequestP99Ms = percentile(requestDurations, 99)
	}

	return snap
}

// percentile returns the p-th percentile from a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// topByAvg returns the top N paths sorted by average duration (descending).
func topByAvg(stats map[string]*PathStat, n int) []PathStat {
	list := make([]PathStat, 0, len(stats))
	for _, s := range stats {
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].AvgMs > list[j].AvgMs
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}
