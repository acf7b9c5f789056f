package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"vitality/internal/adapters/http/perf"
)

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

// TestTimingMiddleware_EmitsEntry verifies that a request entry is recorded.
func TestTimingMiddleware_EmitsEntry(t *testing.T) {
	collector := perf.NewCollector(100)
	handler := Timing(collector, 0)(http.HandlerFunc(ok))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/health", nil))

	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

// TestTimingMiddleware_SkipsStatic verifies static assets are excluded from timing.
func TestTimingMiddleware_SkipsStatic(t *testing.T) {
	collector := perf.NewCollector(100)
	handler := Timing(collector, 0)(http.HandlerFunc(ok))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/static/app.css", nil))

	if collector.TotalRecorded() != 0 {
		t.Errorf("TotalRecorded = %d, want 0 (static excluded)", collector.TotalRecorded())
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

// TestTimingMiddleware_NilCollector verifies middleware works without a collector.
func TestTimingMiddleware_NilCollector(t *testing.T) {
	rr := httptest.NewRecorder()
	Timing(nil, 0)(http.HandlerFunc(ok)).ServeHTTP(rr, httptest.NewRequest("GET", "/dashboard", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

// TestTimingMiddleware_HandlerPanic verifies the deferred bookkeeping runs
// when the handler panics. Recovery is chi's Recoverer's job.
func TestTimingMiddleware_HandlerPanic(t *testing.T) {
	collector := perf.NewCollector(100)
	handler := Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic to propagate, got nil")
		}
		if collector.TotalRecorded() != 1 {
			t.Errorf("TotalRecorded = %d, want 1 (defer must run even on panic)", collector.TotalRecorded())
		}
	}()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/panic", nil))
}

// TestTimingMiddleware_GroupsByRoutePattern verifies member ids do not
// fragment the perf table.
func TestTimingMiddleware_GroupsByRoutePattern(t *testing.T) {
	collector := perf.NewCollector(10)
	r := chi.NewRouter()
	r.Use(Timing(collector, 0))
	r.Get("/plan/{memberId}", ok)

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/plan/"+id, nil))
	}

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowestPaths) != 1 {
		t.Fatalf("SlowestPaths len = %d, want 1", len(snap.SlowestPaths))
	}
	if snap.SlowestPaths[0].Path != "GET /plan/{memberId}" {
		t.Errorf("Path = %q", snap.SlowestPaths[0].Path)
	}
	if snap.SlowestPaths[0].Count != 3 {
		t.Errorf("Count = %d, want 3", snap.SlowestPaths[0].Count)
	}
}

// TestTimingMiddleware_PoolNoStateLeak verifies statusWriter reuse does not
// leak status codes between requests.
func TestTimingMiddleware_PoolNoStateLeak(t *testing.T) {
	collector := perf.NewCollector(100)

	rr1 := httptest.NewRecorder()
	Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})).ServeHTTP(rr1, httptest.NewRequest("GET", "/api/fail", nil))
	if rr1.Code != 500 {
		t.Errorf("request 1 status = %d, want 500", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})).ServeHTTP(rr2, httptest.NewRequest("GET", "/api/ok", nil))
	if rr2.Code != 200 {
		t.Errorf("request 2 status = %d, want 200 (pool must not leak 500)", rr2.Code)
	}
}

// BenchmarkTimingMiddleware measures per-request overhead.
func BenchmarkTimingMiddleware(b *testing.B) {
	collector := perf.NewCollector(perf.DefaultRingSize)
	handler := Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest("GET", "/api/health", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
