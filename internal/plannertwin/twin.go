// Package plannertwin is a local stand-in for the Fitness Planner API. It
// answers the same routes with deterministic programs and plans so the
// dashboard can be developed and tested without the hosted model.
package plannertwin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"vitality/internal/adapters/planner"
	"vitality/internal/adapters/spreadsheet"
	"vitality/internal/domain/member"
)

const maxUploadBytes = 10 << 20

// Config controls the twin's behaviour. The zero value answers instantly
// and accepts any caller.
type Config struct {
	APIKey   string        // when set, requests must carry "Bearer <APIKey>"
	Latency  time.Duration // added before every planner response
	FailRate float64       // 0.0-1.0 share of planner calls answered with 500
	// GenerateLatency is added to /generate-plans on top of Latency, to
	// exercise caller timeouts.
	GenerateLatency time.Duration
}

// Stats counts calls per route.
type Stats struct {
	Calls map[string]int `json:"calls"`
}

// Twin serves the planner routes.
type Twin struct {
	mu    sync.RWMutex
	cfg   Config
	calls map[string]int
	rand  func() float64
}

// New creates a twin.
func New(cfg Config) *Twin {
	return &Twin{cfg: cfg, calls: make(map[string]int), rand: rand.Float64}
}

// SetConfig replaces the runtime config.
func (t *Twin) SetConfig(cfg Config) {
	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()
}

func (t *Twin) config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// Stats returns a copy of the call counters.
func (t *Twin) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Stats{Calls: make(map[string]int, len(t.calls))}
	for k, v := range t.calls {
		s.Calls[k] = v
	}
	return s
}

// Handler returns the twin's router.
func (t *Twin) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, t.requestLog)

	r.Get(planner.PathHealth, t.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(t.auth, t.count, t.faults)
		r.Post(planner.PathAssignPrograms, t.handleAssign)
		r.Post(planner.PathAssignProgramsCSV, t.handleAssignCSV)
		r.Post(planner.PathGeneratePlans, t.handleGenerate)
		r.Post(planner.PathProcess, t.handleProcess)
	})

	r.Get("/admin/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, t.Stats())
	})
	r.Post("/admin/reset", func(w http.ResponseWriter, _ *http.Request) {
		t.mu.Lock()
		t.calls = make(map[string]int)
		t.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func (t *Twin) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("twin_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func (t *Twin) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := t.config().APIKey
		if key != "" && r.Header.Get("Authorization") != "Bearer "+key {
			writeDetail(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Twin) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.mu.Lock()
		t.calls[r.URL.Path]++
		t.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// faults applies latency and random failures. A client that gives up
// while the twin sleeps gets no response.
func (t *Twin) faults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := t.config()
		delay := cfg.Latency
		if r.URL.Path == planner.PathGeneratePlans {
			delay += cfg.GenerateLatency
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if cfg.FailRate > 0 && t.rand() < cfg.FailRate {
			writeDetail(w, http.StatusInternalServerError, "Simulated planner failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Twin) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"models_loaded": true,
		"azure_openai":  false,
		"twin":          true,
	})
}

func (t *Twin) handleAssign(w http.ResponseWriter, r *http.Request) {
	members, ok := readMembersJSON(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": assignAll(members)})
}

func (t *Twin) handleAssignCSV(w http.ResponseWriter, r *http.Request) {
	members, ok := readMembersCSV(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": assignAll(members)})
}

func (t *Twin) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Could not read request body")
		return
	}
	list, err := member.DecodeList[member.WithPlans](body, member.KeyMembers, member.KeyData)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "members must be an array")
		return
	}
	out := make([]member.WithPlans, 0, len(list))
	for _, m := range list {
		out = append(out, Plan(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// handleProcess accepts a CSV upload or a JSON member list. Plans are
// generated when ?generatePlans=true.
func (t *Twin) handleProcess(w http.ResponseWriter, r *http.Request) {
	var (
		members []member.Member
		ok      bool
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		members, ok = readMembersCSV(w, r)
	} else {
		members, ok = readMembersJSON(w, r)
	}
	if !ok {
		return
	}
	out := assignAll(members)
	if r.URL.Query().Get("generatePlans") == "true" {
		for i := range out {
			out[i] = Plan(out[i])
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id": uuid.NewString(),
		"members":  out,
	})
}

func assignAll(members []member.Member) []member.WithPlans {
	out := make([]member.WithPlans, 0, len(members))
	for _, m := range members {
		out = append(out, Assign(m))
	}
	return out
}

func readMembersJSON(w http.ResponseWriter, r *http.Request) ([]member.Member, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Could not read request body")
		return nil, false
	}
	members, err := member.DecodeList[member.Member](body, member.KeyMembers)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "members must be an array")
		return nil, false
	}
	for _, m := range members {
		if err := m.Validate(); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "member "+m.MemberID.String()+": "+err.Error())
			return nil, false
		}
	}
	return members, true
}

func readMembersCSV(w http.ResponseWriter, r *http.Request) ([]member.Member, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "field 'file' is required")
		return nil, false
	}
	defer file.Close()

	res, err := spreadsheet.ReadMembers(file)
	var ve *spreadsheet.ImportValidationError
	switch {
	case errors.As(err, &ve):
		writeDetail(w, http.StatusUnprocessableEntity, ve.Message)
		return nil, false
	case err != nil:
		writeDetail(w, http.StatusUnprocessableEntity, "Could not parse CSV")
		return nil, false
	}
	if len(res.Errors) > 0 {
		first := res.Errors[0]
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": "Invalid CSV format",
			"errors": res.Errors,
			"row":    first.Row,
		})
		return nil, false
	}
	return res.Members, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("twin_encode_failed", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
