// Package web serves the Vitality dashboard, member plan pages and the
// /api proxy to the Fitness Planner.
package web

import (
	"context"
	"crypto/rand"
	"embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"vitality/internal/adapters/email"
	"vitality/internal/adapters/http/middleware"
	"vitality/internal/adapters/http/perf"
	"vitality/internal/adapters/pdf"
	"vitality/internal/adapters/planner"
	"vitality/internal/adapters/sheets"
	planSetStore "vitality/internal/adapters/storage/planset"
	runlogStore "vitality/internal/adapters/storage/runlog"
	"vitality/internal/application/orchestrators"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Stores holds all storage dependencies.
type Stores struct {
	PlanSets planSetStore.Store
	Runs     runlogStore.Store
}

// Services holds upstream clients and runtime settings.
type Services struct {
	// Proxy serves the /api routes and the dashboard pipeline. It is nil
	// when FITNESS_API_URL is unset.
	Proxy   *planner.Client
	Sheets  *sheets.Client
	PDF     pdf.Renderer
	Tracker *orchestrators.RunTracker

	UploadTimeout   time.Duration
	GenerateTimeout time.Duration

	CSRFKey              []byte // random per process when nil
	OperatorPasswordHash string // bcrypt; empty disables operator login
	CORSOrigins          []string
	SlowRequestMs        int
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global services instance (set by NewMux)
var services *Services

// Global session store instance
var sessions *middleware.SessionStore

// Global login lockout state (set by NewMux)
var loginGuard *orchestrators.LoginGuard

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 20

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// Global email sender instance (set by SetEmailSender)
var emailSender email.Sender

// Email configuration
var emailFromAddress string
var emailReplyTo string

// SetEmailSender sets the global email sender for the application.
func SetEmailSender(sender email.Sender, from, replyTo string) {
	emailSender = sender
	emailFromAddress = from
	emailReplyTo = replyTo
}

// NewMux wires HTTP handlers for the app. Background work started by the
// mux stops when ctx is done.
// PRE: s and svc are non-nil; svc.Sheets, svc.PDF and svc.Tracker are set
func NewMux(ctx context.Context, s *Stores, svc *Services, collector *perf.Collector) http.Handler {
	stores = s
	services = svc
	perfCollector = collector
	sessions = middleware.NewSessionStore()
	loginGuard = orchestrators.NewLoginGuard()

	csrfKey := svc.CSRFKey
	if len(csrfKey) == 0 {
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			panic(err)
		}
		slog.Warn("csrf_key_random", "hint", "set VITALITY_CSRF_KEY so forms survive restarts")
	}
	limiter := middleware.NewRateLimiter(ctx, RateLimitPerSecond, time.Second)
	operatorOnly := middleware.RequireOperator(svc.OperatorPasswordHash != "")

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.Timing(collector, svc.SlowRequestMs),
		chimw.Recoverer,
		middleware.SecurityHeaders,
		middleware.RateLimit(limiter),
		middleware.Profile,
		middleware.Auth(sessions),
	)

	r.Handle("/static/*", staticFiles())
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: svc.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         600,
		}).Handler)

		r.Post("/assign-programs", handleAssignPrograms)
		r.Post("/upload-csv", handleUploadCSV)
		r.Post("/process", handleProcess)
		r.Post("/generate-plans", handleGeneratePlans)
		r.Get("/health", handleHealth)
		r.Get("/summary", handleSummary)
		r.Get("/member/", handleMemberPassthrough)
		r.Get("/member/{memberId}", handleMemberPassthrough)
		r.With(operatorOnly).Get("/perf", handlePerf)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRF(csrfKey))

		r.Get("/login", handleLoginPage)
		r.Post("/login", handleLogin)
		r.Post("/logout", handleLogout)

		r.Get("/dashboard", handleDashboard)
		r.Get("/dashboard/status", handleDashboardStatus)
		r.Get("/dashboard/export.csv", handleExportCSV)
		r.Get("/dashboard/export.xlsx", handleExportXLSX)
		r.Get("/dashboard/global", handleGlobalAnalytics)
		r.With(operatorOnly).Post("/dashboard/upload", handleDashboardUpload)
		r.With(operatorOnly).Post("/dashboard/clear", handleDashboardClear)

		r.Get("/plan/{memberId}", handlePlan)
		r.Get("/plan/{memberId}/print", handlePlanPrint)
		r.Get("/plan/{memberId}/report.pdf", handlePlanPDF)
		r.With(operatorOnly).Post("/plan/{memberId}/email", handlePlanEmail)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if isHTMLRequest(r) {
			renderErrorPage(w, r, http.StatusNotFound, "Not found", "The page you asked for does not exist.")
			return
		}
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}
