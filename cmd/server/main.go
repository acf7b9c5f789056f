package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	emailPkg "vitality/internal/adapters/email"
	web "vitality/internal/adapters/http"
	"vitality/internal/adapters/http/middleware"
	"vitality/internal/adapters/http/perf"
	"vitality/internal/adapters/pdf"
	"vitality/internal/adapters/planner"
	"vitality/internal/adapters/sheets"
	"vitality/internal/adapters/storage"
	planSetStore "vitality/internal/adapters/storage/planset"
	runlogStore "vitality/internal/adapters/storage/runlog"
	"vitality/internal/application/orchestrators"
	"vitality/internal/application/report"
	"vitality/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.IsProduction() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	// WAL mode, busy timeout and foreign keys on every pooled connection
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQueryMs)
	stores := &web.Stores{
		PlanSets: planSetStore.NewSQLiteStore(timedDB),
		Runs:     runlogStore.NewSQLiteStore(timedDB),
	}

	svc := newServices(cfg, collector)
	if svc.Proxy == nil {
		slog.Warn("planner_not_configured", "hint", "set "+config.EnvFitnessAPIURL+" to enable uploads and the /api proxy routes")
	}
	if !svc.Sheets.Configured() {
		slog.Warn("sheets_not_configured", "hint", "set "+config.EnvAppScriptID+" to enable global analytics")
	}

	if cfg.PDFDisabled {
		svc.PDF = pdf.Disabled{}
		slog.Info("pdf_disabled")
	} else {
		renderer := pdf.NewPlaywrightRenderer(pdf.Options{FooterTemplate: report.FooterTemplate})
		defer renderer.Close()
		svc.PDF = renderer
	}

	if cfg.ResendKey != "" {
		web.SetEmailSender(emailPkg.NewResendSender(cfg.ResendKey, cfg.EmailFrom, cfg.EmailReplyTo), cfg.EmailFrom, cfg.EmailReplyTo)
		slog.Info("email_configured", "provider", "resend")
	} else if cfg.IsProduction() {
		slog.Warn("email_disabled", "hint", "set "+config.EnvResendKey+" to email reports")
	} else {
		web.SetEmailSender(emailPkg.NewNoopSender(), cfg.EmailFrom, cfg.EmailReplyTo)
		slog.Info("email_configured", "provider", "noop")
	}

	middleware.SecureCookies = cfg.IsProduction()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewMux(ctx, stores, svc, collector),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server_starting",
			"version", version,
			"addr", cfg.Addr,
			"env", cfg.Mode,
			"schema", storage.LatestSchemaVersion(),
			"planner", cfg.PlannerConfigured(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server_shutdown_failed", "error", err)
	}
}

// newServices builds the upstream clients. The planner client exists only
// when FITNESS_API_URL is set, and FITNESS_API_KEY is attached to that base
// alone. The /api routes and the dashboard pipeline share it.
func newServices(cfg config.Config, collector *perf.Collector) *web.Services {
	svc := &web.Services{
		Sheets:               sheets.New(cfg.AppScriptID, sheets.WithObserver(collector)),
		Tracker:              orchestrators.NewRunTracker(),
		UploadTimeout:        cfg.UploadTimeout,
		GenerateTimeout:      cfg.GenerateTimeout,
		CSRFKey:              cfg.CSRFKey,
		OperatorPasswordHash: cfg.OperatorPasswordHash,
		CORSOrigins:          cfg.CORSOrigins,
		SlowRequestMs:        cfg.SlowRequestMs,
	}
	if !cfg.PlannerConfigured() {
		return svc
	}
	opts := []planner.Option{
		planner.WithAPIKey(cfg.FitnessAPIKey),
		planner.WithObserver(collector),
	}
	if cfg.PlannerHTTPTimeout > 0 {
		opts = append(opts, planner.WithHTTPClient(&http.Client{Timeout: cfg.PlannerHTTPTimeout}))
	}
	svc.Proxy = planner.New(planner.StaticBase(cfg.FitnessAPIURL), opts...)
	return svc
}
