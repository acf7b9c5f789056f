// planner-twin serves a local Fitness Planner API with deterministic
// programs and plans. Point the server at it with FITNESS_API_URL and
// VITALITY_API_BASE.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vitality/internal/plannertwin"
)

func main() {
	var (
		port     int
		cfg      plannertwin.Config
		verbose  bool
		shutdown = 10 * time.Second
	)
	flag.IntVar(&port, "port", 8000, "HTTP listen port")
	flag.StringVar(&cfg.APIKey, "api-key", os.Getenv("FITNESS_API_KEY"), "Require this bearer token on planner routes")
	flag.DurationVar(&cfg.Latency, "latency", 0, "Simulated latency per planner call")
	flag.DurationVar(&cfg.GenerateLatency, "generate-latency", 0, "Extra latency for /generate-plans")
	flag.Float64Var(&cfg.FailRate, "fail-rate", 0, "Random failure rate 0.0-1.0")
	flag.BoolVar(&verbose, "verbose", false, "Log every request")
	flag.Parse()

	if cfg.FailRate < 0 || cfg.FailRate > 1 {
		fmt.Fprintln(os.Stderr, "planner-twin: -fail-rate must be between 0.0 and 1.0")
		os.Exit(2)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	twin := plannertwin.New(cfg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           twin.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("twin_starting", "addr", srv.Addr, "latency", cfg.Latency.String(), "fail_rate", cfg.FailRate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("twin_server_failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("twin_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("twin_shutdown_failed", "error", err)
	}
}
