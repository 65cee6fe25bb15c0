// Milepost - Freight performance metrics without the spreadsheet.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/openfreight/milepost/internal/api"
	"github.com/openfreight/milepost/internal/baseline"
	"github.com/openfreight/milepost/internal/bus"
	"github.com/openfreight/milepost/internal/cache"
	"github.com/openfreight/milepost/internal/domain"
	"github.com/openfreight/milepost/internal/engine"
	"github.com/openfreight/milepost/internal/report"
	"github.com/openfreight/milepost/internal/repository"
	"github.com/openfreight/milepost/internal/snapshot"
	"github.com/openfreight/milepost/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("MILEPOST_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting milepost",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("MILEPOST_PROFILE") == "server" {
		cfg = domain.ServerProfileConfig()
		slog.Info("running with the server profile")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Seed the baseline catalog on first launch
	if err := seedBaseline(ctx, repo); err != nil {
		slog.Error("failed to seed baseline catalog", "error", err)
		os.Exit(1)
	}

	// Initialize evaluation Engine
	eng := engine.NewEngine(cacheImpl, cfg.Evaluation.ResultTTL, 100)
	defer eng.Close()
	if err := loadDefinitionsFromDatabase(ctx, repo, eng); err != nil {
		slog.Error("failed to load definitions", "error", err)
		os.Exit(1)
	}
	slog.Info("engine initialized",
		"metrics", eng.MetricsCount(),
		"segments", eng.SegmentsCount(),
	)

	// Record set snapshots and report builder
	snapshots := snapshot.NewService(repo, time.Minute)
	builder := report.NewBuilder(eng)

	// Async report worker
	var asyncWorker *worker.Worker
	if os.Getenv("MILEPOST_WORKER") != "false" {
		asyncWorker = worker.NewWorker(busImpl, repo, eng, builder, snapshots)
		if err := asyncWorker.Start(worker.Config{Debounce: 5 * time.Second}); err != nil {
			slog.Error("failed to start report worker", "error", err)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, builder, snapshots, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("milepost is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		asyncWorker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("milepost shutdown complete")
}

// applyEnvOverrides layers MILEPOST_* environment variables over the
// profile configuration.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("MILEPOST_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MILEPOST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MILEPOST_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("MILEPOST_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("MILEPOST_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("MILEPOST_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("MILEPOST_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("MILEPOST_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("MILEPOST_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("MILEPOST_RESULT_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Evaluation.ResultTTL = ttl
		}
	}
}

// seedBaseline installs the baseline catalog into an empty database.
// Existing definitions are never touched, so upgrades keep local edits.
func seedBaseline(ctx context.Context, repo domain.Repository) error {
	existing, err := repo.ListMetricDefinitions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, def := range baseline.Metrics() {
		if err := repo.SaveMetricDefinition(ctx, def); err != nil {
			return err
		}
	}
	for _, seg := range baseline.Segments() {
		if err := repo.SaveSegment(ctx, seg); err != nil {
			return err
		}
	}

	if os.Getenv("MILEPOST_SEED_SAMPLE") == "true" {
		for _, load := range baseline.Loads() {
			if err := repo.SaveLoad(ctx, load); err != nil {
				return err
			}
		}
		for _, override := range baseline.Overrides() {
			if err := repo.SaveOverride(ctx, override); err != nil {
				return err
			}
		}
		slog.Info("sample fleet seeded",
			"loads", len(baseline.Loads()),
			"overrides", len(baseline.Overrides()),
		)
	}

	slog.Info("baseline catalog seeded",
		"metrics", len(baseline.Metrics()),
		"segments", len(baseline.Segments()),
	)
	return nil
}

// loadDefinitionsFromDatabase loads metric definitions, segments and
// overrides into the engine.
func loadDefinitionsFromDatabase(ctx context.Context, repo domain.Repository, eng *engine.Engine) error {
	defs, err := repo.ListMetricDefinitions(ctx)
	if err != nil {
		return err
	}
	if err := eng.LoadMetrics(defs); err != nil {
		return err
	}

	segs, err := repo.ListSegments(ctx)
	if err != nil {
		return err
	}
	if err := eng.LoadSegments(segs); err != nil {
		return err
	}

	overrides, err := repo.ListOverrides(ctx)
	if err != nil {
		return err
	}
	eng.ReloadOverrides(overrides)

	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  MILEPOST - Freight Performance Metrics")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /evaluate              - Evaluate a metric over the fleet")
	fmt.Println("    POST /loads                 - Ingest a load")
	fmt.Println("    GET  /metrics               - List metric definitions")
	fmt.Println("    POST /metrics               - Create a custom metric")
	fmt.Println("    POST /metrics/{code}/duplicate - Clone a metric for customization")
	fmt.Println("    POST /metrics/reload        - Hot-reload definitions from database")
	fmt.Println("    GET  /segments              - List segments")
	fmt.Println("    POST /segments              - Create a custom segment")
	fmt.Println("    GET  /overrides             - List transaction overrides")
	fmt.Println("    POST /overrides             - Record a transaction override")
	fmt.Println("    GET  /reports/carriers      - Carrier scorecards")
	fmt.Println("    GET  /reports/lanes         - Lane scorecards")
	fmt.Println("    POST /assist                - Draft a definition from a prompt")
	fmt.Println("    GET  /health                - Health check")
	fmt.Println()
}
