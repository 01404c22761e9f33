package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hwaheed13/nws-forecast-logger/internal/adapter/accuweather"
	httpadapter "github.com/hwaheed13/nws-forecast-logger/internal/adapter/http"
	"github.com/hwaheed13/nws-forecast-logger/internal/adapter/nws"
	"github.com/hwaheed13/nws-forecast-logger/internal/adapter/supabase"
	"github.com/hwaheed13/nws-forecast-logger/internal/config"
	"github.com/hwaheed13/nws-forecast-logger/internal/domain"
	"github.com/hwaheed13/nws-forecast-logger/internal/ingest"
	"github.com/hwaheed13/nws-forecast-logger/internal/observability"
	"github.com/hwaheed13/nws-forecast-logger/internal/runner"
	"github.com/hwaheed13/nws-forecast-logger/internal/store"
)

func main() {
	// Local .env, if present; scheduled runs inject real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	windows := domain.NewWindows(cfg.Location)

	primaryStore := store.New(cfg.LogPath)
	primary := ingest.New(primaryStore, windows, "", logger, metrics)

	nwsClient := nws.NewClient(cfg.NWSPointURL, cfg.NWSCLIURL, cfg.HTTPTimeout, logger)

	var (
		accuClient *accuweather.Client
		accuFeed   runner.DailyFeed
		accuStore  *store.Store
		secondary  *ingest.Policy
	)
	if cfg.AccuEnabled {
		accuClient = accuweather.NewClient(cfg.AccuAPIKey, cfg.AccuLocationKey, cfg.HTTPTimeout, logger)
		accuFeed = accuClient
		accuStore = store.New(cfg.AccuLogPath)
		secondary = ingest.New(accuStore, windows, "AccuWeather", logger, metrics)
		logger.Info("secondary feed enabled", "log_path", cfg.AccuLogPath)
	} else {
		logger.Info("secondary feed disabled")
	}

	var publisher runner.SnapshotPublisher
	if cfg.SupabaseEnabled {
		publisher = supabase.NewWriter(cfg.SupabaseURL, cfg.SupabaseKey, cfg.HTTPTimeout, logger)
		logger.Info("prediction publishing enabled", "model_version", cfg.ModelVersion)
	} else {
		logger.Info("prediction publishing disabled")
	}

	r := runner.New(windows, nwsClient, nwsClient, accuFeed, publisher,
		primary, secondary, primaryStore, accuStore, cfg.ModelVersion, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Loop {
		if err := r.Run(ctx, cfg.Task); err != nil {
			logger.Error("task failed", "task", cfg.Task, "error", err)
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, r, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := r.Loop(ctx, cfg.FetchTimes); err != nil {
			logger.Error("loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
