// Package runner orchestrates one invocation of the logger: each named task
// is a short batch of fetch-decide-write steps. Steps are isolated: a
// failing feed or parse logs and skips, and sibling steps still execute.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/hwaheed13/nws-forecast-logger/internal/domain"
	"github.com/hwaheed13/nws-forecast-logger/internal/ingest"
	"github.com/hwaheed13/nws-forecast-logger/internal/observability"
	"github.com/hwaheed13/nws-forecast-logger/internal/predict"
	"github.com/hwaheed13/nws-forecast-logger/internal/store"
)

// Task names, settable via the TASK environment variable.
const (
	TaskForecastToday     = "forecast_today"
	TaskForecastTomorrow  = "forecast_tomorrow"
	TaskActualProvisional = "actual_provisional"
	TaskActualFinalize    = "actual_finalize"
	TaskBCPSnapshot       = "bcp_snapshot"
	TaskAccuWeather       = "accuweather"
	TaskPredictions       = "predictions"
	TaskSmartAll          = "smart_all"
)

// ForecastFeed supplies dated forecast highs (the NWS forecast API).
type ForecastFeed interface {
	DaytimeHigh(ctx context.Context, date string) (ingest.Observation, bool, error)
}

// BulletinFeed supplies the CLI report body.
type BulletinFeed interface {
	Bulletin(ctx context.Context) (string, error)
}

// DailyFeed supplies forecast highs by day offset (the secondary feed).
type DailyFeed interface {
	DailyHigh(ctx context.Context, date string, offset int) (ingest.Observation, bool, error)
}

// SnapshotPublisher persists prediction snapshots downstream.
type SnapshotPublisher interface {
	Upsert(ctx context.Context, snap predict.Snapshot) error
}

// Runner wires the feeds, policies, and stores into executable tasks.
// The accu feed and the publisher may be nil; their tasks then no-op.
type Runner struct {
	windows   domain.Windows
	forecasts ForecastFeed
	bulletins BulletinFeed
	accu      DailyFeed
	publisher SnapshotPublisher

	primary   *ingest.Policy
	secondary *ingest.Policy

	primaryStore *store.Store
	accuStore    *store.Store

	modelVersion string
	logger       *slog.Logger
	metrics      *observability.Metrics

	ready    atomic.Bool
	mu       sync.Mutex
	lastTask string
	lastDone time.Time
}

// New creates a Runner.
func New(
	windows domain.Windows,
	forecasts ForecastFeed,
	bulletins BulletinFeed,
	accu DailyFeed,
	publisher SnapshotPublisher,
	primary, secondary *ingest.Policy,
	primaryStore, accuStore *store.Store,
	modelVersion string,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Runner {
	return &Runner{
		windows:      windows,
		forecasts:    forecasts,
		bulletins:    bulletins,
		accu:         accu,
		publisher:    publisher,
		primary:      primary,
		secondary:    secondary,
		primaryStore: primaryStore,
		accuStore:    accuStore,
		modelVersion: modelVersion,
		logger:       logger,
		metrics:      metrics,
	}
}

// CheckReadiness returns nil once at least one task batch has completed.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no task batch has completed yet")
	}
	return nil
}

// LastBatch reports the most recently completed task batch. ok is false
// until the first batch finishes.
func (r *Runner) LastBatch() (task string, completedAt time.Time, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastTask == "" {
		return "", time.Time{}, false
	}
	return r.lastTask, r.lastDone, true
}

// Run executes one named task. Unknown task names run the full batch.
func (r *Runner) Run(ctx context.Context, task string) error {
	if task == "" {
		task = TaskSmartAll
	}
	start := time.Now()
	r.metrics.RunnerRunning.Set(1)
	defer func() {
		r.metrics.RunnerRunning.Set(0)
		r.metrics.TaskDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
	}()

	switch task {
	case TaskForecastToday:
		r.step(ctx, task, r.forecastToday)
	case TaskForecastTomorrow:
		r.step(ctx, task, r.forecastTomorrow)
	case TaskActualProvisional:
		r.step(ctx, task, r.actualProvisional)
	case TaskActualFinalize:
		r.step(ctx, task, r.actualFinalize)
	case TaskBCPSnapshot:
		r.step(ctx, task, r.bcpSnapshot)
	case TaskAccuWeather:
		r.step(ctx, task, r.accuWeather)
	case TaskPredictions:
		r.step(ctx, task, r.predictions)
	default:
		// smart_all: run everything, idempotently. Each step derives its
		// decisions from the current file content, so any ordering and any
		// re-run converges to the same log.
		r.step(ctx, TaskForecastToday, r.forecastToday)
		r.step(ctx, TaskForecastTomorrow, r.forecastTomorrow)
		r.step(ctx, TaskActualProvisional, r.actualProvisional)
		r.step(ctx, TaskActualFinalize, r.actualFinalize)
		r.step(ctx, TaskBCPSnapshot, r.bcpSnapshot)
		r.step(ctx, TaskAccuWeather, r.accuWeather)
		r.step(ctx, TaskPredictions, r.predictions)
	}

	r.ready.Store(true)
	r.mu.Lock()
	r.lastTask = task
	r.lastDone = r.windows.Now()
	r.mu.Unlock()
	return nil
}

// step isolates one unit of work: failures are logged and swallowed so
// sibling steps in the same invocation still execute.
func (r *Runner) step(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		r.logger.Error("step failed", "step", name, "error", err)
	}
}

func (r *Runner) forecastToday(ctx context.Context) error {
	today := r.windows.Today()
	obs, found, err := r.forecasts.DaytimeHigh(ctx, today)
	if err != nil {
		r.metrics.FeedFetchErrors.WithLabelValues("nws").Inc()
		return err
	}
	if !found {
		r.logger.Info("no daytime forecast period for today", "target_date", today)
		return nil
	}
	return r.primary.LogForecast(obs)
}

func (r *Runner) forecastTomorrow(ctx context.Context) error {
	tomorrow := r.windows.Tomorrow()
	obs, found, err := r.forecasts.DaytimeHigh(ctx, tomorrow)
	if err != nil {
		r.metrics.FeedFetchErrors.WithLabelValues("nws").Inc()
		return err
	}
	if !found {
		r.logger.Info("no daytime forecast period for tomorrow", "target_date", tomorrow)
		return nil
	}
	return r.primary.LogForecastTomorrow(obs)
}

func (r *Runner) actualProvisional(ctx context.Context) error {
	// Cheap gate before the network call; the policy re-checks.
	if !r.windows.AfterEveningCutoff(r.windows.Now()) {
		r.logger.Info("before evening cutoff, skipping provisional actual")
		return nil
	}
	text, err := r.bulletins.Bulletin(ctx)
	if err != nil {
		r.metrics.FeedFetchErrors.WithLabelValues("nws_cli").Inc()
		return err
	}
	sections := domain.ParseBulletinSections(text)
	return r.primary.CaptureProvisionalActual(sections[domain.SectionToday])
}

func (r *Runner) actualFinalize(ctx context.Context) error {
	if !r.windows.InMorningWindow(r.windows.Now()) {
		r.logger.Info("outside morning window, skipping finalize")
		return nil
	}
	text, err := r.bulletins.Bulletin(ctx)
	if err != nil {
		r.metrics.FeedFetchErrors.WithLabelValues("nws_cli").Inc()
		return err
	}
	sections := domain.ParseBulletinSections(text)
	return r.primary.FinalizeYesterday(sections[domain.SectionYesterday])
}

func (r *Runner) bcpSnapshot(_ context.Context) error {
	return r.primary.FreezeBiasSnapshot(r.windows.Today())
}

func (r *Runner) accuWeather(ctx context.Context) error {
	if r.accu == nil || r.secondary == nil {
		return nil
	}
	now := r.windows.Now()
	if r.windows.InFreezeWindow(now) {
		r.logger.Info("freeze window, skipping secondary feed fetch")
		return nil
	}

	today := r.windows.Today()
	if obs, found, err := r.accu.DailyHigh(ctx, today, 0); err != nil {
		r.metrics.FeedFetchErrors.WithLabelValues("accuweather").Inc()
		return err
	} else if found {
		if err := r.secondary.LogForecast(obs); err != nil {
			return err
		}
	}

	tomorrow := r.windows.Tomorrow()
	obs, found, err := r.accu.DailyHigh(ctx, tomorrow, 1)
	if err != nil {
		r.metrics.FeedFetchErrors.WithLabelValues("accuweather").Inc()
		return err
	}
	if !found {
		return nil
	}
	return r.secondary.LogForecastTomorrow(obs)
}

func (r *Runner) predictions(ctx context.Context) error {
	if r.publisher == nil {
		return nil
	}

	entries, err := r.mergedEntries()
	if err != nil {
		return err
	}
	now := r.windows.Now()
	loc := r.windows.Location()

	if snap, ok := predict.TodayForToday(entries, r.windows.Today(), loc); ok {
		r.publish(ctx, snap, now)
	} else {
		r.metrics.SnapshotsSent.WithLabelValues(predict.RecordTodayForToday, "skipped").Inc()
		r.logger.Info("not enough data for today_for_today snapshot")
	}

	snap := predict.TodayForTomorrow(entries, r.windows.Tomorrow(), loc)
	r.publish(ctx, snap, now)
	return nil
}

func (r *Runner) publish(ctx context.Context, snap predict.Snapshot, now time.Time) {
	snap.AsOf = now
	snap.ModelVersion = r.modelVersion
	if err := r.publisher.Upsert(ctx, snap); err != nil {
		r.metrics.SnapshotsSent.WithLabelValues(snap.RecordType, "error").Inc()
		r.logger.Error("snapshot publish failed", "record_type", snap.RecordType, "error", err)
		return
	}
	r.metrics.SnapshotsSent.WithLabelValues(snap.RecordType, "success").Inc()
}

// mergedEntries reads both feed-family files into one view for the
// prediction computations. The trainer reads the same union offline.
func (r *Runner) mergedEntries() ([]domain.Entry, error) {
	loc := r.windows.Location()
	entries, err := r.primaryStore.Entries(loc)
	if err != nil {
		return nil, err
	}
	if r.accuStore != nil {
		accu, err := r.accuStore.Entries(loc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, accu...)
	}
	return entries, nil
}

// Loop runs the full batch at each configured local clock time until the
// context is cancelled.
func (r *Runner) Loop(ctx context.Context, fetchTimes []string) error {
	s := gocron.NewScheduler(r.windows.Location())
	_, err := s.Every(1).Day().At(strings.Join(fetchTimes, ";")).Do(func() {
		if err := r.Run(ctx, TaskSmartAll); err != nil {
			r.logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	r.logger.Info("loop mode started", "fetch_times", fetchTimes)
	s.StartAsync()
	<-ctx.Done()
	s.Stop()
	r.logger.Info("loop mode stopping", "reason", ctx.Err())
	return nil
}
