package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwaheed13/nws-forecast-logger/internal/domain"
	"github.com/hwaheed13/nws-forecast-logger/internal/ingest"
	"github.com/hwaheed13/nws-forecast-logger/internal/observability"
	"github.com/hwaheed13/nws-forecast-logger/internal/predict"
	"github.com/hwaheed13/nws-forecast-logger/internal/store"
)

type stubForecastFeed struct {
	byDate map[string]ingest.Observation
	err    error
}

func (s *stubForecastFeed) DaytimeHigh(_ context.Context, date string) (ingest.Observation, bool, error) {
	if s.err != nil {
		return ingest.Observation{}, false, s.err
	}
	obs, ok := s.byDate[date]
	return obs, ok, nil
}

type stubBulletinFeed struct {
	text string
	err  error
}

func (s *stubBulletinFeed) Bulletin(_ context.Context) (string, error) {
	return s.text, s.err
}

type stubDailyFeed struct {
	byOffset map[int]ingest.Observation
	err      error
}

func (s *stubDailyFeed) DailyHigh(_ context.Context, date string, offset int) (ingest.Observation, bool, error) {
	if s.err != nil {
		return ingest.Observation{}, false, s.err
	}
	obs, ok := s.byOffset[offset]
	obs.TargetDate = date
	return obs, ok, nil
}

type capturePublisher struct {
	snaps []predict.Snapshot
	err   error
}

func (p *capturePublisher) Upsert(_ context.Context, snap predict.Snapshot) error {
	p.snaps = append(p.snaps, snap)
	return p.err
}

type fixture struct {
	runner       *Runner
	windows      domain.Windows
	loc          *time.Location
	primaryStore *store.Store
	accuStore    *store.Store
}

// newFixture freezes the clock at the given local hour on 2025-01-10 and
// wires a runner over temp-file stores.
func newFixture(t *testing.T, hour int, forecasts ForecastFeed, bulletins BulletinFeed, accu DailyFeed, publisher SnapshotPublisher) *fixture {
	t.Helper()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 1, 10, hour, 0, 0, 0, loc)))
	t.Cleanup(func() { domain.SetClock(nil) })

	windows := domain.NewWindows(loc)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	dir := t.TempDir()
	primaryStore := store.New(filepath.Join(dir, "nws_forecast_log.csv"))
	accuStore := store.New(filepath.Join(dir, "accuweather_log.csv"))

	primary := ingest.New(primaryStore, windows, "", logger, metrics)
	secondary := ingest.New(accuStore, windows, "AccuWeather", logger, metrics)

	r := New(windows, forecasts, bulletins, accu, publisher,
		primary, secondary, primaryStore, accuStore, "bias-v1", logger, metrics)

	return &fixture{
		runner:       r,
		windows:      windows,
		loc:          loc,
		primaryStore: primaryStore,
		accuStore:    accuStore,
	}
}

func (f *fixture) primaryEntries(t *testing.T) []domain.Entry {
	t.Helper()
	entries, err := f.primaryStore.Entries(f.loc)
	require.NoError(t, err)
	return entries
}

func (f *fixture) accuEntries(t *testing.T) []domain.Entry {
	t.Helper()
	entries, err := f.accuStore.Entries(f.loc)
	require.NoError(t, err)
	return entries
}

func (f *fixture) seed(t *testing.T, entries ...domain.Entry) {
	t.Helper()
	for _, e := range entries {
		require.NoError(t, f.primaryStore.Append(store.EncodeEntry(e, f.loc)))
	}
}

func obsFor(date string, high int) ingest.Observation {
	return ingest.Observation{TargetDate: date, PredictedHigh: high, Detail: "Sunny"}
}

func TestRun_ForecastToday(t *testing.T) {
	feed := &stubForecastFeed{byDate: map[string]ingest.Observation{
		"2025-01-10": obsFor("2025-01-10", 35),
	}}
	f := newFixture(t, 9, feed, &stubBulletinFeed{}, nil, nil)

	require.NoError(t, f.runner.Run(context.Background(), TaskForecastToday))

	entries := f.primaryEntries(t)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Forecast)
	assert.Equal(t, 35, entries[0].Forecast.PredictedHigh)
	assert.Equal(t, "2025-01-10", entries[0].TargetDate)
}

func TestRun_ForecastToday_NoPeriodYet(t *testing.T) {
	f := newFixture(t, 9, &stubForecastFeed{byDate: nil}, &stubBulletinFeed{}, nil, nil)

	require.NoError(t, f.runner.Run(context.Background(), TaskForecastToday))
	assert.Empty(t, f.primaryEntries(t))
}

func TestRun_SmartAll_FailingStepDoesNotBlockSiblings(t *testing.T) {
	feed := &stubForecastFeed{byDate: map[string]ingest.Observation{
		"2025-01-10": obsFor("2025-01-10", 35),
		"2025-01-11": obsFor("2025-01-11", 38),
	}}
	bulletins := &stubBulletinFeed{err: errors.New("cli product unavailable")}
	f := newFixture(t, 9, feed, bulletins, nil, nil)

	require.NoError(t, f.runner.Run(context.Background(), TaskSmartAll))

	// Both forecast steps landed even though the bulletin steps failed.
	entries := f.primaryEntries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "2025-01-10", entries[0].TargetDate)
	assert.Equal(t, "2025-01-11", entries[1].TargetDate)
}

func TestRun_ActualProvisional(t *testing.T) {
	bulletin := "TODAY\n  MAXIMUM         33    145 PM\n"

	t.Run("after the evening cutoff the reading is recorded", func(t *testing.T) {
		f := newFixture(t, 19, &stubForecastFeed{}, &stubBulletinFeed{text: bulletin}, nil, nil)

		require.NoError(t, f.runner.Run(context.Background(), TaskActualProvisional))

		entries := f.primaryEntries(t)
		require.Len(t, entries, 1)
		require.NotNil(t, entries[0].Actual)
		assert.Equal(t, 33, entries[0].Actual.High)
		assert.Equal(t, "1:45 PM", entries[0].Actual.HighTime)
	})

	t.Run("before the cutoff nothing is fetched or written", func(t *testing.T) {
		bulletins := &stubBulletinFeed{err: errors.New("should not be called")}
		f := newFixture(t, 9, &stubForecastFeed{}, bulletins, nil, nil)

		require.NoError(t, f.runner.Run(context.Background(), TaskActualProvisional))
		assert.Empty(t, f.primaryEntries(t))
	})
}

func TestRun_ActualFinalize(t *testing.T) {
	bulletin := "TODAY\n  MAXIMUM         33    145 PM\nYESTERDAY\n  MAXIMUM         31    230 PM\n"

	t.Run("morning window finalizes yesterday", func(t *testing.T) {
		f := newFixture(t, 8, &stubForecastFeed{}, &stubBulletinFeed{text: bulletin}, nil, nil)

		require.NoError(t, f.runner.Run(context.Background(), TaskActualFinalize))

		entries := f.primaryEntries(t)
		require.Len(t, entries, 1)
		require.NotNil(t, entries[0].Actual)
		assert.Equal(t, "2025-01-09", entries[0].TargetDate)
		assert.Equal(t, 31, entries[0].Actual.High)
		assert.Equal(t, "2:30 PM", entries[0].Actual.HighTime)
	})

	t.Run("afternoon skips without fetching", func(t *testing.T) {
		bulletins := &stubBulletinFeed{err: errors.New("should not be called")}
		f := newFixture(t, 14, &stubForecastFeed{}, bulletins, nil, nil)

		require.NoError(t, f.runner.Run(context.Background(), TaskActualFinalize))
		assert.Empty(t, f.primaryEntries(t))
	})
}

func TestRun_AccuWeather(t *testing.T) {
	daily := &stubDailyFeed{byOffset: map[int]ingest.Observation{
		0: {PredictedHigh: 34, Detail: "Mostly sunny"},
		1: {PredictedHigh: 38, Detail: "Partly sunny"},
	}}

	t.Run("logs today and tomorrow to the secondary file", func(t *testing.T) {
		f := newFixture(t, 9, &stubForecastFeed{}, &stubBulletinFeed{}, daily, nil)

		require.NoError(t, f.runner.Run(context.Background(), TaskAccuWeather))

		entries := f.accuEntries(t)
		require.Len(t, entries, 2)
		assert.Equal(t, "AccuWeather", entries[0].Source)
		assert.Equal(t, "2025-01-10", entries[0].TargetDate)
		assert.Equal(t, 34, entries[0].Forecast.PredictedHigh)
		assert.Equal(t, "2025-01-11", entries[1].TargetDate)
		assert.Equal(t, 38, entries[1].Forecast.PredictedHigh)
		assert.Empty(t, f.primaryEntries(t))
	})

	t.Run("freeze window skips the fetch entirely", func(t *testing.T) {
		failing := &stubDailyFeed{err: errors.New("should not be called")}
		f := newFixture(t, 2, &stubForecastFeed{}, &stubBulletinFeed{}, failing, nil)

		require.NoError(t, f.runner.Run(context.Background(), TaskAccuWeather))
		assert.Empty(t, f.accuEntries(t))
	})

	t.Run("no-op without a configured feed", func(t *testing.T) {
		f := newFixture(t, 9, &stubForecastFeed{}, &stubBulletinFeed{}, nil, nil)
		require.NoError(t, f.runner.Run(context.Background(), TaskAccuWeather))
		assert.Empty(t, f.accuEntries(t))
	})
}

func TestRun_Predictions(t *testing.T) {
	history := func(f *fixture, t *testing.T) {
		day := func(date string, hour, high int) domain.Entry {
			d, err := time.ParseInLocation(domain.DateLayout, date, f.loc)
			require.NoError(t, err)
			ts := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, f.loc)
			return domain.Entry{
				Timestamp:  ts,
				TargetDate: date,
				Forecast:   &domain.Forecast{IssuedAt: ts, PredictedHigh: high},
			}
		}
		actual := func(date string, high int) domain.Entry {
			d, err := time.ParseInLocation(domain.DateLayout, date, f.loc)
			require.NoError(t, err)
			return domain.Entry{
				Timestamp:  d.Add(19 * time.Hour),
				TargetDate: date,
				Actual:     &domain.Actual{SourceDate: date, High: high, HighTime: "2:00 PM"},
			}
		}
		f.seed(t,
			day("2025-01-09", 7, 40), actual("2025-01-09", 42),
			day("2025-01-10", 7, 30), day("2025-01-10", 11, 32),
			actual("2025-01-10", 33),
		)
		// Tomorrow's live forecast.
		e := day("2025-01-11", 16, 28)
		e.Timestamp = time.Date(2025, 1, 10, 16, 0, 0, 0, f.loc)
		e.Forecast.IssuedAt = e.Timestamp
		f.seed(t, e)
	}

	t.Run("publishes both snapshot rows with provenance filled in", func(t *testing.T) {
		pub := &capturePublisher{}
		f := newFixture(t, 20, &stubForecastFeed{}, &stubBulletinFeed{}, nil, pub)
		history(f, t)

		require.NoError(t, f.runner.Run(context.Background(), TaskPredictions))

		require.Len(t, pub.snaps, 2)
		today, tomorrow := pub.snaps[0], pub.snaps[1]

		assert.Equal(t, predict.RecordTodayForToday, today.RecordType)
		assert.Equal(t, "2025-01-10", today.TargetDate)
		require.NotNil(t, today.BCP)
		assert.Equal(t, 33.0, *today.BCP) // mean(30,32) + Jan 9 bias of +2

		assert.Equal(t, predict.RecordTodayForTomorrow, tomorrow.RecordType)
		assert.Equal(t, "2025-01-11", tomorrow.TargetDate)
		require.NotNil(t, tomorrow.BCP)
		assert.Equal(t, 30.0, *tomorrow.BCP) // 28 + average bias of +2

		for _, snap := range pub.snaps {
			assert.Equal(t, "bias-v1", snap.ModelVersion)
			assert.False(t, snap.AsOf.IsZero())
		}
	})

	t.Run("empty log still publishes the tomorrow row", func(t *testing.T) {
		pub := &capturePublisher{}
		f := newFixture(t, 20, &stubForecastFeed{}, &stubBulletinFeed{}, nil, pub)

		require.NoError(t, f.runner.Run(context.Background(), TaskPredictions))

		require.Len(t, pub.snaps, 1)
		assert.Equal(t, predict.RecordTodayForTomorrow, pub.snaps[0].RecordType)
		assert.Nil(t, pub.snaps[0].BCP)
	})

	t.Run("no-op without a configured publisher", func(t *testing.T) {
		f := newFixture(t, 20, &stubForecastFeed{}, &stubBulletinFeed{}, nil, nil)
		require.NoError(t, f.runner.Run(context.Background(), TaskPredictions))
	})
}

func TestCheckReadiness(t *testing.T) {
	f := newFixture(t, 9, &stubForecastFeed{}, &stubBulletinFeed{}, nil, nil)

	require.Error(t, f.runner.CheckReadiness(context.Background()))
	_, _, ok := f.runner.LastBatch()
	assert.False(t, ok)

	require.NoError(t, f.runner.Run(context.Background(), TaskForecastToday))

	require.NoError(t, f.runner.CheckReadiness(context.Background()))
	task, completedAt, ok := f.runner.LastBatch()
	require.True(t, ok)
	assert.Equal(t, TaskForecastToday, task)
	assert.Equal(t, time.Date(2025, 1, 10, 9, 0, 0, 0, f.loc), completedAt)
}
