// Package ingest decides, per source and per target date, whether an
// observed forecast or actual value is appended, upserted, or skipped.
// Every decision is derived from the current file content and the gating
// windows; re-running any operation is safe.
package ingest

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hwaheed13/nws-forecast-logger/internal/domain"
	"github.com/hwaheed13/nws-forecast-logger/internal/observability"
	"github.com/hwaheed13/nws-forecast-logger/internal/store"
)

// Observation is one forecast value as captured from an upstream feed.
type Observation struct {
	TargetDate    string
	PredictedHigh int
	Detail        string
}

// Policy applies the ingestion rules for one feed family writing to one log
// file. Dedup and freeze checks are evaluated for this policy's source tag
// only, so a secondary feed never suppresses the primary feed's capture.
type Policy struct {
	store   *store.Store
	windows domain.Windows
	source  string // provenance tag for forecast rows; "" means the primary feed
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Policy over the given store and gating windows.
func New(s *store.Store, w domain.Windows, source string, logger *slog.Logger, metrics *observability.Metrics) *Policy {
	return &Policy{
		store:   s,
		windows: w,
		source:  source,
		logger:  logger,
		metrics: metrics,
	}
}

// LogForecast captures a same-day forecast value. Skipped when the date is
// frozen (an actual exists), past the evening cutoff, or unchanged from the
// last recorded forecast for this date and source.
func (p *Policy) LogForecast(obs Observation) error {
	now := p.windows.Now()
	date := obs.TargetDate
	if date == "" {
		date = p.windows.Today()
	}

	entries, err := p.store.Entries(p.windows.Location())
	if err != nil {
		return err
	}

	if _, frozen := domain.ActualFor(entries, date); frozen {
		p.skip("frozen", "forecast capture frozen, actual already logged", "target_date", date)
		return nil
	}
	if p.windows.AfterEveningCutoff(now) {
		p.skip("after_cutoff", "past evening cutoff, today's forecast is locked in", "target_date", date)
		return nil
	}
	if last, found := domain.LastForecastValue(entries, date, p.source); found && last == obs.PredictedHigh {
		p.skip("unchanged", "forecast unchanged since last capture", "target_date", date, "predicted_high", obs.PredictedHigh)
		return nil
	}

	entry := domain.Entry{
		Timestamp:  now,
		TargetDate: date,
		Source:     p.source,
		Forecast: &domain.Forecast{
			IssuedAt:      now,
			PredictedHigh: obs.PredictedHigh,
			Detail:        obs.Detail,
		},
	}
	if err := p.appendEntry(entry); err != nil {
		return err
	}
	p.metrics.RowsAppended.WithLabelValues(string(domain.KindForecast), entry.SourceOrDefault()).Inc()
	p.logger.Info("logged forecast", "target_date", date, "predicted_high", obs.PredictedHigh, "source", entry.SourceOrDefault())
	return nil
}

// LogForecastTomorrow captures a next-day forecast value. Only the
// value-change check applies: a future date cannot have an actual yet. The
// appended row also carries a live bias-corrected estimate computed over all
// completed days, distinct from the frozen same-day snapshot.
func (p *Policy) LogForecastTomorrow(obs Observation) error {
	now := p.windows.Now()
	date := obs.TargetDate
	if date == "" {
		date = p.windows.Tomorrow()
	}

	entries, err := p.store.Entries(p.windows.Location())
	if err != nil {
		return err
	}

	if last, found := domain.LastForecastValue(entries, date, p.source); found && last == obs.PredictedHigh {
		p.skip("unchanged", "forecast unchanged since last capture", "target_date", date, "predicted_high", obs.PredictedHigh)
		return nil
	}

	entry := domain.Entry{
		Timestamp:  now,
		TargetDate: date,
		Source:     p.source,
		Forecast: &domain.Forecast{
			IssuedAt:      now,
			PredictedHigh: obs.PredictedHigh,
			Detail:        obs.Detail,
		},
	}
	if est, ok := domain.LiveBiasEstimate(entries, obs.PredictedHigh, p.windows.Location()); ok {
		entry.BiasCorrected = &est
	}
	if err := p.appendEntry(entry); err != nil {
		return err
	}
	p.metrics.RowsAppended.WithLabelValues(string(domain.KindForecast), entry.SourceOrDefault()).Inc()
	p.logger.Info("logged forecast for tomorrow", "target_date", date, "predicted_high", obs.PredictedHigh, "source", entry.SourceOrDefault())
	return nil
}

// CaptureProvisionalActual records today's observed high from the bulletin's
// TODAY section. Allowed only past the evening cutoff, and only once per
// date: the morning finalize pass may later revise it by upsert. On success
// the one-time bias-snapshot freeze is attempted.
func (p *Policy) CaptureProvisionalActual(reading *domain.MaxReading) error {
	now := p.windows.Now()
	if !p.windows.AfterEveningCutoff(now) {
		p.skip("outside_window", "before evening cutoff, provisional actual not captured")
		return nil
	}
	if reading == nil {
		p.metrics.ParseFailures.Inc()
		p.skip("no_data", "TODAY maximum not found in bulletin")
		return nil
	}
	high, err := strconv.Atoi(reading.Temp)
	if err != nil {
		p.metrics.ParseFailures.Inc()
		p.skip("no_data", "TODAY maximum temperature not numeric", "temp", reading.Temp)
		return nil
	}

	today := p.windows.Today()
	entries, err := p.store.Entries(p.windows.Location())
	if err != nil {
		return err
	}
	if _, exists := domain.ActualFor(entries, today); exists {
		p.skip("already_logged", "actual already logged", "target_date", today)
		return nil
	}

	entry := domain.Entry{
		Timestamp:  now,
		TargetDate: today,
		Actual: &domain.Actual{
			SourceDate: today,
			High:       high,
			HighTime:   reading.Time,
		},
	}
	if err := p.appendEntry(entry); err != nil {
		return err
	}
	p.metrics.RowsAppended.WithLabelValues(string(domain.KindActual), domain.SourceNWS).Inc()
	p.logger.Info("logged provisional actual", "target_date", today, "actual_high", high, "high_time", reading.Time)

	return p.FreezeBiasSnapshot(today)
}

// FinalizeYesterday upserts the actual row for yesterday from the bulletin's
// YESTERDAY section, correcting a provisional value the bulletin issuer may
// have revised overnight. Allowed only during the morning window.
func (p *Policy) FinalizeYesterday(reading *domain.MaxReading) error {
	now := p.windows.Now()
	if !p.windows.InMorningWindow(now) {
		p.skip("outside_window", "outside morning window, finalize not run")
		return nil
	}
	if reading == nil {
		p.metrics.ParseFailures.Inc()
		p.skip("no_data", "YESTERDAY maximum not found in bulletin")
		return nil
	}
	high, err := strconv.Atoi(reading.Temp)
	if err != nil {
		p.metrics.ParseFailures.Inc()
		p.skip("no_data", "YESTERDAY maximum temperature not numeric", "temp", reading.Temp)
		return nil
	}

	yesterday := p.windows.Yesterday()
	if err := p.upsertActual(yesterday, high, reading.Time); err != nil {
		return err
	}
	p.logger.Info("upserted yesterday actual", "target_date", yesterday, "actual_high", high, "high_time", reading.Time)
	return nil
}

// upsertActual replaces the actual row for the date in place, or appends one
// when none exists. Works at the record level so rows this process cannot
// decode are carried through the rewrite untouched.
func (p *Policy) upsertActual(date string, high int, highTime string) error {
	records, fields, err := p.store.ReadAll()
	if err != nil {
		return err
	}

	now := p.windows.Now()
	temp := strconv.Itoa(high)

	for _, rec := range records {
		if rec[store.ColKind] != string(domain.KindActual) || rec[store.ColTargetDate] != date {
			continue
		}
		if rec[store.ColActualHigh] == temp && rec[store.ColHighTime] == highTime {
			return nil
		}
		rec[store.ColTimestamp] = now.Format(domain.TimestampLayout)
		rec[store.ColSourceDate] = date
		rec[store.ColActualHigh] = temp
		rec[store.ColHighTime] = highTime
		rec[store.ColForecastTime] = ""
		rec[store.ColPredictedHigh] = ""
		rec[store.ColDetail] = ""
		return p.store.RewriteAll(records, fields)
	}

	entry := domain.Entry{
		Timestamp:  now,
		TargetDate: date,
		Actual: &domain.Actual{
			SourceDate: date,
			High:       high,
			HighTime:   highTime,
		},
	}
	if err := p.appendEntry(entry); err != nil {
		return err
	}
	p.metrics.RowsAppended.WithLabelValues(string(domain.KindActual), domain.SourceNWS).Inc()
	return nil
}

// FreezeBiasSnapshot writes the bias-corrected prediction for a completed
// date into its most-recently-timestamped forecast row, once. A row whose
// field is already set is never overwritten, even if later forecast rows
// are backfilled or revised.
func (p *Policy) FreezeBiasSnapshot(date string) error {
	entries, err := p.store.Entries(p.windows.Location())
	if err != nil {
		return err
	}
	if _, exists := domain.ActualFor(entries, date); !exists {
		p.skip("no_data", "bias snapshot needs an actual first", "target_date", date)
		return nil
	}
	bcp, ok := domain.BiasCorrectedPrediction(entries, date, p.windows.Location())
	if !ok {
		p.skip("no_data", "not enough completed days for bias snapshot", "target_date", date)
		return nil
	}

	if err := p.store.UpgradeHeader(store.ColBiasCorrected); err != nil {
		return err
	}
	records, fields, err := p.store.ReadAll()
	if err != nil {
		return err
	}

	// Latest forecast row for the date; the timestamp layout sorts
	// lexicographically so a string compare is enough.
	latest := -1
	for i, rec := range records {
		if rec[store.ColKind] != string(domain.KindForecast) || rec[store.ColTargetDate] != date {
			continue
		}
		if latest < 0 || rec[store.ColTimestamp] >= records[latest][store.ColTimestamp] {
			latest = i
		}
	}
	if latest < 0 {
		p.skip("no_data", "no forecast row to freeze bias snapshot into", "target_date", date)
		return nil
	}
	if records[latest][store.ColBiasCorrected] != "" {
		p.skip("already_logged", "bias snapshot already frozen", "target_date", date)
		return nil
	}

	records[latest][store.ColBiasCorrected] = fmt.Sprintf("%.1f", bcp)
	if err := p.store.RewriteAll(records, fields); err != nil {
		return err
	}
	p.metrics.BiasFrozen.Inc()
	p.logger.Info("froze bias-corrected prediction", "target_date", date, "bias_corrected_prediction", records[latest][store.ColBiasCorrected])
	return nil
}

// appendEntry appends one entry, lazily upgrading the header for the
// optional columns the entry needs.
func (p *Policy) appendEntry(e domain.Entry) error {
	if e.Source != "" {
		if err := p.store.UpgradeHeader(store.ColSource); err != nil {
			return err
		}
	}
	if e.BiasCorrected != nil {
		if err := p.store.UpgradeHeader(store.ColBiasCorrected); err != nil {
			return err
		}
	}
	return p.store.Append(store.EncodeEntry(e, p.windows.Location()))
}

func (p *Policy) skip(reason, msg string, args ...any) {
	p.metrics.RowsSkipped.WithLabelValues(reason).Inc()
	p.logger.Info(msg, append(args, "reason", reason)...)
}
