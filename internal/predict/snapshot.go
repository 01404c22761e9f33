// Package predict computes the prediction snapshots published downstream:
// live bias-corrected estimates for today and tomorrow derived from the
// merged forecast logs. It never mutates the logs.
package predict

import (
	"time"

	"github.com/hwaheed13/nws-forecast-logger/internal/domain"
)

// Record types for published snapshots.
const (
	RecordTodayForToday    = "today_for_today"
	RecordTodayForTomorrow = "today_for_tomorrow"
)

// Snapshot is one published prediction row. Field names follow the
// prediction_logs table; nil pointers serialize as SQL NULLs.
type Snapshot struct {
	AsOf         time.Time `json:"as_of"`
	TargetDate   string    `json:"target_date"`
	RecordType   string    `json:"record_type"`
	BCP          *float64  `json:"bcp_f"`
	NWSLatest    *float64  `json:"nws_latest_f"`
	AccuLatest   *float64  `json:"accu_latest_f"`
	AvgBias      *float64  `json:"avg_bias_excl_today"`
	TodayPreMean *float64  `json:"today_pre_mean"`
	ModelVersion string    `json:"model_version"`
	Notes        string    `json:"notes"`
	Source       string    `json:"source"`
}

// TodayForToday builds the frozen-at-actual-time snapshot for the given
// date: pre-high mean plus average bias excluding the date itself, so the
// day's own outcome never leaks into its correction. ok is false when either
// term is unavailable.
func TodayForToday(entries []domain.Entry, date string, loc *time.Location) (Snapshot, bool) {
	avgBias, okBias := domain.AverageBias(entries, loc, domain.BiasFilter{ExcludeDate: date})
	preMean, okMean := domain.PreHighMean(entries, date, loc)
	if !okBias || !okMean {
		return Snapshot{}, false
	}

	bcp := round1(preMean + avgBias)
	return Snapshot{
		TargetDate:   date,
		RecordType:   RecordTodayForToday,
		BCP:          &bcp,
		NWSLatest:    latestForecastValue(entries, date, false),
		AccuLatest:   latestForecastValue(entries, date, true),
		AvgBias:      ptr(avgBias),
		TodayPreMean: ptr(preMean),
		Notes:        "frozen at actual time",
		Source:       "nws_forecast_logger",
	}, true
}

// TodayForTomorrow builds the live snapshot for tomorrow: the latest NWS
// forecast plus the average bias over all completed days (no exclusion
// needed, tomorrow has no actual yet). The BCP is nil when either input is
// missing, but the snapshot is still published with what is known.
func TodayForTomorrow(entries []domain.Entry, tomorrow string, loc *time.Location) Snapshot {
	avgBias, okBias := domain.AverageBias(entries, loc, domain.BiasFilter{})
	nwsLatest := latestForecastValue(entries, tomorrow, false)

	snap := Snapshot{
		TargetDate: tomorrow,
		RecordType: RecordTodayForTomorrow,
		NWSLatest:  nwsLatest,
		AccuLatest: latestForecastValue(entries, tomorrow, true),
		Notes:      "snapshot from today",
		Source:     "nws_forecast_logger",
	}
	if okBias {
		snap.AvgBias = ptr(avgBias)
	}
	if okBias && nwsLatest != nil {
		bcp := round1(*nwsLatest + avgBias)
		snap.BCP = &bcp
	}
	return snap
}

// latestForecastValue returns the newest forecast value for the date from
// the secondary feed when secondary is true, otherwise from everything else
// (blank sources are the primary feed).
func latestForecastValue(entries []domain.Entry, date string, secondary bool) *float64 {
	var (
		latest time.Time
		value  *float64
	)
	for _, e := range entries {
		if e.Forecast == nil || e.TargetDate != date {
			continue
		}
		if (e.SourceOrDefault() == "AccuWeather") != secondary {
			continue
		}
		if value == nil || !e.Timestamp.Before(latest) {
			latest = e.Timestamp
			value = ptr(float64(e.Forecast.PredictedHigh))
		}
	}
	return value
}

func round1(v float64) float64 {
	if v < 0 {
		return float64(int(v*10-0.5)) / 10
	}
	return float64(int(v*10+0.5)) / 10
}

func ptr(v float64) *float64 {
	return &v
}
