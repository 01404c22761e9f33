package domain

import "time"

// Kind distinguishes the two row variants in the log.
type Kind string

const (
	KindForecast Kind = "forecast"
	KindActual   Kind = "actual"
)

// SourceNWS is the implicit provenance of rows with a blank source column.
const SourceNWS = "NWS"

// DateLayout is the ISO calendar-date form used for target and source dates.
const DateLayout = "2006-01-02"

// TimestampLayout is the wall-clock form used for row and forecast timestamps.
// Timestamps are civil local time in the station's timezone, not UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// Forecast carries the fields specific to a forecast row.
type Forecast struct {
	IssuedAt      time.Time
	PredictedHigh int
	Detail        string
}

// Actual carries the fields specific to an actual (observed high) row.
type Actual struct {
	// SourceDate is the bulletin's own reference date. It normally equals
	// the row's target date but may differ during backfills.
	SourceDate string
	High       int
	// HighTime is the bulletin's clock time the high occurred, e.g. "1:45 PM".
	// Kept as text: the bulletin sometimes emits values that do not parse.
	HighTime string
}

// Entry is one row of the log: a tagged variant where exactly one of
// Forecast or Actual is set.
type Entry struct {
	Timestamp  time.Time
	TargetDate string
	Source     string

	Forecast *Forecast
	Actual   *Actual

	// BiasCorrected is the frozen bias-corrected prediction, set at most
	// once per target date and only on forecast rows.
	BiasCorrected *float64
}

// Kind reports the variant of the entry.
func (e Entry) Kind() Kind {
	if e.Actual != nil {
		return KindActual
	}
	return KindForecast
}

// SourceOrDefault resolves a blank source column to the primary feed.
func (e Entry) SourceOrDefault() string {
	if e.Source == "" {
		return SourceNWS
	}
	return e.Source
}

// IsForecastFor reports whether the entry is a forecast row for the given
// date from the given source (blank sources compare as the primary feed).
func (e Entry) IsForecastFor(date, source string) bool {
	return e.Forecast != nil && e.TargetDate == date && e.SourceOrDefault() == normalizeSource(source)
}

// IsActualFor reports whether the entry is the actual row for the given date.
// Actuals are keyed globally by date, not per source.
func (e Entry) IsActualFor(date string) bool {
	return e.Actual != nil && e.TargetDate == date
}

func normalizeSource(source string) string {
	if source == "" {
		return SourceNWS
	}
	return source
}

// LastForecastValue returns the predicted high of the most recently recorded
// forecast for date+source, scanning in log order (the file is append-only,
// so the last match is the newest). ok is false when no forecast exists.
func LastForecastValue(entries []Entry, date, source string) (int, bool) {
	var (
		value int
		found bool
	)
	for _, e := range entries {
		if e.IsForecastFor(date, source) {
			value = e.Forecast.PredictedHigh
			found = true
		}
	}
	return value, found
}

// ActualFor returns the actual row for the given date, if one exists.
func ActualFor(entries []Entry, date string) (Entry, bool) {
	for _, e := range entries {
		if e.IsActualFor(date) {
			return e, true
		}
	}
	return Entry{}, false
}
