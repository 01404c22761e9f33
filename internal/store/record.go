package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hwaheed13/nws-forecast-logger/internal/domain"
)

// EncodeEntry flattens a domain entry into the untyped record form. All
// numeric fields become decimal text; unset fields become empty strings so
// the row is complete under any header.
func EncodeEntry(e domain.Entry, loc *time.Location) Record {
	rec := Record{
		ColTimestamp:     e.Timestamp.In(loc).Format(domain.TimestampLayout),
		ColTargetDate:    e.TargetDate,
		ColKind:          string(e.Kind()),
		ColForecastTime:  "",
		ColPredictedHigh: "",
		ColDetail:        "",
		ColSourceDate:    "",
		ColActualHigh:    "",
		ColHighTime:      "",
		ColBiasCorrected: "",
		ColSource:        e.Source,
	}
	if f := e.Forecast; f != nil {
		rec[ColForecastTime] = f.IssuedAt.In(loc).Format(domain.TimestampLayout)
		rec[ColPredictedHigh] = strconv.Itoa(f.PredictedHigh)
		rec[ColDetail] = f.Detail
	}
	if a := e.Actual; a != nil {
		rec[ColSourceDate] = a.SourceDate
		rec[ColActualHigh] = strconv.Itoa(a.High)
		rec[ColHighTime] = a.HighTime
	}
	if e.BiasCorrected != nil {
		rec[ColBiasCorrected] = strconv.FormatFloat(*e.BiasCorrected, 'f', 1, 64)
	}
	return rec
}

// DecodeEntry parses a record back into a domain entry. It is strict about
// the variant tag and the variant's numeric field, lenient about everything
// else: human amendments to timestamps or times must not poison the log.
func DecodeEntry(rec Record, loc *time.Location) (domain.Entry, error) {
	e := domain.Entry{
		TargetDate: rec[ColTargetDate],
		Source:     rec[ColSource],
	}
	if ts, err := time.ParseInLocation(domain.TimestampLayout, rec[ColTimestamp], loc); err == nil {
		e.Timestamp = ts
	}

	switch domain.Kind(rec[ColKind]) {
	case domain.KindForecast:
		high, err := strconv.Atoi(rec[ColPredictedHigh])
		if err != nil {
			return domain.Entry{}, fmt.Errorf("forecast row for %s: bad predicted_high %q", rec[ColTargetDate], rec[ColPredictedHigh])
		}
		f := &domain.Forecast{PredictedHigh: high, Detail: rec[ColDetail]}
		if at, err := time.ParseInLocation(domain.TimestampLayout, rec[ColForecastTime], loc); err == nil {
			f.IssuedAt = at
		} else {
			f.IssuedAt = e.Timestamp
		}
		e.Forecast = f
	case domain.KindActual:
		high, err := strconv.Atoi(rec[ColActualHigh])
		if err != nil {
			return domain.Entry{}, fmt.Errorf("actual row for %s: bad actual_high %q", rec[ColTargetDate], rec[ColActualHigh])
		}
		e.Actual = &domain.Actual{
			SourceDate: rec[ColSourceDate],
			High:       high,
			HighTime:   rec[ColHighTime],
		}
	default:
		return domain.Entry{}, fmt.Errorf("row for %s: unknown kind %q", rec[ColTargetDate], rec[ColKind])
	}

	if v := rec[ColBiasCorrected]; v != "" {
		if bcp, err := strconv.ParseFloat(v, 64); err == nil {
			e.BiasCorrected = &bcp
		}
	}
	return e, nil
}

// Entries reads the whole file and decodes it leniently: records that do not
// decode are skipped rather than failing the read, so one hand-mangled row
// never blocks ingestion.
func (s *Store) Entries(loc *time.Location) ([]domain.Entry, error) {
	records, _, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.Entry, 0, len(records))
	for _, rec := range records {
		e, err := DecodeEntry(rec, loc)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
