// Package store manages the on-disk CSV ledgers. Each feed family gets one
// header-described file; all values are stored as plain decimal text. Writes
// are synchronous whole-file operations under a single-writer assumption:
// the process is invoked at most once at a time and there is no file locking.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Canonical column names, in header order.
const (
	ColTimestamp     = "timestamp"
	ColTargetDate    = "target_date"
	ColKind          = "forecast_or_actual"
	ColForecastTime  = "forecast_time"
	ColPredictedHigh = "predicted_high"
	ColDetail        = "forecast_detail"
	ColSourceDate    = "source_date"
	ColActualHigh    = "actual_high"
	ColHighTime      = "high_time"
	ColBiasCorrected = "bias_corrected_prediction"
	ColSource        = "source"
)

// Header is the canonical column set written to new files. Existing files
// with fewer columns are upgraded additively via UpgradeHeader; columns are
// never removed or reordered.
var Header = []string{
	ColTimestamp, ColTargetDate, ColKind, ColForecastTime, ColPredictedHigh,
	ColDetail, ColSourceDate, ColActualHigh, ColHighTime,
	ColBiasCorrected, ColSource,
}

// Record is one row keyed by column name. Values are untyped text; typed
// access happens only through the Entry codec in this package.
type Record map[string]string

// Store manages one CSV log file.
type Store struct {
	path string
}

// New creates a Store over the given file path. The file itself is created
// lazily on first use.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the underlying file path.
func (s *Store) Path() string {
	return s.path
}

// EnsureInitialized creates the file with the canonical header if absent.
// Idempotent: an existing file is left untouched.
func (s *Store) EnsureInitialized() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat log file: %w", err)
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// ReadAll parses the file into records plus the header as found on disk.
// A missing file is initialized first and yields zero records.
func (s *Store) ReadAll() ([]Record, []string, error) {
	if err := s.EnsureInitialized(); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // rows written before a header upgrade are short

	lines, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read log file: %w", err)
	}
	if len(lines) == 0 {
		return nil, append([]string(nil), Header...), nil
	}

	fields := lines[0]
	records := make([]Record, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rec := make(Record, len(fields))
		for i, name := range fields {
			if i < len(line) {
				rec[name] = line[i]
			} else {
				rec[name] = ""
			}
		}
		records = append(records, rec)
	}
	return records, fields, nil
}

// RewriteAll replaces the entire file with header + records, preserving the
// given field order. Used by the upsert and header-upgrade paths.
func (s *Store) RewriteAll(records []Record, fields []string) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("rewrite log file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(recordLine(rec, fields)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// Append adds one record without rewriting existing content. Missing header
// keys are blank-filled; keys not in the header are dropped.
func (s *Store) Append(rec Record) error {
	_, fields, err := s.ReadAll()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(recordLine(rec, fields)); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// UpgradeHeader adds an optional column to a file that predates it,
// blank-filling every existing record and rewriting the file. A file that
// already carries the column is left untouched. Additive only: existing
// columns keep their order and values.
func (s *Store) UpgradeHeader(field string) error {
	records, fields, err := s.ReadAll()
	if err != nil {
		return err
	}
	for _, name := range fields {
		if name == field {
			return nil
		}
	}

	fields = append(fields, field)
	for _, rec := range records {
		rec[field] = ""
	}
	return s.RewriteAll(records, fields)
}

// recordLine projects a record onto the header order, blank-filling gaps.
func recordLine(rec Record, fields []string) []string {
	line := make([]string, len(fields))
	for i, name := range fields {
		line[i] = rec[name]
	}
	return line
}
