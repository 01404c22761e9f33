// Package supabase publishes prediction snapshots to the Supabase REST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hwaheed13/nws-forecast-logger/internal/predict"
)

// table is the destination table; rows are unique on
// (target_date, record_type, as_of).
const table = "prediction_logs"

// Writer upserts snapshot rows using the service-role key.
type Writer struct {
	baseURL    string
	key        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWriter creates a Supabase writer for the given project URL.
func NewWriter(baseURL, key string, timeout time.Duration, logger *slog.Logger) *Writer {
	return &Writer{
		baseURL:    baseURL,
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Upsert publishes one snapshot with merge-duplicates semantics, so
// re-running an invocation never creates conflicting rows.
func (w *Writer) Upsert(ctx context.Context, snap predict.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}

	u := fmt.Sprintf("%s/rest/v1/%s?on_conflict=target_date,record_type,as_of", w.baseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	req.Header.Set("apikey", w.key)
	req.Header.Set("Authorization", "Bearer "+w.key)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase error: status %d: %s", resp.StatusCode, msg)
	}

	w.logger.Info("published prediction snapshot",
		"record_type", snap.RecordType, "target_date", snap.TargetDate)
	return nil
}
