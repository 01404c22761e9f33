package nws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newForecastServer(t *testing.T, periods []Period) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/points", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		resp := map[string]any{"properties": map[string]any{"forecast": srv.URL + "/forecast"}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{"properties": map[string]any{"periods": periods}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_DaytimeHigh(t *testing.T) {
	periods := []Period{
		{Name: "Overnight", StartTime: "2025-01-10T00:00:00-05:00", IsDaytime: false, Temperature: 28},
		{Name: "Friday", StartTime: "2025-01-10T06:00:00-05:00", IsDaytime: true, Temperature: 35, DetailedForecast: "Sunny, with a high near 35."},
		{Name: "Friday Night", StartTime: "2025-01-10T18:00:00-05:00", IsDaytime: false, Temperature: 25},
		{Name: "Saturday", StartTime: "2025-01-11T06:00:00-05:00", IsDaytime: true, Temperature: 38},
	}
	srv := newForecastServer(t, periods)
	c := NewClient(srv.URL+"/points", srv.URL+"/cli", 5*time.Second, testLogger())

	t.Run("selects the daytime period for the date", func(t *testing.T) {
		obs, found, err := c.DaytimeHigh(context.Background(), "2025-01-10")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 35, obs.PredictedHigh)
		assert.Equal(t, "2025-01-10", obs.TargetDate)
		assert.Equal(t, "Sunny, with a high near 35.", obs.Detail)
	})

	t.Run("tomorrow", func(t *testing.T) {
		obs, found, err := c.DaytimeHigh(context.Background(), "2025-01-11")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 38, obs.PredictedHigh)
	})

	t.Run("no daytime period for the date", func(t *testing.T) {
		_, found, err := c.DaytimeHigh(context.Background(), "2025-01-12")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestClient_DaytimeHigh_MissingForecastURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"properties": map[string]any{}}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 5*time.Second, testLogger())
	_, _, err := c.DaytimeHigh(context.Background(), "2025-01-10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forecast URL")
}

func TestClient_Bulletin(t *testing.T) {
	t.Run("extracts and unescapes the report body", func(t *testing.T) {
		page := `<html><body><div id="pre"><pre class="glossaryProduct">
TODAY
  MAXIMUM         75    145 PM &amp; HUMID
</pre></div></body></html>`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(page))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, srv.URL, 5*time.Second, testLogger())
		text, err := c.Bulletin(context.Background())
		require.NoError(t, err)
		assert.Contains(t, text, "MAXIMUM         75    145 PM & HUMID")
	})

	t.Run("page without a report body is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html><body>maintenance</body></html>"))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, srv.URL, 5*time.Second, testLogger())
		_, err := c.Bulletin(context.Background())
		require.Error(t, err)
	})
}
