package accuweather

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fiveDayPayload = `{
  "DailyForecasts": [
    {"Temperature": {"Maximum": {"Value": 34.6}}, "Day": {"IconPhrase": "Mostly sunny"}},
    {"Temperature": {"Maximum": {"Value": 38.2}}, "Day": {"IconPhrase": "Partly sunny"}}
  ]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, payload string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		assert.Contains(t, r.URL.Path, "/forecasts/v1/daily/5day/349727")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "349727", 5*time.Second, testLogger())
	c.SetBaseURL(srv.URL)
	return c
}

func TestClient_DailyHigh(t *testing.T) {
	c := newClient(t, fiveDayPayload)

	t.Run("today rounds the maximum to whole degrees", func(t *testing.T) {
		obs, found, err := c.DailyHigh(context.Background(), "2025-01-10", 0)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 35, obs.PredictedHigh)
		assert.Equal(t, "2025-01-10", obs.TargetDate)
		assert.Equal(t, "Mostly sunny", obs.Detail)
	})

	t.Run("tomorrow uses the next forecast day", func(t *testing.T) {
		obs, found, err := c.DailyHigh(context.Background(), "2025-01-11", 1)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 38, obs.PredictedHigh)
		assert.Equal(t, "Partly sunny", obs.Detail)
	})

	t.Run("offset beyond the response is not found", func(t *testing.T) {
		_, found, err := c.DailyHigh(context.Background(), "2025-01-15", 5)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestClient_DailyHigh_ZeroDegreesIsAValidHigh(t *testing.T) {
	c := newClient(t, `{"DailyForecasts": [{"Temperature": {"Maximum": {"Value": 0}}, "Day": {"IconPhrase": "Frigid"}}]}`)

	obs, found, err := c.DailyHigh(context.Background(), "2025-01-10", 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0, obs.PredictedHigh)
	assert.Equal(t, "Frigid", obs.Detail)
}

func TestClient_DailyHigh_MissingMaximum(t *testing.T) {
	c := newClient(t, `{"DailyForecasts": [{"Temperature": {}, "Day": {"IconPhrase": "Cloudy"}}]}`)

	_, found, err := c.DailyHigh(context.Background(), "2025-01-10", 0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_DailyHigh_BadPayload(t *testing.T) {
	c := newClient(t, `not json`)

	_, _, err := c.DailyHigh(context.Background(), "2025-01-10", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode 5-day forecast")
}
