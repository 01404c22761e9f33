// Package accuweather implements the secondary feed: the AccuWeather 5-day
// daily forecast API, keyed by a pre-resolved location key.
package accuweather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hwaheed13/nws-forecast-logger/internal/adapter/feed"
	"github.com/hwaheed13/nws-forecast-logger/internal/ingest"
)

const defaultBaseURL = "http://dataservice.accuweather.com"

// Client fetches daily forecasts for one location key.
type Client struct {
	apiKey      string
	locationKey string
	baseURL     string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

// NewClient creates an AccuWeather client.
func NewClient(apiKey, locationKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:      apiKey,
		locationKey: locationKey,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     feed.NewBreaker("accuweather"),
		logger:      logger,
	}
}

// SetBaseURL overrides the API base URL, for tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// API response shapes. Only the consumed fields are declared.

type fiveDayResponse struct {
	DailyForecasts []dailyForecast `json:"DailyForecasts"`
}

type dailyForecast struct {
	Temperature struct {
		Maximum struct {
			// Pointer so an absent maximum is distinguishable from a
			// forecast high of 0°F.
			Value *float64 `json:"Value"`
		} `json:"Maximum"`
	} `json:"Temperature"`
	Day struct {
		IconPhrase string `json:"IconPhrase"`
	} `json:"Day"`
}

// DailyHigh returns the forecast high for today (offset 0) or a following
// day, rounded to whole degrees. found is false when the response does not
// cover the offset or omits the maximum.
func (c *Client) DailyHigh(ctx context.Context, date string, offset int) (ingest.Observation, bool, error) {
	u := fmt.Sprintf("%s/forecasts/v1/daily/5day/%s?apikey=%s&details=true&metric=false",
		c.baseURL, url.PathEscape(c.locationKey), url.QueryEscape(c.apiKey))

	resp, err := feed.Do(ctx, c.httpClient, c.breaker, feed.DefaultBackoff, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, u, nil)
	})
	if err != nil {
		return ingest.Observation{}, false, fmt.Errorf("fetch 5-day forecast: %w", err)
	}
	defer resp.Body.Close()

	var payload fiveDayResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ingest.Observation{}, false, fmt.Errorf("decode 5-day forecast: %w", err)
	}

	if offset < 0 || offset >= len(payload.DailyForecasts) {
		c.logger.Debug("5-day forecast does not cover offset",
			"target_date", date, "offset", offset, "days", len(payload.DailyForecasts))
		return ingest.Observation{}, false, nil
	}
	day := payload.DailyForecasts[offset]
	max := day.Temperature.Maximum.Value
	if max == nil {
		c.logger.Warn("daily forecast missing maximum", "target_date", date, "offset", offset)
		return ingest.Observation{}, false, nil
	}

	return ingest.Observation{
		TargetDate:    date,
		PredictedHigh: int(math.Round(*max)),
		Detail:        day.Day.IconPhrase,
	}, true, nil
}
