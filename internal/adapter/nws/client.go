// Package nws implements the primary feed: the api.weather.gov forecast API
// and the CLI climate product page.
package nws

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hwaheed13/nws-forecast-logger/internal/adapter/feed"
	"github.com/hwaheed13/nws-forecast-logger/internal/ingest"
)

// userAgent identifies the logger to api.weather.gov, which rejects
// anonymous clients.
const userAgent = "nws-forecast-logger (github.com/hwaheed13/nws-forecast-logger)"

// preRe extracts the report body from the CLI product page. The product is
// served as an HTML page with the plain-text bulletin inside a <pre> block.
var preRe = regexp.MustCompile(`(?s)<pre[^>]*>(.*?)</pre>`)

// Client fetches forecast periods and CLI bulletins for one station.
type Client struct {
	pointURL   string
	cliURL     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates an NWS client for the given points and CLI product URLs.
func NewClient(pointURL, cliURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		pointURL:   pointURL,
		cliURL:     cliURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    feed.NewBreaker("nws"),
		logger:     logger,
	}
}

// Point API response shapes. Only the consumed fields are declared.

type pointResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []Period `json:"periods"`
	} `json:"properties"`
}

// Period is one dated forecast period from the forecast endpoint.
type Period struct {
	Name             string `json:"name"`
	StartTime        string `json:"startTime"`
	IsDaytime        bool   `json:"isDaytime"`
	Temperature      int    `json:"temperature"`
	DetailedForecast string `json:"detailedForecast"`
}

// Periods resolves the point to its forecast URL and returns the forecast
// periods.
func (c *Client) Periods(ctx context.Context) ([]Period, error) {
	var point pointResponse
	if err := c.getJSON(ctx, c.pointURL, &point); err != nil {
		return nil, fmt.Errorf("resolve forecast point: %w", err)
	}
	if point.Properties.Forecast == "" {
		return nil, fmt.Errorf("point response missing forecast URL")
	}

	var forecast forecastResponse
	if err := c.getJSON(ctx, point.Properties.Forecast, &forecast); err != nil {
		return nil, fmt.Errorf("fetch forecast periods: %w", err)
	}
	c.logger.Debug("fetched forecast periods", "count", len(forecast.Properties.Periods))
	return forecast.Properties.Periods, nil
}

// DaytimeHigh returns the predicted high for the daytime period starting on
// the given ISO date. found is false when no such period exists yet (the API
// drops today's daytime period in the evening).
func (c *Client) DaytimeHigh(ctx context.Context, date string) (ingest.Observation, bool, error) {
	periods, err := c.Periods(ctx)
	if err != nil {
		return ingest.Observation{}, false, err
	}
	for _, p := range periods {
		if len(p.StartTime) < 10 || p.StartTime[:10] != date || !p.IsDaytime {
			continue
		}
		return ingest.Observation{
			TargetDate:    date,
			PredictedHigh: p.Temperature,
			Detail:        p.DetailedForecast,
		}, true, nil
	}
	return ingest.Observation{}, false, nil
}

// Bulletin fetches the CLI product page and returns the plain-text report
// body.
func (c *Client) Bulletin(ctx context.Context) (string, error) {
	resp, err := feed.Do(ctx, c.httpClient, c.breaker, feed.DefaultBackoff, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, c.cliURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch CLI product: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read CLI product: %w", err)
	}

	m := preRe.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("CLI product page has no report body")
	}
	c.logger.Debug("fetched CLI product", "bytes", len(m[1]))
	return html.UnescapeString(string(m[1])), nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	resp, err := feed.Do(ctx, c.httpClient, c.breaker, feed.DefaultBackoff, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/geo+json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
