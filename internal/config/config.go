// Package config loads service settings from environment variables, with
// defaults suited to the NYC Central Park station the logger was built for.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all settings for one invocation. Components receive the
// values they need at construction; nothing reads the environment later.
type Config struct {
	LogPath     string // primary feed CSV (NWS forecasts + actuals)
	AccuLogPath string // secondary feed CSV (AccuWeather forecasts)

	Timezone string
	Location *time.Location

	NWSPointURL string
	NWSCLIURL   string

	AccuAPIKey      string
	AccuLocationKey string
	AccuEnabled     bool

	SupabaseURL     string
	SupabaseKey     string
	SupabaseEnabled bool
	ModelVersion    string

	HTTPTimeout time.Duration

	Task            string
	Loop            bool
	FetchTimes      []string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// Defaults mirror the station the log files were collected for.
const (
	defaultPointURL = "https://api.weather.gov/points/40.7834,-73.965"
	defaultCLIURL   = "https://forecast.weather.gov/product.php?site=NWS&issuedby=NYC&product=CLI&format=CI&version=1&glossary=0"
	defaultTimezone = "America/New_York"
)

// defaultFetchTimes are the local clock times loop mode fires a run,
// clustered around forecast issuance and the evening/morning bulletin times.
var defaultFetchTimes = []string{
	"05:00", "06:00", "07:00", "09:00", "10:00", "11:00", "12:00",
	"13:00", "14:00", "15:00", "19:30", "21:00", "23:00",
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	tzName := envOrDefault("TIMEZONE", defaultTimezone)
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogPath:     envOrDefault("LOG_PATH", "nws_forecast_log.csv"),
		AccuLogPath: envOrDefault("ACCU_LOG_PATH", "accuweather_log.csv"),

		Timezone: tzName,
		Location: loc,

		NWSPointURL: envOrDefault("NWS_POINT_URL", defaultPointURL),
		NWSCLIURL:   envOrDefault("NWS_CLI_URL", defaultCLIURL),

		AccuAPIKey:      os.Getenv("ACCU_API_KEY"),
		AccuLocationKey: os.Getenv("ACCU_LOCATION_KEY"),

		SupabaseURL:  strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseKey:  os.Getenv("SUPABASE_SERVICE_ROLE"),
		ModelVersion: envOrDefault("PREDICTION_MODEL_VERSION", "bcp_v1"),

		HTTPTimeout: httpTimeout,

		Task:            strings.ToLower(strings.TrimSpace(envOrDefault("TASK", "smart_all"))),
		Loop:            os.Getenv("LOOP") == "true",
		FetchTimes:      parseFetchTimes(os.Getenv("FETCH_TIMES")),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}

	// Optional feeds and sinks are enabled only when fully configured; a
	// half-configured one is an error rather than a silent skip.
	cfg.AccuEnabled = cfg.AccuAPIKey != "" || cfg.AccuLocationKey != ""
	if cfg.AccuEnabled && (cfg.AccuAPIKey == "" || cfg.AccuLocationKey == "") {
		return nil, errors.New("ACCU_API_KEY and ACCU_LOCATION_KEY must be set together")
	}
	cfg.SupabaseEnabled = cfg.SupabaseURL != "" || cfg.SupabaseKey != ""
	if cfg.SupabaseEnabled && (cfg.SupabaseURL == "" || cfg.SupabaseKey == "") {
		return nil, errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE must be set together")
	}

	if cfg.LogPath == cfg.AccuLogPath {
		return nil, errors.New("LOG_PATH and ACCU_LOG_PATH must differ")
	}
	for _, ft := range cfg.FetchTimes {
		if _, err := time.Parse("15:04", ft); err != nil {
			return nil, fmt.Errorf("invalid FETCH_TIMES entry %q", ft)
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseFetchTimes(s string) []string {
	if s == "" {
		return append([]string(nil), defaultFetchTimes...)
	}
	var times []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			times = append(times, part)
		}
	}
	return times
}
