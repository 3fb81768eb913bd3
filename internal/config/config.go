package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	GeocodeURL  string
	ForecastURL string

	CacheTTL time.Duration
	// CacheSweepInterval enables the background sweeper when > 0.
	CacheSweepInterval time.Duration

	UpstreamTimeout time.Duration
	UpstreamRPS     int
	UpstreamBurst   int

	OTLPEndpoint string
	LogFormat    string
}

// Load reads configuration from the environment, with a .env file as an
// optional local override source. Missing keys fall back to defaults, so
// Load cannot fail.
func Load() Config {
	// Best effort; production deployments configure via real env vars.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GEOCODE_URL", "https://geocoding-api.open-meteo.com/v1/search")
	v.SetDefault("FORECAST_URL", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_SWEEP_INTERVAL", "0")
	v.SetDefault("UPSTREAM_TIMEOUT", "10s")
	v.SetDefault("UPSTREAM_RPS", 10)
	v.SetDefault("UPSTREAM_BURST", 20)

	cfg := Config{
		Port:               v.GetString("PORT"),
		GeocodeURL:         v.GetString("GEOCODE_URL"),
		ForecastURL:        v.GetString("FORECAST_URL"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
		CacheSweepInterval: v.GetDuration("CACHE_SWEEP_INTERVAL"),
		UpstreamTimeout:    v.GetDuration("UPSTREAM_TIMEOUT"),
		UpstreamRPS:        v.GetInt("UPSTREAM_RPS"),
		UpstreamBurst:      v.GetInt("UPSTREAM_BURST"),
		OTLPEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogFormat:          v.GetString("LOG_FORMAT"),
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return cfg
}
