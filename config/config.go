// Package config holds all application configuration, loaded from
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Infrastructure
	MetricsAddr   string `envconfig:"METRICS_ADDR" default:":9090"`
	GatewayAddr   string `envconfig:"GATEWAY_ADDR" default:":8081"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/signals.db"`

	// Tick feed. Empty FEED_URL runs the in-process simulated feed.
	FeedURL     string        `envconfig:"FEED_URL" default:""`
	SimSymbols  string        `envconfig:"SIM_SYMBOLS" default:"SPX,NDQ,AAPL,BTC/USD"`
	SimInterval time.Duration `envconfig:"SIM_INTERVAL" default:"1s"`

	// Engine
	Workers         int           `envconfig:"ENGINE_WORKERS" default:"4"`
	WindowCap       int           `envconfig:"WINDOW_CAP" default:"200"`
	SignalCooldown  time.Duration `envconfig:"SIGNAL_COOLDOWN" default:"15m"`
	RegistryRefresh time.Duration `envconfig:"REGISTRY_REFRESH" default:"60s"`
	MonitorRefresh  time.Duration `envconfig:"MONITOR_REFRESH" default:"60s"`

	// Indicator parameters
	SupertrendPeriod     int     `envconfig:"SUPERTREND_PERIOD" default:"10"`
	SupertrendMultiplier float64 `envconfig:"SUPERTREND_MULTIPLIER" default:"3.0"`
	PSARStep             float64 `envconfig:"PSAR_STEP" default:"0.02"`
	PSARMaxStep          float64 `envconfig:"PSAR_MAX_STEP" default:"0.2"`
	PivotLookback        int     `envconfig:"PIVOT_LOOKBACK" default:"5"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("config: ENGINE_WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.WindowCap <= 0 {
		return nil, fmt.Errorf("config: WINDOW_CAP must be positive, got %d", cfg.WindowCap)
	}
	return &cfg, nil
}

// ParseSimSymbols splits SIM_SYMBOLS into a clean symbol list.
func (c *Config) ParseSimSymbols() []string {
	parts := strings.Split(c.SimSymbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}
