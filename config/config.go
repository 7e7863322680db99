// Package config loads the trader configuration from YAML plus .env
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// Config is the full trader configuration.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Storage StorageConfig `yaml:"storage"`
	Tables  TablesConfig  `yaml:"tables"`
	Trading TradingConfig `yaml:"trading"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GatewayConfig points at the IBKR Client Portal gateway.
type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	AccountID      string `yaml:"account_id"`
	AckTimeoutSecs int    `yaml:"ack_timeout_seconds"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	// The local gateway serves a self-signed certificate.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// StorageConfig controls where the intent tables and the ledger live.
// The paper session writes to its own file so live history stays intact.
type StorageConfig struct {
	DSN      string `yaml:"dsn"`
	PaperDSN string `yaml:"paper_dsn"`
}

// TablesConfig names the reconciliation targets. Dispatch itself walks every
// BUY*/SELL*-prefixed table in the store.
type TablesConfig struct {
	Buy  string `yaml:"buy"`
	Sell string `yaml:"sell"`
}

// TradingConfig holds run-mode and order parameters.
type TradingConfig struct {
	Mode                string  `yaml:"mode"`                    // live | paper
	DefaultTrailPercent float64 `yaml:"default_trail_percent"`   // per-row default
	ReconcileTrailPct   float64 `yaml:"reconcile_trail_percent"` // protective default on unprotected holdings
	LimitOffset         float64 `yaml:"limit_offset"`
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the YAML file and applies .env overrides. Values from the
// environment win over the file for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if _, err := cfg.Mode(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Mode returns the validated trading mode.
func (c *Config) Mode() (domain.TradingMode, error) {
	return domain.ParseTradingMode(c.Trading.Mode)
}

// StorageDSN returns the sqlite DSN for the configured trading mode.
func (c *Config) StorageDSN() string {
	if mode, err := c.Mode(); err == nil && mode == domain.ModePaper {
		return c.Storage.PaperDSN
	}
	return c.Storage.DSN
}

// AckTimeout is how long a submit call waits for broker acknowledgment.
func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.Gateway.AckTimeoutSecs) * time.Second
}

// PollInterval is the order-status poll cadence while waiting for an ack.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Gateway.PollIntervalMS) * time.Millisecond
}

// applyEnvOverrides lets the environment win for deployment-specific keys.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IBKR_GATEWAY_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("IBKR_ACCOUNT_ID"); v != "" {
		cfg.Gateway.AccountID = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("IBKR_INSECURE_SKIP_VERIFY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gateway.InsecureSkipVerify = b
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills anything the file and environment left blank.
func setDefaults(cfg *Config) {
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "https://localhost:5000/v1/api"
	}
	if cfg.Gateway.AckTimeoutSecs <= 0 {
		cfg.Gateway.AckTimeoutSecs = 10
	}
	if cfg.Gateway.PollIntervalMS <= 0 {
		cfg.Gateway.PollIntervalMS = 500
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "orders.db"
	}
	if cfg.Storage.PaperDSN == "" {
		cfg.Storage.PaperDSN = "orders_paper.db"
	}
	if cfg.Tables.Buy == "" {
		cfg.Tables.Buy = "BUY_Usual"
	}
	if cfg.Tables.Sell == "" {
		cfg.Tables.Sell = "SELL"
	}
	if cfg.Trading.Mode == "" {
		cfg.Trading.Mode = string(domain.ModePaper)
	}
	if cfg.Trading.DefaultTrailPercent <= 0 {
		cfg.Trading.DefaultTrailPercent = domain.DefaultTrailPercent
	}
	if cfg.Trading.ReconcileTrailPct <= 0 {
		cfg.Trading.ReconcileTrailPct = 5.0
	}
	if cfg.Trading.LimitOffset <= 0 {
		cfg.Trading.LimitOffset = domain.DefaultLimitOffset
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
