// Package config loads and validates the engine configuration from YAML
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tickbar engine.
type Config struct {
	Instrument Instrument       `yaml:"instrument"`
	Quote      Quote            `yaml:"quote"`
	Poller     Poller           `yaml:"poller"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Session    Session          `yaml:"session"`
	Storage    Storage          `yaml:"storage"`
	Remote     Remote           `yaml:"remote"`
	Logging    Logging          `yaml:"logging"`
}

// Instrument identifies the tradable instrument and the plausible price
// window used to reject decode artifacts.
type Instrument struct {
	Code     string  `yaml:"code"`
	PriceMin float64 `yaml:"price_min"`
	PriceMax float64 `yaml:"price_max"`
}

// Quote configures the quote source adapter.
type Quote struct {
	Provider        string `yaml:"provider"` // "http" or "alpaca"
	URL             string `yaml:"url"`
	Delimiter       string `yaml:"delimiter"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	Alpaca          Alpaca `yaml:"alpaca"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Symbol    string `yaml:"symbol"`
}

// Poller controls the feed polling cadence.
type Poller struct {
	FetchIntervalSeconds     int `yaml:"fetch_interval_seconds"`
	HeartbeatIntervalSeconds int `yaml:"heartbeat_interval_seconds"`
}

// AggregatorConfig controls roll-up periods and the reconciliation window.
type AggregatorConfig struct {
	Periods    []int `yaml:"periods"`
	RecentDays int   `yaml:"recent_days"`
}

// Session defines the instrument's trading windows in a fixed timezone.
// A window whose end precedes its start wraps past midnight.
type Session struct {
	Timezone string   `yaml:"timezone"`
	Windows  []string `yaml:"windows"`
}

// Storage holds paths for local data persistence.
type Storage struct {
	SQLitePath    string `yaml:"sqlite_path"`
	ArchiveDir    string `yaml:"archive_dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Remote configures the remote bar database. DSN takes priority; the
// discrete fields are assembled into a Postgres DSN when it is empty.
type Remote struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}

	if v := os.Getenv("QUOTE_URL"); v != "" {
		cfg.Quote.URL = v
	}

	if v := os.Getenv("REMOTE_DSN"); v != "" {
		cfg.Remote.DSN = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Remote.Host = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Remote.Password = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Quote.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Quote.Alpaca.APISecret = v
	}
}

// applyDefaults fills zero-valued fields with the documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Quote.Provider == "" {
		cfg.Quote.Provider = "http"
	}
	if cfg.Quote.Delimiter == "" {
		cfg.Quote.Delimiter = ","
	}
	if cfg.Quote.TimeoutSeconds <= 0 {
		cfg.Quote.TimeoutSeconds = 10
	}
	if cfg.Poller.FetchIntervalSeconds <= 0 {
		cfg.Poller.FetchIntervalSeconds = 5
	}
	if cfg.Poller.HeartbeatIntervalSeconds <= 0 {
		cfg.Poller.HeartbeatIntervalSeconds = 60
	}
	if len(cfg.Aggregator.Periods) == 0 {
		cfg.Aggregator.Periods = []int{3, 5, 10, 15, 30, 60}
	}
	if cfg.Aggregator.RecentDays <= 0 {
		cfg.Aggregator.RecentDays = 2
	}
	if cfg.Storage.RetentionDays <= 0 {
		cfg.Storage.RetentionDays = 14
	}
	if cfg.Session.Timezone == "" {
		cfg.Session.Timezone = "Local"
	}
	if cfg.Remote.Port <= 0 {
		cfg.Remote.Port = 5432
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks the configuration for errors that would invalidate
// downstream correctness. Any error returned here is fatal at startup.
func (cfg *Config) Validate() error {
	if cfg.Instrument.Code == "" {
		return fmt.Errorf("instrument.code must not be empty")
	}
	if cfg.Instrument.PriceMax > 0 && cfg.Instrument.PriceMin >= cfg.Instrument.PriceMax {
		return fmt.Errorf("instrument price bounds invalid: min %v >= max %v",
			cfg.Instrument.PriceMin, cfg.Instrument.PriceMax)
	}

	switch cfg.Quote.Provider {
	case "http":
		if cfg.Quote.URL == "" {
			return fmt.Errorf("quote.url must be set for the http provider")
		}
	case "alpaca":
		if cfg.Quote.Alpaca.Symbol == "" {
			return fmt.Errorf("quote.alpaca.symbol must be set for the alpaca provider")
		}
	default:
		return fmt.Errorf("unknown quote provider %q", cfg.Quote.Provider)
	}

	prev := 1
	for _, p := range cfg.Aggregator.Periods {
		if p <= 1 {
			return fmt.Errorf("roll-up period %d must be greater than 1", p)
		}
		if p <= prev {
			return fmt.Errorf("roll-up periods must be strictly increasing, got %v", cfg.Aggregator.Periods)
		}
		if 60%p != 0 {
			return fmt.Errorf("roll-up period %d does not divide 60", p)
		}
		prev = p
	}

	if _, err := time.LoadLocation(cfg.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone %q: %w", cfg.Session.Timezone, err)
	}
	if len(cfg.Session.Windows) == 0 {
		return fmt.Errorf("session.windows must not be empty")
	}
	for _, w := range cfg.Session.Windows {
		if err := validateWindow(w); err != nil {
			return fmt.Errorf("session window %q: %w", w, err)
		}
	}

	if cfg.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path must not be empty")
	}

	return nil
}

// validateWindow checks a single "HH:MM-HH:MM" range.
func validateWindow(w string) error {
	parts := strings.SplitN(w, "-", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected HH:MM-HH:MM")
	}
	for _, p := range parts {
		if _, err := time.Parse("15:04", strings.TrimSpace(p)); err != nil {
			return fmt.Errorf("bad time of day %q", p)
		}
	}
	return nil
}

// PostgresDSN returns the configured DSN, assembling one from the discrete
// fields when it is empty.
func (cfg *Config) PostgresDSN() string {
	if cfg.Remote.DSN != "" {
		return cfg.Remote.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Remote.Host, cfg.Remote.Port, cfg.Remote.User, cfg.Remote.Password, cfg.Remote.DBName)
}

// FetchInterval returns the in-session poll cadence.
func (cfg *Config) FetchInterval() time.Duration {
	return time.Duration(cfg.Poller.FetchIntervalSeconds) * time.Second
}

// HeartbeatInterval returns the out-of-session poll cadence.
func (cfg *Config) HeartbeatInterval() time.Duration {
	return time.Duration(cfg.Poller.HeartbeatIntervalSeconds) * time.Second
}

// QuoteTimeout returns the per-request quote fetch timeout.
func (cfg *Config) QuoteTimeout() time.Duration {
	return time.Duration(cfg.Quote.TimeoutSeconds) * time.Second
}
