// Package config handles configuration loading for cryptoreport.
// It supports YAML config files, a .env file and environment variable
// overrides, resolved once at startup and passed into constructors.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/seenimoa/cryptoreport/pkg/models"
	"github.com/seenimoa/cryptoreport/pkg/utils"
)

// ErrConfig is wrapped by every validation failure.
var ErrConfig = models.ErrConfig

// Environment variable names.
const (
	EnvPrefix = "CRYPTOREPORT"

	EnvAPIKey    = "CRYPTOREPORT_PROVIDER_API_KEY"
	EnvRateLimit = "CRYPTOREPORT_PROVIDER_RATE_LIMIT"
	EnvSymbols   = "CRYPTOREPORT_SYMBOLS"

	// Names used by earlier releases, still honoured.
	EnvLegacyAPIKey    = "CMC_API_KEY"
	EnvLegacyRateLimit = "API_RATE_LIMIT"
)

// Config represents the complete application configuration.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Report   ReportConfig   `mapstructure:"report"   yaml:"report"`
	Fetch    FetchConfig    `mapstructure:"fetch"    yaml:"fetch"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// ProviderConfig holds CoinMarketCap access settings.
type ProviderConfig struct {
	APIKey          string        `mapstructure:"api_key"          yaml:"api_key"`
	BaseURL         string        `mapstructure:"base_url"         yaml:"base_url"`
	RateLimit       int           `mapstructure:"rate_limit"       yaml:"rate_limit"` // calls per minute
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"      yaml:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"    yaml:"retry_backoff"`
	BreakerFailures int           `mapstructure:"breaker_failures" yaml:"breaker_failures"` // 0 disables
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"  yaml:"breaker_timeout"`
}

// GroupConfig is a named list of tracked symbols.
type GroupConfig struct {
	Name    string   `mapstructure:"name"    yaml:"name"`
	Symbols []string `mapstructure:"symbols" yaml:"symbols"`
}

// ReportConfig holds what goes into the report.
type ReportConfig struct {
	Groups    []GroupConfig `mapstructure:"groups"     yaml:"groups"`
	Horizons  []string      `mapstructure:"horizons"   yaml:"horizons"`
	RankBy    string        `mapstructure:"rank_by"    yaml:"rank_by"`
	Universe  int           `mapstructure:"universe"   yaml:"universe"` // top-N by market cap eligible for ranking
	TopN      int           `mapstructure:"top_n"      yaml:"top_n"`
	OutputDir string        `mapstructure:"output_dir" yaml:"output_dir"`
}

// FetchConfig holds quote retrieval settings.
type FetchConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	BatchSize   int `mapstructure:"batch_size"  yaml:"batch_size"` // symbols per quotes request
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"       yaml:"format"` // "console" or "json"
	File       string `mapstructure:"file"         yaml:"file"`   // optional, rotated
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"` // node_exporter textfile path
}

// DefaultGroups are the token groups tracked when none are configured.
var DefaultGroups = []GroupConfig{
	{Name: "top", Symbols: []string{"BTC", "ETH", "XRP", "BNB", "SOL"}},
	{Name: "meme", Symbols: []string{"DOGE", "PEPE", "WIF", "SPX", "PNUT"}},
	{Name: "solana", Symbols: []string{"RENDER", "JTO", "PYTH", "RAY", "W"}},
	{Name: "base", Symbols: []string{"VIRTUAL", "AERO", "BRETT", "AIXBT", "WELL"}},
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.cryptoreport/config.yaml (home directory)
//  3. /etc/cryptoreport/config.yaml (system)
//
// A .env file in the working directory is loaded first; it never
// overrides variables already set in the environment.
// Environment variables override config file values.
// Format: CRYPTOREPORT_<SECTION>_<KEY>, e.g., CRYPTOREPORT_PROVIDER_API_KEY
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".cryptoreport"))
	v.AddConfigPath("/etc/cryptoreport")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// loadDotEnv loads path into the environment if it exists.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Provider defaults (CoinMarketCap Basic plan)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://pro-api.coinmarketcap.com")
	v.SetDefault("provider.rate_limit", 30)
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("provider.max_retries", 0) // single attempt per call
	v.SetDefault("provider.retry_backoff", "2s")
	v.SetDefault("provider.breaker_failures", 5)
	v.SetDefault("provider.breaker_timeout", "60s")

	// Report defaults
	groups := make([]map[string]any, len(DefaultGroups))
	for i, g := range DefaultGroups {
		groups[i] = map[string]any{"name": g.Name, "symbols": g.Symbols}
	}
	v.SetDefault("report.groups", groups)
	v.SetDefault("report.horizons", []string{"7d", "30d", "90d", "1y"})
	v.SetDefault("report.rank_by", "7d")
	v.SetDefault("report.universe", 100)
	v.SetDefault("report.top_n", 5)
	v.SetDefault("report.output_dir", "./reports")

	// Fetch defaults (sequential, one symbol per request)
	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.batch_size", 1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	// Metrics defaults
	v.SetDefault("metrics.textfile", "")
}

// overrideFromEnv applies the legacy variable names and the symbol list,
// which viper cannot map onto the config tree by itself.
func overrideFromEnv(cfg *Config) {
	if os.Getenv(EnvAPIKey) == "" {
		if key := os.Getenv(EnvLegacyAPIKey); key != "" {
			cfg.Provider.APIKey = key
		}
	}
	if os.Getenv(EnvRateLimit) == "" {
		if raw := os.Getenv(EnvLegacyRateLimit); raw != "" {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				n = 0 // rejected by Validate
			}
			cfg.Provider.RateLimit = n
		}
	}
	if raw := os.Getenv(EnvSymbols); raw != "" {
		cfg.SetSymbols(strings.Split(raw, ","))
	}
	cfg.Provider.APIKey = strings.TrimSpace(cfg.Provider.APIKey)
}

// SetSymbols replaces the configured groups with a single "custom" group.
func (c *Config) SetSymbols(symbols []string) {
	c.Report.Groups = []GroupConfig{{Name: "custom", Symbols: symbols}}
}

// Symbols returns every tracked symbol once, normalized, in group order.
func (c *Config) Symbols() []string {
	var all []string
	for _, g := range c.Report.Groups {
		all = append(all, g.Symbols...)
	}
	return utils.UniqueSymbols(all)
}

// Horizons returns the configured report horizons. Invalid entries are
// skipped; Validate reports them.
func (c *Config) Horizons() []models.Horizon {
	out := make([]models.Horizon, 0, len(c.Report.Horizons))
	for _, s := range c.Report.Horizons {
		if h, err := models.ParseHorizon(s); err == nil {
			out = append(out, h)
		}
	}
	return out
}

// RankBy returns the ranking horizon.
func (c *Config) RankBy() models.Horizon {
	h, _ := models.ParseHorizon(c.Report.RankBy)
	return h
}

// Validate checks everything a run needs before any network call.
func (c *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Provider.APIKey == "" {
		addf("missing API key (set %s or %s)", EnvLegacyAPIKey, EnvAPIKey)
	}
	if c.Provider.RateLimit <= 0 {
		addf("provider.rate_limit must be a positive number of calls per minute, got %d", c.Provider.RateLimit)
	}
	if c.Provider.Timeout <= 0 {
		addf("provider.timeout must be positive, got %s", c.Provider.Timeout)
	}
	if c.Provider.MaxRetries < 0 {
		addf("provider.max_retries must not be negative, got %d", c.Provider.MaxRetries)
	}
	if c.Provider.BreakerFailures < 0 {
		addf("provider.breaker_failures must not be negative, got %d", c.Provider.BreakerFailures)
	}

	if len(c.Symbols()) == 0 {
		addf("no tracked tokens configured")
	}
	for i, g := range c.Report.Groups {
		if strings.TrimSpace(g.Name) == "" {
			addf("report.groups[%d] has no name", i)
		}
	}
	if len(c.Report.Horizons) == 0 {
		addf("report.horizons is empty")
	}
	for _, s := range c.Report.Horizons {
		if _, err := models.ParseHorizon(s); err != nil {
			addf("report.horizons: %v", err)
		}
	}
	if _, err := models.ParseHorizon(c.Report.RankBy); err != nil {
		addf("report.rank_by: %v", err)
	}
	if c.Report.Universe < 1 {
		addf("report.universe must be positive, got %d", c.Report.Universe)
	}
	if c.Report.TopN < 1 {
		addf("report.top_n must be positive, got %d", c.Report.TopN)
	}

	if c.Fetch.Concurrency < 1 {
		addf("fetch.concurrency must be at least 1, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.BatchSize < 1 {
		addf("fetch.batch_size must be at least 1, got %d", c.Fetch.BatchSize)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		addf("logging.format must be console or json, got %q", c.Logging.Format)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
