// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/text-extraction/internal/extraction"
	"github.com/JakeFAU/text-extraction/internal/logging"
	"github.com/JakeFAU/text-extraction/internal/policy/ratelimit"
)

// EnvPrefix is prepended to environment overrides, e.g. TEXTEXTRACT_SERVER_PORT.
const EnvPrefix = "TEXTEXTRACT"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig       `mapstructure:"server"`
	Auth       AuthConfig         `mapstructure:"auth"`
	HTTP       HTTPConfig         `mapstructure:"http"`
	Headless   HeadlessConfig     `mapstructure:"headless"`
	RateLimit  RateLimitConfig    `mapstructure:"ratelimit"`
	Pipeline   PipelineConfig     `mapstructure:"pipeline"`
	Extraction extraction.Options `mapstructure:"extraction"`
	Logging    logging.Config     `mapstructure:"logging"`
	Tracing    TracingConfig      `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig guards the unlimited internal endpoint.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures the direct fetcher.
type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	MaxBodyBytes  int           `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	ExecPath    string        `mapstructure:"exec_path"`
	NoSandbox   bool          `mapstructure:"no_sandbox"`
}

// RateLimitConfig configures the per-domain limiter.
type RateLimitConfig struct {
	// Rates are "count/period" pairs, all of which must admit a call.
	Rates          []string      `mapstructure:"rates"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	MaxDomains     int           `mapstructure:"max_domains"`
	Refill         string        `mapstructure:"refill"`
}

// Limiter converts the section into a ratelimit.Config.
func (c RateLimitConfig) Limiter() (ratelimit.Config, error) {
	rates, err := ratelimit.ParseRates(c.Rates)
	if err != nil {
		return ratelimit.Config{}, fmt.Errorf("ratelimit.rates: %w", err)
	}
	return ratelimit.Config{
		Rates:          rates,
		MaxKeys:        c.MaxDomains,
		AcquireTimeout: c.AcquireTimeout,
		Refill:         ratelimit.RefillMode(c.Refill),
	}, nil
}

// PipelineConfig tunes the fallback pipeline.
type PipelineConfig struct {
	MinContentChars  int           `mapstructure:"min_content_chars"`
	DefaultTimeout   time.Duration `mapstructure:"default_timeout"`
	BatchParallelism int           `mapstructure:"batch_parallelism"`
	MaxBatchSize     int           `mapstructure:"max_batch_size"`
	SPAGuard         bool          `mapstructure:"spa_guard"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-supplied Viper, so CLI flags bound to v take part.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "90s")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.user_agent", "text-extraction/0.1 (+https://github.com/JakeFAU/text-extraction)")
	v.SetDefault("http.respect_robots", true)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout", "45s")
	v.SetDefault("headless.settle_delay", "500ms")
	v.SetDefault("ratelimit.rates", []string{"5/1s", "50/1m"})
	v.SetDefault("ratelimit.acquire_timeout", "30s")
	v.SetDefault("ratelimit.max_domains", ratelimit.DefaultMaxKeys)
	v.SetDefault("ratelimit.refill", string(ratelimit.RefillWindow))
	v.SetDefault("pipeline.min_content_chars", 200)
	v.SetDefault("pipeline.default_timeout", "60s")
	v.SetDefault("pipeline.batch_parallelism", 4)
	v.SetDefault("pipeline.max_batch_size", 50)
	v.SetDefault("pipeline.spa_guard", true)
	v.SetDefault("extraction.preference", string(extraction.PreferenceNone))
	v.SetDefault("extraction.target_language", extraction.LanguageAuto)
	v.SetDefault("extraction.format", string(extraction.FormatText))
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "text-extraction")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return errors.New("http.max_body_bytes must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return errors.New("headless.max_parallel must be > 0 when headless is enabled")
	}
	limiter, err := c.RateLimit.Limiter()
	if err != nil {
		return err
	}
	if err := limiter.Validate(); err != nil {
		return err
	}
	if c.Pipeline.MinContentChars < 0 {
		return errors.New("pipeline.min_content_chars must be >= 0")
	}
	if c.Pipeline.BatchParallelism <= 0 {
		return errors.New("pipeline.batch_parallelism must be > 0")
	}
	if c.Pipeline.MaxBatchSize <= 0 {
		return errors.New("pipeline.max_batch_size must be > 0")
	}
	if err := ValidateOptions(c.Extraction); err != nil {
		return fmt.Errorf("extraction.%w", err)
	}
	return nil
}

// ValidateOptions rejects unknown preference and format values. Empty fields are allowed.
func ValidateOptions(o extraction.Options) error {
	switch o.Preference {
	case "", extraction.PreferenceNone, extraction.PreferenceRecall, extraction.PreferencePrecision:
	default:
		return fmt.Errorf("preference %q must be none, recall or precision", o.Preference)
	}
	switch o.Format {
	case "", extraction.FormatText, extraction.FormatMarkdown, extraction.FormatHTML:
	default:
		return fmt.Errorf("format %q must be txt, markdown or html", o.Format)
	}
	return nil
}
