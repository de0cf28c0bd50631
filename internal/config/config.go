// Package config loads service and CLI configuration from an optional
// config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds all configuration for the API server and the runplan CLI.
// Every key can be overridden by an environment variable named after the
// key with dots replaced by underscores, e.g. plan.max_attempts -> PLAN_MAX_ATTEMPTS.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Telemetry TelemetryConfig `mapstructure:"otel"`
	Plan      PlanConfig      `mapstructure:"plan"`
}

// AppConfig configures the HTTP server.
type AppConfig struct {
	Port            int           `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	RequireTLS      bool          `mapstructure:"require_tls"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ZerologLevel parses Level, falling back to info.
func (c LogConfig) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// GeminiConfig configures the AI provider.
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// PlanConfig configures the plan request client used by the CLI.
type PlanConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Backoff        bool          `mapstructure:"backoff"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// Errors returned by Validate.
var (
	ErrInvalidPort        = errors.New("app.port must be between 1 and 65535")
	ErrInvalidMaxAttempts = errors.New("plan.max_attempts must be at least 1")
	ErrNegativeDuration   = errors.New("durations must not be negative")
	ErrMissingEndpoint    = errors.New("plan.endpoint is required")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.env", "development")
	v.SetDefault("app.require_tls", false)
	v.SetDefault("app.max_body_bytes", 64<<10)
	v.SetDefault("app.shutdown_timeout", "30s")

	v.SetDefault("log.level", "info")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.timeout", "25s")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.sample_ratio", 1.0)

	v.SetDefault("plan.endpoint", "http://localhost:8080/api/generate-plan")
	v.SetDefault("plan.max_attempts", 3)
	v.SetDefault("plan.retry_delay", "2s")
	v.SetDefault("plan.backoff", true)
	v.SetDefault("plan.max_delay", "0s")
	v.SetDefault("plan.attempt_timeout", "30s")
}

// Load reads configuration. When file is empty, config.yaml is looked up in
// the working directory and its absence is not an error; an explicit file
// must exist.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Standard OpenTelemetry variable name.
	if err := v.BindEnv("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_ENDPOINT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("app.require_tls", "APP_REQUIRE_TLS", "REQUIRE_TLS"); err != nil {
		return nil, err
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings shared by both binaries.
func (c *Config) Validate() error {
	var errs []error
	if c.App.Port < 1 || c.App.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.Plan.MaxAttempts < 1 {
		errs = append(errs, ErrInvalidMaxAttempts)
	}
	if c.Plan.RetryDelay < 0 || c.Plan.MaxDelay < 0 || c.Plan.AttemptTimeout < 0 ||
		c.Gemini.Timeout < 0 || c.App.ShutdownTimeout < 0 {
		errs = append(errs, ErrNegativeDuration)
	}
	if strings.TrimSpace(c.Plan.Endpoint) == "" {
		errs = append(errs, ErrMissingEndpoint)
	}
	return errors.Join(errs...)
}
