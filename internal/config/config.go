// Package config loads settings for the Jimo client and the dev server.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file (--config flag or JIMO_CONFIG), and JIMO_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment names the deployment type
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config holds all settings
type Config struct {
	Environment Environment `yaml:"environment"`
	LogLevel    string      `yaml:"log_level"`

	API       APIConfig       `yaml:"api"`
	Identity  IdentityConfig  `yaml:"identity"`
	DevServer DevServerConfig `yaml:"devserver"`
}

// APIConfig configures the request pipeline
type APIConfig struct {
	// BaseURL is the Jimo API root, e.g. https://api.jimoapp.com
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// RateLimit is requests per second; zero disables client side limiting
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// Metrics registers pipeline metrics with the default Prometheus registry
	Metrics bool `yaml:"metrics"`
}

// IdentityConfig configures the credential provider
type IdentityConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// RefreshBuffer is how long before expiry a token is refreshed
	RefreshBuffer time.Duration `yaml:"refresh_buffer"`
}

// DevServerConfig configures cmd/devserver
type DevServerConfig struct {
	Addr              string        `yaml:"addr"`
	Secret            string        `yaml:"secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// Default returns the built-in settings, pointing at a local dev server
func Default() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		API: APIConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   15 * time.Second,
			RateBurst: 1,
		},
		Identity: IdentityConfig{
			BaseURL:       "http://localhost:8080",
			RefreshBuffer: 5 * time.Minute,
		},
		DevServer: DevServerConfig{
			Addr:              ":8080",
			Secret:            "dev-secret-change-me",
			TokenTTL:          time.Hour,
			RequestsPerMinute: 600,
		},
	}
}

// Load builds the config from defaults, the YAML file at path (JIMO_CONFIG
// when path is empty, skipped when both are empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("JIMO_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML overlays data on cfg. Unknown keys are rejected.
func (c *Config) decodeYAML(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = Environment(getEnv("JIMO_ENV", string(c.Environment)))
	c.LogLevel = getEnv("JIMO_LOG_LEVEL", c.LogLevel)

	c.API.BaseURL = getEnv("JIMO_API_URL", c.API.BaseURL)
	c.API.Timeout = getEnvDuration("JIMO_HTTP_TIMEOUT", c.API.Timeout)
	c.API.RateLimit = getEnvFloat("JIMO_RATE_LIMIT", c.API.RateLimit)
	c.API.RateBurst = getEnvInt("JIMO_RATE_BURST", c.API.RateBurst)
	c.API.Metrics = getEnvBool("JIMO_METRICS", c.API.Metrics)

	c.Identity.BaseURL = getEnv("JIMO_IDENTITY_URL", c.Identity.BaseURL)
	c.Identity.APIKey = getEnv("JIMO_IDENTITY_API_KEY", c.Identity.APIKey)
	c.Identity.RefreshBuffer = getEnvDuration("JIMO_TOKEN_REFRESH_BUFFER", c.Identity.RefreshBuffer)

	c.DevServer.Addr = getEnv("JIMO_DEVSERVER_ADDR", c.DevServer.Addr)
	c.DevServer.Secret = getEnv("JIMO_DEVSERVER_SECRET", c.DevServer.Secret)
	c.DevServer.TokenTTL = getEnvDuration("JIMO_DEVSERVER_TOKEN_TTL", c.DevServer.TokenTTL)
	c.DevServer.RequestsPerMinute = getEnvInt("JIMO_DEVSERVER_RATE_LIMIT", c.DevServer.RequestsPerMinute)
}

// Validate checks that all settings are usable
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Production:
	default:
		errs = append(errs, fmt.Errorf("environment must be development or production, got %q", c.Environment))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if err := validateURL("api.base_url", c.API.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("identity.base_url", c.Identity.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, errors.New("api.rate_limit must not be negative"))
	}
	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		errs = append(errs, errors.New("api.rate_burst must be at least 1 when rate limiting"))
	}
	if c.Identity.RefreshBuffer < 0 {
		errs = append(errs, errors.New("identity.refresh_buffer must not be negative"))
	}

	if c.Environment == Production {
		if !strings.HasPrefix(c.API.BaseURL, "https://") || !strings.HasPrefix(c.Identity.BaseURL, "https://") {
			errs = append(errs, errors.New("production requires https base URLs"))
		}
		if c.DevServer.Secret == Default().DevServer.Secret {
			errs = append(errs, errors.New("devserver.secret must be changed in production"))
		}
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the production environment is selected
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// ParseLevel maps debug, info, warn and error onto slog levels
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// NewLogger returns a text logger writing to w at the configured level
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
