package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"JIMO_CONFIG", "JIMO_ENV", "JIMO_LOG_LEVEL", "JIMO_API_URL", "JIMO_HTTP_TIMEOUT",
	"JIMO_RATE_LIMIT", "JIMO_RATE_BURST", "JIMO_METRICS", "JIMO_IDENTITY_URL",
	"JIMO_IDENTITY_API_KEY", "JIMO_TOKEN_REFRESH_BUFFER", "JIMO_DEVSERVER_ADDR",
	"JIMO_DEVSERVER_SECRET", "JIMO_DEVSERVER_TOKEN_TTL", "JIMO_DEVSERVER_RATE_LIMIT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jimo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
log_level: debug
api:
  base_url: https://api.jimoapp.com
  timeout: 5s
  rate_limit: 10
  rate_burst: 5
identity:
  base_url: https://identity.jimoapp.com
  refresh_buffer: 2m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://api.jimoapp.com", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10.0, cfg.API.RateLimit)
	assert.Equal(t, 5, cfg.API.RateBurst)
	assert.Equal(t, 2*time.Minute, cfg.Identity.RefreshBuffer)

	// Untouched sections keep their defaults
	assert.Equal(t, ":8080", cfg.DevServer.Addr)
}

func TestLoad_FileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIMO_CONFIG", writeConfig(t, "log_level: warn\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api:
  base_url: https://from-file.example.com
  timeout: 5s
`)
	t.Setenv("JIMO_API_URL", "https://from-env.example.com")
	t.Setenv("JIMO_HTTP_TIMEOUT", "30")
	t.Setenv("JIMO_METRICS", "true")
	t.Setenv("JIMO_TOKEN_REFRESH_BUFFER", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.API.Metrics)
	assert.Equal(t, 90*time.Second, cfg.Identity.RefreshBuffer)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown key",
			content: "api:\n  base_uri: https://x\n",
			wantErr: "base_uri",
		},
		{
			name:    "malformed yaml",
			content: "api: [",
			wantErr: "parsing config file",
		},
		{
			name:    "relative url",
			env:     map[string]string{"JIMO_API_URL": "/api"},
			wantErr: "api.base_url must be an absolute URL",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"JIMO_LOG_LEVEL": "loud"},
			wantErr: "invalid log level",
		},
		{
			name:    "unknown environment",
			env:     map[string]string{"JIMO_ENV": "staging"},
			wantErr: "environment must be",
		},
		{
			name:    "rate limit without burst",
			content: "api:\n  rate_limit: 2\n  rate_burst: 0\n",
			wantErr: "api.rate_burst",
		},
		{
			name:    "production needs https",
			env:     map[string]string{"JIMO_ENV": "production", "JIMO_DEVSERVER_SECRET": "s3cret"},
			wantErr: "production requires https",
		},
		{
			name: "production needs a real secret",
			env: map[string]string{
				"JIMO_ENV":          "production",
				"JIMO_API_URL":      "https://api.jimoapp.com",
				"JIMO_IDENTITY_URL": "https://identity.jimoapp.com",
			},
			wantErr: "devserver.secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.content != "" {
				path = writeConfig(t, tt.content)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("JIMO_TEST_INT", "nope")
	assert.Equal(t, 7, getEnvInt("JIMO_TEST_INT", 7))

	t.Setenv("JIMO_TEST_BOOL", "yes")
	assert.True(t, getEnvBool("JIMO_TEST_BOOL", false))

	t.Setenv("JIMO_TEST_DURATION", "garbage")
	assert.Equal(t, time.Second, getEnvDuration("JIMO_TEST_DURATION", time.Second))
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown key=value")
}
