package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Audit.FallbackBackend)
	assert.Equal(t, "admin_logs_fallback", cfg.Audit.FallbackKey)
	assert.Equal(t, 5*time.Second, cfg.Audit.StoreTimeout)
	assert.Equal(t, "gpt-4", cfg.AI.Model)
	assert.Equal(t, 1000, cfg.AI.MaxTokens)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 1e-9)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:5173"}, cfg.Security.CORSOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("AUDIT_FALLBACK_BACKEND", "redis")
	t.Setenv("AUDIT_STORE_TIMEOUT", "750ms")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("IP_LOOKUP_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Audit.FallbackBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.Audit.StoreTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSOrigins)
	assert.False(t, cfg.Audit.IPLookupEnabled)
}

func TestLoad_InvalidNumberKeepsDefault(t *testing.T) {
	t.Setenv("AI_MAX_TOKENS", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.AI.MaxTokens)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "redis fallback without redis url",
			mutate:  func(c *Config) { c.Audit.FallbackBackend = "redis"; c.Redis.URL = "" },
			wantErr: "REDIS_URL",
		},
		{
			name:   "memory fallback in development",
			mutate: func(c *Config) { c.Audit.FallbackBackend = "memory" },
		},
		{
			name:    "memory fallback in production",
			mutate:  func(c *Config) { c.Audit.FallbackBackend = "memory"; c.Server.Environment = "production" },
			wantErr: "memory fallback backend",
		},
		{
			name:    "unknown fallback backend",
			mutate:  func(c *Config) { c.Audit.FallbackBackend = "etcd" },
			wantErr: "unknown audit fallback backend",
		},
		{
			name:    "openai without key",
			mutate:  func(c *Config) { c.AI.Provider = "openai"; c.AI.APIKey = "" },
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "missing database settings",
			mutate:  func(c *Config) { c.Database.URL = ""; c.Database.Host = "" },
			wantErr: "DATABASE_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDatabaseURL_PrefersURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{URL: "postgres://u:p@db.example:5432/postgres"}}
	assert.Equal(t, "postgres://u:p@db.example:5432/postgres", cfg.GetDatabaseURL())

	cfg = &Config{Database: DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable", ConnectTimeout: 10 * time.Second}}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable connect_timeout=10", cfg.GetDatabaseURL())
}
