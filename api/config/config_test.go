package config

import (
	"testing"
	"time"

	"github.com/playlake/dashboard/api/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, warehouse.EngineBigQuery, cfg.Engine)
	assert.Equal(t, warehouse.DefaultQueryTimeout, cfg.QueryTimeout)
	assert.Equal(t, DefaultCORSOrigins, cfg.CORSOrigins)
	assert.True(t, cfg.RateLimitEnabled())
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := cfg.ApplyEnv(envFrom(map[string]string{
		"PORT":                 "9090",
		"WAREHOUSE_ENGINE":     " ClickHouse ",
		"GCP_PROJECT_ID":       "listening-history",
		"SERVICE_ACCOUNT_PATH": "/secrets/sa.json",
		"TABLE_ID_24":          "spotify.last_24",
		"TABLE_ID_FULL":        "spotify.full",
		"TABLE_ID_AVG_HOURS":   "spotify.avg_hours",
		"CLICKHOUSE_ADDR_TCP":  "ch:9440",
		"CLICKHOUSE_SECURE":    "true",
		"CORS_ORIGINS":         "https://a.example, https://b.example,",
		"QUERY_TIMEOUT":        "5s",
		"RATE_LIMIT_REQUESTS":  "0",
		"SENTRY_ENVIRONMENT":   "production",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, warehouse.EngineClickHouse, cfg.Engine)
	assert.Equal(t, "listening-history", cfg.BigQuery.ProjectID)
	assert.Equal(t, "/secrets/sa.json", cfg.BigQuery.CredentialsPath)
	assert.Equal(t, "spotify.last_24", cfg.Tables.Last24)
	assert.Equal(t, "spotify.full", cfg.Tables.Full)
	assert.Equal(t, "spotify.avg_hours", cfg.Tables.AvgHours)
	assert.Equal(t, "ch:9440", cfg.ClickHouse.Addr)
	assert.Equal(t, "default", cfg.ClickHouse.Database)
	assert.True(t, cfg.ClickHouse.Secure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.False(t, cfg.RateLimitEnabled())
	assert.Equal(t, "production", cfg.SentryEnvironment)
	assert.Empty(t, cfg.Warnings())
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"timeout", map[string]string{"QUERY_TIMEOUT": "soon"}},
		{"rate limit requests", map[string]string{"RATE_LIMIT_REQUESTS": "many"}},
		{"rate limit window", map[string]string{"RATE_LIMIT_WINDOW": "1 minute"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Error(t, Default().ApplyEnv(envFrom(tt.env)))
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown engine", func(c *Config) { c.Engine = "snowflake" }, "unknown warehouse engine"},
		{"unsafe table", func(c *Config) { c.Tables.Full = "t; DROP TABLE x" }, "TABLE_ID_FULL"},
		{"hyphenated clickhouse table", func(c *Config) {
			c.Engine = "clickhouse"
			c.Tables.Last24 = "my-project.plays"
		}, "TABLE_ID_24"},
		{"zero timeout", func(c *Config) { c.QueryTimeout = 0 }, "query timeout"},
		{"negative rate limit", func(c *Config) { c.RateLimitRequests = -1 }, "rate limit requests"},
		{"zero window", func(c *Config) { c.RateLimitWindow = 0 }, "rate limit window"},
		{"no origins", func(c *Config) { c.CORSOrigins = nil }, "CORS origin"},
		{"no listen addr", func(c *Config) { c.ListenAddr = "" }, "listen address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWarnings(t *testing.T) {
	t.Parallel()

	cfg := Default()
	warnings := cfg.Warnings()
	assert.Len(t, warnings, 5)

	cfg.Engine = warehouse.EngineClickHouse
	cfg.Tables.Last24 = "last_24"
	warnings = cfg.Warnings()
	assert.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "TABLE_ID_FULL")
}
