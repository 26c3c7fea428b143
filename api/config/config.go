package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/playlake/dashboard/api/queries"
	"github.com/playlake/dashboard/api/warehouse"
)

const (
	DefaultListenAddr        = "0.0.0.0:8080"
	DefaultMetricsAddr       = "0.0.0.0:0"
	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = time.Minute
)

// DefaultCORSOrigins are the dashboard front ends allowed to call the API.
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://spotify-front-end-one.vercel.app",
	"https://spotify-front-i6799bfpl-janmatzeks-projects.vercel.app",
	"https://spotify-front-end-git-master-janmatzeks-projects.vercel.app",
}

// Config holds everything the API needs at start. It is built once in main and
// passed down; nothing reads the environment after that.
type Config struct {
	ListenAddr  string
	MetricsAddr string

	Engine     string
	BigQuery   warehouse.BigQueryConfig
	ClickHouse warehouse.ClickHouseConfig
	Tables     queries.Tables

	QueryTimeout      time.Duration
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	SentryDSN         string
	SentryEnvironment string
}

// Default returns a Config with every optional field set.
func Default() *Config {
	return &Config{
		ListenAddr:        DefaultListenAddr,
		MetricsAddr:       DefaultMetricsAddr,
		Engine:            warehouse.EngineBigQuery,
		QueryTimeout:      warehouse.DefaultQueryTimeout,
		CORSOrigins:       append([]string(nil), DefaultCORSOrigins...),
		RateLimitRequests: DefaultRateLimitRequests,
		RateLimitWindow:   DefaultRateLimitWindow,
		SentryEnvironment: "development",
		ClickHouse: warehouse.ClickHouseConfig{
			Addr:     "localhost:9000",
			Database: "default",
			Username: "default",
		},
	}
}

// ApplyEnv overrides fields with environment variables that are set.
// getenv is os.Getenv outside of tests.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		c.ListenAddr = ":" + port
	}
	if engine := getenv("WAREHOUSE_ENGINE"); engine != "" {
		c.Engine = strings.ToLower(strings.TrimSpace(engine))
	}

	if v := getenv("GCP_PROJECT_ID"); v != "" {
		c.BigQuery.ProjectID = v
	}
	if v := getenv("SERVICE_ACCOUNT_PATH"); v != "" {
		c.BigQuery.CredentialsPath = v
	}

	if v := getenv("CLICKHOUSE_ADDR_TCP"); v != "" {
		c.ClickHouse.Addr = v
	}
	if v := getenv("CLICKHOUSE_DATABASE"); v != "" {
		c.ClickHouse.Database = v
	}
	if v := getenv("CLICKHOUSE_USERNAME"); v != "" {
		c.ClickHouse.Username = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if getenv("CLICKHOUSE_SECURE") == "true" {
		c.ClickHouse.Secure = true
	}

	if v := getenv("TABLE_ID_24"); v != "" {
		c.Tables.Last24 = strings.TrimSpace(v)
	}
	if v := getenv("TABLE_ID_FULL"); v != "" {
		c.Tables.Full = strings.TrimSpace(v)
	}
	if v := getenv("TABLE_ID_AVG_HOURS"); v != "" {
		c.Tables.AvgHours = strings.TrimSpace(v)
	}

	if v := getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	if v := getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT %q: %w", v, err)
		}
		c.QueryTimeout = d
	}
	if v := getenv("RATE_LIMIT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_REQUESTS %q: %w", v, err)
		}
		c.RateLimitRequests = n
	}
	if v := getenv("RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_WINDOW %q: %w", v, err)
		}
		c.RateLimitWindow = d
	}

	if v := getenv("SENTRY_DSN"); v != "" {
		c.SentryDSN = v
	}
	if v := getenv("SENTRY_ENVIRONMENT"); v != "" {
		c.SentryEnvironment = v
	}

	return nil
}

// Validate rejects configuration the process cannot start with. Missing table
// identifiers and credentials are not errors here: requests that need them
// fail with a typed error instead, see Warnings.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	switch queries.Dialect(c.Engine) {
	case queries.DialectBigQuery, queries.DialectClickHouse:
	default:
		return fmt.Errorf("unknown warehouse engine %q (want %s or %s)", c.Engine, queries.DialectBigQuery, queries.DialectClickHouse)
	}
	for name, ident := range map[string]string{
		"TABLE_ID_24":        c.Tables.Last24,
		"TABLE_ID_FULL":      c.Tables.Full,
		"TABLE_ID_AVG_HOURS": c.Tables.AvgHours,
	} {
		if ident != "" && !queries.ValidTableIdent(queries.Dialect(c.Engine), ident) {
			return fmt.Errorf("%s %q is not a valid table identifier", name, ident)
		}
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %s", c.QueryTimeout)
	}
	if c.RateLimitRequests < 0 {
		return fmt.Errorf("rate limit requests must not be negative, got %d", c.RateLimitRequests)
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.RateLimitWindow)
	}
	if len(c.CORSOrigins) == 0 {
		return errors.New("at least one CORS origin is required")
	}
	return nil
}

// Warnings lists settings that are missing but only matter once a request
// needs them.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Tables.Last24 == "" {
		warnings = append(warnings, "TABLE_ID_24 is not set; last_24 requests will fail")
	}
	if c.Tables.Full == "" {
		warnings = append(warnings, "TABLE_ID_FULL is not set; all_time requests will fail")
	}
	if c.Tables.AvgHours == "" {
		warnings = append(warnings, "TABLE_ID_AVG_HOURS is not set; all_time bars requests will fail")
	}
	if c.Engine == warehouse.EngineBigQuery {
		if c.BigQuery.ProjectID == "" {
			warnings = append(warnings, "GCP_PROJECT_ID is not set; warehouse client creation will fail")
		}
		if c.BigQuery.CredentialsPath == "" {
			warnings = append(warnings, "SERVICE_ACCOUNT_PATH is not set; warehouse client creation will fail")
		}
	}
	return warnings
}

// RateLimitEnabled reports whether query endpoints are rate limited.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimitRequests > 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
