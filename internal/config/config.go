// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cohortlens/internal/service/aggregation"
	"cohortlens/internal/sqlsafe"
)

// Config holds the configuration for the HTTP API, the CLI and the
// aggregation engine.
type Config struct {
	DuckDBPath  string // DuckDB database file; empty means in-memory
	MetaDBPath  string // SQLite metadata store (default "cohortlens_meta.sqlite")
	ManifestDir string // serve metadata from YAML manifests instead of MetaDBPath
	ListenAddr  string // HTTP listen address (default ":8080")
	LogLevel    string // debug, info, warn, error (default "info")
	Env         string // "development" (default) or "production"

	// Aggregation engine
	AggMaxConcurrency       int           // concurrent column aggregations per table request (default 8)
	QueryTimeout            time.Duration // per-query timeout (default 30s)
	CategoryLimit           int           // categories per categorical column (default 50)
	GeographicCategoryLimit int           // categories per geographic column (default 100)
	HistogramBins           int           // equal-width histogram bins (default 20)

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AggregationOptions returns the aggregation service tuning.
func (c *Config) AggregationOptions() aggregation.Options {
	return aggregation.Options{
		MaxConcurrentColumns:    c.AggMaxConcurrency,
		CategoryLimit:           c.CategoryLimit,
		GeographicCategoryLimit: c.GeographicCategoryLimit,
		HistogramBins:           c.HistogramBins,
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DuckDBPath:  os.Getenv("DUCKDB_PATH"),
		MetaDBPath:  os.Getenv("META_DB_PATH"),
		ManifestDir: os.Getenv("MANIFEST_DIR"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Env:         os.Getenv("ENV"),
	}

	ints := []struct {
		key string
		dst *int
		def int
	}{
		{"AGG_MAX_CONCURRENCY", &cfg.AggMaxConcurrency, 8},
		{"CATEGORY_LIMIT", &cfg.CategoryLimit, 50},
		{"GEOGRAPHIC_CATEGORY_LIMIT", &cfg.GeographicCategoryLimit, 100},
		{"HISTOGRAM_BINS", &cfg.HistogramBins, 20},
		{"RATE_LIMIT_BURST", &cfg.RateLimitBurst, 200},
	}
	for _, it := range ints {
		n, err := positiveIntEnv(it.key, it.def)
		if err != nil {
			return nil, err
		}
		*it.dst = n
	}

	cfg.QueryTimeout = 30 * time.Second
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("QUERY_TIMEOUT: invalid duration %q", v)
		}
		cfg.QueryTimeout = d
	}

	cfg.RateLimitRPS = 100
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_RPS: must be a positive number, got %q", v)
		}
		cfg.RateLimitRPS = f
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "cohortlens_meta.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.DuckDBPath == "" {
		cfg.Warnings = append(cfg.Warnings, "DUCKDB_PATH not set, using an empty in-memory database")
	}
	if cfg.QueryTimeout == 0 {
		cfg.Warnings = append(cfg.Warnings, "QUERY_TIMEOUT=0 disables the per-query timeout")
	}

	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.DuckDBPath == "" {
			return nil, fmt.Errorf("DUCKDB_PATH must be set in production (ENV=production)")
		}
	}

	return cfg, nil
}

// positiveIntEnv reads an integer setting. Unset or zero means def.
func positiveIntEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := sqlsafe.EnsurePositiveInteger(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n == 0 {
		return def, nil
	}
	if n > int64(^uint32(0)>>1) {
		return 0, fmt.Errorf("%s: %d is out of range", key, n)
	}
	return int(n), nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
