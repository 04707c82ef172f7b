package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortlens/internal/service/aggregation"
)

var configKeys = []string{
	"DUCKDB_PATH", "META_DB_PATH", "MANIFEST_DIR", "LISTEN_ADDR", "LOG_LEVEL", "ENV",
	"AGG_MAX_CONCURRENCY", "QUERY_TIMEOUT", "CATEGORY_LIMIT", "GEOGRAPHIC_CATEGORY_LIMIT",
	"HISTOGRAM_BINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "cohortlens_meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 100.0, cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, aggregation.DefaultOptions(), cfg.AggregationOptions())
	assert.NotEmpty(t, cfg.Warnings, "in-memory DuckDB should be flagged")
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("DUCKDB_PATH", "/data/cohort.duckdb")
	t.Setenv("META_DB_PATH", "/data/meta.sqlite")
	t.Setenv("MANIFEST_DIR", "/etc/cohortlens")
	t.Setenv("AGG_MAX_CONCURRENCY", "4")
	t.Setenv("QUERY_TIMEOUT", "5s")
	t.Setenv("CATEGORY_LIMIT", "25")
	t.Setenv("GEOGRAPHIC_CATEGORY_LIMIT", "60")
	t.Setenv("HISTOGRAM_BINS", "10")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/data/cohort.duckdb", cfg.DuckDBPath)
	assert.Equal(t, "/data/meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, "/etc/cohortlens", cfg.ManifestDir)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, aggregation.Options{
		MaxConcurrentColumns:    4,
		CategoryLimit:           25,
		GeographicCategoryLimit: 60,
		HistogramBins:           10,
	}, cfg.AggregationOptions())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "negative_concurrency", key: "AGG_MAX_CONCURRENCY", value: "-1"},
		{name: "fractional_bins", key: "HISTOGRAM_BINS", value: "2.5"},
		{name: "exponent_limit", key: "CATEGORY_LIMIT", value: "1e3"},
		{name: "hex_limit", key: "GEOGRAPHIC_CATEGORY_LIMIT", value: "0x10"},
		{name: "word_burst", key: "RATE_LIMIT_BURST", value: "lots"},
		{name: "bad_timeout", key: "QUERY_TIMEOUT", value: "soon"},
		{name: "zero_rps", key: "RATE_LIMIT_RPS", value: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadFromEnv_ZeroMeansDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("HISTOGRAM_BINS", "0")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.HistogramBins)
}

func TestLoadFromEnv_Production(t *testing.T) {
	t.Run("rejects_cors_wildcard", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ENV", "production")
		t.Setenv("DUCKDB_PATH", "/data/cohort.duckdb")
		_, err := LoadFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CORS wildcard")
	})

	t.Run("requires_duckdb_path", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ENV", "production")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example")
		_, err := LoadFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DUCKDB_PATH")
	})

	t.Run("valid", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ENV", "Production")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example")
		t.Setenv("DUCKDB_PATH", "/data/cohort.duckdb")
		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.in}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing_file_is_not_an_error", func(t *testing.T) {
		require.NoError(t, LoadDotEnv("/nonexistent/.env"))
	})

	t.Run("parses_and_respects_existing_env", func(t *testing.T) {
		t.Setenv("COHORT_TEST_PRESET", "from_env")
		t.Setenv("COHORT_TEST_QUOTED", "")
		t.Setenv("COHORT_TEST_PLAIN", "")

		envFile := filepath.Join(t.TempDir(), ".env")
		body := "# comment\n\nCOHORT_TEST_PLAIN=plain\nCOHORT_TEST_QUOTED=\"quoted value\"\n" +
			"COHORT_TEST_PRESET=from_file\nnot a pair\n"
		require.NoError(t, os.WriteFile(envFile, []byte(body), 0o600))

		require.NoError(t, LoadDotEnv(envFile))
		assert.Equal(t, "plain", os.Getenv("COHORT_TEST_PLAIN"))
		assert.Equal(t, "quoted value", os.Getenv("COHORT_TEST_QUOTED"))
		assert.Equal(t, "from_env", os.Getenv("COHORT_TEST_PRESET"))
	})
}
