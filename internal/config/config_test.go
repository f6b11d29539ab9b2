package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "graphiti", cfg.GraphDriver)
	assert.Equal(t, "user_main", cfg.GraphGroupID)
	assert.Equal(t, 90, cfg.SyncWindowDays)
	assert.Equal(t, 100, cfg.PageSize)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SYNAPTA_HTTP_PORT", "9999")
	t.Setenv("SYNAPTA_SYNC_WINDOW_DAYS", "30")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.HTTPPort)
	assert.Equal(t, 30*24*time.Hour, cfg.SyncWindow())
}

func TestResolveDefaultsValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad db driver", func(c *Config) { c.DBDriver = "oracle" }},
		{"postgres without dsn", func(c *Config) { c.DBDriver = "postgres"; c.PostgresDSN = "" }},
		{"bad graph driver", func(c *Config) { c.GraphDriver = "neo4j" }},
		{"bad llm provider", func(c *Config) { c.LLMProvider = "gpt5" }},
		{"non-positive window", func(c *Config) { c.SyncWindowDays = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewForTesting()
			tc.mutate(cfg)
			assert.Error(t, cfg.ResolveDefaults())
		})
	}
}

func TestResolveDefaultsClamps(t *testing.T) {
	cfg := NewForTesting()
	cfg.PageRetryMaxAttempts = 0
	cfg.IngestWorkers = -1
	cfg.ContextFactLimit = 50
	cfg.SearchTopK = 10

	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, 1, cfg.PageRetryMaxAttempts)
	assert.Equal(t, 1, cfg.IngestWorkers)
	assert.Equal(t, 10, cfg.ContextFactLimit)
}

func TestDurationHelpers(t *testing.T) {
	cfg := NewForTesting()
	cfg.PageTimeoutSeconds = 30
	cfg.PageRetryBaseMS = 500
	cfg.AnswerTimeoutSeconds = 45

	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.Equal(t, 30*time.Second, cfg.PageTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.PageRetryBase())
	assert.Equal(t, 45*time.Second, cfg.AnswerTimeout())
}
