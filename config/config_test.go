package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "ingest_queue", cfg.Worker.QueueName)
	assert.Equal(t, 1, cfg.Worker.MinWorkers)
	assert.Equal(t, 4, cfg.Worker.MaxConcurrency)

	assert.Equal(t, "", cfg.Chunking.Strategy)
	assert.Equal(t, 1500, cfg.Chunking.MaxCharacters)
	assert.Equal(t, 0, cfg.Chunking.NewAfterNChars)
	assert.Equal(t, 500, cfg.Chunking.CombineTextUnderNChars)
	assert.True(t, cfg.Chunking.MultipageSections)

	assert.False(t, cfg.Embedding.Enabled)
	assert.True(t, cfg.Destinations.Local.Enabled)
	assert.False(t, cfg.Destinations.Postgres.Enabled)
	assert.False(t, cfg.Watcher.Enabled)
	assert.Equal(t, "ingest", cfg.Metrics.Namespace)
	assert.Equal(t, 24*time.Hour, cfg.Security.JWTExpiry)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CHUNKING_STRATEGY", "by_title")
	t.Setenv("CHUNKING_MAX_CHARACTERS", "800")
	t.Setenv("WORKER_MAX_CONCURRENCY", "8")
	t.Setenv("WORKER_RETRY_DELAY", "250ms")
	t.Setenv("DEST_LOCAL_ENABLED", "false")
	t.Setenv("WATCHER_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "by_title", cfg.Chunking.Strategy)
	assert.Equal(t, 800, cfg.Chunking.MaxCharacters)
	assert.Equal(t, 8, cfg.Worker.MaxConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.RetryDelay)
	assert.False(t, cfg.Destinations.Local.Enabled)
	assert.True(t, cfg.Watcher.Enabled)
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CHUNKING_MAX_CHARACTERS", "lots")
	t.Setenv("WORKER_RETRY_DELAY", "soon")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 1500, cfg.Chunking.MaxCharacters)
	assert.Equal(t, 5*time.Second, cfg.Worker.RetryDelay)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, Load().Validate())
	})

	t.Run("rejects unknown chunking strategy", func(t *testing.T) {
		cfg := Load()
		cfg.Chunking.Strategy = "by_vibes"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive max characters", func(t *testing.T) {
		cfg := Load()
		cfg.Chunking.MaxCharacters = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		cfg := Load()
		cfg.Logging.Level = "loud"
		assert.Error(t, cfg.Validate())
	})
}

func TestHelpers(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "localhost:6379", cfg.GetRedisURL())
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Server.Environment = "production"
	assert.True(t, cfg.IsProduction())
}
