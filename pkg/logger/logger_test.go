package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		log, err := New(nil)
		require.NoError(t, err)
		assert.NotNil(t, log.Logger)
	})

	t.Run("console format", func(t *testing.T) {
		log, err := New(&Config{
			Level:      "debug",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: time.RFC3339,
		})
		require.NoError(t, err)
		assert.NotNil(t, log.Logger)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(&Config{Level: "shouting", Format: "json", Output: "stdout"})
		assert.Error(t, err)
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		log, err := New(&Config{
			Level:      "info",
			Format:     "json",
			Output:     "file",
			Filename:   path,
			TimeFormat: time.RFC3339,
		})
		require.NoError(t, err)

		log.Info().Str("key", "value").Msg("hello")
		assert.FileExists(t, path)
	})
}

func TestContextIDs(t *testing.T) {
	ctx := WithCorrelationID(context.Background())
	ctx = WithJobID(ctx, "job-42")

	correlationID, ok := ctx.Value(CorrelationIDKey).(string)
	require.True(t, ok)
	assert.NotEmpty(t, correlationID)

	jobID, ok := ctx.Value(JobIDKey).(string)
	require.True(t, ok)
	assert.Equal(t, "job-42", jobID)

	// Fresh correlation IDs differ per call.
	other := WithCorrelationID(context.Background())
	assert.NotEqual(t, correlationID, other.Value(CorrelationIDKey))
}

func TestFromContextCarriesIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	log, err := New(&Config{
		Level:      "info",
		Format:     "json",
		Output:     "file",
		Filename:   path,
		TimeFormat: time.RFC3339,
	})
	require.NoError(t, err)

	ctx := WithJobID(WithCorrelationID(context.Background()), "job-7")
	log.FromContext(ctx).Info().Msg("processing")

	data, err := readLogLine(path)
	require.NoError(t, err)
	assert.Equal(t, "job-7", data["job_id"])
	assert.NotEmpty(t, data["correlation_id"])
	assert.Equal(t, "processing", data["message"])
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Init(DefaultConfig()))
	assert.NotNil(t, Get())

	// Get falls back to a default logger when Init was never called.
	globalLogger = nil
	assert.NotNil(t, Get())
}

func readLogLine(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	var data map[string]interface{}
	if err := json.Unmarshal(line, &data); err != nil {
		return nil, err
	}
	return data, nil
}
