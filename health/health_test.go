package health

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest-worker/config"
	"ingest-worker/destinations"
)

func testChecker(t *testing.T) *HealthChecker {
	t.Helper()

	cfg := config.Load()
	cfg.Server.Environment = "test"
	cfg.Chunking.Strategy = "by_title"

	local, err := destinations.NewLocal(t.TempDir())
	require.NoError(t, err)

	// Queue nil: these tests cover the degraded paths without redis.
	return NewHealthChecker(cfg, nil, []destinations.Uploader{local})
}

func TestGetHealthStatus(t *testing.T) {
	status := testChecker(t).GetHealthStatus()

	assert.Equal(t, "unhealthy", status.Status, "missing queue makes the worker unhealthy")
	assert.False(t, status.Queue.Connected)
	assert.Equal(t, "test", status.System.Environment)
	assert.Equal(t, "by_title", status.System.ChunkingStrategy)

	require.Contains(t, status.Destinations, "local")
	assert.True(t, status.Destinations["local"].Available)
}

func TestHealthHandler(t *testing.T) {
	app := fiber.New()
	checker := testChecker(t)
	app.Get("/health", checker.HealthHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "unhealthy", status.Status)
}

func TestReadinessHandler(t *testing.T) {
	app := fiber.New()
	checker := testChecker(t)
	app.Get("/ready", checker.ReadinessHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestLivenessHandler(t *testing.T) {
	app := fiber.New()
	checker := testChecker(t)
	app.Get("/live", checker.LivenessHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/live", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
