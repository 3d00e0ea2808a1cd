package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ingest-worker/config"
	"ingest-worker/pkg/logger"
	"ingest-worker/queue"
)

func TestWatcherEnqueuesDroppedFiles(t *testing.T) {
	cfg := config.Load()
	cfg.Redis.DB = 6
	cfg.Worker.QueueName = "ingest_watcher_test"

	q, err := queue.NewRedisQueue(&cfg.Redis, &cfg.Worker)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer q.Close()

	log, err := logger.New(logger.DefaultConfig())
	require.NoError(t, err)

	dir := t.TempDir()
	w, err := New(dir, q, log)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dropped.md"), []byte("# Hello\n\nBody.\n"), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := q.GetQueueStats(context.Background())
		require.NoError(t, err)
		if stats["pending"] >= 1 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("dropped file was not enqueued")
}

func TestWatcherIgnoresHiddenFiles(t *testing.T) {
	cfg := config.Load()
	cfg.Redis.DB = 6
	cfg.Worker.QueueName = "ingest_watcher_hidden_test"

	q, err := queue.NewRedisQueue(&cfg.Redis, &cfg.Worker)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer q.Close()

	log, err := logger.New(logger.DefaultConfig())
	require.NoError(t, err)

	dir := t.TempDir()
	w, err := New(dir, q, log)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".partial"), []byte("x"), 0o644))

	time.Sleep(2 * settleDelay)
	stats, err := q.GetQueueStats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats["pending"])
}
