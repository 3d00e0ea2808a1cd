// Package watcher watches a drop directory and enqueues an ingest job
// for every file that lands in it.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ingest-worker/pkg/errors"
	"ingest-worker/pkg/logger"
	"ingest-worker/queue"
	"ingest-worker/worker"
)

// settleDelay is how long a file must go without writes before it is
// considered fully copied and safe to enqueue.
const settleDelay = 500 * time.Millisecond

type Watcher struct {
	dir     string
	queue   *queue.RedisQueue
	log     *logger.Logger
	fs      *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timers  map[string]*time.Timer
	timerMu sync.Mutex
}

func New(dir string, q *queue.RedisQueue, log *logger.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ResourceError, "WATCH_DIR_FAILED", "failed to create watch directory")
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.InternalError, "WATCHER_INIT_FAILED", "failed to create filesystem watcher")
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, errors.Wrap(err, errors.ResourceError, "WATCH_DIR_FAILED", "failed to watch directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:    dir,
		queue:  q,
		log:    log,
		fs:     fs,
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*time.Timer),
	}, nil
}

func (w *Watcher) Start() {
	w.log.FromContext(w.ctx).Info().Str("directory", w.dir).Msg("Watcher starting")
	w.wg.Add(1)
	go w.loop()
}

func (w *Watcher) Stop() {
	w.cancel()
	w.fs.Close()
	w.wg.Wait()

	w.timerMu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.timerMu.Unlock()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.scheduleEnqueue(event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.LogError(w.ctx, err, "Watcher error", nil)
		}
	}
}

// scheduleEnqueue debounces write events so a file is enqueued once,
// after copying finishes.
func (w *Watcher) scheduleEnqueue(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(settleDelay)
		return
	}
	w.timers[path] = time.AfterFunc(settleDelay, func() {
		w.timerMu.Lock()
		delete(w.timers, path)
		w.timerMu.Unlock()
		w.enqueue(path)
	})
}

func (w *Watcher) enqueue(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	job, err := worker.SubmitIngestJob(w.queue, path, "", "")
	if err != nil {
		w.log.LogError(w.ctx, err, "Failed to enqueue watched file", map[string]interface{}{"path": path})
		return
	}

	w.log.FromContext(w.ctx).Info().
		Str("path", path).
		Str("job_id", job.ID).
		Msg("Enqueued watched file")
}
