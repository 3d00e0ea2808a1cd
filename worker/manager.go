package worker

import (
	"context"
	"sync"
	"time"

	"ingest-worker/config"
	"ingest-worker/pipeline"
	"ingest-worker/pkg/logger"
	"ingest-worker/pkg/metrics"
	"ingest-worker/queue"
)

// Manager runs a dynamic pool of workers, scaling between the
// configured minimum and maximum based on queue depth.
type Manager struct {
	queue         *queue.RedisQueue
	pipeline      *pipeline.Pipeline
	metrics       *metrics.Metrics
	log           *logger.Logger
	workers       map[string]*Worker
	workersMutex  sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	scalingTicker *time.Ticker

	minWorkers         int
	maxWorkers         int
	scaleUpThreshold   int64
	scaleDownThreshold int64
	checkInterval      time.Duration
	lastScaleTime      time.Time
	scaleDelay         time.Duration
}

func NewManager(q *queue.RedisQueue, p *pipeline.Pipeline, m *metrics.Metrics, log *logger.Logger, cfg *config.WorkerConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	minWorkers := cfg.MinWorkers
	if minWorkers < 1 {
		minWorkers = 1
	}
	maxWorkers := cfg.MaxConcurrency
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	scaleUpThreshold := cfg.ScaleUpThreshold
	if scaleUpThreshold <= 0 {
		scaleUpThreshold = int64(maxWorkers * 2)
	}
	scaleDownThreshold := cfg.ScaleDownThreshold
	if scaleDownThreshold <= 0 {
		scaleDownThreshold = int64(minWorkers)
	}
	checkInterval := cfg.CheckInterval
	if checkInterval <= 0 {
		checkInterval = 10 * time.Second
	}
	scaleDelay := cfg.ScaleDelay
	if scaleDelay <= 0 {
		scaleDelay = 30 * time.Second
	}

	return &Manager{
		queue:              q,
		pipeline:           p,
		metrics:            m,
		log:                log,
		workers:            make(map[string]*Worker),
		ctx:                ctx,
		cancel:             cancel,
		minWorkers:         minWorkers,
		maxWorkers:         maxWorkers,
		scaleUpThreshold:   scaleUpThreshold,
		scaleDownThreshold: scaleDownThreshold,
		checkInterval:      checkInterval,
		scaleDelay:         scaleDelay,
	}
}

// Start brings up the minimum number of workers and begins watching
// queue depth.
func (wm *Manager) Start() {
	wm.log.FromContext(wm.ctx).Info().
		Int("min_workers", wm.minWorkers).
		Int("max_workers", wm.maxWorkers).
		Msg("Worker manager starting")

	for i := 0; i < wm.minWorkers; i++ {
		wm.addWorker()
	}

	wm.scalingTicker = time.NewTicker(wm.checkInterval)
	wm.wg.Add(1)
	go wm.scalingMonitor()
}

// Stop shuts down the scaling monitor and every worker, waiting for
// in-flight jobs to finish.
func (wm *Manager) Stop() {
	if wm.scalingTicker != nil {
		wm.scalingTicker.Stop()
	}
	wm.cancel()
	wm.wg.Wait()

	wm.workersMutex.Lock()
	var workerWg sync.WaitGroup
	for _, w := range wm.workers {
		workerWg.Add(1)
		go func(w *Worker) {
			defer workerWg.Done()
			w.Stop()
		}(w)
	}
	wm.workersMutex.Unlock()
	workerWg.Wait()

	wm.workersMutex.Lock()
	wm.workers = make(map[string]*Worker)
	wm.workersMutex.Unlock()

	wm.log.FromContext(context.Background()).Info().Msg("Worker manager stopped")
}

func (wm *Manager) addWorker() {
	wm.workersMutex.Lock()
	defer wm.workersMutex.Unlock()

	if len(wm.workers) >= wm.maxWorkers {
		return
	}

	w := NewWorker(wm.queue, wm.pipeline, wm.metrics, wm.log)
	wm.workers[w.id] = w
	w.Start()
}

func (wm *Manager) removeWorker() {
	wm.workersMutex.Lock()
	defer wm.workersMutex.Unlock()

	if len(wm.workers) <= wm.minWorkers {
		return
	}

	for id, w := range wm.workers {
		delete(wm.workers, id)
		go w.Stop()
		return
	}
}

func (wm *Manager) scalingMonitor() {
	defer wm.wg.Done()

	for {
		select {
		case <-wm.ctx.Done():
			return
		case <-wm.scalingTicker.C:
			wm.checkAndScale()
		}
	}
}

func (wm *Manager) checkAndScale() {
	stats, err := wm.queue.GetQueueStats(wm.ctx)
	if err != nil {
		wm.log.LogError(wm.ctx, err, "Failed to get queue stats", nil)
		return
	}

	queueLength := stats["pending"]
	wm.metrics.QueueSize.WithLabelValues("ingest", "pending").Set(float64(queueLength))

	if time.Since(wm.lastScaleTime) < wm.scaleDelay {
		return
	}

	currentWorkers := wm.WorkerCount()

	if queueLength > wm.scaleUpThreshold && currentWorkers < wm.maxWorkers {
		wm.addWorker()
		wm.lastScaleTime = time.Now()
		wm.log.FromContext(wm.ctx).Info().
			Int64("queue_length", queueLength).
			Int("workers", currentWorkers+1).
			Msg("Scaled up")
		return
	}

	if queueLength < wm.scaleDownThreshold && currentWorkers > wm.minWorkers {
		wm.removeWorker()
		wm.lastScaleTime = time.Now()
		wm.log.FromContext(wm.ctx).Info().
			Int64("queue_length", queueLength).
			Int("workers", currentWorkers-1).
			Msg("Scaled down")
	}
}

// WorkerCount returns the current pool size.
func (wm *Manager) WorkerCount() int {
	wm.workersMutex.RLock()
	defer wm.workersMutex.RUnlock()
	return len(wm.workers)
}

// Stats reports the pool's configuration and current size.
func (wm *Manager) Stats() map[string]interface{} {
	wm.workersMutex.RLock()
	defer wm.workersMutex.RUnlock()

	return map[string]interface{}{
		"active_workers":       len(wm.workers),
		"min_workers":          wm.minWorkers,
		"max_workers":          wm.maxWorkers,
		"scale_up_threshold":   wm.scaleUpThreshold,
		"scale_down_threshold": wm.scaleDownThreshold,
		"check_interval":       wm.checkInterval.String(),
		"scale_delay":          wm.scaleDelay.String(),
	}
}
