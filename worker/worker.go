// Package worker consumes ingest jobs from the queue and runs them
// through the pipeline. Workers are individually startable and
// stoppable; the manager scales the pool with queue depth.
package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"ingest-worker/pipeline"
	"ingest-worker/pkg/logger"
	"ingest-worker/pkg/metrics"
	"ingest-worker/queue"
)

type Worker struct {
	id           string
	queue        *queue.RedisQueue
	pipeline     *pipeline.Pipeline
	metrics      *metrics.Metrics
	log          *logger.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	isRunning    bool
	runningMutex sync.RWMutex
}

func NewWorker(q *queue.RedisQueue, p *pipeline.Pipeline, m *metrics.Metrics, log *logger.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:       uuid.New().String(),
		queue:    q,
		pipeline: p,
		metrics:  m,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (w *Worker) Start() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if w.isRunning {
		return
	}

	w.log.FromContext(w.ctx).Info().Str("worker_id", w.id).Msg("Worker starting")
	w.isRunning = true
	w.metrics.ActiveWorkers.Inc()

	w.wg.Add(1)
	go w.workerRoutine()
}

func (w *Worker) Stop() {
	w.runningMutex.Lock()
	if !w.isRunning {
		w.runningMutex.Unlock()
		return
	}
	w.isRunning = false
	w.runningMutex.Unlock()

	w.cancel()
	w.wg.Wait()
	w.metrics.ActiveWorkers.Dec()
	w.log.FromContext(context.Background()).Info().Str("worker_id", w.id).Msg("Worker stopped")
}

func (w *Worker) IsRunning() bool {
	w.runningMutex.RLock()
	defer w.runningMutex.RUnlock()
	return w.isRunning
}

func (w *Worker) workerRoutine() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(w.ctx)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			// redis.Nil means the queue was empty during the poll window.
			if err.Error() == "redis: nil" {
				continue
			}
			w.log.LogError(w.ctx, err, "Failed to dequeue job", map[string]interface{}{"worker_id": w.id})
			time.Sleep(1 * time.Second)
			continue
		}

		w.processJob(job)
	}
}

func (w *Worker) processJob(job *queue.Job) {
	ctx := logger.WithJobID(logger.WithCorrelationID(context.Background()), job.ID)
	log := w.log.FromContext(ctx)

	log.Info().
		Str("worker_id", w.id).
		Str("job_id", job.ID).
		Str("job_type", job.Type).
		Str("input_path", job.Payload.InputPath).
		Msg("Processing job")

	if job.Type != queue.JobTypeIngest {
		msg := "unknown job type: " + job.Type
		w.queue.FailJob(ctx, job.ID, msg)
		w.metrics.QueueItemsFailedTotal.WithLabelValues(job.Type).Inc()
		log.Error().Str("job_id", job.ID).Msg(msg)
		w.cleanupInputIfDone(ctx, job)
		return
	}

	startTime := time.Now()

	result, err := w.pipeline.IngestFile(ctx, job.Payload.InputPath, job.Payload.DocumentID, job.Payload.Strategy)
	if err != nil {
		w.queue.FailJob(ctx, job.ID, err.Error())
		w.metrics.QueueItemsFailedTotal.WithLabelValues(job.Type).Inc()
		w.log.LogError(ctx, err, "Ingest job failed", map[string]interface{}{
			"job_id":     job.ID,
			"input_path": job.Payload.InputPath,
		})
		w.cleanupInputIfDone(ctx, job)
		return
	}

	jobResult := &queue.JobResult{
		DocumentID:   result.DocumentID,
		ElementCount: result.ElementCount,
		ChunkCount:   result.ChunkCount,
		Destinations: result.Destinations,
		ProcessedAt:  time.Now().Format(time.RFC3339),
	}
	if err := w.queue.CompleteJob(ctx, job.ID, jobResult); err != nil {
		w.log.LogError(ctx, err, "Failed to mark job complete", map[string]interface{}{"job_id": job.ID})
		return
	}
	w.removeInput(ctx, job)

	w.metrics.QueueItemsProcessedTotal.WithLabelValues(job.Type).Inc()
	log.Info().
		Str("job_id", job.ID).
		Int("chunks", result.ChunkCount).
		Dur("duration", time.Since(startTime)).
		Msg("Job completed")
}

// cleanupInputIfDone removes a worker-owned input after a failure, but
// only once retries are exhausted. The job passed in still carries the
// pre-failure retry count; FailJob has already incremented it in redis.
func (w *Worker) cleanupInputIfDone(ctx context.Context, job *queue.Job) {
	if job.RetryCount+1 < job.MaxRetries {
		return
	}
	w.removeInput(ctx, job)
}

func (w *Worker) removeInput(ctx context.Context, job *queue.Job) {
	if !job.Payload.CleanupInput {
		return
	}
	if err := os.Remove(job.Payload.InputPath); err != nil && !os.IsNotExist(err) {
		w.log.FromContext(ctx).Warn().
			Err(err).
			Str("input_path", job.Payload.InputPath).
			Msg("Failed to remove input file")
	}
}

// SubmitIngestJob enqueues one document for ingestion and returns the
// queued job so callers can poll its status. The input file is left in
// place after processing.
func SubmitIngestJob(q *queue.RedisQueue, inputPath, documentID, strategy string) (*queue.Job, error) {
	return submitIngest(q, inputPath, documentID, strategy, false)
}

// SubmitIngestUpload is SubmitIngestJob for server-saved uploads. The
// worker owns the input file and removes it once the job reaches a
// terminal status.
func SubmitIngestUpload(q *queue.RedisQueue, inputPath, documentID, strategy string) (*queue.Job, error) {
	return submitIngest(q, inputPath, documentID, strategy, true)
}

func submitIngest(q *queue.RedisQueue, inputPath, documentID, strategy string, cleanup bool) (*queue.Job, error) {
	job := &queue.Job{
		ID:   uuid.New().String(),
		Type: queue.JobTypeIngest,
		Payload: queue.IngestPayload{
			DocumentID:   documentID,
			InputPath:    inputPath,
			Filename:     filepath.Base(inputPath),
			Strategy:     strategy,
			CleanupInput: cleanup,
		},
	}

	if err := q.Enqueue(context.Background(), job); err != nil {
		return nil, err
	}
	return job, nil
}
