// Package queue implements the Redis-backed job queue that feeds the
// ingest workers. Jobs are pushed onto a list and popped with BRPOP;
// job state lives under a per-job key with a TTL so callers can poll
// status after submission.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ingest-worker/config"
	"ingest-worker/pkg/errors"
)

// jobTTL bounds how long finished job state stays queryable.
const jobTTL = 24 * time.Hour

type RedisQueue struct {
	client *redis.Client
	config *config.WorkerConfig
}

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// JobTypeIngest runs the full pipeline: partition, chunk, embed,
// upload.
const JobTypeIngest = "document_ingest"

// IngestPayload describes one document to ingest. A non-empty Strategy
// overrides the configured chunking strategy for this document only.
// CleanupInput marks InputPath as worker-owned: the worker removes the
// file once the job reaches a terminal status. Files submitted from the
// CLI or the watch directory stay in place.
type IngestPayload struct {
	DocumentID   string `json:"document_id"`
	InputPath    string `json:"input_path"`
	Filename     string `json:"filename,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
	CleanupInput bool   `json:"cleanup_input,omitempty"`
}

type JobResult struct {
	DocumentID   string   `json:"document_id"`
	ElementCount int      `json:"element_count"`
	ChunkCount   int      `json:"chunk_count"`
	Destinations []string `json:"destinations,omitempty"`
	ProcessedAt  string   `json:"processed_at"`
}

type Job struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Status      JobStatus     `json:"status"`
	Payload     IngestPayload `json:"payload"`
	Result      *JobResult    `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	RetryCount  int           `json:"retry_count"`
	MaxRetries  int           `json:"max_retries"`
}

func NewRedisQueue(redisConfig *config.RedisConfig, workerConfig *config.WorkerConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", redisConfig.Host, redisConfig.Port),
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, errors.NetworkError, "REDIS_CONNECT_FAILED", "redis connection failed")
	}

	return &RedisQueue{
		client: client,
		config: workerConfig,
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	job.Status = StatusPending
	job.CreatedAt = time.Now()
	job.UpdatedAt = time.Now()
	job.MaxRetries = q.config.RetryCount

	jobData, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, errors.InternalError, "JOB_MARSHAL_FAILED", "failed to marshal job")
	}

	if err := q.client.LPush(ctx, q.config.QueueName, jobData).Err(); err != nil {
		return errors.Wrap(err, errors.NetworkError, "JOB_ENQUEUE_FAILED", "failed to enqueue job")
	}

	if err := q.client.Set(ctx, jobKey(job.ID), jobData, jobTTL).Err(); err != nil {
		return errors.Wrap(err, errors.NetworkError, "JOB_STORE_FAILED", "failed to store job details")
	}

	return nil
}

// Dequeue blocks for up to five seconds waiting for a job, so callers
// can poll in a loop and still observe context cancellation. A nil
// error with redis.Nil sentinel means the queue was empty.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BRPop(ctx, 5*time.Second, q.config.QueueName).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.NetworkError, "JOB_DEQUEUE_FAILED", "failed to dequeue job")
	}

	if len(result) < 2 {
		return nil, errors.NewQueueError("invalid queue result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, errors.Wrap(err, errors.InternalError, "JOB_UNMARSHAL_FAILED", "failed to unmarshal job")
	}

	job.Status = StatusProcessing
	job.UpdatedAt = time.Now()

	if err := q.updateJob(ctx, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func (q *RedisQueue) CompleteJob(ctx context.Context, jobID string, result *JobResult) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	now := time.Now()
	job.Status = StatusCompleted
	job.Result = result
	job.UpdatedAt = now
	job.CompletedAt = &now

	return q.updateJob(ctx, job)
}

// FailJob records a failure and re-enqueues the job after the retry
// delay until the retry budget is exhausted.
func (q *RedisQueue) FailJob(ctx context.Context, jobID string, errorMsg string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.RetryCount++
	job.Error = errorMsg
	job.UpdatedAt = time.Now()

	if job.RetryCount >= job.MaxRetries {
		job.Status = StatusFailed
		return q.updateJob(ctx, job)
	}

	job.Status = StatusPending
	if err := q.updateJob(ctx, job); err != nil {
		return err
	}

	go func() {
		time.Sleep(q.config.RetryDelay)
		q.Enqueue(context.Background(), job)
	}()

	return nil
}

func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	jobData, err := q.client.Get(ctx, jobKey(jobID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NewNotFoundError("job " + jobID)
		}
		return nil, errors.Wrap(err, errors.NetworkError, "JOB_GET_FAILED", "failed to get job")
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return nil, errors.Wrap(err, errors.InternalError, "JOB_UNMARSHAL_FAILED", "failed to unmarshal job")
	}

	return &job, nil
}

func (q *RedisQueue) GetQueueStats(ctx context.Context) (map[string]int64, error) {
	queueLength, err := q.client.LLen(ctx, q.config.QueueName).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.NetworkError, "QUEUE_STATS_FAILED", "failed to get queue length")
	}

	return map[string]int64{
		"pending": queueLength,
	}, nil
}

func (q *RedisQueue) updateJob(ctx context.Context, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, errors.InternalError, "JOB_MARSHAL_FAILED", "failed to marshal job")
	}

	if err := q.client.Set(ctx, jobKey(job.ID), jobData, jobTTL).Err(); err != nil {
		return errors.Wrap(err, errors.NetworkError, "JOB_STORE_FAILED", "failed to update job")
	}

	return nil
}

func jobKey(jobID string) string {
	return "job:" + jobID
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
