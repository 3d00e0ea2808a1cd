// Package health reports liveness and readiness of the ingest worker
// and its dependencies.
package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"ingest-worker/config"
	"ingest-worker/destinations"
	"ingest-worker/queue"
)

type HealthChecker struct {
	config    *config.Config
	queue     *queue.RedisQueue
	uploaders []destinations.Uploader
}

type HealthStatus struct {
	Status       string                 `json:"status"`
	Version      string                 `json:"version"`
	Timestamp    time.Time              `json:"timestamp"`
	Uptime       string                 `json:"uptime"`
	Destinations map[string]ServiceInfo `json:"destinations"`
	Queue        QueueInfo              `json:"queue"`
	System       SystemInfo             `json:"system"`
}

type ServiceInfo struct {
	Status    string `json:"status"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type QueueInfo struct {
	Connected bool             `json:"connected"`
	Stats     map[string]int64 `json:"stats"`
	Error     string           `json:"error,omitempty"`
}

type SystemInfo struct {
	Environment      string `json:"environment"`
	ChunkingStrategy string `json:"chunking_strategy"`
	EmbeddingEnabled bool   `json:"embedding_enabled"`
}

var startTime = time.Now()

func NewHealthChecker(config *config.Config, queue *queue.RedisQueue, uploaders []destinations.Uploader) *HealthChecker {
	return &HealthChecker{
		config:    config,
		queue:     queue,
		uploaders: uploaders,
	}
}

func (h *HealthChecker) GetHealthStatus() HealthStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:       "healthy",
		Version:      "1.0.0",
		Timestamp:    time.Now(),
		Uptime:       time.Since(startTime).String(),
		Destinations: make(map[string]ServiceInfo),
		System: SystemInfo{
			Environment:      h.config.Server.Environment,
			ChunkingStrategy: h.config.Chunking.Strategy,
			EmbeddingEnabled: h.config.Embedding.Enabled,
		},
	}

	h.checkDestinations(ctx, &status)
	h.checkQueue(ctx, &status)

	for _, dest := range status.Destinations {
		if !dest.Available {
			status.Status = "degraded"
		}
	}
	if !status.Queue.Connected {
		status.Status = "unhealthy"
	}

	return status
}

func (h *HealthChecker) checkDestinations(ctx context.Context, status *HealthStatus) {
	for _, u := range h.uploaders {
		if err := u.Ping(ctx); err != nil {
			status.Destinations[u.Name()] = ServiceInfo{
				Status:    "unavailable",
				Available: false,
				Error:     err.Error(),
			}
			continue
		}
		status.Destinations[u.Name()] = ServiceInfo{
			Status:    "available",
			Available: true,
		}
	}
}

func (h *HealthChecker) checkQueue(ctx context.Context, status *HealthStatus) {
	if h.queue == nil {
		status.Queue = QueueInfo{
			Connected: false,
			Error:     "Queue not initialized",
		}
		return
	}

	queueCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	stats, err := h.queue.GetQueueStats(queueCtx)
	if err != nil {
		status.Queue = QueueInfo{
			Connected: false,
			Error:     err.Error(),
		}
		return
	}

	status.Queue = QueueInfo{
		Connected: true,
		Stats:     stats,
	}
}

// Fiber handlers

func (h *HealthChecker) HealthHandler(c *fiber.Ctx) error {
	health := h.GetHealthStatus()

	var statusCode int
	switch health.Status {
	case "healthy", "degraded":
		statusCode = fiber.StatusOK
	case "unhealthy":
		statusCode = fiber.StatusServiceUnavailable
	default:
		statusCode = fiber.StatusInternalServerError
	}

	return c.Status(statusCode).JSON(health)
}

func (h *HealthChecker) ReadinessHandler(c *fiber.Ctx) error {
	health := h.GetHealthStatus()

	if !health.Queue.Connected {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
			"reason": "Queue not available",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

func (h *HealthChecker) LivenessHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}
