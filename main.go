package main

import (
	"context"
	"log"
	"mime/multipart"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"ingest-worker/config"
	"ingest-worker/destinations"
	"ingest-worker/embedder"
	"ingest-worker/health"
	"ingest-worker/partition"
	"ingest-worker/pipeline"
	"ingest-worker/pkg/cache"
	"ingest-worker/pkg/logger"
	"ingest-worker/pkg/metrics"
	"ingest-worker/pkg/security"
	"ingest-worker/queue"
	"ingest-worker/watcher"
	"ingest-worker/worker"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Filename:   cfg.Logging.Filename,
		TimeFormat: cfg.Logging.TimeFormat,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLog := logger.Get()

	appLog.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("Starting ingest worker v1.0.0")

	m := metrics.New(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)

	redisQueue, err := queue.NewRedisQueue(&cfg.Redis, &cfg.Worker)
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to initialize Redis queue")
	}
	defer redisQueue.Close()

	emb, err := embedder.New(&cfg.Embedding)
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to initialize embedder")
	}

	ctx := context.Background()
	uploaders, err := destinations.Build(ctx, &cfg.Destinations)
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to initialize destinations")
	}
	defer destinations.CloseAll(uploaders)

	var resultCache *cache.Cache
	if cfg.Cache.Enabled {
		resultCache, err = cache.New(&cfg.Redis, &cfg.Cache, *appLog.Logger)
		if err != nil {
			appLog.Fatal().Err(err).Msg("Failed to initialize result cache")
		}
		defer resultCache.Close()
	}

	pipe := pipeline.New(cfg, emb, uploaders, resultCache, m, appLog)

	manager := worker.NewManager(redisQueue, pipe, m, appLog, &cfg.Worker)
	manager.Start()

	var dirWatcher *watcher.Watcher
	if cfg.Watcher.Enabled {
		dirWatcher, err = watcher.New(cfg.Watcher.Directory, redisQueue, appLog)
		if err != nil {
			appLog.Fatal().Err(err).Str("directory", cfg.Watcher.Directory).Msg("Failed to start directory watcher")
		}
		dirWatcher.Start()
		appLog.Info().Str("directory", cfg.Watcher.Directory).Msg("Watching drop directory")
	}

	healthChecker := health.NewHealthChecker(cfg, redisQueue, uploaders)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check endpoints (for Kubernetes)
	app.Get("/health", healthChecker.HealthHandler)
	app.Get("/health/readiness", healthChecker.ReadinessHandler)
	app.Get("/health/liveness", healthChecker.LivenessHandler)

	if cfg.Metrics.Enabled {
		app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := app.Group("/api/v1")

	if cfg.Security.AuthEnabled {
		tokenManager, err := security.NewTokenManager(&cfg.Security)
		if err != nil {
			appLog.Fatal().Err(err).Msg("Failed to initialize token manager")
		}
		api.Use(tokenManager.Middleware())
	}

	// Asynchronous ingestion
	api.Post("/ingest", handleIngestRequest(redisQueue))

	// Synchronous endpoints
	api.Post("/ingest/sync", handleSyncIngestRequest(pipe))
	api.Post("/partition", handlePartitionRequest())

	// Job status endpoints
	api.Get("/job/:id", handleJobStatus(redisQueue))
	api.Get("/queue/stats", handleQueueStats(redisQueue))
	api.Get("/workers/stats", handleWorkerStats(manager))

	// Full-text search over indexed chunks, available when the bleve
	// destination is enabled
	for _, u := range uploaders {
		if idx, ok := u.(*destinations.Bleve); ok {
			api.Get("/search", handleSearchRequest(idx))
		}
	}

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		appLog.Info().Msg("Gracefully shutting down...")
		if dirWatcher != nil {
			dirWatcher.Stop()
		}
		manager.Stop()
		app.Shutdown()
	}()

	appLog.Info().Str("port", cfg.Server.Port).Msg("Server starting")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		appLog.Fatal().Err(err).Msg("Failed to start server")
	}
}

func handleIngestRequest(redisQueue *queue.RedisQueue) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "File upload error",
				"details": err.Error(),
			})
		}

		inputPath, err := saveUploadedFile(c, fileHeader)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to save uploaded file",
				"details": err.Error(),
			})
		}

		documentID := c.FormValue("document_id")
		strategy := c.FormValue("strategy")

		job, err := worker.SubmitIngestUpload(redisQueue, inputPath, documentID, strategy)
		if err != nil {
			os.Remove(inputPath)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to submit job",
				"details": err.Error(),
			})
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"job_id":           job.ID,
			"status":           "accepted",
			"message":          "Document submitted for ingestion",
			"check_status_url": "/api/v1/job/" + job.ID,
		})
	}
}

func handleSyncIngestRequest(pipe *pipeline.Pipeline) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "File upload error",
				"details": err.Error(),
			})
		}

		inputPath, err := saveUploadedFile(c, fileHeader)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to save uploaded file",
				"details": err.Error(),
			})
		}
		defer os.Remove(inputPath)

		result, err := pipe.IngestFile(c.Context(), inputPath, c.FormValue("document_id"), c.FormValue("strategy"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Ingestion failed",
				"details": err.Error(),
			})
		}

		return c.JSON(result)
	}
}

func handlePartitionRequest() fiber.Handler {
	partitioner := partition.New()
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "File upload error",
				"details": err.Error(),
			})
		}

		inputPath, err := saveUploadedFile(c, fileHeader)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to save uploaded file",
				"details": err.Error(),
			})
		}
		defer os.Remove(inputPath)

		elems, err := partitioner.PartitionFile(inputPath)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":   "Partitioning failed",
				"details": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"elements": elems,
			"count":    len(elems),
		})
	}
}

func handleJobStatus(redisQueue *queue.RedisQueue) fiber.Handler {
	return func(c *fiber.Ctx) error {
		jobID := c.Params("id")
		if jobID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Job ID is required",
			})
		}

		job, err := redisQueue.GetJob(c.Context(), jobID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "Job not found",
				"details": err.Error(),
			})
		}

		return c.JSON(job)
	}
}

func handleQueueStats(redisQueue *queue.RedisQueue) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := redisQueue.GetQueueStats(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to get queue stats",
				"details": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"queue_stats": stats,
			"timestamp":   time.Now(),
		})
	}
}

func handleWorkerStats(manager *worker.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(manager.Stats())
	}
}

func handleSearchRequest(idx *destinations.Bleve) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query parameter 'q' is required",
			})
		}

		limit := 10
		if l := c.Query("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed < 1 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid limit parameter",
				})
			}
			limit = parsed
		}

		result, err := idx.Search(query, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Search failed",
				"details": err.Error(),
			})
		}

		return c.JSON(result)
	}
}

// saveUploadedFile stores an upload under a temp name that keeps the
// original extension so MIME detection can fall back on it.
func saveUploadedFile(c *fiber.Ctx, fileHeader *multipart.FileHeader) (string, error) {
	f, err := os.CreateTemp("", "ingest-*"+filepath.Ext(fileHeader.Filename))
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()

	if err := c.SaveFile(fileHeader, path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":     message,
		"timestamp": time.Now(),
		"path":      c.Path(),
	})
}
