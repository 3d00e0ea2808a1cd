package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Ingest pipeline metrics
	DocumentsIngestedTotal   prometheus.CounterVec
	DocumentIngestDuration   prometheus.HistogramVec
	DocumentIngestErrors     prometheus.CounterVec
	ElementsPartitionedTotal prometheus.CounterVec

	// Chunking metrics
	ChunksCreatedTotal prometheus.CounterVec
	ChunkSizeBytes     prometheus.HistogramVec
	ChunkingDuration   prometheus.HistogramVec

	// Embedding and destination metrics
	EmbeddingsCreatedTotal prometheus.CounterVec
	ChunksUploadedTotal    prometheus.CounterVec
	UploadErrors           prometheus.CounterVec

	// Queue metrics
	QueueSize                prometheus.GaugeVec
	QueueItemsProcessedTotal prometheus.CounterVec
	QueueItemsFailedTotal    prometheus.CounterVec

	// System metrics
	ActiveWorkers prometheus.Gauge
}

// New creates a new metrics instance
func New(namespace, subsystem string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		DocumentsIngestedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "documents_ingested_total",
				Help:      "Total number of documents run through the pipeline",
			},
			[]string{"file_type", "status"},
		),

		DocumentIngestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "document_ingest_duration_seconds",
				Help:      "Duration of document ingestion in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"file_type", "stage"},
		),

		DocumentIngestErrors: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "document_ingest_errors_total",
				Help:      "Total number of document ingestion errors",
			},
			[]string{"file_type", "stage"},
		),

		ElementsPartitionedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "elements_partitioned_total",
				Help:      "Total number of elements produced by partitioning",
			},
			[]string{"element_type"},
		),

		ChunksCreatedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "chunks_created_total",
				Help:      "Total number of chunks created",
			},
			[]string{"chunk_type", "strategy"},
		),

		ChunkSizeBytes: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "chunk_size_bytes",
				Help:      "Size of created chunks in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
			},
			[]string{"chunk_type"},
		),

		ChunkingDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "chunking_duration_seconds",
				Help:      "Duration of the chunking stage in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),

		EmbeddingsCreatedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "embeddings_created_total",
				Help:      "Total number of chunk embeddings computed",
			},
			[]string{"provider"},
		),

		ChunksUploadedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "chunks_uploaded_total",
				Help:      "Total number of chunks shipped to destinations",
			},
			[]string{"destination"},
		),

		UploadErrors: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "upload_errors_total",
				Help:      "Total number of destination upload errors",
			},
			[]string{"destination"},
		),

		QueueSize: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "queue_size",
				Help:      "Current number of jobs in the queue",
			},
			[]string{"queue", "status"},
		),

		QueueItemsProcessedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "queue_items_processed_total",
				Help:      "Total number of queue jobs processed",
			},
			[]string{"job_type"},
		),

		QueueItemsFailedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "queue_items_failed_total",
				Help:      "Total number of queue jobs that failed",
			},
			[]string{"job_type"},
		),

		ActiveWorkers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "active_workers",
				Help:      "Current number of running workers",
			},
		),
	}
}

// ObserveHTTPRequest records one HTTP request
func (m *Metrics) ObserveHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveChunks records the chunks produced by one chunking invocation
func (m *Metrics) ObserveChunks(strategy string, chunkTypes []string, sizes []int, duration time.Duration) {
	for i, t := range chunkTypes {
		m.ChunksCreatedTotal.WithLabelValues(t, strategy).Inc()
		if i < len(sizes) {
			m.ChunkSizeBytes.WithLabelValues(t).Observe(float64(sizes[i]))
		}
	}
	m.ChunkingDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}
