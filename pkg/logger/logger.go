// Package logger wraps zerolog with the configuration surface and
// context plumbing used across the ingest worker.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is used to store correlation IDs in context
type ContextKey string

const (
	CorrelationIDKey ContextKey = "correlation_id"
	JobIDKey         ContextKey = "job_id"
)

// Logger wraps zerolog with additional functionality
type Logger struct {
	*zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string `json:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format     string `json:"format" validate:"oneof=json console"`
	Output     string `json:"output" validate:"oneof=stdout stderr file"`
	Filename   string `json:"filename,omitempty"`
	TimeFormat string `json:"time_format"`
}

// DefaultConfig returns a default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// New creates a new structured logger
func New(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = config.TimeFormat

	var output io.Writer
	switch config.Output {
	case "stderr":
		output = os.Stderr
	case "file":
		if config.Filename == "" {
			config.Filename = "logs/app.log"
		}
		file, err := os.OpenFile(config.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		output = file
	default:
		output = os.Stdout
	}

	var logger zerolog.Logger
	if config.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(output).
			With().
			Timestamp().
			Logger()
	}

	return &Logger{Logger: &logger}, nil
}

// WithCorrelationID adds a fresh correlation ID to the context
func WithCorrelationID(ctx context.Context) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, uuid.New().String())
}

// WithJobID adds a job ID to the context
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// FromContext creates a logger carrying any ids stored in the context
func (l *Logger) FromContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With()

	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok {
		logger = logger.Str("correlation_id", correlationID)
	}
	if jobID, ok := ctx.Value(JobIDKey).(string); ok {
		logger = logger.Str("job_id", jobID)
	}

	contextLogger := logger.Logger()
	return &contextLogger
}

// LogDocumentStart logs when a document enters the pipeline
func (l *Logger) LogDocumentStart(ctx context.Context, filename, fileType string, fileSize int64) {
	l.FromContext(ctx).Info().
		Str("filename", filename).
		Str("file_type", fileType).
		Int64("file_size", fileSize).
		Msg("Document ingestion started")
}

// LogDocumentComplete logs when a document leaves the pipeline
func (l *Logger) LogDocumentComplete(ctx context.Context, filename string, elementCount, chunkCount int, duration time.Duration) {
	l.FromContext(ctx).Info().
		Str("filename", filename).
		Int("elements", elementCount).
		Int("chunks", chunkCount).
		Dur("duration", duration).
		Msg("Document ingestion completed")
}

// LogError logs an error with context fields
func (l *Logger) LogError(ctx context.Context, err error, msg string, fields map[string]interface{}) {
	event := l.FromContext(ctx).Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// Global logger instance
var globalLogger *Logger

// Init initializes the global logger
func Init(config *Config) error {
	logger, err := New(config)
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// Get returns the global logger
func Get() *Logger {
	if globalLogger == nil {
		logger, _ := New(DefaultConfig())
		globalLogger = logger
	}
	return globalLogger
}
