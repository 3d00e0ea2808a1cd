package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the ingest worker
type Config struct {
	Server       ServerConfig
	Redis        RedisConfig
	Worker       WorkerConfig
	Chunking     ChunkingConfig
	Embedding    EmbeddingConfig
	Destinations DestinationsConfig
	Cache        CacheConfig
	Watcher      WatcherConfig
	Logging      LoggingConfig
	Metrics      MetricsConfig
	Security     SecurityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Environment  string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// WorkerConfig holds worker pool configuration. The pool scales
// between MinWorkers and MaxConcurrency based on queue depth.
type WorkerConfig struct {
	MinWorkers         int
	MaxConcurrency     int
	QueueName          string
	RetryCount         int
	RetryDelay         time.Duration
	ScaleUpThreshold   int64
	ScaleDownThreshold int64
	CheckInterval      time.Duration
	ScaleDelay         time.Duration
}

// ChunkingConfig holds the chunking engine defaults. An empty strategy
// disables chunking so partitioned elements pass through unchanged.
type ChunkingConfig struct {
	Strategy               string `json:"chunking_strategy" validate:"omitempty,oneof=basic by_title"`
	MaxCharacters          int    `json:"max_characters" validate:"gt=0"`
	NewAfterNChars         int    `json:"new_after_n_chars" validate:"gte=0"`
	CombineTextUnderNChars int    `json:"combine_text_under_n_chars" validate:"gte=0"`
	MultipageSections      bool   `json:"multipage_sections"`
	IncludeOrigElements    bool   `json:"include_orig_elements"`
	UniqueIDs              bool   `json:"unique_ids"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Enabled bool
	Model   string
	APIKey  string
	BaseURL string
}

// DestinationsConfig selects where finished chunks are shipped
type DestinationsConfig struct {
	Local    LocalDestinationConfig
	Postgres PostgresDestinationConfig
	Bleve    BleveDestinationConfig
}

// LocalDestinationConfig writes chunk JSON files to a directory
type LocalDestinationConfig struct {
	Enabled   bool
	Directory string
}

// PostgresDestinationConfig writes chunks (and embeddings) to a
// pgvector-enabled table
type PostgresDestinationConfig struct {
	Enabled bool
	URL     string
	Table   string
}

// BleveDestinationConfig indexes chunk text in a local bleve index
type BleveDestinationConfig struct {
	Enabled bool
	Path    string
}

// CacheConfig holds the ingest result cache configuration. When
// enabled, documents whose content and chunking settings are unchanged
// are not reprocessed until the TTL expires.
type CacheConfig struct {
	Enabled   bool
	KeyPrefix string
	TTL       time.Duration
}

// WatcherConfig holds the drop-directory watcher configuration
type WatcherConfig struct {
	Enabled   bool
	Directory string
}

// LoggingConfig holds structured logging configuration
type LoggingConfig struct {
	Level      string `json:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format     string `json:"format" validate:"oneof=json console"`
	Output     string `json:"output" validate:"oneof=stdout stderr file"`
	Filename   string `json:"filename,omitempty"`
	TimeFormat string `json:"time_format"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
}

// SecurityConfig holds API security configuration
type SecurityConfig struct {
	AuthEnabled bool          `json:"auth_enabled"`
	JWTSecret   string        `json:"jwt_secret"`
	JWTIssuer   string        `json:"jwt_issuer"`
	JWTExpiry   time.Duration `json:"jwt_expiry"`
}

// Load reads configuration from environment variables and returns Config
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "3001"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Worker: WorkerConfig{
			MinWorkers:         getIntEnv("WORKER_MIN_WORKERS", 1),
			MaxConcurrency:     getIntEnv("WORKER_MAX_CONCURRENCY", 4),
			QueueName:          getEnv("WORKER_QUEUE_NAME", "ingest_queue"),
			RetryCount:         getIntEnv("WORKER_RETRY_COUNT", 3),
			RetryDelay:         getDurationEnv("WORKER_RETRY_DELAY", 5*time.Second),
			ScaleUpThreshold:   int64(getIntEnv("WORKER_SCALE_UP_THRESHOLD", 0)),
			ScaleDownThreshold: int64(getIntEnv("WORKER_SCALE_DOWN_THRESHOLD", 0)),
			CheckInterval:      getDurationEnv("WORKER_CHECK_INTERVAL", 10*time.Second),
			ScaleDelay:         getDurationEnv("WORKER_SCALE_DELAY", 30*time.Second),
		},
		Chunking: ChunkingConfig{
			Strategy:               getEnv("CHUNKING_STRATEGY", ""),
			MaxCharacters:          getIntEnv("CHUNKING_MAX_CHARACTERS", 1500),
			NewAfterNChars:         getIntEnv("CHUNKING_NEW_AFTER_N_CHARS", 0),
			CombineTextUnderNChars: getIntEnv("CHUNKING_COMBINE_TEXT_UNDER_N_CHARS", 500),
			MultipageSections:      getBoolEnv("CHUNKING_MULTIPAGE_SECTIONS", true),
			IncludeOrigElements:    getBoolEnv("CHUNKING_INCLUDE_ORIG_ELEMENTS", false),
			UniqueIDs:              getBoolEnv("CHUNKING_UNIQUE_IDS", false),
		},
		Embedding: EmbeddingConfig{
			Enabled: getBoolEnv("EMBEDDING_ENABLED", false),
			Model:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			APIKey:  getEnv("EMBEDDING_API_KEY", ""),
			BaseURL: getEnv("EMBEDDING_BASE_URL", ""),
		},
		Destinations: DestinationsConfig{
			Local: LocalDestinationConfig{
				Enabled:   getBoolEnv("DEST_LOCAL_ENABLED", true),
				Directory: getEnv("DEST_LOCAL_DIRECTORY", "./output"),
			},
			Postgres: PostgresDestinationConfig{
				Enabled: getBoolEnv("DEST_POSTGRES_ENABLED", false),
				URL:     getEnv("DEST_POSTGRES_URL", ""),
				Table:   getEnv("DEST_POSTGRES_TABLE", "ingest_chunks"),
			},
			Bleve: BleveDestinationConfig{
				Enabled: getBoolEnv("DEST_BLEVE_ENABLED", false),
				Path:    getEnv("DEST_BLEVE_PATH", "./chunks.bleve"),
			},
		},
		Cache: CacheConfig{
			Enabled:   getBoolEnv("CACHE_ENABLED", false),
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "ingest:cache"),
			TTL:       getDurationEnv("CACHE_TTL", 24*time.Hour),
		},
		Watcher: WatcherConfig{
			Enabled:   getBoolEnv("WATCHER_ENABLED", false),
			Directory: getEnv("WATCHER_DIRECTORY", "./inbox"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			Filename:   getEnv("LOG_FILENAME", "logs/app.log"),
			TimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolEnv("METRICS_ENABLED", true),
			Path:      getEnv("METRICS_PATH", "/metrics"),
			Namespace: getEnv("METRICS_NAMESPACE", "ingest"),
			Subsystem: getEnv("METRICS_SUBSYSTEM", "worker"),
		},
		Security: SecurityConfig{
			AuthEnabled: getBoolEnv("SECURITY_AUTH_ENABLED", false),
			JWTSecret:   getEnv("SECURITY_JWT_SECRET", ""),
			JWTIssuer:   getEnv("SECURITY_JWT_ISSUER", "ingest-worker"),
			JWTExpiry:   getDurationEnv("SECURITY_JWT_EXPIRY", 24*time.Hour),
		},
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// GetRedisURL returns the Redis connection address
func (c *Config) GetRedisURL() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c.Chunking); err != nil {
		return err
	}
	if err := validate.Struct(c.Logging); err != nil {
		return err
	}
	return nil
}
