// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Storage settings.
	DBPath string // SQLite database file for the conversation log and state snapshots.

	// Qdrant settings.
	QdrantURL        string // empty disables vector indexing and semantic memory
	QdrantAPIKey     string
	QdrantDistance   string // "cosine", "euclidean", or "dot".
	ImageCollection  string
	ImageDims        int // Must match the image embedding model's output.
	MemoryCollection string
	MemoryDims       int // Must match the text embedding model's output.

	// MinIO settings.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Completion provider settings.
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string
	LLMTimeout time.Duration
	LLMReferer string // Optional attribution headers some gateways require.
	LLMTitle   string

	// Image generation settings.
	ImageAPIURL  string
	ImageAPIKey  string
	ImageModel   string
	ImageTimeout time.Duration
	ImageWidth   int
	ImageHeight  int

	// Embedding sidecar settings.
	EmbeddingProvider string // "auto", "http", or "noop"
	EmbeddingURL      string

	// Persona settings.
	PersonaFile string // Optional YAML file; built-in defaults apply when empty.

	// Pipeline settings.
	HistoryLimit     int
	MemoryLimit      int
	ImageConcurrency int

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		DBPath:            envStr("KOKORO_DB_PATH", "kokoro.db"),
		QdrantURL:         envStr("QDRANT_URL", ""),
		QdrantAPIKey:      envStr("QDRANT_API_KEY", ""),
		QdrantDistance:    envStr("KOKORO_QDRANT_DISTANCE", "cosine"),
		ImageCollection:   envStr("KOKORO_IMAGE_COLLECTION", "kokoro_images"),
		ImageDims:         envInt("KOKORO_IMAGE_DIMS", 512),
		MemoryCollection:  envStr("KOKORO_MEMORY_COLLECTION", "kokoro_memories"),
		MemoryDims:        envInt("KOKORO_MEMORY_DIMS", 768),
		MinioEndpoint:     envStr("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:    envStr("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:    envStr("MINIO_SECRET_KEY", ""),
		MinioBucket:       envStr("KOKORO_BUCKET", "kokoro-images"),
		MinioUseSSL:       envBool("MINIO_USE_SSL", false),
		LLMAPIKey:         envStr("OPENROUTER_API_KEY", ""),
		LLMBaseURL:        envStr("KOKORO_LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModel:          envStr("KOKORO_LLM_MODEL", "anthropic/claude-3.5-sonnet"),
		LLMTimeout:        envDuration("KOKORO_LLM_TIMEOUT", 60*time.Second),
		LLMReferer:        envStr("KOKORO_LLM_REFERER", ""),
		LLMTitle:          envStr("KOKORO_LLM_TITLE", "kokoro"),
		ImageAPIURL:       envStr("KOKORO_IMAGE_API_URL", ""),
		ImageAPIKey:       envStr("KOKORO_IMAGE_API_KEY", ""),
		ImageModel:        envStr("KOKORO_IMAGE_MODEL", ""),
		ImageTimeout:      envDuration("KOKORO_IMAGE_TIMEOUT", 90*time.Second),
		ImageWidth:        envInt("KOKORO_IMAGE_WIDTH", 512),
		ImageHeight:       envInt("KOKORO_IMAGE_HEIGHT", 512),
		EmbeddingProvider: envStr("KOKORO_EMBEDDING_PROVIDER", "auto"),
		EmbeddingURL:      envStr("KOKORO_EMBEDDING_URL", ""),
		PersonaFile:       envStr("KOKORO_PERSONA_FILE", ""),
		HistoryLimit:      envInt("KOKORO_HISTORY_LIMIT", 10),
		MemoryLimit:       envInt("KOKORO_MEMORY_LIMIT", 5),
		ImageConcurrency:  envInt("KOKORO_IMAGE_CONCURRENCY", 3),
		LogLevel:          envStr("KOKORO_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: KOKORO_DB_PATH is required")
	}
	if c.ImageDims <= 0 {
		return fmt.Errorf("config: KOKORO_IMAGE_DIMS must be positive")
	}
	if c.MemoryDims <= 0 {
		return fmt.Errorf("config: KOKORO_MEMORY_DIMS must be positive")
	}
	switch c.QdrantDistance {
	case "cosine", "euclidean", "dot":
	default:
		return fmt.Errorf("config: KOKORO_QDRANT_DISTANCE must be cosine, euclidean, or dot, got %q", c.QdrantDistance)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("config: KOKORO_HISTORY_LIMIT must be positive")
	}
	if c.ImageConcurrency <= 0 {
		return fmt.Errorf("config: KOKORO_IMAGE_CONCURRENCY must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
