package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	CacheBackendPostgres = "postgres"
	CacheBackendMemory   = "memory"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	OpenAIRPS           float64 `envconfig:"OPENAI_RPS" default:"0"`
	ChatModel           string  `envconfig:"CHAT_MODEL" default:"gpt-4o"`
	FastChatModel       string  `envconfig:"FAST_CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	CacheBackend   string  `envconfig:"CACHE_BACKEND" default:"postgres"`
	CacheThreshold float64 `envconfig:"CACHE_THRESHOLD" default:"0.96"`

	RetrievalTopK     int           `envconfig:"RETRIEVAL_TOP_K" default:"3"`
	StageTimeout      time.Duration `envconfig:"STAGE_TIMEOUT" default:"60s"`
	VerifyStrictParse bool          `envconfig:"VERIFY_STRICT_PARSE" default:"false"`
	StreamPacing      time.Duration `envconfig:"STREAM_PACING" default:"50ms"`

	DocsDir           string        `envconfig:"DOCS_DIR" default:"data/documents"`
	IndexPollInterval time.Duration `envconfig:"INDEX_POLL_INTERVAL" default:"0s"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"agentrag-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("AGENTRAG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case CacheBackendPostgres, CacheBackendMemory:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q (expected %q or %q)", c.CacheBackend, CacheBackendPostgres, CacheBackendMemory)
	}
	if c.CacheThreshold <= 0 || c.CacheThreshold > 1 {
		return fmt.Errorf("CACHE_THRESHOLD must be in (0, 1], got %v", c.CacheThreshold)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", c.RetrievalTopK)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

// Provider names the completion backend for the health endpoint.
func (c *Config) Provider() string {
	if !c.HasOpenAI() {
		return "none"
	}
	if c.OpenAIBaseURL != "" {
		return "openai-compatible"
	}
	return "openai"
}
