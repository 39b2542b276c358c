package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGENTRAG_DATABASE_URL", "postgres://localhost/agentrag")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, CacheBackendPostgres, cfg.CacheBackend)
	assert.Equal(t, 0.96, cfg.CacheThreshold)
	assert.Equal(t, 3, cfg.RetrievalTopK)
	assert.Equal(t, 60*time.Second, cfg.StageTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.StreamPacing)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.False(t, cfg.VerifyStrictParse)
	assert.False(t, cfg.HasOpenAI())
	assert.False(t, cfg.HasS3())
	assert.Equal(t, "none", cfg.Provider())
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("AGENTRAG_DATABASE_URL", "")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AGENTRAG_DATABASE_URL", "postgres://localhost/agentrag")
	t.Setenv("AGENTRAG_CACHE_THRESHOLD", "0.9")
	t.Setenv("AGENTRAG_CACHE_BACKEND", "memory")
	t.Setenv("AGENTRAG_STAGE_TIMEOUT", "5s")
	t.Setenv("AGENTRAG_OPENAI_API_KEY", "sk-test")
	t.Setenv("AGENTRAG_OPENAI_BASE_URL", "http://localhost:11434/v1")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.CacheThreshold)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, 5*time.Second, cfg.StageTimeout)
	assert.True(t, cfg.HasOpenAI())
	assert.Equal(t, "openai-compatible", cfg.Provider())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			CacheBackend:        CacheBackendPostgres,
			CacheThreshold:      0.96,
			RetrievalTopK:       3,
			EmbeddingDimensions: 1536,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.CacheBackend = "redis" }, "CACHE_BACKEND"},
		{"zero threshold", func(c *Config) { c.CacheThreshold = 0 }, "CACHE_THRESHOLD"},
		{"threshold above one", func(c *Config) { c.CacheThreshold = 1.5 }, "CACHE_THRESHOLD"},
		{"zero top k", func(c *Config) { c.RetrievalTopK = 0 }, "RETRIEVAL_TOP_K"},
		{"zero dimensions", func(c *Config) { c.EmbeddingDimensions = 0 }, "EMBEDDING_DIMENSIONS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_HasS3(t *testing.T) {
	cfg := Config{S3Endpoint: "http://localhost:9000", S3AccessKey: "a"}
	assert.False(t, cfg.HasS3())

	cfg.S3SecretKey = "b"
	assert.True(t, cfg.HasS3())
}
