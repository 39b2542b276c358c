package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/agentrag/internal/cache"
	"github.com/cloo-solutions/agentrag/internal/config"
	"github.com/cloo-solutions/agentrag/internal/database"
	"github.com/cloo-solutions/agentrag/internal/logging"
	"github.com/cloo-solutions/agentrag/internal/metrics"
	"github.com/cloo-solutions/agentrag/internal/openai"
	"github.com/cloo-solutions/agentrag/internal/repository"
	"github.com/cloo-solutions/agentrag/internal/service"
	"github.com/cloo-solutions/agentrag/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// deps holds the shared dependencies every daemon command starts from.
type deps struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func setup(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, err
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Info("connected to database")

	return &deps{cfg: cfg, logger: logger, pool: pool}, nil
}

func (d *deps) Close() {
	d.pool.Close()
	_ = d.logger.Sync()
}

func (d *deps) newCache() *cache.SemanticCache {
	var store cache.Store
	switch d.cfg.CacheBackend {
	case config.CacheBackendMemory:
		store = cache.NewMemoryStore()
	default:
		store = repository.NewCacheRepository(d.pool)
	}
	return cache.New(store, d.cfg.CacheThreshold)
}

func (d *deps) newDocumentStore(ctx context.Context) (service.DocumentStore, error) {
	if !d.cfg.HasS3() {
		store, err := storage.NewLocalStore(d.cfg.DocsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open document directory: %w", err)
		}
		d.logger.Info("using local document store", zap.String("dir", d.cfg.DocsDir))
		return store, nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        d.cfg.S3Endpoint,
		Region:          d.cfg.S3Region,
		AccessKeyID:     d.cfg.S3AccessKey,
		SecretAccessKey: d.cfg.S3SecretKey,
		Bucket:          d.cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	d.logger.Info("S3 bucket ready", zap.String("bucket", d.cfg.S3Bucket))
	return s3Client, nil
}

func (d *deps) newLLM() (*openai.Client, error) {
	if !d.cfg.HasOpenAI() {
		return nil, openai.ErrNoAPIKey
	}
	return openai.NewClientWithConfig(openai.Config{
		APIKey:              d.cfg.OpenAIAPIKey,
		BaseURL:             d.cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(d.cfg.EmbeddingModel),
		EmbeddingDimensions: d.cfg.EmbeddingDimensions,
		ChatModel:           d.cfg.ChatModel,
		RequestsPerSecond:   d.cfg.OpenAIRPS,
	}), nil
}

func (d *deps) newIngestService(store service.DocumentStore, embedder service.EmbeddingClient, m *metrics.Metrics) *service.IngestService {
	return service.NewIngestService(
		store,
		embedder,
		repository.NewDocumentRepository(d.pool),
		repository.NewTxRunner(d.pool),
		m,
		d.logger.Named("ingest"),
	)
}
