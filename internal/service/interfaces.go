package service

import (
	"context"
	"io"

	"github.com/cloo-solutions/agentrag/internal/cache"
	"github.com/cloo-solutions/agentrag/internal/domain"
)

// EmbeddingClient turns text into a fixed-dimension vector.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// CompletionClient produces model text for a system and user prompt pair.
type CompletionClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error)
}

// SimilaritySearchClient finds the k chunks closest to a vector.
type SimilaritySearchClient interface {
	Search(ctx context.Context, embedding []float32, k int) ([]domain.ContextChunk, error)
	Available(ctx context.Context) (bool, error)
}

// SemanticCache is the subset of *cache.SemanticCache used by a run.
type SemanticCache interface {
	Lookup(ctx context.Context, vector []float32) (*domain.CacheHit, error)
	Store(ctx context.Context, input cache.StoreInput) (*domain.CacheEntry, error)
}

// Analyzer decides whether a query needs retrieved context.
type Analyzer interface {
	Analyze(ctx context.Context, query string) (domain.AnalysisDecision, error)
}

// ContextRetriever fetches grounding chunks for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.ContextChunk, error)
}

// AnswerSynthesizer writes an answer from a query and its context.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, query string, chunks []domain.ContextChunk) (string, error)
}

// AnswerVerifier judges whether an answer is supported by its context.
type AnswerVerifier interface {
	Verify(ctx context.Context, query, answer string, chunks []domain.ContextChunk) (domain.VerificationResult, error)
}

// QueryLogger records the outcome of each run.
type QueryLogger interface {
	LogQuery(ctx context.Context, entry QueryLogEntry) error
}

// DocumentStore holds the raw knowledge base files.
type DocumentStore interface {
	Put(ctx context.Context, name string, body io.Reader, size int64) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context) ([]domain.Document, error)
	Delete(ctx context.Context, name string) error
}

type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, source string, chunks []domain.DocumentChunk) error
	DeleteBySource(ctx context.Context, source string) error
}

type DocumentRepositoryInterface interface {
	Upsert(ctx context.Context, d *domain.IndexedDocument) error
	List(ctx context.Context) ([]domain.IndexedDocument, error)
	Delete(ctx context.Context, source string) error
}

// IndexRepositories exposes the index repositories bound to one transaction.
type IndexRepositories interface {
	Chunks() ChunkRepositoryInterface
	Documents() DocumentRepositoryInterface
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos IndexRepositories) error) error
}
