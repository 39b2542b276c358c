package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"go.uber.org/zap"
)

const DefaultRetrievalTopK = 3

// Retriever fetches the chunks nearest to a query from the similarity index.
type Retriever struct {
	embedder EmbeddingClient
	index    SimilaritySearchClient
	topK     int
	logger   *zap.Logger
}

func NewRetriever(embedder EmbeddingClient, index SimilaritySearchClient, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultRetrievalTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve embeds query and searches the index with it.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.ContextChunk, error) {
	if !r.available(ctx) {
		return noIndex(), nil
	}

	vec, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return r.search(ctx, vec)
}

// RetrieveVector searches the index with an already computed query vector.
func (r *Retriever) RetrieveVector(ctx context.Context, vec []float32) ([]domain.ContextChunk, error) {
	if !r.available(ctx) {
		return noIndex(), nil
	}
	return r.search(ctx, vec)
}

// available reports whether searching makes sense. A failed check counts as
// no index.
func (r *Retriever) available(ctx context.Context) bool {
	ok, err := r.index.Available(ctx)
	if err != nil {
		r.logger.Warn("similarity index availability check failed", zap.Error(err))
		return false
	}
	if !ok {
		r.logger.Debug("similarity index is empty")
	}
	return ok
}

func (r *Retriever) search(ctx context.Context, vec []float32) ([]domain.ContextChunk, error) {
	chunks, err := r.index.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if chunks == nil {
		chunks = []domain.ContextChunk{}
	}
	return chunks, nil
}

func noIndex() []domain.ContextChunk {
	return []domain.ContextChunk{domain.NoIndexChunk()}
}
