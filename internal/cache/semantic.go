// Package cache implements the semantic query cache: answers keyed by the
// embedding of the query that produced them, looked up by cosine similarity.
package cache

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/agentrag/internal/domain"
)

// DefaultThreshold is the minimum similarity for a cache hit.
const DefaultThreshold = 0.96

// Store persists cache entries. ListEntries must return entries in insertion
// order, and InsertEntry must be atomic from the point of view of concurrent
// ListEntries calls.
//
// The cache scans every entry on lookup. An approximate nearest-neighbour
// index can replace the scan behind this interface once entry counts grow.
type Store interface {
	ListEntries(ctx context.Context) ([]domain.CacheEntry, error)
	InsertEntry(ctx context.Context, entry *domain.CacheEntry) error
	DeleteAll(ctx context.Context) error
	CountEntries(ctx context.Context) (int64, error)
}

// StoreInput is the data written for a completed run.
type StoreInput struct {
	Query        string
	Vector       []float32
	Answer       string
	Sources      []string
	Verification *domain.VerificationResult
}

// SemanticCache answers lookups by similarity against stored query vectors.
type SemanticCache struct {
	store     Store
	threshold float64
}

// New creates a SemanticCache. A non-positive threshold selects DefaultThreshold.
func New(store Store, threshold float64) *SemanticCache {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &SemanticCache{
		store:     store,
		threshold: threshold,
	}
}

// Threshold returns the configured hit threshold.
func (c *SemanticCache) Threshold() float64 {
	return c.threshold
}

// Lookup returns the most similar stored entry if its similarity reaches the
// threshold, or nil. When several entries share the best score the earliest
// inserted one wins.
func (c *SemanticCache) Lookup(ctx context.Context, vector []float32) (*domain.CacheHit, error) {
	entries, err := c.store.ListEntries(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCacheIO, "cache read failed", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	best := -1
	bestScore := -1.0
	for i := range entries {
		score := CosineSimilarity(vector, entries[i].Vector)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	if best < 0 || bestScore < c.threshold {
		return nil, nil
	}

	return &domain.CacheHit{
		Entry:      entries[best],
		Similarity: roundScore(bestScore),
	}, nil
}

// Store appends a new entry. The creation time is assigned by the store.
func (c *SemanticCache) Store(ctx context.Context, input StoreInput) (*domain.CacheEntry, error) {
	sources := input.Sources
	if sources == nil {
		sources = []string{}
	}
	entry := &domain.CacheEntry{
		Query:        input.Query,
		Vector:       input.Vector,
		Answer:       input.Answer,
		Sources:      sources,
		Verification: input.Verification,
	}
	if err := domain.ValidateCacheEntry(entry); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cache entry", err)
	}

	if err := c.store.InsertEntry(ctx, entry); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCacheIO, "cache write failed", err)
	}
	return entry, nil
}

// Clear removes every entry.
func (c *SemanticCache) Clear(ctx context.Context) error {
	if err := c.store.DeleteAll(ctx); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeCacheIO, "cache write failed", fmt.Errorf("clear: %w", err))
	}
	return nil
}

// Stats reports the number of stored entries.
func (c *SemanticCache) Stats(ctx context.Context) (domain.CacheStats, error) {
	n, err := c.store.CountEntries(ctx)
	if err != nil {
		return domain.CacheStats{}, domain.NewDomainErrorWithCause(domain.ErrCodeCacheIO, "cache read failed", err)
	}
	return domain.CacheStats{Entries: n}, nil
}
