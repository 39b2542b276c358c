//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/cloo-solutions/agentrag/internal/cache"
	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/cloo-solutions/agentrag/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRepository_InsertAndList(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewCacheRepository(pool)

	first := &domain.CacheEntry{
		Query:        "What is Amazon Bedrock?",
		Vector:       []float32{0.25, -1.5, 3},
		Answer:       "A managed service.",
		Sources:      []string{"doc1.txt"},
		Verification: &domain.VerificationResult{IsValid: true, Reasoning: "supported"},
	}
	second := &domain.CacheEntry{
		Query:  "Hello, who are you?",
		Vector: []float32{1, 0, 0},
		Answer: "An assistant.",
	}

	require.NoError(t, repo.InsertEntry(ctx, first))
	require.NoError(t, repo.InsertEntry(ctx, second))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	entries, err := repo.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, first.Vector, entries[0].Vector)
	assert.Equal(t, []string{"doc1.txt"}, entries[0].Sources)
	require.NotNil(t, entries[0].Verification)
	assert.True(t, entries[0].Verification.IsValid)

	assert.Equal(t, []string{}, entries[1].Sources)
	assert.Nil(t, entries[1].Verification)

	n, err := repo.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCacheRepository_WithSemanticCache(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	c := cache.New(NewCacheRepository(pool), cache.DefaultThreshold)

	_, err := c.Store(ctx, cache.StoreInput{
		Query:        "q",
		Vector:       []float32{0.6, 0.8},
		Answer:       "a",
		Verification: &domain.VerificationResult{IsValid: true},
	})
	require.NoError(t, err)

	hit, err := c.Lookup(ctx, []float32{0.6, 0.8})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.InDelta(t, 1.0, hit.Similarity, 1e-4)

	require.NoError(t, c.Clear(ctx))

	hit, err = c.Lookup(ctx, []float32{0.6, 0.8})
	require.NoError(t, err)
	assert.Nil(t, hit)
}
