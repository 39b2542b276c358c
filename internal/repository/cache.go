package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/agentrag/internal/cache"
	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CacheRepository persists semantic cache entries in Postgres.
type CacheRepository struct {
	db dbtx
}

func NewCacheRepository(pool *pgxpool.Pool) *CacheRepository {
	return &CacheRepository{db: pool}
}

var _ cache.Store = (*CacheRepository)(nil)

func (r *CacheRepository) ListEntries(ctx context.Context) ([]domain.CacheEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, query, vector, dimension, answer, sources, verification, created_at
		 FROM semantic_cache
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CacheEntry, 0)
	for rows.Next() {
		var (
			e            domain.CacheEntry
			raw          []byte
			dimension    int
			sourcesJSON  []byte
			verification []byte
		)
		if err := rows.Scan(&e.ID, &e.Query, &raw, &dimension, &e.Answer, &sourcesJSON, &verification, &e.CreatedAt); err != nil {
			return nil, err
		}

		e.Vector, err = cache.DecodeVector(raw, dimension)
		if err != nil {
			return nil, fmt.Errorf("cache entry %d: %w", e.ID, err)
		}
		if err := json.Unmarshal(sourcesJSON, &e.Sources); err != nil {
			return nil, fmt.Errorf("cache entry %d sources: %w", e.ID, err)
		}
		if len(verification) > 0 {
			var v domain.VerificationResult
			if err := json.Unmarshal(verification, &v); err != nil {
				return nil, fmt.Errorf("cache entry %d verification: %w", e.ID, err)
			}
			e.Verification = &v
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// InsertEntry writes e in a single statement and fills in its ID and CreatedAt.
func (r *CacheRepository) InsertEntry(ctx context.Context, e *domain.CacheEntry) error {
	sources := e.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return err
	}

	var verification []byte
	if e.Verification != nil {
		verification, err = json.Marshal(e.Verification)
		if err != nil {
			return err
		}
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO semantic_cache (query, vector, dimension, answer, sources, verification)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.Query,
		cache.EncodeVector(e.Vector),
		len(e.Vector),
		e.Answer,
		sourcesJSON,
		verification,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *CacheRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `TRUNCATE TABLE semantic_cache`)
	return err
}

func (r *CacheRepository) CountEntries(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM semantic_cache`).Scan(&n)
	return n, err
}
