package repository

import (
	"context"
	"encoding/json"

	"github.com/cloo-solutions/agentrag/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QueryLogRepository stores one row per orchestration run.
type QueryLogRepository struct {
	pool *pgxpool.Pool
}

func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{pool: pool}
}

func (r *QueryLogRepository) LogQuery(ctx context.Context, entry service.QueryLogEntry) error {
	id := entry.RunID
	if id == "" {
		id = uuid.NewString()
	}

	sources := entry.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, _ := json.Marshal(sources)

	_, err := r.pool.Exec(ctx,
		`INSERT INTO query_logs (id, query, outcome, cached, similarity, needs_retrieval, context_count, sources, is_valid, error, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id,
		entry.Query,
		string(entry.Outcome),
		entry.Cached,
		entry.Similarity,
		entry.NeedsRetrieval,
		entry.ContextCount,
		sourcesJSON,
		entry.IsValid,
		nullableString(entry.Error),
		entry.DurationMs,
	)
	return err
}
