package repository

import (
	"context"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository stores document chunk embeddings and serves nearest
// neighbour queries over them.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a source and inserts new ones.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, source string, chunks []domain.DocumentChunk) error {
	if err := r.DeleteBySource(ctx, source); err != nil {
		return err
	}

	for _, c := range chunks {
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks (source, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4)`,
			source,
			c.Index,
			c.Content,
			pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *ChunkRepository) DeleteBySource(ctx context.Context, source string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE source = $1`, source)
	return err
}

// Search returns the k chunks nearest to embedding by L2 distance, closest
// first. Score carries the distance.
func (r *ChunkRepository) Search(ctx context.Context, embedding []float32, k int) ([]domain.ContextChunk, error) {
	if k <= 0 {
		k = 3
	}

	rows, err := r.db.Query(ctx,
		`SELECT content, source, embedding <-> $1 AS distance
		 FROM document_chunks
		 ORDER BY distance ASC, id ASC
		 LIMIT $2`,
		pgvector.NewVector(embedding),
		k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ContextChunk, 0, k)
	for rows.Next() {
		var c domain.ContextChunk
		if err := rows.Scan(&c.Content, &c.Source, &c.Score); err != nil {
			return nil, err
		}
		results = append(results, c)
	}

	return results, rows.Err()
}

// Available reports whether the index holds any chunk.
func (r *ChunkRepository) Available(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM document_chunks)`).Scan(&exists)
	return exists, err
}

func (r *ChunkRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&n)
	return n, err
}
