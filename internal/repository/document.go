package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository tracks which document versions are in the index.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx dbtx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Upsert(ctx context.Context, d *domain.IndexedDocument) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO documents (source, etag, chunk_count, indexed_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (source) DO UPDATE
		 SET etag = EXCLUDED.etag, chunk_count = EXCLUDED.chunk_count, indexed_at = EXCLUDED.indexed_at
		 RETURNING indexed_at`,
		d.Source,
		d.ETag,
		d.ChunkCount,
	).Scan(&d.IndexedAt)
}

func (r *DocumentRepository) GetBySource(ctx context.Context, source string) (*domain.IndexedDocument, error) {
	var d domain.IndexedDocument
	err := r.db.QueryRow(ctx,
		`SELECT source, etag, chunk_count, indexed_at FROM documents WHERE source = $1`,
		source,
	).Scan(&d.Source, &d.ETag, &d.ChunkCount, &d.IndexedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]domain.IndexedDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT source, etag, chunk_count, indexed_at FROM documents ORDER BY source ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.IndexedDocument, 0)
	for rows.Next() {
		var d domain.IndexedDocument
		if err := rows.Scan(&d.Source, &d.ETag, &d.ChunkCount, &d.IndexedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

// Delete removes the document row; its chunks go with it through the
// foreign key cascade.
func (r *DocumentRepository) Delete(ctx context.Context, source string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM documents WHERE source = $1`, source)
	return err
}
