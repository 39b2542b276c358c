package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/cloo-solutions/agentrag/internal/metrics"
	"github.com/cloo-solutions/agentrag/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxDocumentBytes bounds how much of one document is read for indexing.
	MaxDocumentBytes = 10 << 20

	embedConcurrency = 4
)

var ingestibleExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// IsIngestible reports whether a document name has a text extension the
// indexer reads.
func IsIngestible(name string) bool {
	return ingestibleExtensions[strings.ToLower(filepath.Ext(name))]
}

// IngestReport summarises one synchronisation pass.
type IngestReport struct {
	Indexed []string          `json:"indexed"`
	Removed []string          `json:"removed"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed"`
	Chunks  int               `json:"chunks"`
}

// IngestService keeps the similarity index in step with the document store.
type IngestService struct {
	store    DocumentStore
	embedder EmbeddingClient
	docs     DocumentRepositoryInterface
	tx       TxRunner
	chunkCfg ChunkConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewIngestService(store DocumentStore, embedder EmbeddingClient, docs DocumentRepositoryInterface, tx TxRunner, m *metrics.Metrics, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		store:    store,
		embedder: embedder,
		docs:     docs,
		tx:       tx,
		chunkCfg: DefaultChunkConfig(),
		metrics:  m,
		logger:   logger,
	}
}

// Sync indexes new or changed documents and drops index entries for
// documents that no longer exist. A failing document is reported and does
// not stop the pass.
func (s *IngestService) Sync(ctx context.Context) (*IngestReport, error) {
	ctx, span := telemetry.StartTransaction(ctx, "IngestService.Sync", "ingest")
	defer span.End()

	stored, err := s.store.List(ctx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	indexed, err := s.docs.List(ctx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to list indexed documents: %w", err)
	}

	known := make(map[string]string, len(indexed))
	for _, d := range indexed {
		known[d.Source] = d.ETag
	}

	report := &IngestReport{
		Indexed: []string{},
		Removed: []string{},
		Skipped: []string{},
		Failed:  map[string]string{},
	}
	present := make(map[string]bool, len(stored))

	for _, doc := range stored {
		if !IsIngestible(doc.Name) {
			report.Skipped = append(report.Skipped, doc.Name)
			continue
		}
		present[doc.Name] = true

		if etag, ok := known[doc.Name]; ok && etag == doc.ETag {
			continue
		}

		n, err := s.IndexDocument(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			s.logger.Error("failed to index document", zap.String("source", doc.Name), zap.Error(err))
			report.Failed[doc.Name] = err.Error()
			continue
		}
		report.Indexed = append(report.Indexed, doc.Name)
		report.Chunks += n
	}

	for _, d := range indexed {
		if present[d.Source] {
			continue
		}
		if err := s.RemoveDocument(ctx, d.Source); err != nil {
			s.logger.Error("failed to remove document from index", zap.String("source", d.Source), zap.Error(err))
			report.Failed[d.Source] = err.Error()
			continue
		}
		report.Removed = append(report.Removed, d.Source)
	}

	if len(report.Indexed) > 0 || len(report.Removed) > 0 {
		s.logger.Info("index synchronised",
			zap.Int("indexed", len(report.Indexed)),
			zap.Int("removed", len(report.Removed)),
			zap.Int("chunks", report.Chunks),
			zap.Int("failed", len(report.Failed)),
		)
	}
	return report, nil
}

// IndexDocument chunks and embeds doc and replaces its index entries in one
// transaction. It returns the number of chunks written.
func (s *IngestService) IndexDocument(ctx context.Context, doc domain.Document) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.IndexDocument", telemetry.SpanAttributes{
		Source:    doc.Name,
		Operation: "index",
	})
	defer span.End()

	text, err := s.read(ctx, doc.Name)
	if err != nil {
		span.SetError(err)
		s.metrics.RecordIngest(0, true)
		return 0, err
	}

	pieces := splitDocument(text, s.chunkCfg)
	chunks, err := s.embed(ctx, doc.Name, pieces)
	if err != nil {
		span.SetError(err)
		s.metrics.RecordIngest(0, true)
		return 0, err
	}

	err = s.tx.WithTx(ctx, func(repos IndexRepositories) error {
		if err := repos.Documents().Upsert(ctx, &domain.IndexedDocument{
			Source:     doc.Name,
			ETag:       doc.ETag,
			ChunkCount: len(chunks),
		}); err != nil {
			return fmt.Errorf("failed to record document: %w", err)
		}
		if err := repos.Chunks().ReplaceChunks(ctx, doc.Name, chunks); err != nil {
			return fmt.Errorf("failed to write chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		s.metrics.RecordIngest(0, true)
		return 0, err
	}

	s.metrics.RecordIngest(len(chunks), false)
	s.logger.Debug("document indexed", zap.String("source", doc.Name), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// RemoveDocument drops a document and its chunks from the index.
func (s *IngestService) RemoveDocument(ctx context.Context, source string) error {
	return s.tx.WithTx(ctx, func(repos IndexRepositories) error {
		if err := repos.Chunks().DeleteBySource(ctx, source); err != nil {
			return err
		}
		return repos.Documents().Delete(ctx, source)
	})
}

func (s *IngestService) read(ctx context.Context, name string) (string, error) {
	rc, err := s.store.Get(ctx, name)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) > MaxDocumentBytes {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "document too large",
			fmt.Errorf("%s exceeds %d bytes", name, MaxDocumentBytes))
	}
	if !utf8.Valid(data) {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "document is not valid UTF-8 text",
			errors.New(name))
	}
	return string(data), nil
}

// embed computes embeddings for pieces with bounded concurrency, keeping
// chunk order.
func (s *IngestService) embed(ctx context.Context, source string, pieces []string) ([]domain.DocumentChunk, error) {
	chunks := make([]domain.DocumentChunk, len(pieces))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, piece := range pieces {
		i, piece := i, piece
		g.Go(func() error {
			vec, err := s.embedder.GenerateEmbedding(gctx, piece)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d of %s: %w", i, source, err)
			}
			chunks[i] = domain.DocumentChunk{
				Source:    source,
				Index:     i,
				Content:   piece,
				Embedding: vec,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return chunks, nil
}
