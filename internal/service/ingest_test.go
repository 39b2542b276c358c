package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/cloo-solutions/agentrag/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ingestFixture struct {
	store    *MockDocumentStore
	embedder *MockEmbeddingClient
	docs     *MockDocumentRepository
	tx       *fakeTxRunner
	metrics  *metrics.Metrics
	svc      *IngestService
}

func newIngestFixture() *ingestFixture {
	f := &ingestFixture{
		store:    new(MockDocumentStore),
		embedder: new(MockEmbeddingClient),
		docs:     new(MockDocumentRepository),
		tx:       &fakeTxRunner{chunks: new(MockChunkRepository), docs: new(MockDocumentRepository)},
		metrics:  metrics.New(),
	}
	f.svc = NewIngestService(f.store, f.embedder, f.docs, f.tx, f.metrics, nil)
	return f
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestIsIngestible(t *testing.T) {
	assert.True(t, IsIngestible("notes.txt"))
	assert.True(t, IsIngestible("README.MD"))
	assert.False(t, IsIngestible("diagram.png"))
	assert.False(t, IsIngestible("noext"))
}

func TestIngestService_IndexDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("chunks in order and writes in one transaction", func(t *testing.T) {
		f := newIngestFixture()
		doc := domain.Document{Name: "doc1.txt", ETag: "abc"}
		f.store.On("Get", mock.Anything, "doc1.txt").Return(body("Bedrock is managed.\nIt hosts models.\n"), nil)
		f.embedder.On("GenerateEmbedding", mock.Anything, "Bedrock is managed.").Return([]float32{1, 0}, nil)
		f.embedder.On("GenerateEmbedding", mock.Anything, "It hosts models.").Return([]float32{0, 1}, nil)
		f.tx.docs.On("Upsert", mock.Anything, &domain.IndexedDocument{Source: "doc1.txt", ETag: "abc", ChunkCount: 2}).Return(nil)
		f.tx.chunks.On("ReplaceChunks", mock.Anything, "doc1.txt", []domain.DocumentChunk{
			{Source: "doc1.txt", Index: 0, Content: "Bedrock is managed.", Embedding: []float32{1, 0}},
			{Source: "doc1.txt", Index: 1, Content: "It hosts models.", Embedding: []float32{0, 1}},
		}).Return(nil)

		n, err := f.svc.IndexDocument(ctx, doc)

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		f.tx.docs.AssertExpectations(t)
		f.tx.chunks.AssertExpectations(t)
		assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.IngestedChunks))
	})

	t.Run("embedding failure writes nothing", func(t *testing.T) {
		f := newIngestFixture()
		f.store.On("Get", mock.Anything, "doc1.txt").Return(body("one line\n"), nil)
		f.embedder.On("GenerateEmbedding", mock.Anything, "one line").Return(nil, errors.New("quota"))

		_, err := f.svc.IndexDocument(ctx, domain.Document{Name: "doc1.txt"})

		assert.ErrorContains(t, err, "failed to embed chunk 0 of doc1.txt")
		f.tx.chunks.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.IngestErrors))
	})

	t.Run("rejects binary content", func(t *testing.T) {
		f := newIngestFixture()
		f.store.On("Get", mock.Anything, "bad.txt").Return(body("\xff\xfe\x00"), nil)

		_, err := f.svc.IndexDocument(ctx, domain.Document{Name: "bad.txt"})

		var de *domain.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.ErrCodeValidation, de.Code)
	})

	t.Run("missing document", func(t *testing.T) {
		f := newIngestFixture()
		f.store.On("Get", mock.Anything, "gone.txt").Return(nil, domain.ErrDocumentNotFound)

		_, err := f.svc.IndexDocument(ctx, domain.Document{Name: "gone.txt"})

		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})
}

func TestIngestService_Sync(t *testing.T) {
	ctx := context.Background()

	f := newIngestFixture()
	f.store.On("List", mock.Anything).Return([]domain.Document{
		{Name: "changed.txt", ETag: "v2"},
		{Name: "same.md", ETag: "v1"},
		{Name: "image.png", ETag: "x"},
		{Name: "broken.txt", ETag: "v1"},
	}, nil)
	f.docs.On("List", mock.Anything).Return([]domain.IndexedDocument{
		{Source: "changed.txt", ETag: "v1"},
		{Source: "same.md", ETag: "v1"},
		{Source: "deleted.txt", ETag: "v1"},
	}, nil)

	f.store.On("Get", mock.Anything, "changed.txt").Return(body("new content"), nil)
	f.store.On("Get", mock.Anything, "broken.txt").Return(nil, errors.New("read timeout"))
	f.embedder.On("GenerateEmbedding", mock.Anything, "new content").Return([]float32{1}, nil)
	f.tx.docs.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.tx.chunks.On("ReplaceChunks", mock.Anything, "changed.txt", mock.Anything).Return(nil)
	f.tx.chunks.On("DeleteBySource", mock.Anything, "deleted.txt").Return(nil)
	f.tx.docs.On("Delete", mock.Anything, "deleted.txt").Return(nil)

	report, err := f.svc.Sync(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"changed.txt"}, report.Indexed)
	assert.Equal(t, []string{"deleted.txt"}, report.Removed)
	assert.Equal(t, []string{"image.png"}, report.Skipped)
	assert.Contains(t, report.Failed, "broken.txt")
	assert.Equal(t, 1, report.Chunks)
	f.store.AssertNotCalled(t, "Get", mock.Anything, "same.md")
}

func TestIngestService_SyncListFailure(t *testing.T) {
	f := newIngestFixture()
	f.store.On("List", mock.Anything).Return(nil, errors.New("bucket missing"))

	_, err := f.svc.Sync(context.Background())

	assert.ErrorContains(t, err, "failed to list documents")
}
