package service

import (
	"context"
	"io"
	"strings"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockCompletionClient is a mock implementation of CompletionClient
type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt, temperature)
	return args.String(0), args.Error(1)
}

// systemPromptOf returns the system prompt of the first call whose prompt
// starts with prefix.
func (m *MockCompletionClient) systemPromptOf(prefix string) (string, bool) {
	for _, call := range m.Calls {
		if call.Method != "Generate" {
			continue
		}
		system := call.Arguments.String(1)
		if strings.HasPrefix(system, prefix) {
			return system, true
		}
	}
	return "", false
}

func (m *MockCompletionClient) callsWithPrefix(prefix string) int {
	n := 0
	for _, call := range m.Calls {
		if call.Method == "Generate" && strings.HasPrefix(call.Arguments.String(1), prefix) {
			n++
		}
	}
	return n
}

func promptWithPrefix(prefix string) any {
	return mock.MatchedBy(func(s string) bool { return strings.HasPrefix(s, prefix) })
}

const (
	analyzerPrefix  = "You are a Query Analysis Agent"
	synthesisPrefix = "You are a Synthesis Agent"
	verifierPrefix  = "You are a Verification Agent"
)

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockSimilaritySearch is a mock implementation of SimilaritySearchClient
type MockSimilaritySearch struct {
	mock.Mock
}

func (m *MockSimilaritySearch) Search(ctx context.Context, embedding []float32, k int) ([]domain.ContextChunk, error) {
	args := m.Called(ctx, embedding, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ContextChunk), args.Error(1)
}

func (m *MockSimilaritySearch) Available(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// MockQueryLogger is a mock implementation of QueryLogger
type MockQueryLogger struct {
	mock.Mock
}

func (m *MockQueryLogger) LogQuery(ctx context.Context, entry QueryLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockDocumentStore is a mock implementation of DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Put(ctx context.Context, name string, body io.Reader, size int64) error {
	args := m.Called(ctx, name, body, size)
	return args.Error(0)
}

func (m *MockDocumentStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockDocumentStore) List(ctx context.Context) ([]domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentStore) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// MockChunkRepository is a mock implementation of ChunkRepositoryInterface
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) ReplaceChunks(ctx context.Context, source string, chunks []domain.DocumentChunk) error {
	args := m.Called(ctx, source, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) DeleteBySource(ctx context.Context, source string) error {
	args := m.Called(ctx, source)
	return args.Error(0)
}

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Upsert(ctx context.Context, d *domain.IndexedDocument) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) List(ctx context.Context) ([]domain.IndexedDocument, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.IndexedDocument), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, source string) error {
	args := m.Called(ctx, source)
	return args.Error(0)
}

// fakeTxRunner runs fn directly against the wrapped repositories.
type fakeTxRunner struct {
	chunks *MockChunkRepository
	docs   *MockDocumentRepository
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos IndexRepositories) error) error {
	return fn(f)
}

func (f *fakeTxRunner) Chunks() ChunkRepositoryInterface {
	return f.chunks
}

func (f *fakeTxRunner) Documents() DocumentRepositoryInterface {
	return f.docs
}
