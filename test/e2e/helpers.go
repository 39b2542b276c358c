//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode"

	"github.com/cloo-solutions/agentrag/internal/api/handlers"
	"github.com/cloo-solutions/agentrag/internal/cache"
	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/cloo-solutions/agentrag/internal/metrics"
	"github.com/cloo-solutions/agentrag/internal/repository"
	"github.com/cloo-solutions/agentrag/internal/server"
	"github.com/cloo-solutions/agentrag/internal/service"
	"github.com/cloo-solutions/agentrag/internal/storage"
	"github.com/cloo-solutions/agentrag/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Model        *scriptedModel
	Ingest       *service.IngestService
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		Model:      &scriptedModel{},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.ServerURL, env.ServerCloser = env.startServer(port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the agentrag and agentragd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "agentrag-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"agentragd", "agentrag"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunAgentrag runs the agentrag CLI against the test server
func (e *E2ETestEnv) RunAgentrag(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "agentrag"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), fmt.Sprintf("AGENTRAG_API_URL=%s", e.ServerURL))
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// SyncIndex runs one ingestion pass over the bucket.
func (e *E2ETestEnv) SyncIndex() *service.IngestReport {
	report, err := e.Ingest.Sync(e.Ctx)
	if err != nil {
		e.T.Fatalf("failed to sync index: %v", err)
	}
	return report
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
	Raw    []byte          `json:"-"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, "", nil)
}

// Post performs a POST request with a JSON body
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}
	return e.doRequest(http.MethodPost, path, "application/json", bytes.NewReader(jsonData))
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, "", nil)
}

// UploadDocument posts content as the multipart "file" field.
func (e *E2ETestEnv) UploadDocument(name string, content []byte) (*APIResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	part.Write(content)
	mw.Close()
	return e.doRequest(http.MethodPost, "/documents", mw.FormDataContentType(), &buf)
}

func (e *E2ETestEnv) doRequest(method, path, contentType string, body io.Reader) (*APIResponse, error) {
	req, err := http.NewRequest(method, e.ServerURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := APIResponse{Status: resp.StatusCode, Raw: respBody}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
	}

	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// StreamQuery reads every event of a /stream_query run.
func (e *E2ETestEnv) StreamQuery(query string) ([]domain.PipelineEvent, error) {
	resp, err := e.HTTPClient.Get(e.ServerURL + "/stream_query?q=" + url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var events []domain.PipelineEvent
	for _, line := range strings.Split(string(body), "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev domain.PipelineEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("bad event %q: %w", data, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (e *E2ETestEnv) startServer(port int) (string, func()) {
	m := metrics.New()
	semanticCache := cache.New(repository.NewCacheRepository(e.Pool), cache.DefaultThreshold)

	e.Ingest = service.NewIngestService(
		e.S3Client,
		e.Model,
		repository.NewDocumentRepository(e.Pool),
		repository.NewTxRunner(e.Pool),
		m,
		nil,
	)

	orchestrator := service.NewOrchestrator(service.OrchestratorConfig{
		Embedder:     e.Model,
		Cache:        semanticCache,
		Analyzer:     service.NewQueryAnalyzer(e.Model, nil),
		Retriever:    service.NewRetriever(e.Model, repository.NewChunkRepository(e.Pool), 3, nil),
		Synthesizer:  service.NewSynthesizer(e.Model),
		Verifier:     service.NewVerifier(e.Model, false, nil),
		QueryLog:     repository.NewQueryLogRepository(e.Pool),
		Metrics:      m,
		StageTimeout: 10 * time.Second,
	})

	router := server.NewRouter(server.RouterConfig{
		QueryHandler:    handlers.NewQueryHandler(orchestrator, 0, nil),
		CacheHandler:    handlers.NewCacheHandler(semanticCache),
		DocumentHandler: handlers.NewDocumentHandler(service.NewDocumentService(e.S3Client, nil)),
		Health:          handlers.Health("scripted", "test"),
		Metrics:         m.Handler(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL+"/health", 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not become ready within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

const embeddingDims = 64

// scriptedModel stands in for the model provider. Embeddings are hashed
// bags of words, so identical texts embed identically and texts sharing
// words score high. Completions are chosen by the stage's system prompt.
type scriptedModel struct {
	completions atomic.Int64
}

func (m *scriptedModel) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%embeddingDims]++
	}
	return vec, nil
}

func (m *scriptedModel) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	m.completions.Add(1)

	switch {
	case strings.HasPrefix(systemPrompt, "You are a Query Analysis Agent"):
		if strings.Contains(strings.ToLower(userPrompt), "who are you") {
			return `{"needs_retrieval": false, "retrieval_strategy": null, "reasoning": "greeting"}`, nil
		}
		return "```json\n{\"needs_retrieval\": true, \"retrieval_strategy\": \"vector_similarity\", \"reasoning\": \"factual\"}\n```", nil
	case strings.HasPrefix(systemPrompt, "You are a Synthesis Agent"):
		if idx := strings.Index(systemPrompt, "Source ("); idx >= 0 {
			line := systemPrompt[idx:]
			if end := strings.IndexByte(line, '\n'); end >= 0 {
				line = line[:end]
			}
			return "According to the documents: " + line, nil
		}
		return "I am an assistant that answers questions about your documents.", nil
	case strings.HasPrefix(systemPrompt, "You are a Verification Agent"):
		return `{"is_valid": true, "reasoning": "supported by context"}`, nil
	}
	return "", fmt.Errorf("unexpected prompt: %.40s", systemPrompt)
}

// Completions returns how many completion calls have been made.
func (m *scriptedModel) Completions() int64 {
	return m.completions.Load()
}
