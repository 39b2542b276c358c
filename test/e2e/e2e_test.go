//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bedrockDoc = "Bedrock is a fully managed service that offers foundation models.\n\nPricing depends on usage tiers today and tomorrow.\n"

func stepsOf(events []domain.PipelineEvent) []domain.Step {
	steps := make([]domain.Step, len(events))
	for i, ev := range events {
		steps[i] = ev.Step
	}
	return steps
}

// TestE2E_DocumentLifecycle covers upload, listing, indexing and deletion
// against the S3 store and the pgvector index.
func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("upload", func(t *testing.T) {
		resp, err := env.UploadDocument("doc1.txt", []byte(bedrockDoc))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.Status)

		var uploaded struct {
			Name string `json:"name"`
			Size int64  `json:"size"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &uploaded))
		assert.Equal(t, "doc1.txt", uploaded.Name)
		assert.Equal(t, int64(len(bedrockDoc)), uploaded.Size)
	})

	t.Run("second document", func(t *testing.T) {
		_, err := env.UploadDocument("notes.md", []byte("Unrelated notes about gardening.\n"))
		require.NoError(t, err)
	})

	t.Run("list", func(t *testing.T) {
		resp, err := env.Get("/documents")
		require.NoError(t, err)

		var list struct {
			Documents []domain.Document `json:"documents"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		names := []string{}
		for _, d := range list.Documents {
			names = append(names, d.Name)
		}
		assert.ElementsMatch(t, []string{"doc1.txt", "notes.md"}, names)
	})

	t.Run("index", func(t *testing.T) {
		report := env.SyncIndex()
		assert.ElementsMatch(t, []string{"doc1.txt", "notes.md"}, report.Indexed)
		assert.Equal(t, 3, report.Chunks)

		again := env.SyncIndex()
		assert.Empty(t, again.Indexed, "unchanged documents are not re-indexed")
	})

	t.Run("delete removes from index on next pass", func(t *testing.T) {
		resp, err := env.Delete("/documents/notes.md")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.Status)

		report := env.SyncIndex()
		assert.Equal(t, []string{"notes.md"}, report.Removed)

		var chunks int
		require.NoError(t, env.Pool.QueryRow(env.Ctx, "SELECT count(*) FROM document_chunks").Scan(&chunks))
		assert.Equal(t, 2, chunks)
	})

	t.Run("delete missing", func(t *testing.T) {
		resp, err := env.Delete("/documents/notes.md")
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
		assert.Equal(t, domain.ErrCodeNotFound, resp.Code)
	})
}

// TestE2E_QueryAndCache runs both canonical queries through the streaming
// endpoint and checks the persisted cache answers the repeat.
func TestE2E_QueryAndCache(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, err := env.UploadDocument("doc1.txt", []byte(bedrockDoc))
	require.NoError(t, err)
	env.SyncIndex()

	t.Run("no retrieval needed", func(t *testing.T) {
		events, err := env.StreamQuery("Hello, who are you?")
		require.NoError(t, err)

		assert.Equal(t, []domain.Step{
			domain.StepStart, domain.StepRouter, domain.StepCacheCheck,
			domain.StepRouter, domain.StepAnalysis, domain.StepRouter,
			domain.StepRouter, domain.StepSynthesis, domain.StepRouter,
			domain.StepVerification, domain.StepCacheStore, domain.StepComplete,
		}, stepsOf(events))

		final := events[len(events)-1].FinalResponse
		require.NotNil(t, final)
		assert.Empty(t, final.ContextUsed)
		assert.False(t, final.Cached)
	})

	t.Run("retrieval grounds the answer", func(t *testing.T) {
		events, err := env.StreamQuery("What is Amazon Bedrock?")
		require.NoError(t, err)

		final := events[len(events)-1].FinalResponse
		require.NotNil(t, final)
		assert.Equal(t, []string{"doc1.txt"}, final.Sources)
		assert.Contains(t, final.Answer, "Source (doc1.txt): ")
		contents := []string{}
		for _, c := range final.ContextUsed {
			contents = append(contents, c.Content)
		}
		assert.Contains(t, contents, "Bedrock is a fully managed service that offers foundation models.")
		require.NotNil(t, final.Verification)
		assert.True(t, final.Verification.IsValid)
	})

	t.Run("repeat is served from cache", func(t *testing.T) {
		before := env.Model.Completions()

		resp, err := env.Post("/query", map[string]string{"query": "What is Amazon Bedrock?"})
		require.NoError(t, err)

		var final domain.FinalResponse
		require.NoError(t, json.Unmarshal(resp.Data, &final))
		assert.True(t, final.Cached)
		require.NotNil(t, final.Similarity)
		assert.InDelta(t, 1.0, *final.Similarity, 1e-6)
		assert.Equal(t, before, env.Model.Completions(), "cache hit makes no completion calls")
	})

	t.Run("stats and clear", func(t *testing.T) {
		resp, err := env.Get("/cache/stats")
		require.NoError(t, err)
		var stats domain.CacheStats
		require.NoError(t, json.Unmarshal(resp.Data, &stats))
		assert.Equal(t, int64(2), stats.Entries)

		_, err = env.Delete("/cache")
		require.NoError(t, err)

		events, err := env.StreamQuery("What is Amazon Bedrock?")
		require.NoError(t, err)
		assert.False(t, events[len(events)-1].FinalResponse.Cached)
	})

	t.Run("query log", func(t *testing.T) {
		var logged, cached int
		require.NoError(t, env.Pool.QueryRow(env.Ctx,
			"SELECT count(*), count(*) FILTER (WHERE cached) FROM query_logs").Scan(&logged, &cached))
		assert.Equal(t, 4, logged)
		assert.Equal(t, 1, cached)
	})

	t.Run("empty query", func(t *testing.T) {
		resp, err := env.Post("/query", map[string]string{"query": "  "})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})
}

// TestE2E_CLIWorkflow drives the server through the agentrag binary.
func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	workDir := t.TempDir()
	docPath := filepath.Join(workDir, "doc1.txt")
	require.NoError(t, os.WriteFile(docPath, []byte(bedrockDoc), 0644))

	out, err := env.RunAgentrag(workDir, "health")
	require.NoError(t, err, out)
	assert.Contains(t, out, "ok")

	out, err = env.RunAgentrag(workDir, "docs", "upload", docPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Uploaded doc1.txt")

	out, err = env.RunAgentrag(workDir, "docs", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "doc1.txt")

	env.SyncIndex()

	out, err = env.RunAgentrag(workDir, "ask", "What", "is", "Amazon", "Bedrock?")
	require.NoError(t, err, out)
	assert.Contains(t, out, "[cache_check]")
	assert.Contains(t, out, "Sources: doc1.txt")

	out, err = env.RunAgentrag(workDir, "ask", "--no-stream", "What is Amazon Bedrock?")
	require.NoError(t, err, out)
	assert.Contains(t, out, "(cached, similarity 1.0000)")

	out, err = env.RunAgentrag(workDir, "docs", "delete", "doc1.txt")
	require.NoError(t, err, out)

	out, err = env.RunAgentrag(workDir, "docs", "delete", "doc1.txt")
	require.Error(t, err)
	assert.Contains(t, out, "NOT_FOUND")
}
