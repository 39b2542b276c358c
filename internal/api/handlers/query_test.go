package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/agentrag/internal/api"
	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockQueryRunner struct {
	mock.Mock
}

func (m *MockQueryRunner) Run(ctx context.Context, query string) <-chan domain.PipelineEvent {
	args := m.Called(ctx, query)
	events := args.Get(0).([]domain.PipelineEvent)
	ch := make(chan domain.PipelineEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func completedRun() []domain.PipelineEvent {
	resp := domain.NewFinalResponse("What is Amazon Bedrock?", "A managed service.",
		[]domain.ContextChunk{{Content: "Bedrock is managed.", Source: "doc1.txt"}},
		domain.VerificationResult{IsValid: true, Reasoning: "supported"})
	return []domain.PipelineEvent{
		domain.NewEvent(domain.StepStart, "Processing query: What is Amazon Bedrock?", nil),
		domain.NewEvent(domain.StepCacheCheck, "Cache miss. Running full pipeline.", map[string]any{"hit": false}),
		domain.CompleteEvent(resp),
	}
}

func readSSE(t *testing.T, body string) []domain.PipelineEvent {
	t.Helper()

	var events []domain.PipelineEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.PipelineEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestQueryHandler_Stream(t *testing.T) {
	runner := new(MockQueryRunner)
	runner.On("Run", mock.Anything, "What is Amazon Bedrock?").Return(completedRun())
	handler := NewQueryHandler(runner, 0, nil)

	req := httptest.NewRequest(http.MethodGet, "/stream_query?q=What+is+Amazon+Bedrock%3F", nil)
	w := httptest.NewRecorder()
	handler.Stream(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.True(t, w.Flushed)

	events := readSSE(t, w.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, domain.StepStart, events[0].Step)
	assert.Equal(t, domain.StepComplete, events[2].Step)
	require.NotNil(t, events[2].FinalResponse)
	assert.Equal(t, "A managed service.", events[2].FinalResponse.Answer)
	assert.Equal(t, []string{"doc1.txt"}, events[2].FinalResponse.Sources)
}

func TestQueryHandler_StreamEmptyQuery(t *testing.T) {
	runner := new(MockQueryRunner)
	handler := NewQueryHandler(runner, 0, nil)

	w := httptest.NewRecorder()
	handler.Stream(w, httptest.NewRequest(http.MethodGet, "/stream_query?q=", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestQueryHandler_Query(t *testing.T) {
	t.Run("returns final response", func(t *testing.T) {
		runner := new(MockQueryRunner)
		runner.On("Run", mock.Anything, "What is Amazon Bedrock?").Return(completedRun())
		handler := NewQueryHandler(runner, 0, nil)

		req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"What is Amazon Bedrock?"}`))
		w := httptest.NewRecorder()
		handler.Query(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var result struct {
			Data domain.FinalResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "A managed service.", result.Data.Answer)
		assert.False(t, result.Data.Cached)
	})

	t.Run("maps run failure", func(t *testing.T) {
		runner := new(MockQueryRunner)
		runner.On("Run", mock.Anything, "slow").Return([]domain.PipelineEvent{
			domain.NewEvent(domain.StepStart, "Processing query: slow", nil),
			domain.ErrorEvent(domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, "stage timed out", context.DeadlineExceeded)),
		})
		handler := NewQueryHandler(runner, 0, nil)

		w := httptest.NewRecorder()
		handler.Query(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"slow"}`)))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		var result api.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, domain.ErrCodeTimeout, result.Code)
		assert.Contains(t, result.Error, "stage timed out")
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		handler := NewQueryHandler(new(MockQueryRunner), 0, nil)

		w := httptest.NewRecorder()
		handler.Query(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`not json`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		handler := NewQueryHandler(new(MockQueryRunner), 0, nil)

		w := httptest.NewRecorder()
		handler.Query(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"  "}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
