package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepConstants(t *testing.T) {
	tests := []struct {
		name     string
		step     Step
		expected string
	}{
		{"Start", StepStart, "start"},
		{"Router", StepRouter, "router"},
		{"CacheCheck", StepCacheCheck, "cache_check"},
		{"Analysis", StepAnalysis, "query_agent"},
		{"Retrieval", StepRetrieval, "retrieval_agent"},
		{"Synthesis", StepSynthesis, "synthesis_agent"},
		{"Verification", StepVerification, "verifier_agent"},
		{"CacheStore", StepCacheStore, "cache_store"},
		{"Complete", StepComplete, "complete"},
		{"Error", StepError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.step))
			assert.True(t, tt.step.IsValid())
		})
	}

	assert.False(t, Step("retrieval").IsValid())
}

func TestStep_IsTerminal(t *testing.T) {
	assert.True(t, StepComplete.IsTerminal())
	assert.True(t, StepError.IsTerminal())
	assert.False(t, StepStart.IsTerminal())
	assert.False(t, StepCacheStore.IsTerminal())
}

func TestNewFinalResponse_WarningPropagation(t *testing.T) {
	chunks := []ContextChunk{{Content: "Bedrock is...", Source: "doc1.txt", Score: 0.1}}

	valid := NewFinalResponse("q", "a", chunks, VerificationResult{IsValid: true, Reasoning: "ok"})
	assert.Empty(t, valid.Warning)
	assert.False(t, valid.Cached)
	assert.Equal(t, []string{"doc1.txt"}, valid.Sources)

	invalid := NewFinalResponse("q", "a", chunks, VerificationResult{IsValid: false, Reasoning: "unsupported"})
	assert.NotEmpty(t, invalid.Warning)
	assert.Equal(t, "a", invalid.Answer)
}

func TestNewFinalResponse_NilChunksSerializeAsEmptyArray(t *testing.T) {
	resp := NewFinalResponse("q", "a", nil, VerificationResult{IsValid: true})

	payload, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, []interface{}{}, decoded["context_used"])
	assert.Equal(t, []interface{}{}, decoded["sources"])
	_, hasWarning := decoded["warning"]
	assert.False(t, hasWarning)
}

func TestNewCachedResponse(t *testing.T) {
	hit := &CacheHit{
		Entry: CacheEntry{
			ID:           7,
			Query:        "original",
			Answer:       "cached answer",
			Sources:      []string{"doc1.txt"},
			Verification: &VerificationResult{IsValid: true, Reasoning: "ok"},
		},
		Similarity: 0.9812,
	}

	resp := NewCachedResponse("paraphrase", hit)

	assert.True(t, resp.Cached)
	assert.Equal(t, "paraphrase", resp.Query)
	assert.Equal(t, "cached answer", resp.Answer)
	assert.Empty(t, resp.ContextUsed)
	assert.Equal(t, []string{"doc1.txt"}, resp.Sources)
	require.NotNil(t, resp.Similarity)
	assert.Equal(t, 0.9812, *resp.Similarity)
	assert.Empty(t, resp.Warning)
}

func TestErrorEvent(t *testing.T) {
	ev := ErrorEvent(errors.New("boom"))

	assert.Equal(t, StepError, ev.Step)
	assert.Equal(t, "boom", ev.Message)
	assert.Nil(t, ev.FinalResponse)
	assert.Empty(t, ev.ErrorCode())

	timeout := ErrorEvent(NewDomainErrorWithCause(ErrCodeTimeout, "stage timed out", errors.New("deadline")))
	assert.Equal(t, ErrCodeTimeout, timeout.ErrorCode())
}

func TestPipelineEvent_ErrorCodeAfterDecode(t *testing.T) {
	ev := PipelineEvent{Step: StepError, Data: map[string]any{"code": ErrCodeValidation}}

	assert.Equal(t, ErrCodeValidation, ev.ErrorCode())
}

func TestDomainError_Is(t *testing.T) {
	wrapped := NewDomainErrorWithCause(ErrCodeDependencyFailure, "query analysis failed", errors.New("rate limited"))

	assert.True(t, errors.Is(wrapped, ErrAnalysisFailed))
	assert.False(t, errors.Is(wrapped, ErrSynthesisFailed))
	assert.Contains(t, wrapped.Error(), "rate limited")
}
