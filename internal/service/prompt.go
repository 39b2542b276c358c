package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/agentrag/internal/domain"
)

const (
	analyzerSystemPrompt = "You are a Query Analysis Agent. Your goal is to analyze the following user query " +
		"and decide if information retrieval from the knowledge base is needed to answer it. " +
		"The knowledge base contains information about Amazon Bedrock, AWS IAM, and RAG architectures. " +
		"Return your decision in strict JSON format: " +
		`{"needs_retrieval": bool, "retrieval_strategy": "vector_similarity" | null, "reasoning": str}`

	synthesisSystemPrompt = "You are a Synthesis Agent. Your task is to synthesize an answer to the user's query " +
		"based STRICTLY on the provided retrieved context. " +
		"Do not use outside knowledge. If the context is insufficient, state that clearly." +
		"\n\nRetrieved Context:\n"

	verifierSystemPrompt = "You are a Verification Agent. Verify the following answer against " +
		"the provided context. " +
		"The answer must be fully supported by the context. " +
		"Return strict JSON: " +
		`{"is_valid": bool, "reasoning": str}` +
		"\n\nContext:\n"

	analyzerTemperature  float32 = 0.0
	synthesisTemperature float32 = 0.1
	verifierTemperature  float32 = 0.0
)

// formatContext renders chunks as "Source (<source>): <content>" blocks
// separated by blank lines, in chunk order.
func formatContext(chunks []domain.ContextChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("Source (%s): %s", c.Source, c.Content))
	}
	return strings.Join(parts, "\n\n")
}

// stripCodeFence removes markdown code fences models like to wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// parseResult is the outcome of decoding a model reply. Callers branch on
// ok() and pick their fallback explicitly.
type parseResult[T any] struct {
	value T
	err   error
}

func (r parseResult[T]) ok() bool {
	return r.err == nil
}

// parseJSONReply decodes raw into T after stripping code fences. A bare
// JSON null is a failure.
func parseJSONReply[T any](raw string) parseResult[T] {
	var v *T
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &v); err != nil {
		return parseResult[T]{err: fmt.Errorf("decode model reply: %w", err)}
	}
	if v == nil {
		return parseResult[T]{err: errors.New("decode model reply: null")}
	}
	return parseResult[T]{value: *v}
}
