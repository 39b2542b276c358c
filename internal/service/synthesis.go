package service

import (
	"context"

	"github.com/cloo-solutions/agentrag/internal/domain"
)

// Synthesizer answers a query from the supplied context only.
type Synthesizer struct {
	llm CompletionClient
}

func NewSynthesizer(llm CompletionClient) *Synthesizer {
	return &Synthesizer{llm: llm}
}

func (s *Synthesizer) Synthesize(ctx context.Context, query string, chunks []domain.ContextChunk) (string, error) {
	return s.llm.Generate(ctx, synthesisSystemPrompt+formatContext(chunks), query, synthesisTemperature)
}
