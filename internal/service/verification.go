package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"go.uber.org/zap"
)

const (
	verificationFallbackReasoning       = "Error in verification parsing, assuming valid to avoid blockage."
	strictVerificationFallbackReasoning = "Error in verification parsing, treating answer as unverified."
)

// Verifier checks an answer against the context it was generated from.
type Verifier struct {
	llm    CompletionClient
	strict bool
	logger *zap.Logger
}

// NewVerifier creates a Verifier. With strict set, an unreadable model reply
// marks the answer invalid instead of valid.
func NewVerifier(llm CompletionClient, strict bool, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{llm: llm, strict: strict, logger: logger}
}

func (v *Verifier) Verify(ctx context.Context, query, answer string, chunks []domain.ContextChunk) (domain.VerificationResult, error) {
	system := verifierSystemPrompt + formatContext(chunks)
	user := fmt.Sprintf("Query: %s\nAnswer: %s", query, answer)

	reply, err := v.llm.Generate(ctx, system, user, verifierTemperature)
	if err != nil {
		return domain.VerificationResult{}, err
	}

	parsed := parseJSONReply[domain.VerificationResult](reply)
	if !parsed.ok() {
		v.logger.Warn("verification reply not parseable",
			zap.Error(parsed.err),
			zap.Bool("strict", v.strict),
		)
		return verificationFallback(v.strict), nil
	}

	return parsed.value, nil
}

func verificationFallback(strict bool) domain.VerificationResult {
	if strict {
		return domain.VerificationResult{IsValid: false, Reasoning: strictVerificationFallbackReasoning}
	}
	return domain.VerificationResult{IsValid: true, Reasoning: verificationFallbackReasoning}
}
