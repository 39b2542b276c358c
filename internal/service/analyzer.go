package service

import (
	"context"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"go.uber.org/zap"
)

const analysisFallbackReasoning = "Error parsing LLM response, defaulting to retrieval."

// QueryAnalyzer asks the model whether a query needs knowledge base context.
type QueryAnalyzer struct {
	llm    CompletionClient
	logger *zap.Logger
}

func NewQueryAnalyzer(llm CompletionClient, logger *zap.Logger) *QueryAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryAnalyzer{llm: llm, logger: logger}
}

// analysisReply mirrors the JSON the model is asked to produce.
type analysisReply struct {
	NeedsRetrieval bool    `json:"needs_retrieval"`
	Strategy       *string `json:"retrieval_strategy"`
	Reasoning      string  `json:"reasoning"`
}

// Analyze returns the model's decision. Unparseable replies fall back to
// retrieving; only a failed completion call is returned as an error.
func (a *QueryAnalyzer) Analyze(ctx context.Context, query string) (domain.AnalysisDecision, error) {
	reply, err := a.llm.Generate(ctx, analyzerSystemPrompt, query, analyzerTemperature)
	if err != nil {
		return domain.AnalysisDecision{}, err
	}

	parsed := parseJSONReply[analysisReply](reply)
	if !parsed.ok() {
		a.logger.Warn("analysis reply not parseable, defaulting to retrieval",
			zap.Error(parsed.err),
			zap.Int("reply_len", len(reply)),
		)
		return analysisFallback(), nil
	}

	return decisionFromReply(parsed.value), nil
}

// analysisFallback is the decision used when the model reply cannot be read.
func analysisFallback() domain.AnalysisDecision {
	strategy := domain.RetrievalStrategyVectorSimilarity
	return domain.AnalysisDecision{
		NeedsRetrieval: true,
		Strategy:       &strategy,
		Reasoning:      analysisFallbackReasoning,
	}
}

// decisionFromReply keeps only strategies the retriever implements.
func decisionFromReply(r analysisReply) domain.AnalysisDecision {
	d := domain.AnalysisDecision{
		NeedsRetrieval: r.NeedsRetrieval,
		Reasoning:      r.Reasoning,
	}
	if r.Strategy != nil && domain.RetrievalStrategy(*r.Strategy) == domain.RetrievalStrategyVectorSimilarity {
		strategy := domain.RetrievalStrategyVectorSimilarity
		d.Strategy = &strategy
	}
	return d
}
