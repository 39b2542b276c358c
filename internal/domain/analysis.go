package domain

// RetrievalStrategy names how context should be fetched for a query.
type RetrievalStrategy string

const (
	RetrievalStrategyVectorSimilarity RetrievalStrategy = "vector_similarity"
)

// AnalysisDecision is the analyzer's verdict on a query.
type AnalysisDecision struct {
	NeedsRetrieval bool               `json:"needs_retrieval"`
	Strategy       *RetrievalStrategy `json:"retrieval_strategy"`
	Reasoning      string             `json:"reasoning"`
}

// VerificationResult reports whether an answer is supported by its context.
type VerificationResult struct {
	IsValid   bool   `json:"is_valid"`
	Reasoning string `json:"reasoning"`
}

// ContextChunk is a retrieved unit of grounding text. Score is the search
// backend's distance, so lower is more relevant.
type ContextChunk struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// NoIndexChunk is returned in place of search results when no index exists.
func NoIndexChunk() ContextChunk {
	return ContextChunk{Content: "No index available.", Source: "system"}
}

// ChunkSources returns the source of every chunk, in chunk order.
func ChunkSources(chunks []ContextChunk) []string {
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, c.Source)
	}
	return sources
}
