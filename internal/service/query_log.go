package service

// QueryOutcome classifies how a run ended.
type QueryOutcome string

const (
	QueryOutcomeAnswered QueryOutcome = "answered"
	QueryOutcomeCached   QueryOutcome = "cached"
	QueryOutcomeFailed   QueryOutcome = "failed"
	QueryOutcomeAborted  QueryOutcome = "aborted"
)

// QueryLogEntry captures one orchestration run for later evaluation.
type QueryLogEntry struct {
	RunID          string
	Query          string
	Outcome        QueryOutcome
	Cached         bool
	Similarity     *float64
	NeedsRetrieval *bool
	ContextCount   int
	Sources        []string
	IsValid        *bool
	Error          string
	DurationMs     int64
}
