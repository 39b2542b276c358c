package domain

import (
	"errors"
	"fmt"
)

// Step identifies a transition in an orchestration run.
type Step string

const (
	StepStart        Step = "start"
	StepRouter       Step = "router"
	StepCacheCheck   Step = "cache_check"
	StepAnalysis     Step = "query_agent"
	StepRetrieval    Step = "retrieval_agent"
	StepSynthesis    Step = "synthesis_agent"
	StepVerification Step = "verifier_agent"
	StepCacheStore   Step = "cache_store"
	StepComplete     Step = "complete"
	StepError        Step = "error"
)

// IsTerminal reports whether no event can follow s in a run.
func (s Step) IsTerminal() bool {
	return s == StepComplete || s == StepError
}

// IsValid reports whether s is one of the known steps.
func (s Step) IsValid() bool {
	switch s {
	case StepStart, StepRouter, StepCacheCheck, StepAnalysis, StepRetrieval,
		StepSynthesis, StepVerification, StepCacheStore, StepComplete, StepError:
		return true
	}
	return false
}

// PipelineEvent is one progress notification of a run. The last event of a
// run is always StepComplete (with FinalResponse set) or StepError.
type PipelineEvent struct {
	Step          Step           `json:"step"`
	Message       string         `json:"message"`
	Data          any            `json:"data,omitempty"`
	FinalResponse *FinalResponse `json:"final_response,omitempty"`
}

// NewEvent creates a non-terminal event.
func NewEvent(step Step, message string, data any) PipelineEvent {
	return PipelineEvent{Step: step, Message: message, Data: data}
}

// CompleteEvent creates the terminal success event.
func CompleteEvent(resp *FinalResponse) PipelineEvent {
	return PipelineEvent{Step: StepComplete, Message: "Workflow finished", FinalResponse: resp}
}

// ErrorEvent creates the terminal failure event. The error code is carried
// in Data for DomainErrors.
func ErrorEvent(err error) PipelineEvent {
	ev := PipelineEvent{Step: StepError, Message: err.Error()}
	var de *DomainError
	if errors.As(err, &de) {
		ev.Data = map[string]string{"code": de.Code}
	}
	return ev
}

// ErrorCode returns the DomainError code carried by an error event, or "".
func (e PipelineEvent) ErrorCode() string {
	switch data := e.Data.(type) {
	case map[string]string:
		return data["code"]
	case map[string]any:
		code, _ := data["code"].(string)
		return code
	}
	return ""
}

// UnverifiedWarning is attached to responses whose verification failed.
const UnverifiedWarning = "The generated answer could not be verified against the provided context."

// FinalResponse is the terminal artifact of one orchestration run.
type FinalResponse struct {
	Query        string              `json:"query"`
	Answer       string              `json:"answer"`
	ContextUsed  []ContextChunk      `json:"context_used"`
	Sources      []string            `json:"sources"`
	Verification *VerificationResult `json:"verification"`
	Cached       bool                `json:"cached"`
	Similarity   *float64            `json:"similarity,omitempty"`
	Warning      string              `json:"warning,omitempty"`
}

// NewFinalResponse builds the response of a freshly computed run. The answer
// is returned as-is; a failed verification only adds a warning.
func NewFinalResponse(query, answer string, chunks []ContextChunk, verification VerificationResult) *FinalResponse {
	if chunks == nil {
		chunks = []ContextChunk{}
	}
	resp := &FinalResponse{
		Query:        query,
		Answer:       answer,
		ContextUsed:  chunks,
		Sources:      ChunkSources(chunks),
		Verification: &verification,
	}
	if !verification.IsValid {
		resp.Warning = UnverifiedWarning
	}
	return resp
}

// NewCachedResponse builds the response served from a cache hit.
func NewCachedResponse(query string, hit *CacheHit) *FinalResponse {
	similarity := hit.Similarity
	sources := hit.Entry.Sources
	if sources == nil {
		sources = []string{}
	}
	resp := &FinalResponse{
		Query:        query,
		Answer:       hit.Entry.Answer,
		ContextUsed:  []ContextChunk{},
		Sources:      sources,
		Verification: hit.Entry.Verification,
		Cached:       true,
		Similarity:   &similarity,
	}
	if hit.Entry.Verification != nil && !hit.Entry.Verification.IsValid {
		resp.Warning = UnverifiedWarning
	}
	return resp
}

func (r *FinalResponse) String() string {
	return fmt.Sprintf("FinalResponse{query=%q cached=%t chunks=%d}", r.Query, r.Cached, len(r.ContextUsed))
}
