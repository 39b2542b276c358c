package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/agentrag/internal/cache"
	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/cloo-solutions/agentrag/internal/metrics"
	"github.com/cloo-solutions/agentrag/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStageTimeout = 60 * time.Second

	eventBuffer     = 16
	queryLogTimeout = 5 * time.Second
)

// vectorRetriever is implemented by retrievers that can reuse the query
// vector computed for the cache lookup.
type vectorRetriever interface {
	RetrieveVector(ctx context.Context, vec []float32) ([]domain.ContextChunk, error)
}

// OrchestratorConfig wires the stages of a run. QueryLog and Metrics are
// optional.
type OrchestratorConfig struct {
	Embedder     EmbeddingClient
	Cache        SemanticCache
	Analyzer     Analyzer
	Retriever    ContextRetriever
	Synthesizer  AnswerSynthesizer
	Verifier     AnswerVerifier
	QueryLog     QueryLogger
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	StageTimeout time.Duration
}

// Orchestrator answers queries through the cache or the full
// analyze/retrieve/synthesize/verify pipeline, reporting progress as events.
type Orchestrator struct {
	embedder     EmbeddingClient
	cache        SemanticCache
	analyzer     Analyzer
	retriever    ContextRetriever
	synthesizer  AnswerSynthesizer
	verifier     AnswerVerifier
	queryLog     QueryLogger
	metrics      *metrics.Metrics
	logger       *zap.Logger
	stageTimeout time.Duration
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &Orchestrator{
		embedder:     cfg.Embedder,
		cache:        cfg.Cache,
		analyzer:     cfg.Analyzer,
		retriever:    cfg.Retriever,
		synthesizer:  cfg.Synthesizer,
		verifier:     cfg.Verifier,
		queryLog:     cfg.QueryLog,
		metrics:      cfg.Metrics,
		logger:       logger,
		stageTimeout: timeout,
	}
}

// Run processes query in a new goroutine and returns its event stream. The
// stream ends with exactly one StepComplete or StepError event and is then
// closed. Cancelling ctx stops the run at the next transition; nothing is
// cached for a cancelled run.
func (o *Orchestrator) Run(ctx context.Context, query string) <-chan domain.PipelineEvent {
	events := make(chan domain.PipelineEvent, eventBuffer)
	go o.run(ctx, query, events)
	return events
}

// run holds the state of one query.
type run struct {
	o       *Orchestrator
	ctx     context.Context
	id      string
	query   string
	events  chan<- domain.PipelineEvent
	logger  *zap.Logger
	started time.Time
	entry   QueryLogEntry
}

func (o *Orchestrator) run(ctx context.Context, query string, events chan<- domain.PipelineEvent) {
	defer close(events)

	id := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Run", telemetry.SpanAttributes{
		RunID:     id,
		Operation: "query",
	})
	defer span.End()

	r := &run{
		o:       o,
		ctx:     ctx,
		id:      id,
		query:   query,
		events:  events,
		logger:  o.logger.With(zap.String("run_id", id)),
		started: time.Now(),
		entry:   QueryLogEntry{RunID: id, Query: query},
	}
	defer r.record()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("run panicked", zap.Any("panic", p), zap.Stack("stack"))
			r.fail(domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, domain.ErrRunAborted.Message, fmt.Errorf("panic: %v", p)))
		}
	}()

	r.execute()
}

func (r *run) execute() {
	if strings.TrimSpace(r.query) == "" {
		r.fail(domain.ErrEmptyQuery)
		return
	}

	if !r.emit(domain.NewEvent(domain.StepStart, fmt.Sprintf("Processing query: %s", r.query), nil)) {
		return
	}
	if !r.emit(domain.NewEvent(domain.StepRouter, "Checking semantic cache...", nil)) {
		return
	}

	vec, err := stage(r, "embed", func(ctx context.Context) ([]float32, error) {
		return r.o.embedder.GenerateEmbedding(ctx, r.query)
	})
	if err != nil {
		r.fail(stageFailure(domain.ErrEmbeddingFailed, err))
		return
	}

	if hit := r.lookup(vec); hit != nil {
		data := map[string]any{
			"hit":           true,
			"similarity":    hit.Similarity,
			"matched_query": hit.Entry.Query,
		}
		msg := fmt.Sprintf("Cache hit (similarity %.4f). Returning cached answer.", hit.Similarity)
		if !r.emit(domain.NewEvent(domain.StepCacheCheck, msg, data)) {
			return
		}
		r.complete(domain.NewCachedResponse(r.query, hit), QueryOutcomeCached)
		return
	}
	if !r.emit(domain.NewEvent(domain.StepCacheCheck, "Cache miss. Running full pipeline.", map[string]any{"hit": false})) {
		return
	}

	if !r.emit(domain.NewEvent(domain.StepRouter, "Delegating to Query Analysis and Retrieval Agents in parallel...", nil)) {
		return
	}
	sp, err := r.speculate(vec)
	if err != nil {
		r.fail(stageFailure(domain.ErrAnalysisFailed, err))
		return
	}
	decision := sp.decision
	r.entry.NeedsRetrieval = &decision.NeedsRetrieval
	if !r.emit(domain.NewEvent(domain.StepAnalysis, "Analysis Complete.", decision)) {
		return
	}

	chunks := mergeContext(decision, sp.chunks, sp.retrievalErr)
	if decision.NeedsRetrieval {
		msg := fmt.Sprintf("Retrieved %d chunks.", len(chunks))
		if sp.retrievalErr != nil {
			r.logger.Warn("retrieval failed, continuing without context", zap.Error(sp.retrievalErr))
			msg = "Retrieval failed. Proceeding without context."
		}
		if !r.emit(domain.NewEvent(domain.StepRetrieval, msg, chunks)) {
			return
		}
	} else if !r.emit(domain.NewEvent(domain.StepRouter, "No retrieval needed. Proceeding to synthesis.", nil)) {
		return
	}

	if !r.emit(domain.NewEvent(domain.StepRouter, "Delegating to Synthesis Agent...", nil)) {
		return
	}
	answer, err := stage(r, string(domain.StepSynthesis), func(ctx context.Context) (string, error) {
		return r.o.synthesizer.Synthesize(ctx, r.query, chunks)
	})
	if err != nil {
		r.fail(stageFailure(domain.ErrSynthesisFailed, err))
		return
	}
	if !r.emit(domain.NewEvent(domain.StepSynthesis, "Answer generated.", map[string]string{"answer": answer})) {
		return
	}

	if !r.emit(domain.NewEvent(domain.StepRouter, "Delegating to Verifier Agent...", nil)) {
		return
	}
	verification, err := stage(r, string(domain.StepVerification), func(ctx context.Context) (domain.VerificationResult, error) {
		return r.o.verifier.Verify(ctx, r.query, answer, chunks)
	})
	if err != nil {
		r.fail(stageFailure(domain.ErrVerificationFailed, err))
		return
	}
	if !r.emit(domain.NewEvent(domain.StepVerification, "Verification complete.", verification)) {
		return
	}

	resp := domain.NewFinalResponse(r.query, answer, chunks, verification)

	if r.ctx.Err() != nil {
		r.logger.Info("run cancelled before cache store")
		return
	}
	if !r.emit(r.store(vec, resp)) {
		return
	}

	r.complete(resp, QueryOutcomeAnswered)
}

// speculation is the joined outcome of the concurrent analysis and retrieval.
type speculation struct {
	decision     domain.AnalysisDecision
	chunks       []domain.ContextChunk
	retrievalErr error
}

// speculate runs analysis and retrieval concurrently and waits for both.
// Retrieval is never cut short by the analysis result, and its failure is
// reported in the speculation rather than as an error.
func (r *run) speculate(vec []float32) (speculation, error) {
	var (
		g  errgroup.Group
		sp speculation
	)

	g.Go(func() (err error) {
		defer recoverInto(&err, "analysis")
		sp.decision, err = stage(r, string(domain.StepAnalysis), func(ctx context.Context) (domain.AnalysisDecision, error) {
			return r.o.analyzer.Analyze(ctx, r.query)
		})
		return err
	})
	g.Go(func() error {
		sp.chunks, sp.retrievalErr = r.retrieve(vec)
		return nil
	})

	err := g.Wait()
	return sp, err
}

func (r *run) retrieve(vec []float32) (chunks []domain.ContextChunk, err error) {
	defer recoverInto(&err, "retrieval")
	return stage(r, string(domain.StepRetrieval), func(ctx context.Context) ([]domain.ContextChunk, error) {
		if vr, ok := r.o.retriever.(vectorRetriever); ok {
			return vr.RetrieveVector(ctx, vec)
		}
		return r.o.retriever.Retrieve(ctx, r.query)
	})
}

// mergeContext picks the context synthesis will see: the retrieval result
// verbatim when the analysis asked for it, otherwise nothing.
func mergeContext(decision domain.AnalysisDecision, retrieved []domain.ContextChunk, retrievalErr error) []domain.ContextChunk {
	if !decision.NeedsRetrieval || retrievalErr != nil || retrieved == nil {
		return []domain.ContextChunk{}
	}
	return retrieved
}

// lookup returns a cache hit or nil. A failing cache is treated as a miss.
func (r *run) lookup(vec []float32) *domain.CacheHit {
	hit, err := stage(r, "cache_lookup", func(ctx context.Context) (*domain.CacheHit, error) {
		return r.o.cache.Lookup(ctx, vec)
	})
	switch {
	case err != nil:
		r.logger.Warn("cache lookup failed, treating as miss", zap.Error(err))
		r.o.metrics.RecordCacheLookup(metrics.CacheError)
		return nil
	case hit == nil:
		r.o.metrics.RecordCacheLookup(metrics.CacheMiss)
		return nil
	default:
		r.o.metrics.RecordCacheLookup(metrics.CacheHit)
		return hit
	}
}

// store writes the response to the cache and returns the event describing
// the outcome. A failed write does not fail the run.
func (r *run) store(vec []float32, resp *domain.FinalResponse) domain.PipelineEvent {
	_, err := stage(r, string(domain.StepCacheStore), func(ctx context.Context) (*domain.CacheEntry, error) {
		return r.o.cache.Store(ctx, cache.StoreInput{
			Query:        r.query,
			Vector:       vec,
			Answer:       resp.Answer,
			Sources:      resp.Sources,
			Verification: resp.Verification,
		})
	})
	r.o.metrics.RecordCacheWrite(err == nil)
	if err != nil {
		r.logger.Error("cache write failed", zap.Error(err))
		return domain.NewEvent(domain.StepCacheStore, "Failed to cache response.", map[string]any{
			"stored": false,
			"error":  err.Error(),
		})
	}
	return domain.NewEvent(domain.StepCacheStore, "Response cached for future queries.", map[string]any{"stored": true})
}

// emit delivers ev unless the consumer has gone away.
func (r *run) emit(ev domain.PipelineEvent) bool {
	select {
	case r.events <- ev:
		telemetry.AddBreadcrumb(r.ctx, "pipeline", fmt.Sprintf("%s: %s", ev.Step, ev.Message))
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *run) complete(resp *domain.FinalResponse, outcome QueryOutcome) {
	r.entry.Outcome = outcome
	r.entry.Cached = resp.Cached
	r.entry.Similarity = resp.Similarity
	r.entry.ContextCount = len(resp.ContextUsed)
	r.entry.Sources = resp.Sources
	if resp.Verification != nil {
		valid := resp.Verification.IsValid
		r.entry.IsValid = &valid
	}

	r.logger.Info("run complete",
		zap.String("outcome", string(outcome)),
		zap.Int("context_chunks", len(resp.ContextUsed)),
		zap.Bool("unverified", resp.Warning != ""),
		zap.Duration("elapsed", time.Since(r.started)),
	)
	r.emit(domain.CompleteEvent(resp))
}

func (r *run) fail(err error) {
	r.entry.Outcome = QueryOutcomeFailed
	r.entry.Error = err.Error()

	var de *domain.DomainError
	if errors.As(err, &de) && de.Code == domain.ErrCodeValidation {
		r.logger.Info("run rejected", zap.Error(err))
	} else {
		r.logger.Error("run failed", zap.Error(err))
		telemetry.CaptureError(r.ctx, err)
	}
	r.emit(domain.ErrorEvent(err))
}

// record writes metrics and the query log once the run has ended.
func (r *run) record() {
	if r.entry.Outcome == "" {
		r.entry.Outcome = QueryOutcomeAborted
	}
	elapsed := time.Since(r.started)
	r.entry.DurationMs = elapsed.Milliseconds()
	r.o.metrics.RecordRun(string(r.entry.Outcome), elapsed.Seconds())

	if r.o.queryLog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), queryLogTimeout)
	defer cancel()
	if err := r.o.queryLog.LogQuery(ctx, r.entry); err != nil {
		r.logger.Warn("failed to write query log", zap.Error(err))
	}
}

// stage runs fn under the per-stage timeout inside its own span. A deadline
// hit by the stage itself becomes a timeout DomainError.
func stage[T any](r *run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.o.stageTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "Orchestrator."+name, telemetry.SpanAttributes{
		RunID: r.id,
		Stage: name,
	})
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	r.o.metrics.RecordStage(name, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && r.ctx.Err() == nil {
			err = domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, domain.ErrStageTimeout.Message,
				fmt.Errorf("%s exceeded %s: %w", name, r.o.stageTimeout, err))
		}
		span.SetError(err)
		return v, err
	}
	return v, nil
}

// stageFailure tags err with the failing stage unless it already reports a
// timeout.
func stageFailure(sentinel *domain.DomainError, err error) error {
	if errors.Is(err, domain.ErrStageTimeout) {
		return err
	}
	return domain.NewDomainErrorWithCause(sentinel.Code, sentinel.Message, err)
}

func recoverInto(err *error, name string) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("%s panicked: %v", name, p)
	}
}
