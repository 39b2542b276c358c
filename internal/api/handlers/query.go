package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/agentrag/internal/api"
	"github.com/cloo-solutions/agentrag/internal/domain"
	"go.uber.org/zap"
)

// QueryRunner starts an orchestration run and streams its events.
type QueryRunner interface {
	Run(ctx context.Context, query string) <-chan domain.PipelineEvent
}

type QueryHandler struct {
	runner QueryRunner
	pacing time.Duration
	logger *zap.Logger
}

// NewQueryHandler creates a QueryHandler. pacing delays each streamed event
// so clients can render progress; zero disables it.
func NewQueryHandler(runner QueryRunner, pacing time.Duration, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{runner: runner, pacing: pacing, logger: logger}
}

type QueryRequest struct {
	Query string `json:"query"`
}

// Stream serves GET /stream_query?q= as server-sent events, one JSON
// PipelineEvent per message.
func (h *QueryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	for ev := range h.runner.Run(ctx, query) {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to encode event", zap.String("step", string(ev.Step)), zap.Error(err))
			payload, _ = json.Marshal(domain.ErrorEvent(err))
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			h.logger.Debug("flush not supported", zap.Error(err))
		}

		if h.pacing > 0 && !ev.Step.IsTerminal() {
			t := time.NewTimer(h.pacing)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return
			}
		}
	}
}

// Query serves POST /query: it runs the pipeline to completion and returns
// the final response.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	var last domain.PipelineEvent
	for ev := range h.runner.Run(r.Context(), req.Query) {
		last = ev
	}

	switch {
	case last.Step == domain.StepComplete && last.FinalResponse != nil:
		api.Success(w, http.StatusOK, last.FinalResponse)
	case last.Step == domain.StepError:
		code := last.ErrorCode()
		status := api.DomainErrorToHTTP(domain.NewDomainError(code, last.Message))
		api.JSON(w, status, api.ErrorResponse{Error: last.Message, Code: code})
	default:
		// The client went away before the run finished.
		h.logger.Debug("query abandoned", zap.Error(r.Context().Err()))
	}
}
