package jobs

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/agentrag/internal/service"
	"go.uber.org/zap"
)

// Syncer brings the similarity index up to date with the document store.
type Syncer interface {
	Sync(ctx context.Context) (*service.IngestReport, error)
}

// IngestWorker re-indexes changed documents on each poll.
type IngestWorker struct {
	syncer Syncer
	logger *zap.Logger
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(syncer Syncer, logger *zap.Logger) *IngestWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestWorker{syncer: syncer, logger: logger}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	report, err := w.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync index: %w", err)
	}

	for source, reason := range report.Failed {
		w.logger.Warn("document not indexed", zap.String("source", source), zap.String("reason", reason))
	}
	return nil
}
