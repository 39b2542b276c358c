package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/agentrag/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Index the document store once",
		Long:  "Chunk and embed new or changed documents, drop removed ones, and print the report as JSON",
		RunE:  runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	llm, err := d.newLLM()
	if err != nil {
		return err
	}
	store, err := d.newDocumentStore(ctx)
	if err != nil {
		return err
	}

	report, err := d.newIngestService(store, llm, metrics.New()).Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync index: %w", err)
	}
	d.logger.Info("index synchronised",
		zap.Int("indexed", len(report.Indexed)),
		zap.Int("removed", len(report.Removed)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("chunks", report.Chunks),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d document(s) failed to index", len(report.Failed))
	}
	return nil
}
