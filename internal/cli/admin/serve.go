package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/agentrag/internal/api/handlers"
	"github.com/cloo-solutions/agentrag/internal/database"
	"github.com/cloo-solutions/agentrag/internal/jobs"
	"github.com/cloo-solutions/agentrag/internal/metrics"
	"github.com/cloo-solutions/agentrag/internal/repository"
	"github.com/cloo-solutions/agentrag/internal/server"
	"github.com/cloo-solutions/agentrag/internal/service"
	"github.com/cloo-solutions/agentrag/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the agentrag query server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	cfg, logger := d.cfg, d.logger

	// 10% of traces in production, all of them elsewhere
	sampleRate := 1.0
	if cfg.Environment == "production" {
		sampleRate = 0.1
	}
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownTelemetry()
	}

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		source, _ := cmd.Flags().GetString("migrations")
		if err := database.Migrate(cfg.DatabaseURL, source, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	llm, err := d.newLLM()
	if err != nil {
		return err
	}
	fast := llm.WithChatModel(cfg.FastChatModel)

	store, err := d.newDocumentStore(ctx)
	if err != nil {
		return err
	}

	m := metrics.New()
	semanticCache := d.newCache()
	index := repository.NewChunkRepository(d.pool)

	orchestrator := service.NewOrchestrator(service.OrchestratorConfig{
		Embedder:     llm,
		Cache:        semanticCache,
		Analyzer:     service.NewQueryAnalyzer(fast, logger.Named("analyzer")),
		Retriever:    service.NewRetriever(llm, index, cfg.RetrievalTopK, logger.Named("retrieval")),
		Synthesizer:  service.NewSynthesizer(llm),
		Verifier:     service.NewVerifier(fast, cfg.VerifyStrictParse, logger.Named("verifier")),
		QueryLog:     repository.NewQueryLogRepository(d.pool),
		Metrics:      m,
		Logger:       logger.Named("orchestrator"),
		StageTimeout: cfg.StageTimeout,
	})

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var indexWorker *jobs.Worker
	if cfg.IndexPollInterval > 0 {
		ingest := d.newIngestService(store, llm, m)
		indexWorker = jobs.NewWorker(jobs.NewIngestWorker(ingest, logger.Named("ingest")), cfg.IndexPollInterval, logger)
		go indexWorker.Start(workerCtx)
		logger.Info("index worker started", zap.Duration("interval", cfg.IndexPollInterval))
	}

	router := server.NewRouter(server.RouterConfig{
		QueryHandler:    handlers.NewQueryHandler(orchestrator, cfg.StreamPacing, logger.Named("http")),
		CacheHandler:    handlers.NewCacheHandler(semanticCache),
		DocumentHandler: handlers.NewDocumentHandler(service.NewDocumentService(store, logger.Named("documents"))),
		Health:          handlers.Health(cfg.Provider(), cfg.Environment),
		Metrics:         m.Handler(),
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	logger.Info("shutting down")

	if indexWorker != nil {
		indexWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
