// Package main provides the entry point for the research graph service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepscience/research-graph-service/internal/config"
	"github.com/deepscience/research-graph-service/internal/cv"
	"github.com/deepscience/research-graph-service/internal/database"
	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/events"
	"github.com/deepscience/research-graph-service/internal/llm"
	"github.com/deepscience/research-graph-service/internal/observability"
	"github.com/deepscience/research-graph-service/internal/outreach"
	"github.com/deepscience/research-graph-service/internal/papersources"
	"github.com/deepscience/research-graph-service/internal/papersources/openalex"
	"github.com/deepscience/research-graph-service/internal/papersources/semanticscholar"
	"github.com/deepscience/research-graph-service/internal/pipeline"
	"github.com/deepscience/research-graph-service/internal/repository"
	"github.com/deepscience/research-graph-service/internal/runstate"
	httpserver "github.com/deepscience/research-graph-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runPersister adapts the run repository to the orchestrator's persistence
// collaborator.
type runPersister struct {
	repo repository.RunRepository
}

func (p *runPersister) SaveRun(ctx context.Context, run *domain.Run) error {
	return p.repo.Save(ctx, run)
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("research-graph-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create repositories.
	runRepo := repository.NewPgRunRepository(db)
	userRepo := repository.NewPgUserRepository(db)

	// Metrics registry.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("researchgraph")
	}

	// LLM client for intent extraction, CV concepts, and outreach emails.
	// An empty provider leaves the client nil; those stages degrade.
	var llmClient llm.Client
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "none":
		logger.Warn().Msg("no LLM provider configured; intent extraction degrades to raw query")
	default:
		llmClient, err = llm.NewClient(llm.FactoryConfig{
			Provider:   cfg.LLM.Provider,
			Timeout:    cfg.LLM.Timeout,
			MaxRetries: cfg.LLM.MaxRetries,
			OpenAI: llm.OpenAIConfig{
				APIKey:  cfg.LLM.OpenAI.APIKey,
				Model:   cfg.LLM.OpenAI.Model,
				BaseURL: cfg.LLM.OpenAI.BaseURL,
			},
			Anthropic: llm.AnthropicConfig{
				APIKey:  cfg.LLM.Anthropic.APIKey,
				Model:   cfg.LLM.Anthropic.Model,
				BaseURL: cfg.LLM.Anthropic.BaseURL,
			},
		})
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		logger.Info().
			Str("provider", llmClient.Provider()).
			Str("model", llmClient.Model()).
			Msg("LLM client ready")
	}

	// Paper source registry. Semantic Scholar doubles as the abstract
	// backfill provider when enabled.
	registry := papersources.NewRegistry()
	var abstracts papersources.AbstractProvider

	if cfg.PaperSources.OpenAlex.Enabled {
		registry.Register(openalex.New(openalex.Config{
			BaseURL:    cfg.PaperSources.OpenAlex.BaseURL,
			Email:      cfg.PaperSources.OpenAlex.Email,
			Timeout:    cfg.PaperSources.OpenAlex.Timeout,
			RateLimit:  cfg.PaperSources.OpenAlex.RateLimit,
			MaxResults: cfg.PaperSources.OpenAlex.MaxResults,
			Enabled:    true,
		}))
		logger.Info().Msg("openalex source registered")
	}
	if cfg.PaperSources.SemanticScholar.Enabled {
		ssClient := semanticscholar.NewClient(semanticscholar.Config{
			BaseURL:    cfg.PaperSources.SemanticScholar.BaseURL,
			APIKey:     cfg.PaperSources.SemanticScholar.APIKey,
			Timeout:    cfg.PaperSources.SemanticScholar.Timeout,
			RateLimit:  cfg.PaperSources.SemanticScholar.RateLimit,
			MaxResults: cfg.PaperSources.SemanticScholar.MaxResults,
			Enabled:    true,
		}, nil)
		registry.Register(ssClient)
		abstracts = ssClient
		logger.Info().Msg("semantic scholar source registered")
	}

	// In-memory state: live runs and uploaded CVs.
	store := runstate.NewStore()
	cvStore := cv.NewStore()

	// Run lifecycle event publisher.
	var publisher pipeline.Publisher
	var kafkaPublisher *events.KafkaPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher = events.NewKafkaPublisher(cfg.Kafka, logger)
		publisher = kafkaPublisher
		defer func() {
			if closeErr := kafkaPublisher.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close kafka publisher")
			}
		}()
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("kafka publisher ready")
	}

	// Discovery pipeline.
	orchestrator := pipeline.NewOrchestrator(pipeline.OrchestratorDeps{
		Store:      store,
		Intent:     pipeline.NewIntentExtractor(llmClient, logger, metrics),
		Search: pipeline.NewSearchStage(registry, abstracts, pipeline.SearchConfig{
			RecencyYears:         cfg.Pipeline.RecencyYears,
			MaxConcurrentQueries: cfg.Pipeline.MaxConcurrentQueries,
			BackfillAttempts:     cfg.Pipeline.AbstractBackfillAttempts,
			BackfillDelay:        cfg.Pipeline.AbstractBackfillDelay,
		}, logger, metrics),
		Extraction:    pipeline.NewExtractionStage(logger, metrics),
		Relationships: pipeline.NewRelationshipBuilder(logger),
		Assembler:     pipeline.NewGraphAssembler(logger, metrics),
		Persister:     &runPersister{repo: runRepo},
		Publisher:     publisher,
		Concepts:      cvStore,
		Logger:        logger,
		Metrics:       metrics,
	})

	// HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DefaultMaxNodes: cfg.Pipeline.DefaultMaxNodes,
		MaxNodesLimit:   cfg.Pipeline.MaxNodesLimit,
		RunTimeout:      cfg.Pipeline.RunTimeout,
	}

	httpSrv := httpserver.NewServer(httpCfg, httpserver.Deps{
		Store:     store,
		Executor:  orchestrator,
		RunRepo:   runRepo,
		UserRepo:  userRepo,
		CVStore:   cvStore,
		Extractor: cv.NewLLMConceptExtractor(llmClient, logger, metrics),
		Emails:    outreach.NewGenerator(llmClient, logger, metrics),
		DB:        db,
		Logger:    logger,
	})

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP REST API server in background.
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("research-graph-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down research-graph-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shut down HTTP REST API server with timeout; this also cancels the
	// contexts of in-flight pipeline runs.
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Shut down metrics server if running.
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("research-graph-service shutdown complete")
	return nil
}
