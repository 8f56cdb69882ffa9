// Package observability provides logging, metrics, and context propagation
// support for the research graph service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for runs, stages, searches, and sources
//   - Context helpers for propagating run identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("run_id", runID).Msg("run started")
//
// Add run context to logger:
//
//	logger = observability.WithRunLogContext(logger, runID, query)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("research_graph")
//
// Record metrics:
//
//	metrics.RecordRunStarted()
//	metrics.RecordPapersDiscovered("openalex", 42)
//	metrics.RecordStageDuration("search", 3.5)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithRunID(ctx, runID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	runID := observability.RunIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - run_id: Discovery run identifier
//   - stage: Pipeline stage (filters, search, extraction, relationships, graph)
//   - query: User's research query
//   - source: Paper source (openalex, semantic_scholar)
//   - topic: Search topic
//   - paper_id: Paper fingerprint identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
