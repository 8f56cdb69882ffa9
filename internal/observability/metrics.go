package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the research graph service.
// Metrics are organized by subsystem: runs, stages, searches, papers, sources,
// professors, graphs, and LLM operations. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// RunsStarted counts the total number of discovery runs initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts the total number of runs that finished successfully.
	RunsCompleted prometheus.Counter

	// RunsFailed counts the total number of runs that ended in failure.
	RunsFailed prometheus.Counter

	// RunDuration observes the end-to-end duration of runs in seconds.
	RunDuration prometheus.Histogram

	// StageDuration observes per-stage duration in seconds, labeled by stage.
	StageDuration *prometheus.HistogramVec

	// StageErrors counts stage failures, labeled by stage and outcome
	// (failed, degraded, skipped).
	StageErrors *prometheus.CounterVec

	// IntentDegraded counts runs where intent extraction fell back to the
	// raw query.
	IntentDegraded prometheus.Counter

	// SearchesStarted counts searches initiated, labeled by paper source.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by paper source.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by paper source.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by paper source.
	SearchDuration *prometheus.HistogramVec

	// PapersDiscovered counts the total number of unique papers discovered.
	PapersDiscovered prometheus.Counter

	// PapersDuplicate counts papers dropped during fingerprint deduplication.
	PapersDuplicate prometheus.Counter

	// PapersBySource counts papers discovered, labeled by paper source.
	PapersBySource *prometheus.CounterVec

	// AbstractsBackfilled counts abstracts recovered from the fallback provider.
	AbstractsBackfilled prometheus.Counter

	// AbstractBackfillsFailed counts abstract backfill attempts that gave up.
	AbstractBackfillsFailed prometheus.Counter

	// ProfessorsExtracted counts professors produced by extraction across all runs.
	ProfessorsExtracted prometheus.Counter

	// ProfessorsPerRun observes the distribution of professor counts per run.
	ProfessorsPerRun prometheus.Histogram

	// GraphNodes observes the node count of assembled graphs.
	GraphNodes prometheus.Histogram

	// GraphLinks observes the link count of assembled graphs.
	GraphLinks prometheus.Histogram

	// GraphsTruncated counts graphs that hit the max node budget.
	GraphsTruncated prometheus.Counter

	// SourceRequestsTotal counts HTTP requests to paper source APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to paper source APIs, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRateLimited counts rate-limited responses from paper source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Runs
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of discovery runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of discovery runs completed successfully",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of discovery runs that failed",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of discovery runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Stages
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		StageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Total number of stage failures by stage and outcome",
		}, []string{"stage", "outcome"}),
		IntentDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_degraded_total",
			Help:      "Total number of runs where intent extraction degraded to the raw query",
		}),

		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of paper searches started by source",
		}, []string{"source"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of paper searches completed by source",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of paper searches that failed by source",
		}, []string{"source"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of paper searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),

		// Papers
		PapersDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_discovered_total",
			Help:      "Total number of unique papers discovered",
		}),
		PapersDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of duplicate papers dropped during deduplication",
		}),
		PapersBySource: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_by_source_total",
			Help:      "Total number of papers discovered by source",
		}, []string{"source"}),
		AbstractsBackfilled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abstracts_backfilled_total",
			Help:      "Total number of abstracts recovered from the fallback provider",
		}),
		AbstractBackfillsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abstract_backfills_failed_total",
			Help:      "Total number of abstract backfill attempts that gave up",
		}),

		// Professors and graphs
		ProfessorsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "professors_extracted_total",
			Help:      "Total number of professors extracted",
		}),
		ProfessorsPerRun: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "professors_per_run",
			Help:      "Number of professors extracted per run",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		GraphNodes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Number of nodes in assembled graphs",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		GraphLinks: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_links",
			Help:      "Number of links in assembled graphs",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}),
		GraphsTruncated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphs_truncated_total",
			Help:      "Total number of graphs truncated to the node budget",
		}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to paper sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to paper sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from paper sources",
		}, []string{"source"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),
	}
}

// RecordRunStarted records that a run has started.
func (m *Metrics) RecordRunStarted() {
	m.RunsStarted.Inc()
}

// RecordRunCompleted records that a run has completed.
func (m *Metrics) RecordRunCompleted(durationSeconds float64) {
	m.RunsCompleted.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunFailed records that a run has failed.
func (m *Metrics) RecordRunFailed(durationSeconds float64) {
	m.RunsFailed.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordStageDuration records the duration of a pipeline stage.
func (m *Metrics) RecordStageDuration(stage string, durationSeconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageError records a stage failure with its outcome.
func (m *Metrics) RecordStageError(stage, outcome string) {
	m.StageErrors.WithLabelValues(stage, outcome).Inc()
}

// RecordIntentDegraded records that intent extraction fell back to the raw query.
func (m *Metrics) RecordIntentDegraded() {
	m.IntentDegraded.Inc()
}

// RecordSearchStarted records that a search has started.
func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(source string, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(source string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordPapersDiscovered records papers discovered from a source.
func (m *Metrics) RecordPapersDiscovered(source string, count int) {
	m.PapersDiscovered.Add(float64(count))
	m.PapersBySource.WithLabelValues(source).Add(float64(count))
}

// RecordPapersDuplicate records papers dropped as duplicates.
func (m *Metrics) RecordPapersDuplicate(count int) {
	m.PapersDuplicate.Add(float64(count))
}

// RecordAbstractBackfilled records a successful abstract backfill.
func (m *Metrics) RecordAbstractBackfilled() {
	m.AbstractsBackfilled.Inc()
}

// RecordAbstractBackfillFailed records an abandoned abstract backfill.
func (m *Metrics) RecordAbstractBackfillFailed() {
	m.AbstractBackfillsFailed.Inc()
}

// RecordProfessorsExtracted records the professors produced for a run.
func (m *Metrics) RecordProfessorsExtracted(count int) {
	m.ProfessorsExtracted.Add(float64(count))
	m.ProfessorsPerRun.Observe(float64(count))
}

// RecordGraphAssembled records the shape of an assembled graph.
func (m *Metrics) RecordGraphAssembled(nodes, links int, truncated bool) {
	m.GraphNodes.Observe(float64(nodes))
	m.GraphLinks.Observe(float64(links))
	if truncated {
		m.GraphsTruncated.Inc()
	}
}

// RecordSourceRequest records an HTTP request to a paper source API.
func (m *Metrics) RecordSourceRequest(source, endpoint string) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
}

// RecordSourceRequestFailed records a failed HTTP request to a paper source API.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a paper source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordLLMRequest records a successful LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

// RecordLLMTokens records tokens used by an LLM operation.
func (m *Metrics) RecordLLMTokens(operation, model string, promptTokens, completionTokens int) {
	m.LLMTokensUsed.WithLabelValues(operation, model, "prompt").Add(float64(promptTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "completion").Add(float64(completionTokens))
}
