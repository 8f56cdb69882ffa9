package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/observability"
	"github.com/deepscience/research-graph-service/internal/papersources"
)

const (
	// defaultRecencyYears is the fixed lookback window for paper recency.
	defaultRecencyYears = 2

	// defaultMaxConcurrentQueries bounds the per-filter query fan-out.
	defaultMaxConcurrentQueries = 4

	// defaultBackfillAttempts is the number of tries against the abstract
	// fallback provider per paper.
	defaultBackfillAttempts = 2

	// defaultBackfillDelay is the pause between backfill attempts.
	defaultBackfillDelay = 200 * time.Millisecond
)

// SearchConfig tunes the paper search stage.
type SearchConfig struct {
	// RecencyYears is the lookback window in calendar years.
	RecencyYears int

	// MaxConcurrentQueries bounds the concurrent filter-combination queries.
	MaxConcurrentQueries int

	// BackfillAttempts is the total attempts per missing abstract.
	BackfillAttempts int

	// BackfillDelay is the pause between backfill attempts.
	BackfillDelay time.Duration
}

// applyDefaults sets default values for unset configuration fields.
func (c *SearchConfig) applyDefaults() {
	if c.RecencyYears == 0 {
		c.RecencyYears = defaultRecencyYears
	}
	if c.MaxConcurrentQueries == 0 {
		c.MaxConcurrentQueries = defaultMaxConcurrentQueries
	}
	if c.BackfillAttempts == 0 {
		c.BackfillAttempts = defaultBackfillAttempts
	}
	if c.BackfillDelay == 0 {
		c.BackfillDelay = defaultBackfillDelay
	}
}

// SearchStage retrieves recent papers for the extracted filters. Queries for
// each topic/institution combination fan out concurrently through the source
// registry; results merge in first-seen order with fingerprint dedup, and
// papers missing an abstract get a bounded backfill attempt against the
// fallback provider.
type SearchStage struct {
	registry  *papersources.Registry
	abstracts papersources.AbstractProvider
	cfg       SearchConfig
	logger    zerolog.Logger
	metrics   *observability.Metrics

	// now is replaceable in tests to pin the recency window.
	now func() time.Time
}

// NewSearchStage creates a search stage. abstracts may be nil, in which case
// no backfill happens.
func NewSearchStage(registry *papersources.Registry, abstracts papersources.AbstractProvider, cfg SearchConfig, logger zerolog.Logger, metrics *observability.Metrics) *SearchStage {
	cfg.applyDefaults()
	return &SearchStage{
		registry:  registry,
		abstracts: abstracts,
		cfg:       cfg,
		logger:    observability.WithComponent(logger, "search_stage"),
		metrics:   metrics,
		now:       time.Now,
	}
}

// query is one filter combination sent to the registry.
type searchQuery struct {
	topic       string
	institution string
}

// Execute runs all filter-combination queries and returns the deduplicated
// papers in first-seen order. maxPapers is an upper bound hint passed to each
// source, not a hard cap on the merged result. An error is returned only when
// the stage produced nothing usable.
func (s *SearchStage) Execute(ctx context.Context, intent domain.IntentResult, maxPapers int) ([]*domain.Paper, error) {
	queries := buildQueries(intent.Filters)
	if len(queries) == 0 {
		return nil, fmt.Errorf("no search filters derivable: %w", domain.ErrInvalidInput)
	}

	dateFrom := s.now().AddDate(-s.cfg.RecencyYears, 0, 0)

	// Indexed slots keep the merge order deterministic regardless of which
	// goroutine finishes first.
	type querySlot struct {
		results []papersources.SourceResult
	}
	slots := make([]querySlot, len(queries))

	sem := make(chan struct{}, s.cfg.MaxConcurrentQueries)
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q searchQuery) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			params := papersources.SearchParams{
				Query:       buildQueryText(q.topic, intent.Filters.GeoScopes),
				Institution: q.institution,
				DateFrom:    &dateFrom,
				MaxResults:  maxPapers,
			}
			slots[i].results = s.registry.SearchAll(ctx, params)
		}(i, q)
	}
	wg.Wait()

	// Merge in combination order, then source order, deduplicating by
	// fingerprint so the output is stable first-seen order.
	seen := make(map[string]struct{})
	var papers []*domain.Paper
	var failures int
	var queriesRun int
	for i, slot := range slots {
		results := slot.results
		sort.Slice(results, func(a, b int) bool {
			return results[a].Source < results[b].Source
		})
		for _, res := range results {
			queriesRun++
			if res.Error != nil {
				failures++
				if s.metrics != nil {
					s.metrics.RecordSearchFailed(string(res.Source), 0)
				}
				s.logger.Warn().
					Str("source", string(res.Source)).
					Str("topic", queries[i].topic).
					Err(res.Error).
					Msg("source query failed")
				continue
			}
			if s.metrics != nil {
				s.metrics.RecordSearchCompleted(string(res.Source), res.Result.SearchDuration.Seconds())
			}
			fresh := 0
			for _, paper := range res.Result.Papers {
				if _, dup := seen[paper.ID]; dup {
					if s.metrics != nil {
						s.metrics.RecordPapersDuplicate(1)
					}
					continue
				}
				seen[paper.ID] = struct{}{}
				papers = append(papers, paper)
				fresh++
			}
			if s.metrics != nil && fresh > 0 {
				s.metrics.RecordPapersDiscovered(string(res.Source), fresh)
			}
		}
	}

	if len(papers) == 0 {
		if failures > 0 && failures == queriesRun {
			return nil, fmt.Errorf("all %d source queries failed: %w", failures, domain.ErrServiceUnavailable)
		}
		return nil, fmt.Errorf("no papers matched the search filters: %w", domain.ErrNotFound)
	}

	s.backfillAbstracts(ctx, papers)

	s.logger.Info().
		Int("papers", len(papers)).
		Int("queries", len(queries)).
		Int("failed_queries", failures).
		Msg("search completed")

	return papers, nil
}

// backfillAbstracts tries the fallback provider for papers missing an
// abstract. Failures are absorbed; a paper without an abstract is still a
// valid paper.
func (s *SearchStage) backfillAbstracts(ctx context.Context, papers []*domain.Paper) {
	if s.abstracts == nil {
		return
	}

	for _, paper := range papers {
		if paper.HasAbstract() {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		var abstract string
		var err error
		for attempt := 0; attempt < s.cfg.BackfillAttempts; attempt++ {
			if attempt > 0 {
				select {
				case <-time.After(s.cfg.BackfillDelay):
				case <-ctx.Done():
					return
				}
			}
			abstract, err = s.abstracts.FetchAbstract(ctx, paper.Title)
			if err == nil {
				break
			}
			if Classify(err) != Transient {
				break
			}
		}

		if err != nil || abstract == "" {
			if s.metrics != nil {
				s.metrics.RecordAbstractBackfillFailed()
			}
			s.logger.Debug().
				Str("paper_id", paper.ID).
				Err(err).
				Msg("abstract backfill gave up")
			continue
		}

		paper.Abstract = abstract
		if s.metrics != nil {
			s.metrics.RecordAbstractBackfilled()
		}
	}
}

// buildQueries expands the filter set into one query per topic/institution
// combination. Institutions multiply the topic list; an empty institution
// list yields one unscoped query per topic.
func buildQueries(filters domain.SearchFilters) []searchQuery {
	institutions := filters.Institutions
	if len(institutions) == 0 {
		institutions = []string{""}
	}

	queries := make([]searchQuery, 0, len(filters.Topics)*len(institutions))
	for _, topic := range filters.Topics {
		if strings.TrimSpace(topic) == "" {
			continue
		}
		for _, inst := range institutions {
			queries = append(queries, searchQuery{topic: topic, institution: inst})
		}
	}
	return queries
}

// buildQueryText folds geographic scopes into the free-text query since the
// sources have no dedicated geographic filter.
func buildQueryText(topic string, geoScopes []string) string {
	if len(geoScopes) == 0 {
		return topic
	}
	return strings.TrimSpace(topic + " " + strings.Join(geoScopes, " "))
}
