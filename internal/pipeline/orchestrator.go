package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/observability"
	"github.com/deepscience/research-graph-service/internal/runstate"
)

// Persister hands completed runs to durable storage.
type Persister interface {
	// SaveRun stores a snapshot of the run. The orchestrator passes a copy;
	// implementations may retain it.
	SaveRun(ctx context.Context, run *domain.Run) error
}

// Publisher emits best-effort run lifecycle events. Implementations must not
// fail the run; errors are theirs to absorb.
type Publisher interface {
	RunStarted(ctx context.Context, run *domain.Run)
	RunCompleted(ctx context.Context, run *domain.Run)
	RunFailed(ctx context.Context, run *domain.Run)
}

// ConceptSource resolves a CV id to the concepts extracted from it.
type ConceptSource interface {
	// Concepts returns the concept list for the CV, or nil when unknown.
	Concepts(cvID uuid.UUID) []string
}

// pipelineState is the accumulated intermediate state of one run. Each stage
// reads the fields of the stages before it and writes its own.
type pipelineState struct {
	intent     domain.IntentResult
	papers     []*domain.Paper
	professors []*domain.Professor
	links      []domain.Link
	graph      *domain.Graph
}

// Orchestrator sequences the five pipeline stages for a run, records one
// terminal step per stage in the run state store, and decides continuation
// versus abort on stage failure. All run mutations flow through the store's
// single mutation entry point.
type Orchestrator struct {
	store         *runstate.Store
	intent        *IntentExtractor
	search        *SearchStage
	extraction    *ExtractionStage
	relationships *RelationshipBuilder
	assembler     *GraphAssembler
	persister     Persister
	publisher     Publisher
	concepts      ConceptSource
	configs       map[domain.Stage]StageConfig
	logger        zerolog.Logger
	metrics       *observability.Metrics
}

// OrchestratorDeps bundles the orchestrator's collaborators. Persister,
// Publisher, and Concepts are optional.
type OrchestratorDeps struct {
	Store         *runstate.Store
	Intent        *IntentExtractor
	Search        *SearchStage
	Extraction    *ExtractionStage
	Relationships *RelationshipBuilder
	Assembler     *GraphAssembler
	Persister     Persister
	Publisher     Publisher
	Concepts      ConceptSource
	Configs       map[domain.Stage]StageConfig
	Logger        zerolog.Logger
	Metrics       *observability.Metrics
}

// NewOrchestrator creates an orchestrator. Nil Configs fall back to
// DefaultStageConfigs.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	configs := deps.Configs
	if configs == nil {
		configs = DefaultStageConfigs()
	}
	return &Orchestrator{
		store:         deps.Store,
		intent:        deps.Intent,
		search:        deps.Search,
		extraction:    deps.Extraction,
		relationships: deps.Relationships,
		assembler:     deps.Assembler,
		persister:     deps.Persister,
		publisher:     deps.Publisher,
		concepts:      deps.Concepts,
		configs:       configs,
		logger:        observability.WithComponent(deps.Logger, "orchestrator"),
		metrics:       deps.Metrics,
	}
}

// Execute runs the full pipeline for a run already registered in the state
// store. It is intended to run in its own goroutine; the caller polls the
// store for progress. Execute never panics outward and never returns an
// error: the run record is the sole failure surface.
func (o *Orchestrator) Execute(ctx context.Context, runID uuid.UUID) {
	run, ok := o.store.Get(runID)
	if !ok {
		o.logger.Error().Str("run_id", runID.String()).Msg("run not found in state store")
		return
	}

	logger := observability.WithRunLogContext(o.logger, runID.String(), run.Query)
	start := time.Now()

	if o.metrics != nil {
		o.metrics.RecordRunStarted()
	}
	if err := o.store.Update(runID, func(r *domain.Run) error {
		r.Status = domain.RunStatusRunning
		return nil
	}); err != nil {
		logger.Error().Err(err).Msg("could not mark run running")
		return
	}
	if o.publisher != nil {
		o.publisher.RunStarted(ctx, run)
	}
	logger.Info().Int("max_nodes", run.MaxNodes).Msg("run started")

	state := &pipelineState{}
	machine := NewMachine()
	var failure error

	for {
		stage, active := machine.Current()
		if !active {
			break
		}

		o.writeStep(runID, domain.StepRecord{Name: stage, Status: domain.StepStatusRunning})

		stageStart := time.Now()
		res := executeStage(ctx, o.configs[stage], logger, func() error {
			return o.runStage(ctx, stage, run, state)
		})
		if o.metrics != nil {
			o.metrics.RecordStageDuration(string(stage), time.Since(stageStart).Seconds())
		}

		switch {
		case res.Succeeded():
			o.writeStep(runID, domain.StepRecord{
				Name:   stage,
				Status: domain.StepStatusDone,
				Detail: o.stageDetail(stage, state),
			})
		case res.Degraded:
			if o.metrics != nil {
				o.metrics.RecordStageError(string(stage), "degraded")
			}
			o.writeStep(runID, domain.StepRecord{
				Name:   stage,
				Status: domain.StepStatusError,
				Detail: map[string]interface{}{"error": res.Err.Error()},
			})
		case res.Failed:
			if o.metrics != nil {
				o.metrics.RecordStageError(string(stage), "failed")
			}
			o.writeStep(runID, domain.StepRecord{
				Name:   stage,
				Status: domain.StepStatusError,
				Detail: map[string]interface{}{"error": res.Err.Error()},
			})
		}

		tr := machine.Advance(res)
		if tr.Disposition == DispositionAbort {
			for _, skipped := range tr.Skipped {
				o.writeStep(runID, domain.StepRecord{
					Name:   skipped,
					Status: domain.StepStatusError,
					Detail: map[string]interface{}{"error": "skipped"},
				})
			}
			failure = res.Err
			break
		}
		if tr.Disposition == DispositionComplete {
			break
		}
	}

	if failure != nil {
		o.finishFailed(ctx, runID, failure, start, logger)
		return
	}
	o.finishCompleted(ctx, runID, state.graph, start, logger)
}

// runStage dispatches one stage against the accumulated state.
func (o *Orchestrator) runStage(ctx context.Context, stage domain.Stage, run *domain.Run, state *pipelineState) error {
	switch stage {
	case domain.StageFilters:
		intent, err := o.intent.Extract(ctx, run.Query, o.cvConcepts(run))
		if err != nil {
			return err
		}
		state.intent = intent
		return nil

	case domain.StageSearch:
		papers, err := o.search.Execute(ctx, state.intent, 2*run.MaxNodes)
		if err != nil {
			return err
		}
		state.papers = papers
		return nil

	case domain.StageExtraction:
		state.professors = o.extraction.Execute(state.papers, run.MaxNodes)
		return nil

	case domain.StageRelationships:
		state.links = o.relationships.Build(state.professors)
		return nil

	case domain.StageGraph:
		state.graph = o.assembler.Assemble(state.professors, state.links, run.MaxNodes)
		return nil

	default:
		return domain.NewValidationError("stage", "unknown stage "+string(stage))
	}
}

// stageDetail builds the structured payload recorded with a successful step.
func (o *Orchestrator) stageDetail(stage domain.Stage, state *pipelineState) map[string]interface{} {
	switch stage {
	case domain.StageFilters:
		return map[string]interface{}{
			"kind":         string(state.intent.Kind),
			"topics":       state.intent.Filters.Topics,
			"geo_scopes":   state.intent.Filters.GeoScopes,
			"institutions": state.intent.Filters.Institutions,
		}
	case domain.StageSearch:
		return map[string]interface{}{
			"paper_count": len(state.papers),
			"preview":     paperPreview(state.papers, 5),
		}
	case domain.StageExtraction:
		names := make([]string, 0, len(state.professors))
		for _, p := range state.professors {
			names = append(names, p.Name)
		}
		return map[string]interface{}{
			"professor_count": len(state.professors),
			"professors":      names,
		}
	case domain.StageRelationships:
		return map[string]interface{}{"link_count": len(state.links)}
	case domain.StageGraph:
		detail := map[string]interface{}{}
		if state.graph != nil {
			detail["node_count"] = state.graph.NodeCount()
			detail["link_count"] = len(state.graph.Links)
		}
		return detail
	default:
		return nil
	}
}

// writeStep records stage progress through the store's mutation entry point.
func (o *Orchestrator) writeStep(runID uuid.UUID, rec domain.StepRecord) {
	if err := o.store.Update(runID, func(r *domain.Run) error {
		r.UpsertStep(rec)
		return nil
	}); err != nil {
		o.logger.Error().
			Str("run_id", runID.String()).
			Str("stage", string(rec.Name)).
			Err(err).
			Msg("could not record step")
	}
}

// finishCompleted marks the run terminal, attaches the graph, persists a
// copy, and publishes the completion event.
func (o *Orchestrator) finishCompleted(ctx context.Context, runID uuid.UUID, graph *domain.Graph, start time.Time, logger zerolog.Logger) {
	if err := o.store.Update(runID, func(r *domain.Run) error {
		r.Status = domain.RunStatusCompleted
		r.GraphData = graph
		return nil
	}); err != nil {
		logger.Error().Err(err).Msg("could not mark run completed")
		return
	}
	if o.metrics != nil {
		o.metrics.RecordRunCompleted(time.Since(start).Seconds())
	}

	snapshot, ok := o.store.Get(runID)
	if !ok {
		return
	}
	if o.persister != nil {
		if err := o.persister.SaveRun(ctx, snapshot); err != nil {
			logger.Warn().Err(err).Msg("durable persist failed")
		}
	}
	if o.publisher != nil {
		o.publisher.RunCompleted(ctx, snapshot)
	}
	logger.Info().Dur("duration", time.Since(start)).Msg("run completed")
}

// finishFailed marks the run terminal with the failure cause. Failed runs
// are not handed to durable storage.
func (o *Orchestrator) finishFailed(ctx context.Context, runID uuid.UUID, cause error, start time.Time, logger zerolog.Logger) {
	if err := o.store.Update(runID, func(r *domain.Run) error {
		r.Status = domain.RunStatusFailed
		r.Error = cause.Error()
		return nil
	}); err != nil {
		logger.Error().Err(err).Msg("could not mark run failed")
		return
	}
	if o.metrics != nil {
		o.metrics.RecordRunFailed(time.Since(start).Seconds())
	}
	if o.publisher != nil {
		if snapshot, ok := o.store.Get(runID); ok {
			o.publisher.RunFailed(ctx, snapshot)
		}
	}
	logger.Warn().Err(cause).Dur("duration", time.Since(start)).Msg("run failed")
}

// cvConcepts resolves the run's CV, if any, to its concept list.
func (o *Orchestrator) cvConcepts(run *domain.Run) []string {
	if run.CVID == nil || o.concepts == nil {
		return nil
	}
	return o.concepts.Concepts(*run.CVID)
}

// paperPreview returns up to n paper titles for step detail payloads.
func paperPreview(papers []*domain.Paper, n int) []string {
	if len(papers) < n {
		n = len(papers)
	}
	titles := make([]string, 0, n)
	for _, p := range papers[:n] {
		titles = append(titles, p.Title)
	}
	return titles
}
