package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/llm"
	"github.com/deepscience/research-graph-service/internal/papersources"
	"github.com/deepscience/research-graph-service/internal/runstate"
)

// recordingPersister records SaveRun calls.
type recordingPersister struct {
	mu   sync.Mutex
	runs []*domain.Run
	err  error
}

func (p *recordingPersister) SaveRun(_ context.Context, run *domain.Run) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, run)
	return p.err
}

// recordingPublisher records lifecycle events by name.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) RunStarted(context.Context, *domain.Run)   { p.record("started") }
func (p *recordingPublisher) RunCompleted(context.Context, *domain.Run) { p.record("completed") }
func (p *recordingPublisher) RunFailed(context.Context, *domain.Run)    { p.record("failed") }

// staticConcepts maps every CV id to the same concepts.
type staticConcepts struct {
	concepts []string
}

func (c *staticConcepts) Concepts(uuid.UUID) []string { return c.concepts }

func fastConfigs() map[domain.Stage]StageConfig {
	configs := DefaultStageConfigs()
	for stage, cfg := range configs {
		cfg.MaxRetries = 0
		cfg.InitialBackoff = time.Millisecond
		cfg.MaxBackoff = time.Millisecond
		configs[stage] = cfg
	}
	return configs
}

type orchestratorFixture struct {
	store     *runstate.Store
	persister *recordingPersister
	publisher *recordingPublisher
	orch      *Orchestrator
}

func newOrchestratorFixture(t *testing.T, llmClient llm.Client, sources ...papersources.PaperSource) *orchestratorFixture {
	t.Helper()

	registry := papersources.NewRegistry()
	for _, s := range sources {
		registry.Register(s)
	}

	store := runstate.NewStore()
	persister := &recordingPersister{}
	publisher := &recordingPublisher{}

	orch := NewOrchestrator(OrchestratorDeps{
		Store:         store,
		Intent:        NewIntentExtractor(llmClient, zerolog.Nop(), nil),
		Search:        NewSearchStage(registry, nil, testSearchConfig(), zerolog.Nop(), nil),
		Extraction:    NewExtractionStage(zerolog.Nop(), nil),
		Relationships: NewRelationshipBuilder(zerolog.Nop()),
		Assembler:     NewGraphAssembler(zerolog.Nop(), nil),
		Persister:     persister,
		Publisher:     publisher,
		Concepts:      &staticConcepts{concepts: []string{"legged locomotion"}},
		Configs:       fastConfigs(),
		Logger:        zerolog.Nop(),
	})

	return &orchestratorFixture{
		store:     store,
		persister: persister,
		publisher: publisher,
		orch:      orch,
	}
}

func ethIntentClient() *stubLLMClient {
	return &stubLLMClient{response: &llm.Response{
		Content: `{"topics": ["robotics"], "geo_scopes": [], "institutions": ["ETH Zurich"]}`,
	}}
}

func ethPapersSource() *fakeSource {
	return &fakeSource{
		sourceType: domain.SourceTypeOpenAlex,
		papers: []*domain.Paper{
			paperWithAuthors("doi:10.1/a", "Legged Robots",
				domain.Author{Name: "Marco Hutter", Institutions: []string{"ETH Zurich"}},
				domain.Author{Name: "Roland Siegwart", Institutions: []string{"ETH Zurich"}}),
			paperWithAuthors("doi:10.1/b", "Autonomous Flight",
				domain.Author{Name: "Roland Siegwart", Institutions: []string{"ETH Zurich"}}),
		},
	}
}

func TestOrchestratorCompletesFullRun(t *testing.T) {
	fx := newOrchestratorFixture(t, ethIntentClient(), ethPapersSource())

	run := domain.NewRun("robotics professors at ETH Zurich", nil, 5)
	fx.store.Put(run)

	fx.orch.Execute(context.Background(), run.ID)

	final, ok := fx.store.Get(run.ID)
	require.True(t, ok)

	assert.Equal(t, domain.RunStatusCompleted, final.Status)
	assert.Empty(t, final.Error)

	// Exactly one terminal step per stage, in pipeline order.
	require.Len(t, final.Steps, 5)
	for i, stage := range domain.PipelineStages() {
		assert.Equal(t, stage, final.Steps[i].Name)
		assert.Equal(t, domain.StepStatusDone, final.Steps[i].Status)
	}

	// user + ETH Zurich + two professors.
	require.NotNil(t, final.GraphData)
	assert.Equal(t, 4, final.GraphData.NodeCount())
	assert.True(t, final.GraphData.HasNode(domain.UserNodeID))

	require.Len(t, fx.persister.runs, 1)
	assert.Equal(t, domain.RunStatusCompleted, fx.persister.runs[0].Status)
	assert.Equal(t, []string{"started", "completed"}, fx.publisher.events)
}

func TestOrchestratorStepDetailPayloads(t *testing.T) {
	fx := newOrchestratorFixture(t, ethIntentClient(), ethPapersSource())

	run := domain.NewRun("robotics professors at ETH Zurich", nil, 5)
	fx.store.Put(run)

	fx.orch.Execute(context.Background(), run.ID)

	final, _ := fx.store.Get(run.ID)

	filters, ok := final.Step(domain.StageFilters)
	require.True(t, ok)
	assert.Equal(t, "parsed", filters.Detail["kind"])

	search, ok := final.Step(domain.StageSearch)
	require.True(t, ok)
	assert.Equal(t, 2, search.Detail["paper_count"])
	assert.Equal(t, []string{"Legged Robots", "Autonomous Flight"}, search.Detail["preview"])

	extraction, ok := final.Step(domain.StageExtraction)
	require.True(t, ok)
	assert.Equal(t, 2, extraction.Detail["professor_count"])

	graph, ok := final.Step(domain.StageGraph)
	require.True(t, ok)
	assert.Equal(t, 4, graph.Detail["node_count"])
}

func TestOrchestratorAppendsCVConcepts(t *testing.T) {
	client := ethIntentClient()
	fx := newOrchestratorFixture(t, client, ethPapersSource())

	cvID := uuid.New()
	run := domain.NewRun("robotics professors at ETH Zurich", &cvID, 5)
	fx.store.Put(run)

	fx.orch.Execute(context.Background(), run.ID)

	final, _ := fx.store.Get(run.ID)
	require.Equal(t, domain.RunStatusCompleted, final.Status)

	filters, ok := final.Step(domain.StageFilters)
	require.True(t, ok)
	assert.Equal(t, []string{"robotics", "legged locomotion"}, filters.Detail["topics"])
}

func TestOrchestratorDegradedSearchStillCompletes(t *testing.T) {
	// The source returns nothing, so search degrades; the run still
	// completes with a user-only graph.
	empty := &fakeSource{sourceType: domain.SourceTypeOpenAlex}
	fx := newOrchestratorFixture(t, ethIntentClient(), empty)

	run := domain.NewRun("robotics professors at ETH Zurich", nil, 5)
	fx.store.Put(run)

	fx.orch.Execute(context.Background(), run.ID)

	final, _ := fx.store.Get(run.ID)

	assert.Equal(t, domain.RunStatusCompleted, final.Status)

	search, ok := final.Step(domain.StageSearch)
	require.True(t, ok)
	assert.Equal(t, domain.StepStatusError, search.Status)

	extraction, ok := final.Step(domain.StageExtraction)
	require.True(t, ok)
	assert.Equal(t, domain.StepStatusDone, extraction.Status)

	require.NotNil(t, final.GraphData)
	assert.Equal(t, 1, final.GraphData.NodeCount())
	assert.True(t, final.GraphData.HasNode(domain.UserNodeID))

	assert.Equal(t, []string{"started", "completed"}, fx.publisher.events)
}

func TestOrchestratorCriticalFailureAbortsRun(t *testing.T) {
	fx := newOrchestratorFixture(t, ethIntentClient(), ethPapersSource())

	// An empty query fails intent extraction permanently.
	run := domain.NewRun("", nil, 5)
	fx.store.Put(run)

	fx.orch.Execute(context.Background(), run.ID)

	final, _ := fx.store.Get(run.ID)

	assert.Equal(t, domain.RunStatusFailed, final.Status)
	assert.NotEmpty(t, final.Error)
	assert.Nil(t, final.GraphData)

	require.Len(t, final.Steps, 5)
	assert.Equal(t, domain.StageFilters, final.Steps[0].Name)
	assert.Equal(t, domain.StepStatusError, final.Steps[0].Status)

	// Every stage after the failure is marked skipped.
	for _, step := range final.Steps[1:] {
		assert.Equal(t, domain.StepStatusError, step.Status)
		assert.Equal(t, "skipped", step.Detail["error"])
	}

	// Failed runs never reach durable storage.
	assert.Empty(t, fx.persister.runs)
	assert.Equal(t, []string{"started", "failed"}, fx.publisher.events)
}

func TestOrchestratorUnknownRun(t *testing.T) {
	fx := newOrchestratorFixture(t, ethIntentClient())

	// Execute on an unregistered id is a no-op.
	fx.orch.Execute(context.Background(), uuid.New())

	assert.Empty(t, fx.publisher.events)
	assert.Empty(t, fx.persister.runs)
}

func TestOrchestratorCancelledContextFailsRun(t *testing.T) {
	fx := newOrchestratorFixture(t, ethIntentClient(), ethPapersSource())

	run := domain.NewRun("robotics professors at ETH Zurich", nil, 5)
	fx.store.Put(run)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fx.orch.Execute(ctx, run.ID)

	final, _ := fx.store.Get(run.ID)
	assert.Equal(t, domain.RunStatusFailed, final.Status)
	assert.Nil(t, final.GraphData)
}

func TestOrchestratorPersistFailureDoesNotFailRun(t *testing.T) {
	fx := newOrchestratorFixture(t, ethIntentClient(), ethPapersSource())
	fx.persister.err = domain.ErrServiceUnavailable

	run := domain.NewRun("robotics professors at ETH Zurich", nil, 5)
	fx.store.Put(run)

	fx.orch.Execute(context.Background(), run.ID)

	final, _ := fx.store.Get(run.ID)
	assert.Equal(t, domain.RunStatusCompleted, final.Status)
	assert.Equal(t, []string{"started", "completed"}, fx.publisher.events)
}
