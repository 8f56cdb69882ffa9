// Package domain provides domain models and business logic for the Research Graph Service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle states of a discovery run.
// These values must match the database enum run_status.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Stage identifies one phase of the discovery pipeline.
type Stage string

const (
	StageFilters       Stage = "filters"
	StageSearch        Stage = "search"
	StageExtraction    Stage = "extraction"
	StageRelationships Stage = "relationships"
	StageGraph         Stage = "graph"
)

// PipelineStages returns the stages in execution order. Callers must not
// mutate the returned slice.
func PipelineStages() []Stage {
	return pipelineOrder
}

var pipelineOrder = []Stage{
	StageFilters,
	StageSearch,
	StageExtraction,
	StageRelationships,
	StageGraph,
}

// Index returns the position of the stage in pipeline order, or -1 for an
// unknown stage.
func (s Stage) Index() int {
	for i, st := range pipelineOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// StepStatus represents the state of a single pipeline step within a run.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusDone    StepStatus = "done"
	StepStatusError   StepStatus = "error"
)

// IsTerminal returns true if the step status will not change again.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusDone || s == StepStatusError
}

// StepRecord captures the progress of one pipeline stage for a run. A later
// record for the same stage replaces an earlier pending/running entry rather
// than duplicating it.
type StepRecord struct {
	Name      Stage                  `json:"name"`
	Status    StepStatus             `json:"status"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Run represents one end-to-end execution of the discovery pipeline.
type Run struct {
	ID        uuid.UUID              `json:"run_id"`
	Query     string                 `json:"query"`
	CVID      *uuid.UUID             `json:"cv_id,omitempty"`
	MaxNodes  int                    `json:"max_nodes"`
	Status    RunStatus              `json:"status"`
	Steps     []StepRecord           `json:"steps"`
	GraphData *Graph                 `json:"graph_data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewRun creates a queued Run for the given query.
func NewRun(query string, cvID *uuid.UUID, maxNodes int) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:        uuid.New(),
		Query:     query,
		CVID:      cvID,
		MaxNodes:  maxNodes,
		Status:    RunStatusQueued,
		Steps:     make([]StepRecord, 0, len(pipelineOrder)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpsertStep records progress for a stage. An existing record with the same
// name is replaced in place, preserving its position in the sequence; a new
// stage is appended. Steps therefore appear at most once per stage, in the
// order they were first written.
func (r *Run) UpsertStep(rec StepRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	for i := range r.Steps {
		if r.Steps[i].Name == rec.Name {
			r.Steps[i] = rec
			return
		}
	}
	r.Steps = append(r.Steps, rec)
}

// Step returns the record for the named stage, if one has been written.
func (r *Run) Step(name Stage) (StepRecord, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepRecord{}, false
}

// Clone returns a deep copy of the run. Snapshots handed to pollers and the
// persistence layer must not alias the live record.
func (r *Run) Clone() *Run {
	cp := *r
	cp.Steps = make([]StepRecord, len(r.Steps))
	for i, s := range r.Steps {
		cp.Steps[i] = s
		if s.Detail != nil {
			d := make(map[string]interface{}, len(s.Detail))
			for k, v := range s.Detail {
				d[k] = v
			}
			cp.Steps[i].Detail = d
		}
	}
	if r.CVID != nil {
		id := *r.CVID
		cp.CVID = &id
	}
	if r.GraphData != nil {
		cp.GraphData = r.GraphData.Clone()
	}
	return &cp
}
