package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/deepscience/research-graph-service/internal/domain"
)

// StageCriticality determines how the orchestrator handles a stage whose
// retries are exhausted.
type StageCriticality int

const (
	// Critical stages abort the entire run when they fail.
	Critical StageCriticality = iota

	// NonCritical stages degrade to an empty/partial result when they fail.
	// The run continues to the next stage.
	NonCritical
)

// String returns a human-readable name for the criticality level.
func (c StageCriticality) String() string {
	switch c {
	case Critical:
		return "critical"
	case NonCritical:
		return "non-critical"
	default:
		return "unknown"
	}
}

// StageConfig holds the retry and criticality configuration for a single
// pipeline stage.
type StageConfig struct {
	// Stage is the stage this configuration applies to.
	Stage domain.Stage

	// Criticality determines behaviour when retries are exhausted.
	Criticality StageCriticality

	// MaxRetries is the maximum number of retry attempts for transient errors.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// BackoffMultiplier controls exponential growth of the backoff interval.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff interval.
	MaxBackoff time.Duration
}

// backoffForAttempt computes the backoff duration for the given attempt (0-indexed).
func (c StageConfig) backoffForAttempt(attempt int) time.Duration {
	backoff := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * c.BackoffMultiplier)
		if backoff > c.MaxBackoff {
			backoff = c.MaxBackoff
			break
		}
	}
	return backoff
}

// DefaultStageConfigs returns the standard stage configurations for the
// discovery pipeline. Intent extraction, relationship inference, and graph
// assembly abort the run on failure; paper search and professor extraction
// degrade to empty results.
func DefaultStageConfigs() map[domain.Stage]StageConfig {
	return map[domain.Stage]StageConfig{
		domain.StageFilters: {
			Stage:             domain.StageFilters,
			Criticality:       Critical,
			MaxRetries:        2,
			InitialBackoff:    time.Second,
			BackoffMultiplier: 2.0,
			MaxBackoff:        10 * time.Second,
		},
		domain.StageSearch: {
			Stage:             domain.StageSearch,
			Criticality:       NonCritical,
			MaxRetries:        1,
			InitialBackoff:    2 * time.Second,
			BackoffMultiplier: 2.0,
			MaxBackoff:        10 * time.Second,
		},
		domain.StageExtraction: {
			Stage:             domain.StageExtraction,
			Criticality:       NonCritical,
			MaxRetries:        0,
			InitialBackoff:    time.Second,
			BackoffMultiplier: 2.0,
			MaxBackoff:        10 * time.Second,
		},
		domain.StageRelationships: {
			Stage:             domain.StageRelationships,
			Criticality:       Critical,
			MaxRetries:        0,
			InitialBackoff:    time.Second,
			BackoffMultiplier: 2.0,
			MaxBackoff:        10 * time.Second,
		},
		domain.StageGraph: {
			Stage:             domain.StageGraph,
			Criticality:       Critical,
			MaxRetries:        0,
			InitialBackoff:    time.Second,
			BackoffMultiplier: 2.0,
			MaxBackoff:        10 * time.Second,
		},
	}
}

// StageResult contains the outcome of a stage execution.
type StageResult struct {
	// Stage is the stage that executed.
	Stage domain.Stage

	// Failed is true when a critical stage exhausted its retries. The
	// orchestrator aborts the run.
	Failed bool

	// Degraded is true when a non-critical stage exhausted its retries.
	// The orchestrator records the error and continues with empty output.
	Degraded bool

	// Err is the last error encountered. Non-nil when Failed or Degraded.
	Err error

	// Attempts is the total number of execution attempts (1 = succeeded on first try).
	Attempts int
}

// Succeeded reports whether the stage completed without failure or degradation.
func (r StageResult) Succeeded() bool {
	return !r.Failed && !r.Degraded
}

// executeStage runs fn with stage-level retry logic. It classifies errors and
// determines the outcome based on the stage's criticality and retry budget.
// Only transient errors are retried; malformed and permanent errors resolve
// immediately according to criticality.
func executeStage(ctx context.Context, cfg StageConfig, logger zerolog.Logger, fn func() error) StageResult {
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return StageResult{Stage: cfg.Stage, Attempts: attempt + 1}
		}

		// Never retry once the run's context is gone.
		if ctx.Err() != nil {
			return StageResult{
				Stage:    cfg.Stage,
				Failed:   true,
				Err:      fmt.Errorf("%s: context cancelled: %w", cfg.Stage, err),
				Attempts: attempt + 1,
			}
		}

		category := Classify(err)

		logger.Warn().
			Str("stage", string(cfg.Stage)).
			Int("attempt", attempt+1).
			Int("max_attempts", cfg.MaxRetries+1).
			Str("error_category", category.String()).
			Err(err).
			Msg("stage execution failed")

		switch category {
		case Malformed, Permanent:
			// No point retrying.
			return resolvedResult(cfg, err, attempt+1)

		case Transient:
			if attempt < cfg.MaxRetries {
				backoff := cfg.backoffForAttempt(attempt)
				logger.Info().
					Str("stage", string(cfg.Stage)).
					Int("attempt", attempt+1).
					Dur("backoff", backoff).
					Msg("retrying stage after backoff")
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return StageResult{
						Stage:    cfg.Stage,
						Failed:   true,
						Err:      fmt.Errorf("%s: cancelled during retry backoff: %w", cfg.Stage, ctx.Err()),
						Attempts: attempt + 1,
					}
				}
				continue
			}
			return resolvedResult(cfg, err, attempt+1)
		}
	}

	return StageResult{
		Stage:    cfg.Stage,
		Failed:   true,
		Err:      fmt.Errorf("%s: unexpected retry loop exit", cfg.Stage),
		Attempts: cfg.MaxRetries + 1,
	}
}

// resolvedResult maps an unrecoverable stage error onto the stage's criticality.
func resolvedResult(cfg StageConfig, err error, attempts int) StageResult {
	if cfg.Criticality == Critical {
		return StageResult{
			Stage:    cfg.Stage,
			Failed:   true,
			Err:      fmt.Errorf("%s: %w", cfg.Stage, err),
			Attempts: attempts,
		}
	}
	return StageResult{
		Stage:    cfg.Stage,
		Degraded: true,
		Err:      fmt.Errorf("%s: degraded: %w", cfg.Stage, err),
		Attempts: attempts,
	}
}

// Disposition is the orchestrator's next move after a stage resolves.
type Disposition int

const (
	// DispositionContinue advances to the next stage.
	DispositionContinue Disposition = iota

	// DispositionAbort terminates the run; Transition.Skipped lists the
	// stages that will never execute.
	DispositionAbort

	// DispositionComplete marks the run finished; all stages resolved.
	DispositionComplete
)

// Transition is the result of advancing the stage machine.
type Transition struct {
	// Disposition indicates whether to continue, abort, or complete.
	Disposition Disposition

	// Skipped lists the stages that will not execute when aborting.
	Skipped []domain.Stage
}

// Machine is a finite-state machine over the fixed stage order. The
// orchestrator drives it with one Advance call per resolved stage, keeping
// the skip/abort bookkeeping independently testable.
type Machine struct {
	order []domain.Stage
	idx   int
	done  bool
}

// NewMachine creates a stage machine positioned at the first stage.
func NewMachine() *Machine {
	return &Machine{order: domain.PipelineStages()}
}

// Current returns the stage to execute next. ok is false once the machine
// has completed or aborted.
func (m *Machine) Current() (stage domain.Stage, ok bool) {
	if m.done || m.idx >= len(m.order) {
		return "", false
	}
	return m.order[m.idx], true
}

// Advance consumes the result of the current stage and transitions the
// machine. A failed result aborts and reports the remaining stages as
// skipped; anything else continues to the next stage or completes.
func (m *Machine) Advance(res StageResult) Transition {
	if m.done {
		return Transition{Disposition: DispositionComplete}
	}

	if res.Failed {
		skipped := make([]domain.Stage, len(m.order)-m.idx-1)
		copy(skipped, m.order[m.idx+1:])
		m.done = true
		return Transition{Disposition: DispositionAbort, Skipped: skipped}
	}

	m.idx++
	if m.idx >= len(m.order) {
		m.done = true
		return Transition{Disposition: DispositionComplete}
	}
	return Transition{Disposition: DispositionContinue}
}
