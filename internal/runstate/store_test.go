package runstate

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscience/research-graph-service/internal/domain"
)

func TestPutAndGetReturnsSnapshot(t *testing.T) {
	store := NewStore()
	run := domain.NewRun("quantum error correction", nil, 10)
	store.Put(run)

	snap, ok := store.Get(run.ID)
	require.True(t, ok)
	assert.Equal(t, run.ID, snap.ID)

	// Mutating the snapshot must not leak into the store.
	snap.Status = domain.RunStatusFailed
	snap.UpsertStep(domain.StepRecord{Name: domain.StageFilters, Status: domain.StepStatusError})

	again, ok := store.Get(run.ID)
	require.True(t, ok)
	assert.Equal(t, domain.RunStatusQueued, again.Status)
	assert.Empty(t, again.Steps)
}

func TestGetUnknownRun(t *testing.T) {
	store := NewStore()
	_, ok := store.Get(uuid.New())
	assert.False(t, ok)
}

func TestUpdateMutatesStoredRun(t *testing.T) {
	store := NewStore()
	run := domain.NewRun("q", nil, 10)
	store.Put(run)

	err := store.Update(run.ID, func(r *domain.Run) error {
		r.Status = domain.RunStatusRunning
		r.UpsertStep(domain.StepRecord{Name: domain.StageFilters, Status: domain.StepStatusRunning})
		return nil
	})
	require.NoError(t, err)

	snap, ok := store.Get(run.ID)
	require.True(t, ok)
	assert.Equal(t, domain.RunStatusRunning, snap.Status)
	require.Len(t, snap.Steps, 1)
}

func TestUpdateUnknownRun(t *testing.T) {
	store := NewStore()
	err := store.Update(uuid.New(), func(r *domain.Run) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateTerminalRunRejected(t *testing.T) {
	store := NewStore()
	run := domain.NewRun("q", nil, 10)
	store.Put(run)

	require.NoError(t, store.Update(run.ID, func(r *domain.Run) error {
		r.Status = domain.RunStatusCompleted
		return nil
	}))

	err := store.Update(run.ID, func(r *domain.Run) error {
		r.Status = domain.RunStatusFailed
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrRunTerminal)

	snap, _ := store.Get(run.ID)
	assert.Equal(t, domain.RunStatusCompleted, snap.Status)
}

func TestUpdatePropagatesCallbackError(t *testing.T) {
	store := NewStore()
	run := domain.NewRun("q", nil, 10)
	store.Put(run)

	sentinel := errors.New("boom")
	err := store.Update(run.ID, func(r *domain.Run) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestDelete(t *testing.T) {
	store := NewStore()
	run := domain.NewRun("q", nil, 10)
	store.Put(run)
	require.Equal(t, 1, store.Len())

	store.Delete(run.ID)
	assert.Equal(t, 0, store.Len())
	_, ok := store.Get(run.ID)
	assert.False(t, ok)
}

func TestConcurrentRunsDoNotInterfere(t *testing.T) {
	store := NewStore()

	runs := make([]*domain.Run, 8)
	for i := range runs {
		runs[i] = domain.NewRun("q", nil, 10)
		store.Put(runs[i])
	}

	var wg sync.WaitGroup
	for _, run := range runs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = store.Update(id, func(r *domain.Run) error {
					r.UpsertStep(domain.StepRecord{
						Name:      domain.StageSearch,
						Status:    domain.StepStatusRunning,
						Timestamp: time.Now().UTC(),
					})
					return nil
				})
				_, _ = store.Get(id)
			}
		}(run.ID)
	}
	wg.Wait()

	for _, run := range runs {
		snap, ok := store.Get(run.ID)
		require.True(t, ok)
		assert.Len(t, snap.Steps, 1)
	}
}
