// Package runstate holds the in-flight registry of discovery runs. Every
// stage update and every poll goes through this store, with mutual exclusion
// scoped to a single run id so concurrent runs never contend with each other.
package runstate

import (
	"sync"

	"github.com/google/uuid"

	"github.com/deepscience/research-graph-service/internal/domain"
)

// Store is the process-wide registry of in-flight and completed runs.
// The outer lock only guards the map structure; each run carries its own
// lock, so reads and writes of different run ids never block each other.
type Store struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*entry
}

type entry struct {
	mu  sync.RWMutex
	run *domain.Run
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		runs: make(map[uuid.UUID]*entry),
	}
}

// Put registers a run. The store takes its own copy; the caller's value is
// not aliased.
func (s *Store) Put(run *domain.Run) {
	if run == nil {
		return
	}
	e := &entry{run: run.Clone()}

	s.mu.Lock()
	s.runs[run.ID] = e
	s.mu.Unlock()
}

// Get returns a snapshot of the run. The snapshot does not alias the stored
// record, so pollers can hold it without racing stage updates. Reads of a
// terminal run always return the same state.
func (s *Store) Get(id uuid.UUID) (*domain.Run, bool) {
	s.mu.RLock()
	e, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.Clone(), true
}

// Update applies fn to the run under the run's write lock. This is the single
// mutation entry point for a run id. It returns domain.ErrNotFound for an
// unknown id and domain.ErrRunTerminal when the run already reached a
// terminal status. An error from fn leaves the run unchanged only if fn
// itself did not mutate it; fn should mutate last.
func (s *Store) Update(id uuid.UUID, fn func(run *domain.Run) error) error {
	s.mu.RLock()
	e, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return domain.NewNotFoundError("run", id.String())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run.Status.IsTerminal() {
		return domain.ErrRunTerminal
	}
	return fn(e.run)
}

// Len returns the number of registered runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Delete removes a run from the registry. Completed runs live on in durable
// storage; eviction here only frees memory.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.runs, id)
	s.mu.Unlock()
}
