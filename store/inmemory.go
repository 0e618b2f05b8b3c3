package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	errorskg "github.com/sweetpotato0/batchsum/errors"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

// InMemoryStore implements ResultStore in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string]map[[2]int]Record
}

var _ ResultStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string]map[[2]int]Record)}
}

func (s *InMemoryStore) Save(_ context.Context, runID string, out summarizer.Output) error {
	if runID == "" {
		return fmt.Errorf("%w: run id cannot be empty", errorskg.ErrInvalidInput)
	}
	records := Records(runID, out, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		run = make(map[[2]int]Record, len(records))
		s.runs[runID] = run
	}
	for _, r := range records {
		run[[2]int{r.Group, r.Position}] = r
	}
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, runID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run := s.runs[runID]
	if len(run) == 0 {
		return nil, fmt.Errorf("run %q: %w", runID, errorskg.ErrNotFound)
	}
	out := make([]Record, 0, len(run))
	for _, r := range run {
		r.Summary = r.Summary.Clone()
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Record) int {
		return cmp.Or(cmp.Compare(a.Group, b.Group), cmp.Compare(a.Position, b.Position))
	})
	return out, nil
}

// Clear removes every run.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = make(map[string]map[[2]int]Record)
}

func (s *InMemoryStore) Close() error {
	return nil
}
