// Package diagnostics deduplicates advisory messages so that each distinct
// message is reported once per sink lifetime.
package diagnostics

import (
	"context"
	"sync"
)

// Sink remembers which advisory messages have already been emitted.
type Sink interface {
	// Record marks message as seen and reports whether this was the first time.
	Record(ctx context.Context, message string) (first bool, err error)
}

var _ Sink = (*MemorySink)(nil)

// MemorySink is a process-local Sink. Its set only grows; it is safe for
// concurrent use.
type MemorySink struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]struct{})}
}

func (s *MemorySink) Record(_ context.Context, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[message]; ok {
		return false, nil
	}
	s.seen[message] = struct{}{}
	return true, nil
}

// Len returns how many distinct messages were recorded.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
