package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/migueljbento/percenseo/internal/domain"
	"github.com/migueljbento/percenseo/internal/repository"
)

// ResultStore keeps results in process memory, keyed by call id. Results
// survive Close so a store can be reopened within the same process.
type ResultStore struct {
	mu      sync.Mutex
	order   []string
	results map[string]domain.Result
	closed  bool
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.Result)}
}

func (s *ResultStore) Destinations(ctx context.Context, status domain.CallStatus) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, sid := range s.order {
		if r := s.results[sid]; r.Status == status {
			out = append(out, r.Destination)
		}
	}
	return out, nil
}

func (s *ResultStore) Save(ctx context.Context, result domain.Result) error {
	if err := repository.CheckSavable(result); err != nil {
		return fmt.Errorf("memory store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, found := s.results[result.CallSID]
	if !found {
		s.order = append(s.order, result.CallSID)
	} else if result.Digits == nil {
		result.Digits = prev.Digits
	}
	s.results[result.CallSID] = result
	return nil
}

func (s *ResultStore) Summary(ctx context.Context) (map[domain.CallStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.CallStatus]int64)
	for _, r := range s.results {
		counts[r.Status]++
	}
	return counts, nil
}

func (s *ResultStore) Ping(ctx context.Context) error { return nil }

// Close marks the handle closed; stored results are kept.
func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called since the last Reopen.
func (s *ResultStore) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reopen clears the closed flag.
func (s *ResultStore) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
}

// Results returns every stored result in first-save order.
func (s *ResultStore) Results() []domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Result, 0, len(s.order))
	for _, sid := range s.order {
		out = append(out, s.results[sid])
	}
	return out
}
