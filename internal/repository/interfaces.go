package repository

import (
	"context"
	"fmt"

	"github.com/migueljbento/percenseo/internal/domain"
	apperrors "github.com/migueljbento/percenseo/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrStore marks a store that could not be opened, initialised or queried.
	ErrStore = apperrors.ErrStore
	// ErrValidation rejects results that cannot be keyed.
	ErrValidation = apperrors.ErrValidation
)

// ResultStore persists call results. A store handle is opened for one
// location and owned by whoever opened it until Close.
type ResultStore interface {
	// Destinations returns the destinations of every stored result with the
	// given status. Order is unspecified and duplicates are not collapsed.
	Destinations(ctx context.Context, status domain.CallStatus) ([]string, error)
	// Save inserts the result, replacing any previous result with the same call id.
	Save(ctx context.Context, result domain.Result) error
	// Summary counts stored results by status.
	Summary(ctx context.Context) (map[domain.CallStatus]int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// CheckSavable rejects results without a call id.
func CheckSavable(result domain.Result) error {
	if !result.Placed() {
		return fmt.Errorf("result for %q has no call id: %w", result.Destination, ErrValidation)
	}
	return nil
}

// CompletedSet is the set of destinations already reached by a survey.
type CompletedSet map[string]struct{}

// LoadCompleted reads the destinations stored with status COMPLETED.
func LoadCompleted(ctx context.Context, store ResultStore) (CompletedSet, error) {
	destinations, err := store.Destinations(ctx, domain.CallStatusCompleted)
	if err != nil {
		return nil, err
	}
	set := make(CompletedSet, len(destinations))
	for _, d := range destinations {
		set[d] = struct{}{}
	}
	return set, nil
}

// Contains reports whether destination was already reached.
func (s CompletedSet) Contains(destination string) bool {
	_, ok := s[destination]
	return ok
}

// Opener opens a result store for a location.
type Opener func(ctx context.Context, location string) (ResultStore, error)
