package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/migueljbento/percenseo/internal/domain"
	"github.com/migueljbento/percenseo/internal/repository"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS call_results (
		sid text PRIMARY KEY,
		destination text,
		duration int,
		status int,
		called_at timestamp,
		human_answered boolean,
		direction int,
		digits text
	)`,
	`CREATE TABLE IF NOT EXISTS destinations_by_status (
		status int,
		sid text,
		destination text,
		PRIMARY KEY ((status), sid)
	)`,
}

// ResultStore persists call results in Scylla. call_results is keyed by call
// id; destinations_by_status indexes the current status of every call.
type ResultStore struct {
	session *gocql.Session
	closeFn func() error
}

// NewResultStore wraps session, creating the tables unless initSchema is false.
func NewResultStore(ctx context.Context, session *gocql.Session, initSchema bool, closeFn func() error) (*ResultStore, error) {
	s := &ResultStore{session: session, closeFn: closeFn}
	if !initSchema {
		return s, nil
	}
	for _, stmt := range schema {
		if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return nil, fmt.Errorf("result store: init schema: %w: %w", repository.ErrStore, err)
		}
	}
	return s, nil
}

// Destinations lists destinations whose current status is status.
func (s *ResultStore) Destinations(ctx context.Context, status domain.CallStatus) ([]string, error) {
	iter := s.session.Query(`SELECT destination FROM destinations_by_status WHERE status = ?`, status.Code()).
		WithContext(ctx).Iter()

	var (
		destinations []string
		destination  string
	)
	for iter.Scan(&destination) {
		destinations = append(destinations, destination)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("result store: destinations by status: %w: %w", repository.ErrStore, err)
	}
	return destinations, nil
}

// storedResult is what Save reads back from an existing row.
type storedResult struct {
	status int
	digits *string
}

type savePlan struct {
	digits      *string
	staleIndex  bool
	staleStatus int
}

// planSave keeps earlier digits when the update has none and flags the index
// row to drop when the status changed. prev is nil for a first save.
func planSave(prev *storedResult, next domain.Result) savePlan {
	plan := savePlan{digits: next.Digits}
	if prev == nil {
		return plan
	}
	if plan.digits == nil {
		plan.digits = prev.digits
	}
	if prev.status != next.Status.Code() {
		plan.staleIndex = true
		plan.staleStatus = prev.status
	}
	return plan
}

// Save upserts a result and moves its index row when the status changed.
func (s *ResultStore) Save(ctx context.Context, result domain.Result) error {
	if err := repository.CheckSavable(result); err != nil {
		return fmt.Errorf("result store: %w", err)
	}

	var (
		prev     storedResult
		previous *storedResult
	)
	err := s.session.Query(`SELECT status, digits FROM call_results WHERE sid = ?`, result.CallSID).
		WithContext(ctx).Scan(&prev.status, &prev.digits)
	switch {
	case err == nil:
		previous = &prev
	case !errors.Is(err, gocql.ErrNotFound):
		return fmt.Errorf("result store: load %s: %w: %w", result.CallSID, repository.ErrStore, err)
	}

	plan := planSave(previous, result)

	var calledAt *time.Time
	if result.CalledAt != nil {
		t := result.CalledAt.UTC()
		calledAt = &t
	}

	if err := s.session.Query(`INSERT INTO call_results (sid, destination, duration, status, called_at, human_answered, direction, digits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.CallSID, result.Destination, result.DurationSeconds, result.Status.Code(), calledAt,
		result.HumanAnswered, result.Direction.Code(), plan.digits,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("result store: insert call_results: %w: %w", repository.ErrStore, err)
	}

	if plan.staleIndex {
		if err := s.session.Query(`DELETE FROM destinations_by_status WHERE status = ? AND sid = ?`,
			plan.staleStatus, result.CallSID,
		).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("result store: delete old status: %w: %w", repository.ErrStore, err)
		}
	}

	if err := s.session.Query(`INSERT INTO destinations_by_status (status, sid, destination) VALUES (?, ?, ?)`,
		result.Status.Code(), result.CallSID, result.Destination,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("result store: insert destinations_by_status: %w: %w", repository.ErrStore, err)
	}

	return nil
}

// Summary counts results per status, one partition per status.
func (s *ResultStore) Summary(ctx context.Context) (map[domain.CallStatus]int64, error) {
	counts := make(map[domain.CallStatus]int64)
	for _, status := range domain.CallStatuses() {
		var count int64
		if err := s.session.Query(`SELECT COUNT(*) FROM destinations_by_status WHERE status = ?`, status.Code()).
			WithContext(ctx).Scan(&count); err != nil {
			return nil, fmt.Errorf("result store: summary %s: %w: %w", status, repository.ErrStore, err)
		}
		if count > 0 {
			counts[status] = count
		}
	}
	return counts, nil
}

func (s *ResultStore) Ping(ctx context.Context) error {
	var version string
	if err := s.session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Scan(&version); err != nil {
		return fmt.Errorf("result store: ping: %w: %w", repository.ErrStore, err)
	}
	return nil
}

func (s *ResultStore) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
