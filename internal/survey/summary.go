package survey

import (
	"time"

	"github.com/google/uuid"

	"github.com/migueljbento/percenseo/internal/domain"
)

// Summary is what a run produced: one result per dialed destination, in
// dialing order, and the count of results per status.
type Summary struct {
	RunID      uuid.UUID
	State      State
	Results    []domain.Result
	Counts     map[domain.CallStatus]int
	Skipped    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Count returns how many results ended in status.
func (s Summary) Count(status domain.CallStatus) int {
	return s.Counts[status]
}

// Queued returns how many calls the provider accepted as queued.
func (s Summary) Queued() int { return s.Count(domain.CallStatusQueued) }

// Failed returns how many calls could not be placed.
func (s Summary) Failed() int { return s.Count(domain.CallStatusFailed) }

func countByStatus(results []domain.Result) map[domain.CallStatus]int {
	counts := make(map[domain.CallStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
