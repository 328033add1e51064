package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/migueljbento/percenseo/internal/domain"
)

// ResultEvent announces a terminal call result that was just stored.
type ResultEvent struct {
	EventID         uuid.UUID  `json:"event_id"`
	CallSID         string     `json:"call_sid"`
	Destination     string     `json:"destination"`
	Status          string     `json:"status"`
	StatusCode      int        `json:"status_code"`
	Direction       string     `json:"direction"`
	DurationSeconds int        `json:"duration_seconds"`
	HumanAnswered   bool       `json:"human_answered"`
	Digits          *string    `json:"digits,omitempty"`
	CalledAt        *time.Time `json:"called_at,omitempty"`
	ReceivedAt      time.Time  `json:"received_at"`
}

// NewResultEvent builds the event for a stored result.
func NewResultEvent(r domain.Result, receivedAt time.Time) ResultEvent {
	return ResultEvent{
		EventID:         uuid.New(),
		CallSID:         r.CallSID,
		Destination:     r.Destination,
		Status:          r.Status.String(),
		StatusCode:      r.Status.Code(),
		Direction:       r.Direction.String(),
		DurationSeconds: r.DurationSeconds,
		HumanAnswered:   r.HumanAnswered,
		Digits:          r.Digits,
		CalledAt:        r.CalledAt,
		ReceivedAt:      receivedAt.UTC(),
	}
}
