package domain

import (
	"strconv"
	"strings"
	"time"
)

// AnsweredByHuman is the provider sentinel reported when a person picked up.
const AnsweredByHuman = "human"

// Result is the outcome of one call attempt, either the in-flight snapshot
// taken at dial time or the terminal status delivered by the provider.
type Result struct {
	Destination     string
	CallSID         string
	DurationSeconds int
	HumanAnswered   bool
	Status          CallStatus
	Direction       CallDirection
	CalledAt        *time.Time
	Digits          *string
}

// FailedCall builds the record of a call that could not be placed. Every call
// returns a fresh value.
func FailedCall(destination string) Result {
	return Result{
		Destination: destination,
		Status:      CallStatusFailed,
		Direction:   CallDirectionUnknown,
	}
}

// Placed reports whether the provider accepted the call and assigned it an id.
func (r Result) Placed() bool {
	return r.CallSID != ""
}

// Equal reports whether both records describe the same provider call.
// Identity is the call id alone; unplaced calls are never equal to anything.
func (r Result) Equal(other Result) bool {
	if !r.Placed() || !other.Placed() {
		return false
	}
	return r.CallSID == other.CallSID
}

// ParseDuration reads a provider duration in seconds. Blank, malformed or
// negative values yield 0.
func ParseDuration(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsHumanAnswer reports whether an answered-by value is the human sentinel.
func IsHumanAnswer(answeredBy string) bool {
	return answeredBy == AnsweredByHuman
}

// TimestampLayout is the provider's callback timestamp format.
const TimestampLayout = time.RFC1123Z

// ParseTimestamp parses a callback timestamp; blank or malformed values are absent.
func ParseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
