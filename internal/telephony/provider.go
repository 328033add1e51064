package telephony

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/migueljbento/percenseo/pkg/errors"
)

// Call is the provider's snapshot of a call right after it was created.
// Fields mirror the provider resource; they are not yet mapped to domain types.
type Call struct {
	SID         string
	To          string
	From        string
	Status      string
	Direction   string
	Duration    string
	AnsweredBy  string
	DateCreated *time.Time
}

// Dialer places outbound calls.
type Dialer interface {
	Dial(ctx context.Context, destination string) (Call, error)
}

// Settings carries what a dialer needs to place survey calls.
type Settings struct {
	AccountSID     string
	AuthToken      string
	CallerNumber   string
	CallHandlerURL string
	CallResultURL  string

	BaseURL        string
	RequestTimeout time.Duration
	RingTimeout    int
	MachineAction  string
}

const (
	DefaultBaseURL        = "https://api.twilio.com/2010-04-01"
	DefaultRequestTimeout = 10 * time.Second
	DefaultRingTimeout    = 30
	DefaultMachineAction  = "Hangup"
)

func (s Settings) withDefaults() Settings {
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.RingTimeout <= 0 {
		s.RingTimeout = DefaultRingTimeout
	}
	if s.MachineAction == "" {
		s.MachineAction = DefaultMachineAction
	}
	return s
}

// ProviderError describes a request the provider refused.
type ProviderError struct {
	HTTPStatus int
	Code       int
	Message    string

	kind error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("telephony: provider returned %d (code %d): %s", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("telephony: provider returned %d: %s", e.HTTPStatus, e.Message)
}

// Unwrap exposes ErrDial or ErrAuthentication.
func (e *ProviderError) Unwrap() error {
	if e.kind == nil {
		return apperrors.ErrDial
	}
	return e.kind
}
