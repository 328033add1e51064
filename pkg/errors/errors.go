package errors

import "errors"

// Sentinels for domain errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrValidation  = errors.New("validation error")
	ErrUnavailable = errors.New("service unavailable")

	// ErrInvalidConfiguration marks a survey configuration rejected before any I/O.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrStore marks a result store that could not be opened, initialised or queried.
	ErrStore = errors.New("result store error")
	// ErrInputResolution marks an unreadable or malformed numbers source.
	ErrInputResolution = errors.New("input resolution error")
	// ErrDial marks a provider that rejected or could not process a call request.
	ErrDial = errors.New("dial error")
	// ErrAuthentication marks provider credentials that were refused.
	ErrAuthentication = errors.New("authentication error")
	// ErrAlreadyExecuted is returned when a survey run is started twice.
	ErrAlreadyExecuted = errors.New("survey already executed")
	// ErrLeaseHeld is returned when another run owns the survey lease.
	ErrLeaseHeld = errors.New("survey lease held by another run")
)

// Is reports whether err is one of the sentinels.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap adds context to an error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}
