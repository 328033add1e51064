package survey

import (
	"fmt"
	"strings"

	apperrors "github.com/migueljbento/percenseo/pkg/errors"
)

// Configuration is the validated, immutable input of one survey run.
type Configuration struct {
	numbersFile    string
	numbers        []string
	fileBased      bool
	storeLocation  string
	callHandlerURL string
	callResultURL  string
	accountSID     string
	authToken      string
	callerNumber   string
	prefix         string
	prefixSet      bool
}

// FileBased reports whether numbers come from a CSV file rather than a list.
func (c Configuration) FileBased() bool { return c.fileBased }

func (c Configuration) NumbersFile() string { return c.numbersFile }

// Numbers returns a copy of the in-memory numbers list.
func (c Configuration) Numbers() []string {
	out := make([]string, len(c.numbers))
	copy(out, c.numbers)
	return out
}

func (c Configuration) StoreLocation() string  { return c.storeLocation }
func (c Configuration) CallHandlerURL() string { return c.callHandlerURL }
func (c Configuration) CallResultURL() string  { return c.callResultURL }
func (c Configuration) AccountSID() string     { return c.accountSID }
func (c Configuration) AuthToken() string      { return c.authToken }
func (c Configuration) CallerNumber() string   { return c.callerNumber }

// InternationalPrefix returns the prefix and whether one was configured.
func (c Configuration) InternationalPrefix() (string, bool) { return c.prefix, c.prefixSet }

// ConfigurationError names the first field that failed validation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("survey: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return apperrors.ErrInvalidConfiguration }

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// validate checks fields in a fixed order and stops at the first violation.
func (c Configuration) validate() error {
	if c.fileBased {
		if blank(c.numbersFile) || !strings.HasSuffix(strings.ToLower(c.numbersFile), ".csv") {
			return &ConfigurationError{Field: "numbers file", Reason: fmt.Sprintf("%q is not a .csv file", c.numbersFile)}
		}
	} else if len(c.numbers) == 0 {
		return &ConfigurationError{Field: "numbers", Reason: "list is empty"}
	}

	required := []struct {
		field string
		value string
	}{
		{"store location", c.storeLocation},
		{"call handler URL", c.callHandlerURL},
		{"call result URL", c.callResultURL},
		{"account SID", c.accountSID},
		{"auth token", c.authToken},
		{"caller number", c.callerNumber},
	}
	for _, r := range required {
		if blank(r.value) {
			return &ConfigurationError{Field: r.field, Reason: "must not be blank"}
		}
	}

	if c.prefixSet && blank(c.prefix) {
		return &ConfigurationError{Field: "international prefix", Reason: "must not be blank when set"}
	}
	return nil
}
