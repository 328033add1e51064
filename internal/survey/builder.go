package survey

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/migueljbento/percenseo/internal/config"
	"github.com/migueljbento/percenseo/internal/repository"
	"github.com/migueljbento/percenseo/internal/repository/factory"
	"github.com/migueljbento/percenseo/internal/telephony"
	"github.com/migueljbento/percenseo/pkg/logger"
)

// DialerFactory opens a dialing service. It is expected to verify the
// provider credentials before returning.
type DialerFactory func(ctx context.Context, settings telephony.Settings) (telephony.Dialer, error)

// Builder accumulates a survey configuration. Nothing is checked until Build.
type Builder struct {
	cfg Configuration

	provider      telephony.Settings
	logger        *logger.Logger
	dialerFactory DialerFactory
	opener        repository.Opener
}

func NewBuilder() *Builder {
	return &Builder{}
}

// WithNumbersFile reads destinations from a CSV file. It replaces any list
// set earlier.
func (b *Builder) WithNumbersFile(path string) *Builder {
	b.cfg.fileBased = true
	b.cfg.numbersFile = path
	b.cfg.numbers = nil
	return b
}

// WithNumbers dials the given destinations. It replaces any file set earlier.
func (b *Builder) WithNumbers(numbers []string) *Builder {
	b.cfg.fileBased = false
	b.cfg.numbersFile = ""
	b.cfg.numbers = append([]string(nil), numbers...)
	return b
}

func (b *Builder) WithStoreLocation(location string) *Builder {
	b.cfg.storeLocation = location
	return b
}

// WithCallHandlerURL sets the URL the provider fetches the in-call script from.
func (b *Builder) WithCallHandlerURL(u string) *Builder {
	b.cfg.callHandlerURL = u
	return b
}

// WithCallResultURL sets the URL the provider posts the terminal status to.
func (b *Builder) WithCallResultURL(u string) *Builder {
	b.cfg.callResultURL = u
	return b
}

func (b *Builder) WithAccountSID(sid string) *Builder {
	b.cfg.accountSID = sid
	return b
}

func (b *Builder) WithAuthToken(token string) *Builder {
	b.cfg.authToken = token
	return b
}

func (b *Builder) WithCallerNumber(number string) *Builder {
	b.cfg.callerNumber = number
	return b
}

// WithInternationalPrefix prepends prefix to every destination.
func (b *Builder) WithInternationalPrefix(prefix string) *Builder {
	b.cfg.prefix = prefix
	b.cfg.prefixSet = true
	return b
}

// WithProviderSettings tunes the dialing service. Credentials, caller number
// and callback URLs always come from the builder fields.
func (b *Builder) WithProviderSettings(settings telephony.Settings) *Builder {
	b.provider = settings
	return b
}

func (b *Builder) WithLogger(lg *logger.Logger) *Builder {
	b.logger = lg
	return b
}

// WithDialerFactory overrides how the dialing service is opened.
func (b *Builder) WithDialerFactory(factory DialerFactory) *Builder {
	b.dialerFactory = factory
	return b
}

// WithStoreOpener overrides how the result store is opened. The default
// routes the location by scheme with default pool settings.
func (b *Builder) WithStoreOpener(opener repository.Opener) *Builder {
	b.opener = opener
	return b
}

// Build validates the configuration, opens the dialing service and returns
// an orchestrator ready for a single Execute. Validation fails fast on the
// first invalid field, before any I/O.
func (b *Builder) Build(ctx context.Context) (*Orchestrator, error) {
	cfg := b.cfg
	cfg.numbers = append([]string(nil), b.cfg.numbers...)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	lg := b.logger
	if lg == nil {
		lg = logger.NewNop()
	}

	opener := b.opener
	if opener == nil {
		opener = factory.NewOpener(config.StoreConfig{}, lg)
	}

	settings := b.provider
	settings.AccountSID = cfg.accountSID
	settings.AuthToken = cfg.authToken
	settings.CallerNumber = cfg.callerNumber
	settings.CallHandlerURL = cfg.callHandlerURL
	settings.CallResultURL = cfg.callResultURL

	newDialer := b.dialerFactory
	if newDialer == nil {
		newDialer = func(ctx context.Context, s telephony.Settings) (telephony.Dialer, error) {
			return telephony.NewTwilioDialer(ctx, s, lg, nil)
		}
	}

	dialer, err := newDialer(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("survey: open dialing service: %w", err)
	}

	return &Orchestrator{
		cfg:    cfg,
		dialer: dialer,
		open:   opener,
		logger: lg.Named("survey"),
		runID:  uuid.New(),
		state:  StateNotStarted,
	}, nil
}
