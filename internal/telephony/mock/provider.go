package mock

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/migueljbento/percenseo/internal/metrics"
	"github.com/migueljbento/percenseo/internal/telephony"
	apperrors "github.com/migueljbento/percenseo/pkg/errors"
)

const providerName = "mock"

// Dialer simulates the provider without any network traffic. Every accepted
// call comes back queued with a random call id.
type Dialer struct {
	settings    telephony.Settings
	failureRate float64
	latency     time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// Option tweaks the simulated behaviour.
type Option func(*Dialer)

// WithFailureRate makes a share of dials fail with a provider error.
func WithFailureRate(rate float64) Option {
	return func(d *Dialer) { d.failureRate = rate }
}

// WithLatency delays each dial.
func WithLatency(latency time.Duration) Option {
	return func(d *Dialer) { d.latency = latency }
}

// NewDialer constructs a simulated dialer.
func NewDialer(settings telephony.Settings, opts ...Option) *Dialer {
	d := &Dialer{
		settings: settings,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial simulates a call creation request.
func (d *Dialer) Dial(ctx context.Context, destination string) (telephony.Call, error) {
	if d.latency > 0 {
		select {
		case <-ctx.Done():
			return telephony.Call{}, fmt.Errorf("mock: dial %s: %w: %w", destination, apperrors.ErrDial, ctx.Err())
		case <-time.After(d.latency):
		}
	}

	d.mu.Lock()
	fail := d.failureRate > 0 && d.rng.Float64() < d.failureRate
	d.mu.Unlock()

	if fail {
		metrics.DialsTotal.WithLabelValues(providerName, "failed").Inc()
		return telephony.Call{}, &telephony.ProviderError{HTTPStatus: 400, Code: 21211, Message: "simulated failure"}
	}

	now := time.Now().UTC().Truncate(time.Second)
	metrics.DialsTotal.WithLabelValues(providerName, "placed").Inc()
	return telephony.Call{
		SID:         "CA" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		To:          destination,
		From:        d.settings.CallerNumber,
		Status:      "queued",
		Direction:   "outbound-api",
		DateCreated: &now,
	}, nil
}
