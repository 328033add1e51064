package result

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/migueljbento/percenseo/internal/domain"
	"github.com/migueljbento/percenseo/internal/metrics"
	"github.com/migueljbento/percenseo/internal/queue"
	"github.com/migueljbento/percenseo/internal/repository"
	"github.com/migueljbento/percenseo/pkg/logger"
)

// Publisher announces stored results.
type Publisher interface {
	PublishResult(ctx context.Context, event queue.ResultEvent) error
}

// Service records terminal call results reported by the provider.
type Service struct {
	store     repository.ResultStore
	publisher Publisher
	logger    *logger.Logger
	now       func() time.Time

	// serialises store writes; callback volume is low
	mu sync.Mutex
}

// NewService constructs a result service. publisher may be nil.
func NewService(store repository.ResultStore, publisher Publisher, lg *logger.Logger) *Service {
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    lg.Named("results"),
		now:       time.Now,
	}
}

// Record stores r, replacing any earlier result for the same call, then
// publishes it. Publish failures are logged and do not fail the call.
func (s *Service) Record(ctx context.Context, r domain.Result) error {
	metrics.CallbacksTotal.WithLabelValues(r.Status.String()).Inc()

	if err := repository.CheckSavable(r); err != nil {
		metrics.CallbackFailures.WithLabelValues("unkeyed").Inc()
		return fmt.Errorf("result service: %w", err)
	}

	s.mu.Lock()
	err := s.store.Save(ctx, r)
	s.mu.Unlock()
	if err != nil {
		metrics.CallbackFailures.WithLabelValues("persist").Inc()
		return fmt.Errorf("result service: record %s: %w", r.CallSID, err)
	}
	s.logger.Debug("call persisted", zap.String("call_sid", r.CallSID))

	if s.publisher != nil {
		if err := s.publisher.PublishResult(ctx, queue.NewResultEvent(r, s.now())); err != nil {
			metrics.CallbackFailures.WithLabelValues("publish").Inc()
			s.logger.Error("unable to publish call result", zap.String("call_sid", r.CallSID), zap.Error(err))
		}
	}
	return nil
}

// Summary counts stored results by status.
func (s *Service) Summary(ctx context.Context) (map[domain.CallStatus]int64, error) {
	counts, err := s.store.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("result service: summary: %w", err)
	}
	return counts, nil
}

// Ping checks the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
