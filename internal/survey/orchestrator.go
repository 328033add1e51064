package survey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/migueljbento/percenseo/internal/domain"
	"github.com/migueljbento/percenseo/internal/metrics"
	"github.com/migueljbento/percenseo/internal/repository"
	"github.com/migueljbento/percenseo/internal/telephony"
	apperrors "github.com/migueljbento/percenseo/pkg/errors"
	"github.com/migueljbento/percenseo/pkg/logger"
)

const tracerName = "percenseo.survey"

// Orchestrator runs one survey: it skips destinations already completed in
// the result store and dials the rest one after the other.
type Orchestrator struct {
	cfg    Configuration
	dialer telephony.Dialer
	open   repository.Opener
	logger *logger.Logger
	runID  uuid.UUID

	mu       sync.Mutex
	state    State
	executed bool
}

func (o *Orchestrator) RunID() uuid.UUID { return o.runID }

func (o *Orchestrator) Configuration() Configuration { return o.cfg }

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Execute performs the run. Store and numbers failures abort it before any
// call is placed and yield an empty summary in StateFailed; dial failures
// are recorded as FAILED results and the run goes on. Execute can be called
// once per orchestrator.
func (o *Orchestrator) Execute(ctx context.Context) (Summary, error) {
	o.mu.Lock()
	if o.executed {
		o.mu.Unlock()
		return Summary{}, fmt.Errorf("survey: execute run %s: %w", o.runID, apperrors.ErrAlreadyExecuted)
	}
	o.executed = true
	o.mu.Unlock()

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "survey.run", trace.WithAttributes(
		attribute.String("run.id", o.runID.String()),
		attribute.Bool("numbers.file_based", o.cfg.FileBased()),
	))
	defer span.End()

	lg := o.logger.WithContext(ctx).With(zap.String("run_id", o.runID.String()))
	summary := Summary{RunID: o.runID, StartedAt: time.Now().UTC()}

	fail := func(err error) (Summary, error) {
		o.setState(StateFailed)
		metrics.SurveyRunsTotal.WithLabelValues(StateFailed.String()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg.Error("survey run failed", zap.Error(err))
		return Summary{RunID: o.runID, State: StateFailed, StartedAt: summary.StartedAt, FinishedAt: time.Now().UTC()}, err
	}

	store, err := o.open(ctx, o.cfg.StoreLocation())
	if err != nil {
		return fail(storeError("open store", err))
	}
	o.setState(StateStoreOpen)

	completed, err := repository.LoadCompleted(ctx, store)
	if err != nil {
		o.closeStore(store, lg)
		return fail(storeError("load completed destinations", err))
	}

	raw, err := o.resolveNumbers()
	if err != nil {
		o.closeStore(store, lg)
		return fail(err)
	}

	destinations, skipped := o.selectDestinations(raw, completed)
	summary.Skipped = skipped
	o.setState(StateNumbersResolved)
	lg.Info("numbers resolved",
		zap.Int("input", len(raw)),
		zap.Int("already_completed", skipped),
		zap.Int("to_dial", len(destinations)),
	)

	o.setState(StateDialing)
	summary.Results = make([]domain.Result, 0, len(destinations))
	for _, destination := range destinations {
		summary.Results = append(summary.Results, o.dial(ctx, tracer, lg, destination))
	}

	summary.Counts = countByStatus(summary.Results)
	o.setState(StateAggregated)
	lg.Info(fmt.Sprintf("Successfully queued %d phone calls. There were %d failures.", summary.Queued(), summary.Failed()),
		zap.Int("queued", summary.Queued()),
		zap.Int("failed", summary.Failed()),
		zap.Int("total", len(summary.Results)),
	)

	o.closeStore(store, lg)
	o.setState(StateStoreClosed)

	summary.State = StateStoreClosed
	summary.FinishedAt = time.Now().UTC()
	metrics.SurveyRunsTotal.WithLabelValues(StateStoreClosed.String()).Inc()
	span.SetAttributes(
		attribute.Int("calls.total", len(summary.Results)),
		attribute.Int("calls.queued", summary.Queued()),
		attribute.Int("calls.failed", summary.Failed()),
	)
	return summary, nil
}

func (o *Orchestrator) resolveNumbers() ([]string, error) {
	if o.cfg.FileBased() {
		return ReadNumbersFile(o.cfg.NumbersFile())
	}
	return o.cfg.Numbers(), nil
}

// selectDestinations applies the prefix and drops destinations present in
// the completed set. Input order and duplicates are kept.
func (o *Orchestrator) selectDestinations(raw []string, completed repository.CompletedSet) ([]string, int) {
	prefix, hasPrefix := o.cfg.InternationalPrefix()

	out := make([]string, 0, len(raw))
	skipped := 0
	for _, number := range raw {
		destination := number
		if hasPrefix {
			destination = prefix + number
		}
		if completed.Contains(destination) {
			skipped++
			continue
		}
		out = append(out, destination)
	}
	return out, skipped
}

func (o *Orchestrator) dial(ctx context.Context, tracer trace.Tracer, lg *logger.Logger, destination string) domain.Result {
	ctx, span := tracer.Start(ctx, "survey.dial", trace.WithAttributes(
		attribute.String("destination", destination),
	))
	defer span.End()

	call, err := o.dialer.Dial(ctx, destination)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg.Warn("unable to place call", zap.String("destination", destination), zap.Error(err))
		return domain.FailedCall(destination)
	}

	result := resultFromCall(call, destination, lg)
	span.SetAttributes(
		attribute.String("call.sid", result.CallSID),
		attribute.String("call.status", result.Status.String()),
	)
	lg.Debug("call placed",
		zap.String("destination", result.Destination),
		zap.String("call_sid", result.CallSID),
		zap.String("status", result.Status.String()),
	)
	return result
}

func resultFromCall(call telephony.Call, destination string, lg *logger.Logger) domain.Result {
	result := domain.Result{
		Destination:   call.To,
		CallSID:       call.SID,
		HumanAnswered: domain.IsHumanAnswer(call.AnsweredBy),
		Status:        domain.ParseCallStatus(call.Status),
		Direction:     domain.ParseCallDirection(call.Direction),
		CalledAt:      call.DateCreated,
	}
	if result.Destination == "" {
		result.Destination = destination
	}
	if call.Duration != "" {
		duration, ok := domain.ParseDuration(call.Duration)
		if !ok {
			lg.Warn("unable to read call duration",
				zap.String("call_sid", call.SID),
				zap.String("duration", call.Duration),
			)
		}
		result.DurationSeconds = duration
	}
	return result
}

func (o *Orchestrator) closeStore(store repository.ResultStore, lg *logger.Logger) {
	if err := store.Close(); err != nil {
		lg.Error("unable to close result store", zap.Error(err))
	}
}

func storeError(op string, err error) error {
	if errors.Is(err, apperrors.ErrStore) {
		return fmt.Errorf("survey: %s: %w", op, err)
	}
	return fmt.Errorf("survey: %s: %w: %w", op, apperrors.ErrStore, err)
}
