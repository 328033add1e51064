package survey

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/migueljbento/percenseo/internal/domain"
	"github.com/migueljbento/percenseo/internal/repository"
	"github.com/migueljbento/percenseo/internal/repository/memory"
	"github.com/migueljbento/percenseo/internal/telephony"
	apperrors "github.com/migueljbento/percenseo/pkg/errors"
	"github.com/migueljbento/percenseo/pkg/logger"
)

type mockDialer struct {
	mock.Mock
}

func (m *mockDialer) Dial(ctx context.Context, destination string) (telephony.Call, error) {
	args := m.Called(ctx, destination)
	return args.Get(0).(telephony.Call), args.Error(1)
}

// faultyStore wraps the memory store with injectable failures.
type faultyStore struct {
	*memory.ResultStore
	destinationsErr error
	closeErr        error
}

func (s *faultyStore) Destinations(ctx context.Context, status domain.CallStatus) ([]string, error) {
	if s.destinationsErr != nil {
		return nil, s.destinationsErr
	}
	return s.ResultStore.Destinations(ctx, status)
}

func (s *faultyStore) Close() error {
	_ = s.ResultStore.Close()
	return s.closeErr
}

func queued(destination string) telephony.Call {
	return telephony.Call{
		SID:       "CA" + destination,
		To:        destination,
		Status:    "queued",
		Direction: "outbound-api",
	}
}

func openerFor(store repository.ResultStore) repository.Opener {
	return func(ctx context.Context, location string) (repository.ResultStore, error) {
		return store, nil
	}
}

func validBuilder(dialer telephony.Dialer, opener repository.Opener) *Builder {
	return NewBuilder().
		WithStoreLocation("memory://survey-test").
		WithCallHandlerURL("https://survey.example.com/survey/call").
		WithCallResultURL("https://survey.example.com/survey/result").
		WithAccountSID("AC123").
		WithAuthToken("secret").
		WithCallerNumber("+15005550006").
		WithStoreOpener(opener).
		WithDialerFactory(func(ctx context.Context, s telephony.Settings) (telephony.Dialer, error) {
			return dialer, nil
		})
}

func build(t *testing.T, b *Builder) *Orchestrator {
	t.Helper()
	o, err := b.Build(context.Background())
	require.NoError(t, err)
	return o
}

func TestExecute_DialsEveryNumberInOrder(t *testing.T) {
	dialer := &mockDialer{}
	numbers := []string{"+16175551212", "+16175551213", "+16175551214"}
	for _, n := range numbers {
		dialer.On("Dial", mock.Anything, n).Return(queued(n), nil).Once()
	}
	store := memory.NewResultStore()

	o := build(t, validBuilder(dialer, openerFor(store)).WithNumbers(numbers))
	assert.Equal(t, StateNotStarted, o.State())

	summary, err := o.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	for i, n := range numbers {
		assert.Equal(t, n, summary.Results[i].Destination)
		assert.Equal(t, "CA"+n, summary.Results[i].CallSID)
		assert.Equal(t, domain.CallStatusQueued, summary.Results[i].Status)
		assert.Equal(t, domain.CallDirectionOutbound, summary.Results[i].Direction)
	}
	assert.Equal(t, 3, summary.Queued())
	assert.Equal(t, 0, summary.Failed())
	assert.Equal(t, StateStoreClosed, summary.State)
	assert.Equal(t, StateStoreClosed, o.State())
	assert.Equal(t, o.RunID(), summary.RunID)
	assert.True(t, store.Closed())
	dialer.AssertExpectations(t)
}

func TestExecute_SkipsCompletedDestinations(t *testing.T) {
	store := memory.NewResultStore()
	require.NoError(t, store.Save(context.Background(), domain.Result{
		CallSID:     "CAold",
		Destination: "+351900000001",
		Status:      domain.CallStatusCompleted,
	}))

	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+351900000002").Return(queued("+351900000002"), nil).Once()

	o := build(t, validBuilder(dialer, openerFor(store)).WithNumbers([]string{"+351900000001", "+351900000002"}))
	summary, err := o.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, "+351900000002", summary.Results[0].Destination)
	assert.Equal(t, 1, summary.Skipped)
	dialer.AssertExpectations(t)
	dialer.AssertNotCalled(t, "Dial", mock.Anything, "+351900000001")
}

func TestExecute_OnlyCompletedStatusIsSkipped(t *testing.T) {
	store := memory.NewResultStore()
	require.NoError(t, store.Save(context.Background(), domain.Result{CallSID: "CA1", Destination: "+1", Status: domain.CallStatusBusy}))
	require.NoError(t, store.Save(context.Background(), domain.Result{CallSID: "CA2", Destination: "+2", Status: domain.CallStatusNoAnswer}))

	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+1").Return(queued("+1"), nil).Once()
	dialer.On("Dial", mock.Anything, "+2").Return(queued("+2"), nil).Once()

	summary, err := build(t, validBuilder(dialer, openerFor(store)).WithNumbers([]string{"+1", "+2"})).Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Results, 2)
	dialer.AssertExpectations(t)
}

func TestExecute_AppliesInternationalPrefix(t *testing.T) {
	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+351912345678").Return(queued("+351912345678"), nil).Once()

	o := build(t, validBuilder(dialer, openerFor(memory.NewResultStore())).
		WithNumbers([]string{"912345678"}).
		WithInternationalPrefix("+351"))

	summary, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "+351912345678", summary.Results[0].Destination)
	dialer.AssertExpectations(t)
}

func TestExecute_PrefixMatchesCompletedSetAfterPrefixing(t *testing.T) {
	store := memory.NewResultStore()
	require.NoError(t, store.Save(context.Background(), domain.Result{CallSID: "CA1", Destination: "+351912345678", Status: domain.CallStatusCompleted}))
	dialer := &mockDialer{}

	summary, err := build(t, validBuilder(dialer, openerFor(store)).
		WithNumbers([]string{"912345678"}).
		WithInternationalPrefix("+351")).Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
}

func TestExecute_DialErrorBecomesFailedResult(t *testing.T) {
	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+1").Return(queued("+1"), nil).Once()
	dialer.On("Dial", mock.Anything, "+2").Return(telephony.Call{}, &telephony.ProviderError{HTTPStatus: 400, Code: 21211, Message: "invalid number"}).Once()
	dialer.On("Dial", mock.Anything, "+3").Return(queued("+3"), nil).Once()

	summary, err := build(t, validBuilder(dialer, openerFor(memory.NewResultStore())).
		WithNumbers([]string{"+1", "+2", "+3"})).Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	failed := summary.Results[1]
	assert.Equal(t, "+2", failed.Destination)
	assert.Equal(t, domain.CallStatusFailed, failed.Status)
	assert.Empty(t, failed.CallSID)
	assert.False(t, failed.Placed())
	assert.Equal(t, domain.CallStatusQueued, summary.Results[2].Status)
	assert.Equal(t, 2, summary.Queued())
	assert.Equal(t, 1, summary.Failed())
	dialer.AssertExpectations(t)
}

func TestExecute_EveryFailureIsDistinct(t *testing.T) {
	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, mock.Anything).Return(telephony.Call{}, errors.New("boom"))

	summary, err := build(t, validBuilder(dialer, openerFor(memory.NewResultStore())).
		WithNumbers([]string{"+1", "+2"})).Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, "+1", summary.Results[0].Destination)
	assert.Equal(t, "+2", summary.Results[1].Destination)
	assert.Equal(t, 2, summary.Failed())
}

func TestExecute_MapsSnapshotFields(t *testing.T) {
	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+1").Return(telephony.Call{
		SID:        "CA1",
		To:         "+1",
		Status:     "completed",
		Direction:  "outbound-api",
		Duration:   "abc",
		AnsweredBy: "human",
	}, nil).Once()
	dialer.On("Dial", mock.Anything, "+2").Return(telephony.Call{
		SID:      "CA2",
		Status:   "mystery",
		Duration: "28",
	}, nil).Once()

	summary, err := build(t, validBuilder(dialer, openerFor(memory.NewResultStore())).
		WithNumbers([]string{"+1", "+2"})).Execute(context.Background())
	require.NoError(t, err)

	first := summary.Results[0]
	assert.Equal(t, 0, first.DurationSeconds)
	assert.Equal(t, domain.CallStatusCompleted, first.Status)
	assert.Equal(t, 5, first.Status.Code())
	assert.True(t, first.HumanAnswered)

	second := summary.Results[1]
	assert.Equal(t, "+2", second.Destination)
	assert.Equal(t, 28, second.DurationSeconds)
	assert.Equal(t, domain.CallStatusUnknown, second.Status)
	assert.Equal(t, domain.CallDirectionUnknown, second.Direction)
	assert.False(t, second.HumanAnswered)
}

func TestExecute_DuplicatesAreDialedEachTime(t *testing.T) {
	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+1").Return(queued("+1"), nil).Twice()

	summary, err := build(t, validBuilder(dialer, openerFor(memory.NewResultStore())).
		WithNumbers([]string{"+1", "+1"})).Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Results, 2)
	dialer.AssertNumberOfCalls(t, "Dial", 2)
}

func TestExecute_StoreOpenFailure(t *testing.T) {
	dialer := &mockDialer{}
	opener := func(ctx context.Context, location string) (repository.ResultStore, error) {
		return nil, errors.New("connection refused")
	}

	o := build(t, validBuilder(dialer, opener).WithNumbers([]string{"+1"}))
	summary, err := o.Execute(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStore))
	assert.Empty(t, summary.Results)
	assert.Equal(t, StateFailed, summary.State)
	assert.Equal(t, StateFailed, o.State())
	dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
}

func TestExecute_CompletedQueryFailure(t *testing.T) {
	dialer := &mockDialer{}
	store := &faultyStore{ResultStore: memory.NewResultStore(), destinationsErr: errors.New("table missing")}

	summary, err := build(t, validBuilder(dialer, openerFor(store)).WithNumbers([]string{"+1"})).Execute(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStore))
	assert.Empty(t, summary.Results)
	assert.True(t, store.Closed())
	dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
}

func TestExecute_NumbersFileFailure(t *testing.T) {
	dialer := &mockDialer{}
	store := memory.NewResultStore()

	o := build(t, validBuilder(dialer, openerFor(store)).WithNumbersFile(filepath.Join(t.TempDir(), "missing.csv")))
	summary, err := o.Execute(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInputResolution))
	assert.Equal(t, StateFailed, summary.State)
	assert.True(t, store.Closed())
	dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
}

func TestExecute_ReadsNumbersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numbers.csv")
	require.NoError(t, os.WriteFile(path, []byte("912345678,Alice\n\n912345679,Bob\n"), 0o600))

	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+351912345678").Return(queued("+351912345678"), nil).Once()
	dialer.On("Dial", mock.Anything, "+351912345679").Return(queued("+351912345679"), nil).Once()

	summary, err := build(t, validBuilder(dialer, openerFor(memory.NewResultStore())).
		WithNumbersFile(path).
		WithInternationalPrefix("+351")).Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Results, 2)
	dialer.AssertExpectations(t)
}

func TestExecute_CloseErrorIsOnlyLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lg := &logger.Logger{Logger: zap.New(core)}

	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+1").Return(queued("+1"), nil).Once()
	store := &faultyStore{ResultStore: memory.NewResultStore(), closeErr: errors.New("close failed")}

	summary, err := build(t, validBuilder(dialer, openerFor(store)).
		WithNumbers([]string{"+1"}).
		WithLogger(lg)).Execute(context.Background())

	require.NoError(t, err)
	assert.Len(t, summary.Results, 1)
	assert.Equal(t, StateStoreClosed, summary.State)
	assert.Equal(t, 1, logs.FilterMessage("unable to close result store").Len())
	assert.Equal(t, 1, logs.FilterMessage("Successfully queued 1 phone calls. There were 0 failures.").Len())
}

func TestExecute_EmptyAfterFilteringStillCloses(t *testing.T) {
	store := memory.NewResultStore()
	require.NoError(t, store.Save(context.Background(), domain.Result{CallSID: "CA1", Destination: "+1", Status: domain.CallStatusCompleted}))
	dialer := &mockDialer{}

	summary, err := build(t, validBuilder(dialer, openerFor(store)).WithNumbers([]string{"+1"})).Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	assert.Equal(t, StateStoreClosed, summary.State)
	assert.True(t, store.Closed())
	assert.Equal(t, 0, summary.Queued())
}

func TestExecute_RunsOnce(t *testing.T) {
	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+1").Return(queued("+1"), nil).Once()

	o := build(t, validBuilder(dialer, openerFor(memory.NewResultStore())).WithNumbers([]string{"+1"}))
	_, err := o.Execute(context.Background())
	require.NoError(t, err)

	_, err = o.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExecuted))
	dialer.AssertNumberOfCalls(t, "Dial", 1)
}

func TestExecute_OpensConfiguredLocation(t *testing.T) {
	var opened string
	opener := func(ctx context.Context, location string) (repository.ResultStore, error) {
		opened = location
		return memory.NewResultStore(), nil
	}
	dialer := &mockDialer{}
	dialer.On("Dial", mock.Anything, "+1").Return(queued("+1"), nil).Once()

	_, err := build(t, validBuilder(dialer, opener).WithNumbers([]string{"+1"})).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory://survey-test", opened)
}
