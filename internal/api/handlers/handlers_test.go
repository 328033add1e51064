package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migueljbento/percenseo/internal/domain"
	"github.com/migueljbento/percenseo/internal/repository/memory"
	resultsvc "github.com/migueljbento/percenseo/internal/service/result"
	"github.com/migueljbento/percenseo/internal/telephony"
)

type downRecorder struct{}

func (downRecorder) Record(ctx context.Context, r domain.Result) error {
	return errors.New("store down")
}

func (downRecorder) Summary(ctx context.Context) (map[domain.CallStatus]int64, error) {
	return nil, errors.New("store down")
}

func (downRecorder) Ping(ctx context.Context) error {
	return errors.New("store down")
}

func newTestApp(t *testing.T, recorder ResultRecorder, opts Options) *fiber.App {
	t.Helper()
	if len(opts.Prompt.Lines) == 0 {
		opts.Prompt = telephony.DefaultPrompt()
	}
	h, err := NewHandlerSet(recorder, opts, nil)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: h.ErrorHandler})
	h.Register(app)
	return app
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestRecordResult_PersistsCallback(t *testing.T) {
	store := memory.NewResultStore()
	app := newTestApp(t, resultsvc.NewService(store, nil, nil), Options{})

	resp := postForm(t, app, "/survey/result", url.Values{
		"Caller":       {"+351912345678"},
		"CallSid":      {"CA42"},
		"CallDuration": {"28"},
		"AnsweredBy":   {"human"},
		"CallStatus":   {"completed"},
		"Direction":    {"outbound-api"},
		"Digits":       {"3"},
		"Timestamp":    {"Wed, 18 Nov 2015 19:00:00 +0000"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/xml")

	results := store.Results()
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "+351912345678", r.Destination)
	assert.Equal(t, "CA42", r.CallSID)
	assert.Equal(t, 28, r.DurationSeconds)
	assert.True(t, r.HumanAnswered)
	assert.Equal(t, domain.CallStatusCompleted, r.Status)
	assert.Equal(t, domain.CallDirectionOutbound, r.Direction)
	require.NotNil(t, r.Digits)
	assert.Equal(t, "3", *r.Digits)
	require.NotNil(t, r.CalledAt)
	assert.True(t, r.CalledAt.Equal(time.Date(2015, 11, 18, 19, 0, 0, 0, time.UTC)))
}

func TestRecordResult_DegradesMalformedFields(t *testing.T) {
	store := memory.NewResultStore()
	app := newTestApp(t, resultsvc.NewService(store, nil, nil), Options{})

	resp := postForm(t, app, "/survey/result", url.Values{
		"To":           {"+16175551212"},
		"CallSid":      {"CA1"},
		"CallDuration": {"abc"},
		"AnsweredBy":   {"machine_start"},
		"CallStatus":   {"unknown_status"},
		"Direction":    {"sideways"},
		"Timestamp":    {"yesterday"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	results := store.Results()
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "+16175551212", r.Destination)
	assert.Equal(t, 0, r.DurationSeconds)
	assert.False(t, r.HumanAnswered)
	assert.Equal(t, domain.CallStatusUnknown, r.Status)
	assert.Equal(t, domain.CallDirectionUnknown, r.Direction)
	assert.Nil(t, r.CalledAt)
	assert.Nil(t, r.Digits)
}

func TestRecordResult_WithoutCallSIDIsAcknowledged(t *testing.T) {
	store := memory.NewResultStore()
	app := newTestApp(t, resultsvc.NewService(store, nil, nil), Options{})

	resp := postForm(t, app, "/survey/result", url.Values{"Caller": {"+1"}, "CallStatus": {"completed"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, store.Results())
}

func TestRecordResult_StoreFailureStillAcknowledged(t *testing.T) {
	app := newTestApp(t, downRecorder{}, Options{})

	resp := postForm(t, app, "/survey/result", url.Values{"CallSid": {"CA1"}, "CallStatus": {"busy"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecordResult_QueryParameters(t *testing.T) {
	store := memory.NewResultStore()
	app := newTestApp(t, resultsvc.NewService(store, nil, nil), Options{ResultPath: "/cb"})

	req := httptest.NewRequest(http.MethodGet, "/cb?CallSid=CA9&Caller=%2B1&CallStatus=no-answer", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	results := store.Results()
	require.Len(t, results, 1)
	assert.Equal(t, domain.CallStatusNoAnswer, results[0].Status)
	assert.Equal(t, "+1", results[0].Destination)
}

func TestCallScript(t *testing.T) {
	prompt := telephony.DefaultPrompt()
	prompt.GatherDigits = 1
	app := newTestApp(t, downRecorder{}, Options{ResultURL: "https://survey.example.com/survey/result", Prompt: prompt})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp, err := app.Test(httptest.NewRequest(method, "/survey/call", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `<Say voice="alice" language="en-US">`)
		assert.Contains(t, string(body), `action="https://survey.example.com/survey/result"`)
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, resultsvc.NewService(memory.NewResultStore(), nil, nil), Options{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	app = newTestApp(t, downRecorder{}, Options{})
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSummary(t *testing.T) {
	store := memory.NewResultStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, domain.Result{CallSID: "CA1", Status: domain.CallStatusCompleted}))
	require.NoError(t, store.Save(ctx, domain.Result{CallSID: "CA2", Status: domain.CallStatusCompleted}))
	require.NoError(t, store.Save(ctx, domain.Result{CallSID: "CA3", Status: domain.CallStatusBusy}))

	app := newTestApp(t, resultsvc.NewService(store, nil, nil), Options{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/survey/summary", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Counts map[string]int64 `json:"counts"`
		Total  int64            `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(2), body.Counts["completed"])
	assert.Equal(t, int64(1), body.Counts["busy"])
	assert.Equal(t, int64(3), body.Total)
}

func TestSummaryStoreDown(t *testing.T) {
	app := newTestApp(t, downRecorder{}, Options{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/survey/summary", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, downRecorder{}, Options{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
