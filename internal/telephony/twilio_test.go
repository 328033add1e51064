package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/migueljbento/percenseo/pkg/errors"
)

func testSettings(baseURL string) Settings {
	return Settings{
		AccountSID:     "AC123",
		AuthToken:      "secret",
		CallerNumber:   "+15005550006",
		CallHandlerURL: "https://survey.example.com/survey/call",
		CallResultURL:  "https://survey.example.com/survey/result",
		BaseURL:        baseURL,
	}
}

func TestTwilioDialer_Dial_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		switch r.URL.Path {
		case "/Accounts/AC123.json":
			assert.Equal(t, http.MethodGet, r.Method)
			fmt.Fprint(w, `{"sid":"AC123","status":"active"}`)
		case "/Accounts/AC123/Calls.json":
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "+351912345678", r.PostForm.Get("To"))
			assert.Equal(t, "+15005550006", r.PostForm.Get("From"))
			assert.Equal(t, "https://survey.example.com/survey/call", r.PostForm.Get("Url"))
			assert.Equal(t, "https://survey.example.com/survey/result", r.PostForm.Get("StatusCallback"))
			assert.Equal(t, "Hangup", r.PostForm.Get("IfMachine"))
			assert.Equal(t, "30", r.PostForm.Get("Timeout"))

			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{
				"sid": "CAe1644a7eed5088b159577c5802d8be38",
				"to": "+351912345678",
				"from": "+15005550006",
				"status": "queued",
				"direction": "outbound-api",
				"duration": null,
				"answered_by": null,
				"date_created": "Tue, 10 Aug 2010 08:02:17 +0000"
			}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	dialer, err := NewTwilioDialer(context.Background(), testSettings(server.URL), nil, server.Client())
	require.NoError(t, err)

	call, err := dialer.Dial(context.Background(), "+351912345678")
	require.NoError(t, err)
	assert.Equal(t, "CAe1644a7eed5088b159577c5802d8be38", call.SID)
	assert.Equal(t, "+351912345678", call.To)
	assert.Equal(t, "queued", call.Status)
	assert.Equal(t, "outbound-api", call.Direction)
	assert.Empty(t, call.Duration)
	assert.Empty(t, call.AnsweredBy)
	require.NotNil(t, call.DateCreated)
	assert.Equal(t, 2010, call.DateCreated.Year())
}

func TestTwilioDialer_AuthenticationFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":20003,"message":"Authenticate","status":401}`)
	}))
	defer server.Close()

	dialer, err := NewTwilioDialer(context.Background(), testSettings(server.URL), nil, server.Client())
	require.Error(t, err)
	assert.Nil(t, dialer)
	assert.True(t, errors.Is(err, apperrors.ErrAuthentication))

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 20003, perr.Code)
}

func TestTwilioDialer_Dial_ProviderRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"sid":"AC123"}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`)
	}))
	defer server.Close()

	dialer, err := NewTwilioDialer(context.Background(), testSettings(server.URL), nil, server.Client())
	require.NoError(t, err)

	_, err = dialer.Dial(context.Background(), "not-a-number")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDial))
	assert.False(t, errors.Is(err, apperrors.ErrAuthentication))

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.HTTPStatus)
	assert.Equal(t, 21211, perr.Code)
	assert.Contains(t, perr.Error(), "not a valid phone number")
}

func TestTwilioDialer_Dial_TransportError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"sid":"AC123"}`)
	}))

	dialer, err := NewTwilioDialer(context.Background(), testSettings(server.URL), nil, server.Client())
	require.NoError(t, err)
	server.Close()

	_, err = dialer.Dial(context.Background(), "+351912345678")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDial))
	assert.Equal(t, 1, calls)
}

func TestTwilioDialer_Dial_DurationPresent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"sid":"AC123"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"sid":"CA1","to":"+1","status":"completed","direction":"outbound-api","duration":"28","answered_by":"human"}`)
	}))
	defer server.Close()

	dialer, err := NewTwilioDialer(context.Background(), testSettings(server.URL), nil, server.Client())
	require.NoError(t, err)

	call, err := dialer.Dial(context.Background(), "+1")
	require.NoError(t, err)
	assert.Equal(t, "28", call.Duration)
	assert.Equal(t, "human", call.AnsweredBy)
	assert.Nil(t, call.DateCreated)
}
