package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/migueljbento/percenseo/internal/metrics"
	apperrors "github.com/migueljbento/percenseo/pkg/errors"
	"github.com/migueljbento/percenseo/pkg/logger"
)

const twilioProviderName = "twilio"

// TwilioDialer talks to the Twilio REST API directly over HTTP.
type TwilioDialer struct {
	settings   Settings
	httpClient *http.Client
	logger     *logger.Logger
}

// NewTwilioDialer builds a dialer and verifies the account credentials.
// A nil httpClient gets a client bounded by the request timeout.
func NewTwilioDialer(ctx context.Context, settings Settings, lg *logger.Logger, httpClient *http.Client) (*TwilioDialer, error) {
	settings = settings.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: settings.RequestTimeout}
	}
	if lg == nil {
		lg = logger.NewNop()
	}

	d := &TwilioDialer{
		settings:   settings,
		httpClient: httpClient,
		logger:     lg.Named(twilioProviderName),
	}

	if err := d.verifyCredentials(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

type twilioCall struct {
	SID         string  `json:"sid"`
	To          string  `json:"to"`
	From        string  `json:"from"`
	Status      string  `json:"status"`
	Direction   string  `json:"direction"`
	Duration    *string `json:"duration"`
	AnsweredBy  *string `json:"answered_by"`
	DateCreated string  `json:"date_created"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (d *TwilioDialer) accountURL() string {
	return strings.TrimRight(d.settings.BaseURL, "/") + "/Accounts/" + url.PathEscape(d.settings.AccountSID)
}

func (d *TwilioDialer) verifyCredentials(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.accountURL()+".json", nil)
	if err != nil {
		return fmt.Errorf("telephony: build account request: %w", err)
	}
	req.SetBasicAuth(d.settings.AccountSID, d.settings.AuthToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: verify credentials: %w: %w", apperrors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.logger.Debug("credentials verified", zap.String("account_sid", d.settings.AccountSID))
		return nil
	}

	perr := decodeProviderError(resp.StatusCode, body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		perr.kind = apperrors.ErrAuthentication
	}
	return fmt.Errorf("telephony: verify credentials: %w", perr)
}

// Dial asks the provider to call destination. The returned snapshot is the
// call's initial state, normally "queued".
func (d *TwilioDialer) Dial(ctx context.Context, destination string) (Call, error) {
	form := url.Values{}
	form.Set("To", destination)
	form.Set("From", d.settings.CallerNumber)
	form.Set("Url", d.settings.CallHandlerURL)
	form.Set("StatusCallback", d.settings.CallResultURL)
	form.Set("IfMachine", d.settings.MachineAction)
	form.Set("Timeout", strconv.Itoa(d.settings.RingTimeout))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.accountURL()+"/Calls.json", strings.NewReader(form.Encode()))
	if err != nil {
		return Call{}, fmt.Errorf("telephony: build call request: %w", err)
	}
	req.SetBasicAuth(d.settings.AccountSID, d.settings.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	metrics.DialDuration.WithLabelValues(twilioProviderName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DialsTotal.WithLabelValues(twilioProviderName, "failed").Inc()
		return Call{}, fmt.Errorf("telephony: create call: %w: %w", apperrors.ErrDial, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.DialsTotal.WithLabelValues(twilioProviderName, "failed").Inc()
		return Call{}, fmt.Errorf("telephony: read call response: %w: %w", apperrors.ErrDial, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.DialsTotal.WithLabelValues(twilioProviderName, "failed").Inc()
		perr := decodeProviderError(resp.StatusCode, body)
		d.logger.Warn("call rejected",
			zap.String("destination", destination),
			zap.Int("http_status", perr.HTTPStatus),
			zap.Int("code", perr.Code),
			zap.String("message", perr.Message),
		)
		return Call{}, perr
	}

	var payload twilioCall
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.DialsTotal.WithLabelValues(twilioProviderName, "failed").Inc()
		return Call{}, fmt.Errorf("telephony: decode call response: %w: %w", apperrors.ErrDial, err)
	}

	metrics.DialsTotal.WithLabelValues(twilioProviderName, "placed").Inc()
	return payload.snapshot(), nil
}

func (c twilioCall) snapshot() Call {
	call := Call{
		SID:       c.SID,
		To:        c.To,
		From:      c.From,
		Status:    c.Status,
		Direction: c.Direction,
	}
	if c.Duration != nil {
		call.Duration = *c.Duration
	}
	if c.AnsweredBy != nil {
		call.AnsweredBy = *c.AnsweredBy
	}
	if c.DateCreated != "" {
		if t, err := time.Parse(time.RFC1123Z, c.DateCreated); err == nil {
			call.DateCreated = &t
		}
	}
	return call
}

func decodeProviderError(status int, body []byte) *ProviderError {
	perr := &ProviderError{HTTPStatus: status, Message: http.StatusText(status)}

	var payload twilioError
	if err := json.Unmarshal(body, &payload); err == nil {
		perr.Code = payload.Code
		if payload.Message != "" {
			perr.Message = payload.Message
		}
	} else if len(body) > 0 && len(body) < 200 {
		perr.Message = string(body)
	}
	return perr
}
