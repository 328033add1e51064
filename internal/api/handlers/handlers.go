package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/migueljbento/percenseo/internal/domain"
	"github.com/migueljbento/percenseo/internal/telephony"
	"github.com/migueljbento/percenseo/pkg/logger"
)

// ResultRecorder stores terminal call results.
type ResultRecorder interface {
	Record(ctx context.Context, r domain.Result) error
	Summary(ctx context.Context) (map[domain.CallStatus]int64, error)
	Ping(ctx context.Context) error
}

// Options configures routes and the in-call script.
type Options struct {
	CallPath   string
	ResultPath string
	// ResultURL is where gathered digits are posted; defaults to ResultPath.
	ResultURL string
	Prompt    telephony.Prompt
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	results ResultRecorder
	logger  *logger.Logger
	opts    Options
	prompt  string
}

// NewHandlerSet creates a new handler bundle. The prompt is rendered once.
func NewHandlerSet(results ResultRecorder, opts Options, lg *logger.Logger) (*HandlerSet, error) {
	if lg == nil {
		lg = logger.NewNop()
	}
	if opts.CallPath == "" {
		opts.CallPath = "/survey/call"
	}
	if opts.ResultPath == "" {
		opts.ResultPath = "/survey/result"
	}
	if opts.Prompt.ActionURL == "" {
		opts.Prompt.ActionURL = opts.ResultURL
	}
	if opts.Prompt.ActionURL == "" {
		opts.Prompt.ActionURL = opts.ResultPath
	}

	prompt, err := telephony.RenderPrompt(opts.Prompt)
	if err != nil {
		return nil, fmt.Errorf("handlers: render prompt: %w", err)
	}

	return &HandlerSet{
		results: results,
		logger:  lg.Named("http"),
		opts:    opts,
		prompt:  prompt,
	}, nil
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get(h.opts.CallPath, h.callScript)
	app.Post(h.opts.CallPath, h.callScript)
	app.Get(h.opts.ResultPath, h.recordResult)
	app.Post(h.opts.ResultPath, h.recordResult)

	app.Get("/survey/summary", h.summary)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)
	if err := h.results.Ping(healthCtx); err != nil {
		errs["store"] = err.Error()
	}

	status := fiber.StatusOK
	state := "ok"
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}

	return ctx.Status(status).JSON(fiber.Map{"status": state, "errors": errs})
}

func (h *HandlerSet) summary(ctx *fiber.Ctx) error {
	counts, err := h.results.Summary(ctx.UserContext())
	if err != nil {
		return translateError(err)
	}

	out := make(map[string]int64, len(counts))
	var total int64
	for status, n := range counts {
		out[status.String()] = n
		total += n
	}
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"counts": out, "total": total})
}
