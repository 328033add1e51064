package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/migueljbento/percenseo/internal/domain"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?>` + "\n<Response></Response>"

// param reads a provider parameter from the form body, then the query string.
// Fiber strings point into the request buffer, so the value is copied.
func param(ctx *fiber.Ctx, key string) string {
	v := ctx.FormValue(key)
	if v == "" {
		v = ctx.Query(key)
	}
	return strings.Clone(strings.TrimSpace(v))
}

// parseResult maps a terminal-status callback to a result. Missing or
// malformed fields fall back to defaults instead of failing the request.
func (h *HandlerSet) parseResult(ctx *fiber.Ctx) domain.Result {
	result := domain.Result{
		Destination:   param(ctx, "Caller"),
		CallSID:       param(ctx, "CallSid"),
		HumanAnswered: domain.IsHumanAnswer(param(ctx, "AnsweredBy")),
		Status:        domain.ParseCallStatus(param(ctx, "CallStatus")),
		Direction:     domain.ParseCallDirection(param(ctx, "Direction")),
		CalledAt:      domain.ParseTimestamp(param(ctx, "Timestamp")),
	}
	if result.Destination == "" {
		result.Destination = param(ctx, "To")
	}

	if raw := param(ctx, "CallDuration"); raw != "" {
		duration, ok := domain.ParseDuration(raw)
		if !ok {
			h.logger.Warn("unable to read call duration", zap.String("call_sid", result.CallSID), zap.String("duration", raw))
		}
		result.DurationSeconds = duration
	}

	if digits := param(ctx, "Digits"); digits != "" {
		result.Digits = &digits
	}
	return result
}

// recordResult always acknowledges with 200 so the provider does not retry.
func (h *HandlerSet) recordResult(ctx *fiber.Ctx) error {
	result := h.parseResult(ctx)
	h.logger.Info("call result",
		zap.String("call_sid", result.CallSID),
		zap.String("destination", result.Destination),
		zap.String("status", result.Status.String()),
		zap.Int("duration", result.DurationSeconds),
		zap.Bool("human_answered", result.HumanAnswered),
	)

	if !result.Placed() {
		h.logger.Warn("call result without CallSid, not persisted", zap.String("destination", result.Destination))
	} else if err := h.results.Record(ctx.UserContext(), result); err != nil {
		h.logger.Error("unable to store call result", zap.String("call_sid", result.CallSID), zap.Error(err))
	}

	ctx.Set(fiber.HeaderContentType, "text/xml; charset=utf-8")
	return ctx.Status(fiber.StatusOK).SendString(emptyTwiML)
}
