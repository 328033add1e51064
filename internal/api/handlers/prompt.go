package handlers

import "github.com/gofiber/fiber/v2"

func (h *HandlerSet) callScript(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderContentType, "text/xml; charset=utf-8")
	return ctx.Status(fiber.StatusOK).SendString(h.prompt)
}
