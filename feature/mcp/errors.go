package mcp

import (
	"errors"

	"mcp-manager/core/jsonfile"
	"mcp-manager/feature/mcp/models"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case jsonfile.IsMalformed(err):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrAmbiguousTarget),
		errors.Is(err, models.ErrBuiltInClient):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrClientNotFound),
		errors.Is(err, models.ErrGroupNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
