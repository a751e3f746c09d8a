package presets

import (
	"errors"

	"mcp-manager/core/jsonfile"
	"mcp-manager/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for presets.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the preset routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/presets")
	group.Get("/", h.HandleList)
	group.Get("/:name", h.HandleGet)
	group.Post("/:name", h.HandleSave)
	group.Delete("/:name", h.HandleDelete)
}

func (h *Handler) fail(c *fiber.Ctx, msg string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, ErrInvalid):
		status = fiber.StatusBadRequest
	case jsonfile.IsMalformed(err):
		status = fiber.StatusUnprocessableEntity
	}
	if status == fiber.StatusInternalServerError {
		logger.WithRayID(h.service.logger, c).Error(msg, zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// HandleList returns every preset.
// @Summary List Presets
// @Tags presets
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /presets [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	all, err := h.service.List(c.Context())
	if err != nil {
		return h.fail(c, "Failed to list presets", err)
	}
	return c.JSON(all)
}

// HandleGet returns one preset.
// @Summary Get Preset
// @Tags presets
// @Produce json
// @Param name path string true "Preset name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Unknown preset"
// @Router /presets/{name} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	data, err := h.service.Get(c.Context(), c.Params("name"))
	if err != nil {
		return h.fail(c, "Failed to get preset", err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// HandleSave stores the request body as a preset.
// @Summary Save Preset
// @Tags presets
// @Accept json
// @Param name path string true "Preset name"
// @Param body body object true "Preset content, e.g. {\"mcpServers\": {}}"
// @Success 204
// @Failure 400 {object} map[string]string "Body is not a JSON object"
// @Router /presets/{name} [post]
func (h *Handler) HandleSave(c *fiber.Ctx) error {
	if err := h.service.Save(c.Context(), c.Params("name"), c.Body()); err != nil {
		return h.fail(c, "Failed to save preset", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleDelete removes a preset.
// @Summary Delete Preset
// @Tags presets
// @Param name path string true "Preset name"
// @Success 204
// @Failure 404 {object} map[string]string "Unknown preset"
// @Router /presets/{name} [delete]
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("name")); err != nil {
		return h.fail(c, "Failed to delete preset", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
