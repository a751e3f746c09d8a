package mcp

import (
	"mcp-manager/core/logger"
	"mcp-manager/feature/mcp/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for server configurations.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the configuration routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/config", h.HandleGetConfig)
	app.Post("/config", h.HandleSaveConfig)
	app.Post("/config/reset", h.HandleResetConfig)
	app.Get("/config/:clientId", h.HandleGetClientConfig)
	app.Get("/check-configs", h.HandleCheckConfigs)

	groups := app.Group("/sync-groups")
	groups.Get("/", h.HandleListSyncGroups)
	groups.Post("/", h.HandleCreateSyncGroup)
	groups.Delete("/:id", h.HandleDissolveSyncGroup)
	groups.Delete("/:id/members/:clientId", h.HandleLeaveSyncGroup)

	clients := app.Group("/clients")
	clients.Get("/", h.HandleListClients)
	clients.Post("/", h.HandleSaveClient)
	clients.Delete("/:id", h.HandleDeleteClient)

	app.Get("/settings", h.HandleGetSettings)
	app.Post("/settings", h.HandleUpdateSettings)
}

// fail logs err and writes the matching status.
func (h *Handler) fail(c *fiber.Ctx, msg string, err error) error {
	status := statusFor(err)
	l := logger.WithRayID(h.service.logger, c)
	if status >= fiber.StatusInternalServerError {
		l.Error(msg, zap.Error(err))
	} else {
		l.Warn(msg, zap.Int("status", status), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

// HandleGetConfig returns a client, sync group or aggregated view.
// @Summary Get Config
// @Description Registry overlaid with the active set of a client or sync group. Without either, the aggregated view of all enabled clients with _sources and _conflicts.
// @Tags config
// @Produce json
// @Param clientId query string false "Client id"
// @Param groupId query string false "Sync group id"
// @Success 200 {object} models.View
// @Failure 404 {object} map[string]string "Unknown client or group"
// @Failure 422 {object} map[string]string "Malformed config file"
// @Router /config [get]
func (h *Handler) HandleGetConfig(c *fiber.Ctx) error {
	view, err := h.service.GetConfig(c.Context(), c.Query("clientId"), c.Query("groupId"))
	if err != nil {
		return h.fail(c, "Failed to build config view", err)
	}
	return c.JSON(view)
}

// HandleGetClientConfig returns the combined registry and active view of one client.
// @Summary Get Client Config
// @Tags config
// @Produce json
// @Param clientId path string true "Client id"
// @Success 200 {object} models.View
// @Failure 404 {object} map[string]string "Unknown client"
// @Failure 422 {object} map[string]string "Malformed config file"
// @Router /config/{clientId} [get]
func (h *Handler) HandleGetClientConfig(c *fiber.Ctx) error {
	view, err := h.service.GetConfig(c.Context(), c.Params("clientId"), "")
	if err != nil {
		return h.fail(c, "Failed to build client view", err)
	}
	return c.JSON(view)
}

// HandleSaveConfig stores the enabled servers of the body for a client or sync group.
// @Summary Save Config
// @Tags config
// @Accept json
// @Produce json
// @Param clientId query string false "Client id"
// @Param groupId query string false "Sync group id"
// @Param body body models.View true "Servers with their enabled flags"
// @Success 200 {object} engine.SaveResult
// @Failure 400 {object} map[string]string "No target selected or invalid body"
// @Failure 404 {object} map[string]string "Unknown client or group"
// @Failure 500 {object} map[string]string "Write failed"
// @Router /config [post]
func (h *Handler) HandleSaveConfig(c *fiber.Ctx) error {
	var view models.View
	if err := c.BodyParser(&view); err != nil {
		return badRequest(c, "invalid body: "+err.Error())
	}
	if view.MCPServers == nil {
		return badRequest(c, "mcpServers is required")
	}

	result, err := h.service.SaveConfig(c.Context(), c.Query("clientId"), c.Query("groupId"), view)
	if err != nil {
		return h.fail(c, "Failed to save config", err)
	}
	return c.JSON(result)
}

// HandleResetConfig re-adopts a client's own config file.
// @Summary Reset Client Config
// @Tags config
// @Produce json
// @Param clientId query string true "Client id"
// @Success 200 {object} models.View
// @Failure 400 {object} map[string]string "Client is in a sync group"
// @Router /config/reset [post]
func (h *Handler) HandleResetConfig(c *fiber.Ctx) error {
	view, err := h.service.ResetConfig(c.Context(), c.Query("clientId"))
	if err != nil {
		return h.fail(c, "Failed to reset config", err)
	}
	return c.JSON(view)
}

// HandleCheckConfigs reports whether the clients' own config files disagree.
// @Summary Check Configs
// @Tags config
// @Produce json
// @Success 200 {object} engine.DivergenceReport
// @Failure 422 {object} map[string]string "Malformed client config file"
// @Router /check-configs [get]
func (h *Handler) HandleCheckConfigs(c *fiber.Ctx) error {
	report, err := h.service.CheckConfigs(c.Context())
	if err != nil {
		return h.fail(c, "Divergence check failed", err)
	}
	return c.JSON(report)
}

// HandleListSyncGroups lists the sync groups.
// @Summary List Sync Groups
// @Tags sync-groups
// @Produce json
// @Success 200 {object} map[string]models.SyncGroup
// @Router /sync-groups [get]
func (h *Handler) HandleListSyncGroups(c *fiber.Ctx) error {
	return c.JSON(h.service.ListSyncGroups())
}

// HandleCreateSyncGroup creates a sync group from at least two clients.
// @Summary Create Sync Group
// @Tags sync-groups
// @Accept json
// @Produce json
// @Param body body object true "{\"clientIds\": [\"a\", \"b\"]}"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Fewer than two clients or unknown client"
// @Router /sync-groups [post]
func (h *Handler) HandleCreateSyncGroup(c *fiber.Ctx) error {
	var body struct {
		ClientIDs []string `json:"clientIds"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid body: "+err.Error())
	}

	id, group, err := h.service.CreateSyncGroup(c.Context(), body.ClientIDs)
	if err != nil {
		return h.fail(c, "Failed to create sync group", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         id,
		"members":    group.Members,
		"configPath": group.ConfigPath,
	})
}

// HandleDissolveSyncGroup dissolves a sync group.
// @Summary Dissolve Sync Group
// @Tags sync-groups
// @Param id path string true "Sync group id"
// @Success 204
// @Failure 404 {object} map[string]string "Unknown group"
// @Router /sync-groups/{id} [delete]
func (h *Handler) HandleDissolveSyncGroup(c *fiber.Ctx) error {
	if err := h.service.DissolveSyncGroup(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, "Failed to dissolve sync group", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleLeaveSyncGroup removes a client from a sync group.
// @Summary Leave Sync Group
// @Tags sync-groups
// @Param id path string true "Sync group id"
// @Param clientId path string true "Client id"
// @Success 204
// @Failure 400 {object} map[string]string "Client is not a member"
// @Failure 404 {object} map[string]string "Unknown group"
// @Router /sync-groups/{id}/members/{clientId} [delete]
func (h *Handler) HandleLeaveSyncGroup(c *fiber.Ctx) error {
	if err := h.service.LeaveSyncGroup(c.Context(), c.Params("id"), c.Params("clientId")); err != nil {
		return h.fail(c, "Failed to leave sync group", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleListClients lists the clients.
// @Summary List Clients
// @Tags clients
// @Produce json
// @Success 200 {object} map[string]models.Client
// @Router /clients [get]
func (h *Handler) HandleListClients(c *fiber.Ctx) error {
	return c.JSON(h.service.ListClients())
}

// HandleSaveClient creates or updates a client.
// @Summary Save Client
// @Tags clients
// @Accept json
// @Produce json
// @Param body body ClientRequest true "Client"
// @Success 200 {object} models.Client
// @Failure 400 {object} map[string]string "Invalid client"
// @Router /clients [post]
func (h *Handler) HandleSaveClient(c *fiber.Ctx) error {
	var req ClientRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body: "+err.Error())
	}

	client, err := h.service.SaveClient(c.Context(), req)
	if err != nil {
		return h.fail(c, "Failed to save client", err)
	}
	return c.JSON(client)
}

// HandleDeleteClient deletes a client that is not built in.
// @Summary Delete Client
// @Tags clients
// @Param id path string true "Client id"
// @Success 204
// @Failure 400 {object} map[string]string "Built-in client"
// @Failure 404 {object} map[string]string "Unknown client"
// @Router /clients/{id} [delete]
func (h *Handler) HandleDeleteClient(c *fiber.Ctx) error {
	if err := h.service.DeleteClient(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, "Failed to delete client", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleGetSettings returns settings.json.
// @Summary Get Settings
// @Tags settings
// @Produce json
// @Success 200 {object} models.Settings
// @Router /settings [get]
func (h *Handler) HandleGetSettings(c *fiber.Ctx) error {
	return c.JSON(h.service.GetSettings())
}

// HandleUpdateSettings updates maxBackups and syncClients.
// @Summary Update Settings
// @Tags settings
// @Accept json
// @Produce json
// @Param body body object true "{\"maxBackups\": 5, \"syncClients\": true}"
// @Success 200 {object} models.Settings
// @Failure 400 {object} map[string]string "Invalid setting"
// @Router /settings [post]
func (h *Handler) HandleUpdateSettings(c *fiber.Ctx) error {
	var patch map[string]any
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "invalid body: "+err.Error())
	}

	updated, err := h.service.UpdateSettings(c.Context(), patch)
	if err != nil {
		return h.fail(c, "Failed to update settings", err)
	}
	return c.JSON(updated)
}
