package mcp

import (
	"mcp-manager/feature/mcp/engine"
	"mcp-manager/feature/mcp/settings"
	"mcp-manager/feature/mcp/syncgroup"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the configuration manager feature.
func NewFeature(store settings.Store, eng *engine.Engine, groups *syncgroup.Manager, logger *zap.Logger) *Feature {
	svc := NewService(store, eng, groups, logger)
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "mcp"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}

// Service returns the feature's service for use outside HTTP (e.g. the CLI).
func (f *Feature) Service() *Service {
	return f.service
}
