package engine

import (
	"context"
	"fmt"

	"mcp-manager/core/reconcile"
	"mcp-manager/core/utils"
	"mcp-manager/feature/mcp/clientconfig"
	"mcp-manager/feature/mcp/models"
	"mcp-manager/feature/mcp/registry"

	"go.uber.org/zap"
)

// SettingsReader exposes the current settings snapshot.
type SettingsReader interface {
	Current() *models.Settings
}

// Engine combines the registry with client and group active sets.
type Engine struct {
	settings SettingsReader
	registry *registry.Store
	configs  *clientconfig.Store
	logger   *zap.Logger
}

// New creates a reconciliation engine.
func New(settings SettingsReader, reg *registry.Store, configs *clientconfig.Store, logger *zap.Logger) *Engine {
	return &Engine{
		settings: settings,
		registry: reg,
		configs:  configs,
		logger:   logger,
	}
}

// ClientView returns the registry overlaid with the active set of clientID.
func (e *Engine) ClientView(ctx context.Context, clientID string) (models.View, error) {
	active, _, err := e.configs.Read(ctx, clientID)
	if err != nil {
		return models.View{}, err
	}
	return e.overlay(ctx, active)
}

// GroupView returns the registry overlaid with the active set shared by groupID.
func (e *Engine) GroupView(ctx context.Context, groupID string) (models.View, error) {
	active, _, err := e.configs.ReadGroup(ctx, groupID)
	if err != nil {
		return models.View{}, err
	}
	return e.overlay(ctx, active)
}

// overlay marks every registry entry enabled when its name is in active.
// Active entries win over registered ones, and active names missing from
// the registry are added to it.
func (e *Engine) overlay(ctx context.Context, active models.ServerMap) (models.View, error) {
	defs, err := e.registry.Read(ctx)
	if err != nil {
		return models.View{}, err
	}

	view := models.View{MCPServers: make(map[string]models.ServerView, len(defs)+len(active))}
	for name, def := range defs {
		view.MCPServers[name] = models.ServerView{Definition: def}
	}
	for name, def := range active {
		view.MCPServers[name] = models.ServerView{Definition: def, Enabled: true}
	}

	e.grow(ctx, defs, active)
	return view, nil
}

// AggregatedView merges the active sets of every enabled client. Each server
// carries the clients reporting it and whether any of them disagrees with the
// first one that did. Registered servers no client uses are listed disabled.
func (e *Engine) AggregatedView(ctx context.Context) (models.View, error) {
	defs, err := e.registry.Read(ctx)
	if err != nil {
		return models.View{}, err
	}

	sources, err := e.activeSources(ctx)
	if err != nil {
		return models.View{}, err
	}
	results := reconcile.Aggregate(sources, func(a, b models.ServerDefinition) bool {
		return utils.StructuralEqual(a, b, utils.TransientKeys...)
	})

	view := models.View{MCPServers: make(map[string]models.ServerView, len(defs)+len(results))}
	for name, def := range defs {
		view.MCPServers[name] = models.ServerView{Definition: def, Sources: []string{}, Conflicts: boolPtr(false)}
	}
	seen := models.ServerMap{}
	for _, res := range results {
		view.MCPServers[res.Key] = models.ServerView{
			Definition: res.Value,
			Enabled:    true,
			Sources:    res.Sources,
			Conflicts:  boolPtr(res.Conflicts),
		}
		seen[res.Key] = res.Value
	}

	e.grow(ctx, defs, seen)
	return view, nil
}

func (e *Engine) activeSources(ctx context.Context) ([]reconcile.Source[models.ServerDefinition], error) {
	ids := e.settings.Current().EnabledClientIDs()
	sources := make([]reconcile.Source[models.ServerDefinition], 0, len(ids))
	for _, id := range ids {
		active, _, err := e.configs.Read(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read client %s: %w", id, err)
		}
		sources = append(sources, reconcile.Source[models.ServerDefinition]{ID: id, Items: active})
	}
	return sources, nil
}

// grow records active names missing from the registry. A failure is logged;
// the next view retries.
func (e *Engine) grow(ctx context.Context, registered, active models.ServerMap) {
	missing := models.ServerMap{}
	for name, def := range active {
		if _, ok := registered[name]; !ok {
			missing[name] = def
		}
	}
	if len(missing) == 0 {
		return
	}
	if _, err := e.registry.Merge(ctx, missing); err != nil {
		e.logger.Warn("Failed to add servers to registry", zap.Strings("servers", missing.Names()), zap.Error(err))
		return
	}
	e.logger.Info("Registry grew from active sets", zap.Strings("servers", missing.Names()))
}

func boolPtr(b bool) *bool {
	return &b
}
