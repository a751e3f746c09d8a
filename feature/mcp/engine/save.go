package engine

import (
	"context"
	"fmt"

	"mcp-manager/feature/mcp/models"

	"go.uber.org/zap"
)

// Target selects what a save writes: a sync group, or a single client.
type Target struct {
	ClientID string
	GroupID  string
}

// SaveResult describes a completed save.
type SaveResult struct {
	// Changed is false when the active set was already stored.
	Changed bool `json:"changed"`
	// Path is the written active-config file.
	Path string `json:"path"`
	// Clients are the clients affected by the save.
	Clients []string `json:"clients"`
	// Propagated lists the clients whose own config file was updated.
	Propagated []string `json:"propagated,omitempty"`
	// PropagationErrors maps a client id to the reason its file was not updated.
	PropagationErrors map[string]string `json:"propagationErrors,omitempty"`
}

// Save stores the enabled servers of view as the active set of target and
// records every server of view in the registry. A client in a sync group
// writes the group's shared file, affecting every member. An empty target
// is rejected as ambiguous.
func (e *Engine) Save(ctx context.Context, target Target, view models.View) (SaveResult, error) {
	path, clients, err := e.resolveTarget(ctx, target)
	if err != nil {
		return SaveResult{}, err
	}

	active := view.Active()
	all := view.All()
	changed, err := e.configs.Save(ctx, path, active, func(bool) error {
		if _, err := e.registry.Merge(ctx, all); err != nil {
			e.logger.Warn("Failed to update registry after save", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}

	result := SaveResult{Changed: changed, Path: path, Clients: clients}
	if changed {
		e.propagate(ctx, clients, active, &result)
	}
	e.logger.Info("Saved active set",
		zap.String("path", path),
		zap.Strings("clients", clients),
		zap.Int("servers", len(active)),
		zap.Bool("changed", changed))
	return result, nil
}

func (e *Engine) resolveTarget(ctx context.Context, target Target) (string, []string, error) {
	current := e.settings.Current()

	switch {
	case target.GroupID != "":
		group, ok := current.SyncGroups[target.GroupID]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", models.ErrGroupNotFound, target.GroupID)
		}
		if target.ClientID != "" && !group.HasMember(target.ClientID) {
			return "", nil, fmt.Errorf("%w: client %s is not a member of sync group %s", models.ErrValidation, target.ClientID, target.GroupID)
		}
		return group.ConfigPath, append([]string(nil), group.Members...), nil

	case target.ClientID != "":
		res, err := e.configs.Resolve(ctx, target.ClientID)
		if err != nil {
			return "", nil, err
		}
		if res.GroupID != "" {
			return res.Path, append([]string(nil), current.SyncGroups[res.GroupID].Members...), nil
		}
		return res.Path, []string{target.ClientID}, nil

	default:
		return "", nil, models.ErrAmbiguousTarget
	}
}

// propagate writes active into the own config file of every enabled affected
// client when client sync is on. Failures do not undo the save.
func (e *Engine) propagate(ctx context.Context, clients []string, active models.ServerMap, result *SaveResult) {
	current := e.settings.Current()
	if !current.SyncClients {
		return
	}

	for _, id := range clients {
		client, ok := current.Clients[id]
		if !ok || !client.Enabled || client.ConfigPath == "" {
			continue
		}
		if err := e.configs.WriteOriginal(ctx, id, active); err != nil {
			e.logger.Warn("Failed to propagate servers to client config", zap.String("client", id), zap.Error(err))
			if result.PropagationErrors == nil {
				result.PropagationErrors = map[string]string{}
			}
			result.PropagationErrors[id] = err.Error()
			continue
		}
		result.Propagated = append(result.Propagated, id)
	}
}

// Reset replaces the managed file of a non-grouped client with its own
// config file and returns the resulting view.
func (e *Engine) Reset(ctx context.Context, clientID string) (models.View, error) {
	if _, err := e.configs.Readopt(ctx, clientID); err != nil {
		return models.View{}, err
	}
	return e.ClientView(ctx, clientID)
}
