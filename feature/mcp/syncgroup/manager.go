package syncgroup

import (
	"context"
	"fmt"

	"mcp-manager/feature/mcp/clientconfig"
	"mcp-manager/feature/mcp/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettingsStore is the part of the settings store the manager mutates.
type SettingsStore interface {
	Current() *models.Settings
	Update(ctx context.Context, fn func(s *models.Settings) error) (*models.Settings, error)
}

// Manager creates, shrinks and dissolves sync groups.
type Manager struct {
	settings SettingsStore
	configs  *clientconfig.Store
	logger   *zap.Logger
	newID    func() string
}

// NewManager creates a sync group manager.
func NewManager(settings SettingsStore, configs *clientconfig.Store, logger *zap.Logger) *Manager {
	return &Manager{
		settings: settings,
		configs:  configs,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// handoff moves the content of a group file into the managed files of
// clients that no longer use it, removing the group file when asked.
type handoff struct {
	groupID string
	path    string
	clients []string
	remove  bool
}

// List returns the sync groups keyed by id.
func (m *Manager) List() map[string]models.SyncGroup {
	return m.settings.Current().SyncGroups
}

// CreateOrJoin puts clientIDs into a new sync group seeded with the active
// set of the first listed client. Clients already grouped leave their old
// group, which is dissolved when one member or fewer remain; old groups are
// never merged into the new one.
func (m *Manager) CreateOrJoin(ctx context.Context, clientIDs []string) (string, models.SyncGroup, error) {
	ids := dedupe(clientIDs)
	if len(ids) < 2 {
		return "", models.SyncGroup{}, fmt.Errorf("%w: a sync group needs at least two clients", models.ErrValidation)
	}
	if err := requireClients(m.settings.Current(), ids); err != nil {
		return "", models.SyncGroup{}, err
	}

	seed, _, err := m.configs.Read(ctx, ids[0])
	if err != nil {
		return "", models.SyncGroup{}, err
	}

	groupID := m.newID()
	group := models.SyncGroup{Members: ids, ConfigPath: m.configs.GroupPath(groupID)}
	if err := m.configs.WriteFile(ctx, group.ConfigPath, seed); err != nil {
		return "", models.SyncGroup{}, err
	}

	var handoffs []handoff
	_, err = m.settings.Update(ctx, func(s *models.Settings) error {
		handoffs = nil
		if err := requireClients(s, ids); err != nil {
			return err
		}
		for _, id := range ids {
			if h, ok := detach(s, id); ok && h.remove {
				handoffs = append(handoffs, h)
			}
			s.Clients[id] = s.Clients[id].WithGroup(groupID)
		}
		s.SyncGroups[groupID] = group
		return nil
	})
	if err != nil {
		if rmErr := m.configs.RemoveFile(ctx, group.ConfigPath); rmErr != nil {
			m.logger.Warn("Failed to remove unused group file", zap.String("path", group.ConfigPath), zap.Error(rmErr))
		}
		return "", models.SyncGroup{}, err
	}

	m.finish(ctx, handoffs)
	m.logger.Info("Sync group created",
		zap.String("group", groupID),
		zap.Strings("members", ids),
		zap.Int("servers", len(seed)))
	return groupID, group, nil
}

// Leave removes clientID from its sync group. The client keeps the group's
// active set in its own managed file.
func (m *Manager) Leave(ctx context.Context, clientID string) error {
	client, ok := m.settings.Current().Clients[clientID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrClientNotFound, clientID)
	}
	if client.Group() == "" {
		return fmt.Errorf("%w: client %s is not in a sync group", models.ErrValidation, clientID)
	}

	var handoffs []handoff
	_, err := m.settings.Update(ctx, func(s *models.Settings) error {
		handoffs = nil
		if _, ok := s.Clients[clientID]; !ok {
			return fmt.Errorf("%w: %s", models.ErrClientNotFound, clientID)
		}
		if h, ok := detach(s, clientID); ok {
			handoffs = append(handoffs, h)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.finish(ctx, handoffs)
	return nil
}

// Dissolve removes a sync group. Every member keeps the group's active set
// in its own managed file.
func (m *Manager) Dissolve(ctx context.Context, groupID string) error {
	if _, ok := m.settings.Current().SyncGroups[groupID]; !ok {
		return fmt.Errorf("%w: %s", models.ErrGroupNotFound, groupID)
	}

	var handoffs []handoff
	_, err := m.settings.Update(ctx, func(s *models.Settings) error {
		handoffs = nil
		group, ok := s.SyncGroups[groupID]
		if !ok {
			return fmt.Errorf("%w: %s", models.ErrGroupNotFound, groupID)
		}
		handoffs = append(handoffs, dissolve(s, groupID, group, group.Members))
		return nil
	})
	if err != nil {
		return err
	}

	m.finish(ctx, handoffs)
	m.logger.Info("Sync group dissolved", zap.String("group", groupID))
	return nil
}

// RemoveClient deletes a client from settings, shrinking its sync group
// first. The client's files are left on disk.
func (m *Manager) RemoveClient(ctx context.Context, clientID string) error {
	client, ok := m.settings.Current().Clients[clientID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrClientNotFound, clientID)
	}
	if client.BuiltIn {
		return fmt.Errorf("%w: %s", models.ErrBuiltInClient, clientID)
	}

	var handoffs []handoff
	_, err := m.settings.Update(ctx, func(s *models.Settings) error {
		handoffs = nil
		if _, ok := s.Clients[clientID]; !ok {
			return fmt.Errorf("%w: %s", models.ErrClientNotFound, clientID)
		}
		if h, ok := detach(s, clientID); ok && h.remove {
			h.clients = without(h.clients, clientID)
			handoffs = append(handoffs, h)
		}
		delete(s.Clients, clientID)
		return nil
	})
	if err != nil {
		return err
	}

	m.finish(ctx, handoffs)
	return nil
}

// finish runs the file work that follows a committed membership change.
// Settings are already durable at this point, so failures are only logged.
func (m *Manager) finish(ctx context.Context, handoffs []handoff) {
	current := m.settings.Current()
	for _, h := range handoffs {
		l := m.logger.With(zap.String("group", h.groupID), zap.String("path", h.path))

		set, err := clientconfig.ReadFile(h.path)
		if err != nil {
			l.Warn("Group file unreadable, members keep their previous active sets", zap.Error(err))
		}
		for _, id := range h.clients {
			if set == nil {
				break
			}
			if _, _, grouped := current.LiveGroup(id); grouped {
				continue
			}
			if _, ok := current.Clients[id]; !ok {
				continue
			}
			if err := m.configs.WriteFile(ctx, m.configs.ManagedPath(id), set); err != nil {
				l.Warn("Failed to hand group servers to client", zap.String("client", id), zap.Error(err))
			}
		}

		if h.remove {
			if err := m.configs.RemoveFile(ctx, h.path); err != nil {
				l.Warn("Failed to remove group file", zap.Error(err))
			}
		}
	}
}

// detach clears the sync group reference of clientID and removes it from
// the group's members, dissolving the group when one member or fewer remain.
// It reports false when there is no group record to hand off from.
func detach(s *models.Settings, clientID string) (handoff, bool) {
	client := s.Clients[clientID]
	groupID := client.Group()
	s.Clients[clientID] = client.WithGroup("")
	if groupID == "" {
		return handoff{}, false
	}
	group, ok := s.SyncGroups[groupID]
	if !ok {
		return handoff{}, false
	}

	shrunk := group.Without(clientID)
	if len(shrunk.Members) > 1 {
		s.SyncGroups[groupID] = shrunk
		return handoff{groupID: groupID, path: group.ConfigPath, clients: []string{clientID}}, true
	}
	return dissolve(s, groupID, group, append([]string{clientID}, shrunk.Members...)), true
}

// dissolve removes the group record, clears the reference of every member
// still pointing at it and returns the handoff to clients.
func dissolve(s *models.Settings, groupID string, group models.SyncGroup, clients []string) handoff {
	for _, id := range group.Members {
		if c, ok := s.Clients[id]; ok && c.Group() == groupID {
			s.Clients[id] = c.WithGroup("")
		}
	}
	delete(s.SyncGroups, groupID)
	return handoff{groupID: groupID, path: group.ConfigPath, clients: clients, remove: true}
}

func requireClients(s *models.Settings, ids []string) error {
	for _, id := range ids {
		if _, ok := s.Clients[id]; !ok {
			return fmt.Errorf("%w: %w: %s", models.ErrValidation, models.ErrClientNotFound, id)
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
