package mcp

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"mcp-manager/core/utils"
	"mcp-manager/feature/mcp/engine"
	"mcp-manager/feature/mcp/models"
	"mcp-manager/feature/mcp/settings"
	"mcp-manager/feature/mcp/syncgroup"

	"go.uber.org/zap"
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Service exposes the configuration manager to the HTTP handlers and the CLI.
type Service struct {
	settings settings.Store
	engine   *engine.Engine
	groups   *syncgroup.Manager
	logger   *zap.Logger
}

// NewService creates a new configuration service.
func NewService(store settings.Store, eng *engine.Engine, groups *syncgroup.Manager, logger *zap.Logger) *Service {
	return &Service{
		settings: store,
		engine:   eng,
		groups:   groups,
		logger:   logger,
	}
}

// ClientRequest creates or updates a client.
type ClientRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ConfigPath string `json:"configPath"`
	Enabled    *bool  `json:"enabled"`
}

// GetConfig returns the view of a sync group, of a client, or the aggregated
// view when neither is given.
func (s *Service) GetConfig(ctx context.Context, clientID, groupID string) (models.View, error) {
	switch {
	case groupID != "":
		return s.engine.GroupView(ctx, groupID)
	case clientID != "":
		return s.engine.ClientView(ctx, clientID)
	default:
		return s.engine.AggregatedView(ctx)
	}
}

// SaveConfig stores view for the selected client or sync group.
func (s *Service) SaveConfig(ctx context.Context, clientID, groupID string, view models.View) (engine.SaveResult, error) {
	return s.engine.Save(ctx, engine.Target{ClientID: clientID, GroupID: groupID}, view)
}

// ResetConfig re-adopts the client's own config file.
func (s *Service) ResetConfig(ctx context.Context, clientID string) (models.View, error) {
	if clientID == "" {
		return models.View{}, fmt.Errorf("%w: clientId is required", models.ErrValidation)
	}
	return s.engine.Reset(ctx, clientID)
}

// CheckConfigs reports whether the clients' own config files disagree.
func (s *Service) CheckConfigs(ctx context.Context) (engine.DivergenceReport, error) {
	return s.engine.CheckConfigsDiffer(ctx)
}

// ListSyncGroups returns the sync groups keyed by id.
func (s *Service) ListSyncGroups() map[string]models.SyncGroup {
	return s.groups.List()
}

// CreateSyncGroup groups clientIDs together.
func (s *Service) CreateSyncGroup(ctx context.Context, clientIDs []string) (string, models.SyncGroup, error) {
	return s.groups.CreateOrJoin(ctx, clientIDs)
}

// DissolveSyncGroup removes a sync group.
func (s *Service) DissolveSyncGroup(ctx context.Context, groupID string) error {
	return s.groups.Dissolve(ctx, groupID)
}

// LeaveSyncGroup removes clientID from groupID.
func (s *Service) LeaveSyncGroup(ctx context.Context, groupID, clientID string) error {
	group, ok := s.settings.Current().SyncGroups[groupID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrGroupNotFound, groupID)
	}
	if !group.HasMember(clientID) {
		return fmt.Errorf("%w: client %s is not a member of sync group %s", models.ErrValidation, clientID, groupID)
	}
	return s.groups.Leave(ctx, clientID)
}

// ListClients returns the clients keyed by id.
func (s *Service) ListClients() map[string]models.Client {
	return s.settings.Current().Clients
}

// SaveClient creates a client or updates the name, path and enabled flag of
// an existing one.
func (s *Service) SaveClient(ctx context.Context, req ClientRequest) (models.Client, error) {
	id := strings.TrimSpace(req.ID)
	if !clientIDPattern.MatchString(id) {
		return models.Client{}, fmt.Errorf("%w: invalid client id %q", models.ErrValidation, req.ID)
	}

	var saved models.Client
	_, err := s.settings.Update(ctx, func(cur *models.Settings) error {
		client, exists := cur.Clients[id]
		if !exists {
			if strings.TrimSpace(req.ConfigPath) == "" {
				return fmt.Errorf("%w: configPath is required for a new client", models.ErrValidation)
			}
			client = models.Client{Name: id, Enabled: true}
		}
		if req.Name != "" {
			client.Name = req.Name
		}
		if req.ConfigPath != "" {
			client.ConfigPath = req.ConfigPath
		}
		if req.Enabled != nil {
			client.Enabled = *req.Enabled
		}
		cur.Clients[id] = client
		saved = client
		return nil
	})
	if err != nil {
		return models.Client{}, err
	}

	s.logger.Info("Client saved", zap.String("client", id))
	return saved, nil
}

// DeleteClient removes a non built-in client.
func (s *Service) DeleteClient(ctx context.Context, clientID string) error {
	return s.groups.RemoveClient(ctx, clientID)
}

// GetSettings returns the current settings.
func (s *Service) GetSettings() *models.Settings {
	return s.settings.Current()
}

// UpdateSettings applies a partial update of maxBackups and syncClients.
func (s *Service) UpdateSettings(ctx context.Context, patch map[string]any) (*models.Settings, error) {
	for key := range patch {
		if key != "maxBackups" && key != "syncClients" {
			return nil, fmt.Errorf("%w: unknown setting %q", models.ErrValidation, key)
		}
	}

	return s.settings.Update(ctx, func(cur *models.Settings) error {
		if v, ok := patch["maxBackups"]; ok {
			n := utils.ToInt(v)
			if n < 1 {
				return fmt.Errorf("%w: maxBackups must be at least 1", models.ErrValidation)
			}
			cur.MaxBackups = n
		}
		if v, ok := patch["syncClients"]; ok {
			cur.SyncClients = utils.ToBool(v)
		}
		return nil
	})
}
