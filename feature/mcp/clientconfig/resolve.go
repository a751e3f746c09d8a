package clientconfig

import (
	"context"
	"fmt"

	"mcp-manager/core/jsonfile"
	"mcp-manager/feature/mcp/models"

	"go.uber.org/zap"
)

// State names the rule that resolved a client's active-config file.
type State string

const (
	// StateGroup means the client shares its sync group's file.
	StateGroup State = "group"
	// StateManaged means the client's managed file already existed.
	StateManaged State = "managed"
	// StateAdopted means the managed file was just copied from the client's own file.
	StateAdopted State = "adopted"
	// StateSynthesized means an empty managed file was just created.
	StateSynthesized State = "synthesized"
)

// Resolution is where a client's active set lives.
type Resolution struct {
	ClientID string `json:"clientId"`
	// GroupID is set when State is StateGroup.
	GroupID string `json:"groupId,omitempty"`
	Path    string `json:"path"`
	State   State  `json:"state"`
}

type step func(ctx context.Context, clientID string, client models.Client) (Resolution, bool, error)

// Resolve returns the file holding the active set of clientID. The rules are
// tried once, in order, and the first one that applies wins: the sync group's
// shared file, the existing managed file, adoption of the client's own file,
// and finally a new empty managed file.
func (s *Store) Resolve(ctx context.Context, clientID string) (Resolution, error) {
	client, err := s.client(clientID)
	if err != nil {
		return Resolution{}, err
	}

	for _, try := range []step{s.tryGroup, s.tryManaged, s.adoptOriginal, s.synthesizeEmpty} {
		res, ok, err := try(ctx, clientID, client)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			return res, nil
		}
	}
	return Resolution{}, fmt.Errorf("no active-config file for client %s", clientID)
}

func (s *Store) tryGroup(ctx context.Context, clientID string, _ models.Client) (Resolution, bool, error) {
	groupID, group, ok := s.settings.Current().LiveGroup(clientID)
	if !ok {
		return Resolution{}, false, nil
	}
	if err := s.ensure(ctx, group.ConfigPath); err != nil {
		return Resolution{}, false, err
	}
	return Resolution{ClientID: clientID, GroupID: groupID, Path: group.ConfigPath, State: StateGroup}, true, nil
}

func (s *Store) tryManaged(_ context.Context, clientID string, _ models.Client) (Resolution, bool, error) {
	path := s.ManagedPath(clientID)
	if !jsonfile.Exists(path) {
		return Resolution{}, false, nil
	}
	return Resolution{ClientID: clientID, Path: path, State: StateManaged}, true, nil
}

// adoptOriginal copies the client's own file into its managed file once.
// Concurrent first reads of the same client share one adoption.
func (s *Store) adoptOriginal(ctx context.Context, clientID string, client models.Client) (Resolution, bool, error) {
	if client.ConfigPath == "" || !jsonfile.Exists(client.ConfigPath) {
		return Resolution{}, false, nil
	}

	v, err, _ := s.adopt.Do(clientID, func() (any, error) {
		return s.adoptOnce(ctx, clientID, client.ConfigPath)
	})
	if err != nil {
		return Resolution{}, false, err
	}
	return v.(Resolution), true, nil
}

func (s *Store) adoptOnce(ctx context.Context, clientID, original string) (Resolution, error) {
	path := s.ManagedPath(clientID)
	unlock, err := s.locks.Lock(ctx, path)
	if err != nil {
		return Resolution{}, err
	}
	defer unlock()

	if jsonfile.Exists(path) {
		return Resolution{ClientID: clientID, Path: path, State: StateManaged}, nil
	}

	set, err := readOriginal(original)
	if err != nil {
		return Resolution{}, err
	}
	if err := jsonfile.Write(path, &models.ConfigFile{MCPServers: set}); err != nil {
		return Resolution{}, fmt.Errorf("failed to adopt %s: %w", original, err)
	}
	s.logger.Info("Adopted client config",
		zap.String("client", clientID),
		zap.String("from", original),
		zap.Int("servers", len(set)))
	return Resolution{ClientID: clientID, Path: path, State: StateAdopted}, nil
}

func (s *Store) synthesizeEmpty(ctx context.Context, clientID string, _ models.Client) (Resolution, bool, error) {
	path := s.ManagedPath(clientID)
	if err := s.ensure(ctx, path); err != nil {
		return Resolution{}, false, err
	}
	return Resolution{ClientID: clientID, Path: path, State: StateSynthesized}, true, nil
}

// Readopt replaces the managed file of a non-grouped client with the current
// content of its own config file.
func (s *Store) Readopt(ctx context.Context, clientID string) (models.ServerMap, error) {
	client, err := s.client(clientID)
	if err != nil {
		return nil, err
	}
	if _, _, grouped := s.settings.Current().LiveGroup(clientID); grouped {
		return nil, fmt.Errorf("%w: client %s belongs to a sync group", models.ErrValidation, clientID)
	}

	set := models.ServerMap{}
	if client.ConfigPath != "" {
		set, err = readOriginal(client.ConfigPath)
		if jsonfile.IsNotFound(err) {
			set, err = models.ServerMap{}, nil
		}
		if err != nil {
			return nil, err
		}
	}

	if err := s.WriteFile(ctx, s.ManagedPath(clientID), set); err != nil {
		return nil, err
	}
	return set, nil
}
