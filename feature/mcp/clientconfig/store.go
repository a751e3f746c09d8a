package clientconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"mcp-manager/core/jsonfile"
	"mcp-manager/core/utils"
	"mcp-manager/feature/mcp/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DirName holds the managed client and group files inside the data directory.
const DirName = "configs"

// Backuper takes a backup of a file before it is overwritten.
type Backuper interface {
	Backup(ctx context.Context, path string) (string, error)
}

// Locker serializes work on one file path.
type Locker interface {
	Lock(ctx context.Context, path string) (func(), error)
}

// SettingsReader exposes the current settings snapshot.
type SettingsReader interface {
	Current() *models.Settings
}

// Store reads and writes the active sets of clients and sync groups.
type Store struct {
	dir      string
	settings SettingsReader
	backups  Backuper
	locks    Locker
	logger   *zap.Logger
	adopt    singleflight.Group
}

// NewStore creates a store keeping its managed files under dataDir.
func NewStore(dataDir string, settings SettingsReader, backups Backuper, locks Locker, logger *zap.Logger) *Store {
	return &Store{
		dir:      filepath.Join(dataDir, DirName),
		settings: settings,
		backups:  backups,
		locks:    locks,
		logger:   logger,
	}
}

// ManagedPath returns the client-specific managed file of clientID.
func (s *Store) ManagedPath(clientID string) string {
	return filepath.Join(s.dir, "client-"+clientID+".json")
}

// GroupPath returns the shared file of sync group groupID.
func (s *Store) GroupPath(groupID string) string {
	return filepath.Join(s.dir, "group-"+groupID+".json")
}

// Read returns the resolved active set of clientID.
func (s *Store) Read(ctx context.Context, clientID string) (models.ServerMap, Resolution, error) {
	res, err := s.Resolve(ctx, clientID)
	if err != nil {
		return nil, Resolution{}, err
	}
	set, err := ReadFile(res.Path)
	if err != nil {
		return nil, Resolution{}, err
	}
	return set, res, nil
}

// ReadGroup returns the active set shared by groupID, creating its file when
// it is missing.
func (s *Store) ReadGroup(ctx context.Context, groupID string) (models.ServerMap, string, error) {
	group, ok := s.settings.Current().SyncGroups[groupID]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", models.ErrGroupNotFound, groupID)
	}
	if err := s.ensure(ctx, group.ConfigPath); err != nil {
		return nil, "", err
	}
	set, err := ReadFile(group.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	return set, group.ConfigPath, nil
}

// Write replaces the active set of clientID. Grouped clients write their
// group's shared file; others write their managed file, never the original.
func (s *Store) Write(ctx context.Context, clientID string, set models.ServerMap) error {
	res, err := s.Resolve(ctx, clientID)
	if err != nil {
		return err
	}
	_, err = s.Save(ctx, res.Path, set, nil)
	return err
}

// Save runs the read, backup and write of path as one critical section.
// Nothing is written when set equals the stored active set. after, when not
// nil, runs inside the same section whether or not the file changed.
func (s *Store) Save(ctx context.Context, path string, set models.ServerMap, after func(changed bool) error) (bool, error) {
	unlock, err := s.locks.Lock(ctx, path)
	if err != nil {
		return false, err
	}
	defer unlock()

	changed := true
	current, err := ReadFile(path)
	if err == nil && jsonfile.Exists(path) {
		changed = !utils.StructuralEqual(current, set)
	}

	if changed {
		if err := s.write(ctx, path, set); err != nil {
			return false, err
		}
	}
	if after != nil {
		if err := after(changed); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// WriteFile backs up and replaces path under its lock.
func (s *Store) WriteFile(ctx context.Context, path string, set models.ServerMap) error {
	unlock, err := s.locks.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	return s.write(ctx, path, set)
}

// RemoveFile backs up and deletes path. A missing file is not an error.
func (s *Store) RemoveFile(ctx context.Context, path string) error {
	unlock, err := s.locks.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	s.backup(ctx, path)
	return jsonfile.Remove(path)
}

// ReadOriginal returns the active set found in the client's own config file.
// The file may carry comments; a missing file is an empty set.
func (s *Store) ReadOriginal(clientID string) (models.ServerMap, error) {
	client, err := s.client(clientID)
	if err != nil {
		return nil, err
	}
	set, err := readOriginal(client.ConfigPath)
	if jsonfile.IsNotFound(err) {
		return models.ServerMap{}, nil
	}
	return set, err
}

// WriteOriginal replaces the mcpServers object of the client's own config
// file, keeping every other top-level key the client stores there.
func (s *Store) WriteOriginal(ctx context.Context, clientID string, set models.ServerMap) error {
	client, err := s.client(clientID)
	if err != nil {
		return err
	}
	path := client.ConfigPath
	if path == "" {
		return fmt.Errorf("%w: client %s has no config path", models.ErrValidation, clientID)
	}

	unlock, err := s.locks.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	doc := map[string]json.RawMessage{}
	if err := jsonfile.ReadLenient(path, &doc); err != nil && !jsonfile.IsNotFound(err) {
		return err
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}

	servers, err := json.Marshal(normalized(set))
	if err != nil {
		return fmt.Errorf("failed to encode servers for %s: %w", clientID, err)
	}
	doc["mcpServers"] = servers

	s.backup(ctx, path)
	if err := jsonfile.Write(path, doc); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadFile returns the active set stored at path. A missing file is an
// empty set; invalid JSON is a MalformedError naming the file.
func ReadFile(path string) (models.ServerMap, error) {
	file := models.NewConfigFile()
	if err := jsonfile.Read(path, file); err != nil {
		if jsonfile.IsNotFound(err) {
			return models.ServerMap{}, nil
		}
		return nil, err
	}
	return file.Normalize().MCPServers, nil
}

func readOriginal(path string) (models.ServerMap, error) {
	file := models.NewConfigFile()
	if err := jsonfile.ReadLenient(path, file); err != nil {
		return nil, err
	}
	return file.Normalize().MCPServers, nil
}

func (s *Store) client(clientID string) (models.Client, error) {
	client, ok := s.settings.Current().Clients[clientID]
	if !ok {
		return models.Client{}, fmt.Errorf("%w: %s", models.ErrClientNotFound, clientID)
	}
	return client, nil
}

func (s *Store) write(ctx context.Context, path string, set models.ServerMap) error {
	s.backup(ctx, path)
	if err := jsonfile.Write(path, &models.ConfigFile{MCPServers: normalized(set)}); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *Store) backup(ctx context.Context, path string) {
	if _, err := s.backups.Backup(ctx, path); err != nil {
		s.logger.Warn("Backup failed", zap.String("path", path), zap.Error(err))
	}
}

// ensure creates an empty active-config file at path when none exists.
func (s *Store) ensure(ctx context.Context, path string) error {
	if jsonfile.Exists(path) {
		return nil
	}
	unlock, err := s.locks.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	if jsonfile.Exists(path) {
		return nil
	}
	if err := jsonfile.Write(path, models.NewConfigFile()); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}

func normalized(set models.ServerMap) models.ServerMap {
	if set == nil {
		return models.ServerMap{}
	}
	return set
}
