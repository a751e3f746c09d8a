package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"mcp-manager/core/jsonfile"
	"mcp-manager/core/utils"
	"mcp-manager/feature/mcp/models"

	"dario.cat/mergo"
	"go.uber.org/zap"
)

// FileName is the registry document inside the data directory.
const FileName = "mcp_server_registry.json"

// Backuper takes a backup of a file before it is overwritten.
type Backuper interface {
	Backup(ctx context.Context, path string) (string, error)
}

// Locker serializes work on one file path.
type Locker interface {
	Lock(ctx context.Context, path string) (func(), error)
}

// Store keeps the superset of every server definition ever seen.
type Store struct {
	path    string
	backups Backuper
	locks   Locker
	logger  *zap.Logger
}

// NewStore creates a registry stored in dataDir.
func NewStore(dataDir string, backups Backuper, locks Locker, logger *zap.Logger) *Store {
	return &Store{
		path:    filepath.Join(dataDir, FileName),
		backups: backups,
		locks:   locks,
		logger:  logger,
	}
}

// Path returns the registry file location.
func (s *Store) Path() string {
	return s.path
}

// Read returns every registered definition. A missing registry is created
// empty; a malformed one is reported in the log and read as empty.
func (s *Store) Read(ctx context.Context) (models.ServerMap, error) {
	defs, err := s.load()
	if err == nil {
		return defs, nil
	}

	switch {
	case jsonfile.IsMalformed(err):
		s.logger.Warn("Registry is malformed, reading it as empty", zap.String("path", s.path), zap.Error(err))
		return models.ServerMap{}, nil
	case jsonfile.IsNotFound(err):
		if err := s.create(ctx); err != nil {
			return nil, err
		}
		return models.ServerMap{}, nil
	default:
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
}

// View returns the registry annotated for a response, every entry disabled.
func (s *Store) View(ctx context.Context) (models.View, error) {
	defs, err := s.Read(ctx)
	if err != nil {
		return models.View{}, err
	}
	view := models.View{MCPServers: make(map[string]models.ServerView, len(defs))}
	for name, def := range defs {
		view.MCPServers[name] = models.ServerView{Definition: def}
	}
	return view, nil
}

// Write replaces the registry with defs.
func (s *Store) Write(ctx context.Context, defs models.ServerMap) error {
	unlock, err := s.locks.Lock(ctx, s.path)
	if err != nil {
		return err
	}
	defer unlock()

	return s.write(ctx, defs)
}

// Merge records defs in the registry and returns the resulting registry.
// Known names keep the most complete definition: fields left empty by the
// incoming definition are filled from the registered one, unless the two
// use different connection modes. Nothing is written when the registry
// already holds the merged result.
func (s *Store) Merge(ctx context.Context, defs models.ServerMap) (models.ServerMap, error) {
	unlock, err := s.locks.Lock(ctx, s.path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, loadErr := s.load()
	switch {
	case loadErr == nil:
	case jsonfile.IsNotFound(loadErr):
		current = models.ServerMap{}
	case jsonfile.IsMalformed(loadErr):
		// The backup taken before the write keeps the unreadable content
		s.logger.Warn("Registry is malformed, rebuilding it", zap.String("path", s.path), zap.Error(loadErr))
		current = models.ServerMap{}
	default:
		return nil, fmt.Errorf("failed to read registry: %w", loadErr)
	}

	next := current.Clone()
	for name, def := range defs {
		merged, err := MergeDefinition(def, current[name])
		if err != nil {
			return nil, fmt.Errorf("failed to merge %q: %w", name, err)
		}
		next[name] = merged
	}

	if loadErr == nil && utils.StructuralEqual(current, next) {
		return next, nil
	}
	if err := s.write(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// MergeDefinition combines an incoming definition with the registered one.
func MergeDefinition(incoming, registered models.ServerDefinition) (models.ServerDefinition, error) {
	merged := incoming.Clone()
	if registered.Mode() != merged.Mode() {
		return merged, nil
	}
	if err := mergo.Merge(&merged, registered.Clone()); err != nil {
		return models.ServerDefinition{}, err
	}
	return merged, nil
}

func (s *Store) load() (models.ServerMap, error) {
	file := models.NewConfigFile()
	if err := jsonfile.Read(s.path, file); err != nil {
		return nil, err
	}
	return file.Normalize().MCPServers, nil
}

func (s *Store) create(ctx context.Context) error {
	unlock, err := s.locks.Lock(ctx, s.path)
	if err != nil {
		return err
	}
	defer unlock()

	if jsonfile.Exists(s.path) {
		return nil
	}
	if err := jsonfile.Write(s.path, models.NewConfigFile()); err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}
	s.logger.Info("Created server registry", zap.String("path", s.path))
	return nil
}

func (s *Store) write(ctx context.Context, defs models.ServerMap) error {
	if _, err := s.backups.Backup(ctx, s.path); err != nil {
		s.logger.Warn("Registry backup failed", zap.String("path", s.path), zap.Error(err))
	}
	file := &models.ConfigFile{MCPServers: defs}
	if err := jsonfile.Write(s.path, file.Normalize()); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return nil
}
