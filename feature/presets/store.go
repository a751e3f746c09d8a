package presets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"mcp-manager/core/jsonfile"

	"go.uber.org/zap"
)

// FileName is the file-backed preset document inside the data directory.
const FileName = "presets.json"

var (
	// ErrNotFound is returned for an unknown preset name.
	ErrNotFound = errors.New("preset not found")
	// ErrInvalid is returned for a bad preset name or body.
	ErrInvalid = errors.New("invalid preset")
)

// Store is a flat name to JSON object table.
type Store interface {
	List(ctx context.Context) (map[string]json.RawMessage, error)
	Get(ctx context.Context, name string) (json.RawMessage, error)
	Put(ctx context.Context, name string, data json.RawMessage) error
	Delete(ctx context.Context, name string) error
}

// Backuper takes a backup of a file before it is overwritten.
type Backuper interface {
	Backup(ctx context.Context, path string) (string, error)
}

// Locker serializes work on one file path.
type Locker interface {
	Lock(ctx context.Context, path string) (func(), error)
}

// FileStore keeps presets in presets.json.
type FileStore struct {
	path    string
	backups Backuper
	locks   Locker
	logger  *zap.Logger
}

// NewFileStore creates a preset store in dataDir.
func NewFileStore(dataDir string, backups Backuper, locks Locker, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:    filepath.Join(dataDir, FileName),
		backups: backups,
		locks:   locks,
		logger:  logger,
	}
}

// Path returns the presets file location.
func (s *FileStore) Path() string {
	return s.path
}

// List implements Store.
func (s *FileStore) List(ctx context.Context) (map[string]json.RawMessage, error) {
	return s.read()
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, name string) (json.RawMessage, error) {
	all, err := s.read()
	if err != nil {
		return nil, err
	}
	data, ok := all[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, nil
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, name string, data json.RawMessage) error {
	return s.modify(ctx, func(all map[string]json.RawMessage) error {
		all[name] = data
		return nil
	})
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	return s.modify(ctx, func(all map[string]json.RawMessage) error {
		if _, ok := all[name]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		delete(all, name)
		return nil
	})
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	all := map[string]json.RawMessage{}
	if err := jsonfile.Read(s.path, &all); err != nil {
		if jsonfile.IsNotFound(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}
	if all == nil {
		all = map[string]json.RawMessage{}
	}
	return all, nil
}

func (s *FileStore) modify(ctx context.Context, fn func(all map[string]json.RawMessage) error) error {
	unlock, err := s.locks.Lock(ctx, s.path)
	if err != nil {
		return err
	}
	defer unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(all); err != nil {
		return err
	}

	if _, err := s.backups.Backup(ctx, s.path); err != nil {
		s.logger.Warn("Presets backup failed", zap.String("path", s.path), zap.Error(err))
	}
	return jsonfile.Write(s.path, all)
}
