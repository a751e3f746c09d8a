package settings

import (
	"context"
	"fmt"
	"sync"

	"mcp-manager/core/jsonfile"
	"mcp-manager/feature/mcp/models"

	"go.uber.org/zap"
)

// FileName is the settings document inside the data directory.
const FileName = "settings.json"

// Backuper takes a backup of a file before it is overwritten.
type Backuper interface {
	Backup(ctx context.Context, path string) (string, error)
}

// Store holds the settings document. Readers get immutable snapshots;
// writers go through Update, which persists before publishing.
type Store interface {
	// Load reads settings.json, creating it from defaults when absent.
	Load() error
	// Current returns a snapshot that callers may not mutate in place.
	Current() *models.Settings
	// Save replaces the whole document.
	Save(ctx context.Context, s *models.Settings) error
	// Update applies fn to a copy of the current settings and persists it.
	// When fn or the write fails the current snapshot is left untouched.
	Update(ctx context.Context, fn func(s *models.Settings) error) (*models.Settings, error)
}

// FileStore is a Store backed by a JSON file.
type FileStore struct {
	path     string
	defaults func() *models.Settings
	backups  Backuper
	logger   *zap.Logger

	mu      sync.Mutex
	current *models.Settings
	snapMu  sync.RWMutex
}

// NewFileStore creates a store for path. defaults seeds a missing file.
func NewFileStore(path string, defaults func() *models.Settings, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:     path,
		defaults: defaults,
		logger:   logger,
		current:  normalize(defaults()),
	}
}

// SetBackuper installs the backup pass run before every write.
// The backup manager reads its retention from this store, hence the setter.
func (s *FileStore) SetBackuper(b Backuper) {
	s.backups = b
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.read()
	if err != nil {
		if !jsonfile.IsNotFound(err) {
			return err
		}
		loaded = normalize(s.defaults())
		if err := jsonfile.Write(s.path, loaded); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.path, err)
		}
		s.logger.Info("Created default settings", zap.String("path", s.path))
	}

	s.publish(loaded)
	return nil
}

func (s *FileStore) read() (*models.Settings, error) {
	var loaded models.Settings
	if err := jsonfile.Read(s.path, &loaded); err != nil {
		return nil, err
	}
	return normalize(&loaded), nil
}

// Current implements Store.
func (s *FileStore) Current() *models.Settings {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.current
}

func (s *FileStore) publish(next *models.Settings) {
	s.snapMu.Lock()
	s.current = next
	s.snapMu.Unlock()
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, next *models.Settings) error {
	_, err := s.Update(ctx, func(cur *models.Settings) error {
		*cur = *next.Clone()
		return nil
	})
	return err
}

// Update implements Store.
func (s *FileStore) Update(ctx context.Context, fn func(s *models.Settings) error) (*models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Current().Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next = normalize(next)

	if s.backups != nil {
		if _, err := s.backups.Backup(ctx, s.path); err != nil {
			s.logger.Warn("Settings backup failed", zap.String("path", s.path), zap.Error(err))
		}
	}
	if err := jsonfile.Write(s.path, next); err != nil {
		return nil, err
	}

	s.publish(next)
	return next, nil
}

// Reload re-reads the file, keeping the current snapshot when it is malformed.
func (s *FileStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.read()
	if err != nil {
		return err
	}
	s.publish(loaded)
	return nil
}

func normalize(s *models.Settings) *models.Settings {
	if s.Clients == nil {
		s.Clients = map[string]models.Client{}
	}
	if s.SyncGroups == nil {
		s.SyncGroups = map[string]models.SyncGroup{}
	}
	if s.MaxBackups <= 0 {
		s.MaxBackups = DefaultMaxBackups
	}
	return s
}
