package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DirName is the directory created beside each backed up file.
	DirName = "mcp-backups"

	// timestampLayout is ISO 8601 with ':' and '.' replaced so it is a valid
	// file name everywhere and sorts lexicographically.
	timestampLayout = "2006-01-02T15-04-05-000Z"
)

// Mirror receives a copy of every backup artifact. source is the file that
// was backed up and backupPath the artifact just written for it.
type Mirror interface {
	Mirror(ctx context.Context, source, backupPath string, keep int) error
}

// Entry is one backup artifact on disk.
type Entry struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

// Manager copies a file aside before it is overwritten and prunes older copies.
type Manager struct {
	retention func() int
	logger    *zap.Logger
	mirror    Mirror
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMirror sends every backup to m after it is written locally.
func WithMirror(m Mirror) Option {
	return func(mgr *Manager) {
		mgr.mirror = m
	}
}

// WithClock overrides the time source used for backup names.
func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) {
		mgr.now = now
	}
}

// NewManager creates a Manager. retention is consulted on every pass so that
// settings changes apply without a restart.
func NewManager(retention func() int, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Family returns the name prefix shared by every backup of path.
func Family(path string) string {
	base := filepath.Base(path)
	return "backup-" + strings.TrimSuffix(base, filepath.Ext(base)) + "-"
}

// Stamp parses the creation time out of name, a backup file name of path.
// It reports false when name belongs to another file, including files whose
// name extends the one of path (client-a and client-a-b).
func Stamp(path, name string) (time.Time, bool) {
	family := Family(path)
	if !strings.HasPrefix(name, family) || !strings.HasSuffix(name, ".json") {
		return time.Time{}, false
	}
	created, err := time.Parse(timestampLayout, strings.TrimSuffix(strings.TrimPrefix(name, family), ".json"))
	if err != nil {
		return time.Time{}, false
	}
	return created, true
}

// Name returns the backup file name for path taken at t.
func Name(path string, t time.Time) string {
	return Family(path) + t.UTC().Format(timestampLayout) + ".json"
}

// Backup copies path into the sibling backup directory and prunes old copies.
// It returns the created backup path, or "" when path does not exist.
func (m *Manager) Backup(ctx context.Context, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open %s for backup: %w", path, err)
	}
	defer src.Close()

	dir := filepath.Join(filepath.Dir(path), DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	dst, target, err := m.create(dir, path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to copy %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to copy %s: %w", path, err)
	}

	keep := max(m.retention(), 1)
	if err := m.prune(path, keep); err != nil {
		m.logger.Warn("Backup pruning failed", zap.String("file", path), zap.Error(err))
	}

	if m.mirror != nil {
		if err := m.mirror.Mirror(ctx, path, target, keep); err != nil {
			m.logger.Warn("Backup mirror failed", zap.String("backup", target), zap.Error(err))
		}
	}

	m.logger.Debug("Backup created", zap.String("file", path), zap.String("backup", target))
	return target, nil
}

// create opens a new backup file, moving the timestamp forward by a
// millisecond when a backup with the same name already exists.
func (m *Manager) create(dir, path string) (*os.File, string, error) {
	t := m.now()
	for i := 0; i < 1000; i++ {
		target := filepath.Join(dir, Name(path, t))
		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, target, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("failed to create backup: %w", err)
		}
		t = t.Add(time.Millisecond)
	}
	return nil, "", fmt.Errorf("failed to allocate a backup name for %s", path)
}

// List returns the backups of path, newest first.
func (m *Manager) List(path string) ([]Entry, error) {
	dir := filepath.Join(filepath.Dir(path), DirName)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() {
			continue
		}
		created, ok := Stamp(path, name)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Created: created,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Created.After(entries[j].Created)
	})
	return entries, nil
}

func (m *Manager) prune(path string, keep int) error {
	entries, err := m.List(path)
	if err != nil {
		return err
	}
	if len(entries) <= keep {
		return nil
	}
	for _, e := range entries[keep:] {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
