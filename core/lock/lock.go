package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 25 * time.Millisecond

// PathLocker serializes work on a file path. Within the process a mutex per
// cleaned absolute path is used; when a lock directory is configured an
// advisory file lock also excludes other processes.
type PathLocker struct {
	dir string

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates a PathLocker. An empty dir disables cross-process locking.
func New(dir string) *PathLocker {
	return &PathLocker{
		dir:     dir,
		entries: make(map[string]*entry),
	}
}

// Lock blocks until the caller owns path and returns the release function.
func (l *PathLocker) Lock(ctx context.Context, path string) (func(), error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	key = filepath.Clean(key)

	e := l.acquire(key)
	e.mu.Lock()

	if l.dir == "" {
		return func() {
			e.mu.Unlock()
			l.release(key)
		}, nil
	}

	fl, err := l.fileLock(ctx, key)
	if err != nil {
		e.mu.Unlock()
		l.release(key)
		return nil, err
	}

	return func() {
		_ = fl.Unlock()
		e.mu.Unlock()
		l.release(key)
	}, nil
}

func (l *PathLocker) fileLock(ctx context.Context, key string) (*flock.Flock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	sum := sha256.Sum256([]byte(key))
	fl := flock.New(filepath.Join(l.dir, hex.EncodeToString(sum[:8])+".lock"))

	locked, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", key, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock %s", key)
	}
	return fl, nil
}

func (l *PathLocker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *PathLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
