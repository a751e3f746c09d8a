package settings

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the store whenever its file is written by another program.
// The parent directory is watched so editors that replace the file by rename
// are noticed too. Watch blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return err
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Settings watcher error", zap.Error(err))
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("Settings reload failed, keeping previous settings",
					zap.String("path", s.path), zap.Error(err))
				continue
			}
			s.logger.Debug("Settings reloaded", zap.String("path", s.path))
		}
	}
}
