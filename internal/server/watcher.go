package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchSnapshot watches the snapshot file's directory and reloads the
// index when a rebuild lands. The snapshot is installed by rename, so a
// Create or Write on the snapshot path signals a complete new file.
// Reloads are debounced to absorb rapid successive events.
func (s *Server) watchSnapshot(ctx context.Context) (<-chan struct{}, error) {
	done := make(chan struct{})

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		close(done)
		return done, fmt.Errorf("failed to create snapshot watcher: %w", err)
	}

	snapshotPath := s.cfg.Index.SnapshotPath
	if err := watcher.Add(filepath.Dir(snapshotPath)); err != nil {
		watcher.Close()
		close(done)
		return done, fmt.Errorf("failed to watch snapshot directory: %w", err)
	}

	go func() {
		defer close(done)
		defer watcher.Close()

		var pending bool
		debounce := time.NewTicker(500 * time.Millisecond)
		defer debounce.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != snapshotPath {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					pending = true
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("snapshot watcher error", zap.Error(err))

			case <-debounce.C:
				if !pending {
					continue
				}
				pending = false
				if err := s.reloadIndex(ctx); err != nil {
					s.logger.Error("snapshot reload failed", zap.Error(err))
					continue
				}
				s.logger.Info("snapshot reloaded", zap.String("path", snapshotPath))
			}
		}
	}()

	return done, nil
}
