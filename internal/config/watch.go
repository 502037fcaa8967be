package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor or an atomic
// rename produces into a single reload.
const reloadDebounce = 250 * time.Millisecond

const (
	watchErrInitBackoff = time.Second
	watchErrMaxBackoff  = 30 * time.Second
)

// Watch reloads the store whenever the config file changes on disk, until
// ctx is canceled. The parent directory is watched rather than the file
// because atomic writes replace the inode. Reload failures are logged and
// the previous snapshot stays active.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	path := s.holder.Path()
	dir := filepath.Dir(path)

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching config directory %s: %w", dir, err)
	}

	s.logger.Debug("watching config file", slog.String("path", path))

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != filepath.Clean(path) || !isConfigChange(ev) {
				continue
			}

			timer.Reset(reloadDebounce)
			errBackoff = watchErrInitBackoff

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			s.logger.Warn("config watcher error",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", errBackoff),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errBackoff):
			}

			errBackoff = min(errBackoff*2, watchErrMaxBackoff)

		case <-timer.C:
			if err := s.Reload(); err != nil {
				s.logger.Warn("config reload failed, keeping previous config",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func isConfigChange(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
