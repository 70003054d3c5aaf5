package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/attunelabs/attune/internal/observability"
)

// debounceWindow absorbs editor write bursts into one reload.
const debounceWindow = 250 * time.Millisecond

// Watch reloads the configuration whenever the file changes and calls
// onReload with each successfully loaded config. Invalid intermediate states
// are logged and skipped; the previous config stays in effect. Watch blocks
// until the context is cancelled.
func Watch(ctx context.Context, path string, logger *observability.Logger, onReload func(*Config)) error {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save,
	// which drops a watch held on the file itself.
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return err
	}

	var timer *time.Timer
	reloads := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceWindow, func() {
			select {
			case reloads <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "config watcher error", "error", err)

		case <-reloads:
			cfg, err := Load(path)
			if err != nil {
				logger.Warn(ctx, "config reload skipped", "error", err)
				continue
			}
			logger.Info(ctx, "configuration reloaded", "path", path)
			onReload(cfg)
		}
	}
}
