package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads the source on filesystem changes until ctx is cancelled.
// Params: config source, logger, and callback for each valid snapshot.
// Returns: watcher setup error; invalid snapshots are logged and skipped.
func Watch(ctx context.Context, src ConfigSource, logger *slog.Logger, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	// The parent directory is watched in file mode so atomic renames are seen.
	dir := src.Dir
	if src.File != "" {
		dir = filepath.Dir(src.File)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	logger.Info("config watch started", "path", src.WatchPath())

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(src, event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			cfg, err := LoadSnapshot(src)
			if err != nil {
				logger.Error("config reload rejected", "path", src.WatchPath(), "error", err.Error())
				continue
			}
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher error", "error", err.Error())
		}
	}
}

// relevantEvent filters events to the config file or TOML fragments.
func relevantEvent(src ConfigSource, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	if src.File != "" {
		return filepath.Clean(event.Name) == filepath.Clean(src.File)
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".toml")
}
