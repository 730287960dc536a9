package config

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatchReloadsValidSnapshots(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfigFile(t, path, joinSections(mattermostPlatform, "[service]\npoll_interval_sec = 30"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, ConfigSource{File: path}, slog.New(slog.NewTextHandler(io.Discard, nil)), func(cfg Config) {
			reloaded <- cfg
		})
	}()

	deadline := time.After(5 * time.Second)
	for {
		// The watcher registers asynchronously; keep rewriting until the change lands.
		writeConfigFile(t, path, joinSections(mattermostPlatform, "[service]\npoll_interval_sec = 5"))
		select {
		case cfg := <-reloaded:
			if cfg.Service.PollIntervalSec != 5 {
				t.Fatalf("expected reloaded interval 5, got %d", cfg.Service.PollIntervalSec)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch returned error: %v", err)
			}
			return
		case <-deadline:
			t.Fatalf("config change was not observed")
		case <-time.After(300 * time.Millisecond):
		}
	}
}

func TestRelevantEvent(t *testing.T) {
	t.Parallel()

	fileSrc := ConfigSource{File: "/etc/bsm/config.toml"}
	dirSrc := ConfigSource{Dir: "/etc/bsm/conf.d"}
	cases := []struct {
		name  string
		src   ConfigSource
		event fsnotify.Event
		want  bool
	}{
		{"file write", fileSrc, fsnotify.Event{Name: "/etc/bsm/config.toml", Op: fsnotify.Write}, true},
		{"sibling file", fileSrc, fsnotify.Event{Name: "/etc/bsm/other.toml", Op: fsnotify.Write}, false},
		{"chmod only", fileSrc, fsnotify.Event{Name: "/etc/bsm/config.toml", Op: fsnotify.Chmod}, false},
		{"dir fragment", dirSrc, fsnotify.Event{Name: "/etc/bsm/conf.d/10-rules.toml", Op: fsnotify.Create}, true},
		{"dir swap file", dirSrc, fsnotify.Event{Name: "/etc/bsm/conf.d/.10-rules.toml.swp", Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		if got := relevantEvent(tc.src, tc.event); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
