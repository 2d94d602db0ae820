package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc receives a freshly loaded and validated configuration.
type ReloadFunc func(*Config)

// Watcher reloads a config file when it changes on disk. Invalid edits are
// logged and the previous configuration stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload ReloadFunc
	watcher  *fsnotify.Watcher
}

// NewWatcher watches path. The parent directory is watched so that
// rename-on-save editors keep triggering reloads.
func NewWatcher(path string, debounce time.Duration, onReload ReloadFunc) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config watcher: no config file in use")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		onReload: onReload,
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	debounceTimer := time.NewTimer(time.Hour)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounceTimer.Reset(w.debounce)
			}

		case <-debounceTimer.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", w.path).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Error().Err(err).Str("path", w.path).Msg("config reload failed, keeping previous configuration")
		return
	}
	log.Info().Str("path", w.path).Int("users", len(cfg.Auth.Users)).Msg("configuration reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
