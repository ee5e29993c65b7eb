package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Holder keeps the current configuration and swaps it atomically on reload.
// Readers get a copy, so a request keeps one consistent snapshot.
type Holder struct {
	mu         sync.RWMutex
	current    Config
	configPath string
	logger     zerolog.Logger

	watcherMu sync.Mutex
	watcher   *fsnotify.Watcher
}

func NewHolder(initial *Config, configPath string, logger zerolog.Logger) *Holder {
	return &Holder{
		current:    *initial,
		configPath: configPath,
		logger:     logger.With().Str("component", "config").Logger(),
	}
}

func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-reads the file and environment. On any error the previous
// configuration stays in place.
func (h *Holder) Reload() error {
	next, err := Load(h.configPath)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.configPath).Msg("config reload failed")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = *next
	h.mu.Unlock()

	h.logChanges(prev, *next)
	h.logger.Info().Str("path", h.configPath).Msg("configuration reloaded")
	return nil
}

func (h *Holder) logChanges(prev, next Config) {
	if prev.Library.Path != next.Library.Path {
		h.logger.Info().Str("old", prev.Library.Path).Str("new", next.Library.Path).Msg("config changed: library.path")
	}
	if prev.Library.RestrictToReserved != next.Library.RestrictToReserved {
		h.logger.Info().
			Bool("old", prev.Library.RestrictToReserved).
			Bool("new", next.Library.RestrictToReserved).
			Msg("config changed: library.restrict_to_reserved")
	}
	if prev.Library.SortOrder != next.Library.SortOrder {
		h.logger.Info().Str("old", prev.Library.SortOrder).Str("new", next.Library.SortOrder).Msg("config changed: library.sort_order")
	}
	if prev.Server != next.Server || prev.Database != next.Database {
		h.logger.Warn().Msg("server and database settings take effect after restart")
	}
}

// StartWatcher reloads the configuration whenever the file changes, until
// ctx is done. Without a config file it does nothing.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().Msg("config file watcher disabled, no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors often replace the file, so watch the directory and filter.
	if err := watcher.Add(filepath.Dir(h.configPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.watcherMu.Lock()
	h.watcher = watcher
	h.watcherMu.Unlock()

	h.logger.Info().Str("path", h.configPath).Msg("watching config file for changes")

	go h.watchLoop(ctx, watcher)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	target := filepath.Clean(h.configPath)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		_ = watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Msg("config watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			h.logger.Debug().Str("op", event.Op.String()).Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				_ = h.Reload()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}

// Stop closes the watcher if one is running.
func (h *Holder) Stop() {
	h.watcherMu.Lock()
	defer h.watcherMu.Unlock()
	if h.watcher != nil {
		_ = h.watcher.Close()
		h.watcher = nil
	}
}
