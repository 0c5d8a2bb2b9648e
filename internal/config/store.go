package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"gesturekeys/internal/keybinder"
)

// DefaultReloadDebounce coalesces the burst of events editors emit on save.
const DefaultReloadDebounce = 150 * time.Millisecond

type published struct {
	cfg      Config
	settings keybinder.Settings
}

// Store holds the live configuration. Readers get immutable snapshots; a
// reload publishes a new snapshot atomically. Safe for concurrent use.
type Store struct {
	path     string
	debounce time.Duration
	current  atomic.Pointer[published]

	mu        sync.Mutex
	listeners []func(Config)
}

// NewStore creates a Store for the file at path seeded with cfg.
func NewStore(path string, cfg Config) *Store {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	s := &Store{path: path, debounce: DefaultReloadDebounce}
	s.publish(cfg)
	return s
}

// Path returns the watched file.
func (s *Store) Path() string { return s.path }

// SetDebounce overrides the reload debounce. Call before Watch.
func (s *Store) SetDebounce(d time.Duration) {
	if d > 0 {
		s.debounce = d
	}
}

// Config returns a deep copy of the current configuration.
func (s *Store) Config() Config {
	return Clone(s.current.Load().cfg)
}

// Settings implements keybinder.SettingsSource.
func (s *Store) Settings() keybinder.Settings {
	return s.current.Load().settings
}

// Subscribe registers fn to run after every successful reload. fn runs on
// the reloading goroutine and must not block.
func (s *Store) Subscribe(fn func(Config)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Set publishes cfg without touching the file.
func (s *Store) Set(cfg Config) {
	s.publish(cfg)
	s.notify()
}

// Reload re-reads the file. On failure the previous snapshot stays active
// and the error is returned.
func (s *Store) Reload() (Config, error) {
	cfg, err := Load(s.path)
	if err != nil {
		slog.Warn("[WARN-CONFIG] reload failed, keeping previous config", "path", s.path, "error", err)
		return s.Config(), err
	}
	s.publish(cfg)
	slog.Info("[DEBUG-CONFIG] config reloaded", "path", s.path, "bindings", s.Settings().Bindings.Len())
	s.notify()
	return Clone(cfg), nil
}

func (s *Store) publish(cfg Config) {
	cfg = Clone(cfg)
	s.current.Store(&published{
		cfg: cfg,
		settings: keybinder.Settings{
			Bindings:        cfg.Snapshot(),
			HoldThreshold:   cfg.HoldTrigger(),
			DefaultActive:   cfg.AutoPlay,
			ReleaseOnRebind: cfg.ReleaseOnRebind,
		},
	})
}

func (s *Store) notify() {
	s.mu.Lock()
	listeners := make([]func(Config), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	cfg := s.Config()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// Watch reloads the file whenever it changes until ctx is cancelled. The
// parent directory is watched so that rename-on-save editors are seen.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config watch %s: %w", dir, err)
	}
	slog.Debug("[DEBUG-CONFIG] watching config", "path", s.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
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
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_, _ = s.Reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("[WARN-CONFIG] watcher error", "error", err)
		}
	}
}
