package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"gesturekeys/internal/binding"
)

// maxHoldTriggerMS caps the single-mode upgrade delay at one minute.
const maxHoldTriggerMS = 60_000

// ErrPathRequired is returned when a config path is empty.
var ErrPathRequired = errors.New("config path required")

// JournalConfig controls the SQLite intent/log journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Path is the database file. Empty means journal.db next to the config file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Config is gesturekeys runtime configuration.
type Config struct {
	// AutoPlay is the Active Flag the engine starts with.
	AutoPlay bool `yaml:"auto_play" json:"auto_play"`
	// HoldTriggerMS is how long a single-mode mouse press must persist before
	// it is upgraded into a continuous button-down.
	HoldTriggerMS   int    `yaml:"hold_trigger_ms" json:"hold_trigger_ms"`
	ReleaseOnRebind bool   `yaml:"release_on_rebind" json:"release_on_rebind"`
	DryRun          bool   `yaml:"dry_run" json:"dry_run"`
	LogLevel        string `yaml:"log_level" json:"log_level"`
	// FeedAddr is the host:port the activation WebSocket listens on.
	FeedAddr     string        `yaml:"feed_addr" json:"feed_addr"`
	ToggleHotkey string        `yaml:"toggle_hotkey" json:"toggle_hotkey"`
	Journal      JournalConfig `yaml:"journal" json:"journal"`
	// MouseBindings and KeyboardBindings are merged mouse-first into one
	// snapshot; a keyboard entry replaces a mouse entry on the same channel.
	MouseBindings    BindingTable `yaml:"mouse_bindings" json:"mouse_bindings"`
	KeyboardBindings BindingTable `yaml:"keyboard_bindings" json:"keyboard_bindings"`
}

// DefaultConfig returns default values.
func DefaultConfig() Config {
	return Config{
		AutoPlay:        false,
		HoldTriggerMS:   500,
		ReleaseOnRebind: true,
		LogLevel:        "info",
		FeedAddr:        "127.0.0.1:47650",
		ToggleHotkey:    "Ctrl+Shift+F9",
		Journal:         JournalConfig{Enabled: true},
		MouseBindings: BindingTable{
			{Channel: "mouthSmileLeft", Binding: binding.Binding{Device: binding.Mouse, Action: "left", Threshold: 0.5, Mode: binding.Single}},
			{Channel: "mouthSmileRight", Binding: binding.Binding{Device: binding.Mouse, Action: "right", Threshold: 0.5, Mode: binding.Single}},
			{Channel: "browInnerUp", Binding: binding.Binding{Device: binding.Mouse, Action: binding.ActionPause, Threshold: 0.7, Mode: binding.Single}},
		},
		KeyboardBindings: BindingTable{
			{Channel: "jawOpen", Binding: binding.Binding{Device: binding.Keyboard, Action: "space", Threshold: 0.6, Mode: binding.Hold}},
		},
	}
}

// Snapshot merges the two binding tables into an immutable Snapshot.
func (c Config) Snapshot() binding.Snapshot {
	return binding.Merge(c.MouseBindings, c.KeyboardBindings)
}

// HoldTrigger returns HoldTriggerMS as a Duration.
func (c Config) HoldTrigger() time.Duration {
	return time.Duration(c.HoldTriggerMS) * time.Millisecond
}

// SlogLevel maps LogLevel onto slog levels. Unknown values yield info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// JournalPath resolves the journal database location for a config file at
// configPath.
func (c Config) JournalPath(configPath string) string {
	if p := strings.TrimSpace(c.Journal.Path); p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), "journal.db")
}

// Parse decodes raw YAML on top of the defaults and validates the result.
// The default bindings apply only when the document names neither binding
// table; otherwise the tables hold exactly what the document lists.
func Parse(raw []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(strings.TrimSpace(string(raw))) == 0 {
		return cfg, nil
	}
	if declaresBindings(raw) {
		cfg.MouseBindings = BindingTable{}
		cfg.KeyboardBindings = BindingTable{}
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config: %w", err)
	}
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// declaresBindings reports whether the top-level mapping has a
// mouse_bindings or keyboard_bindings key, even an empty one. Documents that
// fail to decode report false and are rejected by Parse.
func declaresBindings(raw []byte) bool {
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &top); err != nil {
		return false
	}
	_, mouse := top["mouse_bindings"]
	_, keyboard := top["keyboard_bindings"]
	return mouse || keyboard
}

// Clone returns a deep copy of src.
func Clone(src Config) Config {
	dst := src
	dst.MouseBindings = src.MouseBindings.clone()
	dst.KeyboardBindings = src.KeyboardBindings.clone()
	return dst
}

// applyDefaultsAndValidate fills missing defaults and validates cfg in-place.
// MUTATES: cfg is directly modified.
// Used by both Load and Save to ensure consistent normalization.
func applyDefaultsAndValidate(cfg *Config) error {
	defaults := DefaultConfig()
	if isZeroConfig(*cfg) {
		*cfg = defaults
		return nil
	}

	if cfg.HoldTriggerMS < 0 || cfg.HoldTriggerMS > maxHoldTriggerMS {
		return fmt.Errorf("hold_trigger_ms must be within 0-%d, got %d", maxHoldTriggerMS, cfg.HoldTriggerMS)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	case "":
		cfg.LogLevel = defaults.LogLevel
	default:
		slog.Warn("[WARN-CONFIG] unknown log_level, falling back to default", "value", cfg.LogLevel, "default", defaults.LogLevel)
		cfg.LogLevel = defaults.LogLevel
	}

	validateFeedAddr(cfg, defaults.FeedAddr)

	cfg.ToggleHotkey = strings.TrimSpace(cfg.ToggleHotkey)
	cfg.Journal.Path = strings.TrimSpace(cfg.Journal.Path)

	if err := validateTable("mouse_bindings", cfg.MouseBindings, binding.Mouse); err != nil {
		return err
	}
	if err := validateTable("keyboard_bindings", cfg.KeyboardBindings, binding.Keyboard); err != nil {
		return err
	}
	return nil
}

// validateFeedAddr resets feed_addr to the default when it is not a
// host:port pair with a valid port.
func validateFeedAddr(cfg *Config, fallback string) {
	addr := strings.TrimSpace(cfg.FeedAddr)
	if addr == "" {
		cfg.FeedAddr = fallback
		return
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		slog.Warn("[WARN-CONFIG] feed_addr is not host:port, falling back to default", "value", addr, "default", fallback)
		cfg.FeedAddr = fallback
		return
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		slog.Warn("[WARN-CONFIG] feed_addr port is invalid, falling back to default", "value", addr, "default", fallback)
		cfg.FeedAddr = fallback
		return
	}
	cfg.FeedAddr = addr
}

func validateTable(field string, table BindingTable, expected binding.Device) error {
	for _, entry := range table {
		if strings.TrimSpace(entry.Channel) == "" {
			return fmt.Errorf("%s: empty channel name", field)
		}
		if err := entry.Binding.Validate(); err != nil {
			return fmt.Errorf("%s.%s: %w", field, entry.Channel, err)
		}
		if entry.Binding.Device != expected {
			slog.Warn("[WARN-CONFIG] binding device does not match its table",
				"table", field, "channel", entry.Channel, "device", entry.Binding.Device)
		}
	}
	return nil
}

func isZeroConfig(cfg Config) bool {
	// reflect.DeepEqual guards against field-addition drift that manual checks miss.
	return reflect.DeepEqual(cfg, Config{})
}
