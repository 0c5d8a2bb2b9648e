package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	appDirName               = "gesturekeys"
	configFileName           = "config.yaml"
	maxConfigFileBytes int64 = 1 << 20
	// Antivirus and indexers hold files briefly on Windows; renames are
	// retried with doubling delays starting at renameRetryDelay.
	renameAttempts   = 6
	renameRetryDelay = 10 * time.Millisecond
)

// Test seams.
var (
	userHomeDirFn = os.UserHomeDir
	renameFn      = os.Rename
)

var pathWarnings struct {
	mu   sync.Mutex
	msgs []string
}

func addPathWarning(msg string) {
	pathWarnings.mu.Lock()
	pathWarnings.msgs = append(pathWarnings.msgs, msg)
	pathWarnings.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears the warnings DefaultPath
// recorded while falling back.
func ConsumeDefaultPathWarnings() []string {
	pathWarnings.mu.Lock()
	defer pathWarnings.mu.Unlock()
	out := pathWarnings.msgs
	pathWarnings.msgs = nil
	return out
}

// DefaultPath returns the per-user config file. The base directory is the
// first of LOCALAPPDATA, APPDATA, XDG_CONFIG_HOME and ~/.config that
// resolves; the temp dir is the last resort.
func DefaultPath() string {
	for _, env := range []string{"LOCALAPPDATA", "APPDATA", "XDG_CONFIG_HOME"} {
		if base := strings.TrimSpace(os.Getenv(env)); base != "" {
			return filepath.Join(base, appDirName, configFileName)
		}
	}
	home, err := userHomeDirFn()
	if err == nil && home != "" {
		return filepath.Join(home, ".config", appDirName, configFileName)
	}
	slog.Warn("[WARN-CONFIG] no home directory, using temp dir for config", "error", err)
	addPathWarning("config directory could not be resolved; using the temp directory, settings may not persist")
	return filepath.Join(os.TempDir(), appDirName, configFileName)
}

// Load reads the config at path. A missing file yields the defaults. Parse
// and validation failures return the defaults together with the error.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), ErrPathRequired
	}
	raw, err := readConfigFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return DefaultConfig(), err
	}
	return Parse(raw)
}

// EnsureFile loads path, writing the defaults there first when it does not
// exist.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return Save(path, cfg)
	}
	return cfg, nil
}

// Save validates cfg and replaces the file at path atomically. It returns
// the normalized config that was written.
func Save(path string, cfg Config) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, ErrPathRequired
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return cfg, fmt.Errorf("save config: %s is a directory", path)
	}
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := writeFileAtomic(path, raw); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", path)
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, maxConfigFileBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxConfigFileBytes)
	}
	return raw, nil
}

// writeFileAtomic writes data to a sibling temp file and renames it over
// path, so readers and the watcher never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tmp.Close()
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("[WARN-CONFIG] temp file left behind", "path", tmpPath, "error", err)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := renameWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	committed = true
	return nil
}

func renameWithRetry(from, to string) error {
	delay := renameRetryDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = renameFn(from, to); err == nil {
			return nil
		}
		if runtime.GOOS != "windows" || attempt == renameAttempts {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
}
