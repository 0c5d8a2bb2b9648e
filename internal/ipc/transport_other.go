//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var endpointPattern = regexp.MustCompile(`^/.*/gesturekeys-[A-Za-z0-9._-]{1,128}\.sock$`)

func defaultEndpointFor(username string) string {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "gesturekeys-"+username+".sock")
}

func dialEndpoint(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint, timeout)
}

// listenEndpoint creates a unix socket readable only by the current user.
// A stale socket left by a crashed process is removed first; a live one
// makes the listen fail.
func listenEndpoint(endpoint string) (net.Listener, error) {
	if conn, err := net.DialTimeout("unix", endpoint, 200*time.Millisecond); err == nil {
		conn.Close()
		return nil, fmt.Errorf("socket %s is in use", endpoint)
	}
	if err := os.Remove(endpoint); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(endpoint), 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	ln, err := net.Listen("unix", endpoint)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(endpoint, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return ln, nil
}

func cleanupEndpoint(endpoint string) {
	if err := os.Remove(endpoint); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("[ipc] failed to remove socket file", "path", endpoint, "error", err)
	}
}
