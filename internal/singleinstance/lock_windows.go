//go:build windows

package singleinstance

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// acquire creates the named mutex and keeps its handle open. A second
// process opening the same name gets ERROR_ALREADY_EXISTS alongside a valid
// handle, which must still be closed.
func acquire(name string) (func() error, error) {
	mutexName, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("lock name %q: %w", name, err)
	}
	h, err := windows.CreateMutex(nil, true, mutexName)
	switch {
	case err == nil:
		return func() error { return windows.CloseHandle(h) }, nil
	case h != 0:
		_ = windows.CloseHandle(h)
	}
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return nil, ErrAlreadyRunning
	}
	return nil, fmt.Errorf("CreateMutex %q: %w", name, err)
}

// DefaultName returns the per-user mutex name in the session namespace.
func DefaultName() string {
	return `Local\` + userScopedName()
}
