//go:build windows

package display

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"golang.org/x/sys/windows"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procEnumDisplayMonitors = user32DLL.NewProc("EnumDisplayMonitors")
)

// enumCallback is created once: windows.NewCallback slots are a finite,
// never-released resource.
var (
	enumMu       sync.Mutex
	enumBounds   []Bounds
	enumCallback = windows.NewCallback(collectMonitor)
)

func collectMonitor(_ uintptr, _ uintptr, rect *windows.Rect, _ uintptr) uintptr {
	if rect != nil {
		enumBounds = append(enumBounds, Bounds{
			X:      int(rect.Left),
			Y:      int(rect.Top),
			Width:  int(rect.Right - rect.Left),
			Height: int(rect.Bottom - rect.Top),
		})
	}
	return 1
}

// SystemProvider enumerates monitors through EnumDisplayMonitors.
type SystemProvider struct{}

// NewSystemProvider returns the platform monitor provider.
func NewSystemProvider() *SystemProvider {
	return &SystemProvider{}
}

// Monitors implements Provider.
func (p *SystemProvider) Monitors() ([]Bounds, error) {
	if err := user32DLL.Load(); err != nil {
		return nil, fmt.Errorf("user32.dll is unavailable: %w", err)
	}

	enumMu.Lock()
	defer enumMu.Unlock()
	enumBounds = nil

	ret, _, err := procEnumDisplayMonitors.Call(0, 0, enumCallback, 0)
	if ret == 0 {
		if err == syscall.Errno(0) {
			return nil, errors.New("EnumDisplayMonitors failed")
		}
		return nil, fmt.Errorf("EnumDisplayMonitors: %w", err)
	}

	out := make([]Bounds, len(enumBounds))
	copy(out, enumBounds)
	enumBounds = nil
	return out, nil
}
