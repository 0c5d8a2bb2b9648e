//go:build !windows

package hotkeys

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"

	"golang.org/x/sys/unix"
)

// toggleSignal stands in for the chord where no global hotkey API exists:
// `pkill -USR1 gesturekeys` can be bound in the desktop's own shortcut
// settings.
var toggleSignal os.Signal = unix.SIGUSR1

// Manager validates the toggle chord and fires the trigger on SIGUSR1.
type Manager struct {
	mu     sync.Mutex
	active string
	sigs   chan os.Signal
	done   chan struct{}
}

// NewManager creates a Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Start parses spec, records it as the active chord and starts relaying
// the toggle signal to onTrigger. A second Start replaces the first.
func (m *Manager) Start(spec string, onTrigger func()) error {
	if onTrigger == nil {
		return errors.New("hotkey trigger callback is required")
	}
	chord, err := Parse(spec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()

	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, toggleSignal)
	go relaySignals(sigs, done, onTrigger)
	m.sigs, m.done = sigs, done
	m.active = chord.String()

	slog.Info("[DEBUG-HOTKEY] global hotkeys are unavailable here; send SIGUSR1 or run `gesturectl toggle`",
		"hotkey", m.active, "pid", os.Getpid())
	return nil
}

func relaySignals(sigs <-chan os.Signal, done <-chan struct{}, onTrigger func()) {
	for {
		select {
		case <-done:
			return
		case <-sigs:
			fire(onTrigger)
		}
	}
}

func fire(onTrigger func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] hotkey callback panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	onTrigger()
}

// Stop stops relaying the signal and clears the active chord.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	return nil
}

func (m *Manager) stopLocked() {
	if m.sigs != nil {
		signal.Stop(m.sigs)
		close(m.done)
		m.sigs, m.done = nil, nil
	}
	m.active = ""
}

// Active returns the normalized active chord, or "" when none is set.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
