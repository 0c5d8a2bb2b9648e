//go:build windows

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procRegisterHotKey     = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32.NewProc("UnregisterHotKey")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procPeekMessageW       = user32.NewProc("PeekMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
)

const (
	wmHotkey     = 0x0312
	wmQuit       = 0x0012
	pmNoRemove   = 0x0000
	modNoRepeat  = 0x4000
	maxHotkeyID  = 0xBFFF
	stopDeadline = 2 * time.Second
)

var lastHotkeyID atomic.Int32

func init() { lastHotkeyID.Store(0x4000) }

// msg mirrors the Win32 MSG struct.
type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
	private uint32
}

type registration struct {
	id       int32
	threadID uint32
	done     chan struct{}
	chord    string
}

type loopStarted struct {
	threadID uint32
	err      error
}

// Manager owns at most one registered global hotkey. Each registration runs
// its own locked OS thread with a message loop.
type Manager struct {
	mu  sync.Mutex
	reg *registration
}

// NewManager creates a Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Start registers spec as a global hotkey, replacing any previous one.
// onTrigger runs on its own goroutine for every press.
func (m *Manager) Start(spec string, onTrigger func()) error {
	if onTrigger == nil {
		return errors.New("hotkey trigger callback is required")
	}
	chord, err := Parse(spec)
	if err != nil {
		return err
	}
	if err := user32.Load(); err != nil {
		return fmt.Errorf("user32.dll unavailable: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stopLocked(); err != nil {
		return err
	}

	id := lastHotkeyID.Add(1)
	if id > maxHotkeyID {
		return fmt.Errorf("hotkey id space exhausted (id=%#x)", id)
	}
	started := make(chan loopStarted, 1)
	done := make(chan struct{})
	go messageLoop(id, chord, onTrigger, started, done)

	res := <-started
	if res.err != nil {
		return fmt.Errorf("register hotkey %s: %w", chord, res.err)
	}
	m.reg = &registration{id: id, threadID: res.threadID, done: done, chord: chord.String()}
	slog.Info("[DEBUG-HOTKEY] registered", "hotkey", chord.String(), "id", id)
	return nil
}

// Stop unregisters the active hotkey, if any.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

// Active returns the normalized active chord, or "" when none is registered.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reg == nil {
		return ""
	}
	return m.reg.chord
}

func (m *Manager) stopLocked() error {
	reg := m.reg
	if reg == nil {
		return nil
	}
	m.reg = nil

	err := postThreadMessage(reg.threadID, wmQuit)
	if err != nil {
		// Cross-thread unregister normally fails; it is only a last attempt.
		if uerr := unregisterHotKey(reg.id); uerr != nil {
			slog.Debug("[DEBUG-HOTKEY] fallback unregister failed", "id", reg.id, "error", uerr)
		}
	}

	timer := time.NewTimer(stopDeadline)
	defer timer.Stop()
	select {
	case <-reg.done:
	case <-timer.C:
		slog.Warn("[DEBUG-HOTKEY] message loop did not exit in time", "id", reg.id)
		err = errors.Join(err, fmt.Errorf("hotkey %s: message loop stop timed out", reg.chord))
	}
	return err
}

func messageLoop(id int32, chord Chord, onTrigger func(), started chan<- loopStarted, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	threadID := windows.GetCurrentThreadId()

	// Creates the thread message queue so PostThreadMessageW can reach it.
	var m msg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0, pmNoRemove)

	if err := registerHotKey(id, uint32(chord.Modifiers())|modNoRepeat, uint32(chord.Key())); err != nil {
		started <- loopStarted{err: err}
		return
	}
	defer func() {
		if err := unregisterHotKey(id); err != nil {
			slog.Warn("[DEBUG-HOTKEY] unregister on exit failed", "id", id, "error", err)
		}
	}()
	started <- loopStarted{threadID: threadID}

	for {
		var m msg
		ret, _, callErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			slog.Warn("[DEBUG-HOTKEY] GetMessageW failed, leaving loop", "id", id, "error", callErr)
			return
		case 0:
			slog.Debug("[DEBUG-HOTKEY] message loop stopped", "id", id)
			return
		}
		if m.message == wmHotkey && int32(m.wParam) == id {
			go onTrigger()
		}
	}
}

func registerHotKey(id int32, mods, key uint32) error {
	r, _, err := procRegisterHotKey.Call(0, uintptr(id), uintptr(mods), uintptr(key))
	return callResult(r, err, "RegisterHotKey")
}

func unregisterHotKey(id int32) error {
	r, _, err := procUnregisterHotKey.Call(0, uintptr(id))
	return callResult(r, err, "UnregisterHotKey")
}

func postThreadMessage(threadID uint32, message uint32) error {
	if threadID == 0 {
		return errors.New("post thread message: thread id is 0")
	}
	r, _, err := procPostThreadMessageW.Call(uintptr(threadID), uintptr(message), 0, 0)
	return callResult(r, err, "PostThreadMessageW")
}

func callResult(r uintptr, err error, name string) error {
	if r != 0 {
		return nil
	}
	if errors.Is(err, syscall.Errno(0)) || err == nil {
		return fmt.Errorf("%s failed", name)
	}
	return err
}
