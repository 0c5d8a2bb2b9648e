//go:build windows

package injector

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procSendInput        = user32DLL.NewProc("SendInput")
	procSetCursorPos     = user32DLL.NewProc("SetCursorPos")
	procGetCursorPos     = user32DLL.NewProc("GetCursorPos")
	procGetSystemMetrics = user32DLL.NewProc("GetSystemMetrics")
	procMapVirtualKeyW   = user32DLL.NewProc("MapVirtualKeyW")
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	keyeventfExtendedKey = 0x0001
	keyeventfKeyUp       = 0x0002

	mouseeventfLeftDown   = 0x0002
	mouseeventfLeftUp     = 0x0004
	mouseeventfRightDown  = 0x0008
	mouseeventfRightUp    = 0x0010
	mouseeventfMiddleDown = 0x0020
	mouseeventfMiddleUp   = 0x0040

	smCxScreen = 0
	smCyScreen = 1

	mapvkVkToVsc = 0
)

// mouseInput mirrors MOUSEINPUT.
type mouseInput struct {
	dx          int32
	dy          int32
	mouseData   uint32
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

// keybdInput mirrors KEYBDINPUT.
type keybdInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

// mouseEvent and keyboardEvent mirror INPUT with the matching union member.
// The keyboard variant is padded to the size of the mouse variant, which is
// the largest union member, so cbSize is identical for both.
type mouseEvent struct {
	inputType uint32
	mi        mouseInput
}

type keyboardEvent struct {
	inputType uint32
	ki        keybdInput
	_         [8]byte
}

type winPoint struct {
	x int32
	y int32
}

// SendInputBackend injects input through user32 SendInput.
type SendInputBackend struct{}

// NewSystem returns the platform injection backend.
func NewSystem() (Injector, error) {
	if err := user32DLL.Load(); err != nil {
		return nil, fmt.Errorf("user32.dll is unavailable: %w", err)
	}
	return &SendInputBackend{}, nil
}

func callErr(name string, err error) error {
	if err == nil || err == syscall.Errno(0) {
		return errors.New(name + " failed")
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (b *SendInputBackend) sendKey(key string, up bool) error {
	vk, ok := lookupVirtualKey(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	scan, _, _ := procMapVirtualKeyW.Call(uintptr(vk), mapvkVkToVsc)
	var flags uint32
	if _, ext := extendedVirtualKeys[vk]; ext {
		flags |= keyeventfExtendedKey
	}
	if up {
		flags |= keyeventfKeyUp
	}
	ev := keyboardEvent{
		inputType: inputKeyboard,
		ki: keybdInput{
			wVk:     uint16(vk),
			wScan:   uint16(scan),
			dwFlags: flags,
		},
	}
	n, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&ev)), unsafe.Sizeof(ev))
	if n != 1 {
		return callErr("SendInput", err)
	}
	return nil
}

func buttonFlags(name string) (down, up uint32, err error) {
	btn, err := ParseButton(name)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", err, name)
	}
	switch btn {
	case ButtonRight:
		return mouseeventfRightDown, mouseeventfRightUp, nil
	case ButtonMiddle:
		return mouseeventfMiddleDown, mouseeventfMiddleUp, nil
	default:
		return mouseeventfLeftDown, mouseeventfLeftUp, nil
	}
}

func (b *SendInputBackend) sendMouse(flags ...uint32) error {
	events := make([]mouseEvent, len(flags))
	for i, f := range flags {
		events[i] = mouseEvent{inputType: inputMouse, mi: mouseInput{dwFlags: f}}
	}
	n, _, err := procSendInput.Call(
		uintptr(len(events)),
		uintptr(unsafe.Pointer(&events[0])),
		unsafe.Sizeof(events[0]),
	)
	if int(n) != len(events) {
		return callErr("SendInput", err)
	}
	return nil
}

// KeyDown implements Injector.
func (b *SendInputBackend) KeyDown(key string) error { return b.sendKey(key, false) }

// KeyUp implements Injector.
func (b *SendInputBackend) KeyUp(key string) error { return b.sendKey(key, true) }

// MouseDown implements Injector.
func (b *SendInputBackend) MouseDown(button string) error {
	down, _, err := buttonFlags(button)
	if err != nil {
		return err
	}
	return b.sendMouse(down)
}

// MouseUp implements Injector.
func (b *SendInputBackend) MouseUp(button string) error {
	_, up, err := buttonFlags(button)
	if err != nil {
		return err
	}
	return b.sendMouse(up)
}

// Click implements Injector.
func (b *SendInputBackend) Click(button string) error {
	down, up, err := buttonFlags(button)
	if err != nil {
		return err
	}
	return b.sendMouse(down, up)
}

// MoveTo implements Injector.
func (b *SendInputBackend) MoveTo(x, y int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(int32(x)), uintptr(int32(y)))
	if ret == 0 {
		return callErr("SetCursorPos", err)
	}
	return nil
}

// CursorPosition implements Injector.
func (b *SendInputBackend) CursorPosition() (int, int, error) {
	var pt winPoint
	ret, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return 0, 0, callErr("GetCursorPos", err)
	}
	return int(pt.x), int(pt.y), nil
}

// ScreenSize implements Injector.
func (b *SendInputBackend) ScreenSize() (int, int, error) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	if w == 0 || h == 0 {
		return 0, 0, errors.New("GetSystemMetrics returned an empty screen size")
	}
	return int(w), int(h), nil
}
