// Package injector is the OS input-injection capability set used by the
// keybinder. Each platform provides one backend selected at build time;
// Recorder is an in-memory backend for tests and dry runs.
package injector

import (
	"errors"
	"strings"
)

// ErrUnknownButton is returned for mouse button names a backend cannot map.
var ErrUnknownButton = errors.New("unknown mouse button")

// ErrUnknownKey is returned for key names a backend cannot map.
var ErrUnknownKey = errors.New("unknown key")

// Injector performs synchronous OS-level input actions. Button names are
// "left", "right" and "middle" ("click" is accepted as "left"); key names
// follow the usual keysym spelling ("space", "enter", "a", "f5").
type Injector interface {
	KeyDown(key string) error
	KeyUp(key string) error
	MouseDown(button string) error
	MouseUp(button string) error
	Click(button string) error
	MoveTo(x, y int) error
	CursorPosition() (x, y int, err error)
	ScreenSize() (w, h int, err error)
}

// Button is a normalized mouse button.
type Button int

const (
	ButtonLeft Button = iota + 1
	ButtonMiddle
	ButtonRight
)

// ParseButton normalizes a button name.
func ParseButton(name string) (Button, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left", "click", "primary":
		return ButtonLeft, nil
	case "middle", "wheel":
		return ButtonMiddle, nil
	case "right", "secondary":
		return ButtonRight, nil
	}
	return 0, ErrUnknownButton
}

// NormalizeKey lower-cases and trims a key name.
func NormalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
