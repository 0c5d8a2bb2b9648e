// Package binding holds the channel-to-action table consumed by the
// keybinder. A Snapshot is an immutable, ordered copy of the configured
// mouse and keyboard bindings.
package binding

import (
	"fmt"
	"strings"
)

// Device selects which injection surface a binding drives.
type Device string

const (
	Mouse    Device = "mouse"
	Keyboard Device = "keyboard"
)

// Mode is the per-binding trigger mode. For mouse bindings the global hold
// selector always wins over this field; it is kept for round-tripping.
type Mode string

const (
	Single Mode = "single"
	Hold   Mode = "hold"
)

// Special mouse actions matched by name before generic button dispatch.
const (
	ActionPause = "pause"
	ActionReset = "reset"
	ActionCycle = "cycle"
)

// HoldingKey is the synthetic state key that selects hold mode for all
// mouse bindings. It exists in every state table independent of bindings.
const HoldingKey = "holding"

// Binding maps one channel to a device action.
type Binding struct {
	Device    Device
	Action    string
	Threshold float64
	Mode      Mode
}

// StateKey returns the state table key for b.
func (b Binding) StateKey() string {
	return StateKey(b.Device, b.Action)
}

// IsSpecial reports whether b is one of the mouse pause/reset/cycle actions.
func (b Binding) IsSpecial() bool {
	if b.Device != Mouse {
		return false
	}
	switch b.Action {
	case ActionPause, ActionReset, ActionCycle:
		return true
	}
	return false
}

// Validate checks that every field holds a supported value.
func (b Binding) Validate() error {
	switch b.Device {
	case Mouse, Keyboard:
	default:
		return fmt.Errorf("unknown device %q", b.Device)
	}
	if strings.TrimSpace(b.Action) == "" {
		return fmt.Errorf("action must not be empty")
	}
	// Written so that NaN fails.
	if !(b.Threshold >= 0 && b.Threshold <= 1) {
		return fmt.Errorf("threshold %v out of range [0,1]", b.Threshold)
	}
	switch b.Mode {
	case Single, Hold:
	default:
		return fmt.Errorf("unknown mode %q", b.Mode)
	}
	return nil
}

func (b Binding) String() string {
	return fmt.Sprintf("%s/%s@%.2f(%s)", b.Device, b.Action, b.Threshold, b.Mode)
}

// StateKey builds the state table key for a device/action pair,
// e.g. "mouse_left" or "keyboard_space".
func StateKey(device Device, action string) string {
	return string(device) + "_" + action
}
