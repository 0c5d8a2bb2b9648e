// Package hotkeys registers the global chord that toggles the Active Flag.
//
// Chords are written as modifier names followed by a key, joined by "+":
// "Ctrl+Shift+F9", "Alt+`", "Win+0x7B". Parsing is portable; registration
// is only available on Windows.
package hotkeys

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier is a Win32 MOD_* bitmask.
type Modifier uint32

// VKey is a Win32 virtual-key code.
type VKey uint32

const (
	ModAlt     Modifier = 0x0001
	ModControl Modifier = 0x0002
	ModShift   Modifier = 0x0004
	ModWin     Modifier = 0x0008
)

const (
	vkTab    VKey = 0x09
	vkReturn VKey = 0x0D
	vkPause  VKey = 0x13
	vkEscape VKey = 0x1B
	vkSpace  VKey = 0x20
	vkLeft   VKey = 0x25
	vkUp     VKey = 0x26
	vkRight  VKey = 0x27
	vkDown   VKey = 0x28
	vkInsert VKey = 0x2D
	vkDelete VKey = 0x2E
	vkF1     VKey = 0x70
	vkOem3   VKey = 0xC0
)

// Chord is a parsed hotkey. The zero value is not a valid chord.
type Chord struct {
	mods Modifier
	key  VKey
	text string
}

// Modifiers returns the modifier mask.
func (c Chord) Modifiers() Modifier { return c.mods }

// Key returns the virtual-key code.
func (c Chord) Key() VKey { return c.key }

// String returns the normalized chord, e.g. "Ctrl+Shift+F9".
func (c Chord) String() string { return c.text }

// modifierOrder fixes the normalized spelling order.
var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModControl, "Ctrl"},
	{ModAlt, "Alt"},
	{ModShift, "Shift"},
	{ModWin, "Win"},
}

var modifierAliases = map[string]Modifier{
	"CTRL":    ModControl,
	"CONTROL": ModControl,
	"ALT":     ModAlt,
	"OPTION":  ModAlt,
	"SHIFT":   ModShift,
	"WIN":     ModWin,
	"SUPER":   ModWin,
	"META":    ModWin,
}

var namedKeys = map[string]struct {
	key  VKey
	name string
}{
	"SPACE":     {vkSpace, "Space"},
	"TAB":       {vkTab, "Tab"},
	"ENTER":     {vkReturn, "Enter"},
	"RETURN":    {vkReturn, "Enter"},
	"ESC":       {vkEscape, "Esc"},
	"ESCAPE":    {vkEscape, "Esc"},
	"DELETE":    {vkDelete, "Delete"},
	"DEL":       {vkDelete, "Delete"},
	"INSERT":    {vkInsert, "Insert"},
	"PAUSE":     {vkPause, "Pause"},
	"LEFT":      {vkLeft, "Left"},
	"RIGHT":     {vkRight, "Right"},
	"UP":        {vkUp, "Up"},
	"DOWN":      {vkDown, "Down"},
	"`":         {vkOem3, "`"},
	"BACKQUOTE": {vkOem3, "`"},
	"GRAVE":     {vkOem3, "`"},
}

// Parse parses a chord such as "Ctrl+Shift+F9". At least one modifier is
// required so that a bare key is never swallowed system-wide.
func Parse(spec string) (Chord, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Chord{}, fmt.Errorf("hotkey is empty")
	}
	parts := strings.Split(raw, "+")
	// "Ctrl++" would split into an empty key token.
	if len(parts) < 2 {
		return Chord{}, fmt.Errorf("hotkey %q needs at least one modifier and a key", raw)
	}

	var mods Modifier
	for _, token := range parts[:len(parts)-1] {
		mod, ok := modifierAliases[strings.ToUpper(strings.TrimSpace(token))]
		if !ok {
			return Chord{}, fmt.Errorf("hotkey %q: unknown modifier %q", raw, strings.TrimSpace(token))
		}
		mods |= mod
	}

	key, keyName, err := parseKey(parts[len(parts)-1])
	if err != nil {
		return Chord{}, fmt.Errorf("hotkey %q: %w", raw, err)
	}

	names := make([]string, 0, len(modifierOrder)+1)
	for _, m := range modifierOrder {
		if mods&m.mod != 0 {
			names = append(names, m.name)
		}
	}
	names = append(names, keyName)
	return Chord{mods: mods, key: key, text: strings.Join(names, "+")}, nil
}

func parseKey(raw string) (VKey, string, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if token == "" {
		return 0, "", fmt.Errorf("missing key")
	}
	if named, ok := namedKeys[token]; ok {
		return named.key, named.name, nil
	}
	if len(token) == 1 {
		ch := token[0]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			return VKey(ch), token, nil
		}
	}
	if n, ok := strings.CutPrefix(token, "F"); ok {
		if i, err := strconv.Atoi(n); err == nil && i >= 1 && i <= 24 {
			return vkF1 + VKey(i-1), token, nil
		}
	}
	if hex, ok := strings.CutPrefix(token, "0X"); ok {
		v, err := strconv.ParseUint(hex, 16, 8)
		if err != nil || v == 0 {
			return 0, "", fmt.Errorf("invalid key code %q", raw)
		}
		return VKey(v), fmt.Sprintf("0x%02X", v), nil
	}
	return 0, "", fmt.Errorf("unknown key %q", strings.TrimSpace(raw))
}
