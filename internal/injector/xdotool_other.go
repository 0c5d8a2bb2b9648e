//go:build !windows

package injector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const xdotoolTimeout = 2 * time.Second

// xdotool keysym names for the spellings that differ from ours.
var xdotoolKeyNames = map[string]string{
	"enter":     "Return",
	"return":    "Return",
	"esc":       "Escape",
	"escape":    "Escape",
	"space":     "space",
	"tab":       "Tab",
	"backspace": "BackSpace",
	"delete":    "Delete",
	"del":       "Delete",
	"insert":    "Insert",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Prior",
	"pgup":      "Prior",
	"pagedown":  "Next",
	"pgdn":      "Next",
	"left":      "Left",
	"right":     "Right",
	"up":        "Up",
	"down":      "Down",
	"shift":     "shift",
	"ctrl":      "ctrl",
	"control":   "ctrl",
	"alt":       "alt",
	"win":       "super",
	"capslock":  "Caps_Lock",
	"pause":     "Pause",
}

// XdotoolBackend injects input by shelling out to xdotool.
type XdotoolBackend struct {
	// run is a test seam executing xdotool with args and returning stdout.
	run func(ctx context.Context, args ...string) ([]byte, error)
}

// NewSystem returns the platform injection backend.
func NewSystem() (Injector, error) {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return nil, fmt.Errorf("xdotool not found in PATH: %w", err)
	}
	return &XdotoolBackend{run: runXdotool}, nil
}

func runXdotool(ctx context.Context, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "xdotool", args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("xdotool %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (b *XdotoolBackend) exec(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), xdotoolTimeout)
	defer cancel()
	return b.run(ctx, args...)
}

func xdotoolKey(name string) (string, error) {
	key := NormalizeKey(name)
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	if mapped, ok := xdotoolKeyNames[key]; ok {
		return mapped, nil
	}
	if len(key) >= 2 && key[0] == 'f' {
		if n, err := strconv.Atoi(key[1:]); err == nil && n >= 1 && n <= 24 {
			return "F" + key[1:], nil
		}
	}
	return key, nil
}

func xdotoolButton(name string) (string, error) {
	btn, err := ParseButton(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	switch btn {
	case ButtonMiddle:
		return "2", nil
	case ButtonRight:
		return "3", nil
	default:
		return "1", nil
	}
}

// KeyDown implements Injector.
func (b *XdotoolBackend) KeyDown(key string) error {
	k, err := xdotoolKey(key)
	if err != nil {
		return err
	}
	_, err = b.exec("keydown", k)
	return err
}

// KeyUp implements Injector.
func (b *XdotoolBackend) KeyUp(key string) error {
	k, err := xdotoolKey(key)
	if err != nil {
		return err
	}
	_, err = b.exec("keyup", k)
	return err
}

// MouseDown implements Injector.
func (b *XdotoolBackend) MouseDown(button string) error {
	n, err := xdotoolButton(button)
	if err != nil {
		return err
	}
	_, err = b.exec("mousedown", n)
	return err
}

// MouseUp implements Injector.
func (b *XdotoolBackend) MouseUp(button string) error {
	n, err := xdotoolButton(button)
	if err != nil {
		return err
	}
	_, err = b.exec("mouseup", n)
	return err
}

// Click implements Injector.
func (b *XdotoolBackend) Click(button string) error {
	n, err := xdotoolButton(button)
	if err != nil {
		return err
	}
	_, err = b.exec("click", n)
	return err
}

// MoveTo implements Injector.
func (b *XdotoolBackend) MoveTo(x, y int) error {
	_, err := b.exec("mousemove", "--", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// CursorPosition implements Injector.
func (b *XdotoolBackend) CursorPosition() (int, int, error) {
	out, err := b.exec("getmouselocation", "--shell")
	if err != nil {
		return 0, 0, err
	}
	return parseMouseLocation(out)
}

// ScreenSize implements Injector.
func (b *XdotoolBackend) ScreenSize() (int, int, error) {
	out, err := b.exec("getdisplaygeometry")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected getdisplaygeometry output %q", strings.TrimSpace(string(out)))
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse width: %w", err)
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse height: %w", err)
	}
	return w, h, nil
}

// parseMouseLocation reads the X= and Y= lines of `getmouselocation --shell`.
func parseMouseLocation(out []byte) (int, int, error) {
	var x, y int
	var haveX, haveY bool
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		name, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch name {
		case "X":
			x, haveX = n, true
		case "Y":
			y, haveY = n, true
		}
	}
	if !haveX || !haveY {
		return 0, 0, fmt.Errorf("unexpected getmouselocation output %q", strings.TrimSpace(string(out)))
	}
	return x, y, nil
}
