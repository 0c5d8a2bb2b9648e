package injector

import (
	"fmt"
	"log/slog"
	"sync"
)

// Call is one recorded injector invocation.
type Call struct {
	Op     string
	Target string
	X      int
	Y      int
}

func (c Call) String() string {
	if c.Op == "move" {
		return fmt.Sprintf("move(%d,%d)", c.X, c.Y)
	}
	return c.Op + "(" + c.Target + ")"
}

// Recorder is an Injector that records every call in memory and keeps a
// virtual cursor. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	cursorX int
	cursorY int
	screenW int
	screenH int
	verbose bool
}

// NewRecorder creates a Recorder with the given virtual screen size.
func NewRecorder(screenW, screenH int) *Recorder {
	return &Recorder{screenW: screenW, screenH: screenH}
}

// SetVerbose makes the recorder log every call at info level (dry-run mode).
func (r *Recorder) SetVerbose(v bool) {
	r.mu.Lock()
	r.verbose = v
	r.mu.Unlock()
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	verbose := r.verbose
	r.mu.Unlock()
	if verbose {
		slog.Info("[DRY-RUN] injector call", "call", c.String())
	}
}

// KeyDown implements Injector.
func (r *Recorder) KeyDown(key string) error {
	r.record(Call{Op: "keyDown", Target: key})
	return nil
}

// KeyUp implements Injector.
func (r *Recorder) KeyUp(key string) error {
	r.record(Call{Op: "keyUp", Target: key})
	return nil
}

// MouseDown implements Injector.
func (r *Recorder) MouseDown(button string) error {
	r.record(Call{Op: "mouseDown", Target: button})
	return nil
}

// MouseUp implements Injector.
func (r *Recorder) MouseUp(button string) error {
	r.record(Call{Op: "mouseUp", Target: button})
	return nil
}

// Click implements Injector.
func (r *Recorder) Click(button string) error {
	r.record(Call{Op: "click", Target: button})
	return nil
}

// MoveTo implements Injector.
func (r *Recorder) MoveTo(x, y int) error {
	r.mu.Lock()
	r.cursorX, r.cursorY = x, y
	r.mu.Unlock()
	r.record(Call{Op: "move", X: x, Y: y})
	return nil
}

// CursorPosition implements Injector. Queries are not recorded.
func (r *Recorder) CursorPosition() (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursorX, r.cursorY, nil
}

// ScreenSize implements Injector.
func (r *Recorder) ScreenSize() (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screenW, r.screenH, nil
}

// SetCursor places the virtual cursor without recording a move.
func (r *Recorder) SetCursor(x, y int) {
	r.mu.Lock()
	r.cursorX, r.cursorY = x, y
	r.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset clears the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
