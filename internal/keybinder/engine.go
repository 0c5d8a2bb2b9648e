// Package keybinder converts activation vectors into debounced input events.
//
// The Engine owns the state table, hold timer and Active Flag. It is not
// safe for concurrent use: every method must be called from the same
// goroutine, normally the application's dispatch worker.
package keybinder

import (
	"log/slog"
	"sort"
	"time"

	"gesturekeys/internal/binding"
	"gesturekeys/internal/display"
	"gesturekeys/internal/injector"
)

// Settings is the configuration the Engine reads at the start of every pass.
type Settings struct {
	Bindings        binding.Snapshot
	HoldThreshold   time.Duration
	DefaultActive   bool
	ReleaseOnRebind bool
}

// SettingsSource supplies the current settings. Implementations must return
// an immutable value.
type SettingsSource interface {
	Settings() Settings
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func() Settings

// Settings implements SettingsSource.
func (f SettingsFunc) Settings() Settings { return f() }

// Vocabulary reads a channel's value out of an activation vector.
type Vocabulary interface {
	Value(vector []float64, channel string) (float64, bool)
}

// Options wires an Engine to its collaborators. Source, Vocabulary and
// Injector are required.
type Options struct {
	Source     SettingsSource
	Vocabulary Vocabulary
	Injector   injector.Injector
	Displays   display.Provider
	Observer   Observer
	// Clock defaults to time.Now.
	Clock     func() time.Time
	SessionID string
}

// Status is a point-in-time summary of the Engine.
type Status struct {
	SessionID  string    `json:"session_id"`
	Started    bool      `json:"started"`
	Active     bool      `json:"active"`
	HoldMode   bool      `json:"hold_mode"`
	Bindings   int       `json:"bindings"`
	Triggered  int       `json:"triggered"`
	Pressed    []string  `json:"pressed"`
	Monitors   int       `json:"monitors"`
	ScreenW    int       `json:"screen_w"`
	ScreenH    int       `json:"screen_h"`
	Frames     uint64    `json:"frames"`
	LastFrame  time.Time `json:"last_frame"`
	HoldEngage bool      `json:"hold_engaged"`
}

// pressKey identifies an OS-level press the Engine has emitted and not yet
// released.
type pressKey struct {
	device binding.Device
	target string
}

// Engine is the threshold-driven dispatch loop.
type Engine struct {
	opts Options

	started bool
	active  bool

	known   binding.Snapshot
	table   *stateTable
	timer   holdTimer
	pressed map[pressKey]struct{}

	topology display.Topology
	screenW  int
	screenH  int

	frames    uint64
	lastFrame time.Time
}

// New creates an Engine. Call Start before the first Act.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		opts:    opts,
		pressed: map[pressKey]struct{}{},
	}
}

// Start initializes state from the current settings, screen size and
// monitor layout. Calling Start on a started Engine does nothing.
func (e *Engine) Start() {
	if e.started {
		return
	}
	settings := e.opts.Source.Settings()
	e.known = settings.Bindings
	e.table = newStateTable(settings.Bindings)
	e.timer.clear()

	w, h, err := e.opts.Injector.ScreenSize()
	if err != nil {
		slog.Warn("[DEBUG-KEYBIND] screen size query failed", "error", err)
	}
	e.screenW, e.screenH = w, h
	if err := e.RefreshTopology(); err != nil {
		slog.Warn("[DEBUG-KEYBIND] monitor enumeration failed, cursor actions disabled", "error", err)
	}

	e.active = settings.DefaultActive
	e.started = true
	slog.Info("[DEBUG-KEYBIND] started",
		"session", e.opts.SessionID,
		"bindings", settings.Bindings.Len(),
		"monitors", e.topology.Count(),
		"active", e.active,
	)
	e.notifyActive()
}

// RefreshTopology re-reads the monitor layout. On failure the previous
// layout is kept.
func (e *Engine) RefreshTopology() error {
	if e.opts.Displays == nil {
		return nil
	}
	topo, err := display.Load(e.opts.Displays)
	if err != nil {
		return err
	}
	e.topology = topo
	return nil
}

// Act runs one evaluation pass. A nil vector means the upstream pipeline
// produced no reading this frame.
func (e *Engine) Act(vector []float64) {
	if vector == nil {
		return
	}
	if !e.started {
		slog.Debug("[DEBUG-KEYBIND] frame dropped before start")
		return
	}
	e.frames++
	e.lastFrame = e.opts.Clock()

	settings := e.opts.Source.Settings()
	e.reconcile(settings)

	entries := settings.Bindings.Entries()

	// The pause channel is the only one evaluated while inactive.
	for _, entry := range entries {
		b := entry.Binding
		if b.Device != binding.Mouse || b.Action != binding.ActionPause {
			continue
		}
		value, ok := e.opts.Vocabulary.Value(vector, entry.Channel)
		if !ok {
			continue
		}
		e.evaluatePause(value, b)
	}

	if !e.active {
		return
	}

	now := e.opts.Clock()
	for _, entry := range entries {
		b := entry.Binding
		if b.Device == binding.Mouse && b.Action == binding.ActionPause {
			continue
		}
		value, ok := e.opts.Vocabulary.Value(vector, entry.Channel)
		if !ok {
			continue
		}
		e.evaluate(entry.Channel, value, b, settings.HoldThreshold, now)
	}
}

func (e *Engine) evaluate(channel string, value float64, b binding.Binding, holdAfter time.Duration, now time.Time) {
	key := b.StateKey()
	on := e.table.get(key)

	var s step
	switch b.Device {
	case binding.Keyboard:
		s = keyboardStep(channel, value, b, on)
	case binding.Mouse:
		if b.IsSpecial() {
			next := evaluateEdge(value, b.Threshold, on)
			if next == edgeRise {
				e.warpCursor(channel, b.Action == binding.ActionCycle)
				e.table.set(key, true)
			} else if next == edgeFall {
				e.table.set(key, false)
			}
			return
		}
		if e.table.holdMode() {
			s = mouseHoldStep(channel, value, b, on)
		} else {
			s = mouseSingleStep(channel, value, b, on, &e.timer, now, holdAfter)
		}
	default:
		return
	}

	e.table.set(key, s.on)
	for _, intent := range s.intents {
		e.execute(b.Device, intent)
	}
}

func (e *Engine) evaluatePause(value float64, b binding.Binding) {
	key := b.StateKey()
	switch evaluateEdge(value, b.Threshold, e.table.get(key)) {
	case edgeRise:
		e.table.set(key, true)
		e.Toggle()
	case edgeFall:
		e.table.set(key, false)
	}
}

// warpCursor moves the cursor to the center of the monitor under it, or of
// the following monitor when cycle is set.
func (e *Engine) warpCursor(channel string, cycle bool) {
	if e.topology.Count() == 0 {
		slog.Debug("[DEBUG-KEYBIND] cursor action ignored: no monitors known", "channel", channel)
		return
	}
	id := 0
	x, y, err := e.opts.Injector.CursorPosition()
	if err != nil {
		slog.Warn("[DEBUG-KEYBIND] cursor position query failed, using monitor 0", "error", err)
	} else if m, ok := e.topology.Locate(display.Point{X: x, Y: y}); ok {
		id = m.ID
	} else {
		slog.Debug("[DEBUG-KEYBIND] cursor outside known monitors, using monitor 0", "x", x, "y", y)
	}
	if cycle {
		id = e.topology.Next(id)
	}
	target, _ := e.topology.Monitor(id)
	e.execute(binding.Mouse, Intent{Kind: IntentMove, X: target.Center.X, Y: target.Center.Y, Channel: channel})
}

// reconcile resets the state table when the binding snapshot changed.
func (e *Engine) reconcile(settings Settings) {
	if settings.Bindings.Equal(e.known) {
		return
	}
	slog.Info("[DEBUG-KEYBIND] bindings changed, resetting state",
		"previous", e.known.Len(), "current", settings.Bindings.Len())
	if settings.ReleaseOnRebind {
		e.releaseAll()
	} else {
		for _, p := range e.pressedSorted() {
			slog.Warn("[DEBUG-KEYBIND] input left pressed after rebind", "device", p.device, "target", p.target)
		}
		e.pressed = map[pressKey]struct{}{}
	}
	e.table = newStateTable(settings.Bindings)
	e.timer.clear()
	e.known = settings.Bindings
}

// releaseAll emits an up event for every press still outstanding.
func (e *Engine) releaseAll() {
	e.release(binding.Keyboard)
	e.release(binding.Mouse)
	e.pressed = map[pressKey]struct{}{}
}

// release emits an up event for every outstanding press on device.
func (e *Engine) release(device binding.Device) {
	kind := IntentMouseUp
	if device == binding.Keyboard {
		kind = IntentKeyUp
	}
	for _, p := range e.pressedSorted() {
		if p.device != device {
			continue
		}
		e.execute(p.device, Intent{Kind: kind, Target: p.target})
		delete(e.pressed, p)
	}
}

func (e *Engine) pressedSorted() []pressKey {
	out := make([]pressKey, 0, len(e.pressed))
	for p := range e.pressed {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].device != out[j].device {
			return out[i].device < out[j].device
		}
		return out[i].target < out[j].target
	})
	return out
}

// execute performs intent through the injector. Failures are logged and do
// not roll back the state transition that produced the intent.
func (e *Engine) execute(device binding.Device, intent Intent) {
	inj := e.opts.Injector
	var err error
	switch intent.Kind {
	case IntentKeyDown:
		err = inj.KeyDown(intent.Target)
	case IntentKeyUp:
		err = inj.KeyUp(intent.Target)
	case IntentMouseDown:
		err = inj.MouseDown(intent.Target)
	case IntentMouseUp:
		err = inj.MouseUp(intent.Target)
	case IntentClick:
		err = inj.Click(intent.Target)
	case IntentMove:
		err = inj.MoveTo(intent.X, intent.Y)
	}

	p := pressKey{device: device, target: intent.Target}
	switch intent.Kind {
	case IntentKeyDown, IntentMouseDown:
		if err == nil {
			e.pressed[p] = struct{}{}
		}
	case IntentKeyUp, IntentMouseUp:
		delete(e.pressed, p)
	}

	if err != nil {
		slog.Warn("[DEBUG-KEYBIND] injection failed", "intent", intent.String(), "channel", intent.Channel, "error", err)
	} else {
		slog.Debug("[DEBUG-KEYBIND] injected", "intent", intent.String(), "channel", intent.Channel)
	}
	if e.opts.Observer != nil {
		e.opts.Observer.OnIntent(intent, err)
	}
}

// SetActive overrides the Active Flag.
func (e *Engine) SetActive(flag bool) {
	if e.active == flag {
		return
	}
	e.active = flag
	slog.Info("[DEBUG-KEYBIND] active flag changed", "active", flag)
	e.notifyActive()
}

// Toggle flips the Active Flag.
func (e *Engine) Toggle() {
	e.SetActive(!e.active)
}

// Active reports the Active Flag.
func (e *Engine) Active() bool { return e.active }

// SetHoldMode sets the global selector that routes mouse bindings through
// the hold variant. It is cleared whenever the bindings change.
//
// A press started under one variant cannot be finished by the other, so a
// change releases every held mouse button and restarts mouse gestures:
// a channel still above its threshold fires again on the next frame.
func (e *Engine) SetHoldMode(flag bool) {
	if e.table == nil || e.table.holdMode() == flag {
		return
	}
	e.release(binding.Mouse)
	for _, entry := range e.known.Entries() {
		if entry.Binding.Device == binding.Mouse && !entry.Binding.IsSpecial() {
			e.table.set(entry.Binding.StateKey(), false)
		}
	}
	e.timer.clear()
	e.table.set(binding.HoldingKey, flag)
	slog.Info("[DEBUG-KEYBIND] hold mode changed", "holdMode", flag)
}

func (e *Engine) notifyActive() {
	if e.opts.Observer != nil {
		e.opts.Observer.OnActiveChanged(e.active)
	}
}

// Status returns a summary of the Engine state.
func (e *Engine) Status() Status {
	st := Status{
		SessionID:  e.opts.SessionID,
		Started:    e.started,
		Active:     e.active,
		Bindings:   e.known.Len(),
		Monitors:   e.topology.Count(),
		ScreenW:    e.screenW,
		ScreenH:    e.screenH,
		Frames:     e.frames,
		LastFrame:  e.lastFrame,
		HoldEngage: e.timer.engaged,
		Pressed:    []string{},
	}
	if e.table != nil {
		st.HoldMode = e.table.holdMode()
		st.Triggered = e.table.triggered()
	}
	for _, p := range e.pressedSorted() {
		st.Pressed = append(st.Pressed, binding.StateKey(p.device, p.target))
	}
	return st
}

// Destroy releases every outstanding press and stops the Engine. A
// destroyed Engine can be started again.
func (e *Engine) Destroy() {
	if !e.started {
		return
	}
	e.releaseAll()
	e.table = nil
	e.timer.clear()
	e.known = binding.Snapshot{}
	e.started = false
	slog.Info("[DEBUG-KEYBIND] destroyed", "session", e.opts.SessionID, "frames", e.frames)
}
