// Package display caches the monitor layout and resolves screen points to
// monitors for cursor reset/cycle actions.
package display

import (
	"fmt"
	"log/slog"
)

// Point is a position in virtual-screen pixel coordinates.
type Point struct {
	X int
	Y int
}

// Bounds is a monitor as reported by a Provider: origin plus size.
type Bounds struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect is an inclusive pixel rectangle in absolute coordinates.
type Rect struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X1 && p.X <= r.X2 && p.Y >= r.Y1 && p.Y <= r.Y2
}

// Monitor is one entry of the topology cache.
type Monitor struct {
	ID     int
	Rect   Rect
	Center Point
}

// Provider enumerates the attached monitors.
type Provider interface {
	Monitors() ([]Bounds, error)
}

// Topology is an immutable monitor list with precomputed centers.
type Topology struct {
	monitors []Monitor
}

// NewTopology converts provider bounds into monitor descriptors. Entries
// with a non-positive size are dropped; IDs stay dense.
func NewTopology(bounds []Bounds) Topology {
	monitors := make([]Monitor, 0, len(bounds))
	for _, b := range bounds {
		if b.Width <= 0 || b.Height <= 0 {
			slog.Debug("[DEBUG-DISPLAY] skipping degenerate monitor bounds", "bounds", fmt.Sprintf("%+v", b))
			continue
		}
		monitors = append(monitors, Monitor{
			ID: len(monitors),
			Rect: Rect{
				X1: b.X,
				Y1: b.Y,
				X2: b.X + b.Width - 1,
				Y2: b.Y + b.Height - 1,
			},
			Center: Point{
				X: b.X + b.Width/2,
				Y: b.Y + b.Height/2,
			},
		})
	}
	return Topology{monitors: monitors}
}

// Load queries p and builds a Topology from its answer.
func Load(p Provider) (Topology, error) {
	bounds, err := p.Monitors()
	if err != nil {
		return Topology{}, fmt.Errorf("enumerate monitors: %w", err)
	}
	return NewTopology(bounds), nil
}

// Count returns the number of monitors.
func (t Topology) Count() int { return len(t.monitors) }

// Monitors returns a copy of the monitor list.
func (t Topology) Monitors() []Monitor {
	out := make([]Monitor, len(t.monitors))
	copy(out, t.monitors)
	return out
}

// Monitor returns the descriptor for id.
func (t Topology) Monitor(id int) (Monitor, bool) {
	if id < 0 || id >= len(t.monitors) {
		return Monitor{}, false
	}
	return t.monitors[id], true
}

// Locate returns the first monitor containing p. ok is false when p is
// outside every monitor; callers choose their own fallback.
func (t Topology) Locate(p Point) (Monitor, bool) {
	for _, m := range t.monitors {
		if m.Rect.Contains(p) {
			return m, true
		}
	}
	return Monitor{}, false
}

// Next returns the id following id, wrapping at the monitor count.
// With no monitors it returns 0.
func (t Topology) Next(id int) int {
	n := len(t.monitors)
	if n == 0 {
		return 0
	}
	next := (id + 1) % n
	if next < 0 {
		next += n
	}
	return next
}

// Static is a Provider that always returns the same layout.
type Static []Bounds

// Monitors implements Provider.
func (s Static) Monitors() ([]Bounds, error) {
	out := make([]Bounds, len(s))
	copy(out, s)
	return out, nil
}
