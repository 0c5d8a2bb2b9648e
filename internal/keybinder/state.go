package keybinder

import (
	"time"

	"gesturekeys/internal/binding"
)

// stateTable holds the "currently triggered" flag of every state key in the
// active snapshot plus the synthetic hold-mode selector.
type stateTable struct {
	flags map[string]bool
}

func newStateTable(snap binding.Snapshot) *stateTable {
	keys := snap.StateKeys()
	t := &stateTable{flags: make(map[string]bool, len(keys)+1)}
	for _, k := range keys {
		t.flags[k] = false
	}
	t.flags[binding.HoldingKey] = false
	return t
}

func (t *stateTable) get(key string) bool { return t.flags[key] }

func (t *stateTable) set(key string, on bool) { t.flags[key] = on }

func (t *stateTable) holdMode() bool { return t.flags[binding.HoldingKey] }

// triggered counts binding keys whose flag is set; the selector is excluded.
func (t *stateTable) triggered() int {
	n := 0
	for k, on := range t.flags {
		if on && k != binding.HoldingKey {
			n++
		}
	}
	return n
}

// holdTimer tracks the single-mode press that may be upgraded into a
// continuous button-down. A nil start means unset.
type holdTimer struct {
	start   *time.Time
	engaged bool
	button  string
}

func (h *holdTimer) begin(now time.Time) {
	h.start = &now
}

// elapsed returns the time since begin; ok is false while unset.
func (h *holdTimer) elapsed(now time.Time) (time.Duration, bool) {
	if h.start == nil {
		return 0, false
	}
	return now.Sub(*h.start), true
}

func (h *holdTimer) engage(button string) {
	h.engaged = true
	h.button = button
}

func (h *holdTimer) clear() {
	*h = holdTimer{}
}
