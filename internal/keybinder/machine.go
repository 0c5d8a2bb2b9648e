package keybinder

import (
	"time"

	"gesturekeys/internal/binding"
)

// edge is the transition of a plain edge trigger.
type edge int

const (
	edgeNone edge = iota
	edgeRise
	edgeFall
)

// evaluateEdge decides the transition for value against threshold given the
// current flag. The crossing point is the same in both directions and a value
// equal to the threshold never changes state.
func evaluateEdge(value, threshold float64, on bool) edge {
	switch {
	case !on && value > threshold:
		return edgeRise
	case on && value < threshold:
		return edgeFall
	default:
		return edgeNone
	}
}

// step is the outcome of evaluating one binding for one frame.
type step struct {
	on      bool
	intents []Intent
}

// keyboardStep maps rising/falling edges to key-down/key-up.
func keyboardStep(channel string, value float64, b binding.Binding, on bool) step {
	switch evaluateEdge(value, b.Threshold, on) {
	case edgeRise:
		return step{on: true, intents: []Intent{{Kind: IntentKeyDown, Target: b.Action, Channel: channel}}}
	case edgeFall:
		return step{on: false, intents: []Intent{{Kind: IntentKeyUp, Target: b.Action, Channel: channel}}}
	}
	return step{on: on}
}

// mouseHoldStep maps rising/falling edges to mouse-down/mouse-up.
func mouseHoldStep(channel string, value float64, b binding.Binding, on bool) step {
	switch evaluateEdge(value, b.Threshold, on) {
	case edgeRise:
		return step{on: true, intents: []Intent{{Kind: IntentMouseDown, Target: b.Action, Channel: channel}}}
	case edgeFall:
		return step{on: false, intents: []Intent{{Kind: IntentMouseUp, Target: b.Action, Channel: channel}}}
	}
	return step{on: on}
}

// mouseSingleStep clicks on the rising edge and upgrades a press held for at
// least holdAfter into a continuous mouse-down. The upgraded press is
// released when the same button's channel falls below its threshold.
func mouseSingleStep(
	channel string,
	value float64,
	b binding.Binding,
	on bool,
	timer *holdTimer,
	now time.Time,
	holdAfter time.Duration,
) step {
	var out step
	switch {
	case value > b.Threshold:
		if !on {
			out.intents = append(out.intents, Intent{Kind: IntentClick, Target: b.Action, Channel: channel})
			timer.begin(now)
		}
		out.on = true
		if !timer.engaged {
			if held, ok := timer.elapsed(now); ok && held >= holdAfter {
				out.intents = append(out.intents, Intent{Kind: IntentMouseDown, Target: b.Action, Channel: channel})
				timer.engage(b.Action)
			}
		}
	case value < b.Threshold && on:
		out.on = false
		if timer.engaged && timer.button == b.Action {
			out.intents = append(out.intents, Intent{Kind: IntentMouseUp, Target: b.Action, Channel: channel})
			timer.clear()
		}
	default:
		out.on = on
	}
	return out
}
