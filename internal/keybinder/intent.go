package keybinder

import "fmt"

// IntentKind is the injection call an Intent asks for.
type IntentKind int

const (
	IntentKeyDown IntentKind = iota + 1
	IntentKeyUp
	IntentMouseDown
	IntentMouseUp
	IntentClick
	IntentMove
)

func (k IntentKind) String() string {
	switch k {
	case IntentKeyDown:
		return "keyDown"
	case IntentKeyUp:
		return "keyUp"
	case IntentMouseDown:
		return "mouseDown"
	case IntentMouseUp:
		return "mouseUp"
	case IntentClick:
		return "click"
	case IntentMove:
		return "move"
	default:
		return fmt.Sprintf("IntentKind(%d)", int(k))
	}
}

// Intent is a decided, not yet executed, injection call.
type Intent struct {
	Kind   IntentKind
	Target string // key or button name; empty for moves
	X      int
	Y      int
	// Channel is the activation channel that caused the intent. It is empty
	// for releases issued by rebinding or Destroy.
	Channel string
}

func (i Intent) String() string {
	if i.Kind == IntentMove {
		return fmt.Sprintf("move(%d,%d)", i.X, i.Y)
	}
	return i.Kind.String() + "(" + i.Target + ")"
}

// Observer is notified of every executed intent and every Active Flag change.
// Callbacks run on the dispatch goroutine and must not block.
type Observer interface {
	OnIntent(intent Intent, err error)
	OnActiveChanged(active bool)
}
