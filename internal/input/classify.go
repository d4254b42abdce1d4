package input

import "fmt"

// Category is the logical device category an event belongs to.
type Category int

const (
	Unclassified Category = iota
	Gamepad
	TouchNavigation
	Keyboard
)

func (c Category) String() string {
	switch c {
	case Unclassified:
		return "unclassified"
	case Gamepad:
		return "gamepad"
	case TouchNavigation:
		return "touch_navigation"
	case Keyboard:
		return "keyboard"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Classify assigns e to exactly one category.
//
// The tests run in dispatch priority order (gamepad, touch navigation,
// keyboard), so an event matching more than one test lands in the first.
func Classify(e *Event) Category {
	if e == nil {
		return Unclassified
	}
	switch {
	case IsGamepad(e):
		return Gamepad
	case IsTouchNavigation(e):
		return TouchNavigation
	case IsKeyboard(e):
		return Keyboard
	default:
		return Unclassified
	}
}

// IsGamepad reports whether e comes from a joystick or gamepad.
// Motion events additionally require the Move action; other actions on
// those sources (button-as-motion channels) are left unclassified.
func IsGamepad(e *Event) bool {
	fromPad := e.Capabilities.Has(SourceJoystick) || e.Capabilities.Has(SourceGamepad)
	switch e.Kind {
	case KindKey:
		return fromPad
	case KindMotion:
		return fromPad && e.Action == ActionMove
	default:
		return false
	}
}

// IsTouchNavigation reports whether e carries both the touch-navigation and
// keyboard sources.
func IsTouchNavigation(e *Event) bool {
	return e.Capabilities.Has(SourceTouchNavigation) && e.Capabilities.Has(SourceKeyboard)
}

// IsKeyboard reports whether e is a key event from a keyboard source.
// Callers must test IsTouchNavigation first.
func IsKeyboard(e *Event) bool {
	return e.Kind == KindKey && e.Capabilities.Has(SourceKeyboard)
}
