package input

import (
	"fmt"
	"sort"
	"strings"
)

// Source is a capability bitmask reported by an input device.
//
// Values follow the host platform's source constants: each source combines a
// class bit (button, pointer, position, joystick) with a device-type bit.
// A query matches only when every bit of the query is present.
type Source uint32

const (
	classButton   Source = 0x00000001
	classPointer  Source = 0x00000002
	classPosition Source = 0x00000008
	classJoystick Source = 0x00000010

	SourceKeyboard        Source = 0x00000100 | classButton
	SourceDPad            Source = 0x00000200 | classButton
	SourceGamepad         Source = 0x00000400 | classButton
	SourceTouchscreen     Source = 0x00001000 | classPointer
	SourceMouse           Source = 0x00002000 | classPointer
	SourceTouchpad        Source = 0x00100000 | classPosition
	SourceTouchNavigation Source = 0x00200000
	SourceJoystick        Source = 0x01000000 | classJoystick
)

var sourceNames = map[string]Source{
	"keyboard":         SourceKeyboard,
	"dpad":             SourceDPad,
	"gamepad":          SourceGamepad,
	"touchscreen":      SourceTouchscreen,
	"mouse":            SourceMouse,
	"touchpad":         SourceTouchpad,
	"touch_navigation": SourceTouchNavigation,
	"joystick":         SourceJoystick,
}

// Has reports whether every bit of q is set in s.
func (s Source) Has(q Source) bool {
	return s&q == q
}

// String lists the named sources fully contained in s.
func (s Source) String() string {
	if s == 0 {
		return "none"
	}
	var names []string
	for name, src := range sourceNames {
		if s.Has(src) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("0x%08x", uint32(s))
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// ParseSources combines named sources into a bitmask.
// Names are case-insensitive; "-" and "_" are interchangeable.
func ParseSources(names []string) (Source, error) {
	var mask Source
	for _, n := range names {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(n)), "-", "_")
		src, ok := sourceNames[key]
		if !ok {
			return 0, fmt.Errorf("unknown input source %q", n)
		}
		mask |= src
	}
	return mask, nil
}

// Capabilities is an optional source bitmask.
//
// The zero value is absent: the device could not be found or reported no
// sources. Every category test on an absent value is false.
type Capabilities struct {
	mask  Source
	known bool
}

// Known wraps a device's reported bitmask.
func Known(mask Source) Capabilities {
	return Capabilities{mask: mask, known: true}
}

// Absent returns capabilities for a device the host does not know.
func Absent() Capabilities {
	return Capabilities{}
}

// Mask returns the bitmask and whether it is present.
func (c Capabilities) Mask() (Source, bool) {
	return c.mask, c.known
}

// Has reports whether the capabilities are present and contain q.
func (c Capabilities) Has(q Source) bool {
	return c.known && c.mask.Has(q)
}

func (c Capabilities) String() string {
	if !c.known {
		return "absent"
	}
	return c.mask.String()
}

// Kind distinguishes key-style from motion-style events.
type Kind int

const (
	KindKey Kind = iota + 1
	KindMotion
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindMotion:
		return "motion"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "key" or "motion".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "key":
		return KindKey, nil
	case "motion":
		return KindMotion, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// Action is the masked action of an event.
type Action int

const (
	ActionDown Action = iota
	ActionUp
	ActionMove
	ActionCancel
	ActionHoverMove
	ActionScroll
	ActionButtonPress
	ActionButtonRelease
)

var actionNames = []string{
	ActionDown:          "down",
	ActionUp:            "up",
	ActionMove:          "move",
	ActionCancel:        "cancel",
	ActionHoverMove:     "hover_move",
	ActionScroll:        "scroll",
	ActionButtonPress:   "button_press",
	ActionButtonRelease: "button_release",
}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction parses an action name such as "down" or "move".
func ParseAction(s string) (Action, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range actionNames {
		if name == key {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Host key codes with dedicated handling.
const (
	KeyCodeVolumeUp   = 24
	KeyCodeVolumeDown = 25
)

// Event is one raw input event as delivered by the host.
//
// Events are owned by the host for the duration of a single dispatch call.
// Nothing in this module keeps a reference once that call returns.
type Event struct {
	Kind         Kind
	DeviceID     int
	Capabilities Capabilities
	Action       Action
	KeyCode      int                // key events only
	Axes         map[string]float64 // motion events only
}

// IsKey reports whether e is a key-style event.
func (e *Event) IsKey() bool { return e.Kind == KindKey }

// IsMotion reports whether e is a motion-style event.
func (e *Event) IsMotion() bool { return e.Kind == KindMotion }
