package lifecycle

import (
	"fmt"
	"strings"
)

// Phase is a host lifecycle phase.
type Phase int

const (
	// Initial is the phase before the host has created the session.
	Initial Phase = iota
	Created
	Started
	Resumed
	Paused
	Stopped
	Destroyed
)

var phaseNames = [...]string{
	Initial:   "initial",
	Created:   "created",
	Started:   "started",
	Resumed:   "resumed",
	Paused:    "paused",
	Stopped:   "stopped",
	Destroyed: "destroyed",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhase accepts a phase name ("resumed") or its host verb ("resume").
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created", "create":
		return Created, nil
	case "started", "start":
		return Started, nil
	case "resumed", "resume":
		return Resumed, nil
	case "paused", "pause":
		return Paused, nil
	case "stopped", "stop":
		return Stopped, nil
	case "destroyed", "destroy":
		return Destroyed, nil
	default:
		return Initial, fmt.Errorf("unknown lifecycle phase %q", s)
	}
}

// predecessors lists the phases each phase may follow.
// Stopped -> Started is the host's restart path.
var predecessors = map[Phase][]Phase{
	Created:   {Initial},
	Started:   {Created, Stopped},
	Resumed:   {Started, Paused},
	Paused:    {Resumed},
	Stopped:   {Started, Paused},
	Destroyed: {Created, Stopped},
}

// CanTransition reports whether the host may move from one phase to another.
func CanTransition(from, to Phase) bool {
	for _, p := range predecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}
