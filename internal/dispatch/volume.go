package dispatch

import (
	"log/slog"

	"github.com/roach88/voltbridge/internal/input"
)

// Direction is a volume adjustment direction.
type Direction int

const (
	Lower Direction = -1
	Raise Direction = 1
)

func (d Direction) String() string {
	if d == Raise {
		return "raise"
	}
	return "lower"
}

// DefaultMusicStream is the host's music audio stream.
const DefaultMusicStream = 3

// AudioService adjusts system audio volume.
type AudioService interface {
	AdjustStreamVolume(stream int, dir Direction, flags int)
}

// VolumeKeys turns volume key-down events into stream adjustments.
//
// The audio service is acquired when the session is created, so it may be
// attached after the router exists. Until then volume keys are logged and
// dropped.
type VolumeKeys struct {
	Up     int
	Down   int
	Stream int

	audio  AudioService
	logger *slog.Logger
}

// NewVolumeKeys uses the host's standard key codes and the music stream.
func NewVolumeKeys() *VolumeKeys {
	return &VolumeKeys{
		Up:     input.KeyCodeVolumeUp,
		Down:   input.KeyCodeVolumeDown,
		Stream: DefaultMusicStream,
		logger: slog.Default(),
	}
}

// Attach sets the audio service handle.
func (v *VolumeKeys) Attach(a AudioService) {
	v.audio = a
}

// Observe adjusts the volume if e is a volume key-down. It reports whether
// an adjustment was issued.
func (v *VolumeKeys) Observe(e *input.Event) bool {
	if e.Kind != input.KindKey || e.Action != input.ActionDown {
		return false
	}

	var dir Direction
	switch e.KeyCode {
	case v.Up:
		dir = Raise
	case v.Down:
		dir = Lower
	default:
		return false
	}

	if v.audio == nil {
		if v.logger != nil {
			v.logger.Warn("volume key before audio service acquired", "key_code", e.KeyCode)
		}
		return false
	}
	v.audio.AdjustStreamVolume(v.Stream, dir, 0)
	return true
}
