package lifecycle

import (
	"github.com/roach88/voltbridge/internal/dispatch"
	"github.com/roach88/voltbridge/internal/input"
)

// Notifier is the engine side of the lifecycle.
type Notifier interface {
	PhaseChanged(p Phase)
	ControllerDisconnected(deviceID int)
}

// DeviceListener receives device hot-plug notifications.
type DeviceListener interface {
	DeviceAdded(deviceID int)
	DeviceChanged(deviceID int)
	DeviceRemoved(deviceID int)
}

// InputService is the host's input manager.
type InputService interface {
	input.DeviceRegistry
	RegisterDeviceListener(l DeviceListener)
	UnregisterDeviceListener(l DeviceListener)
}

// Services hands out host system service handles.
type Services interface {
	AudioService() dispatch.AudioService
	InputService() InputService
}

// SoundManager plays background music without gaps.
type SoundManager interface {
	Start()
	Stop()
}

// Broadcasts registers receivers for host broadcast actions.
type Broadcasts interface {
	RegisterReceiver(action string, r *UpdateReceiver) error
	UnregisterReceiver(r *UpdateReceiver)
}

// Collaborators are the side-effect targets of the phase table.
//
// A missing Services, NewSound or Broadcasts makes the matching side effect
// fail and be logged. The remaining fields are optional and skipped when nil.
type Collaborators struct {
	Services   Services
	NewSound   func() SoundManager
	Broadcasts Broadcasts

	// UpdateAction is the broadcast action the update receiver listens for.
	UpdateAction string

	// OnUpdate receives the payload of each update broadcast.
	OnUpdate func(u Update)

	// OnAudio receives the audio handle as soon as it is acquired.
	OnAudio func(a dispatch.AudioService)

	// Listener is registered with the input service. Defaults to the
	// sequencer itself.
	Listener DeviceListener

	// Flush persists buffered state when the session stops.
	Flush func() error

	// Teardown is the host's own destroy handling.
	Teardown func()
}
