package lifecycle

import (
	"errors"
	"log/slog"

	"github.com/roach88/voltbridge/internal/dispatch"
)

// effect is one ordered side effect of a phase.
type effect struct {
	name string
	run  func(s *Sequencer) error
}

// phaseEffects is the side-effect table. The engine notification is not
// listed; Advance sends it after the last effect of every phase.
var phaseEffects = map[Phase][]effect{
	Created: {
		{"acquire_audio_service", (*Sequencer).acquireAudio},
		{"acquire_input_service", (*Sequencer).acquireInput},
		{"create_sound_manager", (*Sequencer).createSound},
		{"register_update_receiver", (*Sequencer).registerReceiver},
	},
	Started: {
		{"register_device_listener", (*Sequencer).registerListener},
		{"start_sound_manager", (*Sequencer).startSound},
	},
	Resumed: nil,
	Paused:  nil,
	Stopped: {
		{"unregister_device_listener", (*Sequencer).unregisterListener},
		{"flush_buffered_state", (*Sequencer).flush},
		{"stop_sound_manager", (*Sequencer).stopSound},
	},
	Destroyed: {
		{"unregister_update_receiver", (*Sequencer).unregisterReceiver},
		{"host_teardown", (*Sequencer).teardown},
	},
}

var errMissingService = errors.New("service not acquired")

// Sequencer is the lifecycle state machine.
//
// Thread-safety: not safe for concurrent use. Phases and hot-plug events must
// be delivered from one goroutine.
type Sequencer struct {
	phase    Phase
	c        Collaborators
	notifier Notifier
	logger   *slog.Logger

	audio    dispatch.AudioService
	inputs   InputService
	sound    SoundManager
	receiver *UpdateReceiver
	listener DeviceListener
}

// NewSequencer creates a sequencer in the Initial phase.
func NewSequencer(c Collaborators, n Notifier, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sequencer{c: c, notifier: n, logger: logger}
	s.listener = c.Listener
	if s.listener == nil {
		s.listener = s
	}
	return s
}

// Phase returns the current phase.
func (s *Sequencer) Phase() Phase {
	return s.phase
}

// InputService returns the input service acquired at Created, or nil.
func (s *Sequencer) InputService() InputService {
	return s.inputs
}

// Advance moves to phase p, runs its side effects in order and notifies the
// engine once.
//
// A side effect that fails is logged and the remaining effects still run:
// the host has already committed to the transition. Advance only returns an
// error when the transition itself is rejected, in which case nothing runs.
func (s *Sequencer) Advance(p Phase) error {
	if s.phase == Destroyed {
		return NewDestroyedError(p)
	}
	if !CanTransition(s.phase, p) {
		return NewTransitionError(s.phase, p)
	}

	from := s.phase
	s.phase = p

	for _, eff := range phaseEffects[p] {
		if err := eff.run(s); err != nil {
			s.logger.Warn("lifecycle side effect failed",
				"phase", p.String(),
				"effect", eff.name,
				"error", err,
			)
			continue
		}
		s.logger.Debug("lifecycle side effect", "phase", p.String(), "effect", eff.name)
	}

	s.notifier.PhaseChanged(p)
	s.logger.Info("lifecycle phase", "from", from.String(), "to", p.String())
	return nil
}

// DeviceAdded is ignored; capabilities are looked up per event.
func (s *Sequencer) DeviceAdded(deviceID int) {
	s.logger.Debug("input device added", "device", deviceID)
}

// DeviceChanged is ignored; capabilities are looked up per event.
func (s *Sequencer) DeviceChanged(deviceID int) {
	s.logger.Debug("input device changed", "device", deviceID)
}

// DeviceRemoved tells the engine the controller is gone.
func (s *Sequencer) DeviceRemoved(deviceID int) {
	if s.phase == Destroyed {
		s.logger.Debug("device removal after destroy dropped", "device", deviceID)
		return
	}
	s.notifier.ControllerDisconnected(deviceID)
	s.logger.Info("controller disconnected", "device", deviceID)
}

func (s *Sequencer) acquireAudio() error {
	if s.c.Services == nil {
		return errMissingService
	}
	s.audio = s.c.Services.AudioService()
	if s.audio == nil {
		return errMissingService
	}
	if s.c.OnAudio != nil {
		s.c.OnAudio(s.audio)
	}
	return nil
}

func (s *Sequencer) acquireInput() error {
	if s.c.Services == nil {
		return errMissingService
	}
	s.inputs = s.c.Services.InputService()
	if s.inputs == nil {
		return errMissingService
	}
	return nil
}

func (s *Sequencer) createSound() error {
	if s.c.NewSound == nil {
		return errMissingService
	}
	s.sound = s.c.NewSound()
	return nil
}

func (s *Sequencer) registerReceiver() error {
	action := s.c.UpdateAction
	if action == "" {
		action = DefaultUpdateAction
	}
	if s.c.Broadcasts == nil {
		return errMissingService
	}
	r := NewUpdateReceiver(action, s.c.OnUpdate, s.logger)
	if err := s.c.Broadcasts.RegisterReceiver(action, r); err != nil {
		return err
	}
	s.receiver = r
	return nil
}

func (s *Sequencer) registerListener() error {
	if s.inputs == nil {
		return errMissingService
	}
	s.inputs.RegisterDeviceListener(s.listener)
	return nil
}

func (s *Sequencer) startSound() error {
	if s.sound != nil {
		s.sound.Start()
	}
	return nil
}

func (s *Sequencer) unregisterListener() error {
	if s.inputs == nil {
		return errMissingService
	}
	s.inputs.UnregisterDeviceListener(s.listener)
	return nil
}

func (s *Sequencer) flush() error {
	if s.c.Flush == nil {
		return nil
	}
	return s.c.Flush()
}

func (s *Sequencer) stopSound() error {
	if s.sound != nil {
		s.sound.Stop()
	}
	return nil
}

// unregisterReceiver is safe when the receiver was never registered.
func (s *Sequencer) unregisterReceiver() error {
	if s.receiver == nil {
		return nil
	}
	s.c.Broadcasts.UnregisterReceiver(s.receiver)
	s.receiver = nil
	return nil
}

func (s *Sequencer) teardown() error {
	if s.c.Teardown != nil {
		s.c.Teardown()
	}
	return nil
}
