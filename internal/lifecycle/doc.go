// Package lifecycle sequences host lifecycle phases into collaborator side
// effects and engine notifications.
//
// Each phase maps to an ordered list of side effects followed by exactly one
// engine notification:
//
//	Created:   acquire audio, acquire input, build sound, register update receiver, notify
//	Started:   register device listener, start sound, notify
//	Resumed:   notify
//	Paused:    notify
//	Stopped:   unregister device listener, flush buffered state, stop sound, notify
//	Destroyed: unregister update receiver, host teardown, notify
//
// The order matters: the device listener must be registered before events are
// classified, and buffered state must be flushed before the sound subsystem and
// engine are told to stop.
//
// Transitions are validated against the host's phase graph. A rejected
// transition runs no side effects and sends no notification. Once Destroyed
// has been notified the sequencer rejects every further phase.
//
// Device hot-plug arrives on a separate channel: added and changed are ignored
// (capabilities are looked up lazily per event); removed is forwarded to the
// engine as a controller disconnect.
package lifecycle
