package harness

import (
	"sync"

	"github.com/roach88/voltbridge/internal/cloud"
	"github.com/roach88/voltbridge/internal/dispatch"
	"github.com/roach88/voltbridge/internal/input"
	"github.com/roach88/voltbridge/internal/lifecycle"
)

// recorder collects the trace. Engine calls arrive on the delivery loop and
// host calls may arrive from the scenario goroutine, so it is locked.
type recorder struct {
	mu     sync.Mutex
	seq    int64
	events []TraceEvent
}

func (r *recorder) record(call string, args map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.events = append(r.events, TraceEvent{Seq: r.seq, Call: call, Args: args})
}

func (r *recorder) snapshot() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// recordingEngine answers dispatch calls from its consume set and conflict
// calls with a fixed resolution.
type recordingEngine struct {
	rec     *recorder
	consume map[string]bool
	resolve string
}

func newRecordingEngine(rec *recorder, setup EngineSetup) *recordingEngine {
	consume := make(map[string]bool, len(setup.Consume))
	for _, h := range setup.Consume {
		consume[h] = true
	}
	return &recordingEngine{rec: rec, consume: consume, resolve: setup.Resolve}
}

func (e *recordingEngine) handle(name string, ev *input.Event) bool {
	consumed := e.consume[name]
	args := map[string]any{
		"device":   ev.DeviceID,
		"action":   ev.Action.String(),
		"consumed": consumed,
	}
	if ev.IsKey() {
		args["key_code"] = ev.KeyCode
	}
	e.rec.record("engine."+name, args)
	return consumed
}

func (e *recordingEngine) GamepadMotion(ev *input.Event) bool {
	return e.handle("gamepad_motion", ev)
}

func (e *recordingEngine) TouchNavigationMotion(ev *input.Event) bool {
	return e.handle("touch_navigation_motion", ev)
}

func (e *recordingEngine) GamepadKey(ev *input.Event) bool {
	return e.handle("gamepad_key", ev)
}

func (e *recordingEngine) TouchNavigationKey(ev *input.Event) bool {
	return e.handle("touch_navigation_key", ev)
}

func (e *recordingEngine) KeyboardKey(ev *input.Event) bool {
	return e.handle("keyboard_key", ev)
}

func (e *recordingEngine) PhaseChanged(p lifecycle.Phase) {
	e.rec.record("engine.phase_changed", map[string]any{"phase": p.String()})
}

func (e *recordingEngine) ControllerDisconnected(deviceID int) {
	e.rec.record("engine.controller_disconnected", map[string]any{"device": deviceID})
}

func (e *recordingEngine) CloudDataLoaded(code int, status cloud.Status, data *string) {
	args := map[string]any{"code": code, "status": status.String()}
	if data != nil {
		args["data"] = *data
	}
	e.rec.record("engine.cloud_data_loaded", args)
}

// CloudDataConflict keeps the remote side unless a resolution is configured.
func (e *recordingEngine) CloudDataConflict(local, remote string) string {
	resolved := remote
	if e.resolve != "" {
		resolved = e.resolve
	}
	e.rec.record("engine.cloud_data_conflict", map[string]any{
		"local":    local,
		"remote":   remote,
		"resolved": resolved,
	})
	return resolved
}

func (e *recordingEngine) ExternalUpdate(u lifecycle.Update) {
	e.rec.record("engine.external_update", map[string]any{
		"available_letters": u.AvailableLetters,
		"available_numbers": u.AvailableNumbers,
	})
}

func (e *recordingEngine) SignedIntoCloudChanged(signedIn bool) {
	e.rec.record("engine.signed_into_cloud_changed", map[string]any{"signed_in": signedIn})
}

// recordingHost holds the fake host collaborators.
type recordingHost struct {
	rec        *recorder
	audio      *recordingAudio
	input      *recordingInput
	broadcasts *recordingBroadcasts
	fallback   *recordingFallback
}

func newRecordingHost(rec *recorder, s *Scenario) (*recordingHost, error) {
	reg := input.NewStaticRegistry()
	for _, d := range s.Devices {
		mask, err := input.ParseSources(d.Sources)
		if err != nil {
			return nil, err
		}
		reg.Attach(d.ID, mask)
	}
	return &recordingHost{
		rec:        rec,
		audio:      &recordingAudio{rec: rec},
		input:      &recordingInput{rec: rec, reg: reg},
		broadcasts: &recordingBroadcasts{rec: rec},
		fallback:   &recordingFallback{rec: rec, consumes: s.Host.FallbackConsumes},
	}, nil
}

func (h *recordingHost) AudioService() dispatch.AudioService {
	h.rec.record("services.audio_service", nil)
	return h.audio
}

func (h *recordingHost) InputService() lifecycle.InputService {
	h.rec.record("services.input_service", nil)
	return h.input
}

func (h *recordingHost) newSound() lifecycle.SoundManager {
	h.rec.record("sound.create", nil)
	return recordingSound{rec: h.rec}
}

func (h *recordingHost) teardown() {
	h.rec.record("host.teardown", nil)
}

type recordingAudio struct {
	rec *recorder
}

func (a *recordingAudio) AdjustStreamVolume(stream int, dir dispatch.Direction, flags int) {
	a.rec.record("audio.adjust_stream_volume", map[string]any{
		"stream":    stream,
		"direction": dir.String(),
		"flags":     flags,
	})
}

// recordingInput is the host input manager. The scenario goroutine plugs
// devices while the loop looks them up.
type recordingInput struct {
	rec      *recorder
	mu       sync.Mutex
	reg      *input.StaticRegistry
	listener lifecycle.DeviceListener
}

func (in *recordingInput) DeviceIDs() []int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.reg.DeviceIDs()
}

func (in *recordingInput) Sources(deviceID int) (input.Source, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.reg.Sources(deviceID)
}

func (in *recordingInput) RegisterDeviceListener(l lifecycle.DeviceListener) {
	in.rec.record("input.register_device_listener", nil)
	in.mu.Lock()
	in.listener = l
	in.mu.Unlock()
}

func (in *recordingInput) UnregisterDeviceListener(l lifecycle.DeviceListener) {
	in.rec.record("input.unregister_device_listener", nil)
	in.mu.Lock()
	if in.listener == l {
		in.listener = nil
	}
	in.mu.Unlock()
}

func (in *recordingInput) attach(deviceID int, mask input.Source) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.reg.Attach(deviceID, mask)
}

func (in *recordingInput) detach(deviceID int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.reg.Detach(deviceID)
}

func (in *recordingInput) currentListener() lifecycle.DeviceListener {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.listener
}

type recordingSound struct {
	rec *recorder
}

func (s recordingSound) Start() { s.rec.record("sound.start", nil) }
func (s recordingSound) Stop()  { s.rec.record("sound.stop", nil) }

type recordingBroadcasts struct {
	rec      *recorder
	mu       sync.Mutex
	receiver *lifecycle.UpdateReceiver
}

func (b *recordingBroadcasts) RegisterReceiver(action string, r *lifecycle.UpdateReceiver) error {
	b.rec.record("broadcasts.register_receiver", map[string]any{"action": action})
	b.mu.Lock()
	b.receiver = r
	b.mu.Unlock()
	return nil
}

func (b *recordingBroadcasts) UnregisterReceiver(r *lifecycle.UpdateReceiver) {
	b.rec.record("broadcasts.unregister_receiver", nil)
	b.mu.Lock()
	if b.receiver == r {
		b.receiver = nil
	}
	b.mu.Unlock()
}

func (b *recordingBroadcasts) current() *lifecycle.UpdateReceiver {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receiver
}

type recordingFallback struct {
	rec      *recorder
	consumes bool
}

func (f *recordingFallback) DispatchMotion(ev *input.Event) bool {
	f.rec.record("host.dispatch_motion", map[string]any{"device": ev.DeviceID, "handled": f.consumes})
	return f.consumes
}

func (f *recordingFallback) DispatchKey(ev *input.Event) bool {
	f.rec.record("host.dispatch_key", map[string]any{"device": ev.DeviceID, "handled": f.consumes})
	return f.consumes
}
