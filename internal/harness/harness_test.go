package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/voltbridge/internal/bridge"
	"github.com/roach88/voltbridge/internal/config"
	"github.com/roach88/voltbridge/internal/journal"
)

func mustParse(t *testing.T, content string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return s
}

func calls(trace []TraceEvent) []string {
	out := make([]string, len(trace))
	for i, e := range trace {
		out[i] = e.Call
	}
	return out
}

func TestRun_BasicSessionGolden(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "basic_session.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "basic_session.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_InvalidTransitionIsAStepResult(t *testing.T) {
	s := mustParse(t, `
name: bad_order
description: "resume before create"
steps:
  - lifecycle: resumed
  - lifecycle: created
  - lifecycle: created
assertions:
  - type: step_result
    step: 0
    expect: { error: INVALID_TRANSITION }
  - type: step_result
    step: 2
    expect: { error: INVALID_TRANSITION }
  - type: trace_count
    call: engine.phase_changed
    count: 1
  - type: journal_entry
    kind: lifecycle
    name: resumed
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Steps[1].Error)
}

func TestRun_NothingAfterDestroyed(t *testing.T) {
	s := mustParse(t, `
name: after_destroy
description: "calls after destroy are rejected"
steps:
  - lifecycle: created
  - lifecycle: destroyed
  - lifecycle: started
  - device: { event: removed, id: 4 }
assertions:
  - type: step_result
    step: 2
    expect: { error: SESSION_DESTROYED }
  - type: step_result
    step: 3
    expect: { delivered: false }
  - type: trace_count
    call: engine.controller_disconnected
    count: 0
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "engine.phase_changed", result.Trace[len(result.Trace)-1].Call)
}

func TestRun_MotionNeedsMove(t *testing.T) {
	s := mustParse(t, `
name: motion_move
description: "gamepad motion is only claimed for move"
devices:
  - id: 1
    sources: [joystick]
engine:
  consume: [gamepad_motion]
host:
  fallback_consumes: true
steps:
  - lifecycle: created
  - motion: { device: 1, axes: { x: 0.5 } }
  - motion: { device: 1, action: down }
assertions:
  - type: trace_count
    call: engine.gamepad_motion
    count: 1
  - type: trace_contains
    call: host.dispatch_motion
    args: { device: 1, handled: true }
  - type: step_result
    step: 1
    expect: { consumed: true }
  - type: step_result
    step: 2
    expect: { consumed: true }
  - type: journal_entry
    kind: motion
    name: dispatch
    detail: { category: unclassified, offered: true, handled: true }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownDeviceFallsThrough(t *testing.T) {
	s := mustParse(t, `
name: unknown_device
description: "an unknown device is unclassified"
engine:
  consume: [gamepad_key, keyboard_key]
steps:
  - key: { device: 42 }
  - lifecycle: created
  - key: { device: 42 }
assertions:
  - type: step_result
    step: 0
    expect: { consumed: false }
  - type: step_result
    step: 2
    expect: { consumed: false }
  - type: trace_count
    call: host.dispatch_key
    count: 2
  - type: journal_entry
    kind: key
    name: dispatch
    detail: { capabilities: absent, category: unclassified }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_TouchNavigationBeatsKeyboard(t *testing.T) {
	s := mustParse(t, `
name: touch_nav
description: "touch navigation with keyboard bit"
engine:
  consume: [touch_navigation_key, keyboard_key]
steps:
  - key: { device: 3, sources: [touch_navigation, keyboard] }
  - key: { device: 3, sources: [keyboard] }
assertions:
  - type: trace_order
    calls: [engine.touch_navigation_key, engine.keyboard_key]
  - type: trace_count
    call: engine.keyboard_key
    count: 1
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_VolumeKeys(t *testing.T) {
	s := mustParse(t, `
name: volume
description: "volume keys adjust the music stream and still dispatch"
devices:
  - id: 2
    sources: [keyboard]
steps:
  - lifecycle: created
  - key: { device: 2, key_code: 24 }
  - key: { device: 2, key_code: 25 }
  - key: { device: 2, key_code: 24, action: up }
assertions:
  - type: trace_order
    calls: [audio.adjust_stream_volume, engine.keyboard_key, audio.adjust_stream_volume, engine.keyboard_key]
  - type: trace_contains
    call: audio.adjust_stream_volume
    args: { stream: 3, direction: lower, flags: 0 }
  - type: trace_count
    call: audio.adjust_stream_volume
    count: 2
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ConfigOverridesVolumeAndAction(t *testing.T) {
	s := mustParse(t, `
name: configured
description: "config changes keys, stream and broadcast action"
devices:
  - id: 2
    sources: [keyboard]
steps:
  - lifecycle: created
  - key: { device: 2, key_code: 100 }
assertions:
  - type: trace_contains
    call: audio.adjust_stream_volume
    args: { stream: 5, direction: raise }
  - type: trace_contains
    call: broadcasts.register_receiver
    args: { action: custom.UPDATED }
`)

	cfg := config.DefaultConfig()
	cfg.Audio.VolumeUpKey = 100
	cfg.Audio.MusicStream = 5
	cfg.Session.UpdateAction = "custom.UPDATED"

	result, err := Run(s, WithConfig(cfg))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_HotPlug(t *testing.T) {
	s := mustParse(t, `
name: hot_plug
description: "only removal reaches the engine, and only while listening"
steps:
  - device: { event: added, id: 9, sources: [gamepad] }
  - lifecycle: created
  - lifecycle: started
  - device: { event: added, id: 9, sources: [gamepad] }
  - device: { event: changed, id: 9 }
  - key: { device: 9 }
  - device: { event: removed, id: 9 }
  - key: { device: 9 }
  - lifecycle: stopped
  - device: { event: removed, id: 9 }
assertions:
  - type: step_result
    step: 0
    expect: { delivered: false }
  - type: step_result
    step: 3
    expect: { delivered: true }
  - type: step_result
    step: 9
    expect: { delivered: false }
  - type: trace_count
    call: engine.controller_disconnected
    count: 1
  - type: trace_order
    calls: [engine.gamepad_key, engine.controller_disconnected, host.dispatch_key]
  - type: journal_entry
    kind: device
    name: removed
    detail: { device_id: 9, forwarded: true }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CloudLoads(t *testing.T) {
	s := mustParse(t, `
name: cloud
description: "status mapping, absent data and decode failures"
steps:
  - cloud_load: { code: 2002 }
  - cloud_load: { code: 77, data: "" }
  - cloud_load: { code: 0, hex: "c328" }
  - cloud_load: { code: 3, data: stale }
assertions:
  - type: trace_contains
    call: engine.cloud_data_loaded
    args: { code: 2002, status: key_not_found }
  - type: trace_contains
    call: engine.cloud_data_loaded
    args: { code: 77, status: unknown_error, data: "" }
  - type: trace_contains
    call: engine.cloud_data_loaded
    args: { code: 0, status: decode_failed }
  - type: trace_contains
    call: engine.cloud_data_loaded
    args: { status: network_error_stale_data, data: stale }
  - type: step_result
    step: 3
    expect: { began: true }
  - type: journal_entry
    kind: cloud
    name: loaded
    detail: { status: decode_failed, has_data: false }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	for _, e := range result.Trace {
		if e.Args["code"] == 2002 || e.Args["status"] == "decode_failed" {
			_, has := e.Args["data"]
			assert.False(t, has, "absent data is never an empty string: %v", e.Args)
		}
	}
}

func TestRun_BufferFlushedOnStop(t *testing.T) {
	s := mustParse(t, `
name: buffer
description: "buffered data persists when the session stops"
steps:
  - lifecycle: created
  - lifecycle: started
  - buffer: "first"
  - buffer: "second"
  - lifecycle: stopped
assertions:
  - type: buffered_data
    data: second
  - type: journal_entry
    kind: cloud
    name: buffered
    detail: { bytes: 6 }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_NoBufferBeforeStop(t *testing.T) {
	s := mustParse(t, `
name: no_flush
description: "buffered data stays in memory until stop"
steps:
  - lifecycle: created
  - buffer: "pending"
assertions:
  - type: buffered_data
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_TakeBufferedClearsJournal(t *testing.T) {
	s := mustParse(t, `
name: take
description: "taking flushed data empties the journal slot"
steps:
  - lifecycle: created
  - lifecycle: started
  - buffer: "progress"
  - lifecycle: stopped
  - take_buffered: true
  - take_buffered: true
assertions:
  - type: step_result
    step: 4
    expect: { value: progress, delivered: true }
  - type: step_result
    step: 5
    expect: { delivered: false }
  - type: journal_entry
    kind: cloud
    name: taken
    detail: { bytes: 8 }
  - type: buffered_data
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ConflictUpdateSignInTouchScreen(t *testing.T) {
	s := mustParse(t, `
name: extras
description: "conflict resolution, update broadcast, sign-in and touch screen lookup"
devices:
  - id: 1
    sources: [keyboard]
  - id: 5
    sources: [touchscreen]
engine:
  resolve: merged
steps:
  - touch_screen: true
  - update: { available_letters: "a,b" }
  - lifecycle: created
  - conflict: { local: mine, remote: theirs }
  - update: { available_letters: "a,b", available_numbers: "1,2" }
  - sign_in: true
  - touch_screen: true
assertions:
  - type: step_result
    step: 0
    expect: { value: -1 }
  - type: step_result
    step: 1
    expect: { delivered: false }
  - type: step_result
    step: 3
    expect: { value: merged }
  - type: trace_contains
    call: engine.cloud_data_conflict
    args: { local: mine, remote: theirs, resolved: merged }
  - type: trace_contains
    call: engine.external_update
    args: { available_letters: "a,b", available_numbers: "1,2" }
  - type: trace_contains
    call: engine.signed_into_cloud_changed
    args: { signed_in: true }
  - type: step_result
    step: 6
    expect: { value: 5 }
  - type: journal_entry
    kind: sign_in
    name: signed_in_changed
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ConflictDefaultsToRemote(t *testing.T) {
	s := mustParse(t, `
name: conflict_default
description: "unconfigured engine keeps the remote side"
steps:
  - conflict: { local: mine, remote: theirs }
assertions:
  - type: step_result
    step: 0
    expect: { value: theirs }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	s := mustParse(t, `
name: failing
description: "every assertion here fails"
steps:
  - lifecycle: created
assertions:
  - type: trace_contains
    call: engine.gamepad_key
  - type: trace_order
    calls: [engine.phase_changed, services.audio_service]
  - type: trace_count
    call: engine.phase_changed
    count: 2
  - type: step_result
    step: 0
    expect: { error: INVALID_TRANSITION }
  - type: journal_entry
    kind: lifecycle
    name: created
    detail: { phase: started }
  - type: buffered_data
    data: anything
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "Assertion failed: trace_contains")
	assert.Contains(t, result.Errors[1], "then no services.audio_service")
	assert.Contains(t, result.Errors[2], "1 occurrences")
	assert.Contains(t, result.Errors[3], `error = "INVALID_TRANSITION"`)
	assert.Contains(t, result.Errors[4], "detail mismatch")
	assert.Contains(t, result.Errors[5], "no buffered data")
}

func TestRun_SharedJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	s := mustParse(t, `
name: shared
description: "two runs into one journal"
steps:
  - lifecycle: created
assertions:
  - type: journal_entry
    kind: lifecycle
    name: created
`)

	r1, err := Run(s, WithJournal(j), WithSessionIDGenerator(bridge.NewFixedGenerator("run-1")))
	require.NoError(t, err)
	r2, err := Run(s, WithJournal(j), WithSessionIDGenerator(bridge.NewFixedGenerator("run-2")))
	require.NoError(t, err)
	assert.True(t, r1.Pass, "errors: %v", r1.Errors)
	assert.True(t, r2.Pass, "errors: %v", r2.Errors)

	sessions, err := j.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "run-1", sessions[0].ID)
	assert.Equal(t, "run-2", sessions[1].ID)

	first, err := j.ReadEntries(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Greater(t, sessions[1].StartedSeq, first[len(first)-1].Seq, "second run continues the seq")
}

func TestRun_TraceSequence(t *testing.T) {
	s := mustParse(t, `
name: sequence
description: "seq numbers are dense"
steps:
  - lifecycle: created
  - lifecycle: started
assertions:
  - type: trace_count
    call: engine.phase_changed
    count: 2
`)

	result, err := Run(s)
	require.NoError(t, err)
	for i, e := range result.Trace {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, []string{
		"services.audio_service",
		"services.input_service",
		"sound.create",
		"broadcasts.register_receiver",
		"engine.phase_changed",
		"input.register_device_listener",
		"sound.start",
		"engine.phase_changed",
	}, calls(result.Trace))
	assert.Equal(t, "scenario-sequence", result.Session)
}
