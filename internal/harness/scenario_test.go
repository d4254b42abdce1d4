package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/voltbridge/internal/input"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
devices:
  - id: 7
    sources: [gamepad, joystick]
engine:
  consume: [gamepad_key]
steps:
  - lifecycle: created
  - key: { device: 7, key_code: 96 }
  - cloud_load: { code: 0, data: hello }
assertions:
  - type: trace_contains
    call: engine.gamepad_key
    args: { device: 7 }
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.Len(t, scenario.Devices, 1)
	assert.Equal(t, []string{"gamepad", "joystick"}, scenario.Devices[0].Sources)
	assert.Equal(t, []string{"gamepad_key"}, scenario.Engine.Consume)
	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, "created", scenario.Steps[0].Lifecycle)
	assert.Equal(t, 96, scenario.Steps[1].Key.KeyCode)
	require.NotNil(t, scenario.Steps[2].CloudLoad.Data)
	assert.Equal(t, "hello", *scenario.Steps[2].CloudLoad.Data)
	assert.Equal(t, 7, scenario.Assertions[0].Args["device"])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "misspelled assertions"
steps:
  - lifecycle: created
assertion:
  - type: trace_count
    call: engine.phase_changed
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
steps: [{lifecycle: created}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
steps: [{lifecycle: created}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "description is required",
		},
		{
			name: "no steps",
			content: `
name: n
description: d
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "steps list is required",
		},
		{
			name: "no assertions",
			content: `
name: n
description: d
steps: [{lifecycle: created}]
`,
			wantErr: "assertions list is required",
		},
		{
			name: "empty step",
			content: `
name: n
description: d
steps: [{}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "step is empty",
		},
		{
			name: "two calls in one step",
			content: `
name: n
description: d
steps: [{lifecycle: created, touch_screen: true}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "more than one call",
		},
		{
			name: "unknown phase",
			content: `
name: n
description: d
steps: [{lifecycle: restart}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "steps[0]",
		},
		{
			name: "unknown source",
			content: `
name: n
description: d
devices: [{id: 1, sources: [trackball]}]
steps: [{lifecycle: created}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "unknown input source",
		},
		{
			name: "duplicate device",
			content: `
name: n
description: d
devices: [{id: 1, sources: [keyboard]}, {id: 1, sources: [gamepad]}]
steps: [{lifecycle: created}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "duplicate device id 1",
		},
		{
			name: "unknown handler",
			content: `
name: n
description: d
engine: {consume: [mouse_key]}
steps: [{lifecycle: created}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "unknown handler",
		},
		{
			name: "unknown device event",
			content: `
name: n
description: d
steps: [{device: {event: unplugged, id: 1}}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "unknown event",
		},
		{
			name: "data and hex",
			content: `
name: n
description: d
steps: [{cloud_load: {code: 0, data: a, hex: "61"}}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "bad hex",
			content: `
name: n
description: d
steps: [{cloud_load: {code: 0, hex: "zz"}}]
assertions: [{type: trace_count, call: x, count: 0}]
`,
			wantErr: "cloud_load",
		},
		{
			name: "step result out of range",
			content: `
name: n
description: d
steps: [{lifecycle: created}]
assertions: [{type: step_result, step: 3, expect: {error: x}}]
`,
			wantErr: "out of range",
		},
		{
			name: "step result without expect",
			content: `
name: n
description: d
steps: [{lifecycle: created}]
assertions: [{type: step_result, step: 0}]
`,
			wantErr: "expect is required",
		},
		{
			name: "journal entry without name",
			content: `
name: n
description: d
steps: [{lifecycle: created}]
assertions: [{type: journal_entry, kind: lifecycle}]
`,
			wantErr: "kind and name are required",
		},
		{
			name: "unknown assertion",
			content: `
name: n
description: d
steps: [{lifecycle: created}]
assertions: [{type: final_state}]
`,
			wantErr: "unknown assertion type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInputStep_Event(t *testing.T) {
	t.Run("key defaults to down and lookup", func(t *testing.T) {
		s := &InputStep{Device: 3, KeyCode: 24}
		e, err := s.Event(input.KindKey)
		require.NoError(t, err)
		assert.Equal(t, input.ActionDown, e.Action)
		assert.Equal(t, 24, e.KeyCode)
		_, known := e.Capabilities.Mask()
		assert.False(t, known, "no sources means the bridge looks the device up")
	})

	t.Run("motion defaults to move", func(t *testing.T) {
		s := &InputStep{Device: 3, Sources: []string{"joystick"}}
		e, err := s.Event(input.KindMotion)
		require.NoError(t, err)
		assert.Equal(t, input.ActionMove, e.Action)
		assert.True(t, e.Capabilities.Has(input.SourceJoystick))
	})

	t.Run("empty sources are known and empty", func(t *testing.T) {
		s := &InputStep{Device: 3, Sources: []string{}}
		e, err := s.Event(input.KindKey)
		require.NoError(t, err)
		mask, known := e.Capabilities.Mask()
		assert.True(t, known)
		assert.Zero(t, mask)
	})

	t.Run("bad action", func(t *testing.T) {
		s := &InputStep{Action: "wiggle"}
		_, err := s.Event(input.KindKey)
		assert.Error(t, err)
	})
}

func TestCloudLoadStep_Raw(t *testing.T) {
	text := "héllo"
	raw, err := (&CloudLoadStep{Data: &text}).Raw()
	require.NoError(t, err)
	assert.Equal(t, []byte(text), raw)

	raw, err = (&CloudLoadStep{Hex: "c328"}).Raw()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc3, 0x28}, raw)

	raw, err = (&CloudLoadStep{}).Raw()
	require.NoError(t, err)
	assert.Nil(t, raw)
}
