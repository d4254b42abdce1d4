package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/voltbridge/internal/input"
	"github.com/roach88/voltbridge/internal/lifecycle"
)

// Scenario is a scripted host session.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the journal session id. Defaults to the scenario name.
	Session string `yaml:"session,omitempty"`

	// Devices are attached to the host input service before the first step.
	Devices []Device `yaml:"devices,omitempty"`

	// Engine configures the recording engine's answers.
	Engine EngineSetup `yaml:"engine,omitempty"`

	// Host configures the recording host's answers.
	Host HostSetup `yaml:"host,omitempty"`

	// Steps are host calls, delivered in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace, step results and journal.
	Assertions []Assertion `yaml:"assertions"`
}

// Device is an attached input device.
type Device struct {
	ID      int      `yaml:"id"`
	Sources []string `yaml:"sources"`
}

// EngineSetup configures the recording engine.
type EngineSetup struct {
	// Consume lists the engine handlers that consume their events, e.g.
	// gamepad_key. Every other handler declines.
	Consume []string `yaml:"consume,omitempty"`

	// Resolve is the engine's answer to every cloud conflict.
	Resolve string `yaml:"resolve,omitempty"`
}

// HostSetup configures the recording host.
type HostSetup struct {
	// FallbackConsumes is the toolkit's answer for fall-through events.
	FallbackConsumes bool `yaml:"fallback_consumes,omitempty"`
}

// Step is one host call. Exactly one field must be set.
type Step struct {
	Lifecycle   string            `yaml:"lifecycle,omitempty"`
	Key         *InputStep        `yaml:"key,omitempty"`
	Motion      *InputStep        `yaml:"motion,omitempty"`
	Device      *DeviceStep       `yaml:"device,omitempty"`
	CloudLoad   *CloudLoadStep    `yaml:"cloud_load,omitempty"`
	Update      *lifecycle.Update `yaml:"update,omitempty"`
	Buffer      *string           `yaml:"buffer,omitempty"`
	Conflict    *ConflictStep     `yaml:"conflict,omitempty"`
	SignIn      *bool             `yaml:"sign_in,omitempty"`
	TouchScreen bool              `yaml:"touch_screen,omitempty"`
	TakeBuffer  bool              `yaml:"take_buffered,omitempty"`
}

// Step kinds.
const (
	StepLifecycle   = "lifecycle"
	StepKey         = "key"
	StepMotion      = "motion"
	StepDevice      = "device"
	StepCloudLoad   = "cloud_load"
	StepUpdate      = "update"
	StepBuffer      = "buffer"
	StepConflict    = "conflict"
	StepSignIn      = "sign_in"
	StepTouchScreen = "touch_screen"
	StepTakeBuffer  = "take_buffered"
)

// Kind returns the step's kind, or an error unless exactly one field is set.
func (s Step) Kind() (string, error) {
	var kinds []string
	if s.Lifecycle != "" {
		kinds = append(kinds, StepLifecycle)
	}
	if s.Key != nil {
		kinds = append(kinds, StepKey)
	}
	if s.Motion != nil {
		kinds = append(kinds, StepMotion)
	}
	if s.Device != nil {
		kinds = append(kinds, StepDevice)
	}
	if s.CloudLoad != nil {
		kinds = append(kinds, StepCloudLoad)
	}
	if s.Update != nil {
		kinds = append(kinds, StepUpdate)
	}
	if s.Buffer != nil {
		kinds = append(kinds, StepBuffer)
	}
	if s.Conflict != nil {
		kinds = append(kinds, StepConflict)
	}
	if s.SignIn != nil {
		kinds = append(kinds, StepSignIn)
	}
	if s.TouchScreen {
		kinds = append(kinds, StepTouchScreen)
	}
	if s.TakeBuffer {
		kinds = append(kinds, StepTakeBuffer)
	}

	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("step is empty")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("step sets more than one call: %v", kinds)
	}
}

// InputStep is a key or motion event.
type InputStep struct {
	Device int `yaml:"device"`

	// Sources overrides the device's capabilities. When omitted the bridge
	// looks the device up in the input service.
	Sources []string `yaml:"sources,omitempty"`

	// Action defaults to down for keys and move for motion.
	Action  string             `yaml:"action,omitempty"`
	KeyCode int                `yaml:"key_code,omitempty"`
	Axes    map[string]float64 `yaml:"axes,omitempty"`
}

// Event builds the input event for kind.
func (s *InputStep) Event(kind input.Kind) (input.Event, error) {
	e := input.Event{
		Kind:     kind,
		DeviceID: s.Device,
		KeyCode:  s.KeyCode,
		Axes:     s.Axes,
	}

	action := s.Action
	if action == "" {
		action = "down"
		if kind == input.KindMotion {
			action = "move"
		}
	}
	a, err := input.ParseAction(action)
	if err != nil {
		return input.Event{}, err
	}
	e.Action = a

	if s.Sources != nil {
		mask, err := input.ParseSources(s.Sources)
		if err != nil {
			return input.Event{}, err
		}
		e.Capabilities = input.Known(mask)
	}
	return e, nil
}

// Device hot-plug events.
const (
	DeviceAdded   = "added"
	DeviceChanged = "changed"
	DeviceRemoved = "removed"
)

// DeviceStep is a hot-plug notification. An added device with sources is
// attached to the input service first; a removed device is detached.
type DeviceStep struct {
	Event   string   `yaml:"event"`
	ID      int      `yaml:"id"`
	Sources []string `yaml:"sources,omitempty"`
}

// CloudLoadStep is a cloud load completion. Data is the payload as text;
// Hex gives raw bytes. Neither means the load carried no data.
type CloudLoadStep struct {
	Code int     `yaml:"code"`
	Data *string `yaml:"data,omitempty"`
	Hex  string  `yaml:"hex,omitempty"`
}

// Raw returns the completion's bytes, or nil.
func (s *CloudLoadStep) Raw() ([]byte, error) {
	if s.Hex != "" {
		return hex.DecodeString(s.Hex)
	}
	if s.Data != nil {
		return []byte(*s.Data), nil
	}
	return nil, nil
}

// ConflictStep hands local and remote data to the engine.
type ConflictStep struct {
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`
}

// Assertion validates the trace, a step result or the journal.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check call appears in trace with args
	// - "trace_order": Check calls appear in order
	// - "trace_count": Check call appears exactly N times
	// - "step_result": Check what a step returned
	// - "journal_entry": Check the journal holds a matching entry
	// - "buffered_data": Check the journal's buffered cloud data
	Type string `yaml:"type"`

	// Call is the recorded call name (trace_contains, trace_count).
	Call string `yaml:"call,omitempty"`

	// Args are the expected call args (trace_contains). Subset match.
	Args map[string]any `yaml:"args,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Calls is the expected call order (trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Step is the zero-based step index (step_result).
	Step *int `yaml:"step,omitempty"`

	// Expect is the expected step result (step_result).
	Expect *StepExpect `yaml:"expect,omitempty"`

	// Kind and Name select a journal entry; Detail is a subset match
	// (journal_entry).
	Kind   string         `yaml:"kind,omitempty"`
	Name   string         `yaml:"name,omitempty"`
	Detail map[string]any `yaml:"detail,omitempty"`

	// Data is the expected buffered cloud data; omitted means none
	// (buffered_data).
	Data *string `yaml:"data,omitempty"`
}

// StepExpect is a subset match on a StepResult.
type StepExpect struct {
	Consumed  *bool   `yaml:"consumed,omitempty"`
	Error     *string `yaml:"error,omitempty"`
	Value     any     `yaml:"value,omitempty"`
	Delivered *bool   `yaml:"delivered,omitempty"`
	Began     *bool   `yaml:"began,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertStepResult    = "step_result"
	AssertJournalEntry  = "journal_entry"
	AssertBufferedData  = "buffered_data"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

var engineHandlers = map[string]bool{
	"gamepad_motion":          true,
	"touch_navigation_motion": true,
	"gamepad_key":             true,
	"touch_navigation_key":    true,
	"keyboard_key":            true,
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[int]bool)
	for i, d := range s.Devices {
		if seen[d.ID] {
			return fmt.Errorf("devices[%d]: duplicate device id %d", i, d.ID)
		}
		seen[d.ID] = true
		if _, err := input.ParseSources(d.Sources); err != nil {
			return fmt.Errorf("devices[%d]: %w", i, err)
		}
	}

	for _, h := range s.Engine.Consume {
		if !engineHandlers[h] {
			return fmt.Errorf("engine.consume: unknown handler %q", h)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(step Step) error {
	kind, err := step.Kind()
	if err != nil {
		return err
	}

	switch kind {
	case StepLifecycle:
		if _, err := lifecycle.ParsePhase(step.Lifecycle); err != nil {
			return err
		}
	case StepKey:
		if _, err := step.Key.Event(input.KindKey); err != nil {
			return err
		}
	case StepMotion:
		if _, err := step.Motion.Event(input.KindMotion); err != nil {
			return err
		}
	case StepDevice:
		switch step.Device.Event {
		case DeviceAdded, DeviceChanged, DeviceRemoved:
		default:
			return fmt.Errorf("device: unknown event %q (want added, changed or removed)", step.Device.Event)
		}
		if _, err := input.ParseSources(step.Device.Sources); err != nil {
			return fmt.Errorf("device: %w", err)
		}
	case StepCloudLoad:
		if step.CloudLoad.Data != nil && step.CloudLoad.Hex != "" {
			return fmt.Errorf("cloud_load: data and hex are mutually exclusive")
		}
		if _, err := step.CloudLoad.Raw(); err != nil {
			return fmt.Errorf("cloud_load: %w", err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertStepResult:
		if a.Step == nil {
			return fmt.Errorf("assertions[%d]: step is required for step_result", index)
		}
		if *a.Step < 0 || *a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range (0..%d)", index, *a.Step, steps-1)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for step_result", index)
		}
	case AssertJournalEntry:
		if a.Kind == "" || a.Name == "" {
			return fmt.Errorf("assertions[%d]: kind and name are required for journal_entry", index)
		}
	case AssertBufferedData:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
