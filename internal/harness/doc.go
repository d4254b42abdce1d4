// Package harness runs scripted host sessions against the bridge.
//
// The harness drives a real bridge.Bridge with recording fakes for the
// engine and every host collaborator, then checks the recorded trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	devices:
//	  - id: 7
//	    sources: [gamepad, joystick]
//	engine:
//	  consume: [gamepad_key]
//	  resolve: merged
//	host:
//	  fallback_consumes: true
//	steps:
//	  - lifecycle: created
//	  - key: { device: 7, action: down, key_code: 96 }
//	  - motion: { device: 7, action: move }
//	  - device: { event: removed, id: 7 }
//	  - cloud_load: { code: 0, data: hello }
//	  - update: { available_letters: "a,b", available_numbers: "1" }
//	  - buffer: "save blob"
//	  - conflict: { local: a, remote: b }
//	  - sign_in: true
//	  - touch_screen: true
//	  - take_buffered: true
//	assertions:
//	  - type: trace_contains
//	    call: engine.gamepad_key
//	    args: { device: 7 }
//	  - type: step_result
//	    step: 1
//	    expect: { consumed: true }
//
// # Assertion Types
//
//   - trace_contains: a call appears in the trace with matching args
//   - trace_order: calls appear in the given order
//   - trace_count: a call appears exactly N times
//   - step_result: a step returned the expected answer to the host
//   - journal_entry: the session journal holds a matching entry
//   - buffered_data: the journal holds the expected buffered cloud data
//
// # Deterministic Testing
//
// Every scenario runs with a fixed session id, a fresh logical clock and an
// in-memory journal unless one is supplied. Each step waits for the delivery
// loop to go idle before the next one starts, so traces are identical across
// runs and can be compared against golden files.
package harness
