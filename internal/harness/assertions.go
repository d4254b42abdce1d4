package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/voltbridge/internal/journal"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Call, formatArgs(event.Args))
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains a call matching the
// specified name and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Call == assertion.Call && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s with args %s", assertion.Call, formatArgs(assertion.Args)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if calls appear in the specified order.
// Calls don't need to be consecutive (intervening calls are allowed), and a
// name may repeat to match successive occurrences.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Calls) && event.Call == assertion.Calls[next] {
			next++
		}
	}
	if next == len(assertion.Calls) {
		return nil
	}

	matched := "nothing"
	if next > 0 {
		matched = strings.Join(assertion.Calls[:next], ", ")
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("calls in order: %v", assertion.Calls),
		Actual:   fmt.Sprintf("matched %s, then no %s", matched, assertion.Calls[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks if the call appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Call == assertion.Call && matchArgs(event.Args, assertion.Args) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Call),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertStepResult checks what one step returned to the host.
func assertStepResult(steps []StepResult, assertion Assertion) error {
	idx := *assertion.Step
	if idx < 0 || idx >= len(steps) {
		return &AssertionError{
			Type:     AssertStepResult,
			Expected: fmt.Sprintf("step %d", idx),
			Actual:   fmt.Sprintf("%d steps ran", len(steps)),
		}
	}
	got := steps[idx]
	want := assertion.Expect

	mismatch := func(field string, expected, actual any) error {
		return &AssertionError{
			Type:     AssertStepResult,
			Expected: fmt.Sprintf("step %d (%s) %s = %s", idx, got.Kind, field, describe(expected)),
			Actual:   fmt.Sprintf("%s = %s", field, describe(actual)),
		}
	}

	if want.Consumed != nil && !boolsEqual(want.Consumed, got.Consumed) {
		return mismatch("consumed", want.Consumed, got.Consumed)
	}
	if want.Delivered != nil && !boolsEqual(want.Delivered, got.Delivered) {
		return mismatch("delivered", want.Delivered, got.Delivered)
	}
	if want.Began != nil && !boolsEqual(want.Began, got.Began) {
		return mismatch("began", want.Began, got.Began)
	}
	if want.Error != nil && *want.Error != got.Error {
		return mismatch("error", *want.Error, got.Error)
	}
	if want.Value != nil && !valuesEqual(got.Value, want.Value) {
		return mismatch("value", want.Value, got.Value)
	}
	return nil
}

// assertJournalEntry checks that the session journal holds an entry of the
// given kind and name whose detail contains the expected fields.
func assertJournalEntry(ctx context.Context, j *journal.Journal, session string, assertion Assertion) error {
	entries, err := j.ReadEntries(ctx, session)
	if err != nil {
		return fmt.Errorf("journal_entry: read session %s: %w", session, err)
	}

	var candidates []string
	for _, e := range entries {
		if e.Kind != assertion.Kind || e.Name != assertion.Name {
			continue
		}
		if matchArgs(e.Detail, assertion.Detail) {
			return nil
		}
		candidates = append(candidates, fmt.Sprintf("[%d] %s", e.Seq, formatArgs(e.Detail)))
	}

	actual := "no entry with that kind and name"
	if len(candidates) > 0 {
		actual = "detail mismatch: " + strings.Join(candidates, "; ")
	}
	return &AssertionError{
		Type:     AssertJournalEntry,
		Expected: fmt.Sprintf("%s/%s with detail %s", assertion.Kind, assertion.Name, formatArgs(assertion.Detail)),
		Actual:   actual,
	}
}

// assertBufferedData checks the buffered cloud data persisted at stop.
func assertBufferedData(ctx context.Context, j *journal.Journal, assertion Assertion) error {
	data, ok, err := j.LoadBuffered(ctx)
	if err != nil {
		return fmt.Errorf("buffered_data: %w", err)
	}

	switch {
	case assertion.Data == nil && !ok:
		return nil
	case assertion.Data == nil:
		return &AssertionError{
			Type:     AssertBufferedData,
			Expected: "no buffered data",
			Actual:   fmt.Sprintf("%q", data),
		}
	case !ok:
		return &AssertionError{
			Type:     AssertBufferedData,
			Expected: fmt.Sprintf("%q", *assertion.Data),
			Actual:   "no buffered data",
		}
	case data != *assertion.Data:
		return &AssertionError{
			Type:     AssertBufferedData,
			Expected: fmt.Sprintf("%q", *assertion.Data),
			Actual:   fmt.Sprintf("%q", data),
		}
	}
	return nil
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares scalars by their printed form. YAML decodes numbers
// as int, the trace records int and the journal returns json.Number.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

func boolsEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func describe(v any) string {
	switch x := v.(type) {
	case *bool:
		if x == nil {
			return "<unset>"
		}
		return fmt.Sprint(*x)
	case string:
		return fmt.Sprintf("%q", x)
	case nil:
		return "<unset>"
	default:
		return fmt.Sprint(x)
	}
}

// formatArgs renders args with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Journal *journal.Journal
	Session string
	Ctx     context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for journal_entry and
// buffered_data assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertStepResult:
			if assertion.Step == nil || assertion.Expect == nil {
				err = fmt.Errorf("assertion[%d]: step_result requires step and expect", i)
			} else {
				err = assertStepResult(result.Steps, assertion)
			}
		case AssertJournalEntry:
			if actx == nil || actx.Journal == nil {
				err = fmt.Errorf("assertion[%d]: journal_entry requires journal context", i)
			} else {
				err = assertJournalEntry(actx.Ctx, actx.Journal, actx.Session, assertion)
			}
		case AssertBufferedData:
			if actx == nil || actx.Journal == nil {
				err = fmt.Errorf("assertion[%d]: buffered_data requires journal context", i)
			} else {
				err = assertBufferedData(actx.Ctx, actx.Journal, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
