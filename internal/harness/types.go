package harness

// TraceEvent is one call the bridge made into the engine or the host.
type TraceEvent struct {
	Seq  int64          `json:"seq"`
	Call string         `json:"call"`
	Args map[string]any `json:"args,omitempty"`
}

// StepResult is what one step returned to the host.
type StepResult struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`

	// Consumed is the dispatch answer of key and motion steps.
	Consumed *bool `json:"consumed,omitempty"`

	// Error is the RuntimeError code of a rejected lifecycle step.
	Error string `json:"error,omitempty"`

	// Value is the conflict resolution, the touch-screen device id or the
	// data a take_buffered step handed off.
	Value any `json:"value,omitempty"`

	// Delivered is false when a hot-plug or update event had no registered
	// listener on the host side, or when take_buffered found nothing.
	Delivered *bool `json:"delivered,omitempty"`

	// Began reports whether a cloud_load step claimed the in-flight flag.
	Began *bool `json:"began,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Session is the journal session id the scenario ran under.
	Session string `json:"session"`

	// Trace contains every recorded call in order.
	Trace []TraceEvent `json:"trace"`

	// Steps contains one result per scenario step.
	Steps []StepResult `json:"steps"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func boolPtr(b bool) *bool {
	return &b
}
