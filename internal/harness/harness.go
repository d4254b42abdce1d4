package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/voltbridge/internal/bridge"
	"github.com/roach88/voltbridge/internal/config"
	"github.com/roach88/voltbridge/internal/input"
	"github.com/roach88/voltbridge/internal/journal"
	"github.com/roach88/voltbridge/internal/lifecycle"
)

// Harness is the test execution engine.
// It drives one bridge through a scenario's steps with recording fakes on
// both sides.
type Harness struct {
	bridge  *bridge.Bridge
	rec     *recorder
	host    *recordingHost
	journal *journal.Journal
	logger  *slog.Logger
}

type runOptions struct {
	journal *journal.Journal
	config  *config.Config
	logger  *slog.Logger
	ids     bridge.SessionIDGenerator
}

// Option configures Run.
type Option func(*runOptions)

// WithJournal records the scenario into j instead of a fresh in-memory
// journal. The caller keeps ownership of j.
func WithJournal(j *journal.Journal) Option {
	return func(o *runOptions) {
		o.journal = j
	}
}

// WithConfig applies the session and audio settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *runOptions) {
		o.config = cfg
	}
}

// WithLogger replaces the discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) {
		o.logger = l
	}
}

// WithSessionIDGenerator replaces the scenario's fixed session id.
func WithSessionIDGenerator(g bridge.SessionIDGenerator) Option {
	return func(o *runOptions) {
		o.ids = g
	}
}

// SessionID is the fixed session id a scenario runs under.
func SessionID(s *Scenario) string {
	if s.Session != "" {
		return s.Session
	}
	return "scenario-" + s.Name
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh bridge and in-memory journal unless
// WithJournal is given. The logical clock starts after the journal's highest
// seq.
//
// Execution flow:
// 1. Attach the scenario's devices to the recording input service
// 2. Start the bridge delivery loop
// 3. Execute each step, waiting for the loop to go idle after it
// 4. Stop the bridge and evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		ids:    bridge.NewFixedGenerator(SessionID(scenario)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	j := o.journal
	if j == nil {
		var err error
		j, err = journal.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
		}
		defer j.Close()
	}

	// seq keeps increasing across runs that share a journal
	lastSeq, err := j.MaxSeq(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read journal seq: %w", err)
	}

	rec := &recorder{}
	host, err := newRecordingHost(rec, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to attach devices: %w", err)
	}

	bopts := []bridge.Option{
		bridge.WithJournal(j),
		bridge.WithSessionIDGenerator(o.ids),
		bridge.WithLogger(o.logger),
		bridge.WithClock(bridge.NewClockAt(lastSeq)),
	}
	if o.config != nil {
		bopts = append(bopts,
			bridge.WithUpdateAction(o.config.Session.UpdateAction),
			bridge.WithVolumeKeys(o.config.Audio.VolumeUpKey, o.config.Audio.VolumeDownKey, o.config.Audio.MusicStream),
		)
	}

	b := bridge.New(newRecordingEngine(rec, scenario.Engine), bridge.Host{
		Services:   host,
		NewSound:   host.newSound,
		Broadcasts: host.broadcasts,
		Fallback:   host.fallback,
		Teardown:   host.teardown,
	}, bopts...)

	h := &Harness{
		bridge:  b,
		rec:     rec,
		host:    host,
		journal: j,
		logger:  o.logger,
	}

	ctx := context.Background()
	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(ctx) }()

	result := NewResult()
	result.Session = b.SessionID()

	stepErr := h.executeSteps(ctx, scenario.Steps, result)
	b.Stop()
	if err := <-runErr; err != nil {
		return nil, fmt.Errorf("bridge loop failed: %w", err)
	}
	if stepErr != nil {
		return nil, stepErr
	}

	result.Trace = rec.snapshot()

	actx := &AssertionContext{
		Journal: j,
		Session: result.Session,
		Ctx:     ctx,
	}
	assertionErrors := EvaluateAssertions(result, scenario.Assertions, actx)
	for _, errMsg := range assertionErrors {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps runs every step in order. Each step waits for the delivery
// loop to drain before the next begins, so asynchronous host calls land in
// the trace in step order.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		kind, err := step.Kind()
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		sr := StepResult{Index: i, Kind: kind}
		if err := h.executeStep(ctx, kind, step, &sr); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, kind, err)
		}
		if err := h.bridge.Sync(ctx); err != nil {
			return fmt.Errorf("step %d (%s): sync: %w", i, kind, err)
		}
		result.Steps = append(result.Steps, sr)

		h.logger.Info("step completed", "step", i, "kind", kind)
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, kind string, step Step, sr *StepResult) error {
	b := h.bridge

	switch kind {
	case StepLifecycle:
		p, err := lifecycle.ParsePhase(step.Lifecycle)
		if err != nil {
			return err
		}
		err = b.Lifecycle(ctx, p)
		var re *lifecycle.RuntimeError
		if errors.As(err, &re) {
			sr.Error = string(re.Code)
			return nil
		}
		return err

	case StepKey:
		e, err := step.Key.Event(input.KindKey)
		if err != nil {
			return err
		}
		consumed, err := b.DispatchKey(ctx, e)
		if err != nil {
			return err
		}
		sr.Consumed = boolPtr(consumed)

	case StepMotion:
		e, err := step.Motion.Event(input.KindMotion)
		if err != nil {
			return err
		}
		consumed, err := b.DispatchMotion(ctx, e)
		if err != nil {
			return err
		}
		sr.Consumed = boolPtr(consumed)

	case StepDevice:
		sr.Delivered = boolPtr(h.plug(step.Device))

	case StepCloudLoad:
		raw, err := step.CloudLoad.Raw()
		if err != nil {
			return err
		}
		sr.Began = boolPtr(b.BeginCloudLoad())

		// Completions arrive on a host background thread.
		posted := make(chan bool, 1)
		go func() { posted <- b.CloudLoaded(step.CloudLoad.Code, raw) }()
		if !<-posted {
			return bridge.ErrStopped
		}

	case StepUpdate:
		r := h.host.broadcasts.current()
		sr.Delivered = boolPtr(r != nil)
		if r != nil {
			r.Receive(map[string]string{
				lifecycle.ExtraAvailableLetters: step.Update.AvailableLetters,
				lifecycle.ExtraAvailableNumbers: step.Update.AvailableNumbers,
			})
		}

	case StepBuffer:
		return b.BufferCloudData(ctx, *step.Buffer)

	case StepConflict:
		resolved, err := b.ResolveConflict(ctx, step.Conflict.Local, step.Conflict.Remote)
		if err != nil {
			return err
		}
		sr.Value = resolved

	case StepSignIn:
		return b.SetSignedIn(ctx, *step.SignIn)

	case StepTouchScreen:
		id, err := b.TouchScreenDeviceID(ctx)
		if err != nil {
			return err
		}
		sr.Value = id

	case StepTakeBuffer:
		data, ok, err := b.TakeBufferedCloudData(ctx)
		if err != nil {
			return err
		}
		if ok {
			sr.Value = data
		}
		sr.Delivered = &ok

	default:
		return fmt.Errorf("unknown step kind %q", kind)
	}
	return nil
}

// plug updates the host device table and notifies the registered listener.
// It reports whether a listener was registered.
func (h *Harness) plug(d *DeviceStep) bool {
	in := h.host.input
	switch d.Event {
	case DeviceAdded, DeviceChanged:
		if d.Sources != nil {
			mask, _ := input.ParseSources(d.Sources) // validated on load
			in.attach(d.ID, mask)
		}
	case DeviceRemoved:
		in.detach(d.ID)
	}

	l := in.currentListener()
	if l == nil {
		return false
	}
	switch d.Event {
	case DeviceAdded:
		l.DeviceAdded(d.ID)
	case DeviceChanged:
		l.DeviceChanged(d.ID)
	case DeviceRemoved:
		l.DeviceRemoved(d.ID)
	}
	return true
}
