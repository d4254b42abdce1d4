package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/voltbridge/internal/cloud"
	"github.com/roach88/voltbridge/internal/dispatch"
	"github.com/roach88/voltbridge/internal/input"
	"github.com/roach88/voltbridge/internal/journal"
	"github.com/roach88/voltbridge/internal/lifecycle"
)

var (
	// ErrStopped is returned by calls made after the delivery loop exited.
	ErrStopped = errors.New("bridge stopped")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("bridge already running")
)

// Engine is the native game engine as the bridge sees it.
type Engine interface {
	dispatch.Handlers
	lifecycle.Notifier
	cloud.Sink

	// ExternalUpdate receives the payload of an update broadcast.
	ExternalUpdate(u lifecycle.Update)

	// SignedIntoCloudChanged reports the host's cloud sign-in state.
	SignedIntoCloudChanged(signedIn bool)
}

// Host holds the host runtime's collaborators.
type Host struct {
	Services   lifecycle.Services
	NewSound   func() lifecycle.SoundManager
	Broadcasts lifecycle.Broadcasts

	// Fallback is the toolkit's own handling for events the engine does
	// not consume. Optional.
	Fallback dispatch.Fallback

	// Teardown runs when the session is destroyed. Optional.
	Teardown func()
}

// Recorder is the journal the bridge appends to.
// Implemented by *journal.Journal.
type Recorder interface {
	BeginSession(ctx context.Context, id string, seq int64) error
	Append(ctx context.Context, e journal.Entry) error
	SaveBuffered(ctx context.Context, sessionID string, seq int64, data string) error
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithJournal records every handled call and persists buffered cloud data
// when the session stops.
func WithJournal(r Recorder) Option {
	return func(b *Bridge) {
		b.journal = r
	}
}

// WithSessionIDGenerator replaces the UUIDv7 session ids.
func WithSessionIDGenerator(g SessionIDGenerator) Option {
	return func(b *Bridge) {
		b.ids = g
	}
}

// WithClock sets the logical clock, e.g. one resumed with NewClockAt.
func WithClock(c *Clock) Option {
	return func(b *Bridge) {
		b.clock = c
	}
}

// WithLogger sets the logger shared by the bridge and its components.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithUpdateAction sets the broadcast action of the update receiver.
func WithUpdateAction(action string) Option {
	return func(b *Bridge) {
		b.updateAction = action
	}
}

// WithVolumeKeys overrides the volume key codes and the stream they adjust.
func WithVolumeKeys(up, down, stream int) Option {
	return func(b *Bridge) {
		b.volume.Up = up
		b.volume.Down = down
		b.volume.Stream = stream
	}
}

// Bridge is the composition root: it owns the router, the lifecycle
// sequencer and the cloud reconciler, and serializes every host call onto
// the delivery loop.
//
// Thread-safety model:
//   - Run(): must be called from exactly ONE goroutine, once
//   - every other method: safe from any goroutine except the loop itself
type Bridge struct {
	engine       Engine
	host         Host
	queue        *taskQueue
	clock        *Clock
	ids          SessionIDGenerator
	session      string
	journal      Recorder
	writer       *journalWriter
	logger       *slog.Logger
	updateAction string

	volume *dispatch.VolumeKeys
	router *dispatch.Router
	seq    *lifecycle.Sequencer
	cloud  *cloud.Reconciler

	running atomic.Bool
	done    chan struct{}

	// loopCtx is the context passed to Run. Read on the loop only.
	loopCtx context.Context
}

// New creates a bridge in the Initial phase. Nothing is delivered until Run
// is called.
func New(engine Engine, host Host, opts ...Option) *Bridge {
	b := &Bridge{
		engine:       engine,
		host:         host,
		queue:        newTaskQueue(),
		clock:        NewClock(),
		ids:          UUIDv7Generator{},
		logger:       slog.Default(),
		updateAction: lifecycle.DefaultUpdateAction,
		volume:       dispatch.NewVolumeKeys(),
		done:         make(chan struct{}),
		loopCtx:      context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.session = b.ids.Generate()
	if b.journal != nil {
		b.writer = newJournalWriter(b.journal, b.logger)
	}
	b.router = dispatch.NewRouter(engine,
		dispatch.WithVolumeKeys(b.volume),
		dispatch.WithFallback(host.Fallback),
		dispatch.WithLogger(b.logger),
	)
	b.cloud = cloud.NewReconciler(engine, b.logger)
	b.seq = lifecycle.NewSequencer(lifecycle.Collaborators{
		Services:     host.Services,
		NewSound:     host.NewSound,
		Broadcasts:   host.Broadcasts,
		UpdateAction: b.updateAction,
		OnUpdate:     b.postUpdate,
		OnAudio:      b.volume.Attach,
		Listener:     deviceListener{b: b},
		Flush:        b.flush,
		Teardown:     host.Teardown,
	}, engine, b.logger)

	return b
}

// SessionID returns the id the journal records this session under.
func (b *Bridge) SessionID() string {
	return b.session
}

// Run starts the delivery loop.
// Blocks until the context is cancelled or Stop() is called.
//
// After Stop, tasks already queued are still delivered before Run returns.
// After cancellation they are dropped and their callers get ErrStopped.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(b.done)

	b.loopCtx = ctx
	if b.writer != nil {
		go b.writer.run(context.WithoutCancel(ctx))
		defer b.writer.close()
	}
	b.beginSession(ctx)
	b.logger.Info("bridge starting", "session", b.session)

	for {
		t, ok := b.queue.TryDequeue()
		if ok {
			t(ctx)
			continue
		}

		select {
		case <-ctx.Done():
			b.logger.Info("bridge stopping: context cancelled", "session", b.session)
			b.queue.Close()
			return ctx.Err()

		case _, open := <-b.queue.Wait():
			if !open && b.queue.Len() == 0 {
				b.logger.Info("bridge stopping: queue closed", "session", b.session)
				return nil
			}
		}
	}
}

// Stop closes the task queue, which will cause Run() to return once the
// queued tasks are delivered.
func (b *Bridge) Stop() {
	b.queue.Close()
}

// Done is closed when Run returns.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Lifecycle delivers one host lifecycle callback. A transition the phase
// table does not allow is rejected with a *lifecycle.RuntimeError and has
// no side effects.
func (b *Bridge) Lifecycle(ctx context.Context, p lifecycle.Phase) error {
	advanceErr, err := call(ctx, b, func(ctx context.Context) error {
		err := b.seq.Advance(p)
		detail := map[string]any{"phase": p.String()}
		if err != nil {
			detail["error"] = err.Error()
		}
		b.record(ctx, journal.KindLifecycle, p.String(), detail)
		return err
	})
	if err != nil {
		return err
	}
	return advanceErr
}

// DispatchKey delivers a key event and reports whether it was consumed,
// by the engine or by the host fallback.
func (b *Bridge) DispatchKey(ctx context.Context, e input.Event) (bool, error) {
	e.Kind = input.KindKey
	return b.dispatch(ctx, e)
}

// DispatchMotion delivers a motion event and reports whether it was consumed.
func (b *Bridge) DispatchMotion(ctx context.Context, e input.Event) (bool, error) {
	e.Kind = input.KindMotion
	return b.dispatch(ctx, e)
}

// dispatch fills in absent capabilities from the input service, then routes.
// e is a copy and is not retained past the call.
func (b *Bridge) dispatch(ctx context.Context, e input.Event) (bool, error) {
	return call(ctx, b, func(ctx context.Context) bool {
		if _, ok := e.Capabilities.Mask(); !ok {
			e.Capabilities = input.Lookup(b.registry(), e.DeviceID)
		}

		d := b.router.Deliver(&e)

		kind := journal.KindKey
		detail := map[string]any{
			"device_id":    e.DeviceID,
			"action":       e.Action.String(),
			"capabilities": e.Capabilities.String(),
			"category":     d.Category.String(),
			"result":       d.Result.String(),
			"offered":      d.Offered,
			"handled":      d.Handled,
		}
		if e.IsMotion() {
			kind = journal.KindMotion
		} else {
			detail["key_code"] = e.KeyCode
		}
		b.record(ctx, kind, "dispatch", detail)
		return d.Handled
	})
}

// TouchScreenDeviceID returns the first attached touch-screen device, or
// input.NoTouchScreen. Before Created no input service is held and the
// answer is always input.NoTouchScreen.
func (b *Bridge) TouchScreenDeviceID(ctx context.Context) (int, error) {
	return call(ctx, b, func(context.Context) int {
		return input.TouchScreenDeviceID(b.registry())
	})
}

// BeginCloudLoad claims the in-flight flag before the host issues a load.
// It returns false when a load is already outstanding.
// Safe from any goroutine, including engine callbacks.
func (b *Bridge) BeginCloudLoad() bool {
	return b.cloud.BeginLoad()
}

// CloudLoadInFlight reports whether a cloud load is outstanding.
func (b *Bridge) CloudLoadInFlight() bool {
	return b.cloud.InFlight()
}

// CloudLoaded is the host's load completion callback. It may be called from
// any goroutine; the completion is delivered on the loop. raw == nil means
// the load carried no data. raw is copied.
//
// Returns false if the bridge has stopped.
func (b *Bridge) CloudLoaded(code int, raw []byte) bool {
	var data []byte
	if raw != nil {
		data = append([]byte{}, raw...)
	}
	return b.post("cloud_loaded", func(ctx context.Context) {
		out := b.cloud.OnLoaded(code, data)
		detail := map[string]any{
			"code":     code,
			"status":   out.Status.String(),
			"has_data": out.Data != nil,
		}
		if out.Err != nil {
			detail["error"] = out.Err.Error()
		}
		b.record(ctx, journal.KindCloud, "loaded", detail)
	})
}

// ResolveConflict hands local and remote data to the engine and returns its
// resolution.
func (b *Bridge) ResolveConflict(ctx context.Context, local, remote string) (string, error) {
	return call(ctx, b, func(ctx context.Context) string {
		resolved := b.cloud.ResolveConflict(local, remote)
		b.record(ctx, journal.KindCloud, "conflict", map[string]any{
			"local_bytes":    len(local),
			"remote_bytes":   len(remote),
			"resolved_bytes": len(resolved),
		})
		return resolved
	})
}

// BufferCloudData holds data to upload once the cloud is reachable. The
// buffer is persisted to the journal when the session stops.
func (b *Bridge) BufferCloudData(ctx context.Context, data string) error {
	_, err := call(ctx, b, func(ctx context.Context) struct{} {
		b.cloud.Buffer(data)
		b.record(ctx, journal.KindCloud, "buffered", map[string]any{"bytes": len(data)})
		return struct{}{}
	})
	return err
}

// TakeBufferedCloudData hands the buffered cloud data to the caller for
// upload and clears it, in memory and in the journal. Data a Stopped flush
// already persisted is taken from the journal. ok is false when nothing is
// buffered.
func (b *Bridge) TakeBufferedCloudData(ctx context.Context) (string, bool, error) {
	type taken struct {
		data string
		ok   bool
		err  error
	}
	res, err := call(ctx, b, func(ctx context.Context) taken {
		data, ok := b.cloud.Take()
		if store, persisted := b.journal.(bufferStore); persisted {
			if !ok {
				stored, found, err := store.LoadBuffered(ctx)
				if err != nil {
					return taken{err: fmt.Errorf("load buffered cloud data: %w", err)}
				}
				data, ok = stored, found
			}
			if ok {
				if err := store.ClearBuffered(ctx); err != nil {
					b.cloud.Buffer(data)
					return taken{err: fmt.Errorf("clear buffered cloud data: %w", err)}
				}
			}
		}
		if ok {
			b.record(ctx, journal.KindCloud, "taken", map[string]any{"bytes": len(data)})
		}
		return taken{data: data, ok: ok}
	})
	if err != nil {
		return "", false, err
	}
	return res.data, res.ok, res.err
}

// SetSignedIn forwards the host's cloud sign-in state to the engine.
func (b *Bridge) SetSignedIn(ctx context.Context, signedIn bool) error {
	_, err := call(ctx, b, func(ctx context.Context) struct{} {
		b.engine.SignedIntoCloudChanged(signedIn)
		b.record(ctx, journal.KindSignIn, "signed_in_changed", map[string]any{"signed_in": signedIn})
		return struct{}{}
	})
	return err
}

// Sync waits until every task queued before it has been delivered and
// its journal entries are written.
func (b *Bridge) Sync(ctx context.Context) error {
	if _, err := call(ctx, b, func(context.Context) struct{} { return struct{}{} }); err != nil {
		return err
	}
	if b.writer == nil {
		return nil
	}
	return b.writer.barrier(ctx)
}

// call runs fn on the loop and waits for its result. If ctx ends first the
// task still runs; only the wait is abandoned.
func call[T any](ctx context.Context, b *Bridge, fn func(ctx context.Context) T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if !b.queue.Enqueue(func(loopCtx context.Context) { reply <- fn(loopCtx) }) {
		return zero, ErrStopped
	}

	select {
	case v := <-reply:
		return v, nil
	case <-b.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// post queues t without waiting.
func (b *Bridge) post(what string, t task) bool {
	if !b.queue.Enqueue(t) {
		b.logger.Warn("bridge stopped, dropping host call", "call", what, "session", b.session)
		return false
	}
	return true
}

// postUpdate is the update receiver's delivery hook. Broadcasts arrive on a
// host thread.
func (b *Bridge) postUpdate(u lifecycle.Update) {
	b.post("external_update", func(ctx context.Context) {
		b.engine.ExternalUpdate(u)
		b.record(ctx, journal.KindUpdate, "external_update", map[string]any{
			"available_letters": u.AvailableLetters,
			"available_numbers": u.AvailableNumbers,
		})
	})
}

// registry is the input service acquired at Created, or nil.
func (b *Bridge) registry() input.DeviceRegistry {
	if in := b.seq.InputService(); in != nil {
		return in
	}
	return nil
}

// flush runs on the loop as the Stopped phase's persist step.
func (b *Bridge) flush() error {
	if b.journal == nil {
		if _, ok := b.cloud.Buffered(); ok {
			b.logger.Debug("no journal attached, buffered cloud data kept in memory", "session", b.session)
		}
		return nil
	}
	return b.cloud.Flush(journalPersister{b: b})
}

type journalPersister struct {
	b *Bridge
}

func (p journalPersister) SaveBuffered(data string) error {
	return p.b.journal.SaveBuffered(p.b.loopCtx, p.b.session, p.b.clock.Current(), data)
}

func (b *Bridge) beginSession(ctx context.Context) {
	seq := b.clock.Next()
	if b.journal == nil {
		return
	}
	if err := b.journal.BeginSession(ctx, b.session, seq); err != nil {
		b.logger.Warn("journal begin session failed", "session", b.session, "error", err)
	}
	b.restoreBuffered(ctx)
}

// bufferStore is implemented by journals that keep buffered cloud data
// across sessions.
type bufferStore interface {
	LoadBuffered(ctx context.Context) (string, bool, error)
	ClearBuffered(ctx context.Context) error
}

// restoreBuffered reloads cloud data a previous session buffered but never
// uploaded. The journal keeps its copy until the next flush replaces it.
func (b *Bridge) restoreBuffered(ctx context.Context) {
	store, ok := b.journal.(bufferStore)
	if !ok {
		return
	}
	data, ok, err := store.LoadBuffered(ctx)
	if err != nil {
		b.logger.Warn("journal load buffered data failed", "session", b.session, "error", err)
		return
	}
	if !ok {
		return
	}
	b.cloud.Buffer(data)
	b.logger.Info("restored buffered cloud data", "session", b.session, "bytes", len(data))
	b.record(ctx, journal.KindCloud, "restored", map[string]any{"bytes": len(data)})
}

// record queues one entry for the journal writer. The clock advances
// whether or not a journal is attached.
func (b *Bridge) record(_ context.Context, kind, name string, detail map[string]any) {
	seq := b.clock.Next()
	if b.writer == nil {
		return
	}
	b.writer.append(journal.Entry{
		SessionID: b.session,
		Seq:       seq,
		Kind:      kind,
		Name:      name,
		Detail:    detail,
	})
}

// deviceListener is registered with the host input service. Hot-plug
// callbacks arrive on a host thread and are delivered on the loop.
type deviceListener struct {
	b *Bridge
}

func (l deviceListener) DeviceAdded(deviceID int) {
	l.b.post("device_added", func(ctx context.Context) {
		l.b.seq.DeviceAdded(deviceID)
		l.b.record(ctx, journal.KindDevice, "added", map[string]any{"device_id": deviceID})
	})
}

func (l deviceListener) DeviceChanged(deviceID int) {
	l.b.post("device_changed", func(ctx context.Context) {
		l.b.seq.DeviceChanged(deviceID)
		l.b.record(ctx, journal.KindDevice, "changed", map[string]any{"device_id": deviceID})
	})
}

func (l deviceListener) DeviceRemoved(deviceID int) {
	l.b.post("device_removed", func(ctx context.Context) {
		forwarded := l.b.seq.Phase() != lifecycle.Destroyed
		l.b.seq.DeviceRemoved(deviceID)
		l.b.record(ctx, journal.KindDevice, "removed", map[string]any{
			"device_id": deviceID,
			"forwarded": forwarded,
		})
	})
}
