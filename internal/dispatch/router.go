package dispatch

import (
	"log/slog"

	"github.com/roach88/voltbridge/internal/input"
)

// Result is the outcome of routing one event.
type Result int

const (
	Fallthrough Result = iota
	Consumed
)

func (r Result) String() string {
	if r == Consumed {
		return "consumed"
	}
	return "fallthrough"
}

// MotionHandlers receives motion events the router intercepts.
type MotionHandlers interface {
	GamepadMotion(e *input.Event) bool
	TouchNavigationMotion(e *input.Event) bool
}

// KeyHandlers receives key events the router intercepts.
type KeyHandlers interface {
	GamepadKey(e *input.Event) bool
	TouchNavigationKey(e *input.Event) bool
	KeyboardKey(e *input.Event) bool
}

// Handlers is the engine side of dispatch.
type Handlers interface {
	MotionHandlers
	KeyHandlers
}

// Fallback is the host toolkit's own event handling.
type Fallback interface {
	DispatchMotion(e *input.Event) bool
	DispatchKey(e *input.Event) bool
}

type route struct {
	category input.Category
	handle   func(*input.Event) bool
}

// Router dispatches events to Handlers.
//
// Thread-safety: not safe for concurrent use. The bridge calls it from the
// delivery goroutine only.
type Router struct {
	motion   []route
	key      []route
	volume   *VolumeKeys
	fallback Fallback
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithVolumeKeys installs the volume side channel.
func WithVolumeKeys(v *VolumeKeys) Option {
	return func(r *Router) {
		r.volume = v
	}
}

// WithFallback sets the host toolkit handling for fall-through events.
func WithFallback(f Fallback) Option {
	return func(r *Router) {
		r.fallback = f
	}
}

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// NewRouter builds the fixed priority tables over h.
func NewRouter(h Handlers, opts ...Option) *Router {
	r := &Router{
		motion: []route{
			{input.Gamepad, h.GamepadMotion},
			{input.TouchNavigation, h.TouchNavigationMotion},
		},
		key: []route{
			{input.Gamepad, h.GamepadKey},
			{input.TouchNavigation, h.TouchNavigationKey},
			{input.Keyboard, h.KeyboardKey},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies e and calls at most one engine handler.
// It never consults the fallback.
func (r *Router) Route(e *input.Event) (input.Category, Result) {
	if e == nil {
		return input.Unclassified, Fallthrough
	}

	if e.IsKey() && r.volume != nil {
		r.volume.Observe(e)
	}

	var table []route
	switch e.Kind {
	case input.KindMotion:
		table = r.motion
	case input.KindKey:
		table = r.key
	default:
		return input.Unclassified, Fallthrough
	}

	category := input.Classify(e)
	if category == input.Unclassified {
		return category, Fallthrough
	}

	for _, rt := range table {
		if rt.category != category {
			continue
		}
		consumed := rt.handle(e)
		r.logger.Debug("input routed",
			"kind", e.Kind.String(),
			"device", e.DeviceID,
			"category", category.String(),
			"consumed", consumed,
		)
		if consumed {
			return category, Consumed
		}
		return category, Fallthrough
	}

	return category, Fallthrough
}

// Delivery describes how one event was handled.
type Delivery struct {
	Category input.Category
	Result   Result

	// Offered is set when the event fell through to the fallback.
	Offered bool

	// Handled is the answer returned to the host.
	Handled bool
}

// Deliver routes e and offers anything not consumed to the fallback.
func (r *Router) Deliver(e *input.Event) Delivery {
	category, res := r.Route(e)
	d := Delivery{Category: category, Result: res}
	if res == Consumed {
		d.Handled = true
		return d
	}
	if r.fallback == nil || e == nil {
		return d
	}
	d.Offered = true
	if e.IsMotion() {
		d.Handled = r.fallback.DispatchMotion(e)
	} else {
		d.Handled = r.fallback.DispatchKey(e)
	}
	return d
}
