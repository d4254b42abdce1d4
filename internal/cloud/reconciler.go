package cloud

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Sink is the engine side of cloud sync.
type Sink interface {
	// CloudDataLoaded receives the host code, its mapped status and the
	// decoded text. data is nil when the load carried no bytes or they could
	// not be decoded.
	CloudDataLoaded(code int, status Status, data *string)

	// CloudDataConflict resolves local against remote data.
	CloudDataConflict(local, remote string) string
}

// Persister stores buffered cloud data until it can be uploaded.
type Persister interface {
	SaveBuffered(data string) error
}

// Outcome is what OnLoaded forwarded to the engine.
type Outcome struct {
	Code   int
	Status Status
	Data   *string
	Err    error // decode error, when Status is StatusDecodeFailed
}

// Reconciler handles cloud load completions.
//
// Thread-safety: BeginLoad and InFlight are safe from any goroutine. Every
// other method must run on the delivery goroutine; the bridge marshals the
// host's background completion callback there before calling OnLoaded.
type Reconciler struct {
	sink     Sink
	inFlight atomic.Bool
	buffered *string
	logger   *slog.Logger
}

// NewReconciler creates a reconciler with no load in flight.
func NewReconciler(sink Sink, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{sink: sink, logger: logger}
}

// BeginLoad claims the in-flight flag. It returns false when a load is
// already outstanding, in which case the caller must not issue another.
func (r *Reconciler) BeginLoad() bool {
	return r.inFlight.CompareAndSwap(false, true)
}

// InFlight reports whether a load is outstanding.
func (r *Reconciler) InFlight() bool {
	return r.inFlight.Load()
}

// OnLoaded reconciles one completed load. raw == nil means the load carried
// no data; an empty non-nil slice is present, empty data.
func (r *Reconciler) OnLoaded(code int, raw []byte) Outcome {
	defer r.inFlight.Store(false)

	out := Outcome{Code: code, Status: StatusFromCode(code)}
	data, err := Decode(raw)
	if err != nil {
		out.Status = StatusDecodeFailed
		out.Err = err
		r.logger.Warn("cloud data not valid UTF-8",
			"code", code,
			"bytes", len(raw),
			"error", err,
		)
	} else {
		out.Data = data
	}

	r.logger.Info("cloud data loaded",
		"code", code,
		"status", out.Status.String(),
		"has_data", out.Data != nil,
	)
	r.sink.CloudDataLoaded(out.Code, out.Status, out.Data)
	return out
}

// ResolveConflict hands both sides of a conflict to the engine and returns
// its resolution.
func (r *Reconciler) ResolveConflict(local, remote string) string {
	resolved := r.sink.CloudDataConflict(local, remote)
	r.logger.Info("cloud conflict resolved",
		"local_len", len(local),
		"remote_len", len(remote),
		"resolved_len", len(resolved),
	)
	return resolved
}

// Buffer holds data to upload once the cloud is reachable. A later call
// replaces an earlier one.
func (r *Reconciler) Buffer(data string) {
	r.buffered = &data
}

// Buffered returns the buffered data, if any.
func (r *Reconciler) Buffered() (string, bool) {
	if r.buffered == nil {
		return "", false
	}
	return *r.buffered, true
}

// Take returns the buffered data and empties the buffer. Call it when the
// data is handed off for upload.
func (r *Reconciler) Take() (string, bool) {
	data, ok := r.Buffered()
	r.buffered = nil
	return data, ok
}

// Flush persists buffered data and clears it on success. A nil persister or
// an empty buffer is a no-op.
func (r *Reconciler) Flush(p Persister) error {
	if r.buffered == nil || p == nil {
		return nil
	}
	if err := p.SaveBuffered(*r.buffered); err != nil {
		return fmt.Errorf("flush buffered cloud data: %w", err)
	}
	r.logger.Debug("buffered cloud data flushed", "bytes", len(*r.buffered))
	r.buffered = nil
	return nil
}

// ErrInvalidUTF8 is returned by Decode for undecodable bytes.
var ErrInvalidUTF8 = encoding.ErrInvalidUTF8

// Decode turns raw save bytes into text. nil stays nil.
func Decode(raw []byte) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	if _, _, err := transform.Bytes(encoding.UTF8Validator, raw); err != nil {
		if errors.Is(err, encoding.ErrInvalidUTF8) {
			return nil, err
		}
		return nil, fmt.Errorf("decode cloud data: %w", err)
	}
	s := string(raw)
	return &s, nil
}
