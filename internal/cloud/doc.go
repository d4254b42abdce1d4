// Package cloud reconciles asynchronous cloud save-data loads with the engine.
//
// A load completes with a host status code and optional raw bytes. The
// reconciler decodes the bytes as UTF-8 (absent stays absent, never ""),
// maps the code onto a closed set of outcomes, forwards both to the engine and
// clears the in-flight flag on every path.
//
// The in-flight flag is a single-owner token: BeginLoad claims it before the
// external trigger issues a load, OnLoaded releases it. It is advisory only;
// there is no cancellation and no timeout, so a load that never completes
// leaves the flag set.
//
// Conflict resolution between local and remote data is not decided here; both
// sides are handed to the engine, which returns the resolved text.
package cloud
