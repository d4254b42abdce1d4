// Package journal provides SQLite-backed durable storage for bridge sessions.
//
// The journal is an append-only log with:
//   - Sessions: one row per bridge session, keyed by a UUIDv7 session id
//   - Entries: every host call the bridge handled and what it forwarded
//   - Buffered cloud data: the single blob awaiting upload, flushed when the
//     session stops
//
// # Ordering
//
// All ordering uses the bridge's logical seq, never wall-clock time. Reads
// are ORDER BY seq ASC so a session's timeline is identical on every read.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal
