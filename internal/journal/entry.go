package journal

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Entry kinds.
const (
	KindLifecycle = "lifecycle"
	KindKey       = "key"
	KindMotion    = "motion"
	KindDevice    = "device"
	KindCloud     = "cloud"
	KindUpdate    = "update"
	KindSignIn    = "sign_in"
)

// Entry is one journaled host call.
type Entry struct {
	SessionID string         `json:"session_id"`
	Seq       int64          `json:"seq"`
	Kind      string         `json:"kind"`
	Name      string         `json:"name"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Session is one journaled bridge session.
type Session struct {
	ID         string `json:"id"`
	StartedSeq int64  `json:"started_seq"`
	Entries    int    `json:"entries"`
}

// BeginSession records a session. Duplicate ids are ignored.
func (j *Journal) BeginSession(ctx context.Context, id string, seq int64) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_seq)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, seq)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// Append writes an entry. Writing the same (session, seq) twice is a no-op.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	detail, err := marshalDetail(e.Detail)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO entries (session_id, seq, kind, name, detail)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`, e.SessionID, e.Seq, e.Kind, e.Name, detail)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// ReadEntries returns a session's entries in seq order.
// Returns an empty slice (not nil) if the session has no entries.
func (j *Journal) ReadEntries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, name, detail
		FROM entries
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var detail string
		if err := rows.Scan(&e.SessionID, &e.Seq, &e.Kind, &e.Name, &detail); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Detail, err = unmarshalDetail(detail); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ListSessions returns all sessions ordered by start seq, then id.
func (j *Journal) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.started_seq, COUNT(e.seq)
		FROM sessions s
		LEFT JOIN entries e ON e.session_id = s.id
		GROUP BY s.id, s.started_seq
		ORDER BY s.started_seq ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.StartedSeq, &s.Entries); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// cloudSlot is the only buffered-data slot: there is one save blob per app.
const cloudSlot = "cloud"

// SaveBuffered replaces the buffered cloud data.
func (j *Journal) SaveBuffered(ctx context.Context, sessionID string, seq int64, data string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO buffered_cloud_data (slot, session_id, seq, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			session_id = excluded.session_id,
			seq = excluded.seq,
			data = excluded.data
	`, cloudSlot, sessionID, seq, data)
	if err != nil {
		return fmt.Errorf("save buffered data: %w", err)
	}
	return nil
}

// LoadBuffered returns the buffered cloud data, if any.
func (j *Journal) LoadBuffered(ctx context.Context) (string, bool, error) {
	var data string
	err := j.db.QueryRowContext(ctx, `
		SELECT data FROM buffered_cloud_data WHERE slot = ?
	`, cloudSlot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load buffered data: %w", err)
	}
	return data, true, nil
}

// ClearBuffered removes the buffered cloud data once it has been uploaded.
func (j *Journal) ClearBuffered(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM buffered_cloud_data WHERE slot = ?`, cloudSlot); err != nil {
		return fmt.Errorf("clear buffered data: %w", err)
	}
	return nil
}

// MaxSeq returns the highest seq any session or entry has used, or 0 for an
// empty journal.
func (j *Journal) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM entries), 0),
			COALESCE((SELECT MAX(started_seq) FROM sessions), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq, nil
}

// marshalDetail encodes detail as JSON with sorted keys and no HTML escaping.
func marshalDetail(detail map[string]any) (string, error) {
	if len(detail) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(detail); err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalDetail(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var detail map[string]any
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&detail); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	return detail, nil
}
