// Package ledger turns a stream of per-frame identity matches into an
// append-only event log and a deduplicated per-session presence summary.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/roll-call/internal/database"
)

// Ledger records presence over time-bounded sessions. All heavy lifting is
// delegated to the store; the ledger owns the calling conventions: timestamp
// defaulting, the closed-session policy and conflict retries.
type Ledger struct {
	store database.AttendanceStore
	now   func() time.Time
}

// New creates a ledger over the given attendance store.
func New(store database.AttendanceStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// StartSession opens a new session for a course and returns its ID. Multiple
// open sessions per course are permitted.
func (l *Ledger) StartSession(ctx context.Context, courseID int64) (int64, error) {
	id, err := l.store.StartSession(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

// EndSession closes a session. Once closed a session is immutable and
// further RecordEvent calls against it fail with ErrSessionClosed.
func (l *Ledger) EndSession(ctx context.Context, sessionID int64) error {
	return l.store.EndSession(ctx, sessionID)
}

// Session returns the session, or nil if it does not exist.
func (l *Ledger) Session(ctx context.Context, sessionID int64) (*database.Session, error) {
	return l.store.GetSession(ctx, sessionID)
}

// RecordEvent records one detection of an identity in a session. A zero ts
// means now. Every call appends an event row; the attendance summary keeps
// exactly one row per (session, identity), inserting first_seen = last_seen
// on the first detection and advancing last_seen on later ones.
//
// A storage conflict means another writer inserted the summary row between
// our check and insert; the store merges on conflict, so a single retry
// re-derives the row instead of failing the detection.
func (l *Ledger) RecordEvent(ctx context.Context, sessionID int64, identity database.Identity, ts time.Time) error {
	if !identity.PersonType.Valid() {
		return fmt.Errorf("record event: unknown person type %q", identity.PersonType)
	}
	if ts.IsZero() {
		ts = l.now()
	}

	err := l.store.RecordEvent(ctx, sessionID, identity, ts)
	if errors.Is(err, database.ErrConflict) {
		err = l.store.RecordEvent(ctx, sessionID, identity, ts)
	}
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ExportSession returns the presence summary for a session, ordered by
// first_seen ascending.
func (l *Ledger) ExportSession(ctx context.Context, sessionID int64) ([]database.AttendanceRow, error) {
	rows, err := l.store.ExportSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("export session: %w", err)
	}
	return rows, nil
}

// Events returns the raw event log for a session.
func (l *Ledger) Events(ctx context.Context, sessionID int64) ([]database.Event, error) {
	return l.store.ListEvents(ctx, sessionID)
}
