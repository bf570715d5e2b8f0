package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/roll-call/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed storage for sessions, raw
// detection events and the deduplicated attendance summary.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// StartSession opens a session for a course and returns its ID.
func (r *AttendanceRepository) StartSession(ctx context.Context, courseID int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (course_id, started_at)
		VALUES ($1, NOW())
		RETURNING id
	`, courseID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", classify(err))
	}
	return id, nil
}

// EndSession closes a session. Ending a missing session returns ErrNotFound,
// ending an already closed one returns ErrSessionClosed.
func (r *AttendanceRepository) EndSession(ctx context.Context, sessionID int64) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE sessions SET ended_at = NOW()
		WHERE id = $1 AND ended_at IS NULL
	`, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("end session %d: %w", sessionID, database.ErrNotFound)
	}
	return fmt.Errorf("end session %d: %w", sessionID, database.ErrSessionClosed)
}

// GetSession returns nil if the session does not exist.
func (r *AttendanceRepository) GetSession(ctx context.Context, sessionID int64) (*database.Session, error) {
	var s database.Session
	err := r.pool.QueryRow(ctx, `
		SELECT id, course_id, started_at, ended_at
		FROM sessions
		WHERE id = $1
	`, sessionID).Scan(&s.ID, &s.CourseID, &s.StartedAt, &s.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// RecordEvent appends one event row and upserts the attendance summary in a
// single transaction. The unique constraint on (session_id, person_type,
// person_id) makes the upsert atomic even under concurrent callers: the
// loser of a concurrent insert is turned into an update by ON CONFLICT,
// never into a duplicate row. LEAST/GREATEST keep first_seen <= last_seen
// correct under out-of-order delivery.
func (r *AttendanceRepository) RecordEvent(ctx context.Context, sessionID int64, identity database.Identity, ts time.Time) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var endedAt sql.NullTime
	err = tx.QueryRowContext(ctx,
		"SELECT ended_at FROM sessions WHERE id = $1", sessionID,
	).Scan(&endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record event: session %d: %w", sessionID, database.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("record event: check session: %w", err)
	}
	if endedAt.Valid {
		return fmt.Errorf("record event: session %d: %w", sessionID, database.ErrSessionClosed)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (session_id, person_type, person_id, ts)
		VALUES ($1, $2, $3, $4)
	`, sessionID, identity.PersonType, identity.PersonID, ts)
	if err != nil {
		return fmt.Errorf("insert event: %w", classify(err))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attendance (session_id, person_type, person_id, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (session_id, person_type, person_id) DO UPDATE SET
			first_seen = LEAST(attendance.first_seen, EXCLUDED.first_seen),
			last_seen = GREATEST(attendance.last_seen, EXCLUDED.last_seen)
	`, sessionID, identity.PersonType, identity.PersonID, ts)
	if err != nil {
		return fmt.Errorf("upsert attendance: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ExportSession returns the attendance summary ordered by first_seen
// ascending, ties broken by person type and ID.
func (r *AttendanceRepository) ExportSession(ctx context.Context, sessionID int64) ([]database.AttendanceRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id, person_type, person_id, first_seen, last_seen
		FROM attendance
		WHERE session_id = $1
		ORDER BY first_seen, person_type, person_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var out []database.AttendanceRow
	for rows.Next() {
		var a database.AttendanceRow
		if err := rows.Scan(&a.SessionID, &a.PersonType, &a.PersonID, &a.FirstSeen, &a.LastSeen); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return out, nil
}

// ListEvents returns the raw event log for a session in insertion order.
func (r *AttendanceRepository) ListEvents(ctx context.Context, sessionID int64) ([]database.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, person_type, person_id, ts
		FROM events
		WHERE session_id = $1
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []database.Event
	for rows.Next() {
		var e database.Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.PersonType, &e.PersonID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
