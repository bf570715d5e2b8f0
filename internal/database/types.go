package database

import (
	"time"
)

// PersonType distinguishes the two enrollable populations.
type PersonType string

// Person types stored in faces, attendance and events rows.
const (
	PersonStudent PersonType = "student"
	PersonTeacher PersonType = "teacher"
)

// Valid reports whether t is one of the known person types.
func (t PersonType) Valid() bool {
	return t == PersonStudent || t == PersonTeacher
}

// Identity is the immutable value identifying a person across embeddings,
// sessions and events. Natural key is (PersonType, PersonID).
type Identity struct {
	PersonType  PersonType `json:"person_type"`
	PersonID    int64      `json:"person_id"`
	DisplayName string     `json:"display_name"`
	Code        string     `json:"code,omitempty"` // student code, empty for teachers
}

// Key returns the natural key used for index lookups.
func (i Identity) Key() IdentityKey {
	return IdentityKey{PersonType: i.PersonType, PersonID: i.PersonID}
}

// IdentityKey is the comparable natural key of an Identity.
type IdentityKey struct {
	PersonType PersonType
	PersonID   int64
}

// Teacher represents an authenticated course owner.
type Teacher struct {
	ID           int64
	Username     string
	PasswordHash string
	FullName     string
	CreatedAt    time.Time
}

// Course groups sessions and enrolled students under one teacher.
type Course struct {
	ID        int64
	TeacherID int64
	Name      string
	Code      string
	CreatedAt time.Time
}

// Student represents an enrollable person.
type Student struct {
	ID          int64
	FullName    string
	StudentCode string // unique when set, empty allowed
	CreatedAt   time.Time
}

// StoredFace represents a face embedding stored in the database.
// Quality and ImagePath are enrollment metadata, never used for matching.
type StoredFace struct {
	ID         int64
	PersonType PersonType
	PersonID   int64
	Embedding  []float32
	Quality    *float64
	ImagePath  string
	CreatedAt  time.Time
}

// IndexedFace pairs a stored embedding with the identity it resolves to.
/// This is the row shape the face index rebuilds from: the embedding joined
// with the owning person's display name and code.
type IndexedFace struct {
	Identity  Identity
	Embedding []float32
}

// Session is a bounded attendance window. Open while EndedAt is nil;
// once set the session is closed and immutable.
type Session struct {
	ID        int64      `json:"id"`
	CourseID  int64      `json:"course_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Closed reports whether the session has been ended.
func (s *Session) Closed() bool {
	return s.EndedAt != nil
}

// AttendanceRow is the deduplicated presence summary for one identity in one
// session. Exactly one row exists per (session, person type, person id).
type AttendanceRow struct {
	SessionID  int64      `json:"session_id"`
	PersonType PersonType `json:"person_type"`
	PersonID   int64      `json:"person_id"`
	FirstSeen  time.Time  `json:"first_seen"`
	LastSeen   time.Time  `json:"last_seen"`
}

// Event is one append-only row per recorded detection. Events are never
// updated or deleted; they are the audit trail attendance is derived from.
type Event struct {
	ID         int64      `json:"id"`
	SessionID  int64      `json:"session_id"`
	PersonType PersonType `json:"person_type"`
	PersonID   int64      `json:"person_id"`
	Timestamp  time.Time  `json:"ts"`
}
