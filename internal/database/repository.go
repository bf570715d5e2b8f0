package database

import (
	"context"
	"time"
)

// FaceStore provides access to enrolled face embeddings. LoadAllFaces is the
// catalog the in-memory index rebuilds from.
type FaceStore interface {
	// AddFace stores one embedding for a person and returns the row ID.
	// The embedding is stored as given; callers normalize before storing.
	AddFace(ctx context.Context, face StoredFace) (int64, error)
	// LoadAllFaces returns every stored embedding joined with its identity.
	LoadAllFaces(ctx context.Context) ([]IndexedFace, error)
	// CountFaces returns the number of stored embeddings for a person.
	CountFaces(ctx context.Context, personType PersonType, personID int64) (int, error)
}

// PeopleStore manages teachers, courses, students and enrollments.
type PeopleStore interface {
	// CreateTeacher stores a teacher with a bcrypt password hash and returns the ID.
	CreateTeacher(ctx context.Context, username, password, fullName string) (int64, error)
	// GetTeacherByUsername returns nil if no teacher matches.
	GetTeacherByUsername(ctx context.Context, username string) (*Teacher, error)
	// GetTeacher returns nil if the teacher does not exist.
	GetTeacher(ctx context.Context, id int64) (*Teacher, error)
	// VerifyTeacher checks credentials and returns the teacher ID, or 0 if invalid.
	VerifyTeacher(ctx context.Context, username, password string) (int64, error)

	// CreateCourse creates a course owned by a teacher and returns the ID.
	CreateCourse(ctx context.Context, teacherID int64, name, code string) (int64, error)
	// GetCourse returns nil if the course does not exist.
	GetCourse(ctx context.Context, id int64) (*Course, error)
	// ListCourses returns all courses owned by a teacher.
	ListCourses(ctx context.Context, teacherID int64) ([]Course, error)

	// UpsertStudent creates a student, or updates the name of the existing
	// student with the same student code. Returns the student ID.
	UpsertStudent(ctx context.Context, fullName, studentCode string) (int64, error)
	// GetStudent returns nil if the student does not exist.
	GetStudent(ctx context.Context, id int64) (*Student, error)
	// SearchStudents matches full names case- and diacritics-insensitively.
	SearchStudents(ctx context.Context, name string) ([]Student, error)
	// EnrollStudent links a student to a course. Idempotent.
	EnrollStudent(ctx context.Context, courseID, studentID int64) error
	// ListRoster returns all students enrolled in a course.
	ListRoster(ctx context.Context, courseID int64) ([]Student, error)
}

// AttendanceStore records sessions, raw detection events and the per-session
// presence summary. Implementations must enforce the one-row-per
// (session, person type, person id) attendance invariant as a real storage
// constraint, not an application-side check: concurrent RecordEvent calls for
// the same pair must converge on a single row.
type AttendanceStore interface {
	// StartSession opens a session for a course and returns its ID.
	StartSession(ctx context.Context, courseID int64) (int64, error)
	// EndSession closes a session. Closing an already closed session is an error.
	EndSession(ctx context.Context, sessionID int64) error
	// GetSession returns nil if the session does not exist.
	GetSession(ctx context.Context, sessionID int64) (*Session, error)
	// RecordEvent appends one event row and upserts the attendance summary:
	// first detection inserts first_seen = last_seen = ts, later detections
	// only advance last_seen. The append and the upsert happen atomically.
	RecordEvent(ctx context.Context, sessionID int64, identity Identity, ts time.Time) error
	// ExportSession returns the attendance summary ordered by first_seen
	// ascending, ties broken by person type and ID.
	ExportSession(ctx context.Context, sessionID int64) ([]AttendanceRow, error)
	// ListEvents returns the raw event log for a session in insertion order.
	ListEvents(ctx context.Context, sessionID int64) ([]Event, error)
}

// Store is the full persistence surface of the service.
type Store interface {
	FaceStore
	PeopleStore
	AttendanceStore
}
