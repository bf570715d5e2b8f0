// Package mock provides an in-memory implementation of the store interfaces
// for testing. It mirrors the PostgreSQL semantics, including the attendance
// uniqueness invariant and the closed-session policy.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/names"
)

type attendanceKey struct {
	sessionID  int64
	personType database.PersonType
	personID   int64
}

type enrollmentKey struct {
	courseID  int64
	studentID int64
}

// Store is an in-memory database.Store. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	nextID     int64
	teachers   map[int64]database.Teacher
	courses    map[int64]database.Course
	students   map[int64]database.Student
	enrolled   map[enrollmentKey]bool
	faces      []database.StoredFace
	sessions   map[int64]database.Session
	attendance map[attendanceKey]database.AttendanceRow
	events     []database.Event

	// Error injection
	AddFaceError      error
	LoadAllFacesError error
	RecordEventError  error
	StartSessionError error
	ExportError       error
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		teachers:   make(map[int64]database.Teacher),
		courses:    make(map[int64]database.Course),
		students:   make(map[int64]database.Student),
		enrolled:   make(map[enrollmentKey]bool),
		sessions:   make(map[int64]database.Session),
		attendance: make(map[attendanceKey]database.AttendanceRow),
	}
}

// id assumes the lock is held.
func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// --- faces ---

// AddFace stores one embedding and returns the row ID.
func (s *Store) AddFace(ctx context.Context, face database.StoredFace) (int64, error) {
	if s.AddFaceError != nil {
		return 0, s.AddFaceError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	face.ID = s.id()
	face.CreatedAt = time.Now()
	emb := make([]float32, len(face.Embedding))
	copy(emb, face.Embedding)
	face.Embedding = emb
	s.faces = append(s.faces, face)
	return face.ID, nil
}

// LoadAllFaces joins stored faces with their identities, skipping faces
// whose person no longer exists.
func (s *Store) LoadAllFaces(ctx context.Context) ([]database.IndexedFace, error) {
	if s.LoadAllFacesError != nil {
		return nil, s.LoadAllFacesError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.IndexedFace
	for _, f := range s.faces {
		identity, ok := s.resolveIdentity(f.PersonType, f.PersonID)
		if !ok {
			continue
		}
		out = append(out, database.IndexedFace{Identity: identity, Embedding: f.Embedding})
	}
	return out, nil
}

// resolveIdentity assumes the lock is held.
func (s *Store) resolveIdentity(personType database.PersonType, personID int64) (database.Identity, bool) {
	switch personType {
	case database.PersonStudent:
		st, ok := s.students[personID]
		if !ok {
			return database.Identity{}, false
		}
		return database.Identity{
			PersonType:  database.PersonStudent,
			PersonID:    personID,
			DisplayName: st.FullName,
			Code:        st.StudentCode,
		}, true
	case database.PersonTeacher:
		t, ok := s.teachers[personID]
		if !ok {
			return database.Identity{}, false
		}
		return database.Identity{
			PersonType:  database.PersonTeacher,
			PersonID:    personID,
			DisplayName: t.FullName,
		}, true
	}
	return database.Identity{}, false
}

// CountFaces returns the number of stored embeddings for a person.
func (s *Store) CountFaces(ctx context.Context, personType database.PersonType, personID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, f := range s.faces {
		if f.PersonType == personType && f.PersonID == personID {
			count++
		}
	}
	return count, nil
}

// --- teachers, courses, students ---

// CreateTeacher stores a teacher with a bcrypt password hash.
func (s *Store) CreateTeacher(ctx context.Context, username, password, fullName string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.teachers {
		if t.Username == username {
			return 0, fmt.Errorf("insert teacher: %w", database.ErrConflict)
		}
	}
	id := s.id()
	s.teachers[id] = database.Teacher{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		FullName:     fullName,
		CreatedAt:    time.Now(),
	}
	return id, nil
}

// GetTeacherByUsername returns nil if no teacher matches.
func (s *Store) GetTeacherByUsername(ctx context.Context, username string) (*database.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.teachers {
		if t.Username == username {
			out := t
			return &out, nil
		}
	}
	return nil, nil
}

// GetTeacher returns nil if the teacher does not exist.
func (s *Store) GetTeacher(ctx context.Context, id int64) (*database.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teachers[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// VerifyTeacher checks credentials and returns the teacher ID, or 0 if invalid.
func (s *Store) VerifyTeacher(ctx context.Context, username, password string) (int64, error) {
	t, err := s.GetTeacherByUsername(ctx, username)
	if err != nil || t == nil {
		return 0, err
	}
	if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) != nil {
		return 0, nil
	}
	return t.ID, nil
}

// CreateCourse creates a course owned by a teacher.
func (s *Store) CreateCourse(ctx context.Context, teacherID int64, name, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teachers[teacherID]; !ok {
		return 0, fmt.Errorf("insert course: teacher %d: %w", teacherID, database.ErrNotFound)
	}
	id := s.id()
	s.courses[id] = database.Course{
		ID:        id,
		TeacherID: teacherID,
		Name:      name,
		Code:      code,
		CreatedAt: time.Now(),
	}
	return id, nil
}

// GetCourse returns nil if the course does not exist.
func (s *Store) GetCourse(ctx context.Context, id int64) (*database.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// ListCourses returns all courses owned by a teacher.
func (s *Store) ListCourses(ctx context.Context, teacherID int64) ([]database.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.Course
	for _, c := range s.courses {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertStudent creates a student or updates the one with the same code.
func (s *Store) UpsertStudent(ctx context.Context, fullName, studentCode string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if studentCode != "" {
		for id, st := range s.students {
			if st.StudentCode == studentCode {
				st.FullName = fullName
				s.students[id] = st
				return id, nil
			}
		}
	}
	id := s.id()
	s.students[id] = database.Student{
		ID:          id,
		FullName:    fullName,
		StudentCode: studentCode,
		CreatedAt:   time.Now(),
	}
	return id, nil
}

// GetStudent returns nil if the student does not exist.
func (s *Store) GetStudent(ctx context.Context, id int64) (*database.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// SearchStudents matches full names case- and diacritics-insensitively.
func (s *Store) SearchStudents(ctx context.Context, name string) ([]database.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := names.Normalize(name)
	var out []database.Student
	for _, st := range s.students {
		if strings.Contains(names.Normalize(st.FullName), query) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EnrollStudent links a student to a course. Idempotent.
func (s *Store) EnrollStudent(ctx context.Context, courseID, studentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[courseID]; !ok {
		return fmt.Errorf("enroll student: course %d: %w", courseID, database.ErrNotFound)
	}
	if _, ok := s.students[studentID]; !ok {
		return fmt.Errorf("enroll student: student %d: %w", studentID, database.ErrNotFound)
	}
	s.enrolled[enrollmentKey{courseID: courseID, studentID: studentID}] = true
	return nil
}

// ListRoster returns all students enrolled in a course.
func (s *Store) ListRoster(ctx context.Context, courseID int64) ([]database.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.Student
	for key := range s.enrolled {
		if key.courseID != courseID {
			continue
		}
		if st, ok := s.students[key.studentID]; ok {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- sessions, attendance, events ---

// StartSession opens a session for a course.
func (s *Store) StartSession(ctx context.Context, courseID int64) (int64, error) {
	if s.StartSessionError != nil {
		return 0, s.StartSessionError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[courseID]; !ok {
		return 0, fmt.Errorf("insert session: course %d: %w", courseID, database.ErrNotFound)
	}
	id := s.id()
	s.sessions[id] = database.Session{
		ID:        id,
		CourseID:  courseID,
		StartedAt: time.Now(),
	}
	return id, nil
}

// EndSession closes a session.
func (s *Store) EndSession(ctx context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("end session %d: %w", sessionID, database.ErrNotFound)
	}
	if session.Closed() {
		return fmt.Errorf("end session %d: %w", sessionID, database.ErrSessionClosed)
	}
	now := time.Now()
	session.EndedAt = &now
	s.sessions[sessionID] = session
	return nil
}

// GetSession returns nil if the session does not exist.
func (s *Store) GetSession(ctx context.Context, sessionID int64) (*database.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// RecordEvent appends one event and upserts the attendance summary under a
// single lock, mirroring the transactional PostgreSQL behavior.
func (s *Store) RecordEvent(ctx context.Context, sessionID int64, identity database.Identity, ts time.Time) error {
	if s.RecordEventError != nil {
		return s.RecordEventError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("record event: session %d: %w", sessionID, database.ErrNotFound)
	}
	if session.Closed() {
		return fmt.Errorf("record event: session %d: %w", sessionID, database.ErrSessionClosed)
	}

	s.events = append(s.events, database.Event{
		ID:         s.id(),
		SessionID:  sessionID,
		PersonType: identity.PersonType,
		PersonID:   identity.PersonID,
		Timestamp:  ts,
	})

	key := attendanceKey{sessionID: sessionID, personType: identity.PersonType, personID: identity.PersonID}
	row, ok := s.attendance[key]
	if !ok {
		row = database.AttendanceRow{
			SessionID:  sessionID,
			PersonType: identity.PersonType,
			PersonID:   identity.PersonID,
			FirstSeen:  ts,
			LastSeen:   ts,
		}
	} else {
		if ts.Before(row.FirstSeen) {
			row.FirstSeen = ts
		}
		if ts.After(row.LastSeen) {
			row.LastSeen = ts
		}
	}
	s.attendance[key] = row
	return nil
}

// ExportSession returns attendance rows ordered by first_seen ascending,
// ties broken by person type and ID.
func (s *Store) ExportSession(ctx context.Context, sessionID int64) ([]database.AttendanceRow, error) {
	if s.ExportError != nil {
		return nil, s.ExportError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.AttendanceRow
	for key, row := range s.attendance {
		if key.sessionID == sessionID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		if out[i].PersonType != out[j].PersonType {
			return out[i].PersonType < out[j].PersonType
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out, nil
}

// ListEvents returns the raw event log for a session in insertion order.
func (s *Store) ListEvents(ctx context.Context, sessionID int64) ([]database.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.Event
	for _, e := range s.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}
