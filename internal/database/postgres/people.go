package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/names"
)

// PeopleRepository provides PostgreSQL-backed storage for teachers, courses,
// students and enrollments.
type PeopleRepository struct {
	pool *Pool
}

// NewPeopleRepository creates a new PostgreSQL people repository.
func NewPeopleRepository(pool *Pool) *PeopleRepository {
	return &PeopleRepository{pool: pool}
}

// CreateTeacher stores a teacher with a bcrypt password hash and returns the ID.
func (r *PeopleRepository) CreateTeacher(ctx context.Context, username, password, fullName string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx, `
		INSERT INTO teachers (username, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING id
	`, username, string(hash), fullName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert teacher: %w", classify(err))
	}
	return id, nil
}

// GetTeacherByUsername returns nil if no teacher matches.
func (r *PeopleRepository) GetTeacherByUsername(ctx context.Context, username string) (*database.Teacher, error) {
	var t database.Teacher
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, full_name, created_at
		FROM teachers
		WHERE username = $1
	`, username).Scan(&t.ID, &t.Username, &t.PasswordHash, &t.FullName, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	return &t, nil
}

// GetTeacher returns nil if the teacher does not exist.
func (r *PeopleRepository) GetTeacher(ctx context.Context, id int64) (*database.Teacher, error) {
	var t database.Teacher
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, full_name, created_at
		FROM teachers
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Username, &t.PasswordHash, &t.FullName, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	return &t, nil
}

// VerifyTeacher checks credentials and returns the teacher ID, or 0 if invalid.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (r *PeopleRepository) VerifyTeacher(ctx context.Context, username, password string) (int64, error) {
	t, err := r.GetTeacherByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	if t == nil {
		return 0, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) != nil {
		return 0, nil
	}
	return t.ID, nil
}

// CreateCourse creates a course owned by a teacher and returns the ID.
func (r *PeopleRepository) CreateCourse(ctx context.Context, teacherID int64, name, code string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO courses (teacher_id, name, code)
		VALUES ($1, $2, $3)
		RETURNING id
	`, teacherID, name, code).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert course: %w", classify(err))
	}
	return id, nil
}

// GetCourse returns nil if the course does not exist.
func (r *PeopleRepository) GetCourse(ctx context.Context, id int64) (*database.Course, error) {
	var c database.Course
	err := r.pool.QueryRow(ctx, `
		SELECT id, teacher_id, name, code, created_at
		FROM courses
		WHERE id = $1
	`, id).Scan(&c.ID, &c.TeacherID, &c.Name, &c.Code, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &c, nil
}

// ListCourses returns all courses owned by a teacher.
func (r *PeopleRepository) ListCourses(ctx context.Context, teacherID int64) ([]database.Course, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, teacher_id, name, code, created_at
		FROM courses
		WHERE teacher_id = $1
		ORDER BY id
	`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var courses []database.Course
	for rows.Next() {
		var c database.Course
		if err := rows.Scan(&c.ID, &c.TeacherID, &c.Name, &c.Code, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

// UpsertStudent creates a student, or updates the name of the existing
// student with the same student code. Returns the student ID.
func (r *PeopleRepository) UpsertStudent(ctx context.Context, fullName, studentCode string) (int64, error) {
	var id int64
	var err error
	if studentCode != "" {
		err = r.pool.QueryRow(ctx, `
			INSERT INTO students (full_name, student_code)
			VALUES ($1, $2)
			ON CONFLICT (student_code) WHERE student_code IS NOT NULL
			DO UPDATE SET full_name = EXCLUDED.full_name
			RETURNING id
		`, fullName, studentCode).Scan(&id)
	} else {
		err = r.pool.QueryRow(ctx, `
			INSERT INTO students (full_name, student_code)
			VALUES ($1, NULL)
			RETURNING id
		`, fullName).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert student: %w", classify(err))
	}
	return id, nil
}

// GetStudent returns nil if the student does not exist.
func (r *PeopleRepository) GetStudent(ctx context.Context, id int64) (*database.Student, error) {
	var s database.Student
	var code sql.NullString
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, student_code, created_at
		FROM students
		WHERE id = $1
	`, id).Scan(&s.ID, &s.FullName, &code, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	s.StudentCode = code.String
	return &s, nil
}

// SearchStudents matches full names case- and diacritics-insensitively.
// Input is normalized in Go; the SQL side mirrors it with LOWER + unaccent
// so "jiri" finds "Jiří".
func (r *PeopleRepository) SearchStudents(ctx context.Context, name string) ([]database.Student, error) {
	normalized := names.Normalize(name)

	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, student_code, created_at
		FROM students
		WHERE LOWER(REPLACE(unaccent(full_name), '-', ' ')) LIKE '%' || $1 || '%'
		ORDER BY id
	`, normalized)
	if err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// EnrollStudent links a student to a course. Enrolling twice is a no-op.
func (r *PeopleRepository) EnrollStudent(ctx context.Context, courseID, studentID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO enrollments (course_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (course_id, student_id) DO NOTHING
	`, courseID, studentID)
	if err != nil {
		return fmt.Errorf("enroll student: %w", classify(err))
	}
	return nil
}

// ListRoster returns all students enrolled in a course.
func (r *PeopleRepository) ListRoster(ctx context.Context, courseID int64) ([]database.Student, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.full_name, s.student_code, s.created_at
		FROM students s
		JOIN enrollments e ON e.student_id = s.id
		WHERE e.course_id = $1
		ORDER BY s.full_name, s.id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

func scanStudents(rows *sql.Rows) ([]database.Student, error) {
	var students []database.Student
	for rows.Next() {
		var s database.Student
		var code sql.NullString
		if err := rows.Scan(&s.ID, &s.FullName, &code, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		s.StudentCode = code.String
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}
