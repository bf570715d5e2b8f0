package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/web/middleware"
)

// CoursesHandler manages courses and their rosters.
type CoursesHandler struct {
	store database.PeopleStore
}

// NewCoursesHandler creates a new courses handler
func NewCoursesHandler(store database.PeopleStore) *CoursesHandler {
	return &CoursesHandler{store: store}
}

type createCourseRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// courseResponse is the JSON shape of one course.
type courseResponse struct {
	ID        int64  `json:"id"`
	TeacherID int64  `json:"teacher_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
}

func toCourseResponse(c database.Course) courseResponse {
	return courseResponse{ID: c.ID, TeacherID: c.TeacherID, Name: c.Name, Code: c.Code}
}

// Create creates a course owned by the logged-in teacher.
func (h *CoursesHandler) Create(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "course name is required")
		return
	}

	id, err := h.store.CreateCourse(r.Context(), session.TeacherID, req.Name, req.Code)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, "course code already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create course")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// List returns the courses owned by the logged-in teacher.
func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	courses, err := h.store.ListCourses(r.Context(), session.TeacherID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}

	out := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, toCourseResponse(c))
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one course.
func (h *CoursesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	course, err := h.store.GetCourse(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get course")
		return
	}
	if course == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}

	respondJSON(w, http.StatusOK, toCourseResponse(*course))
}

// Roster returns the students enrolled in a course.
func (h *CoursesHandler) Roster(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	students, err := h.store.ListRoster(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list roster")
		return
	}

	out := make([]studentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, toStudentResponse(s))
	}
	respondJSON(w, http.StatusOK, out)
}

type enrollRequest struct {
	StudentID int64 `json:"student_id"`
}

// Enroll links a student to a course. Enrolling twice is a no-op.
func (h *CoursesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.StudentID <= 0 {
		respondError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	if err := h.store.EnrollStudent(r.Context(), id, req.StudentID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "course or student not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to enroll student")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
