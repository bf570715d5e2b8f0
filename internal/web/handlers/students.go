package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kozaktomas/roll-call/internal/database"
)

// StudentsHandler manages the student registry.
type StudentsHandler struct {
	store database.PeopleStore
}

// NewStudentsHandler creates a new students handler
func NewStudentsHandler(store database.PeopleStore) *StudentsHandler {
	return &StudentsHandler{store: store}
}

// studentResponse is the JSON shape of one student.
type studentResponse struct {
	ID          int64  `json:"id"`
	FullName    string `json:"full_name"`
	StudentCode string `json:"student_code,omitempty"`
}

func toStudentResponse(s database.Student) studentResponse {
	return studentResponse{ID: s.ID, FullName: s.FullName, StudentCode: s.StudentCode}
}

type upsertStudentRequest struct {
	FullName    string `json:"full_name"`
	StudentCode string `json:"student_code"`
}

// Upsert creates a student, or updates the name of the student holding the
// same student code.
func (h *StudentsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.FullName == "" {
		respondError(w, http.StatusBadRequest, "full_name is required")
		return
	}

	id, err := h.store.UpsertStudent(r.Context(), req.FullName, req.StudentCode)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, "student code already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to save student")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"id": id})
}

// Get returns one student.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid student ID")
		return
	}

	student, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	respondJSON(w, http.StatusOK, toStudentResponse(*student))
}

// Search matches student names case- and diacritics-insensitively.
func (h *StudentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	students, err := h.store.SearchStudents(r.Context(), query)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	out := make([]studentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, toStudentResponse(s))
	}
	respondJSON(w, http.StatusOK, out)
}
