package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/engine"
	"github.com/kozaktomas/roll-call/internal/faceindex"
	"github.com/kozaktomas/roll-call/internal/ledger"
	"github.com/kozaktomas/roll-call/internal/recognize"
)

// SessionsHandler drives the attendance session lifecycle: start, frame
// ingestion, live streaming, end and export.
type SessionsHandler struct {
	store  database.Store
	ledger *ledger.Ledger
	index  *faceindex.Index
	engine engine.Engine
	hub    *SessionHub
	cfg    config.RecognitionConfig
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(store database.Store, l *ledger.Ledger, index *faceindex.Index, eng engine.Engine, hub *SessionHub, cfg config.RecognitionConfig) *SessionsHandler {
	return &SessionsHandler{
		store:  store,
		ledger: l,
		index:  index,
		engine: eng,
		hub:    hub,
		cfg:    cfg,
	}
}

// sessionResponse is the JSON shape of one session.
type sessionResponse struct {
	ID        int64      `json:"id"`
	CourseID  int64      `json:"course_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Live      bool       `json:"live"`
}

// Start opens a new attendance session for a course and begins accepting
// camera frames for it.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	sessionID, err := h.ledger.StartSession(r.Context(), courseID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "course not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	processor := recognize.New(h.engine, h.index, h.ledger, h.cfg, sessionID)
	h.hub.Open(sessionID, courseID, processor)

	respondJSON(w, http.StatusCreated, map[string]int64{"session_id": sessionID})
}

// End closes a session. Frames and events are rejected afterwards.
func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	if err := h.ledger.EndSession(r.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			respondError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, database.ErrSessionClosed):
			respondError(w, http.StatusConflict, "session already ended")
		default:
			respondError(w, http.StatusInternalServerError, "failed to end session")
		}
		return
	}

	h.hub.Close(sessionID)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Get returns one session.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	session, err := h.ledger.Session(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{
		ID:        session.ID,
		CourseID:  session.CourseID,
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
		Live:      h.hub.Get(sessionID) != nil,
	})
}

// Frame accepts one camera frame for an open session and returns the
// per-face recognition outcome.
func (h *SessionsHandler) Frame(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	live := h.hub.Get(sessionID)
	if live == nil {
		respondError(w, http.StatusConflict, "session is not live on this instance")
		return
	}

	frame, err := readUploadedFile(r, "frame")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing or invalid frame upload")
		return
	}

	result, err := live.processor.ProcessFrame(r.Context(), frame)
	if err != nil {
		if errors.Is(err, database.ErrSessionClosed) {
			respondError(w, http.StatusConflict, "session already ended")
			return
		}
		respondError(w, http.StatusBadGateway, "frame processing failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// attendanceRowResponse joins an attendance row with its display identity.
type attendanceRowResponse struct {
	PersonType  database.PersonType `json:"person_type"`
	PersonID    int64               `json:"person_id"`
	DisplayName string              `json:"display_name,omitempty"`
	Code        string              `json:"code,omitempty"`
	FirstSeen   time.Time           `json:"first_seen"`
	LastSeen    time.Time           `json:"last_seen"`
}

// Export returns the deduplicated attendance summary of a session, ordered by
// first appearance.
func (h *SessionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	session, err := h.ledger.Session(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	rows, err := h.ledger.ExportSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to export session")
		return
	}

	out := make([]attendanceRowResponse, 0, len(rows))
	for _, row := range rows {
		resp := attendanceRowResponse{
			PersonType: row.PersonType,
			PersonID:   row.PersonID,
			FirstSeen:  row.FirstSeen,
			LastSeen:   row.LastSeen,
		}
		resp.DisplayName, resp.Code = h.displayIdentity(r, row.PersonType, row.PersonID)
		out = append(out, resp)
	}
	respondJSON(w, http.StatusOK, out)
}

// displayIdentity resolves the display fields, tolerating deleted people.
func (h *SessionsHandler) displayIdentity(r *http.Request, personType database.PersonType, personID int64) (string, string) {
	switch personType {
	case database.PersonStudent:
		if s, err := h.store.GetStudent(r.Context(), personID); err == nil && s != nil {
			return s.FullName, s.StudentCode
		}
	case database.PersonTeacher:
		if t, err := h.store.GetTeacher(r.Context(), personID); err == nil && t != nil {
			return t.FullName, ""
		}
	}
	return "", ""
}

// Events returns the raw detection event log of a session.
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	session, err := h.ledger.Session(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	events, err := h.ledger.Events(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// Live streams recorded sightings of an open session as server-sent events.
func (h *SessionsHandler) Live(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	live := h.hub.Get(sessionID)
	if live == nil {
		respondError(w, http.StatusNotFound, "session is not live")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := live.AddListener()
	defer live.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", live)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if event.Type == "ended" {
				return
			}
		}
	}
}

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}
