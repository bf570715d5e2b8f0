package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/roll-call/internal/database/mock"
	"github.com/kozaktomas/roll-call/internal/web/middleware"
)

func TestLoginSuccess(t *testing.T) {
	store := mock.NewStore()
	seedTeacher(t, store)
	sm := middleware.NewSessionManager("test-secret")
	handler := NewAuthHandler(store, sm)

	req := jsonRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "novak",
		"password": "secret",
	})
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp LoginResponse
	parseJSONResponse(t, rec, &resp)
	if !resp.Success || resp.SessionID == "" {
		t.Errorf("response = %+v", resp)
	}

	// A session cookie must be set.
	cookies := rec.Result().Cookies()
	found := false
	for _, c := range cookies {
		if strings.Contains(c.Name, "session") && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("session cookie not set")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	store := mock.NewStore()
	seedTeacher(t, store)
	handler := NewAuthHandler(store, middleware.NewSessionManager("test-secret"))

	req := jsonRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "novak",
		"password": "wrong",
	})
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assertStatusCode(t, rec, http.StatusUnauthorized)
}

func TestLoginUnknownUser(t *testing.T) {
	store := mock.NewStore()
	handler := NewAuthHandler(store, middleware.NewSessionManager("test-secret"))

	req := jsonRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "ghost",
		"password": "secret",
	})
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assertStatusCode(t, rec, http.StatusUnauthorized)
}

func TestLoginMissingFields(t *testing.T) {
	store := mock.NewStore()
	handler := NewAuthHandler(store, middleware.NewSessionManager("test-secret"))

	req := jsonRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "novak",
	})
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "username and password are required")
}

func TestLogoutDeletesSession(t *testing.T) {
	store := mock.NewStore()
	teacherID := seedTeacher(t, store)
	sm := middleware.NewSessionManager("test-secret")
	handler := NewAuthHandler(store, sm)

	session, err := sm.CreateSession(teacherID, "novak")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	if sm.GetSession(session.ID) != nil {
		t.Error("session still valid after logout")
	}
}

func TestStatus(t *testing.T) {
	store := mock.NewStore()
	teacherID := seedTeacher(t, store)
	sm := middleware.NewSessionManager("test-secret")
	handler := NewAuthHandler(store, sm)

	// Unauthenticated.
	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil))
	assertStatusCode(t, rec, http.StatusOK)
	var resp StatusResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Authenticated {
		t.Error("unauthenticated request reported as authenticated")
	}

	// Authenticated.
	session, err := sm.CreateSession(teacherID, "novak")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	rec = httptest.NewRecorder()
	handler.Status(rec, req)
	parseJSONResponse(t, rec, &resp)
	if !resp.Authenticated || resp.Username != "novak" {
		t.Errorf("response = %+v", resp)
	}
}
