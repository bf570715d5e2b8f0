package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/database/mock"
	"github.com/kozaktomas/roll-call/internal/engine"
	"github.com/kozaktomas/roll-call/internal/web/middleware"
)

// testRecognitionConfig returns the recognition settings used by handler tests.
func testRecognitionConfig() config.RecognitionConfig {
	return config.RecognitionConfig{
		Threshold:       0.58,
		Alpha:           0.05,
		MinBoxSize:      80,
		FrameStride:     1,
		DebounceSeconds: 10,
		EmbeddingDim:    3,
	}
}

// stubEngine returns canned detections for handler tests.
type stubEngine struct {
	detections []engine.Detection
	err        error
}

func (s *stubEngine) DetectFaces(ctx context.Context, imageData []byte) ([]engine.Detection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detections, nil
}

// seedTeacher creates a teacher and returns their ID.
func seedTeacher(t *testing.T, store *mock.Store) int64 {
	t.Helper()
	id, err := store.CreateTeacher(context.Background(), "novak", "secret", "Jan Novák")
	if err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}
	return id
}

// seedCourse creates a course for a teacher and returns its ID.
func seedCourse(t *testing.T, store *mock.Store, teacherID int64) int64 {
	t.Helper()
	id, err := store.CreateCourse(context.Background(), teacherID, "Algorithms", "ALG-101")
	if err != nil {
		t.Fatalf("CreateCourse failed: %v", err)
	}
	return id
}

// seedStudent creates a student and returns their ID.
func seedStudent(t *testing.T, store *mock.Store, name, code string) int64 {
	t.Helper()
	id, err := store.UpsertStudent(context.Background(), name, code)
	if err != nil {
		t.Fatalf("UpsertStudent failed: %v", err)
	}
	return id
}

// requestWithSession attaches an authenticated teacher session to a request.
func requestWithSession(r *http.Request, teacherID int64) *http.Request {
	session := &middleware.Session{ID: "test-session", TeacherID: teacherID, Username: "novak"}
	return r.WithContext(middleware.SetSessionInContext(r.Context(), session))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a request with one file field plus form values.
func multipartRequest(t *testing.T, method, path, fileField string, fileData []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(fileField, "upload.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(fileData)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// studentIdentity builds the identity value for a seeded student.
func studentIdentity(store *mock.Store, id int64) database.Identity {
	s, _ := store.GetStudent(context.Background(), id)
	return database.Identity{
		PersonType:  database.PersonStudent,
		PersonID:    s.ID,
		DisplayName: s.FullName,
		Code:        s.StudentCode,
	}
}
