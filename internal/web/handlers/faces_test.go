package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/database/mock"
	"github.com/kozaktomas/roll-call/internal/engine"
	"github.com/kozaktomas/roll-call/internal/faceindex"
)

func singleFace() []engine.Detection {
	return []engine.Detection{
		{BBox: engine.BBox{X1: 100, Y1: 100, X2: 250, Y2: 260}, Score: 0.97, Embedding: []float32{1, 0, 0}},
	}
}

func TestRegisterFace(t *testing.T) {
	store := mock.NewStore()
	studentID := seedStudent(t, store, "Alice", "S1")
	index := faceindex.New(3)
	handler := NewFacesHandler(store, index, &stubEngine{detections: singleFace()}, nil, testRecognitionConfig())

	req := multipartRequest(t, http.MethodPost, "/api/v1/faces", "file", []byte("jpeg-data"), map[string]string{
		"person_type": "student",
		"person_id":   strconv.FormatInt(studentID, 10),
	})
	rec := httptest.NewRecorder()
	handler.Register(rec, req)
	assertStatusCode(t, rec, http.StatusCreated)

	var resp RegisterResponse
	parseJSONResponse(t, rec, &resp)
	if resp.FaceID == 0 || resp.FaceCount != 1 {
		t.Errorf("response = %+v", resp)
	}

	// The face is stored and immediately matchable.
	count, err := store.CountFaces(context.Background(), database.PersonStudent, studentID)
	if err != nil || count != 1 {
		t.Errorf("CountFaces = %d, %v", count, err)
	}
	identity, score, err := index.Match([]float32{1, 0, 0}, 0.58)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if identity == nil || identity.PersonID != studentID {
		t.Errorf("match = %+v score %v", identity, score)
	}
}

func TestRegisterFaceUnknownPerson(t *testing.T) {
	store := mock.NewStore()
	handler := NewFacesHandler(store, faceindex.New(3), &stubEngine{detections: singleFace()}, nil, testRecognitionConfig())

	req := multipartRequest(t, http.MethodPost, "/api/v1/faces", "file", []byte("jpeg-data"), map[string]string{
		"person_type": "student",
		"person_id":   "999",
	})
	rec := httptest.NewRecorder()
	handler.Register(rec, req)
	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestRegisterFaceInvalidPersonType(t *testing.T) {
	store := mock.NewStore()
	handler := NewFacesHandler(store, faceindex.New(3), &stubEngine{detections: singleFace()}, nil, testRecognitionConfig())

	req := multipartRequest(t, http.MethodPost, "/api/v1/faces", "file", []byte("jpeg-data"), map[string]string{
		"person_type": "robot",
		"person_id":   "1",
	})
	rec := httptest.NewRecorder()
	handler.Register(rec, req)
	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestRegisterFaceNoFace(t *testing.T) {
	store := mock.NewStore()
	studentID := seedStudent(t, store, "Alice", "S1")
	handler := NewFacesHandler(store, faceindex.New(3), &stubEngine{}, nil, testRecognitionConfig())

	req := multipartRequest(t, http.MethodPost, "/api/v1/faces", "file", []byte("jpeg-data"), map[string]string{
		"person_type": "student",
		"person_id":   strconv.FormatInt(studentID, 10),
	})
	rec := httptest.NewRecorder()
	handler.Register(rec, req)
	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
}

func TestRegisterFaceMultipleFaces(t *testing.T) {
	store := mock.NewStore()
	studentID := seedStudent(t, store, "Alice", "S1")
	two := append(singleFace(), engine.Detection{
		BBox: engine.BBox{X1: 300, Y1: 100, X2: 450, Y2: 260}, Score: 0.9, Embedding: []float32{0, 1, 0},
	})
	handler := NewFacesHandler(store, faceindex.New(3), &stubEngine{detections: two}, nil, testRecognitionConfig())

	req := multipartRequest(t, http.MethodPost, "/api/v1/faces", "file", []byte("jpeg-data"), map[string]string{
		"person_type": "student",
		"person_id":   strconv.FormatInt(studentID, 10),
	})
	rec := httptest.NewRecorder()
	handler.Register(rec, req)
	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
	assertJSONError(t, rec, "image contains more than one face")
}

func TestRegisterFaceTooSmall(t *testing.T) {
	store := mock.NewStore()
	studentID := seedStudent(t, store, "Alice", "S1")
	small := []engine.Detection{
		{BBox: engine.BBox{X1: 10, Y1: 10, X2: 50, Y2: 60}, Score: 0.9, Embedding: []float32{1, 0, 0}},
	}
	handler := NewFacesHandler(store, faceindex.New(3), &stubEngine{detections: small}, nil, testRecognitionConfig())

	req := multipartRequest(t, http.MethodPost, "/api/v1/faces", "file", []byte("jpeg-data"), map[string]string{
		"person_type": "student",
		"person_id":   strconv.FormatInt(studentID, 10),
	})
	rec := httptest.NewRecorder()
	handler.Register(rec, req)
	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
}

func TestRebuildIndex(t *testing.T) {
	store := mock.NewStore()
	studentID := seedStudent(t, store, "Alice", "S1")
	if _, err := store.AddFace(context.Background(), database.StoredFace{
		PersonType: database.PersonStudent,
		PersonID:   studentID,
		Embedding:  []float32{1, 0, 0},
	}); err != nil {
		t.Fatalf("AddFace failed: %v", err)
	}
	// A row with the wrong dimension is skipped, not fatal.
	if _, err := store.AddFace(context.Background(), database.StoredFace{
		PersonType: database.PersonStudent,
		PersonID:   studentID,
		Embedding:  []float32{1, 0},
	}); err != nil {
		t.Fatalf("AddFace failed: %v", err)
	}

	index := faceindex.New(3)
	handler := NewFacesHandler(store, index, &stubEngine{}, nil, testRecognitionConfig())

	rec := httptest.NewRecorder()
	handler.Rebuild(rec, httptest.NewRequest(http.MethodPost, "/api/v1/faces/rebuild", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var resp RebuildResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Indexed != 1 || resp.Skipped != 1 {
		t.Errorf("response = %+v", resp)
	}
}
