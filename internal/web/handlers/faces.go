package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/engine"
	"github.com/kozaktomas/roll-call/internal/faceindex"
	"github.com/kozaktomas/roll-call/internal/imgstore"
)

// FacesHandler manages face enrollment and the in-memory index.
type FacesHandler struct {
	store  database.Store
	index  *faceindex.Index
	engine engine.Engine
	images *imgstore.Store
	cfg    config.RecognitionConfig
}

// NewFacesHandler creates a new faces handler. The image store is optional;
// without it crops are not saved.
func NewFacesHandler(store database.Store, index *faceindex.Index, eng engine.Engine, images *imgstore.Store, cfg config.RecognitionConfig) *FacesHandler {
	return &FacesHandler{
		store:  store,
		index:  index,
		engine: eng,
		images: images,
		cfg:    cfg,
	}
}

// RegisterResponse reports one enrolled face.
type RegisterResponse struct {
	FaceID    int64   `json:"face_id"`
	Quality   float64 `json:"quality"`
	FaceCount int     `json:"face_count"` // total embeddings for this person
}

// Register enrolls a face for a person from an uploaded photo. The photo must
// contain exactly one detectable face large enough to match against later.
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	imageData, err := readUploadedFile(r, "file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing or invalid file upload")
		return
	}

	personType := database.PersonType(r.FormValue("person_type"))
	if !personType.Valid() {
		respondError(w, http.StatusBadRequest, "person_type must be student or teacher")
		return
	}
	personID, err := strconv.ParseInt(r.FormValue("person_id"), 10, 64)
	if err != nil || personID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid person_id")
		return
	}

	identity, ok, err := h.resolveIdentity(r, personType, personID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to look up person")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}

	detections, err := h.engine.DetectFaces(r.Context(), imageData)
	if err != nil {
		log.Printf("face detection for %s/%d failed: %v", personType, personID, err)
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}
	if len(detections) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "no face found in image")
		return
	}
	if len(detections) > 1 {
		respondError(w, http.StatusUnprocessableEntity, "image contains more than one face")
		return
	}

	det := detections[0]
	if det.BBox.MinSide() < float64(h.cfg.MinBoxSize) {
		respondError(w, http.StatusUnprocessableEntity, "face too small in image")
		return
	}

	if len(det.Embedding) != h.cfg.EmbeddingDim {
		respondError(w, http.StatusUnprocessableEntity, "unexpected embedding dimension")
		return
	}

	var imagePath string
	if h.images != nil {
		imagePath, err = h.images.SaveCrop(imageData, det.BBox)
		if err != nil {
			// The crop is review material only, enrollment proceeds without it.
			log.Printf("saving face crop failed: %v", err)
		}
	}

	normalized := faceindex.Normalize(det.Embedding)
	quality := det.Score
	faceID, err := h.store.AddFace(r.Context(), database.StoredFace{
		PersonType: personType,
		PersonID:   personID,
		Embedding:  normalized,
		Quality:    &quality,
		ImagePath:  imagePath,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store face")
		return
	}

	if err := h.index.Add(normalized, identity); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to index face")
		return
	}

	count, err := h.store.CountFaces(r.Context(), personType, personID)
	if err != nil {
		count = 0
	}

	respondJSON(w, http.StatusCreated, RegisterResponse{
		FaceID:    faceID,
		Quality:   det.Score,
		FaceCount: count,
	})
}

// resolveIdentity loads the display identity for a person reference.
func (h *FacesHandler) resolveIdentity(r *http.Request, personType database.PersonType, personID int64) (database.Identity, bool, error) {
	switch personType {
	case database.PersonStudent:
		student, err := h.store.GetStudent(r.Context(), personID)
		if err != nil || student == nil {
			return database.Identity{}, false, err
		}
		return database.Identity{
			PersonType:  database.PersonStudent,
			PersonID:    student.ID,
			DisplayName: student.FullName,
			Code:        student.StudentCode,
		}, true, nil
	case database.PersonTeacher:
		teacher, err := h.store.GetTeacher(r.Context(), personID)
		if err != nil || teacher == nil {
			return database.Identity{}, false, err
		}
		return database.Identity{
			PersonType:  database.PersonTeacher,
			PersonID:    teacher.ID,
			DisplayName: teacher.FullName,
		}, true, nil
	}
	return database.Identity{}, false, nil
}

// RebuildResponse reports the outcome of a full index rebuild.
type RebuildResponse struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
}

// Rebuild reloads the in-memory index from the stored face catalog.
func (h *FacesHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	skipped, err := h.index.Rebuild(r.Context(), h.store)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "index rebuild failed")
		return
	}
	respondJSON(w, http.StatusOK, RebuildResponse{
		Indexed: h.index.Len(),
		Skipped: skipped,
	})
}
