package handlers

import (
	"net/http"

	"github.com/kozaktomas/roll-call/internal/faceindex"
)

// StatsHandler reports instance status.
type StatsHandler struct {
	index *faceindex.Index
	hub   *SessionHub
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(index *faceindex.Index, hub *SessionHub) *StatsHandler {
	return &StatsHandler{index: index, hub: hub}
}

// StatsResponse is the instance status payload.
type StatsResponse struct {
	IndexedEmbeddings int `json:"indexed_embeddings"`
	LiveSessions      int `json:"live_sessions"`
}

// Get returns instance statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatsResponse{
		IndexedEmbeddings: h.index.Len(),
		LiveSessions:      h.hub.Count(),
	})
}
