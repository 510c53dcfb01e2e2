// Package api provides the HTTP handlers for the room server's
// diagnostic and admin surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/YatingPan/chat-room/internal/catalog"
	"github.com/YatingPan/chat-room/internal/session"
	"github.com/YatingPan/chat-room/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler serves the room listing and archive endpoints.
type Handler struct {
	catalog  *catalog.Catalog
	sessions *session.Registry
	archive  store.Repository // may be nil
}

// NewHandler creates a new Handler.
func NewHandler(cat *catalog.Catalog, sessions *session.Registry, archive store.Repository) *Handler {
	return &Handler{catalog: cat, sessions: sessions, archive: archive}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts the admin/diagnostic routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/secret", h.ListRooms)
	r.Get("/secret/transcripts/{token}", h.ListTranscripts)
}

// ListRooms returns each catalog entry's token and spec resource name,
// marking the ones with a live session.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.Rooms()
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}

	type roomEntry struct {
		Token    string `json:"token"`
		SpecName string `json:"specName"`
		Live     bool   `json:"live"`
	}
	out := make([]roomEntry, 0, len(entries))
	for _, e := range entries {
		_, live := h.sessions.Get(e.Token)
		out = append(out, roomEntry{Token: e.Token, SpecName: e.SpecName, Live: live})
	}
	JSON(w, http.StatusOK, out)
}

// ListTranscripts returns the archived transcript index for a room.
func (h *Handler) ListTranscripts(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		Error(w, http.StatusNotFound, "archive disabled")
		return
	}
	token := chi.URLParam(r, "token")
	recs, err := h.archive.ListTranscripts(r.Context(), token)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list transcripts")
		return
	}
	JSON(w, http.StatusOK, recs)
}
