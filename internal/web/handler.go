// Package web exposes a small read-only JSON view over the thread log so
// operators can inspect what the agent has been doing.
package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openswe/agent/internal/threadlog"
)

// Handler handles status UI requests.
type Handler struct {
	store *threadlog.Store
}

// NewHandler creates a new status handler.
func NewHandler(store *threadlog.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers the status routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/threads", h.handleList).Methods("GET")
	r.HandleFunc("/threads/{id}", h.handleDetail).Methods("GET")
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"threads": h.store.List(),
	})
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]

	record, ok := h.store.Get(threadID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "thread not found"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
