package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/nurhq/nur/pkg/store"
)

// Server exposes read-only inspection endpoints over the interaction store.
type Server struct {
	interactions store.InteractionStore
}

// NewServer creates an inspection API server.
func NewServer(interactions store.InteractionStore) *Server {
	return &Server{interactions: interactions}
}

// Router returns the HTTP handler for the server.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/interactions", s.handleListInteractions)
	mux.HandleFunc("/api/v1/interactions/", s.handleGetInteraction)

	return mux
}

// handleHealth returns the health status of the server.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "nur",
	})
}

// handleListInteractions returns all stored interactions, newest first.
func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	interactions, err := s.interactions.List(r.Context())
	if err != nil {
		log.Printf("Failed to list interactions: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if interactions == nil {
		interactions = []store.Interaction{}
	}

	writeJSON(w, http.StatusOK, interactions)
}

// handleGetInteraction returns one interaction by thread id.
func (s *Server) handleGetInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	threadID := strings.TrimPrefix(r.URL.Path, "/api/v1/interactions/")
	if threadID == "" {
		http.Error(w, "thread id required", http.StatusBadRequest)
		return
	}

	interaction, err := s.interactions.GetByThreadID(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to get interaction %s: %v", threadID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, interaction)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
