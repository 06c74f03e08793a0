// Package api provides HTTP handlers for the HealthGuard chat server.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/healthguard/internal/chat"
	"github.com/ashureev/healthguard/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	hub  *chat.Hub
	repo store.Repository
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(hub *chat.Hub, repo store.Repository) *Handler {
	if repo == nil {
		repo = store.Nop{}
	}
	return &Handler{hub: hub, repo: repo}
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
