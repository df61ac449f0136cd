package predictor

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the backend symptom catalog and a health probe.
type Handler struct {
	client Client
}

func NewHandler(client Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) ListSymptoms(w http.ResponseWriter, r *http.Request) {
	symptoms, err := h.client.ListSymptoms(r.Context())
	if err != nil {
		log.Printf("Failed to fetch symptom catalog: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to fetch symptoms"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"symptoms": symptoms})
}

// Health always answers; backend reports whether the predictor is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	backend := "ok"
	if err := h.client.Ping(r.Context()); err != nil {
		log.Printf("Backend ping failed: %v", err)
		backend = "unreachable"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": backend})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/symptoms", h.ListSymptoms)
	r.Get("/health", h.Health)
}
