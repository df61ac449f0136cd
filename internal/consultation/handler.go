package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"symptom-checker/internal/suggest"
)

// Reporter renders and delivers consultation reports.
type Reporter interface {
	Build(c Consultation) ([]byte, error)
	Send(ctx context.Context, c Consultation) error
}

type Handler struct {
	svc      Service
	reporter Reporter
}

func NewHandler(svc Service, reporter Reporter) *Handler {
	return &Handler{svc: svc, reporter: reporter}
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type SuggestRequest struct {
	Input string `json:"input"`
}

type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
	Stale       bool     `json:"stale"`
}

type SelectSuggestionRequest struct {
	Choice string `json:"choice"`
}

type SelectSuggestionResponse struct {
	Input string `json:"input"`
}

func (h *Handler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Create(r.Context())
	if err != nil {
		log.Printf("Failed to create consultation: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create consultation")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	id, ok := consultationID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.serviceError(w, "get consultation", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := consultationID(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	c, err := h.svc.Send(r.Context(), id, req.Text)
	if err != nil {
		h.serviceError(w, "send message", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	id, ok := consultationID(w, r)
	if !ok {
		return
	}
	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	suggestions, err := h.svc.Suggest(r.Context(), id, req.Input)
	if errors.Is(err, suggest.ErrSuperseded) {
		writeJSON(w, http.StatusOK, SuggestResponse{Suggestions: []string{}, Stale: true})
		return
	}
	if err != nil {
		h.serviceError(w, "suggest", err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestResponse{Suggestions: suggestions})
}

func (h *Handler) SelectSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := consultationID(w, r)
	if !ok {
		return
	}
	var req SelectSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Choice == "" {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	c, err := h.svc.SelectSuggestion(r.Context(), id, req.Choice)
	if err != nil {
		h.serviceError(w, "select suggestion", err)
		return
	}
	writeJSON(w, http.StatusOK, SelectSuggestionResponse{Input: c.Input})
}

func (h *Handler) RemoveSymptom(w http.ResponseWriter, r *http.Request) {
	id, ok := consultationID(w, r)
	if !ok {
		return
	}
	symptom, err := symptomParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid symptom")
		return
	}

	c, err := h.svc.RemoveSymptom(r.Context(), id, symptom)
	if err != nil {
		h.serviceError(w, "remove symptom", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// symptomParam returns the decoded symptom path segment. chi matches on the
// raw path only when it holds escapes such as %2F, and then the parameter is
// still encoded.
func symptomParam(r *http.Request) (string, error) {
	symptom := chi.URLParam(r, "symptom")
	if r.URL.RawPath == "" {
		return symptom, nil
	}
	return url.PathUnescape(symptom)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := consultationID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Reset(r.Context(), id)
	if err != nil {
		h.serviceError(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	id, ok := consultationID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.serviceError(w, "report", err)
		return
	}

	pdf, err := h.reporter.Build(*c)
	if err != nil {
		log.Printf("Failed to build report for consultation %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report_%s.pdf"`, id))
	w.Write(pdf)
}

func (h *Handler) SendReport(w http.ResponseWriter, r *http.Request) {
	id, ok := consultationID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.serviceError(w, "send report", err)
		return
	}

	if err := h.reporter.Send(r.Context(), *c); err != nil {
		log.Printf("Failed to send report for consultation %s: %v", id, err)
		writeError(w, http.StatusBadGateway, "Failed to send report")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serviceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Consultation %s failed: %v", op, err)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

func consultationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "consultationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid consultation ID")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/consultations", func(r chi.Router) {
		r.Post("/", h.CreateConsultation)
		r.Route("/{consultationID}", func(r chi.Router) {
			r.Get("/", h.GetConsultation)
			r.Post("/messages", h.SendMessage)
			r.Post("/suggestions", h.Suggest)
			r.Post("/suggestions/select", h.SelectSuggestion)
			r.Delete("/symptoms/{symptom}", h.RemoveSymptom)
			r.Post("/reset", h.Reset)
			r.Get("/report", h.DownloadReport)
			r.Post("/report/send", h.SendReport)
		})
	})
}
