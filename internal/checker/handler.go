package checker

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"symptom-checker/internal/suggest"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type InputRequest struct {
	Input string `json:"input"`
}

type AddSymptomRequest struct {
	Symptom string `json:"symptom"`
}

type InputResponse struct {
	*Form
	Stale bool `json:"stale"`
}

func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.svc.Create())
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(w, r)
	if !ok {
		return
	}
	f, err := h.svc.Get(id)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) SetInput(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(w, r)
	if !ok {
		return
	}
	var req InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	f, err := h.svc.Autocomplete(r.Context(), id, req.Input)
	if errors.Is(err, suggest.ErrSuperseded) {
		current, getErr := h.svc.Get(id)
		if getErr != nil {
			serviceError(w, getErr)
			return
		}
		writeJSON(w, http.StatusOK, InputResponse{Form: current, Stale: true})
		return
	}
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InputResponse{Form: f})
}

func (h *Handler) AddSymptom(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(w, r)
	if !ok {
		return
	}
	var req AddSymptomRequest
	// An empty body adds the current input.
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request")
			return
		}
	}

	f, err := h.svc.Add(id, req.Symptom)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) DeleteSymptom(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid symptom index")
		return
	}

	f, err := h.svc.Delete(id, index)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(w, r)
	if !ok {
		return
	}
	f, err := h.svc.Submit(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoSymptoms), errors.Is(err, ErrIndexOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Checker request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

func formID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "formID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form ID")
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
	r.Route("/checkers", func(r chi.Router) {
		r.Post("/", h.CreateForm)
		r.Route("/{formID}", func(r chi.Router) {
			r.Get("/", h.GetForm)
			r.Post("/input", h.SetInput)
			r.Post("/symptoms", h.AddSymptom)
			r.Delete("/symptoms/{index}", h.DeleteSymptom)
			r.Post("/predict", h.Predict)
		})
	})
}
