// Package checker implements the form-style symptom checker: pick symptoms
// with autocomplete, then ask the backend for a single prediction.
package checker

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"symptom-checker/internal/suggest"
)

var (
	ErrNotFound        = errors.New("form not found")
	ErrNoSymptoms      = errors.New("add at least one symptom before predicting")
	ErrIndexOutOfRange = errors.New("symptom index out of range")
)

// Predictor is the part of the backend client the form needs.
type Predictor interface {
	FuzzyMatch(ctx context.Context, query string) ([]string, error)
	Predict(ctx context.Context, symptoms []string) (string, error)
}

type entry struct {
	mu   sync.Mutex
	form *Form
	seq  suggest.Sequencer
}

type Service struct {
	client Predictor

	mu    sync.RWMutex
	forms map[uuid.UUID]*entry
}

func NewService(client Predictor) *Service {
	return &Service{
		client: client,
		forms:  make(map[uuid.UUID]*entry),
	}
}

func (s *Service) entry(id uuid.UUID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.forms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// with runs fn on the form under its lock and returns a snapshot.
func (s *Service) with(id uuid.UUID, fn func(e *entry) error) (*Form, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e); err != nil {
		return nil, err
	}
	return e.form.clone(), nil
}

func (s *Service) Create() *Form {
	f := NewForm()
	s.mu.Lock()
	s.forms[f.ID] = &entry{form: f}
	s.mu.Unlock()
	return f.clone()
}

func (s *Service) Get(id uuid.UUID) (*Form, error) {
	return s.with(id, func(e *entry) error { return nil })
}

func (s *Service) Add(id uuid.UUID, symptom string) (*Form, error) {
	return s.with(id, func(e *entry) error {
		e.seq.Next()
		e.form.Add(symptom)
		return nil
	})
}

func (s *Service) Delete(id uuid.UUID, index int) (*Form, error) {
	return s.with(id, func(e *entry) error {
		return e.form.Delete(index)
	})
}

// Autocomplete stores input and replaces the suggestions with fuzzy matches
// for the whole input. Responses overtaken by a newer call are dropped with
// suggest.ErrSuperseded.
func (s *Service) Autocomplete(ctx context.Context, id uuid.UUID, input string) (*Form, error) {
	var seq uint64
	f, err := s.with(id, func(e *entry) error {
		seq = e.seq.Next()
		e.form.Input = input
		if strings.TrimSpace(input) == "" {
			e.form.Suggestions = []string{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input) == "" {
		return f, nil
	}

	matches, err := s.client.FuzzyMatch(ctx, input)
	if err != nil {
		log.Printf("Failed to fetch suggestions for form %s: %v", id, err)
		matches = nil
	}
	if matches == nil {
		matches = []string{}
	}

	return s.with(id, func(e *entry) error {
		if !e.seq.IsLatest(seq) {
			return suggest.ErrSuperseded
		}
		e.form.Suggestions = matches
		return nil
	})
}

// Submit asks the backend for a prediction over the collected symptoms.
// Backend failures are reported in Result, not as an error.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*Form, error) {
	var symptoms []string
	if _, err := s.with(id, func(e *entry) error {
		if len(e.form.Symptoms) == 0 {
			return ErrNoSymptoms
		}
		symptoms = append([]string{}, e.form.Symptoms...)
		e.form.Loading = true
		return nil
	}); err != nil {
		return nil, err
	}

	disease, err := s.client.Predict(ctx, symptoms)

	return s.with(id, func(e *entry) error {
		e.form.Loading = false
		switch {
		case err != nil:
			log.Printf("Prediction failed for form %s: %v", id, err)
			e.form.Result = ErrorResultText
		case disease == "":
			e.form.Result = NoPredictionText
		default:
			e.form.Result = disease
		}
		return nil
	})
}
