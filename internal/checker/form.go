package checker

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	NoPredictionText = "No prediction received"
	ErrorResultText  = "Error occurred during prediction."
)

// Form is the state of one symptom checker form.
type Form struct {
	ID          uuid.UUID `json:"id"`
	Input       string    `json:"input"`
	Symptoms    []string  `json:"symptoms"`
	Suggestions []string  `json:"suggestions"`
	Loading     bool      `json:"loading"`
	Result      string    `json:"result"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewForm() *Form {
	return &Form{
		ID:          uuid.New(),
		Symptoms:    []string{},
		Suggestions: []string{},
		CreatedAt:   time.Now(),
	}
}

// Add appends symptom, or the current input when symptom is blank. Empty and
// duplicate values are ignored. Input and suggestions are cleared either way.
// It reports whether the list changed.
func (f *Form) Add(symptom string) bool {
	symptom = strings.TrimSpace(symptom)
	if symptom == "" {
		symptom = strings.TrimSpace(f.Input)
	}
	f.Input = ""
	f.Suggestions = []string{}

	if symptom == "" {
		return false
	}
	for _, s := range f.Symptoms {
		if s == symptom {
			return false
		}
	}
	f.Symptoms = append(f.Symptoms, symptom)
	return true
}

func (f *Form) Delete(index int) error {
	if index < 0 || index >= len(f.Symptoms) {
		return ErrIndexOutOfRange
	}
	f.Symptoms = append(f.Symptoms[:index:index], f.Symptoms[index+1:]...)
	return nil
}

func (f *Form) clone() *Form {
	out := *f
	out.Symptoms = append([]string{}, f.Symptoms...)
	out.Suggestions = append([]string{}, f.Suggestions...)
	return &out
}
