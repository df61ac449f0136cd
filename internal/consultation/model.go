package consultation

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

type MessageType string

const (
	TypeText       MessageType = "text"
	TypePrediction MessageType = "prediction"
)

type PredictionLabel string

const (
	LabelInitial PredictionLabel = "initial"
	LabelUpdated PredictionLabel = "updated"
)

// PredictionThreshold is the number of collected symptoms that triggers a prediction.
const PredictionThreshold = 3

const GreetingText = "Hello! I'm your symptom assistant. Describe how you feel in your own words, " +
	"for example \"I have a headache and a fever\". Once I have at least 3 symptoms I'll suggest a possible condition. " +
	"Start a new consultation at any time to begin again."

type Message struct {
	ID         uuid.UUID   `json:"id"`
	Role       Role        `json:"role"`
	Type       MessageType `json:"type"`
	Text       string      `json:"text"`
	Prediction *Prediction `json:"prediction,omitempty"`
	// Suggestions carries "did you mean" candidates.
	Suggestions []string  `json:"suggestions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Prediction struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	// ConfidenceSynthetic is set when the backend gave no confidence and a
	// placeholder value was generated locally.
	ConfidenceSynthetic bool            `json:"confidence_synthetic"`
	SymptomCount        int             `json:"symptom_count"`
	Label               PredictionLabel `json:"label"`
}

// Consultation is one conversational session.
type Consultation struct {
	ID       uuid.UUID `json:"id"`
	Messages []Message `json:"messages"`

	// Collected symptoms, unique, in insertion order.
	Symptoms []string `json:"symptoms"`

	// Input box state
	Input       string   `json:"input"`
	Suggestions []string `json:"suggestions"`
	Typing      bool     `json:"typing"`

	LastPrediction *Prediction `json:"last_prediction,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New() *Consultation {
	now := time.Now()
	c := &Consultation{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.Reset()
	return c
}

// Reset clears the conversation down to a single greeting.
func (c *Consultation) Reset() {
	c.Messages = nil
	c.Symptoms = []string{}
	c.Input = ""
	c.Suggestions = []string{}
	c.Typing = false
	c.LastPrediction = nil
	c.addBotText(GreetingText)
}

func (c *Consultation) addMessage(m Message) {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	c.Messages = append(c.Messages, m)
}

func (c *Consultation) addUserText(text string) {
	c.addMessage(Message{Role: RoleUser, Type: TypeText, Text: text})
}

func (c *Consultation) addBotText(text string) {
	c.addMessage(Message{Role: RoleBot, Type: TypeText, Text: text})
}

// MergeSymptoms appends the symptoms not yet collected (exact match) and
// returns them in the order given.
func (c *Consultation) MergeSymptoms(extracted []string) []string {
	seen := make(map[string]struct{}, len(c.Symptoms)+len(extracted))
	for _, s := range c.Symptoms {
		seen[s] = struct{}{}
	}
	added := []string{}
	for _, s := range extracted {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		added = append(added, s)
	}
	c.Symptoms = append(c.Symptoms, added...)
	return added
}

// RemoveSymptom deletes symptom by value and reports whether it was present.
func (c *Consultation) RemoveSymptom(symptom string) bool {
	for i, s := range c.Symptoms {
		if s == symptom {
			c.Symptoms = append(c.Symptoms[:i:i], c.Symptoms[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so that stored state is never aliased.
func (c *Consultation) Clone() *Consultation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		if m.Prediction != nil {
			p := *m.Prediction
			m.Prediction = &p
		}
		m.Suggestions = append([]string(nil), m.Suggestions...)
		out.Messages[i] = m
	}
	out.Symptoms = append([]string{}, c.Symptoms...)
	out.Suggestions = append([]string{}, c.Suggestions...)
	if c.LastPrediction != nil {
		p := *c.LastPrediction
		out.LastPrediction = &p
	}
	return &out
}
