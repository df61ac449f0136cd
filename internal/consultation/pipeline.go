package consultation

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"symptom-checker/internal/predictor"
)

// Predictor is the part of the backend client the chat needs.
// Defined here to decouple from the concrete HTTP client.
type Predictor interface {
	FuzzyMatch(ctx context.Context, query string) ([]string, error)
	ExtractAndPredict(ctx context.Context, sentence string) (*predictor.ExtractResult, error)
}

const (
	errorText = "Sorry, something went wrong while analysing your symptoms. Please try again."
	hintText  = "You can keep describing symptoms to refine this prediction, or start a new consultation to begin again."

	// Range of the placeholder confidence used when the backend sends none.
	syntheticConfidenceMin  = 70.0
	syntheticConfidenceSpan = 30.0
)

// Pipeline turns one free-text message into symptoms, acknowledgements and
// predictions on a consultation.
type Pipeline struct {
	client Predictor
	rand   func() float64
}

func NewPipeline(client Predictor) *Pipeline {
	return &Pipeline{client: client, rand: rand.Float64}
}

// Apply runs fn against the current state of the consultation being
// processed and persists the result.
type Apply func(fn func(c *Consultation)) error

// Process runs the pipeline directly against c.
func (p *Pipeline) Process(ctx context.Context, c *Consultation, text string) *Prediction {
	prediction, _ := p.Run(ctx, text, func(fn func(c *Consultation)) error {
		fn(c)
		return nil
	})
	return prediction
}

// Run turns text into symptoms, acknowledgements and possibly a prediction.
// Backend calls are made between apply calls, never inside one, so callers may
// hold a lock in apply. Backend failures are posted as a single generic bot
// message; symptoms merged before a failure are kept. The returned error comes
// from apply only.
func (p *Pipeline) Run(ctx context.Context, text string, apply Apply) (*Prediction, error) {
	extracted, err := p.client.ExtractAndPredict(ctx, text)
	if err != nil {
		return nil, p.fail(err, apply)
	}

	if len(extracted.ExtractedSymptoms) == 0 {
		matches, err := p.client.FuzzyMatch(ctx, text)
		if err != nil {
			return nil, p.fail(err, apply)
		}
		return nil, apply(func(c *Consultation) {
			if len(matches) > 0 {
				c.addMessage(Message{
					Role:        RoleBot,
					Type:        TypeText,
					Text:        fmt.Sprintf("I couldn't pick out a symptom there. Did you mean: %s?", strings.Join(matches, ", ")),
					Suggestions: matches,
				})
				return
			}
			c.addBotText("I couldn't recognise any symptoms in that message. Could you describe how you feel in a different way?")
		})
	}

	var collected []string
	if err := apply(func(c *Consultation) {
		added := c.MergeSymptoms(extracted.ExtractedSymptoms)
		if len(added) > 0 {
			c.addBotText(fmt.Sprintf("Got it. I've noted: %s.", strings.Join(added, ", ")))
		} else {
			c.addBotText("I already have those symptoms noted.")
		}

		if len(c.Symptoms) < PredictionThreshold {
			missing := PredictionThreshold - len(c.Symptoms)
			c.addBotText(fmt.Sprintf("I need %d more %s before I can suggest a possible condition.", missing, plural(missing, "symptom", "symptoms")))
			return
		}
		collected = append([]string{}, c.Symptoms...)
	}); err != nil {
		return nil, err
	}
	if collected == nil {
		return nil, nil
	}

	result, err := p.client.ExtractAndPredict(ctx, strings.Join(collected, ", "))
	if err != nil {
		return nil, p.fail(err, apply)
	}

	prediction := &Prediction{
		Disease:      result.PredictedDisease,
		SymptomCount: len(collected),
		Label:        LabelUpdated,
	}
	if len(collected) == PredictionThreshold {
		prediction.Label = LabelInitial
	}
	if result.Confidence != nil {
		prediction.Confidence = *result.Confidence
	} else {
		prediction.Confidence = syntheticConfidenceMin + p.rand()*syntheticConfidenceSpan
		prediction.ConfidenceSynthetic = true
	}

	if err := apply(func(c *Consultation) {
		c.addMessage(Message{
			Role:       RoleBot,
			Type:       TypePrediction,
			Text:       predictionText(prediction),
			Prediction: prediction,
		})
		last := *prediction
		c.LastPrediction = &last
		c.addBotText(hintText)
	}); err != nil {
		return nil, err
	}
	return prediction, nil
}

func (p *Pipeline) fail(err error, apply Apply) error {
	return apply(func(c *Consultation) {
		log.Printf("Pipeline failed for consultation %s: %v", c.ID, err)
		c.addBotText(errorText)
	})
}

func predictionText(p *Prediction) string {
	disease := p.Disease
	if disease == "" {
		disease = "no prediction received"
	}
	confidence := fmt.Sprintf("%.0f%% confidence", p.Confidence)
	if p.ConfidenceSynthetic {
		confidence = fmt.Sprintf("estimated %.0f%% confidence, placeholder value not reported by the model", p.Confidence)
	}
	return fmt.Sprintf("Based on your %d symptoms, my %s prediction is: %s (%s). This is not a medical diagnosis.",
		p.SymptomCount, p.Label, disease, confidence)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
