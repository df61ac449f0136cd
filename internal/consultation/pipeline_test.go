package consultation

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"symptom-checker/internal/predictor"
)

type fakePredictor struct {
	mu sync.Mutex

	extract    map[string]*predictor.ExtractResult
	extractErr map[string]error
	fuzzy      map[string][]string
	fuzzyErr   error

	extractCalls []string
	fuzzyCalls   []string

	// onFuzzy and onExtract run before the call returns, without the fake's
	// lock held.
	onFuzzy   func(query string)
	onExtract func(sentence string)
}

func newFakePredictor() *fakePredictor {
	return &fakePredictor{
		extract:    map[string]*predictor.ExtractResult{},
		extractErr: map[string]error{},
		fuzzy:      map[string][]string{},
	}
}

func (f *fakePredictor) ExtractAndPredict(ctx context.Context, sentence string) (*predictor.ExtractResult, error) {
	f.mu.Lock()
	hook := f.onExtract
	f.mu.Unlock()
	if hook != nil {
		hook(sentence)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractCalls = append(f.extractCalls, sentence)
	if err := f.extractErr[sentence]; err != nil {
		return nil, err
	}
	if res, ok := f.extract[sentence]; ok {
		out := *res
		return &out, nil
	}
	return &predictor.ExtractResult{ExtractedSymptoms: []string{}}, nil
}

func (f *fakePredictor) FuzzyMatch(ctx context.Context, query string) ([]string, error) {
	f.mu.Lock()
	hook := f.onFuzzy
	f.mu.Unlock()
	if hook != nil {
		hook(query)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fuzzyCalls = append(f.fuzzyCalls, query)
	if f.fuzzyErr != nil {
		return nil, f.fuzzyErr
	}
	return f.fuzzy[query], nil
}

func (f *fakePredictor) calls() (extract, fuzzy []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.extractCalls...), append([]string(nil), f.fuzzyCalls...)
}

func extracted(symptoms ...string) *predictor.ExtractResult {
	return &predictor.ExtractResult{ExtractedSymptoms: symptoms}
}

func confidence(v float64) *float64 {
	return &v
}

func newTestPipeline(fp *fakePredictor) *Pipeline {
	p := NewPipeline(fp)
	p.rand = func() float64 { return 0.5 }
	return p
}

func botTexts(msgs []Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Role == RoleBot {
			out = append(out, m.Text)
		}
	}
	return out
}

func TestProcess_MergesAndAcknowledges(t *testing.T) {
	fp := newFakePredictor()
	fp.extract["I have fever and cough"] = extracted("fever", "cough")
	c := New()

	if p := newTestPipeline(fp).Process(context.Background(), c, "I have fever and cough"); p != nil {
		t.Fatalf("unexpected prediction %+v", p)
	}

	if !reflect.DeepEqual(c.Symptoms, []string{"fever", "cough"}) {
		t.Errorf("symptoms = %v", c.Symptoms)
	}
	got := botTexts(c.Messages[1:])
	want := []string{
		"Got it. I've noted: fever, cough.",
		"I need 1 more symptom before I can suggest a possible condition.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bot messages = %q, want %q", got, want)
	}
}

func TestProcess_AlreadyCollected(t *testing.T) {
	fp := newFakePredictor()
	fp.extract["fever again"] = extracted("fever")
	c := New()
	c.MergeSymptoms([]string{"fever"})

	newTestPipeline(fp).Process(context.Background(), c, "fever again")

	got := botTexts(c.Messages[1:])
	if len(got) != 2 || got[0] != "I already have those symptoms noted." {
		t.Errorf("bot messages = %q", got)
	}
	if !strings.Contains(got[1], "2 more symptoms") {
		t.Errorf("missing count message, got %q", got[1])
	}
}

func TestProcess_PredictionLabels(t *testing.T) {
	fp := newFakePredictor()
	fp.extract["headache"] = extracted("headache")
	fp.extract["fever, cough, headache"] = &predictor.ExtractResult{
		ExtractedSymptoms: []string{"fever", "cough", "headache"},
		PredictedDisease:  "Flu",
		Confidence:        confidence(91),
	}
	fp.extract["nausea"] = extracted("nausea")
	fp.extract["fever, cough, headache, nausea"] = &predictor.ExtractResult{
		ExtractedSymptoms: []string{"fever", "cough", "headache", "nausea"},
		PredictedDisease:  "Gastroenteritis",
	}

	c := New()
	c.MergeSymptoms([]string{"fever", "cough"})
	pl := newTestPipeline(fp)

	first := pl.Process(context.Background(), c, "headache")
	if first == nil {
		t.Fatal("expected a prediction at 3 symptoms")
	}
	if first.Label != LabelInitial || first.Disease != "Flu" || first.Confidence != 91 || first.ConfidenceSynthetic {
		t.Errorf("first prediction = %+v", first)
	}
	if first.SymptomCount != 3 {
		t.Errorf("symptom count = %d, want 3", first.SymptomCount)
	}

	second := pl.Process(context.Background(), c, "nausea")
	if second == nil {
		t.Fatal("expected a prediction at 4 symptoms")
	}
	if second.Label != LabelUpdated || second.Disease != "Gastroenteritis" {
		t.Errorf("second prediction = %+v", second)
	}
	if !second.ConfidenceSynthetic || second.Confidence != 85 {
		t.Errorf("confidence = %v synthetic=%v, want 85 synthetic", second.Confidence, second.ConfidenceSynthetic)
	}
	if c.LastPrediction == nil || c.LastPrediction.Disease != "Gastroenteritis" {
		t.Errorf("last prediction = %+v", c.LastPrediction)
	}

	// ack, prediction, hint
	tail := c.Messages[len(c.Messages)-3:]
	if tail[1].Type != TypePrediction || tail[1].Prediction == nil {
		t.Errorf("expected prediction message, got %+v", tail[1])
	}
	if tail[2].Text != hintText {
		t.Errorf("last message = %q, want hint", tail[2].Text)
	}

	calls, _ := fp.calls()
	if calls[1] != "fever, cough, headache" {
		t.Errorf("prediction sentence = %q", calls[1])
	}
}

func TestProcess_SyntheticConfidenceRange(t *testing.T) {
	for _, r := range []float64{0, 0.25, 0.999999} {
		fp := newFakePredictor()
		fp.extract["a b c"] = extracted("a", "b", "c")
		fp.extract["a, b, c"] = &predictor.ExtractResult{PredictedDisease: "X"}

		pl := NewPipeline(fp)
		pl.rand = func() float64 { return r }
		p := pl.Process(context.Background(), New(), "a b c")

		if p == nil || !p.ConfidenceSynthetic {
			t.Fatalf("rand %v: prediction = %+v", r, p)
		}
		if p.Confidence < 70 || p.Confidence >= 100 {
			t.Errorf("rand %v: confidence %v outside [70,100)", r, p.Confidence)
		}
	}
}

func TestProcess_DidYouMean(t *testing.T) {
	fp := newFakePredictor()
	fp.fuzzy["hedache"] = []string{"headache", "head injury"}
	c := New()

	newTestPipeline(fp).Process(context.Background(), c, "hedache")

	if len(c.Symptoms) != 0 {
		t.Errorf("symptoms = %v, want none", c.Symptoms)
	}
	if len(c.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(c.Messages))
	}
	m := c.Messages[1]
	if !reflect.DeepEqual(m.Suggestions, []string{"headache", "head injury"}) {
		t.Errorf("suggestions = %v", m.Suggestions)
	}
	if !strings.Contains(m.Text, "Did you mean") {
		t.Errorf("text = %q", m.Text)
	}
}

func TestProcess_Clarification(t *testing.T) {
	fp := newFakePredictor()
	c := New()

	newTestPipeline(fp).Process(context.Background(), c, "blah")

	if len(c.Messages) != 2 || len(c.Messages[1].Suggestions) != 0 {
		t.Fatalf("messages = %+v", c.Messages)
	}
	if !strings.Contains(c.Messages[1].Text, "couldn't recognise") {
		t.Errorf("text = %q", c.Messages[1].Text)
	}
}

func TestProcess_TransportErrorLeavesState(t *testing.T) {
	fp := newFakePredictor()
	fp.extractErr["fever"] = errors.New("connection refused")
	c := New()
	c.MergeSymptoms([]string{"cough"})
	before := len(c.Messages)

	if p := newTestPipeline(fp).Process(context.Background(), c, "fever"); p != nil {
		t.Fatalf("unexpected prediction %+v", p)
	}

	if !reflect.DeepEqual(c.Symptoms, []string{"cough"}) {
		t.Errorf("symptoms = %v, want unchanged", c.Symptoms)
	}
	if len(c.Messages) != before+1 || c.Messages[before].Text != errorText {
		t.Errorf("messages = %+v, want exactly one error message", c.Messages[before:])
	}
}

func TestProcess_FuzzyErrorReportsOnce(t *testing.T) {
	fp := newFakePredictor()
	fp.fuzzyErr = errors.New("timeout")
	c := New()

	newTestPipeline(fp).Process(context.Background(), c, "zzz")

	if got := botTexts(c.Messages[1:]); !reflect.DeepEqual(got, []string{errorText}) {
		t.Errorf("bot messages = %q", got)
	}
}

func TestProcess_PredictionErrorKeepsMerge(t *testing.T) {
	fp := newFakePredictor()
	fp.extract["headache"] = extracted("headache")
	fp.extractErr["fever, cough, headache"] = errors.New("503")
	c := New()
	c.MergeSymptoms([]string{"fever", "cough"})

	newTestPipeline(fp).Process(context.Background(), c, "headache")

	if len(c.Symptoms) != 3 {
		t.Errorf("symptoms = %v, want merge kept", c.Symptoms)
	}
	got := botTexts(c.Messages[1:])
	want := []string{"Got it. I've noted: headache.", errorText}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bot messages = %q, want %q", got, want)
	}
	if c.LastPrediction != nil {
		t.Errorf("last prediction = %+v, want nil", c.LastPrediction)
	}
}
