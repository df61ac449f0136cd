package consultation

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"symptom-checker/internal/suggest"
)

var ErrEmptyMessage = errors.New("message is empty")

// errTurnDiscarded stops a turn whose consultation was reset while it ran.
var errTurnDiscarded = errors.New("turn discarded by reset")

// MaxSuggestions caps the autocomplete list shown under the chat input.
const MaxSuggestions = 3

// Notifier is told about every prediction. Failures are logged only.
type Notifier interface {
	NotifyPrediction(ctx context.Context, c Consultation, p Prediction) error
}

type Service interface {
	Create(ctx context.Context) (*Consultation, error)
	Get(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Send(ctx context.Context, id uuid.UUID, text string) (*Consultation, error)
	Suggest(ctx context.Context, id uuid.UUID, input string) ([]string, error)
	SelectSuggestion(ctx context.Context, id uuid.UUID, choice string) (*Consultation, error)
	RemoveSymptom(ctx context.Context, id uuid.UUID, symptom string) (*Consultation, error)
	Reset(ctx context.Context, id uuid.UUID) (*Consultation, error)
}

type Options struct {
	// TypingDelay paces bot replies after a user message.
	TypingDelay time.Duration
	// SuggestDebounce is how long the input must stay unchanged before
	// suggestions are fetched.
	SuggestDebounce time.Duration
}

// session holds per-consultation coordination state that is never persisted.
type session struct {
	mu      sync.Mutex
	seq     suggest.Sequencer
	pending int
	// epoch changes on Reset; turns queued before it are dropped.
	epoch uint64
	// lastTurn is closed when the most recently queued message has been processed.
	lastTurn chan struct{}
}

type service struct {
	repo     Repository
	client   Predictor
	pipeline *Pipeline
	notifier Notifier
	opts     Options

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

func NewService(repo Repository, client Predictor, notifier Notifier, opts Options) Service {
	return &service{
		repo:     repo,
		client:   client,
		pipeline: NewPipeline(client),
		notifier: notifier,
		opts:     opts,
		sessions: make(map[uuid.UUID]*session),
	}
}

// session returns the coordination state for id. It is only created for
// consultations that exist in the repository.
func (s *service) session(ctx context.Context, id uuid.UUID) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	sess = &session{}
	s.sessions[id] = sess
	return sess, nil
}

func (s *service) forget(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *service) Create(ctx context.Context) (*Consultation, error) {
	c := New()
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sessions[c.ID] = &session{}
	s.mu.Unlock()
	return c, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

// update loads the consultation, applies fn and saves it, holding the session
// lock. Sessions of consultations that no longer exist are dropped.
func (s *service) update(ctx context.Context, sess *session, id uuid.UUID, fn func(c *Consultation) error) (*Consultation, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.forget(id)
		}
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Send records a user message and, after the typing delay, runs the
// extraction pipeline on it. Messages on one consultation are processed in
// the order they were sent. No lock is held during backend calls, so other
// operations on the consultation proceed meanwhile.
func (s *service) Send(ctx context.Context, id uuid.UUID, text string) (*Consultation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	var prev, done chan struct{}
	var epoch uint64
	_, err = s.update(ctx, sess, id, func(c *Consultation) error {
		c.addUserText(text)
		c.Input = ""
		c.Suggestions = []string{}
		sess.seq.Next()
		sess.pending++
		c.Typing = true
		epoch = sess.epoch

		prev = sess.lastTurn
		done = make(chan struct{})
		sess.lastTurn = done
		return nil
	})
	if err != nil {
		if done != nil {
			// queued but not saved
			sess.mu.Lock()
			sess.pending--
			sess.mu.Unlock()
			close(done)
		}
		return nil, err
	}
	defer close(done)

	var prediction *Prediction
	turnErr := s.waitTurn(ctx, prev)
	if turnErr == nil {
		prediction, turnErr = s.pipeline.Run(ctx, text, func(fn func(c *Consultation)) error {
			_, err := s.update(ctx, sess, id, func(c *Consultation) error {
				if sess.epoch != epoch {
					return errTurnDiscarded
				}
				fn(c)
				return nil
			})
			return err
		})
		if errors.Is(turnErr, errTurnDiscarded) {
			turnErr = nil
		}
	}

	c, err := s.update(ctx, sess, id, func(c *Consultation) error {
		sess.pending--
		c.Typing = sess.pending > 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	if turnErr != nil {
		return nil, turnErr
	}

	if prediction != nil && s.notifier != nil {
		go func(c Consultation, p Prediction) {
			bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.notifier.NotifyPrediction(bgCtx, c, p); err != nil {
				log.Printf("Failed to send prediction notification for consultation %s: %v", c.ID, err)
			}
		}(*c.Clone(), *prediction)
	}
	return c, nil
}

// waitTurn sleeps for the typing delay and then until the previous message
// has been processed.
func (s *service) waitTurn(ctx context.Context, prev chan struct{}) error {
	if s.opts.TypingDelay > 0 {
		timer := time.NewTimer(s.opts.TypingDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if prev == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-prev:
		return nil
	}
}

// Suggest stores input and, once it has been stable for the debounce delay,
// fetches up to MaxSuggestions matches for its last token. Results of
// requests overtaken by a newer one are dropped with suggest.ErrSuperseded.
func (s *service) Suggest(ctx context.Context, id uuid.UUID, input string) ([]string, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	seq := sess.seq.Next()

	if _, err := s.update(ctx, sess, id, func(c *Consultation) error {
		c.Input = input
		return nil
	}); err != nil {
		return nil, err
	}

	if err := suggest.Gate(ctx, &sess.seq, seq, s.opts.SuggestDebounce); err != nil {
		return nil, err
	}

	matches := []string{}
	if token := strings.TrimSpace(suggest.LastToken(input)); token != "" {
		found, err := s.client.FuzzyMatch(ctx, token)
		if err != nil {
			log.Printf("Failed to fetch suggestions for consultation %s: %v", id, err)
		} else if len(found) > 0 {
			matches = suggest.Truncate(found, MaxSuggestions)
		}
	}

	_, err = s.update(ctx, sess, id, func(c *Consultation) error {
		if !sess.seq.IsLatest(seq) {
			return suggest.ErrSuperseded
		}
		c.Suggestions = matches
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *service) SelectSuggestion(ctx context.Context, id uuid.UUID, choice string) (*Consultation, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, sess, id, func(c *Consultation) error {
		sess.seq.Next()
		c.Input = suggest.ReplaceLastToken(c.Input, choice)
		c.Suggestions = []string{}
		return nil
	})
}

func (s *service) RemoveSymptom(ctx context.Context, id uuid.UUID, symptom string) (*Consultation, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, sess, id, func(c *Consultation) error {
		c.RemoveSymptom(symptom)
		return nil
	})
}

// Reset restores a single greeting. Turns still in flight are dropped, while
// the typing indicator stays on until they finish.
func (s *service) Reset(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, sess, id, func(c *Consultation) error {
		sess.seq.Next()
		sess.epoch++
		c.Reset()
		c.Typing = sess.pending > 0
		return nil
	})
}
