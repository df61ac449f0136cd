// Package suggest holds the autocomplete plumbing shared by the chat and
// form flows: request sequencing, debouncing and last-token editing.
package suggest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// ErrSuperseded is returned when a newer request for the same input field
// was dispatched before this one could be applied.
var ErrSuperseded = errors.New("suggestion request superseded by a newer one")

// Sequencer tags requests for one input field with increasing numbers so that
// only the latest response is applied.
type Sequencer struct {
	mu     sync.Mutex
	latest uint64
}

func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

func (s *Sequencer) IsLatest(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.latest
}

// Gate waits for delay and then lets the request through only if no newer
// request was dispatched meanwhile.
func Gate(ctx context.Context, seqr *Sequencer, seq uint64, delay time.Duration) error {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if !seqr.IsLatest(seq) {
		return ErrSuperseded
	}
	return nil
}

// LastToken returns the last whitespace-delimited token of input. Input that
// ends in whitespace has an empty last token.
func LastToken(input string) string {
	return input[tokenStart(input):]
}

// ReplaceLastToken swaps the last token of input for choice, keeps the text
// before it and appends a trailing space.
func ReplaceLastToken(input, choice string) string {
	return input[:tokenStart(input)] + choice + " "
}

func tokenStart(input string) int {
	idx := strings.LastIndexFunc(input, unicode.IsSpace)
	if idx < 0 {
		return 0
	}
	_, size := utf8.DecodeRuneInString(input[idx:])
	return idx + size
}

func Truncate(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[:n]
}
