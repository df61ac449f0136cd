package suggest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestLastToken(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"head", "head"},
		{"I have a head", "head"},
		{"I have a head ", ""},
		{"fever\tcou", "cou"},
		{"tired　naus", "naus"},
	}
	for _, tt := range tests {
		if got := LastToken(tt.input); got != tt.want {
			t.Errorf("LastToken(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestReplaceLastToken(t *testing.T) {
	tests := []struct {
		input  string
		choice string
		want   string
	}{
		{"I have head", "headache", "I have headache "},
		{"head", "headache", "headache "},
		{"", "fever", "fever "},
		{"I feel ", "nausea", "I feel nausea "},
		{"tired　naus", "nausea", "tired　nausea "},
	}
	for _, tt := range tests {
		if got := ReplaceLastToken(tt.input, tt.choice); got != tt.want {
			t.Errorf("ReplaceLastToken(%q, %q) = %q, want %q", tt.input, tt.choice, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	list := []string{"a", "b", "c", "d"}
	if got := Truncate(list, 3); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Truncate = %v", got)
	}
	if got := Truncate(list[:2], 3); len(got) != 2 {
		t.Errorf("Truncate short list = %v", got)
	}
}

func TestSequencer(t *testing.T) {
	var s Sequencer
	first := s.Next()
	if !s.IsLatest(first) {
		t.Fatal("first request should be latest")
	}
	second := s.Next()
	if second <= first {
		t.Fatalf("sequence not increasing: %d then %d", first, second)
	}
	if s.IsLatest(first) {
		t.Error("older request still reported as latest")
	}
	if !s.IsLatest(second) {
		t.Error("newest request not reported as latest")
	}
}

func TestGate(t *testing.T) {
	var s Sequencer
	old := s.Next()
	latest := s.Next()

	if err := Gate(context.Background(), &s, old, 0); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Gate(old) = %v, want ErrSuperseded", err)
	}
	if err := Gate(context.Background(), &s, latest, time.Millisecond); err != nil {
		t.Errorf("Gate(latest) = %v, want nil", err)
	}
}

func TestGate_SupersededDuringWait(t *testing.T) {
	var s Sequencer
	seq := s.Next()

	done := make(chan error, 1)
	go func() {
		done <- Gate(context.Background(), &s, seq, 50*time.Millisecond)
	}()
	s.Next()

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("Gate = %v, want ErrSuperseded", err)
	}
}

func TestGate_ContextCancelled(t *testing.T) {
	var s Sequencer
	seq := s.Next()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Gate(ctx, &s, seq, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Gate = %v, want context.Canceled", err)
	}
}
