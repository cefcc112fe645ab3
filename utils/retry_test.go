package utils

import (
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewLogger(false)}

	calls := 0
	err := r.Do("flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewLogger(false)}

	sentinel := errors.New("permanent")
	calls := 0
	err := r.Do("doomed", func() error {
		calls++
		return sentinel
	})

	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
}

func TestPacerEnforcesInterval(t *testing.T) {
	p := NewPacer(20 * time.Millisecond)

	p.Wait() // first call never blocks
	start := time.Now()
	p.Wait()
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("second request ran after %v, want at least ~20ms", elapsed)
	}
}

func TestURLSet(t *testing.T) {
	s := NewURLSet()

	if !s.Add("https://a") {
		t.Error("first add must report new")
	}
	if s.Add("https://a") {
		t.Error("second add must report seen")
	}
	if !s.Contains("https://a") || s.Contains("https://b") {
		t.Error("membership mismatch")
	}
	if s.Size() != 1 {
		t.Errorf("Size: got %d, want 1", s.Size())
	}
}
