package pipeline

import (
	"testing"
	"time"
)

func TestRetryBackoff_DoublesPerAttempt(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 8 * time.Minute},
		{5, 16 * time.Minute},
		{6, 32 * time.Minute},
	}
	for _, c := range cases {
		if got := RetryBackoff(c.attempt); got != c.want {
			t.Fatalf("attempt %d: expected %v, got %v", c.attempt, c.want, got)
		}
	}
}

func TestRetryBackoff_CapsAtOneHour(t *testing.T) {
	for _, attempt := range []int{7, 8, 20, 1000} {
		if got := RetryBackoff(attempt); got != 60*time.Minute {
			t.Fatalf("attempt %d: expected 60m cap, got %v", attempt, got)
		}
	}
}

func TestRetryBackoff_ClampsInvalidInput(t *testing.T) {
	if got := RetryBackoff(0); got != time.Minute {
		t.Fatalf("expected clamp to first step, got %v", got)
	}
	if got := RetryBackoff(-3); got != time.Minute {
		t.Fatalf("expected clamp to first step, got %v", got)
	}
}
