package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt, time.Second, 30*time.Second); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestCircuitBreakerTrips(t *testing.T) {
	cb := NewCircuitBreaker("test", BreakerSettings{
		MinRequests:  3,
		FailureRatio: 0.5,
		Interval:     time.Minute,
		OpenTimeout:  time.Minute,
	})

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, boom })
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	_, err := cb.Execute(func() (any, error) { return "ok", nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Execute() on open breaker error = %v, want ErrOpenState", err)
	}
}
