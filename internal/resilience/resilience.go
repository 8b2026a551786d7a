// Package resilience holds the fault-tolerance helpers shared by outbound clients.
//
// Failures of user-facing operations are terminal: nothing here retries a
// request. Backoff is only used by long-running background loops to pace
// reconnection attempts.
package resilience

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings tunes NewCircuitBreaker.
type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	OpenTimeout  time.Duration
}

// DefaultBreakerSettings trips after 5 requests with at least 60% failures.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:  5,
		FailureRatio: 0.6,
		Interval:     30 * time.Second,
		OpenTimeout:  10 * time.Second,
	}
}

// NewCircuitBreaker creates a breaker that logs its state transitions.
func NewCircuitBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Backoff returns base*2^attempt capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
