package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(rpm int) (*Limiter, *time.Time) {
	rl := NewLimiter(Config{RequestsPerMinute: rpm, CleanupInterval: time.Hour})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiter_Allow(t *testing.T) {
	rl, now := newTestLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("fourth request should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other clients have their own window")
	}
	if rl.Hits() != 1 {
		t.Errorf("Hits() = %d, want 1", rl.Hits())
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Error("window should reset after a minute")
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	rl, now := newTestLimiter(1)
	defer rl.Stop()

	if rl.RetryAfter("1.2.3.4") != 0 {
		t.Error("unknown client should not wait")
	}
	rl.Allow("1.2.3.4")
	*now = now.Add(20 * time.Second)
	if got := rl.RetryAfter("1.2.3.4"); got != 40*time.Second {
		t.Errorf("RetryAfter() = %v, want 40s", got)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, now := newTestLimiter(5)
	defer rl.Stop()

	rl.Allow("a")
	*now = now.Add(90 * time.Second)
	rl.Allow("b")
	*now = now.Add(60 * time.Second)

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Errorf("cleanupStaleEntries() = %d, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Errorf("ActiveClients() = %d, want 1", rl.ActiveClients())
	}
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	defer rl.Stop()

	handler := rl.Middleware(
		func(r *http.Request) string { return "1.2.3.4" },
		nil,
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := []int{}
	for _, method := range []string{http.MethodPost, http.MethodPost, http.MethodGet, http.MethodDelete} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, "/api/transactions", nil))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Error("429 should carry Retry-After")
		}
	}

	want := []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusNoContent, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("codes = %v, want %v", codes, want)
			break
		}
	}
}
