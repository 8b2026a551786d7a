package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Component: component, Output: buf})
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentWorker)

	logger.Info("hello", "k", "v")
	logger.WithComponent(ComponentRates).Warn("quote failed")
	logger.Slog().Info("plain")

	got := lines(t, &buf)
	if len(got) != 3 {
		t.Fatalf("got %d lines", len(got))
	}
	for i, want := range []string{ComponentWorker, ComponentRates, ComponentWorker} {
		if got[i][FieldComponent] != want {
			t.Errorf("line %d component = %v, want %s", i, got[i][FieldComponent], want)
		}
	}
	if got[0]["k"] != "v" {
		t.Errorf("line 0 = %v", got[0])
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("component = %q", got)
	}

	var buf bytes.Buffer
	ctx := IntoContext(context.Background(), jsonLogger(&buf, ComponentHTTP))
	if got := FromContext(ctx).Component(); got != ComponentHTTP {
		t.Errorf("component = %q", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := Middleware(jsonLogger(&buf, ComponentHTTP))(
		RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				FromContext(r.Context()).Info("inside")
			})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	got := lines(t, &buf)
	if len(got) != 1 || got[0][FieldRequestID] != "req-42" {
		t.Errorf("lines = %v", got)
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusTooManyRequests, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(jsonLogger(&buf, ComponentApp))
		r := httptest.NewRequest(http.MethodPost, "/ui/deposit?x=1", nil)
		sl.LogHTTPEnd(context.Background(), r, tt.status, 12, "10.0.0.1")

		got := lines(t, &buf)
		if len(got) != 1 {
			t.Fatalf("status %d: %d lines", tt.status, len(got))
		}
		line := got[0]
		if line["level"] != tt.level || line[FieldStatusCode] != float64(tt.status) {
			t.Errorf("status %d: line = %v", tt.status, line)
		}
		if line[FieldQuery] != "x=1" || line[FieldClientIP] != "10.0.0.1" || line[FieldComponent] != ComponentHTTP {
			t.Errorf("status %d: line = %v", tt.status, line)
		}
	}
}

func TestLogDepositRecorded(t *testing.T) {
	var buf bytes.Buffer
	obj := "iphone"
	NewStructuredLogger(jsonLogger(&buf, ComponentHTTP)).LogDepositRecorded(context.Background(),
		5, decimal.NewFromInt(1000), decimal.RequireFromString("184.5"), "Nubank", &obj)

	got := lines(t, &buf)
	if len(got) != 1 {
		t.Fatalf("got %d lines", len(got))
	}
	line := got[0]
	want := map[string]any{
		FieldComponent:     ComponentLedger,
		FieldTransactionID: float64(5),
		FieldAmountBRL:     "1000.00",
		FieldAmountUSD:     "184.50",
		FieldBank:          "Nubank",
		FieldObjectiveID:   "iphone",
		FieldOperation:     OpDeposit,
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
}

func TestDepositAttrsOmitsUnknowns(t *testing.T) {
	attrs := DepositAttrs(0, decimal.NewFromInt(1), decimal.Zero, "Inter", nil)
	if len(attrs) != 3 {
		t.Errorf("attrs = %v, want amounts and bank only", attrs)
	}
}
