package log

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
)

type ctxKey struct{}

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), logger)))
		})
	}
}

func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or slog's default under the
// "unknown" component when none was stored.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// RequestIDMiddleware tags the request logger with the id from extract.
func RequestIDMiddleware(extract func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extract(r))
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger writes the log lines repeated across handlers so they
// keep the same shape everywhere.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	sl.logger.WithComponent(ComponentHTTP).DebugContext(ctx, "HTTP request started",
		requestAttrs(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), clientIP)...)
}

// LogHTTPEnd logs 4xx at warn and 5xx at error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	attrs := append(requestAttrs(r.Method, r.URL.Path, r.URL.RawQuery, "", clientIP),
		slog.Int(FieldStatusCode, statusCode),
		slog.Int64(FieldDuration, durationMs),
		slog.String(FieldComponent, ComponentHTTP),
	)
	sl.logger.Logger.Log(ctx, level, "HTTP request completed", attrs...)
}

func (sl *StructuredLogger) LogDepositRecorded(ctx context.Context, txID int64, amountBRL, amountUSD decimal.Decimal, bank string, objectiveID *string) {
	attrs := append(DepositAttrs(txID, amountBRL, amountUSD, bank, objectiveID), slog.String(FieldOperation, OpDeposit))
	sl.logger.WithComponent(ComponentLedger).InfoContext(ctx, "Deposit recorded", attrs...)
}
