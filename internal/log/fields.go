package log

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// Attribute keys shared by every journey log line.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldObjectiveID   = "objective_id"
	FieldTransactionID = "transaction_id"
	FieldAmountBRL     = "amount_brl"
	FieldAmountUSD     = "amount_usd"
	FieldBank          = "bank"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentSession  = "session"
	ComponentRates    = "rates"
	ComponentWorker   = "worker"
	ComponentSecurity = "security"
	ComponentAuth     = "auth"
)

const OpDeposit = "deposit"

// DepositAttrs describes a ledger entry. Amounts are logged with two
// decimals so they read like the statement.
func DepositAttrs(txID int64, amountBRL, amountUSD decimal.Decimal, bank string, objectiveID *string) []any {
	attrs := make([]any, 0, 5)
	if txID > 0 {
		attrs = append(attrs, slog.Int64(FieldTransactionID, txID))
	}
	attrs = append(attrs,
		slog.String(FieldAmountBRL, amountBRL.StringFixed(2)),
		slog.String(FieldAmountUSD, amountUSD.StringFixed(2)),
		slog.String(FieldBank, bank),
	)
	if objectiveID != nil {
		attrs = append(attrs, slog.String(FieldObjectiveID, *objectiveID))
	}
	return attrs
}

// requestAttrs skips empty optional values.
func requestAttrs(method, path, query, userAgent, clientIP string) []any {
	attrs := []any{slog.String(FieldMethod, method), slog.String(FieldPath, path)}
	if query != "" {
		attrs = append(attrs, slog.String(FieldQuery, query))
	}
	if userAgent != "" {
		attrs = append(attrs, slog.String(FieldUserAgent, userAgent))
	}
	if clientIP != "" {
		attrs = append(attrs, slog.String(FieldClientIP, clientIP))
	}
	return attrs
}
