package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"journey/internal/core"
	"journey/internal/view"
)

// RequestBodyParser reads a JSON or form-encoded body once. HTMX posts forms,
// scripts tend to post JSON; handlers read both through Get.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

const (
	maxBankLen        = 100
	maxDescriptionLen = 200
)

// ParseDeposit builds a deposit from the form fields amountBRL, amountUSD,
// date, time, bank, description and objectiveId. Empty date and time fall
// back to the current Brasília wall clock. An empty USD amount stays zero so
// the ledger derives it from the stored rate.
func ParseDeposit(p *RequestBodyParser, now time.Time) (core.Transaction, error) {
	if err := p.Parse(); err != nil {
		return core.Transaction{}, &core.ErrValidation{Message: "Formato da requisição inválido"}
	}

	var tx core.Transaction

	brl, err := core.ParseAmount(p.Get("amountBRL"))
	if err != nil {
		return core.Transaction{}, &core.ErrValidation{Field: "amountBRL", Message: "Valor em reais inválido"}
	}
	tx.AmountBRL = brl

	if raw := p.Get("amountUSD"); raw != "" {
		usd, err := core.ParseAmount(raw)
		if err != nil {
			return core.Transaction{}, &core.ErrValidation{Field: "amountUSD", Message: "Valor em dólares inválido"}
		}
		tx.AmountUSD = usd
	}

	defDate, defTime := view.DepositDefaults(now)

	rawDate := p.Get("date")
	if rawDate == "" {
		rawDate = defDate
	}
	tx.Date, err = core.ParseDate(rawDate)
	if err != nil {
		return core.Transaction{}, &core.ErrValidation{Field: "date", Message: "Data inválida"}
	}

	tx.Time = p.Get("time")
	if tx.Time == "" {
		tx.Time = defTime
	}
	if _, err := time.Parse("15:04", tx.Time); err != nil {
		return core.Transaction{}, &core.ErrValidation{Field: "time", Message: "Hora inválida"}
	}

	tx.Bank = p.Get("bank")
	if tx.Bank == "" {
		return core.Transaction{}, &core.ErrValidation{Field: "bank", Message: "Informe o banco"}
	}
	if len([]rune(tx.Bank)) > maxBankLen {
		return core.Transaction{}, &core.ErrValidation{Field: "bank", Message: "Nome do banco muito longo"}
	}

	if d := p.Get("description"); d != "" {
		if len([]rune(d)) > maxDescriptionLen {
			return core.Transaction{}, &core.ErrValidation{Field: "description", Message: "Descrição muito longa"}
		}
		tx.Description = core.StringPtr(d)
	}
	if id := p.Get("objectiveId"); id != "" {
		tx.ObjectiveID = core.StringPtr(id)
	}
	return tx, nil
}

// ParseMonth reads the journey month from the query. Missing or invalid
// values return fallback; range clamping happens in the view.
func ParseMonth(query url.Values, fallback int) int {
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			return m
		}
	}
	return fallback
}
