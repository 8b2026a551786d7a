package view

import (
	"strings"
	"time"

	"journey/internal/core"

	"github.com/shopspring/decimal"
)

// FormatBRL renders an amount the way Brazilian banks print it: "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	return formatMoney(d, "R$ ", ".", ",")
}

// FormatUSD renders an amount in en-US notation: "$1,234.56".
func FormatUSD(d decimal.Decimal) string {
	return formatMoney(d, "$", ",", ".")
}

// FormatPercent renders a percentage with two decimals: "10.00%".
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

// FormatDateBR renders a calendar date as dd/mm/yyyy.
func FormatDateBR(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02/01/2006")
}

// FormatRateTime renders the rate timestamp shown next to the exchange rate.
func FormatRateTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("02/01/2006 15:04")
}

func formatMoney(d decimal.Decimal, symbol, thousands, decimalSep string) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.Round(2).IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	b.WriteString(groupDigits(intPart, thousands))
	b.WriteString(decimalSep)
	b.WriteString(frac)
	return b.String()
}

func groupDigits(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
