// Package core holds the savings-journey domain: objectives, deposits,
// the exchange-rate singleton and the BRL/USD arithmetic shared by the
// server and the clients.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultExchangeRate is used whenever no settings row exists yet.
var DefaultExchangeRate = decimal.NewFromFloat(5.0)

// ParseAmount converts user input to a decimal.
//
// Both decimal separators are accepted. When dot and comma appear together the
// right-most one is the decimal separator and the other is a thousands separator:
//
//	ParseAmount("1234.56")   -> 1234.56
//	ParseAmount("1234,56")   -> 1234.56
//	ParseAmount("1.234,56")  -> 1234.56
//	ParseAmount("1,234.56")  -> 1234.56
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "amount is required"}
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "invalid amount " + s}
	}
	return d, nil
}

// ConvertBRLToUSD divides by rate and rounds to cents. A non-positive rate yields zero.
func ConvertBRLToUSD(brl, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return brl.Div(rate).Round(2)
}

// ConvertUSDToBRL multiplies by rate and rounds to cents.
func ConvertUSDToBRL(usd, rate decimal.Decimal) decimal.Decimal {
	return usd.Mul(rate).Round(2)
}

// DisplayTargets derives the pair of targets shown for o at the given rate.
// USA objectives keep USD as the source of truth; the rest keep BRL. The
// objective itself is never modified.
func DisplayTargets(o Objective, rate decimal.Decimal) (brl, usd decimal.Decimal) {
	if !rate.IsPositive() {
		return o.TargetBRL, o.TargetUSD
	}
	if o.Category.USDAuthoritative() {
		return o.TargetUSD.Mul(rate), o.TargetUSD
	}
	return o.TargetBRL, o.TargetBRL.Div(rate)
}

// AccumulatedUSD converts the accumulated BRL balance of o at rate.
func AccumulatedUSD(o Objective, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return o.AccumulatedBRL.Div(rate)
}

// SumBRL adds up the BRL amount of every transaction.
func SumBRL(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.AmountBRL)
	}
	return total
}

// SumAllocated adds up the accumulated BRL of every objective.
func SumAllocated(objectives []Objective) decimal.Decimal {
	total := decimal.Zero
	for _, o := range objectives {
		total = total.Add(o.AccumulatedBRL)
	}
	return total
}
