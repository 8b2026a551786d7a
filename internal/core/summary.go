package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// The savings plan: R$ 200.000,00 over 100 months of 30 days.
var PlanTargetBRL = decimal.NewFromInt(200000)

const (
	PlanMonths       = 100
	PlanDaysPerMonth = 30
)

var hundred = decimal.NewFromInt(100)

// MonthlyGoal is the plan target spread over PlanMonths.
func MonthlyGoal() decimal.Decimal {
	return PlanTargetBRL.Div(decimal.NewFromInt(PlanMonths))
}

// DailyGoal is the plan target spread over PlanMonths*PlanDaysPerMonth days.
func DailyGoal() decimal.Decimal {
	return PlanTargetBRL.Div(decimal.NewFromInt(PlanMonths * PlanDaysPerMonth))
}

// PlanProgress returns accumulated as a percentage of the plan target. It is not capped.
func PlanProgress(accumulated decimal.Decimal) decimal.Decimal {
	return accumulated.Div(PlanTargetBRL).Mul(hundred)
}

// Percent returns value/target*100, or zero when target is not positive.
func Percent(value, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	return value.Div(target).Mul(hundred)
}

// Summary is the server-computed aggregate over the whole ledger.
type Summary struct {
	AccumulatedBRL   decimal.Decimal `json:"accumulatedBRL"`
	AccumulatedUSD   decimal.Decimal `json:"accumulatedUSD"`
	AllocatedBRL     decimal.Decimal `json:"allocatedBRL"`
	UnallocatedBRL   decimal.Decimal `json:"unallocatedBRL"`
	OverAllocatedBRL decimal.Decimal `json:"overAllocatedBRL"`
	SurplusBRL       decimal.Decimal `json:"surplusBRL"`
	PlanProgress     decimal.Decimal `json:"planProgress"`
	ExchangeRate     decimal.Decimal `json:"exchangeRate"`
	RateUpdatedAt    time.Time       `json:"rateUpdatedAt"`
	TransactionCount int             `json:"transactionCount"`
	ObjectiveCount   int             `json:"objectiveCount"`
	CompletedCount   int             `json:"completedCount"`
}

// Summarize derives the aggregate from the stored records. UnallocatedBRL
// keeps its sign; OverAllocatedBRL exposes the amount by which objective
// balances exceed the deposits.
func Summarize(objectives []Objective, txs []Transaction, settings Settings) Summary {
	acc := SumBRL(txs)
	allocated := SumAllocated(objectives)
	unallocated := acc.Sub(allocated)

	s := Summary{
		AccumulatedBRL:   acc,
		AccumulatedUSD:   ConvertBRLToUSD(acc, settings.ExchangeRate),
		AllocatedBRL:     allocated,
		UnallocatedBRL:   unallocated,
		OverAllocatedBRL: decimal.Max(decimal.Zero, unallocated.Neg()),
		SurplusBRL:       decimal.Max(decimal.Zero, acc.Sub(PlanTargetBRL)),
		PlanProgress:     PlanProgress(acc).Round(2),
		ExchangeRate:     settings.ExchangeRate,
		RateUpdatedAt:    settings.LastUpdated,
		TransactionCount: len(txs),
		ObjectiveCount:   len(objectives),
	}
	for _, o := range objectives {
		if o.Completed {
			s.CompletedCount++
		}
	}
	return s
}
