// Package view derives everything the UI shows from a ledger snapshot.
// Functions here are pure: they never mutate their inputs and never talk to
// the network, so the server templates and journeyctl render the same numbers.
package view

import (
	"slices"

	"journey/internal/core"

	"github.com/shopspring/decimal"
)

// UnallocatedName labels the report row holding money not assigned to any objective.
const (
	UnallocatedName = "Saldo Geral (Não Alocado)"
	UnallocatedIcon = "💼"
)

var hundred = decimal.NewFromInt(100)

// barWidth caps a percentage for progress bars. The number itself is never capped.
func barWidth(pct decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(pct, decimal.Zero), hundred).Round(2)
}

// DashboardView is the overview card.
type DashboardView struct {
	TotalGoal      decimal.Decimal
	MonthlyGoal    decimal.Decimal
	DailyGoal      decimal.Decimal
	AccumulatedBRL decimal.Decimal
	Progress       decimal.Decimal
	BarWidth       decimal.Decimal
}

func Dashboard(accumulated decimal.Decimal) DashboardView {
	progress := core.PlanProgress(accumulated).Round(2)
	return DashboardView{
		TotalGoal:      core.PlanTargetBRL,
		MonthlyGoal:    core.MonthlyGoal(),
		DailyGoal:      core.DailyGoal().Round(2),
		AccumulatedBRL: accumulated,
		Progress:       progress,
		BarWidth:       barWidth(progress),
	}
}

// ObjectiveCard is one objective as rendered in a category list.
type ObjectiveCard struct {
	core.Objective
	DisplayTargetBRL decimal.Decimal
	DisplayTargetUSD decimal.Decimal
	AccumulatedUSD   decimal.Decimal
	Progress         decimal.Decimal
	BarWidth         decimal.Decimal
}

// ObjectivesView lists the objectives of one category at the current rate.
type ObjectivesView struct {
	Category core.Category
	Title    string
	Cards    []ObjectiveCard
}

func Objectives(list []core.Objective, category core.Category, rate decimal.Decimal) ObjectivesView {
	v := ObjectivesView{
		Category: category,
		Title:    "Objetivos " + category.String(),
		Cards:    []ObjectiveCard{},
	}
	for _, o := range list {
		if o.Category != category {
			continue
		}
		brl, usd := core.DisplayTargets(o, rate)
		progress := core.Percent(o.AccumulatedBRL, brl).Round(2)
		v.Cards = append(v.Cards, ObjectiveCard{
			Objective:        o,
			DisplayTargetBRL: brl.Round(2),
			DisplayTargetUSD: usd.Round(2),
			AccumulatedUSD:   core.AccumulatedUSD(o, rate).Round(2),
			Progress:         progress,
			BarWidth:         barWidth(progress),
		})
	}
	return v
}

// StatusLabel is the card badge for an objective.
func (c ObjectiveCard) StatusLabel() string {
	if c.Completed {
		return "Concluído"
	}
	return "Em andamento"
}

// ReportRow is one line of the allocation report.
type ReportRow struct {
	ID             string
	Icon           string
	Name           string
	Value          decimal.Decimal
	Target         decimal.Decimal
	PlanShare      decimal.Decimal
	TargetProgress decimal.Decimal
	BarWidth       decimal.Decimal
	Completed      bool
	Unallocated    bool
}

func (r ReportRow) StatusLabel() string {
	if r.Completed {
		return "Concluído"
	}
	return "Pendente"
}

// ReportView is the allocation report with its footer totals.
type ReportView struct {
	Rows             []ReportRow
	TotalTargets     decimal.Decimal
	TotalAllocated   decimal.Decimal
	AllocatedShare   decimal.Decimal
	AccumulatedBRL   decimal.Decimal
	UnallocatedBRL   decimal.Decimal
	OverAllocatedBRL decimal.Decimal
	SurplusBRL       decimal.Decimal
}

// Report distributes the accumulated balance over the objectives. The
// unallocated row never goes below zero; when objective balances exceed the
// deposits the difference is reported in OverAllocatedBRL instead.
func Report(accumulated decimal.Decimal, objectives []core.Objective) ReportView {
	allocated := core.SumAllocated(objectives)
	unallocated := decimal.Max(decimal.Zero, accumulated.Sub(allocated))

	rows := make([]ReportRow, 0, len(objectives)+1)
	totalTargets := decimal.Zero
	for _, o := range objectives {
		totalTargets = totalTargets.Add(o.TargetBRL)
		rows = append(rows, ReportRow{
			ID:        o.ID,
			Icon:      o.Icon,
			Name:      o.Name,
			Value:     o.AccumulatedBRL,
			Target:    o.TargetBRL,
			Completed: o.Completed,
		})
	}
	rows = append(rows, ReportRow{
		ID:          "unallocated",
		Icon:        UnallocatedIcon,
		Name:        UnallocatedName,
		Value:       unallocated,
		Target:      decimal.Zero,
		Unallocated: true,
	})

	rows = slices.DeleteFunc(rows, func(r ReportRow) bool {
		return !r.Value.IsPositive() && !r.Target.IsPositive()
	})
	slices.SortStableFunc(rows, func(a, b ReportRow) int {
		return b.Value.Cmp(a.Value)
	})

	for i := range rows {
		rows[i].PlanShare = core.Percent(rows[i].Value, core.PlanTargetBRL).Round(2)
		rows[i].TargetProgress = core.Percent(rows[i].Value, rows[i].Target).Round(2)
		rows[i].BarWidth = barWidth(rows[i].PlanShare)
	}

	return ReportView{
		Rows:             rows,
		TotalTargets:     totalTargets,
		TotalAllocated:   allocated,
		AllocatedShare:   core.Percent(allocated, core.PlanTargetBRL).Round(2),
		AccumulatedBRL:   accumulated,
		UnallocatedBRL:   unallocated,
		OverAllocatedBRL: decimal.Max(decimal.Zero, allocated.Sub(accumulated)),
		SurplusBRL:       decimal.Max(decimal.Zero, accumulated.Sub(core.PlanTargetBRL)),
	}
}

// StatementRow is a transaction with the objective it was tagged with, if any.
type StatementRow struct {
	core.Transaction
	ObjectiveName string
}

// Statement lists transactions newest first. Tags pointing at unknown
// objectives render without a name.
func Statement(txs []core.Transaction, objectives []core.Objective) []StatementRow {
	sorted := slices.Clone(txs)
	core.SortNewestFirst(sorted)

	names := make(map[string]string, len(objectives))
	for _, o := range objectives {
		names[o.ID] = o.Icon + " " + o.Name
	}

	rows := make([]StatementRow, len(sorted))
	for i, tx := range sorted {
		rows[i] = StatementRow{Transaction: tx}
		if tx.ObjectiveID != nil {
			rows[i].ObjectiveName = names[*tx.ObjectiveID]
		}
	}
	return rows
}

// CrossFill derives the other currency for the deposit form. An unparsable
// input clears the other field.
func CrossFill(input string, rate decimal.Decimal, fromBRL bool) string {
	amount, err := core.ParseAmount(input)
	if err != nil || !rate.IsPositive() {
		return ""
	}
	if fromBRL {
		return core.ConvertBRLToUSD(amount, rate).StringFixed(2)
	}
	return core.ConvertUSDToBRL(amount, rate).StringFixed(2)
}

// JourneyView projects the plan at a given month next to the real balance.
type JourneyView struct {
	Month          int
	TotalMonths    int
	ProjectedBRL   decimal.Decimal
	AccumulatedBRL decimal.Decimal
	Progress       decimal.Decimal
	TargetUSD      decimal.Decimal
	AheadBRL       decimal.Decimal
	HasPrev        bool
	HasNext        bool
}

// Journey clamps month to the plan length. AheadBRL is negative when the
// real balance trails the projection.
func Journey(month int, accumulated, rate decimal.Decimal) JourneyView {
	month = max(1, min(month, core.PlanMonths))
	projected := core.MonthlyGoal().Mul(decimal.NewFromInt(int64(month)))
	return JourneyView{
		Month:          month,
		TotalMonths:    core.PlanMonths,
		ProjectedBRL:   projected,
		AccumulatedBRL: accumulated,
		Progress:       core.PlanProgress(accumulated).Round(2),
		TargetUSD:      core.ConvertBRLToUSD(core.PlanTargetBRL, rate),
		AheadBRL:       accumulated.Sub(projected),
		HasPrev:        month > 1,
		HasNext:        month < core.PlanMonths,
	}
}
