package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"journey/internal/session"
	"journey/internal/view"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderClock(w io.Writer, c view.ClockView) {
	fmt.Fprintf(w, "%s  🇧🇷 %s  🇺🇸 %s\n", c.LongDate, c.Brazil, c.USA)
}

func renderRate(w io.Writer, st session.State) {
	mode := "manual"
	if st.AutoRate {
		mode = "automática"
	}
	fmt.Fprintf(w, "Cotação USD/BRL: R$ %s (%s, atualizada %s)\n",
		st.Rate.StringFixed(4), mode, view.FormatRateTime(st.RateUpdatedAt, view.BrazilLocation()))
}

func renderDashboard(w io.Writer, d view.DashboardView) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Meta total\t%s\n", view.FormatBRL(d.TotalGoal))
	fmt.Fprintf(tw, "Meta mensal\t%s\n", view.FormatBRL(d.MonthlyGoal))
	fmt.Fprintf(tw, "Meta diária\t%s\n", view.FormatBRL(d.DailyGoal))
	fmt.Fprintf(tw, "Acumulado\t%s\n", view.FormatBRL(d.AccumulatedBRL))
	fmt.Fprintf(tw, "Progresso\t%s\n", view.FormatPercent(d.Progress))
	_ = tw.Flush()
}

func renderObjectives(w io.Writer, v view.ObjectivesView) {
	fmt.Fprintln(w, v.Title)
	if len(v.Cards) == 0 {
		fmt.Fprintln(w, "  Nenhum objetivo.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tObjetivo\tMeta BRL\tMeta USD\tAcumulado\tProgresso\tStatus")
	for _, c := range v.Cards {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Icon, c.Name,
			view.FormatBRL(c.DisplayTargetBRL), view.FormatUSD(c.DisplayTargetUSD),
			view.FormatBRL(c.AccumulatedBRL), view.FormatPercent(c.Progress), c.StatusLabel())
	}
	_ = tw.Flush()
}

func renderReport(w io.Writer, r view.ReportView) {
	fmt.Fprintln(w, "Relatório de Alocação")
	tw := newTable(w)
	fmt.Fprintln(tw, "Objetivo\tValor\tMeta\t% do plano\t% da meta\tStatus")
	for _, row := range r.Rows {
		target, progress, status := view.FormatBRL(row.Target), view.FormatPercent(row.TargetProgress), row.StatusLabel()
		if row.Unallocated {
			target, progress, status = "-", "-", "-"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\t%s\t%s\n",
			row.Icon, row.Name, view.FormatBRL(row.Value), target,
			view.FormatPercent(row.PlanShare), progress, status)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "Total alocado: %s de %s (%s)\n",
		view.FormatBRL(r.TotalAllocated), view.FormatBRL(r.TotalTargets), view.FormatPercent(r.AllocatedShare))
	if r.OverAllocatedBRL.IsPositive() {
		fmt.Fprintf(w, "Alocado acima do depositado: %s\n", view.FormatBRL(r.OverAllocatedBRL))
	}
	if r.SurplusBRL.IsPositive() {
		fmt.Fprintf(w, "Excedente sobre a meta: %s\n", view.FormatBRL(r.SurplusBRL))
	}
}

func renderStatement(w io.Writer, rows []view.StatementRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "Nenhuma transação registrada.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tData\tHora\tBanco\tBRL\tUSD\tObjetivo\tDescrição")
	for _, r := range rows {
		desc := ""
		if r.Description != nil {
			desc = *r.Description
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, view.FormatDateBR(r.Date), r.Time, r.Bank,
			view.FormatBRL(r.AmountBRL), view.FormatUSD(r.AmountUSD), r.ObjectiveName, desc)
	}
	_ = tw.Flush()
}

func renderJourney(w io.Writer, j view.JourneyView) {
	fmt.Fprintf(w, "Mês %d de %d\n", j.Month, j.TotalMonths)
	tw := newTable(w)
	fmt.Fprintf(tw, "Projetado\t%s\n", view.FormatBRL(j.ProjectedBRL))
	fmt.Fprintf(tw, "Acumulado\t%s\n", view.FormatBRL(j.AccumulatedBRL))
	fmt.Fprintf(tw, "Progresso\t%s\n", view.FormatPercent(j.Progress))
	fmt.Fprintf(tw, "Meta em USD\t%s\n", view.FormatUSD(j.TargetUSD))
	if j.AheadBRL.IsNegative() {
		fmt.Fprintf(tw, "Atrás do plano\t%s\n", view.FormatBRL(j.AheadBRL.Neg()))
	} else {
		fmt.Fprintf(tw, "À frente do plano\t%s\n", view.FormatBRL(j.AheadBRL))
	}
	_ = tw.Flush()
}
