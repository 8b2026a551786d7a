package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"slices"

	"journey/internal/core"
	"journey/internal/log"
	"journey/internal/view"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const snapshotKey = "ledger"

// snapshot is everything the UI renders from. Cached slices are shared
// between requests and must not be modified.
type snapshot struct {
	Objectives   []core.Objective
	Transactions []core.Transaction
	Settings     core.Settings
	Summary      core.Summary
}

// loadSnapshot serves the cached snapshot or rebuilds it once for every
// request waiting on it. The rebuild outlives a cancelled first caller.
func (s *Server) loadSnapshot(ctx context.Context) (snapshot, error) {
	snap, hit, err := s.snapshots.GetOrLoad(snapshotKey, func() (snapshot, error) {
		return s.buildSnapshot(context.WithoutCancel(ctx))
	})
	if hit {
		s.metrics.IncrCacheHit(snapshotKey)
	} else {
		s.metrics.IncrCacheMiss(snapshotKey)
	}
	return snap, err
}

func (s *Server) buildSnapshot(ctx context.Context) (snapshot, error) {
	ctx, span := tracer.Start(ctx, "buildSnapshot")
	defer span.End()

	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Objectives, err = s.ledger.ListObjectives(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Transactions, err = s.ledger.ListTransactions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Settings, err = s.ledger.GetSettings(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return snapshot{}, err
	}

	snap.Summary = core.Summarize(snap.Objectives, snap.Transactions, snap.Settings)
	return snap, nil
}

type navItem struct {
	ID    string
	Icon  string
	Label string
}

var navItems = []navItem{
	{"dashboard", "📊", "Visão Geral"},
	{"meta", "🎯", "Meta & Saldo"},
	{"br_goals", "🇧🇷", "Objetivos BR"},
	{"usa_goals", "🇺🇸", "Objetivos USA"},
	{"emergency", "🚨", "Emergência"},
	{"report", "📈", "Relatório"},
	{"statement", "🧾", "Extrato"},
}

var sectionCategories = map[string]core.Category{
	"br_goals":  core.CategoryBR,
	"usa_goals": core.CategoryUSA,
	"emergency": core.CategoryEmergency,
}

func validSection(name string) bool {
	return slices.ContainsFunc(navItems, func(n navItem) bool { return n.ID == name })
}

type sectionData struct {
	Dashboard  view.DashboardView
	Summary    core.Summary
	Statement  []view.StatementRow
	Objectives view.ObjectivesView
	Report     view.ReportView
	Journey    view.JourneyView
}

type rateView struct {
	Rate      decimal.Decimal
	AutoRate  bool
	UpdatedAt string
}

type amountInput struct {
	ID       string
	Name     string
	Value    string
	From     string
	Other    string
	Required bool
}

func brlInput(value string) amountInput {
	return amountInput{ID: "amountBRL", Name: "amountBRL", Value: value, From: "brl", Other: "amountUSD", Required: true}
}

func usdInput(value string) amountInput {
	return amountInput{ID: "amountUSD", Name: "amountUSD", Value: value, From: "usd", Other: "amountBRL"}
}

type depositForm struct {
	BRL        amountInput
	USD        amountInput
	Date       string
	Time       string
	Objectives []core.Objective
}

type page struct {
	Nav         []navItem
	Section     string
	AuthEnabled bool
	Clock       view.ClockView
	Rate        rateView
	Content     template.HTML
	Form        depositForm
}

func (s *Server) rateView(settings core.Settings) rateView {
	return rateView{
		Rate:      settings.ExchangeRate,
		AutoRate:  s.autoRate,
		UpdatedAt: view.FormatRateTime(settings.LastUpdated, view.BrazilLocation()),
	}
}

// defaultJourneyMonth is the plan month the current balance falls in.
func defaultJourneyMonth(accumulated decimal.Decimal) int {
	return int(accumulated.Div(core.MonthlyGoal()).IntPart()) + 1
}

// sectionTemplate picks the template and data for a sidebar section.
func (s *Server) sectionTemplate(r *http.Request, name string, snap snapshot) (string, any) {
	acc := snap.Summary.AccumulatedBRL
	rate := snap.Settings.ExchangeRate
	data := sectionData{Summary: snap.Summary}

	switch name {
	case "meta":
		month := ParseMonth(r.URL.Query(), defaultJourneyMonth(acc))
		data.Journey = view.Journey(month, acc, rate)
		data.Dashboard = view.Dashboard(acc)
		data.Report = view.Report(acc, snap.Objectives)
		return "section_meta", data
	case "br_goals", "usa_goals", "emergency":
		data.Objectives = view.Objectives(snap.Objectives, sectionCategories[name], rate)
		return "section_goals", data
	case "report":
		data.Report = view.Report(acc, snap.Objectives)
		return "section_report", data
	case "statement":
		return "statement", view.Statement(snap.Transactions, snap.Objectives)
	default:
		data.Dashboard = view.Dashboard(acc)
		data.Statement = view.Statement(snap.Transactions, snap.Objectives)
		return "section_dashboard", data
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	section := r.URL.Query().Get("s")
	if !validSection(section) {
		section = "dashboard"
	}

	snap, err := s.loadSnapshot(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Load ledger failed", log.FieldError, err)
		http.Error(w, "Não foi possível carregar os dados", http.StatusInternalServerError)
		return
	}

	name, data := s.sectionTemplate(r, section, snap)
	var content bytes.Buffer
	if err := s.templates.ExecuteTemplate(&content, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	now := s.now()
	date, hm := view.DepositDefaults(now)
	s.render(w, r, http.StatusOK, "layout", page{
		Nav:         navItems,
		Section:     section,
		AuthEnabled: s.auth != nil,
		Clock:       view.Clock(now),
		Rate:        s.rateView(snap.Settings),
		// html/template output is already escaped.
		Content: template.HTML(content.String()),
		Form: depositForm{
			BRL:        brlInput(""),
			USD:        usdInput(""),
			Date:       date,
			Time:       hm,
			Objectives: snap.Objectives,
		},
	})
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validSection(name) {
		errorFragment(http.StatusNotFound, "Seção desconhecida").Write(w)
		return
	}
	snap, err := s.loadSnapshot(r.Context())
	if err != nil {
		s.uiError(w, r, err, "Não foi possível carregar os dados")
		return
	}
	tmpl, data := s.sectionTemplate(r, name, snap)
	s.render(w, r, http.StatusOK, tmpl, data)
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "clock", view.Clock(s.now()))
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	snap, err := s.loadSnapshot(r.Context())
	if err != nil {
		s.uiError(w, r, err, "Não foi possível carregar a cotação")
		return
	}
	s.render(w, r, http.StatusOK, "rate", s.rateView(snap.Settings))
}

// handleCrossFill answers with the opposite amount input filled from the
// current rate. from=brl reads amountBRL and returns the USD input.
func (s *Server) handleCrossFill(w http.ResponseWriter, r *http.Request) {
	snap, err := s.loadSnapshot(r.Context())
	if err != nil {
		s.uiError(w, r, err, "Não foi possível carregar a cotação")
		return
	}
	q := r.URL.Query()
	rate := snap.Settings.ExchangeRate
	if q.Get("from") == "usd" {
		s.render(w, r, http.StatusOK, "amount_input", brlInput(view.CrossFill(q.Get("amountUSD"), rate, false)))
		return
	}
	s.render(w, r, http.StatusOK, "amount_input", usdInput(view.CrossFill(q.Get("amountBRL"), rate, true)))
}

func (s *Server) handleUIDeposit(w http.ResponseWriter, r *http.Request) {
	tx, err := ParseDeposit(NewRequestBodyParser(w, r), s.now())
	if err != nil {
		s.uiError(w, r, err, "")
		return
	}

	result, err := s.ledger.Deposit(r.Context(), tx)
	if err != nil {
		s.uiError(w, r, err, "Erro ao salvar o depósito")
		return
	}

	stored := result.Transaction
	log.NewStructuredLogger(log.FromContext(r.Context())).LogDepositRecorded(r.Context(),
		stored.ID, stored.AmountBRL, stored.AmountUSD, stored.Bank, stored.ObjectiveID)

	objectiveID := ""
	if stored.ObjectiveID != nil {
		objectiveID = *stored.ObjectiveID
	}
	msg := "Depósito de " + view.FormatBRL(stored.AmountBRL) + " registrado"
	newHXResponse().
		LedgerChanged().
		DepositRecorded(stored.ID, objectiveID).
		ResetForm().
		Notify(LevelSuccess, msg).
		Notice("success", msg).
		Write(w)
}

func (s *Server) handleUIDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := transactionID(r)
	if err != nil {
		s.uiError(w, r, err, "")
		return
	}
	if _, err := s.ledger.ReverseDeposit(r.Context(), id); err != nil {
		s.uiError(w, r, err, "Erro ao excluir a transação")
		return
	}
	newHXResponse().
		LedgerChanged().
		Notify(LevelSuccess, "Transação excluída").
		Write(w)
}

// handleUIToggleObjective flips the completed flag through the upsert path,
// which overwrites only progress fields of an existing objective.
func (s *Server) handleUIToggleObjective(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	objs, err := s.ledger.ListObjectives(r.Context())
	if err != nil {
		s.uiError(w, r, err, "Erro ao carregar objetivos")
		return
	}
	i := slices.IndexFunc(objs, func(o core.Objective) bool { return o.ID == id })
	if i < 0 {
		errorFragment(http.StatusNotFound, "Objetivo não encontrado").Write(w)
		return
	}

	o := objs[i]
	o.Completed = !o.Completed
	if _, _, err := s.ledger.UpsertObjective(r.Context(), o); err != nil {
		s.uiError(w, r, err, "Erro ao atualizar o objetivo")
		return
	}

	msg := o.Name + " em andamento"
	if o.Completed {
		msg = o.Name + " concluído"
	}
	newHXResponse().
		LedgerChanged().
		Notify(LevelSuccess, msg).
		Write(w)
}

func (s *Server) handleUISetRate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		errorFragment(http.StatusUnprocessableEntity, "Formato da requisição inválido").Write(w)
		return
	}
	rate, err := core.ParseAmount(p.Get("exchangeRate"))
	if err != nil || !rate.IsPositive() {
		errorFragment(http.StatusUnprocessableEntity, "Cotação inválida").Write(w)
		return
	}
	settings, err := s.ledger.SaveSettings(r.Context(), rate)
	if err != nil {
		s.uiError(w, r, err, "Erro ao salvar a cotação")
		return
	}
	newHXResponse().
		LedgerChanged().
		Notify(LevelSuccess, "Cotação definida: R$ " + settings.ExchangeRate.StringFixed(4)).
		Write(w)
}

func (s *Server) handleUIRefreshRate(w http.ResponseWriter, r *http.Request) {
	settings, err := s.ledger.RefreshSettings(r.Context())
	if err != nil {
		s.uiError(w, r, err, "Não foi possível atualizar a cotação")
		return
	}
	newHXResponse().
		LedgerChanged().
		Notify(LevelSuccess, "Cotação atualizada: R$ " + settings.ExchangeRate.StringFixed(4)).
		Write(w)
}

// uiError answers an HTMX request with an error fragment. Validation and
// not-found messages are shown as they are; anything else shows fallback.
func (s *Server) uiError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var validation *core.ErrValidation
	if errors.As(err, &validation) {
		errorFragment(http.StatusUnprocessableEntity, validation.Message).Write(w)
		return
	}

	status := statusFor(err)
	if status == http.StatusNotFound {
		errorFragment(http.StatusNotFound, err.Error()).Write(w)
		return
	}

	log.FromContext(r.Context()).ErrorContext(r.Context(), "UI request failed",
		log.FieldError, err,
		log.FieldPath, r.URL.Path)
	if fallback == "" {
		fallback = "Erro inesperado"
	}
	errorFragment(status, fallback).Write(w)
}
