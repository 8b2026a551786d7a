// Package session mirrors the server records into one local view-state and
// performs the paired local-then-remote updates behind every user action.
//
// Network calls are made without holding the state lock, so overlapping
// actions interleave and the last write to a counter wins. No call is retried.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"journey/internal/client"
	"journey/internal/core"
	"journey/internal/rates"

	"github.com/shopspring/decimal"
)

// API is the slice of the REST surface the session uses.
type API interface {
	GetSettings(ctx context.Context) (core.Settings, error)
	SaveSettings(ctx context.Context, rate decimal.Decimal) (core.Settings, error)
	ListObjectives(ctx context.Context) ([]core.Objective, error)
	UpsertObjective(ctx context.Context, o core.Objective) (core.Objective, bool, error)
	ReplaceObjective(ctx context.Context, o core.Objective) error
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	Deposit(ctx context.Context, tx core.Transaction) (client.DepositResult, error)
	ReverseDeposit(ctx context.Context, id int64) (client.DepositResult, error)
}

// State is the local view-state. Transactions are newest first.
type State struct {
	Rate           decimal.Decimal
	RateUpdatedAt  time.Time
	AutoRate       bool
	Objectives     []core.Objective
	Transactions   []core.Transaction
	AccumulatedBRL decimal.Decimal
	LastError      string
	Loaded         bool
}

func (s State) clone() State {
	out := s
	out.Objectives = append([]core.Objective(nil), s.Objectives...)
	out.Transactions = append([]core.Transaction(nil), s.Transactions...)
	return out
}

// ObjectiveByID returns the local copy of an objective.
func (s State) ObjectiveByID(id string) (core.Objective, bool) {
	for _, o := range s.Objectives {
		if o.ID == id {
			return o, true
		}
	}
	return core.Objective{}, false
}

// Step names the part of a multi-step write that failed.
type Step string

const (
	StepPersistTransaction Step = "persist transaction"
	StepPersistObjective   Step = "persist objective"
	StepDeleteTransaction  Step = "delete transaction"
)

// StepError reports which step failed. Local changes made by earlier steps
// are kept.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ErrCancelled is returned when the user declines a confirmation.
var ErrCancelled = errors.New("cancelled by user")

type Session struct {
	api    API
	quoter rates.Quoter
	atomic bool
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

type Option func(*Session)

func WithQuoter(q rates.Quoter) Option {
	return func(s *Session) { s.quoter = q }
}

// WithAtomicDeposits routes deposits and deletions through the server's
// all-or-nothing endpoints instead of the paired client-side updates.
func WithAtomicDeposits() Option {
	return func(s *Session) { s.atomic = true }
}

func WithManualRate() Option {
	return func(s *Session) { s.state.AutoRate = false }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func New(api API, opts ...Option) *Session {
	s := &Session{
		api:    api,
		logger: slog.Default(),
		state: State{
			Rate:           core.DefaultExchangeRate,
			AutoRate:       true,
			Objectives:     core.DefaultCatalog(),
			AccumulatedBRL: decimal.Zero,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Session) fail(ctx context.Context, msg string, err error) {
	s.logger.ErrorContext(ctx, msg, "error", err)
	s.mu.Lock()
	s.state.LastError = fmt.Sprintf("%s: %v", msg, err)
	s.mu.Unlock()
}

// Load fetches settings, objectives and transactions. An empty objective
// set is seeded with the default catalog one record at a time. The balance
// is always recomputed from the transaction list.
func (s *Session) Load(ctx context.Context) error {
	settings, err := s.api.GetSettings(ctx)
	if err != nil {
		s.fail(ctx, "Error loading data", err)
		return fmt.Errorf("load settings: %w", err)
	}
	s.mu.Lock()
	s.state.Rate = settings.ExchangeRate
	s.state.RateUpdatedAt = settings.LastUpdated
	s.mu.Unlock()

	objs, err := s.api.ListObjectives(ctx)
	if err != nil {
		s.fail(ctx, "Error loading data", err)
		return fmt.Errorf("load objectives: %w", err)
	}
	if len(objs) == 0 {
		objs = core.DefaultCatalog()
		for _, o := range objs {
			if _, _, err := s.api.UpsertObjective(ctx, o); err != nil {
				s.fail(ctx, "Error seeding objectives", err)
				return fmt.Errorf("seed objective %s: %w", o.ID, err)
			}
		}
		s.logger.InfoContext(ctx, "Seeded default objectives", "count", len(objs))
	}
	s.mu.Lock()
	s.state.Objectives = objs
	s.mu.Unlock()

	txs, err := s.api.ListTransactions(ctx)
	if err != nil {
		s.fail(ctx, "Error loading data", err)
		return fmt.Errorf("load transactions: %w", err)
	}
	core.SortNewestFirst(txs)

	s.mu.Lock()
	s.state.Transactions = txs
	s.state.AccumulatedBRL = core.SumBRL(txs)
	s.state.Loaded = true
	s.state.LastError = ""
	auto := s.state.AutoRate
	s.mu.Unlock()

	if auto {
		s.RefreshRate(ctx)
	}
	return nil
}

// RefreshRate looks up the external quote and persists it. Any failure is
// logged and the previous rate kept.
func (s *Session) RefreshRate(ctx context.Context) {
	if s.quoter == nil {
		return
	}
	rate, err := s.quoter.Quote(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Error fetching exchange rate", "error", err)
		return
	}

	s.mu.Lock()
	s.state.Rate = rate
	s.mu.Unlock()

	saved, err := s.api.SaveSettings(ctx, rate)
	if err != nil {
		s.logger.WarnContext(ctx, "Error saving exchange rate", "error", err)
		return
	}
	s.mu.Lock()
	s.state.RateUpdatedAt = saved.LastUpdated
	s.mu.Unlock()
}

// SetManualRate switches auto-rate off and persists rate. A persistence
// failure is logged only.
func (s *Session) SetManualRate(ctx context.Context, rate decimal.Decimal) {
	s.mu.Lock()
	s.state.Rate = rate
	s.state.AutoRate = false
	s.mu.Unlock()

	saved, err := s.api.SaveSettings(ctx, rate)
	if err != nil {
		s.logger.WarnContext(ctx, "Error saving rate", "error", err)
		return
	}
	s.mu.Lock()
	s.state.RateUpdatedAt = saved.LastUpdated
	s.mu.Unlock()
}

// EnableAutoRate switches auto-rate back on and refreshes immediately.
func (s *Session) EnableAutoRate(ctx context.Context) {
	s.mu.Lock()
	s.state.AutoRate = true
	s.mu.Unlock()
	s.RefreshRate(ctx)
}

// DepositInput is what the deposit form collects. A nil AmountUSD is derived
// from the rate in effect now and never recomputed afterwards.
type DepositInput struct {
	AmountBRL   decimal.Decimal
	AmountUSD   *decimal.Decimal
	Date        core.Date
	Time        string
	Bank        string
	Description *string
	ObjectiveID *string
}

func (s *Session) toTransaction(in DepositInput) core.Transaction {
	s.mu.Lock()
	rate := s.state.Rate
	s.mu.Unlock()

	usd := core.ConvertBRLToUSD(in.AmountBRL, rate)
	if in.AmountUSD != nil {
		usd = *in.AmountUSD
	}
	tx := core.Transaction{
		AmountBRL:   in.AmountBRL,
		AmountUSD:   usd,
		Date:        in.Date,
		Time:        in.Time,
		Bank:        in.Bank,
		Description: in.Description,
	}
	if in.ObjectiveID != nil && *in.ObjectiveID != "" {
		tx.ObjectiveID = in.ObjectiveID
	}
	return tx
}

// Deposit records a deposit.
//
// The transaction is persisted first, then prepended locally and added to
// the balance. A tagged objective is credited locally and then persisted.
// If that last call fails the local state stays ahead of the server and a
// *StepError with StepPersistObjective is returned.
func (s *Session) Deposit(ctx context.Context, in DepositInput) (core.Transaction, error) {
	tx := s.toTransaction(in)
	if s.atomic {
		return s.depositAtomic(ctx, tx)
	}

	saved, err := s.api.CreateTransaction(ctx, tx)
	if err != nil {
		s.fail(ctx, "Error saving deposit", err)
		return core.Transaction{}, &StepError{Step: StepPersistTransaction, Err: err}
	}

	s.mu.Lock()
	s.state.Transactions = append([]core.Transaction{saved}, s.state.Transactions...)
	s.state.AccumulatedBRL = s.state.AccumulatedBRL.Add(saved.AmountBRL)

	var (
		updated core.Objective
		tagged  bool
	)
	if saved.IsTagged() {
		for i, o := range s.state.Objectives {
			if o.ID == *saved.ObjectiveID {
				o.AccumulatedBRL = o.AccumulatedBRL.Add(saved.AmountBRL)
				s.state.Objectives[i] = o
				updated, tagged = o, true
				break
			}
		}
	}
	s.mu.Unlock()

	if tagged {
		if err := s.api.ReplaceObjective(ctx, updated); err != nil {
			s.fail(ctx, "Error saving deposit", err)
			return saved, &StepError{Step: StepPersistObjective, Err: err}
		}
	}
	return saved, nil
}

func (s *Session) depositAtomic(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	res, err := s.api.Deposit(ctx, tx)
	if err != nil {
		s.fail(ctx, "Error saving deposit", err)
		return core.Transaction{}, &StepError{Step: StepPersistTransaction, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Transactions = append([]core.Transaction{res.Transaction}, s.state.Transactions...)
	s.state.AccumulatedBRL = s.state.AccumulatedBRL.Add(res.Transaction.AmountBRL)
	if res.Objective != nil {
		s.replaceLocal(*res.Objective)
	}
	return res.Transaction, nil
}

// replaceLocal swaps in o by id. Callers hold s.mu.
func (s *Session) replaceLocal(o core.Objective) {
	for i := range s.state.Objectives {
		if s.state.Objectives[i].ID == o.ID {
			s.state.Objectives[i] = o
			return
		}
	}
}

// ToggleComplete flips the completed flag locally, persists it and restores
// the previous value if persisting fails.
func (s *Session) ToggleComplete(ctx context.Context, id string) error {
	s.mu.Lock()
	prior, ok := s.state.ObjectiveByID(id)
	if !ok {
		s.mu.Unlock()
		return &core.ErrNotFound{Resource: "objective", ID: id}
	}
	flipped := prior
	flipped.Completed = !prior.Completed
	s.replaceLocal(flipped)
	s.mu.Unlock()

	if err := s.api.ReplaceObjective(ctx, flipped); err != nil {
		s.logger.ErrorContext(ctx, "Error updating objective", "objective_id", id, "error", err)
		s.mu.Lock()
		// Only the flag is restored; a concurrent deposit's credit survives.
		if cur, ok := s.state.ObjectiveByID(id); ok {
			cur.Completed = prior.Completed
			s.replaceLocal(cur)
		}
		s.mu.Unlock()
		return fmt.Errorf("toggle objective %s: %w", id, err)
	}
	return nil
}

// DeleteTransaction asks confirm first, then deletes remotely. Local state
// changes only after the server accepted the delete. The tagged objective
// is debited locally and persisted; a failure there is returned as a
// *StepError and not rolled back.
func (s *Session) DeleteTransaction(ctx context.Context, id int64, confirm func() bool) error {
	if confirm != nil && !confirm() {
		return ErrCancelled
	}
	if s.atomic {
		return s.deleteAtomic(ctx, id)
	}

	if err := s.api.DeleteTransaction(ctx, id); err != nil {
		s.fail(ctx, "Error deleting transaction", err)
		return &StepError{Step: StepDeleteTransaction, Err: err}
	}

	s.mu.Lock()
	removed, found := s.removeLocal(id)
	var (
		updated core.Objective
		tagged  bool
	)
	if found {
		s.state.AccumulatedBRL = s.state.AccumulatedBRL.Sub(removed.AmountBRL)
		if removed.IsTagged() {
			if o, ok := s.state.ObjectiveByID(*removed.ObjectiveID); ok {
				o.AccumulatedBRL = o.AccumulatedBRL.Sub(removed.AmountBRL)
				s.replaceLocal(o)
				updated, tagged = o, true
			}
		}
	}
	s.mu.Unlock()

	if tagged {
		if err := s.api.ReplaceObjective(ctx, updated); err != nil {
			s.fail(ctx, "Error deleting transaction", err)
			return &StepError{Step: StepPersistObjective, Err: err}
		}
	}
	return nil
}

func (s *Session) deleteAtomic(ctx context.Context, id int64) error {
	res, err := s.api.ReverseDeposit(ctx, id)
	if err != nil {
		s.fail(ctx, "Error deleting transaction", err)
		return &StepError{Step: StepDeleteTransaction, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if removed, found := s.removeLocal(id); found {
		s.state.AccumulatedBRL = s.state.AccumulatedBRL.Sub(removed.AmountBRL)
	}
	if res.Objective != nil {
		s.replaceLocal(*res.Objective)
	}
	return nil
}

// removeLocal drops the transaction from the list. Callers hold s.mu.
func (s *Session) removeLocal(id int64) (core.Transaction, bool) {
	for i, tx := range s.state.Transactions {
		if tx.ID == id {
			s.state.Transactions = append(s.state.Transactions[:i:i], s.state.Transactions[i+1:]...)
			return tx, true
		}
	}
	return core.Transaction{}, false
}
