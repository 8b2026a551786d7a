package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"journey/internal/amqp"
	"journey/internal/core"
	"journey/internal/rates"
	"journey/internal/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// EventPublisher receives ledger events after a write commits.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.LedgerEvent) error
}

// Recorder is the subset of metrics the service reports to.
type Recorder interface {
	IncrDeposit(tagged bool, amountBRL float64)
	SetExchangeRate(rate float64)
	IncrEvent(eventType, result string)
}

// LedgerService implements the API semantics over a storage.Store.
//
// The plain CRUD operations mirror the stored records one request at a time
// and do not keep objective balances in step with transactions; that is the
// client's job. Deposit and ReverseDeposit do both halves in one unit.
type LedgerService struct {
	store     storage.Store
	publisher EventPublisher
	quoter    rates.Quoter
	recorder  Recorder
	now       func() time.Time
}

type Option func(*LedgerService)

func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithQuoter(q rates.Quoter) Option {
	return func(s *LedgerService) { s.quoter = q }
}

func WithRecorder(r Recorder) Option {
	return func(s *LedgerService) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(store storage.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) ListObjectives(ctx context.Context) ([]core.Objective, error) {
	objs, err := s.store.ListObjectives(ctx)
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	return objs, nil
}

// SeedCatalog pushes the default catalog into a store with no objectives and
// reports how many were inserted. A store holding any objective is left alone.
func (s *LedgerService) SeedCatalog(ctx context.Context) (int, error) {
	existing, err := s.ListObjectives(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	n := 0
	for _, o := range core.DefaultCatalog() {
		if _, _, err := s.UpsertObjective(ctx, o); err != nil {
			return n, fmt.Errorf("seed objective %s: %w", o.ID, err)
		}
		n++
	}
	slog.InfoContext(ctx, "Seeded default objectives", "count", n)
	return n, nil
}

// UpsertObjective inserts o when its id is new. For an existing id only
// accumulatedBRL and completed are overwritten, so the rest of the body is
// only validated on insert. created reports which path ran.
func (s *LedgerService) UpsertObjective(ctx context.Context, o core.Objective) (core.Objective, bool, error) {
	if strings.TrimSpace(o.ID) == "" {
		return core.Objective{}, false, &core.ErrValidation{Field: "id", Message: "objective id is required"}
	}

	exists, err := s.store.ObjectiveExists(ctx, o.ID)
	if err != nil {
		return core.Objective{}, false, fmt.Errorf("check objective: %w", err)
	}

	var stored core.Objective
	if exists {
		stored, err = s.store.UpdateObjectiveProgress(ctx, o.ID, o.AccumulatedBRL, o.Completed)
		if err != nil {
			return core.Objective{}, false, fmt.Errorf("update objective: %w", err)
		}
	} else {
		if err := o.Validate(); err != nil {
			return core.Objective{}, false, err
		}
		stored, err = s.store.InsertObjective(ctx, o)
		if err != nil {
			return core.Objective{}, false, fmt.Errorf("insert objective: %w", err)
		}
	}

	s.publish(ctx, amqp.NewObjectiveUpdated(stored))
	return stored, !exists, nil
}

// ReplaceObjective overwrites every field of the objective at id.
//
// The write is conditional on the version read just before it. Losing that
// race to a delete reports not found; losing it to another writer is a
// server error and is not retried.
func (s *LedgerService) ReplaceObjective(ctx context.Context, id string, o core.Objective) error {
	if id != o.ID {
		return &core.ErrValidation{Field: "id", Message: fmt.Sprintf("path id %q does not match body id %q", id, o.ID)}
	}
	if err := o.Validate(); err != nil {
		return err
	}

	current, err := s.store.GetObjective(ctx, id)
	if err != nil {
		return err
	}

	o.Version = current.Version
	err = s.store.ReplaceObjective(ctx, o)
	if err == nil {
		s.publish(ctx, amqp.NewObjectiveUpdated(o))
		return nil
	}

	var conflict *core.ErrConflict
	if !errors.As(err, &conflict) {
		return fmt.Errorf("replace objective: %w", err)
	}

	exists, existsErr := s.store.ObjectiveExists(ctx, id)
	if existsErr != nil {
		return fmt.Errorf("check objective after conflict: %w", existsErr)
	}
	if !exists {
		return &core.ErrNotFound{Resource: "objective", ID: id}
	}
	slog.ErrorContext(ctx, "Objective modified concurrently", "objective_id", id)
	// %v: the conflict must not be mapped back to a client error.
	return fmt.Errorf("replace objective %s: %v", id, err)
}

// GetSettings returns the singleton, creating it with the default rate when absent.
func (s *LedgerService) GetSettings(ctx context.Context) (core.Settings, error) {
	settings, err := s.store.FirstSettings(ctx)
	if err == nil {
		return settings, nil
	}
	var nf *core.ErrNotFound
	if !errors.As(err, &nf) {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	settings, err = s.store.InsertSettings(ctx, core.Settings{
		ExchangeRate: core.DefaultExchangeRate,
		LastUpdated:  s.now().UTC(),
	})
	if err != nil {
		return core.Settings{}, fmt.Errorf("create settings: %w", err)
	}
	slog.InfoContext(ctx, "Created settings singleton", "exchange_rate", settings.ExchangeRate.String())
	return settings, nil
}

// SaveSettings stores rate on the singleton and stamps lastUpdated with the
// current time. The stored singleton is returned.
func (s *LedgerService) SaveSettings(ctx context.Context, rate decimal.Decimal) (core.Settings, error) {
	if !rate.IsPositive() {
		return core.Settings{}, &core.ErrValidation{Field: "exchangeRate", Message: "exchange rate must be positive"}
	}

	settings, err := s.store.FirstSettings(ctx)
	var nf *core.ErrNotFound
	switch {
	case errors.As(err, &nf):
		settings, err = s.store.InsertSettings(ctx, core.Settings{ExchangeRate: rate, LastUpdated: s.now().UTC()})
		if err != nil {
			return core.Settings{}, fmt.Errorf("create settings: %w", err)
		}
	case err != nil:
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	default:
		settings.ExchangeRate = rate
		settings.LastUpdated = s.now().UTC()
		settings, err = s.store.SaveSettings(ctx, settings)
		if err != nil {
			return core.Settings{}, fmt.Errorf("save settings: %w", err)
		}
	}

	if s.recorder != nil {
		s.recorder.SetExchangeRate(rate.InexactFloat64())
	}
	s.publish(ctx, amqp.NewSettingsUpdated(settings))
	return settings, nil
}

// RefreshSettings fetches the external quote and stores it. On failure the
// stored rate is left as it was.
func (s *LedgerService) RefreshSettings(ctx context.Context) (core.Settings, error) {
	if s.quoter == nil {
		return core.Settings{}, &core.ErrExternalService{Service: "rates", Err: errors.New("no quote source configured")}
	}
	rate, err := s.quoter.Quote(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Exchange rate refresh failed, keeping stored rate", "error", err)
		return core.Settings{}, err
	}
	return s.SaveSettings(ctx, rate)
}

func (s *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// CreateTransaction stores tx as given and assigns its id. The objective
// tag is not checked and no objective balance changes.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = 0
	stored, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	s.recordDeposit(stored)
	s.publish(ctx, amqp.NewTransactionCreated(stored))
	return stored, nil
}

// DeleteTransaction removes the transaction. Objective balances are untouched.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewTransactionDeleted(tx))
	return nil
}

// DepositResult is the outcome of an atomic deposit or reversal. Objective
// is nil for untagged transactions.
type DepositResult struct {
	Transaction core.Transaction `json:"transaction"`
	Objective   *core.Objective  `json:"objective,omitempty"`
}

// Deposit records tx and credits the tagged objective in one unit. An
// unknown objective fails the whole deposit. A zero USD amount is derived
// from the stored rate.
func (s *LedgerService) Deposit(ctx context.Context, tx core.Transaction) (DepositResult, error) {
	if err := tx.Validate(); err != nil {
		return DepositResult{}, err
	}
	tx.ID = 0

	if tx.AmountUSD.IsZero() && !tx.AmountBRL.IsZero() {
		settings, err := s.GetSettings(ctx)
		if err != nil {
			return DepositResult{}, err
		}
		tx.AmountUSD = core.ConvertBRLToUSD(tx.AmountBRL, settings.ExchangeRate)
	}

	var result DepositResult
	err := s.store.RunInTx(ctx, func(st storage.Store) error {
		var obj core.Objective
		if tx.IsTagged() {
			var err error
			obj, err = st.GetObjective(ctx, *tx.ObjectiveID)
			if err != nil {
				return err
			}
		}

		stored, err := st.InsertTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		result.Transaction = stored

		if tx.IsTagged() {
			updated, err := st.UpdateObjectiveProgress(ctx, obj.ID, obj.AccumulatedBRL.Add(tx.AmountBRL), obj.Completed)
			if err != nil {
				return fmt.Errorf("credit objective: %w", err)
			}
			result.Objective = &updated
		}
		return nil
	})
	if err != nil {
		return DepositResult{}, err
	}

	slog.InfoContext(ctx, "Deposit recorded",
		"transaction_id", result.Transaction.ID,
		"amount_brl", result.Transaction.AmountBRL.String(),
		"tagged", result.Objective != nil)

	s.recordDeposit(result.Transaction)
	s.publish(ctx, amqp.NewTransactionCreated(result.Transaction))
	if result.Objective != nil {
		s.publish(ctx, amqp.NewObjectiveUpdated(*result.Objective))
	}
	return result, nil
}

// ReverseDeposit deletes the transaction and debits its objective in one
// unit. A tag pointing at a missing objective only deletes the transaction.
func (s *LedgerService) ReverseDeposit(ctx context.Context, id int64) (DepositResult, error) {
	var result DepositResult
	err := s.store.RunInTx(ctx, func(st storage.Store) error {
		tx, err := st.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if err := st.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		result.Transaction = tx

		if !tx.IsTagged() {
			return nil
		}
		obj, err := st.GetObjective(ctx, *tx.ObjectiveID)
		var nf *core.ErrNotFound
		if errors.As(err, &nf) {
			return nil
		}
		if err != nil {
			return err
		}
		updated, err := st.UpdateObjectiveProgress(ctx, obj.ID, obj.AccumulatedBRL.Sub(tx.AmountBRL), obj.Completed)
		if err != nil {
			return fmt.Errorf("debit objective: %w", err)
		}
		result.Objective = &updated
		return nil
	})
	if err != nil {
		return DepositResult{}, err
	}

	s.publish(ctx, amqp.NewTransactionDeleted(result.Transaction))
	if result.Objective != nil {
		s.publish(ctx, amqp.NewObjectiveUpdated(*result.Objective))
	}
	return result, nil
}

// Summary computes the ledger aggregate from the stored records.
func (s *LedgerService) Summary(ctx context.Context) (core.Summary, error) {
	var (
		objs     []core.Objective
		txs      []core.Transaction
		settings core.Settings
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		objs, err = s.ListObjectives(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.ListTransactions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		settings, err = s.GetSettings(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}

	return core.Summarize(objs, txs, settings), nil
}

// publish is best effort: a failure is logged and never fails the caller.
func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	result := "ok"
	if err := s.publisher.Publish(ctx, ev); err != nil {
		result = "error"
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event_type", ev.Type,
			"event_id", ev.ID,
			"error", err)
	}
	if s.recorder != nil {
		s.recorder.IncrEvent(string(ev.Type), result)
	}
}

func (s *LedgerService) recordDeposit(tx core.Transaction) {
	if s.recorder != nil {
		s.recorder.IncrDeposit(tx.IsTagged(), tx.AmountBRL.InexactFloat64())
	}
}
