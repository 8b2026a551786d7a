package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"journey/internal/core"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the Store backed by a single SQLite file.
type SQLiteStore struct {
	db      *sql.DB
	queries *Queries
	inTx    bool
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; RunInTx holds the connection for its whole unit.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		queries: New(db),
	}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil && !s.inTx {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	scoped := &SQLiteStore{db: s.db, queries: s.queries.WithTx(tx), inTx: true}
	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListObjectives(ctx context.Context) ([]core.Objective, error) {
	items, err := s.queries.ListObjectives(ctx)
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) GetObjective(ctx context.Context, id string) (core.Objective, error) {
	o, err := s.queries.GetObjective(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return core.Objective{}, objectiveNotFound(id)
		}
		return core.Objective{}, fmt.Errorf("get objective %s: %w", id, err)
	}
	return o, nil
}

func (s *SQLiteStore) ObjectiveExists(ctx context.Context, id string) (bool, error) {
	ok, err := s.queries.ObjectiveExists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check objective %s: %w", id, err)
	}
	return ok, nil
}

func (s *SQLiteStore) InsertObjective(ctx context.Context, o core.Objective) (core.Objective, error) {
	if err := s.queries.InsertObjective(ctx, o); err != nil {
		return core.Objective{}, fmt.Errorf("insert objective %s: %w", o.ID, err)
	}

	slog.InfoContext(ctx, "Objective saved to SQLite",
		"id", o.ID,
		"category", o.Category,
		"target_brl", o.TargetBRL.String())

	return s.GetObjective(ctx, o.ID)
}

func (s *SQLiteStore) UpdateObjectiveProgress(ctx context.Context, id string, accumulated decimal.Decimal, completed bool) (core.Objective, error) {
	n, err := s.queries.UpdateObjectiveProgress(ctx, id, accumulated, completed)
	if err != nil {
		return core.Objective{}, fmt.Errorf("update objective %s: %w", id, err)
	}
	if n == 0 {
		return core.Objective{}, objectiveNotFound(id)
	}
	return s.GetObjective(ctx, id)
}

func (s *SQLiteStore) ReplaceObjective(ctx context.Context, o core.Objective) error {
	n, err := s.queries.ReplaceObjective(ctx, o)
	if err != nil {
		return fmt.Errorf("replace objective %s: %w", o.ID, err)
	}
	if n == 0 {
		return objectiveConflict(o.ID)
	}
	return nil
}

func (s *SQLiteStore) FirstSettings(ctx context.Context) (core.Settings, error) {
	settings, err := s.queries.FirstSettings(ctx)
	if err != nil {
		if isNoRows(err) {
			return core.Settings{}, &core.ErrNotFound{Resource: "settings", ID: "singleton"}
		}
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}

func (s *SQLiteStore) InsertSettings(ctx context.Context, settings core.Settings) (core.Settings, error) {
	id, err := s.queries.InsertSettings(ctx, settings.ExchangeRate, settings.LastUpdated)
	if err != nil {
		return core.Settings{}, fmt.Errorf("insert settings: %w", err)
	}
	settings.ID = id
	return settings, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, settings core.Settings) (core.Settings, error) {
	n, err := s.queries.SaveSettings(ctx, settings)
	if err != nil {
		return core.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	if n == 0 {
		return core.Settings{}, &core.ErrNotFound{Resource: "settings", ID: fmt.Sprint(settings.ID)}
	}

	slog.InfoContext(ctx, "Exchange rate saved to SQLite",
		"rate", settings.ExchangeRate.String(),
		"last_updated", settings.LastUpdated.Format(time.RFC3339))

	return settings, nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	items, err := s.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := s.queries.GetTransaction(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return core.Transaction{}, &core.ErrNotFound{Resource: "transaction", ID: fmt.Sprint(id)}
		}
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

func (s *SQLiteStore) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	id, err := s.queries.InsertTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.ID = id

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"amount_brl", tx.AmountBRL.String(),
		"bank", tx.Bank)

	return tx, nil
}

func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return &core.ErrNotFound{Resource: "transaction", ID: fmt.Sprint(id)}
	}
	return nil
}
