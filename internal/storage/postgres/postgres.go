// Package postgres implements storage.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"journey/internal/core"
	"journey/internal/storage"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	db   dbtx
}

var _ storage.Store = (*Store)(nil)

// New migrates the database at databaseURL and opens a pool on it.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool, db: pool}, nil
}

// RunMigrations applies the embedded schema through golang-migrate's pgx/v5 driver.
func RunMigrations(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) RunInTx(ctx context.Context, fn func(storage.Store) error) error {
	if _, nested := s.db.(pgx.Tx); nested {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Store{pool: s.pool, db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const objectiveColumns = `id, icon, name, target_brl::text, target_usd::text, accumulated_brl::text, completed, category, version`

func scanObjective(row pgx.Row) (core.Objective, error) {
	var (
		o                     core.Objective
		targetBRL, targetUSD  string
		accumulated, category string
	)
	if err := row.Scan(&o.ID, &o.Icon, &o.Name, &targetBRL, &targetUSD, &accumulated, &o.Completed, &category, &o.Version); err != nil {
		return core.Objective{}, err
	}
	var err error
	if o.TargetBRL, err = decimal.NewFromString(targetBRL); err != nil {
		return core.Objective{}, err
	}
	if o.TargetUSD, err = decimal.NewFromString(targetUSD); err != nil {
		return core.Objective{}, err
	}
	if o.AccumulatedBRL, err = decimal.NewFromString(accumulated); err != nil {
		return core.Objective{}, err
	}
	o.Category = core.Category(category)
	return o, nil
}

func (s *Store) ListObjectives(ctx context.Context) ([]core.Objective, error) {
	rows, err := s.db.Query(ctx, `SELECT `+objectiveColumns+` FROM objectives ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	defer rows.Close()

	items := []core.Objective{}
	for rows.Next() {
		o, err := scanObjective(rows)
		if err != nil {
			return nil, fmt.Errorf("scan objective: %w", err)
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (s *Store) GetObjective(ctx context.Context, id string) (core.Objective, error) {
	o, err := scanObjective(s.db.QueryRow(ctx, `SELECT `+objectiveColumns+` FROM objectives WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Objective{}, &core.ErrNotFound{Resource: "objective", ID: id}
		}
		return core.Objective{}, fmt.Errorf("get objective %s: %w", id, err)
	}
	return o, nil
}

func (s *Store) ObjectiveExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM objectives WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check objective %s: %w", id, err)
	}
	return exists, nil
}

func (s *Store) InsertObjective(ctx context.Context, o core.Objective) (core.Objective, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO objectives (id, icon, name, target_brl, target_usd, accumulated_brl, completed, category, version)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, 1)`,
		o.ID, o.Icon, o.Name, o.TargetBRL.String(), o.TargetUSD.String(), o.AccumulatedBRL.String(), o.Completed, string(o.Category))
	if err != nil {
		return core.Objective{}, fmt.Errorf("insert objective %s: %w", o.ID, err)
	}

	slog.InfoContext(ctx, "Objective saved to Postgres", "id", o.ID, "category", o.Category)
	return s.GetObjective(ctx, o.ID)
}

func (s *Store) UpdateObjectiveProgress(ctx context.Context, id string, accumulated decimal.Decimal, completed bool) (core.Objective, error) {
	tag, err := s.db.Exec(ctx, `UPDATE objectives SET accumulated_brl = $1::numeric, completed = $2, version = version + 1 WHERE id = $3`,
		accumulated.String(), completed, id)
	if err != nil {
		return core.Objective{}, fmt.Errorf("update objective %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.Objective{}, &core.ErrNotFound{Resource: "objective", ID: id}
	}
	return s.GetObjective(ctx, id)
}

func (s *Store) ReplaceObjective(ctx context.Context, o core.Objective) error {
	tag, err := s.db.Exec(ctx, `UPDATE objectives
SET icon = $1, name = $2, target_brl = $3::numeric, target_usd = $4::numeric, accumulated_brl = $5::numeric,
    completed = $6, category = $7, version = version + 1
WHERE id = $8 AND version = $9`,
		o.Icon, o.Name, o.TargetBRL.String(), o.TargetUSD.String(), o.AccumulatedBRL.String(),
		o.Completed, string(o.Category), o.ID, o.Version)
	if err != nil {
		return fmt.Errorf("replace objective %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &core.ErrConflict{Resource: "objective", ID: o.ID}
	}
	return nil
}

func (s *Store) FirstSettings(ctx context.Context) (core.Settings, error) {
	var (
		settings core.Settings
		rate     string
	)
	err := s.db.QueryRow(ctx, `SELECT id, exchange_rate::text, last_updated FROM settings ORDER BY id LIMIT 1`).
		Scan(&settings.ID, &rate, &settings.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Settings{}, &core.ErrNotFound{Resource: "settings", ID: "singleton"}
		}
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if settings.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
		return core.Settings{}, fmt.Errorf("parse exchange rate: %w", err)
	}
	settings.LastUpdated = settings.LastUpdated.UTC()
	return settings, nil
}

func (s *Store) InsertSettings(ctx context.Context, settings core.Settings) (core.Settings, error) {
	err := s.db.QueryRow(ctx, `INSERT INTO settings (exchange_rate, last_updated) VALUES ($1::numeric, $2) RETURNING id`,
		settings.ExchangeRate.String(), settings.LastUpdated).Scan(&settings.ID)
	if err != nil {
		return core.Settings{}, fmt.Errorf("insert settings: %w", err)
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings core.Settings) (core.Settings, error) {
	tag, err := s.db.Exec(ctx, `UPDATE settings SET exchange_rate = $1::numeric, last_updated = $2 WHERE id = $3`,
		settings.ExchangeRate.String(), settings.LastUpdated, settings.ID)
	if err != nil {
		return core.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.Settings{}, &core.ErrNotFound{Resource: "settings", ID: fmt.Sprint(settings.ID)}
	}

	slog.InfoContext(ctx, "Exchange rate saved to Postgres", "rate", settings.ExchangeRate.String())
	return settings, nil
}

const transactionColumns = `id, amount_brl::text, amount_usd::text, tx_date, tx_time, bank, description, objective_id`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx       core.Transaction
		brl, usd string
		date     time.Time
	)
	if err := row.Scan(&tx.ID, &brl, &usd, &date, &tx.Time, &tx.Bank, &tx.Description, &tx.ObjectiveID); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if tx.AmountBRL, err = decimal.NewFromString(brl); err != nil {
		return core.Transaction{}, err
	}
	if tx.AmountUSD, err = decimal.NewFromString(usd); err != nil {
		return core.Transaction{}, err
	}
	tx.Date = core.DateOf(date)
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, tx)
	}
	return items, rows.Err()
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Transaction{}, &core.ErrNotFound{Resource: "transaction", ID: fmt.Sprint(id)}
		}
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	err := s.db.QueryRow(ctx, `INSERT INTO transactions (amount_brl, amount_usd, tx_date, tx_time, bank, description, objective_id)
VALUES ($1::numeric, $2::numeric, $3, $4, $5, $6, $7) RETURNING id`,
		tx.AmountBRL.String(), tx.AmountUSD.String(), tx.Date.Time, tx.Time, tx.Bank, tx.Description, tx.ObjectiveID).Scan(&tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to Postgres", "id", tx.ID, "amount_brl", tx.AmountBRL.String())
	return tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &core.ErrNotFound{Resource: "transaction", ID: fmt.Sprint(id)}
	}
	return nil
}
