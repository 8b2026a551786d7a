package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"journey/internal/core"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL of the SQLite schema.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const objectiveColumns = `id, icon, name, target_brl, target_usd, accumulated_brl, completed, category, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObjective(row rowScanner) (core.Objective, error) {
	var (
		o         core.Objective
		category  string
		completed int64
	)
	err := row.Scan(&o.ID, &o.Icon, &o.Name, &o.TargetBRL, &o.TargetUSD, &o.AccumulatedBRL, &completed, &category, &o.Version)
	if err != nil {
		return core.Objective{}, err
	}
	o.Completed = completed != 0
	o.Category = core.Category(category)
	return o, nil
}

const listObjectives = `SELECT ` + objectiveColumns + ` FROM objectives ORDER BY rowid`

func (q *Queries) ListObjectives(ctx context.Context) ([]core.Objective, error) {
	rows, err := q.db.QueryContext(ctx, listObjectives)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []core.Objective{}
	for rows.Next() {
		o, err := scanObjective(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const getObjective = `SELECT ` + objectiveColumns + ` FROM objectives WHERE id = ?`

func (q *Queries) GetObjective(ctx context.Context, id string) (core.Objective, error) {
	return scanObjective(q.db.QueryRowContext(ctx, getObjective, id))
}

const objectiveExists = `SELECT EXISTS(SELECT 1 FROM objectives WHERE id = ?)`

func (q *Queries) ObjectiveExists(ctx context.Context, id string) (bool, error) {
	var exists int64
	err := q.db.QueryRowContext(ctx, objectiveExists, id).Scan(&exists)
	return exists != 0, err
}

const insertObjective = `INSERT INTO objectives (id, icon, name, target_brl, target_usd, accumulated_brl, completed, category, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`

func (q *Queries) InsertObjective(ctx context.Context, o core.Objective) error {
	_, err := q.db.ExecContext(ctx, insertObjective,
		o.ID, o.Icon, o.Name, o.TargetBRL, o.TargetUSD, o.AccumulatedBRL, boolToInt(o.Completed), string(o.Category))
	return err
}

const updateObjectiveProgress = `UPDATE objectives
SET accumulated_brl = ?, completed = ?, version = version + 1
WHERE id = ?`

func (q *Queries) UpdateObjectiveProgress(ctx context.Context, id string, accumulated decimal.Decimal, completed bool) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateObjectiveProgress, accumulated, boolToInt(completed), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const replaceObjective = `UPDATE objectives
SET icon = ?, name = ?, target_brl = ?, target_usd = ?, accumulated_brl = ?, completed = ?, category = ?, version = version + 1
WHERE id = ? AND version = ?`

func (q *Queries) ReplaceObjective(ctx context.Context, o core.Objective) (int64, error) {
	res, err := q.db.ExecContext(ctx, replaceObjective,
		o.Icon, o.Name, o.TargetBRL, o.TargetUSD, o.AccumulatedBRL, boolToInt(o.Completed), string(o.Category), o.ID, o.Version)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const firstSettings = `SELECT id, exchange_rate, last_updated FROM settings ORDER BY id LIMIT 1`

func (q *Queries) FirstSettings(ctx context.Context) (core.Settings, error) {
	var (
		s       core.Settings
		updated string
	)
	if err := q.db.QueryRowContext(ctx, firstSettings).Scan(&s.ID, &s.ExchangeRate, &updated); err != nil {
		return core.Settings{}, err
	}
	t, err := parseTimestamp(updated)
	if err != nil {
		return core.Settings{}, err
	}
	s.LastUpdated = t
	return s, nil
}

const insertSettings = `INSERT INTO settings (exchange_rate, last_updated) VALUES (?, ?)`

func (q *Queries) InsertSettings(ctx context.Context, rate decimal.Decimal, updated time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertSettings, rate, formatTimestamp(updated))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const saveSettings = `UPDATE settings SET exchange_rate = ?, last_updated = ? WHERE id = ?`

func (q *Queries) SaveSettings(ctx context.Context, s core.Settings) (int64, error) {
	res, err := q.db.ExecContext(ctx, saveSettings, s.ExchangeRate, formatTimestamp(s.LastUpdated), s.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const transactionColumns = `id, amount_brl, amount_usd, tx_date, tx_time, bank, description, objective_id`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx          core.Transaction
		date        string
		description sql.NullString
		objectiveID sql.NullString
	)
	if err := row.Scan(&tx.ID, &tx.AmountBRL, &tx.AmountUSD, &date, &tx.Time, &tx.Bank, &description, &objectiveID); err != nil {
		return core.Transaction{}, err
	}
	if date != "" {
		d, err := core.ParseDate(date)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %d: %w", tx.ID, err)
		}
		tx.Date = d
	}
	if description.Valid {
		tx.Description = &description.String
	}
	if objectiveID.Valid {
		tx.ObjectiveID = &objectiveID.String
	}
	return tx, nil
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY id`

func (q *Queries) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tx)
	}
	return items, rows.Err()
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const insertTransaction = `INSERT INTO transactions (amount_brl, amount_usd, tx_date, tx_time, bank, description, objective_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertTransaction,
		tx.AmountBRL, tx.AmountUSD, formatDate(tx.Date), tx.Time, tx.Bank, nullString(tx.Description), nullString(tx.ObjectiveID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// formatDate writes the zero date as 0001-01-01 so tx_date is never blank.
func formatDate(d core.Date) string {
	return d.Format("2006-01-02")
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
