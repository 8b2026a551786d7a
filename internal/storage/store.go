// Package storage defines the persistence port of the ledger and its SQLite
// implementation. Other engines live in sub-packages.
package storage

import (
	"context"

	"journey/internal/core"

	"github.com/shopspring/decimal"
)

// Store persists objectives, transactions and the settings singleton.
//
// Lookups of missing rows return *core.ErrNotFound. ReplaceObjective is
// conditional on the objective's Version and returns *core.ErrConflict when
// another writer got there first.
type Store interface {
	ListObjectives(ctx context.Context) ([]core.Objective, error)
	GetObjective(ctx context.Context, id string) (core.Objective, error)
	ObjectiveExists(ctx context.Context, id string) (bool, error)
	InsertObjective(ctx context.Context, o core.Objective) (core.Objective, error)
	UpdateObjectiveProgress(ctx context.Context, id string, accumulated decimal.Decimal, completed bool) (core.Objective, error)
	ReplaceObjective(ctx context.Context, o core.Objective) error

	FirstSettings(ctx context.Context) (core.Settings, error)
	InsertSettings(ctx context.Context, s core.Settings) (core.Settings, error)
	SaveSettings(ctx context.Context, s core.Settings) (core.Settings, error)

	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	// RunInTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(Store) error) error

	Ping(ctx context.Context) error
	Close() error
}

func objectiveNotFound(id string) error {
	return &core.ErrNotFound{Resource: "objective", ID: id}
}

func objectiveConflict(id string) error {
	return &core.ErrConflict{Resource: "objective", ID: id}
}
