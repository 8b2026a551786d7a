package sheets

import (
	"context"

	"journey/internal/core"
)

// Ports for the statement mirror. One row per transaction, keyed by id.
type (
	StatementWriter interface {
		// AppendRow mirrors tx. A row already holding tx.ID is left as is and
		// its reference returned.
		AppendRow(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	StatementDeleter interface {
		// DeleteRow removes the row for id. A missing row is not an error.
		DeleteRow(ctx context.Context, id int64) error
	}

	StatementReader interface {
		// ListRowIDs returns the transaction ids currently mirrored, in sheet order.
		ListRowIDs(ctx context.Context) ([]int64, error)
	}

	StatementMirror interface {
		StatementWriter
		StatementDeleter
		StatementReader
	}
)

// Header is the first row of the mirror sheet.
var Header = []string{"ID", "Data", "Hora", "Banco", "Valor BRL", "Valor USD", "Objetivo", "Descrição"}

// Row flattens tx into the column order of Header.
func Row(tx core.Transaction) []any {
	objective, description := "", ""
	if tx.ObjectiveID != nil {
		objective = *tx.ObjectiveID
	}
	if tx.Description != nil {
		description = *tx.Description
	}
	return []any{
		tx.ID,
		tx.Date.String(),
		tx.Time,
		tx.Bank,
		tx.AmountBRL.StringFixed(2),
		tx.AmountUSD.StringFixed(2),
		objective,
		description,
	}
}
