package memory

import (
	"context"
	"fmt"
	"sync"

	"journey/internal/core"
	"journey/internal/sheets"
)

var _ sheets.StatementMirror = (*Store)(nil)

// Store is an in-process statement mirror, used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows []core.Transaction
}

func New() *Store {
	return &Store{}
}

// AppendRow stores tx and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, tx core.Transaction) (string, error) {
	if tx.ID <= 0 {
		return "", &core.ErrValidation{Field: "id", Message: "transaction id is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == tx.ID {
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	s.rows = append(s.rows, tx)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) DeleteRow(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) ListRowIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, len(s.rows))
	for i, row := range s.rows {
		ids[i] = row.ID
	}
	return ids, nil
}

// Rows returns a copy of the mirrored transactions.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...)
}
