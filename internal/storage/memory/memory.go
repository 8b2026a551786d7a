// Package memory is a process-local storage.Store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"journey/internal/core"
	"journey/internal/storage"

	"github.com/shopspring/decimal"
)

type state struct {
	order        []string
	objectives   map[string]core.Objective
	transactions []core.Transaction
	settings     []core.Settings
	nextTxID     int64
	nextSetID    int64
}

func (s *state) clone() *state {
	c := &state{
		order:        append([]string(nil), s.order...),
		objectives:   make(map[string]core.Objective, len(s.objectives)),
		transactions: make([]core.Transaction, len(s.transactions)),
		settings:     append([]core.Settings(nil), s.settings...),
		nextTxID:     s.nextTxID,
		nextSetID:    s.nextSetID,
	}
	for k, v := range s.objectives {
		c.objectives[k] = v
	}
	for i, tx := range s.transactions {
		c.transactions[i] = copyTx(tx)
	}
	return c
}

// Store keeps everything in maps guarded by a mutex. Reads return copies.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

var _ storage.Store = (*Store)(nil)

// New returns a store seeded the way the SQL migrations seed a fresh database.
func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		st: &state{
			objectives: map[string]core.Objective{},
			settings: []core.Settings{{
				ID:           1,
				ExchangeRate: core.DefaultExchangeRate,
				LastUpdated:  core.SeedSettingsDate,
			}},
			nextTxID:  1,
			nextSetID: 2,
		},
	}
}

// lock is a no-op inside RunInTx, where the outer call already holds the mutex.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func copyTx(tx core.Transaction) core.Transaction {
	if tx.Description != nil {
		d := *tx.Description
		tx.Description = &d
	}
	if tx.ObjectiveID != nil {
		o := *tx.ObjectiveID
		tx.ObjectiveID = &o
	}
	return tx
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) RunInTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	scoped := &Store{mu: s.mu, st: s.st.clone(), inTx: true}
	if err := fn(scoped); err != nil {
		return err
	}
	s.st = scoped.st
	return nil
}

func (s *Store) ListObjectives(ctx context.Context) ([]core.Objective, error) {
	defer s.lock()()
	out := make([]core.Objective, 0, len(s.st.order))
	for _, id := range s.st.order {
		out = append(out, s.st.objectives[id])
	}
	return out, nil
}

func (s *Store) GetObjective(ctx context.Context, id string) (core.Objective, error) {
	defer s.lock()()
	o, ok := s.st.objectives[id]
	if !ok {
		return core.Objective{}, &core.ErrNotFound{Resource: "objective", ID: id}
	}
	return o, nil
}

func (s *Store) ObjectiveExists(ctx context.Context, id string) (bool, error) {
	defer s.lock()()
	_, ok := s.st.objectives[id]
	return ok, nil
}

func (s *Store) InsertObjective(ctx context.Context, o core.Objective) (core.Objective, error) {
	defer s.lock()()
	if _, ok := s.st.objectives[o.ID]; ok {
		return core.Objective{}, fmt.Errorf("insert objective %s: already exists", o.ID)
	}
	o.Version = 1
	s.st.objectives[o.ID] = o
	s.st.order = append(s.st.order, o.ID)
	return o, nil
}

func (s *Store) UpdateObjectiveProgress(ctx context.Context, id string, accumulated decimal.Decimal, completed bool) (core.Objective, error) {
	defer s.lock()()
	o, ok := s.st.objectives[id]
	if !ok {
		return core.Objective{}, &core.ErrNotFound{Resource: "objective", ID: id}
	}
	o.AccumulatedBRL = accumulated
	o.Completed = completed
	o.Version++
	s.st.objectives[id] = o
	return o, nil
}

func (s *Store) ReplaceObjective(ctx context.Context, o core.Objective) error {
	defer s.lock()()
	current, ok := s.st.objectives[o.ID]
	if !ok || current.Version != o.Version {
		return &core.ErrConflict{Resource: "objective", ID: o.ID}
	}
	o.Version = current.Version + 1
	s.st.objectives[o.ID] = o
	return nil
}

func (s *Store) FirstSettings(ctx context.Context) (core.Settings, error) {
	defer s.lock()()
	if len(s.st.settings) == 0 {
		return core.Settings{}, &core.ErrNotFound{Resource: "settings", ID: "singleton"}
	}
	return s.st.settings[0], nil
}

func (s *Store) InsertSettings(ctx context.Context, settings core.Settings) (core.Settings, error) {
	defer s.lock()()
	settings.ID = s.st.nextSetID
	s.st.nextSetID++
	s.st.settings = append(s.st.settings, settings)
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings core.Settings) (core.Settings, error) {
	defer s.lock()()
	for i := range s.st.settings {
		if s.st.settings[i].ID == settings.ID {
			s.st.settings[i] = settings
			return settings, nil
		}
	}
	return core.Settings{}, &core.ErrNotFound{Resource: "settings", ID: fmt.Sprint(settings.ID)}
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	defer s.lock()()
	out := make([]core.Transaction, len(s.st.transactions))
	for i, tx := range s.st.transactions {
		out[i] = copyTx(tx)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	defer s.lock()()
	for _, tx := range s.st.transactions {
		if tx.ID == id {
			return copyTx(tx), nil
		}
	}
	return core.Transaction{}, &core.ErrNotFound{Resource: "transaction", ID: fmt.Sprint(id)}
}

func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	defer s.lock()()
	tx = copyTx(tx)
	tx.ID = s.st.nextTxID
	s.st.nextTxID++
	s.st.transactions = append(s.st.transactions, tx)
	return copyTx(tx), nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	defer s.lock()()
	for i, tx := range s.st.transactions {
		if tx.ID == id {
			s.st.transactions = append(s.st.transactions[:i], s.st.transactions[i+1:]...)
			return nil
		}
	}
	return &core.ErrNotFound{Resource: "transaction", ID: fmt.Sprint(id)}
}
