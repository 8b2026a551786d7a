// Package storagetest holds the behaviour every storage.Store implementation must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"journey/internal/core"
	"journey/internal/storage"

	"github.com/shopspring/decimal"
)

// Factory returns an empty store (settings seeded as a fresh install would be).
type Factory func(t *testing.T) storage.Store

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Run exercises newStore against the Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("seeded settings", func(t *testing.T) {
		s := newStore(t)
		settings, err := s.FirstSettings(context.Background())
		if err != nil {
			t.Fatalf("FirstSettings() error = %v", err)
		}
		if settings.ID != 1 || !settings.ExchangeRate.Equal(dec("5")) {
			t.Errorf("seeded settings = %+v", settings)
		}
		if !settings.LastUpdated.Equal(core.SeedSettingsDate) {
			t.Errorf("seeded LastUpdated = %v", settings.LastUpdated)
		}
	})

	t.Run("save settings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		settings, _ := s.FirstSettings(ctx)
		settings.ExchangeRate = dec("5.2")
		settings.LastUpdated = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		if _, err := s.SaveSettings(ctx, settings); err != nil {
			t.Fatalf("SaveSettings() error = %v", err)
		}
		got, err := s.FirstSettings(ctx)
		if err != nil {
			t.Fatalf("FirstSettings() error = %v", err)
		}
		if !got.ExchangeRate.Equal(dec("5.2")) || !got.LastUpdated.Equal(settings.LastUpdated) {
			t.Errorf("FirstSettings() = %+v", got)
		}
	})

	t.Run("objective lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		cat := core.DefaultCatalog()
		for _, o := range cat {
			if _, err := s.InsertObjective(ctx, o); err != nil {
				t.Fatalf("InsertObjective(%s) error = %v", o.ID, err)
			}
		}
		list, err := s.ListObjectives(ctx)
		if err != nil {
			t.Fatalf("ListObjectives() error = %v", err)
		}
		if len(list) != len(cat) {
			t.Fatalf("ListObjectives() len = %d, want %d", len(list), len(cat))
		}
		if list[0].ID != "peugeot" || list[11].ID != "emergency_fund" {
			t.Errorf("objectives not in insertion order: first=%s last=%s", list[0].ID, list[11].ID)
		}

		ok, err := s.ObjectiveExists(ctx, "iphone")
		if err != nil || !ok {
			t.Errorf("ObjectiveExists(iphone) = %v, %v", ok, err)
		}
		ok, _ = s.ObjectiveExists(ctx, "yacht")
		if ok {
			t.Error("ObjectiveExists(yacht) = true")
		}

		updated, err := s.UpdateObjectiveProgress(ctx, "iphone", dec("1000"), true)
		if err != nil {
			t.Fatalf("UpdateObjectiveProgress() error = %v", err)
		}
		if !updated.AccumulatedBRL.Equal(dec("1000")) || !updated.Completed {
			t.Errorf("UpdateObjectiveProgress() = %+v", updated)
		}
		if updated.Name != "iPhone 15 Pro (x2)" {
			t.Errorf("progress update touched other fields: %+v", updated)
		}

		_, err = s.UpdateObjectiveProgress(ctx, "yacht", dec("1"), false)
		var nf *core.ErrNotFound
		if !errors.As(err, &nf) {
			t.Errorf("UpdateObjectiveProgress(yacht) error = %v, want not found", err)
		}

		_, err = s.GetObjective(ctx, "yacht")
		if !errors.As(err, &nf) {
			t.Errorf("GetObjective(yacht) error = %v, want not found", err)
		}
	})

	t.Run("replace is version checked", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.InsertObjective(ctx, core.DefaultCatalog()[2]); err != nil {
			t.Fatalf("InsertObjective() error = %v", err)
		}

		current, err := s.GetObjective(ctx, "passport")
		if err != nil {
			t.Fatalf("GetObjective() error = %v", err)
		}
		stale := current

		current.Name = "Passaportes"
		current.TargetUSD = dec("650")
		if err := s.ReplaceObjective(ctx, current); err != nil {
			t.Fatalf("ReplaceObjective() error = %v", err)
		}

		got, _ := s.GetObjective(ctx, "passport")
		if got.Name != "Passaportes" || !got.TargetUSD.Equal(dec("650")) {
			t.Errorf("ReplaceObjective() stored %+v", got)
		}
		if got.Version <= stale.Version {
			t.Errorf("version not bumped: %d -> %d", stale.Version, got.Version)
		}

		stale.Name = "lost update"
		err = s.ReplaceObjective(ctx, stale)
		var conflict *core.ErrConflict
		if !errors.As(err, &conflict) {
			t.Errorf("ReplaceObjective(stale) error = %v, want conflict", err)
		}
	})

	t.Run("transactions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		desc := "salário"
		obj := "iphone"
		first, err := s.InsertTransaction(ctx, core.Transaction{
			AmountBRL: dec("1000.00"), AmountUSD: dec("200.00"),
			Date: core.NewDate(2024, 5, 10), Time: "09:15", Bank: "Nubank",
			Description: &desc, ObjectiveID: &obj,
		})
		if err != nil {
			t.Fatalf("InsertTransaction() error = %v", err)
		}
		second, err := s.InsertTransaction(ctx, core.Transaction{
			AmountBRL: dec("50.5"), AmountUSD: dec("10.1"),
			Date: core.NewDate(2024, 5, 11), Time: "18:00", Bank: "Itaú",
		})
		if err != nil {
			t.Fatalf("InsertTransaction() error = %v", err)
		}
		if first.ID <= 0 || second.ID <= first.ID {
			t.Errorf("ids not increasing: %d, %d", first.ID, second.ID)
		}

		got, err := s.GetTransaction(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetTransaction() error = %v", err)
		}
		if got.Description == nil || *got.Description != desc || got.ObjectiveID == nil || *got.ObjectiveID != obj {
			t.Errorf("GetTransaction() = %+v", got)
		}
		if got.Date.String() != "2024-05-10" || got.Time != "09:15" {
			t.Errorf("date/time = %s %s", got.Date, got.Time)
		}

		list, err := s.ListTransactions(ctx)
		if err != nil || len(list) != 2 {
			t.Fatalf("ListTransactions() = %d, %v", len(list), err)
		}
		if list[1].ObjectiveID != nil {
			t.Errorf("untagged transaction came back tagged: %v", *list[1].ObjectiveID)
		}

		if err := s.DeleteTransaction(ctx, first.ID); err != nil {
			t.Fatalf("DeleteTransaction() error = %v", err)
		}
		var nf *core.ErrNotFound
		if err := s.DeleteTransaction(ctx, first.ID); !errors.As(err, &nf) {
			t.Errorf("second DeleteTransaction() error = %v, want not found", err)
		}
		list, _ = s.ListTransactions(ctx)
		if len(list) != 1 || list[0].ID != second.ID {
			t.Errorf("ListTransactions() after delete = %+v", list)
		}
	})

	t.Run("transaction without date", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.InsertTransaction(ctx, core.Transaction{AmountBRL: dec("10"), Bank: "x"})
		if err != nil {
			t.Fatalf("InsertTransaction() error = %v", err)
		}
		got, err := s.GetTransaction(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetTransaction() error = %v", err)
		}
		if !got.Date.IsZero() {
			t.Errorf("date = %v, want zero", got.Date)
		}
		list, err := s.ListTransactions(ctx)
		if err != nil || len(list) != 1 || !list[0].Date.IsZero() {
			t.Errorf("ListTransactions() = %+v, %v", list, err)
		}
	})

	t.Run("run in tx rolls back", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.InsertObjective(ctx, core.DefaultCatalog()[1]); err != nil {
			t.Fatalf("InsertObjective() error = %v", err)
		}

		boom := errors.New("boom")
		err := s.RunInTx(ctx, func(tx storage.Store) error {
			if _, err := tx.InsertTransaction(ctx, core.Transaction{
				AmountBRL: dec("10"), AmountUSD: dec("2"), Date: core.NewDate(2024, 1, 2), Bank: "x",
			}); err != nil {
				return err
			}
			if _, err := tx.UpdateObjectiveProgress(ctx, "iphone", dec("10"), false); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("RunInTx() error = %v, want boom", err)
		}

		list, _ := s.ListTransactions(ctx)
		if len(list) != 0 {
			t.Errorf("transaction survived rollback: %+v", list)
		}
		o, _ := s.GetObjective(ctx, "iphone")
		if !o.AccumulatedBRL.IsZero() {
			t.Errorf("objective survived rollback: %s", o.AccumulatedBRL)
		}
	})

	t.Run("run in tx commits", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.InsertObjective(ctx, core.DefaultCatalog()[1]); err != nil {
			t.Fatalf("InsertObjective() error = %v", err)
		}

		err := s.RunInTx(ctx, func(tx storage.Store) error {
			if _, err := tx.InsertTransaction(ctx, core.Transaction{
				AmountBRL: dec("10"), AmountUSD: dec("2"), Date: core.NewDate(2024, 1, 2), Bank: "x",
			}); err != nil {
				return err
			}
			_, err := tx.UpdateObjectiveProgress(ctx, "iphone", dec("10"), false)
			return err
		})
		if err != nil {
			t.Fatalf("RunInTx() error = %v", err)
		}

		list, _ := s.ListTransactions(ctx)
		o, _ := s.GetObjective(ctx, "iphone")
		if len(list) != 1 || !o.AccumulatedBRL.Equal(dec("10")) {
			t.Errorf("commit lost: %d transactions, accumulated %s", len(list), o.AccumulatedBRL)
		}
	})
}
