package memory

import (
	"context"
	"testing"

	"journey/internal/core"
	"journey/internal/storage"
	"journey/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestReadsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	bank := "Nubank"
	obj := "iphone"
	tx, err := s.InsertTransaction(ctx, core.Transaction{Bank: bank, ObjectiveID: &obj})
	if err != nil {
		t.Fatalf("InsertTransaction() error = %v", err)
	}
	*tx.ObjectiveID = "peugeot"

	got, _ := s.GetTransaction(ctx, tx.ID)
	if *got.ObjectiveID != "iphone" {
		t.Errorf("stored objective id changed through returned pointer: %s", *got.ObjectiveID)
	}
}
