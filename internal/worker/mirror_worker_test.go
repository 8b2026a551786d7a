package worker

import (
	"context"
	"errors"
	"testing"

	"journey/internal/amqp"
	"journey/internal/core"
	"journey/internal/metrics"
	"journey/internal/sheets/memory"

	"github.com/shopspring/decimal"
)

type fakeSource struct {
	txs []core.Transaction
	err error
}

func (f *fakeSource) ListTransactions(context.Context) ([]core.Transaction, error) {
	return f.txs, f.err
}

// failingMirror rejects appends for the ids in fail.
type failingMirror struct {
	*memory.Store
	fail map[int64]bool
}

func (f *failingMirror) AppendRow(ctx context.Context, tx core.Transaction) (string, error) {
	if f.fail[tx.ID] {
		return "", errors.New("quota exceeded")
	}
	return f.Store.AppendRow(ctx, tx)
}

func tx(id int64) core.Transaction {
	return core.Transaction{
		ID:        id,
		AmountBRL: decimal.NewFromInt(50),
		Date:      core.NewDate(2024, 1, 2),
		Time:      "08:00",
		Bank:      "Nubank",
	}
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	m := metrics.New()
	w := NewMirrorWorker(mirror, &fakeSource{}, m)

	events := []*amqp.LedgerEvent{
		amqp.NewTransactionCreated(tx(1)),
		amqp.NewTransactionCreated(tx(2)),
		amqp.NewTransactionCreated(tx(1)), // redelivery
		amqp.NewTransactionDeleted(tx(2)),
		amqp.NewObjectiveUpdated(core.Objective{ID: "iphone"}),
	}
	for _, ev := range events {
		if err := w.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("HandleEvent(%s) error = %v", ev.Type, err)
		}
	}

	rows := mirror.Rows()
	if len(rows) != 1 || rows[0].ID != 1 {
		t.Fatalf("rows = %+v", rows)
	}
	if got := m.MirrorOps("append", "ok"); got != 3 {
		t.Errorf("append ok = %v, want 3", got)
	}
	if got := m.MirrorOps("delete", "ok"); got != 1 {
		t.Errorf("delete ok = %v, want 1", got)
	}
	if got := m.MirrorOps("skip", "ok"); got != 1 {
		t.Errorf("skip ok = %v, want 1", got)
	}
}

func TestHandleEventPropagatesMirrorErrors(t *testing.T) {
	mirror := &failingMirror{Store: memory.New(), fail: map[int64]bool{9: true}}
	m := metrics.New()
	w := NewMirrorWorker(mirror, &fakeSource{}, m)

	if err := w.HandleEvent(context.Background(), amqp.NewTransactionCreated(tx(9))); err == nil {
		t.Fatal("expected error so the delivery is requeued")
	}
	if got := m.MirrorOps("append", "error"); got != 1 {
		t.Errorf("append error = %v, want 1", got)
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	// Row 4 is stale; 1 is already mirrored.
	for _, id := range []int64{1, 4} {
		if _, err := mirror.AppendRow(ctx, tx(id)); err != nil {
			t.Fatal(err)
		}
	}
	source := &fakeSource{txs: []core.Transaction{tx(3), tx(1), tx(2)}}

	res, err := NewMirrorWorker(mirror, source, nil).Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.Appended != 2 || res.Deleted != 1 || res.Errors != 0 {
		t.Errorf("result = %+v", res)
	}

	ids, _ := mirror.ListRowIDs(ctx)
	want := []int64{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestReconcileCountsRowFailures(t *testing.T) {
	mirror := &failingMirror{Store: memory.New(), fail: map[int64]bool{2: true}}
	source := &fakeSource{txs: []core.Transaction{tx(1), tx(2)}}

	res, err := NewMirrorWorker(mirror, source, nil).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.Appended != 1 || res.Errors != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestReconcileSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("api down")}
	if _, err := NewMirrorWorker(memory.New(), source, nil).Reconcile(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
