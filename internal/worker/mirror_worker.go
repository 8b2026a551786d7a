package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"journey/internal/amqp"
	"journey/internal/core"
	"journey/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// TransactionSource lists the ledger's transactions, e.g. the API client.
type TransactionSource interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
}

type Recorder interface {
	IncrMirror(action, result string)
}

type nopRecorder struct{}

func (nopRecorder) IncrMirror(string, string) {}

// MirrorWorker keeps a spreadsheet copy of the statement in step with the
// ledger: one row per transaction, keyed by transaction id.
type MirrorWorker struct {
	mirror  sheets.StatementMirror
	source  TransactionSource
	metrics Recorder
}

func NewMirrorWorker(mirror sheets.StatementMirror, source TransactionSource, metrics Recorder) *MirrorWorker {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &MirrorWorker{
		mirror:  mirror,
		source:  source,
		metrics: metrics,
	}
}

// HandleEvent applies one ledger event to the mirror. It satisfies amqp.Handler.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	switch ev.Type {
	case amqp.EventTransactionCreated:
		return w.appendRow(ctx, *ev.Transaction)
	case amqp.EventTransactionDeleted:
		return w.deleteRow(ctx, ev.TransactionID)
	default:
		// Objective and settings changes have no statement row.
		slog.DebugContext(ctx, "Ignoring ledger event", "event_id", ev.ID, "event_type", ev.Type)
		w.metrics.IncrMirror("skip", "ok")
		return nil
	}
}

func (w *MirrorWorker) appendRow(ctx context.Context, tx core.Transaction) error {
	ref, err := w.mirror.AppendRow(ctx, tx)
	if err != nil {
		w.metrics.IncrMirror("append", "error")
		return fmt.Errorf("append transaction %d: %w", tx.ID, err)
	}
	w.metrics.IncrMirror("append", "ok")
	slog.InfoContext(ctx, "Mirrored transaction",
		"transaction_id", tx.ID,
		"sheets_ref", ref,
		"amount_brl", tx.AmountBRL.String())
	return nil
}

func (w *MirrorWorker) deleteRow(ctx context.Context, id int64) error {
	if err := w.mirror.DeleteRow(ctx, id); err != nil {
		w.metrics.IncrMirror("delete", "error")
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	w.metrics.IncrMirror("delete", "ok")
	slog.InfoContext(ctx, "Removed mirrored transaction", "transaction_id", id)
	return nil
}

type ReconcileResult struct {
	Appended int
	Deleted  int
	Errors   int
}

// Reconcile compares the mirror with the ledger, appending missing rows and
// removing rows whose transaction is gone. It recovers from events lost
// while the worker was down. Individual row failures are counted and logged,
// not returned.
func (w *MirrorWorker) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var (
		txs    []core.Transaction
		rowIDs []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = w.source.ListTransactions(gctx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rowIDs, err = w.mirror.ListRowIDs(gctx)
		if err != nil {
			return fmt.Errorf("list mirrored rows: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return ReconcileResult{}, err
	}

	mirrored := make(map[int64]struct{}, len(rowIDs))
	for _, id := range rowIDs {
		mirrored[id] = struct{}{}
	}
	live := make(map[int64]struct{}, len(txs))
	for _, tx := range txs {
		live[tx.ID] = struct{}{}
	}

	// Oldest first so the sheet stays in id order.
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })

	var res ReconcileResult
	for _, tx := range txs {
		if _, ok := mirrored[tx.ID]; ok {
			continue
		}
		if err := w.appendRow(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction during reconcile", "transaction_id", tx.ID, "error", err)
			res.Errors++
			continue
		}
		res.Appended++
	}
	for _, id := range rowIDs {
		if _, ok := live[id]; ok {
			continue
		}
		if err := w.deleteRow(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to remove stale row during reconcile", "transaction_id", id, "error", err)
			res.Errors++
			continue
		}
		res.Deleted++
	}

	slog.InfoContext(ctx, "Mirror reconcile completed",
		"transactions", len(txs),
		"rows", len(rowIDs),
		"appended", res.Appended,
		"deleted", res.Deleted,
		"errors", res.Errors)
	return res, nil
}
