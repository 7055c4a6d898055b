// Package worker mirrors ledger events into the spreadsheet export.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/records"
	"fintrack/internal/sheets"
	"fintrack/internal/store"
)

// ExportWorker applies ledger events to a LedgerExporter. The repository
// is optional; without it created events must carry their record.
type ExportWorker struct {
	exporter sheets.LedgerExporter
	records  *records.Repository
}

func NewExportWorker(exporter sheets.LedgerExporter, repo *records.Repository) *ExportWorker {
	return &ExportWorker{exporter: exporter, records: repo}
}

// HandleLedgerEvent processes one event from the queue. Events for
// collections that are not exported are acknowledged and dropped.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if _, err := sheets.SheetName(ev.Collection); err != nil {
		slog.WarnContext(ctx, "Skipping event for unexported collection", "collection", ev.Collection, "id", ev.ID)
		return nil
	}

	switch ev.Action {
	case amqp.ActionCreated:
		return w.exportCreated(ctx, ev)
	case amqp.ActionDeleted:
		if err := w.exporter.MarkDeleted(ctx, ev.Collection, ev.ID); err != nil {
			return fmt.Errorf("mark %s %s deleted: %w", ev.Collection, ev.ID, err)
		}
		slog.InfoContext(ctx, "Marked record deleted", "collection", ev.Collection, "id", ev.ID)
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", amqp.ErrInvalidEvent, ev.Action)
	}
}

func (w *ExportWorker) exportCreated(ctx context.Context, ev *amqp.LedgerEvent) error {
	record := ev.Record
	if len(record) == 0 {
		if w.records == nil {
			return fmt.Errorf("created event for %s %s has no record", ev.Collection, ev.ID)
		}
		snap, err := w.records.Lookup(ctx, ev.Collection, ev.ID)
		if errors.Is(err, store.ErrNotFound) {
			slog.InfoContext(ctx, "Record deleted before export", "collection", ev.Collection, "id", ev.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup %s %s: %w", ev.Collection, ev.ID, err)
		}
		record = snap.Fields
	}

	ref, err := w.exporter.AppendRecord(ctx, ev.Collection, ev.ID, record)
	if err != nil {
		return fmt.Errorf("export %s %s: %w", ev.Collection, ev.ID, err)
	}
	slog.InfoContext(ctx, "Exported record", "collection", ev.Collection, "id", ev.ID, "row", ref)
	return nil
}

// Backfill exports every stored ledger record. It recovers rows missed
// while the worker or the broker was down; already exported ids are left
// untouched by the exporter.
func (w *ExportWorker) Backfill(ctx context.Context) (int, error) {
	if w.records == nil {
		return 0, errors.New("backfill needs a record store")
	}

	var exported atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range records.Exported {
		g.Go(func() error {
			for snap, err := range w.records.Scan(ctx, c) {
				if err != nil {
					return fmt.Errorf("scan %s: %w", c, err)
				}
				if _, err := w.exporter.AppendRecord(ctx, c, snap.ID, snap.Fields); err != nil {
					return fmt.Errorf("export %s %s: %w", c, snap.ID, err)
				}
				exported.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	n := int(exported.Load())
	slog.InfoContext(ctx, "Backfill finished", "records", n, "error", err)
	return n, err
}
