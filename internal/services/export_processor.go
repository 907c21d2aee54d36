package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kanakku/internal/amqp"
	"kanakku/internal/core"
	"kanakku/internal/ledger"
	"kanakku/internal/log"
	"kanakku/internal/sheets"
)

// ExportProcessor mirrors committed ledger changes into a LedgerExporter.
// Events only carry identifiers: the current document is always read from
// the store, so replays and out-of-order deliveries converge on the latest
// state.
type ExportProcessor struct {
	store    ledger.Reader
	exporter sheets.LedgerExporter
	loc      *time.Location
}

// NewExportProcessor exports rows dated in loc, the reporting time zone.
func NewExportProcessor(store ledger.Reader, exporter sheets.LedgerExporter, loc *time.Location) *ExportProcessor {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportProcessor{store: store, exporter: exporter, loc: loc}
}

// Handle processes one ledger event. It matches amqp.Handler.
func (p *ExportProcessor) Handle(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, ev.Type,
		log.FieldFamilyID, ev.FamilyID,
		log.FieldTransactionID, ev.TransactionID,
		log.FieldVersion, ev.Version)

	switch ev.Type {
	case amqp.TransactionCreated, amqp.TransactionUpdated:
		return p.exportTransaction(ctx, ev.FamilyID, ev.TransactionID)
	case amqp.TransactionDeleted:
		return p.removeTransaction(ctx, ev.TransactionID)
	case amqp.AccountCreated, amqp.PlanningChanged:
		// Neither carries transaction rows.
		return nil
	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event", log.FieldEventType, ev.Type)
		return nil
	}
}

// exportTransaction upserts the current state of a transaction. A
// transaction that no longer exists was deleted after the event was
// published, so its row is removed instead.
func (p *ExportProcessor) exportTransaction(ctx context.Context, familyID, id string) error {
	tx, err := p.store.GetTransaction(ctx, familyID, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Transaction gone before export, removing row", log.FieldTransactionID, id)
		return p.removeTransaction(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", id, err)
	}
	return p.upsert(ctx, tx)
}

func (p *ExportProcessor) upsert(ctx context.Context, tx core.Transaction) error {
	acc, err := p.store.GetAccount(ctx, tx.FamilyID, tx.AccountID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		acc = core.Account{ID: tx.AccountID, Name: tx.AccountID}
	case err != nil:
		return fmt.Errorf("get account %s: %w", tx.AccountID, err)
	}

	ref, err := p.exporter.Upsert(ctx, sheets.NewExportRow(tx, acc, p.loc))
	if err != nil {
		return fmt.Errorf("upsert row: %w", err)
	}
	slog.InfoContext(ctx, "Exported transaction",
		log.FieldTransactionID, tx.ID,
		log.FieldVersion, tx.Version,
		log.FieldSheetsRef, ref)
	return nil
}

func (p *ExportProcessor) removeTransaction(ctx context.Context, id string) error {
	if err := p.exporter.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove row: %w", err)
	}
	slog.InfoContext(ctx, "Removed exported transaction", log.FieldTransactionID, id)
	return nil
}

// Backfill exports every transaction of a family. It recovers rows missed
// while the worker was down and continues past individual failures.
func (p *ExportProcessor) Backfill(ctx context.Context, familyID string) (exported int, err error) {
	txs, err := p.store.ListTransactions(ctx, ledger.TransactionFilter{FamilyID: familyID})
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	var failed int
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if err := p.upsert(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during backfill",
				log.FieldTransactionID, tx.ID, log.FieldError, err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Backfill completed",
		log.FieldFamilyID, familyID,
		"total", len(txs),
		"exported", exported,
		"errors", failed)
	if failed > 0 {
		return exported, fmt.Errorf("backfill: %d of %d transactions failed", failed, len(txs))
	}
	return exported, nil
}
