package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"kanakku/internal/amqp"
	"kanakku/internal/core"
	"kanakku/internal/ledger"
	"kanakku/internal/sheets"
	sheetmem "kanakku/internal/sheets/memory"
)

type failingExporter struct{}

func (failingExporter) Upsert(context.Context, sheets.ExportRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func (failingExporter) Remove(context.Context, string) error {
	return errors.New("quota exceeded")
}

// replay feeds every event published so far through the processor.
func replay(t *testing.T, e *env, p *ExportProcessor, from int) int {
	t.Helper()
	events := e.pub.published()
	for _, ev := range events[from:] {
		if err := p.Handle(e.ctx, ev); err != nil {
			t.Fatalf("handle %s: %v", ev.Type, err)
		}
	}
	return len(events)
}

func TestExportProcessor_FollowsLedger(t *testing.T) {
	e := newEnv(t)
	exporter := sheetmem.New()
	p := NewExportProcessor(e.store, exporter, time.UTC)
	acc := e.account(t, "Joint")
	food := e.category(t, "Food")

	created, err := e.ledger.CreateTransaction(e.ctx, e.actor, ledger.CreateInput{
		AccountID:   acc.ID,
		Type:        core.Expense,
		Amount:      dec("12.50"),
		CategoryID:  food.ID,
		Subcategory: "Restaurants",
		Description: "Lunch",
		Date:        date(2025, 10, 3),
	})
	if err != nil {
		t.Fatal(err)
	}
	id := created.Transaction.ID
	seen := replay(t, e, p, 0)

	row, ok := exporter.Get(id)
	if !ok {
		t.Fatal("created transaction was not exported")
	}
	if row.Account != "Joint" || row.Category != "Food: Restaurants" || !row.Amount.Equal(dec("-12.50")) {
		t.Fatalf("row = %+v", row)
	}

	amount := dec("20")
	if _, err := e.ledger.EditTransaction(e.ctx, e.actor, id, ledger.EditInput{Amount: &amount}); err != nil {
		t.Fatal(err)
	}
	seen = replay(t, e, p, seen)
	if row, _ := exporter.Get(id); !row.Amount.Equal(dec("-20")) {
		t.Fatalf("edited row amount = %s", row.Amount)
	}

	if _, err := e.ledger.DeleteTransaction(e.ctx, e.actor, id, 0); err != nil {
		t.Fatal(err)
	}
	replay(t, e, p, seen)
	if _, ok := exporter.Get(id); ok {
		t.Fatal("deleted transaction still exported")
	}
	if exporter.Removes() != 1 {
		t.Fatalf("removes = %d, want 1", exporter.Removes())
	}
}

func TestExportProcessor_Replays(t *testing.T) {
	e := newEnv(t)
	exporter := sheetmem.New()
	p := NewExportProcessor(e.store, exporter, time.UTC)
	acc := e.account(t, "Main")

	created, err := e.ledger.CreateTransaction(e.ctx, e.actor, ledger.CreateInput{
		AccountID:  acc.ID,
		Type:       core.Income,
		Amount:     dec("100"),
		CategoryID: e.category(t, "Gifts").ID,
		Date:       date(2025, 10, 3),
	})
	if err != nil {
		t.Fatal(err)
	}
	ev := amqp.NewTransactionEvent(amqp.TransactionCreated, created.Transaction, "test-instance")

	t.Run("duplicate delivery keeps one row", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if err := p.Handle(e.ctx, ev); err != nil {
				t.Fatal(err)
			}
		}
		if ids := exporter.IDs(); len(ids) != 1 {
			t.Fatalf("rows = %v", ids)
		}
	})

	t.Run("late created event for a deleted transaction removes the row", func(t *testing.T) {
		if _, err := e.ledger.DeleteTransaction(e.ctx, e.actor, created.Transaction.ID, 0); err != nil {
			t.Fatal(err)
		}
		if err := p.Handle(e.ctx, ev); err != nil {
			t.Fatal(err)
		}
		if len(exporter.IDs()) != 0 {
			t.Fatal("row of a deleted transaction was kept")
		}
	})

	t.Run("account, planning and unknown events are ignored", func(t *testing.T) {
		if err := p.Handle(e.ctx, amqp.NewAccountEvent(acc, "x")); err != nil {
			t.Fatal(err)
		}
		if err := p.Handle(e.ctx, amqp.NewPlanningEvent(e.actor.FamilyID, "budgets", "", "x")); err != nil {
			t.Fatal(err)
		}
		if len(exporter.IDs()) != 0 {
			t.Fatal("non-transaction events must not export rows")
		}
		if err := p.Handle(e.ctx, &amqp.LedgerEvent{Type: "ledger.something.else", FamilyID: e.actor.FamilyID}); err != nil {
			t.Fatal(err)
		}
	})
}

func TestExportProcessor_Backfill(t *testing.T) {
	e := newEnv(t)
	acc := e.account(t, "Main")
	shopping := e.category(t, "Shopping")
	for _, amount := range []string{"10", "20", "30"} {
		if _, err := e.ledger.CreateTransaction(e.ctx, e.actor, ledger.CreateInput{
			AccountID:  acc.ID,
			Type:       core.Expense,
			Amount:     dec(amount),
			CategoryID: shopping.ID,
			Date:       date(2025, 10, 3),
		}); err != nil {
			t.Fatal(err)
		}
	}

	exporter := sheetmem.New()
	n, err := NewExportProcessor(e.store, exporter, time.UTC).Backfill(e.ctx, e.actor.FamilyID)
	if err != nil || n != 3 {
		t.Fatalf("backfill = %d, %v", n, err)
	}
	if len(exporter.Rows()) != 3 {
		t.Fatalf("rows = %d, want 3", len(exporter.Rows()))
	}

	n, err = NewExportProcessor(e.store, failingExporter{}, time.UTC).Backfill(e.ctx, e.actor.FamilyID)
	if err == nil || n != 0 {
		t.Fatalf("failing backfill = %d, %v", n, err)
	}
}

func TestExportProcessor_ExporterErrors(t *testing.T) {
	e := newEnv(t)
	p := NewExportProcessor(e.store, failingExporter{}, time.UTC)

	err := p.Handle(e.ctx, &amqp.LedgerEvent{Type: amqp.TransactionDeleted, FamilyID: e.actor.FamilyID, TransactionID: "tx"})
	if err == nil {
		t.Fatal("exporter failure should be returned for redelivery")
	}
}
