package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	ports "kanakku/internal/sheets"
)

func TestExporter_UpsertAndRemove(t *testing.T) {
	e := New()
	ctx := context.Background()

	ref, err := e.Upsert(ctx, ports.ExportRow{TransactionID: "a", Amount: decimal.NewFromInt(-5)})
	if err != nil || ref != "mem:a" {
		t.Fatalf("unexpected upsert: ref=%q err=%v", ref, err)
	}
	if _, err := e.Upsert(ctx, ports.ExportRow{TransactionID: "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Upsert(ctx, ports.ExportRow{TransactionID: "a", Amount: decimal.NewFromInt(-7)}); err != nil {
		t.Fatal(err)
	}

	rows := e.Rows()
	if len(rows) != 2 || rows[0].TransactionID != "a" || !rows[0].Amount.Equal(decimal.NewFromInt(-7)) {
		t.Fatalf("rows = %+v", rows)
	}

	if err := e.Remove(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := e.Remove(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Get("a"); ok || e.Removes() != 1 {
		t.Fatalf("row a should be removed exactly once, removes=%d", e.Removes())
	}
	if ids := e.IDs(); len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("ids = %v", ids)
	}

	if _, err := e.Upsert(ctx, ports.ExportRow{}); err == nil {
		t.Fatal("expected error for empty transaction id")
	}
}
