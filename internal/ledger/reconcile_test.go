package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"kanakku/internal/core"
)

func TestReconcile(t *testing.T) {
	d := decimal.RequireFromString
	accounts := []core.Account{
		{ID: "a1", Name: "Main", Balance: d("-30")},
		{ID: "a2", Name: "Savings", Balance: d("100")},
		{ID: "a3", Name: "Cash", Balance: d("0")},
	}
	txs := []core.Transaction{
		{ID: "t1", AccountID: "a1", Type: core.Expense, Amount: d("-50")},
		{ID: "t2", AccountID: "a1", Type: core.Income, Amount: d("20")},
		{ID: "t3", AccountID: "a2", Type: core.Income, Amount: d("90")},
		{ID: "t4", AccountID: "a3", Type: core.Expense, Amount: d("5")},
		{ID: "t5", AccountID: "gone", Type: core.Expense, Amount: d("-1")},
	}

	rep := Reconcile(accounts, txs)
	if rep.Consistent() {
		t.Fatal("expected inconsistencies")
	}
	if rep.Accounts != 3 || rep.Transactions != 5 {
		t.Errorf("counts = %d/%d", rep.Accounts, rep.Transactions)
	}
	if len(rep.Discrepancies) != 2 {
		t.Fatalf("discrepancies = %+v, want a2 and a3", rep.Discrepancies)
	}
	if rep.Discrepancies[0].AccountID != "a2" || !rep.Discrepancies[0].Computed.Equal(d("90")) {
		t.Errorf("first discrepancy = %+v", rep.Discrepancies[0])
	}
	if rep.Discrepancies[1].AccountID != "a3" || !rep.Discrepancies[1].Computed.Equal(d("5")) {
		t.Errorf("second discrepancy = %+v", rep.Discrepancies[1])
	}
	if len(rep.SignViolations) != 1 || rep.SignViolations[0].TransactionID != "t4" {
		t.Errorf("sign violations = %+v", rep.SignViolations)
	}
	if len(rep.Orphans) != 1 || rep.Orphans[0] != "t5" {
		t.Errorf("orphans = %+v", rep.Orphans)
	}
}

func TestReconcile_Empty(t *testing.T) {
	rep := Reconcile(nil, nil)
	if !rep.Consistent() {
		t.Fatalf("empty ledger should be consistent: %+v", rep)
	}
}
