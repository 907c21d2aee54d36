package storage_test

import (
	"context"
	"testing"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/ledger"
	"kanakku/internal/services"
	"kanakku/internal/watch"
)

// Dates are stored in UTC; reports read them back in the reporting zone.
func TestDashboard_NonUTCZone(t *testing.T) {
	store := openStore(t)
	_, actor := onboard(t, store)
	ctx := context.Background()
	ist := time.FixedZone("IST", 5*3600+1800)

	hub := watch.NewHub()
	t.Cleanup(hub.Close)
	planning := services.NewPlanningService(store, hub, services.NewCategoryCatalog(store, 0), nil, "test")
	reports := services.NewReportService(store, hub, ist)
	mut := ledger.NewMutator(store)

	if _, err := planning.AddBudget(ctx, actor, core.Budget{Category: "Food", Amount: dec("500"), Month: "November 2025"}); err != nil {
		t.Fatal(err)
	}
	acc, err := mut.OpenAccount(ctx, actor, "Main", core.Checking)
	if err != nil {
		t.Fatal(err)
	}
	food := categoryNamed(t, store, actor.FamilyID, "Food")
	created, err := mut.Create(ctx, actor, ledger.CreateInput{
		AccountID:  acc.ID,
		Type:       core.Expense,
		Amount:     dec("100"),
		CategoryID: food.ID,
		Date:       time.Date(2025, time.November, 1, 0, 0, 0, 0, ist),
	})
	if err != nil {
		t.Fatal(err)
	}

	stored, err := store.GetTransaction(ctx, actor.FamilyID, created.Transaction.ID)
	if err != nil {
		t.Fatal(err)
	}
	if local := stored.Date.In(ist); local.Day() != 1 || local.Month() != time.November {
		t.Fatalf("stored date in IST = %v", local)
	}

	nov, err := reports.Dashboard(ctx, actor, 2025, time.November)
	if err != nil {
		t.Fatal(err)
	}
	if !nov.Summary.TotalExpenses.Equal(dec("100")) {
		t.Fatalf("november expenses = %s", nov.Summary.TotalExpenses)
	}
	if len(nov.Budgets) != 1 || !nov.Budgets[0].Spent.Equal(nov.Summary.TotalExpenses) {
		t.Fatalf("budget spent disagrees with month expenses %s: %+v", nov.Summary.TotalExpenses, nov.Budgets)
	}

	oct, err := reports.Dashboard(ctx, actor, 2025, time.October)
	if err != nil {
		t.Fatal(err)
	}
	if !oct.Summary.TotalExpenses.IsZero() {
		t.Fatalf("october expenses = %s", oct.Summary.TotalExpenses)
	}
}
