package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validTransaction() Transaction {
	return Transaction{
		ID:          "tx-1",
		FamilyID:    "fam-1",
		AccountID:   "acc-1",
		Amount:      decimal.NewFromInt(-50),
		Type:        Expense,
		Description: "Groceries",
		CategoryID:  "cat-food",
		Category:    "Food: Groceries",
		Date:        time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestTransaction_CheckSign(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		typ     TransactionType
		wantErr bool
	}{
		{"positive income", 100, Income, false},
		{"negative expense", -100, Expense, false},
		{"negative income", -100, Income, true},
		{"positive expense", 100, Expense, true},
		{"zero income", 0, Income, true},
		{"zero expense", 0, Expense, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := Transaction{Amount: decimal.NewFromInt(tt.amount), Type: tt.typ}
			err := tx.CheckSign()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckSign() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr bool
	}{
		{"valid", func(*Transaction) {}, false},
		{"missing account", func(tx *Transaction) { tx.AccountID = "" }, true},
		{"missing category", func(tx *Transaction) { tx.CategoryID = "" }, true},
		{"unknown type", func(tx *Transaction) { tx.Type = "transfer" }, true},
		{"sign mismatch", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(50) }, true},
		{"zero date", func(tx *Transaction) { tx.Date = time.Time{} }, true},
		{"description too long", func(tx *Transaction) {
			b := make([]byte, 201)
			for i := range b {
				b[i] = 'a'
			}
			tx.Description = string(b)
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation kind, got %v", err)
			}
		})
	}
}

func TestPlanningEntities_Validate(t *testing.T) {
	day := time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)
	hundred := decimal.NewFromInt(100)
	tests := []struct {
		name    string
		v       interface{ Validate() error }
		wantErr bool
	}{
		{"budget ok", Budget{Category: "Food", Amount: hundred, Month: "October 2025"}, false},
		{"budget lowercase month", Budget{Category: "Food", Amount: hundred, Month: "october 2025"}, false},
		{"budget zero amount", Budget{Category: "Food", Amount: decimal.Zero, Month: "October 2025"}, true},
		{"budget bad month", Budget{Category: "Food", Amount: hundred, Month: "Octember"}, true},
		{"goal ok", Goal{GoalName: "Car", TargetAmount: hundred, TargetDate: day}, false},
		{"goal negative target", Goal{GoalName: "Car", TargetAmount: hundred.Neg(), TargetDate: day}, true},
		{"event ok", Event{Name: "Wedding", EstimatedCost: hundred, EventDate: day}, false},
		{"event zero cost", Event{Name: "Wedding", EventDate: day}, true},
		{"event category ok", EventCategory{EventID: "ev", Name: "Venue", EstimatedBudget: hundred}, false},
		{"event category without event", EventCategory{Name: "Venue", EstimatedBudget: hundred}, true},
		{"category ok", Category{Name: "Pets", Type: Expense, Subcategories: []string{"Vet"}}, false},
		{"category with separator", Category{Name: "Pets: Vet", Type: Expense}, true},
		{"category empty subcategory", Category{Name: "Pets", Type: Expense, Subcategories: []string{" "}}, true},
		{"account ok", Account{Name: "Main", Type: Checking}, false},
		{"account unknown type", Account{Name: "Main", Type: "Brokerage"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActor_RequireFamily(t *testing.T) {
	if err := (Actor{UID: "u1", FamilyID: "f1"}).RequireFamily("op"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := (Actor{UID: "u1"}).RequireFamily("op")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Conflict("ledger.edit", errors.New("version mismatch")))
	if !errors.Is(wrapped, ErrConflict) {
		t.Fatalf("wrapped conflict should match ErrConflict")
	}
	if errors.Is(wrapped, ErrValidation) {
		t.Fatalf("conflict must not match ErrValidation")
	}
	if KindOf(wrapped) != KindConflict {
		t.Errorf("KindOf = %s, want conflict", KindOf(wrapped))
	}

	plain := errors.New("disk on fire")
	classified := Classify("ledger.create", plain)
	if KindOf(classified) != KindUnknown {
		t.Errorf("Classify should produce unknown kind, got %s", KindOf(classified))
	}
	if !errors.Is(classified, plain) {
		t.Errorf("Classify should keep the original error in the chain")
	}
	if got := classified.Error(); got != "ledger.create: disk on fire" {
		t.Errorf("Error() = %q", got)
	}

	typed := NotFoundf("family.join", "no family with that invite code")
	if Classify("x", typed) != typed {
		t.Errorf("Classify must not rewrap typed errors")
	}
}

func TestMonthLabels(t *testing.T) {
	oct := time.Date(2025, 10, 31, 23, 59, 0, 0, time.UTC)
	if got := MonthLabel(oct); got != "October 2025" {
		t.Fatalf("MonthLabel = %q", got)
	}
	if !SameMonthLabel("october 2025", " OCTOBER 2025") {
		t.Error("labels should compare case-insensitively")
	}
	if SameMonthLabel("October 2025", "October 2024") {
		t.Error("different years must not match")
	}
	got, err := CanonicalMonthLabel("  march   2026 ")
	if err != nil || got != "March 2026" {
		t.Errorf("CanonicalMonthLabel = %q, %v", got, err)
	}
	if MainCategory("Food: Groceries") != "Food" || MainCategory("Food") != "Food" {
		t.Error("MainCategory should return the segment before ':'")
	}
	if CategoryLabel("Food", "Groceries") != "Food: Groceries" || CategoryLabel("Food", "") != "Food" {
		t.Error("CategoryLabel mismatch")
	}
}

func TestDefaultCategories(t *testing.T) {
	cats := DefaultCategories("fam-1")
	var expense, income int
	seen := map[string]bool{}
	for _, c := range cats {
		if !c.IsDefault || c.FamilyID != "fam-1" || c.ID == "" {
			t.Fatalf("unexpected default category %+v", c)
		}
		if seen[c.ID] {
			t.Fatalf("duplicate id %s", c.ID)
		}
		seen[c.ID] = true
		if err := c.Validate(); err != nil {
			t.Fatalf("default category %q invalid: %v", c.Name, err)
		}
		switch c.Type {
		case Expense:
			expense++
		case Income:
			income++
		}
	}
	if expense != 8 || income != 5 {
		t.Fatalf("got %d expense and %d income defaults, want 8 and 5", expense, income)
	}
}
