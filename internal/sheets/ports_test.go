package sheets

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kanakku/internal/core"
)

func TestNewExportRow(t *testing.T) {
	tx := core.Transaction{
		ID:          "tx-1",
		FamilyID:    "fam",
		AccountID:   "acc",
		Amount:      decimal.RequireFromString("-12.5"),
		Type:        core.Expense,
		Description: "Weekly shop",
		Category:    "Food: Groceries",
		Date:        time.Date(2025, 10, 3, 18, 30, 0, 0, time.UTC),
	}
	account := core.Account{ID: "acc", Name: "Joint"}

	tests := []struct {
		name    string
		loc     *time.Location
		wantDay string
	}{
		{"utc", time.UTC, "2025-10-03"},
		{"nil defaults to utc", nil, "2025-10-03"},
		// 18:30 UTC is already midnight of the next day in IST.
		{"ahead of utc", time.FixedZone("IST", 5*3600+1800), "2025-10-04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := NewExportRow(tx, account, tt.loc)
			want := []any{"tx-1", tt.wantDay, "Weekly shop", "Food: Groceries", "Joint", "expense", "-12.50", "fam"}
			if got := row.Values(); !reflect.DeepEqual(got, want) {
				t.Fatalf("Values() = %v, want %v", got, want)
			}
		})
	}
}
