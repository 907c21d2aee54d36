package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"kanakku/internal/core"
)

// ExportRow is the spreadsheet projection of one transaction.
type ExportRow struct {
	TransactionID string
	FamilyID      string
	Date          time.Time
	Description   string
	Category      string
	Account       string
	Type          core.TransactionType
	Amount        decimal.Decimal
}

// NewExportRow projects a transaction and the account it is booked on. The
// date is expressed in loc so the sheet shows the day the user entered.
func NewExportRow(t core.Transaction, account core.Account, loc *time.Location) ExportRow {
	if loc == nil {
		loc = time.UTC
	}
	return ExportRow{
		TransactionID: t.ID,
		FamilyID:      t.FamilyID,
		Date:          t.Date.In(loc),
		Description:   t.Description,
		Category:      t.Category,
		Account:       account.Name,
		Type:          t.Type,
		Amount:        t.Amount,
	}
}

// Values renders the row in column order: ID, Date, Description, Category,
// Account, Type, Amount, FamilyID.
func (r ExportRow) Values() []any {
	return []any{
		r.TransactionID,
		r.Date.Format("2006-01-02"),
		r.Description,
		r.Category,
		r.Account,
		string(r.Type),
		r.Amount.StringFixed(core.MoneyPlaces),
		r.FamilyID,
	}
}

// Ports for outbound adapters.
type (
	// LedgerExporter mirrors transactions into an external sheet keyed by
	// transaction id. Both operations are idempotent.
	LedgerExporter interface {
		Upsert(ctx context.Context, row ExportRow) (rowRef string, err error)
		Remove(ctx context.Context, transactionID string) error
	}
)
