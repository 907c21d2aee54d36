package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"kanakku/internal/core"
)

// Discrepancy reports an account whose stored balance differs from its ledger.
type Discrepancy struct {
	AccountID   string
	AccountName string
	Stored      decimal.Decimal
	Computed    decimal.Decimal
}

// SignViolation reports a transaction whose amount disagrees with its type.
type SignViolation struct {
	TransactionID string
	Type          core.TransactionType
	Amount        decimal.Decimal
}

// Report is the outcome of a reconciliation pass.
type Report struct {
	Accounts       int
	Transactions   int
	Discrepancies  []Discrepancy
	SignViolations []SignViolation
	// Orphans are transactions referencing an account that does not exist.
	Orphans []string
}

func (r Report) Consistent() bool {
	return len(r.Discrepancies) == 0 && len(r.SignViolations) == 0 && len(r.Orphans) == 0
}

// Reconcile checks that every balance equals the sum of its transactions and
// that every amount agrees in sign with its type.
func Reconcile(accounts []core.Account, txs []core.Transaction) Report {
	sums := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		sums[a.ID] = decimal.Zero
	}

	rep := Report{Accounts: len(accounts), Transactions: len(txs)}
	for _, t := range txs {
		if err := t.CheckSign(); err != nil {
			rep.SignViolations = append(rep.SignViolations, SignViolation{
				TransactionID: t.ID, Type: t.Type, Amount: t.Amount,
			})
		}
		sum, ok := sums[t.AccountID]
		if !ok {
			rep.Orphans = append(rep.Orphans, t.ID)
			continue
		}
		sums[t.AccountID] = sum.Add(t.Amount)
	}

	for _, a := range accounts {
		if !a.Balance.Equal(sums[a.ID]) {
			rep.Discrepancies = append(rep.Discrepancies, Discrepancy{
				AccountID: a.ID, AccountName: a.Name, Stored: a.Balance, Computed: sums[a.ID],
			})
		}
	}
	sort.Strings(rep.Orphans)
	return rep
}

// ReconcileFamily loads a family's accounts and transactions and reconciles them.
func ReconcileFamily(ctx context.Context, r Reader, actor core.Actor) (Report, error) {
	const op = "ledger.reconcile"
	if err := actor.RequireFamily(op); err != nil {
		return Report{}, err
	}
	accounts, err := r.ListAccounts(ctx, actor.FamilyID)
	if err != nil {
		return Report{}, core.Classify(op, err)
	}
	txs, err := r.ListTransactions(ctx, TransactionFilter{FamilyID: actor.FamilyID})
	if err != nil {
		return Report{}, core.Classify(op, err)
	}
	return Reconcile(accounts, txs), nil
}
