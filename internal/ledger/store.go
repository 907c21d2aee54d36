// Package ledger owns the ledger store ports and the balance mutator, the
// only code path allowed to change an account balance.
package ledger

import (
	"context"
	"time"

	"kanakku/internal/core"
)

// TransactionFilter selects transactions by equality on the set fields.
// From and To bound Date inclusively; zero values leave that side open.
type TransactionFilter struct {
	FamilyID        string
	AccountID       string
	GoalID          string
	EventID         string
	EventCategoryID string
	Type            core.TransactionType
	From            time.Time
	To              time.Time
}

// Reader serves point lookups and equality-filtered listings. Family-scoped
// lookups report not_found for documents owned by another family.
type Reader interface {
	GetAccount(ctx context.Context, familyID, id string) (core.Account, error)
	GetTransaction(ctx context.Context, familyID, id string) (core.Transaction, error)
	GetCategory(ctx context.Context, familyID, id string) (core.Category, error)
	GetBudget(ctx context.Context, familyID, id string) (core.Budget, error)
	GetGoal(ctx context.Context, familyID, id string) (core.Goal, error)
	GetEvent(ctx context.Context, familyID, id string) (core.Event, error)
	GetEventCategory(ctx context.Context, familyID, id string) (core.EventCategory, error)
	GetFamily(ctx context.Context, id string) (core.Family, error)
	FindFamilyByInviteCode(ctx context.Context, code string) (core.Family, error)
	GetUser(ctx context.Context, uid string) (core.User, error)

	ListUsers(ctx context.Context, familyID string) ([]core.User, error)
	ListAccounts(ctx context.Context, familyID string) ([]core.Account, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error)
	// ListCategories returns every category of the family when t is empty.
	ListCategories(ctx context.Context, familyID string, t core.TransactionType) ([]core.Category, error)
	ListBudgets(ctx context.Context, familyID string) ([]core.Budget, error)
	ListGoals(ctx context.Context, familyID string) ([]core.Goal, error)
	ListEvents(ctx context.Context, familyID string) ([]core.Event, error)
	ListEventCategories(ctx context.Context, familyID, eventID string) ([]core.EventCategory, error)
}

// Tx is the view of the store inside one atomic unit.
//
// Versioned documents (accounts, transactions, users) are written with
// compare-and-swap: the write succeeds only when the stored version equals
// the version carried by the argument, and the stored version becomes that
// value plus one. A mismatch is reported as core.ErrConflict.
type Tx interface {
	Reader

	InsertAccount(ctx context.Context, a core.Account) error
	UpdateAccount(ctx context.Context, a core.Account) error

	InsertTransaction(ctx context.Context, t core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, t core.Transaction) error

	InsertCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, familyID, id string) error
	InsertBudget(ctx context.Context, b core.Budget) error
	InsertGoal(ctx context.Context, g core.Goal) error
	InsertEvent(ctx context.Context, e core.Event) error
	InsertEventCategory(ctx context.Context, c core.EventCategory) error

	// InsertFamily reports core.ErrConflict when the invite code is taken.
	InsertFamily(ctx context.Context, f core.Family) error
	UpdateFamilyInviteCode(ctx context.Context, familyID, code string) error

	// InsertUser reports core.ErrConflict when the uid already exists.
	InsertUser(ctx context.Context, u core.User) error
	UpdateUser(ctx context.Context, u core.User) error
}

// Store is the ledger store. Atomic runs fn as one all-or-nothing unit: when
// fn or the commit fails, no write made through the Tx is visible.
type Store interface {
	Reader
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
