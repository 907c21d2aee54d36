package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kanakku/internal/core"
)

// CreateInput describes a new transaction. Amount is the magnitude as typed
// by the user; its sign comes from Type.
type CreateInput struct {
	AccountID       string
	Type            core.TransactionType
	Amount          decimal.Decimal
	Description     string
	CategoryID      string
	Subcategory     string
	Date            time.Time
	GoalID          string
	EventID         string
	EventCategoryID string
	NeedsReview     bool
}

// EditInput lists the fields to change; nil pointers keep the stored value.
// A pointer to "" clears an optional reference. ExpectedVersion, when not
// zero, must equal the stored version or the edit fails with a conflict.
type EditInput struct {
	AccountID       *string
	Type            *core.TransactionType
	Amount          *decimal.Decimal
	Description     *string
	CategoryID      *string
	Subcategory     *string
	Date            *time.Time
	GoalID          *string
	EventID         *string
	EventCategoryID *string
	NeedsReview     *bool
	ExpectedVersion int64
}

// Change is the committed outcome of a mutation.
type Change struct {
	Transaction core.Transaction
	// Previous is the stored transaction before an edit or delete.
	Previous *core.Transaction
	// Accounts holds every account whose balance was written, after the write.
	Accounts []core.Account
}

// Mutator applies ledger writes. Every method runs as a single atomic unit
// on the store and never retries.
type Mutator struct {
	store Store
	now   func() time.Time
}

func NewMutator(store Store) *Mutator {
	return &Mutator{store: store, now: time.Now}
}

// OpenAccount creates an account with a zero balance.
func (m *Mutator) OpenAccount(ctx context.Context, actor core.Actor, name string, typ core.AccountType) (core.Account, error) {
	const op = "ledger.open_account"
	if err := actor.RequireFamily(op); err != nil {
		return core.Account{}, err
	}
	acc := core.Account{
		ID:        core.NewID(),
		FamilyID:  actor.FamilyID,
		Name:      strings.TrimSpace(name),
		Type:      typ,
		Balance:   decimal.Zero,
		Version:   1,
		CreatedAt: m.now().UTC(),
	}
	if err := acc.Validate(); err != nil {
		return core.Account{}, err
	}
	err := m.store.Atomic(ctx, func(tx Tx) error {
		return tx.InsertAccount(ctx, acc)
	})
	if err != nil {
		return core.Account{}, core.Classify(op, err)
	}
	return acc, nil
}

// Create inserts a transaction and adds its signed amount to the account.
func (m *Mutator) Create(ctx context.Context, actor core.Actor, in CreateInput) (Change, error) {
	const op = "ledger.create"
	if err := actor.RequireFamily(op); err != nil {
		return Change{}, err
	}
	if !in.Amount.IsPositive() {
		return Change{}, core.Validationf(op, "amount must be greater than zero")
	}
	if !in.Type.Valid() {
		return Change{}, core.Validationf(op, "type must be %q or %q", core.Income, core.Expense)
	}
	if in.AccountID == "" {
		return Change{}, core.Validationf(op, "account is required")
	}
	if in.CategoryID == "" {
		return Change{}, core.Validationf(op, "category is required")
	}

	now := m.now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	t := core.Transaction{
		ID:              core.NewID(),
		FamilyID:        actor.FamilyID,
		UID:             actor.UID,
		AccountID:       in.AccountID,
		Amount:          core.SignedAmount(in.Type, in.Amount),
		Type:            in.Type,
		Description:     strings.TrimSpace(in.Description),
		CategoryID:      in.CategoryID,
		Subcategory:     strings.TrimSpace(in.Subcategory),
		Date:            date,
		GoalID:          in.GoalID,
		EventID:         in.EventID,
		EventCategoryID: in.EventCategoryID,
		NeedsReview:     in.NeedsReview,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var change Change
	err := m.store.Atomic(ctx, func(tx Tx) error {
		change = Change{}
		acc, err := referencedAccount(ctx, tx, op, t.FamilyID, t.AccountID)
		if err != nil {
			return err
		}
		if err := resolveCategory(ctx, tx, op, &t); err != nil {
			return err
		}
		if err := checkLinks(ctx, tx, op, t); err != nil {
			return err
		}
		if err := t.Validate(); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		acc.Balance = acc.Balance.Add(t.Amount)
		if err := writeAccount(ctx, tx, &acc); err != nil {
			return err
		}
		change = Change{Transaction: t, Accounts: []core.Account{acc}}
		return nil
	})
	if err != nil {
		return Change{}, core.Classify(op, err)
	}
	return change, nil
}

// Edit rewrites a transaction and moves the balance difference.
//
// With an unchanged account the account receives new-old. When the account
// changes the old account loses the old amount and the new account gains the
// new amount.
func (m *Mutator) Edit(ctx context.Context, actor core.Actor, id string, in EditInput) (Change, error) {
	const op = "ledger.edit"
	if err := actor.RequireFamily(op); err != nil {
		return Change{}, err
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		return Change{}, core.Validationf(op, "amount must be greater than zero")
	}
	if in.Type != nil && !in.Type.Valid() {
		return Change{}, core.Validationf(op, "type must be %q or %q", core.Income, core.Expense)
	}
	if in.AccountID != nil && *in.AccountID == "" {
		return Change{}, core.Validationf(op, "account is required")
	}
	if in.CategoryID != nil && *in.CategoryID == "" {
		return Change{}, core.Validationf(op, "category is required")
	}

	var change Change
	err := m.store.Atomic(ctx, func(tx Tx) error {
		change = Change{}
		old, err := tx.GetTransaction(ctx, actor.FamilyID, id)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != 0 && in.ExpectedVersion != old.Version {
			return core.Conflict(op, errors.New("transaction was modified since it was loaded"))
		}

		updated, recategorize := applyEdit(old, in)
		updated.Amount = core.SignedAmount(updated.Type, updated.Amount)
		updated.UpdatedAt = m.now().UTC()

		if recategorize {
			if err := resolveCategory(ctx, tx, op, &updated); err != nil {
				return err
			}
		}
		if err := checkLinks(ctx, tx, op, updated); err != nil {
			return err
		}
		if err := updated.Validate(); err != nil {
			return err
		}

		var touched []core.Account
		if updated.AccountID == old.AccountID {
			delta := updated.Amount.Sub(old.Amount)
			if !delta.IsZero() {
				acc, err := tx.GetAccount(ctx, actor.FamilyID, old.AccountID)
				if err != nil {
					return err
				}
				acc.Balance = acc.Balance.Add(delta)
				if err := writeAccount(ctx, tx, &acc); err != nil {
					return err
				}
				touched = append(touched, acc)
			}
		} else {
			from, err := tx.GetAccount(ctx, actor.FamilyID, old.AccountID)
			if err != nil {
				return err
			}
			to, err := referencedAccount(ctx, tx, op, actor.FamilyID, updated.AccountID)
			if err != nil {
				return err
			}
			from.Balance = from.Balance.Sub(old.Amount)
			to.Balance = to.Balance.Add(updated.Amount)
			if err := writeAccount(ctx, tx, &from); err != nil {
				return err
			}
			if err := writeAccount(ctx, tx, &to); err != nil {
				return err
			}
			touched = append(touched, from, to)
		}

		if err := tx.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		updated.Version++
		prev := old
		change = Change{Transaction: updated, Previous: &prev, Accounts: touched}
		return nil
	})
	if err != nil {
		return Change{}, core.Classify(op, err)
	}
	return change, nil
}

// Delete removes a transaction and subtracts its stored amount from its account.
func (m *Mutator) Delete(ctx context.Context, actor core.Actor, id string, expectedVersion int64) (Change, error) {
	const op = "ledger.delete"
	if err := actor.RequireFamily(op); err != nil {
		return Change{}, err
	}

	var change Change
	err := m.store.Atomic(ctx, func(tx Tx) error {
		change = Change{}
		old, err := tx.GetTransaction(ctx, actor.FamilyID, id)
		if err != nil {
			return err
		}
		if expectedVersion != 0 && expectedVersion != old.Version {
			return core.Conflict(op, errors.New("transaction was modified since it was loaded"))
		}
		acc, err := tx.GetAccount(ctx, actor.FamilyID, old.AccountID)
		if err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, old); err != nil {
			return err
		}
		acc.Balance = acc.Balance.Sub(old.Amount)
		if err := writeAccount(ctx, tx, &acc); err != nil {
			return err
		}
		prev := old
		change = Change{Transaction: old, Previous: &prev, Accounts: []core.Account{acc}}
		return nil
	})
	if err != nil {
		return Change{}, core.Classify(op, err)
	}
	return change, nil
}

// Review marks a flagged transaction as reviewed by the actor. Balances are untouched.
func (m *Mutator) Review(ctx context.Context, actor core.Actor, id string, expectedVersion int64) (Change, error) {
	const op = "ledger.review"
	if err := actor.RequireFamily(op); err != nil {
		return Change{}, err
	}

	var change Change
	err := m.store.Atomic(ctx, func(tx Tx) error {
		change = Change{}
		old, err := tx.GetTransaction(ctx, actor.FamilyID, id)
		if err != nil {
			return err
		}
		if expectedVersion != 0 && expectedVersion != old.Version {
			return core.Conflict(op, errors.New("transaction was modified since it was loaded"))
		}
		updated := old
		updated.NeedsReview = false
		updated.ReviewedBy = actor.UID
		updated.UpdatedAt = m.now().UTC()
		if err := tx.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		updated.Version++
		prev := old
		change = Change{Transaction: updated, Previous: &prev}
		return nil
	})
	if err != nil {
		return Change{}, core.Classify(op, err)
	}
	return change, nil
}

func applyEdit(old core.Transaction, in EditInput) (core.Transaction, bool) {
	t := old
	t.Amount = old.Amount.Abs()
	recategorize := false
	if in.AccountID != nil {
		t.AccountID = *in.AccountID
	}
	if in.Type != nil && *in.Type != old.Type {
		t.Type = *in.Type
		recategorize = true
	}
	if in.Amount != nil {
		t.Amount = *in.Amount
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.CategoryID != nil && *in.CategoryID != old.CategoryID {
		t.CategoryID = *in.CategoryID
		t.Subcategory = ""
		recategorize = true
	}
	if in.Subcategory != nil {
		t.Subcategory = strings.TrimSpace(*in.Subcategory)
		recategorize = true
	}
	if in.Date != nil {
		t.Date = *in.Date
	}
	if in.GoalID != nil {
		t.GoalID = *in.GoalID
	}
	if in.EventID != nil && *in.EventID != old.EventID {
		t.EventID = *in.EventID
		if in.EventCategoryID == nil {
			t.EventCategoryID = ""
		}
	}
	if in.EventCategoryID != nil {
		t.EventCategoryID = *in.EventCategoryID
	}
	if in.NeedsReview != nil {
		t.NeedsReview = *in.NeedsReview
		if t.NeedsReview {
			t.ReviewedBy = ""
		}
	}
	return t, recategorize
}

// referencedAccount loads an account named by user input; a missing account
// is an input problem rather than a missing target.
func referencedAccount(ctx context.Context, tx Tx, op, familyID, id string) (core.Account, error) {
	acc, err := tx.GetAccount(ctx, familyID, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Account{}, core.Validationf(op, "account %q does not exist", id)
	}
	return acc, err
}

// resolveCategory checks the category reference and fills the display label.
func resolveCategory(ctx context.Context, tx Tx, op string, t *core.Transaction) error {
	cat, err := tx.GetCategory(ctx, t.FamilyID, t.CategoryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Validationf(op, "category %q does not exist", t.CategoryID)
	}
	if err != nil {
		return err
	}
	if cat.Type != t.Type {
		return core.Validationf(op, "category %q is an %s category, not %s", cat.Name, cat.Type, t.Type)
	}
	if t.Subcategory != "" {
		sub, ok := cat.HasSubcategory(t.Subcategory)
		if !ok {
			return core.Validationf(op, "category %q has no subcategory %q", cat.Name, t.Subcategory)
		}
		t.Subcategory = sub
	}
	t.Category = core.CategoryLabel(cat.Name, t.Subcategory)
	return nil
}

// checkLinks verifies the optional goal and event references.
func checkLinks(ctx context.Context, tx Tx, op string, t core.Transaction) error {
	if t.GoalID != "" {
		if _, err := tx.GetGoal(ctx, t.FamilyID, t.GoalID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.Validationf(op, "goal %q does not exist", t.GoalID)
			}
			return err
		}
	}
	if t.EventID != "" {
		if _, err := tx.GetEvent(ctx, t.FamilyID, t.EventID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.Validationf(op, "event %q does not exist", t.EventID)
			}
			return err
		}
	}
	if t.EventCategoryID != "" {
		if t.EventID == "" {
			return core.Validationf(op, "event category requires an event")
		}
		ec, err := tx.GetEventCategory(ctx, t.FamilyID, t.EventCategoryID)
		if errors.Is(err, core.ErrNotFound) {
			return core.Validationf(op, "event category %q does not exist", t.EventCategoryID)
		}
		if err != nil {
			return err
		}
		if ec.EventID != t.EventID {
			return core.Validationf(op, "event category %q does not belong to event %q", ec.Name, t.EventID)
		}
	}
	return nil
}

func writeAccount(ctx context.Context, tx Tx, acc *core.Account) error {
	acc.Balance = core.RoundMoney(acc.Balance)
	if err := tx.UpdateAccount(ctx, *acc); err != nil {
		return err
	}
	acc.Version++
	return nil
}
