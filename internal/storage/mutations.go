package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"kanakku/internal/core"
	"kanakku/internal/ledger"
)

// writer is the ledger.Tx handed to Atomic callbacks.
type writer struct {
	reader
}

var _ ledger.Tx = (*writer)(nil)

func (w *writer) InsertAccount(ctx context.Context, a core.Account) error {
	_, err := w.exec(ctx, "INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.FamilyID, a.Name, string(a.Type), a.Balance.String(), a.Version, w.dialect.timestamp(a.CreatedAt))
	return mapError("storage.insert_account", err)
}

func (w *writer) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := w.exec(ctx, `UPDATE accounts SET name = ?, type = ?, balance = ?, version = version + 1
		WHERE id = ? AND family_id = ? AND version = ?`,
		a.Name, string(a.Type), a.Balance.String(), a.ID, a.FamilyID, a.Version)
	return expectRow("storage.update_account", res, err)
}

func (w *writer) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := w.exec(ctx, "INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.FamilyID, t.UID, t.AccountID, t.Amount.String(), string(t.Type), t.Description,
		t.CategoryID, t.Category, nullable(t.Subcategory), w.dialect.timestamp(t.Date),
		nullable(t.GoalID), nullable(t.EventID), nullable(t.EventCategoryID),
		t.NeedsReview, nullable(t.ReviewedBy), t.Version,
		w.dialect.timestamp(t.CreatedAt), w.dialect.timestamp(t.UpdatedAt))
	return mapError("storage.insert_transaction", err)
}

func (w *writer) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := w.exec(ctx, `UPDATE transactions SET
		account_id = ?, amount = ?, type = ?, description = ?, category_id = ?, category = ?,
		subcategory = ?, date = ?, goal_id = ?, event_id = ?, event_category_id = ?,
		needs_review = ?, reviewed_by = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND family_id = ? AND version = ?`,
		t.AccountID, t.Amount.String(), string(t.Type), t.Description, t.CategoryID, t.Category,
		nullable(t.Subcategory), w.dialect.timestamp(t.Date),
		nullable(t.GoalID), nullable(t.EventID), nullable(t.EventCategoryID),
		t.NeedsReview, nullable(t.ReviewedBy), w.dialect.timestamp(t.UpdatedAt),
		t.ID, t.FamilyID, t.Version)
	return expectRow("storage.update_transaction", res, err)
}

func (w *writer) DeleteTransaction(ctx context.Context, t core.Transaction) error {
	res, err := w.exec(ctx, "DELETE FROM transactions WHERE id = ? AND family_id = ? AND version = ?",
		t.ID, t.FamilyID, t.Version)
	return expectRow("storage.delete_transaction", res, err)
}

func (w *writer) InsertCategory(ctx context.Context, c core.Category) error {
	subs := c.Subcategories
	if subs == nil {
		subs = []string{}
	}
	encoded, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("encode subcategories: %w", err)
	}
	_, err = w.exec(ctx, "INSERT INTO categories ("+categoryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.FamilyID, c.Name, string(c.Type), c.IsDefault, string(encoded), w.dialect.timestamp(c.CreatedAt))
	return mapError("storage.insert_category", err)
}

func (w *writer) DeleteCategory(ctx context.Context, familyID, id string) error {
	const op = "storage.delete_category"
	res, err := w.exec(ctx, "DELETE FROM categories WHERE id = ? AND family_id = ?", id, familyID)
	if err != nil {
		return mapError(op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return mapError(op, err)
	} else if n == 0 {
		return core.NotFoundf(op, "category %q not found", id)
	}
	return nil
}

func (w *writer) InsertBudget(ctx context.Context, b core.Budget) error {
	_, err := w.exec(ctx, "INSERT INTO budgets ("+budgetColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		b.ID, b.FamilyID, b.Category, b.Amount.String(), b.Month, w.dialect.timestamp(b.CreatedAt))
	return mapError("storage.insert_budget", err)
}

func (w *writer) InsertGoal(ctx context.Context, g core.Goal) error {
	_, err := w.exec(ctx, "INSERT INTO goals ("+goalColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		g.ID, g.FamilyID, g.GoalName, g.TargetAmount.String(),
		w.dialect.timestamp(g.TargetDate), w.dialect.timestamp(g.CreatedAt))
	return mapError("storage.insert_goal", err)
}

func (w *writer) InsertEvent(ctx context.Context, e core.Event) error {
	_, err := w.exec(ctx, "INSERT INTO events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, e.FamilyID, e.Name, e.EstimatedCost.String(),
		w.dialect.timestamp(e.EventDate), w.dialect.timestamp(e.CreatedAt))
	return mapError("storage.insert_event", err)
}

func (w *writer) InsertEventCategory(ctx context.Context, c core.EventCategory) error {
	_, err := w.exec(ctx, "INSERT INTO event_categories ("+eventCategoryColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.FamilyID, c.EventID, c.Name, c.EstimatedBudget.String(), w.dialect.timestamp(c.CreatedAt))
	return mapError("storage.insert_event_category", err)
}

func (w *writer) InsertFamily(ctx context.Context, f core.Family) error {
	_, err := w.exec(ctx, "INSERT INTO families ("+familyColumns+") VALUES (?, ?, ?, ?)",
		f.ID, f.OwnerID, strings.ToUpper(f.InviteCode), w.dialect.timestamp(f.CreatedAt))
	return mapError("storage.insert_family", err)
}

func (w *writer) UpdateFamilyInviteCode(ctx context.Context, familyID, code string) error {
	const op = "storage.update_invite_code"
	res, err := w.exec(ctx, "UPDATE families SET invite_code = ? WHERE id = ?", strings.ToUpper(code), familyID)
	if err != nil {
		return mapError(op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return mapError(op, err)
	} else if n == 0 {
		return core.NotFoundf(op, "family %q not found", familyID)
	}
	return nil
}

func (w *writer) InsertUser(ctx context.Context, u core.User) error {
	_, err := w.exec(ctx, "INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		u.UID, u.Email, nullable(u.FamilyID), nullable(string(u.Role)), u.Version,
		w.dialect.timestamp(u.CreatedAt), w.dialect.timestamp(u.UpdatedAt))
	return mapError("storage.insert_user", err)
}

func (w *writer) UpdateUser(ctx context.Context, u core.User) error {
	res, err := w.exec(ctx, `UPDATE users SET email = ?, family_id = ?, role = ?, updated_at = ?, version = version + 1
		WHERE uid = ? AND version = ?`,
		u.Email, nullable(u.FamilyID), nullable(string(u.Role)), w.dialect.timestamp(u.UpdatedAt),
		u.UID, u.Version)
	return expectRow("storage.update_user", res, err)
}
