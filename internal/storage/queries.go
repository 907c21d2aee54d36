package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"kanakku/internal/core"
	"kanakku/internal/ledger"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// reader implements ledger.Reader on either the pool or a transaction.
type reader struct {
	q       querier
	dialect Dialect
}

var _ ledger.Reader = reader{}

func (r reader) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.dialect.rebind(query), args...)
}

func get[T any](ctx context.Context, r reader, op, what, id string, scan func(scanner) (T, error), query string, args ...any) (T, error) {
	v, err := scan(r.q.QueryRowContext(ctx, r.dialect.rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, core.NotFoundf(op, "%s %q not found", what, id)
	}
	if err != nil {
		var zero T
		return zero, mapError(op, err)
	}
	return v, nil
}

func list[T any](ctx context.Context, r reader, op string, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return out, nil
}

const (
	accountColumns       = "id, family_id, name, type, balance, version, created_at"
	transactionColumns   = "id, family_id, uid, account_id, amount, type, description, category_id, category, subcategory, date, goal_id, event_id, event_category_id, needs_review, reviewed_by, version, created_at, updated_at"
	categoryColumns      = "id, family_id, name, type, is_default, subcategories, created_at"
	budgetColumns        = "id, family_id, category, amount, month, created_at"
	goalColumns          = "id, family_id, goal_name, target_amount, target_date, created_at"
	eventColumns         = "id, family_id, name, estimated_cost, event_date, created_at"
	eventCategoryColumns = "id, family_id, event_id, name, estimated_budget, created_at"
	familyColumns        = "id, owner_id, invite_code, created_at"
	userColumns          = "uid, email, family_id, role, version, created_at, updated_at"
)

func scanAccount(s scanner) (core.Account, error) {
	var a core.Account
	err := s.Scan(&a.ID, &a.FamilyID, &a.Name, &a.Type, &a.Balance, &a.Version, timeColumn{&a.CreatedAt})
	return a, err
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var t core.Transaction
	var sub, goal, event, eventCategory, reviewedBy sql.NullString
	err := s.Scan(&t.ID, &t.FamilyID, &t.UID, &t.AccountID, &t.Amount, &t.Type, &t.Description,
		&t.CategoryID, &t.Category, &sub, timeColumn{&t.Date}, &goal, &event, &eventCategory,
		&t.NeedsReview, &reviewedBy, &t.Version, timeColumn{&t.CreatedAt}, timeColumn{&t.UpdatedAt})
	t.Subcategory = sub.String
	t.GoalID = goal.String
	t.EventID = event.String
	t.EventCategoryID = eventCategory.String
	t.ReviewedBy = reviewedBy.String
	return t, err
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c    core.Category
		subs string
	)
	if err := s.Scan(&c.ID, &c.FamilyID, &c.Name, &c.Type, &c.IsDefault, &subs, timeColumn{&c.CreatedAt}); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(subs), &c.Subcategories); err != nil {
		return c, fmt.Errorf("decode subcategories of %s: %w", c.ID, err)
	}
	if len(c.Subcategories) == 0 {
		c.Subcategories = nil
	}
	return c, nil
}

func scanBudget(s scanner) (core.Budget, error) {
	var b core.Budget
	err := s.Scan(&b.ID, &b.FamilyID, &b.Category, &b.Amount, &b.Month, timeColumn{&b.CreatedAt})
	return b, err
}

func scanGoal(s scanner) (core.Goal, error) {
	var g core.Goal
	err := s.Scan(&g.ID, &g.FamilyID, &g.GoalName, &g.TargetAmount, timeColumn{&g.TargetDate}, timeColumn{&g.CreatedAt})
	return g, err
}

func scanEvent(s scanner) (core.Event, error) {
	var e core.Event
	err := s.Scan(&e.ID, &e.FamilyID, &e.Name, &e.EstimatedCost, timeColumn{&e.EventDate}, timeColumn{&e.CreatedAt})
	return e, err
}

func scanEventCategory(s scanner) (core.EventCategory, error) {
	var c core.EventCategory
	err := s.Scan(&c.ID, &c.FamilyID, &c.EventID, &c.Name, &c.EstimatedBudget, timeColumn{&c.CreatedAt})
	return c, err
}

func scanFamily(s scanner) (core.Family, error) {
	var f core.Family
	err := s.Scan(&f.ID, &f.OwnerID, &f.InviteCode, timeColumn{&f.CreatedAt})
	return f, err
}

func scanUser(s scanner) (core.User, error) {
	var u core.User
	var family, role sql.NullString
	err := s.Scan(&u.UID, &u.Email, &family, &role, &u.Version, timeColumn{&u.CreatedAt}, timeColumn{&u.UpdatedAt})
	u.FamilyID = family.String
	u.Role = core.Role(role.String)
	return u, err
}

func (r reader) GetAccount(ctx context.Context, familyID, id string) (core.Account, error) {
	return get(ctx, r, "storage.get_account", "account", id, scanAccount,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ? AND family_id = ?", id, familyID)
}

func (r reader) GetTransaction(ctx context.Context, familyID, id string) (core.Transaction, error) {
	return get(ctx, r, "storage.get_transaction", "transaction", id, scanTransaction,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND family_id = ?", id, familyID)
}

func (r reader) GetCategory(ctx context.Context, familyID, id string) (core.Category, error) {
	return get(ctx, r, "storage.get_category", "category", id, scanCategory,
		"SELECT "+categoryColumns+" FROM categories WHERE id = ? AND family_id = ?", id, familyID)
}

func (r reader) GetBudget(ctx context.Context, familyID, id string) (core.Budget, error) {
	return get(ctx, r, "storage.get_budget", "budget", id, scanBudget,
		"SELECT "+budgetColumns+" FROM budgets WHERE id = ? AND family_id = ?", id, familyID)
}

func (r reader) GetGoal(ctx context.Context, familyID, id string) (core.Goal, error) {
	return get(ctx, r, "storage.get_goal", "goal", id, scanGoal,
		"SELECT "+goalColumns+" FROM goals WHERE id = ? AND family_id = ?", id, familyID)
}

func (r reader) GetEvent(ctx context.Context, familyID, id string) (core.Event, error) {
	return get(ctx, r, "storage.get_event", "event", id, scanEvent,
		"SELECT "+eventColumns+" FROM events WHERE id = ? AND family_id = ?", id, familyID)
}

func (r reader) GetEventCategory(ctx context.Context, familyID, id string) (core.EventCategory, error) {
	return get(ctx, r, "storage.get_event_category", "event category", id, scanEventCategory,
		"SELECT "+eventCategoryColumns+" FROM event_categories WHERE id = ? AND family_id = ?", id, familyID)
}

func (r reader) GetFamily(ctx context.Context, id string) (core.Family, error) {
	return get(ctx, r, "storage.get_family", "family", id, scanFamily,
		"SELECT "+familyColumns+" FROM families WHERE id = ?", id)
}

func (r reader) FindFamilyByInviteCode(ctx context.Context, code string) (core.Family, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return core.Family{}, core.NotFoundf("storage.find_family", "no family with invite code %q", code)
	}
	return get(ctx, r, "storage.find_family", "invite code", code, scanFamily,
		"SELECT "+familyColumns+" FROM families WHERE UPPER(invite_code) = ?", code)
}

func (r reader) GetUser(ctx context.Context, uid string) (core.User, error) {
	return get(ctx, r, "storage.get_user", "user", uid, scanUser,
		"SELECT "+userColumns+" FROM users WHERE uid = ?", uid)
}

func (r reader) ListUsers(ctx context.Context, familyID string) ([]core.User, error) {
	return list(ctx, r, "storage.list_users", scanUser,
		"SELECT "+userColumns+" FROM users WHERE family_id = ? ORDER BY email, uid", familyID)
}

func (r reader) ListAccounts(ctx context.Context, familyID string) ([]core.Account, error) {
	return list(ctx, r, "storage.list_accounts", scanAccount,
		"SELECT "+accountColumns+" FROM accounts WHERE family_id = ? ORDER BY name, id", familyID)
}

func (r reader) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]core.Transaction, error) {
	where := []string{"family_id = ?"}
	args := []any{f.FamilyID}
	eq := func(column, value string) {
		if value != "" {
			where = append(where, column+" = ?")
			args = append(args, value)
		}
	}
	eq("account_id", f.AccountID)
	eq("goal_id", f.GoalID)
	eq("event_id", f.EventID)
	eq("event_category_id", f.EventCategoryID)
	eq("type", string(f.Type))
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, r.dialect.timestamp(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, r.dialect.timestamp(f.To))
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE " +
		strings.Join(where, " AND ") + " ORDER BY date DESC, created_at DESC, id"
	return list(ctx, r, "storage.list_transactions", scanTransaction, query, args...)
}

func (r reader) ListCategories(ctx context.Context, familyID string, t core.TransactionType) ([]core.Category, error) {
	if t == "" {
		return list(ctx, r, "storage.list_categories", scanCategory,
			"SELECT "+categoryColumns+" FROM categories WHERE family_id = ? ORDER BY type, name, id", familyID)
	}
	return list(ctx, r, "storage.list_categories", scanCategory,
		"SELECT "+categoryColumns+" FROM categories WHERE family_id = ? AND type = ? ORDER BY type, name, id", familyID, string(t))
}

func (r reader) ListBudgets(ctx context.Context, familyID string) ([]core.Budget, error) {
	return list(ctx, r, "storage.list_budgets", scanBudget,
		"SELECT "+budgetColumns+" FROM budgets WHERE family_id = ? ORDER BY created_at, id", familyID)
}

func (r reader) ListGoals(ctx context.Context, familyID string) ([]core.Goal, error) {
	return list(ctx, r, "storage.list_goals", scanGoal,
		"SELECT "+goalColumns+" FROM goals WHERE family_id = ? ORDER BY target_date, id", familyID)
}

func (r reader) ListEvents(ctx context.Context, familyID string) ([]core.Event, error) {
	return list(ctx, r, "storage.list_events", scanEvent,
		"SELECT "+eventColumns+" FROM events WHERE family_id = ? ORDER BY event_date, id", familyID)
}

func (r reader) ListEventCategories(ctx context.Context, familyID, eventID string) ([]core.EventCategory, error) {
	return list(ctx, r, "storage.list_event_categories", scanEventCategory,
		"SELECT "+eventCategoryColumns+" FROM event_categories WHERE family_id = ? AND event_id = ? ORDER BY name, id", familyID, eventID)
}
