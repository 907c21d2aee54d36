// Package memory is an in-process ledger store. Atomic units run one at a
// time against a private copy of the state that replaces the live state on
// success, so a failed unit leaves nothing behind.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"kanakku/internal/core"
	"kanakku/internal/ledger"
)

var errVersionMismatch = errors.New("stored version differs")

type state struct {
	accounts        map[string]core.Account
	transactions    map[string]core.Transaction
	categories      map[string]core.Category
	budgets         map[string]core.Budget
	goals           map[string]core.Goal
	events          map[string]core.Event
	eventCategories map[string]core.EventCategory
	families        map[string]core.Family
	users           map[string]core.User
}

func newState() *state {
	return &state{
		accounts:        map[string]core.Account{},
		transactions:    map[string]core.Transaction{},
		categories:      map[string]core.Category{},
		budgets:         map[string]core.Budget{},
		goals:           map[string]core.Goal{},
		events:          map[string]core.Event{},
		eventCategories: map[string]core.EventCategory{},
		families:        map[string]core.Family{},
		users:           map[string]core.User{},
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		accounts:        cloneMap(s.accounts),
		transactions:    cloneMap(s.transactions),
		categories:      cloneMap(s.categories),
		budgets:         cloneMap(s.budgets),
		goals:           cloneMap(s.goals),
		events:          cloneMap(s.events),
		eventCategories: cloneMap(s.eventCategories),
		families:        cloneMap(s.families),
		users:           cloneMap(s.users),
	}
}

// Store implements ledger.Store in memory.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&view{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// read runs f against the live state under the read lock.
func read[T any](s *Store, f func(v *view) (T, error)) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f(&view{st: s.st})
}

func (s *Store) GetAccount(ctx context.Context, familyID, id string) (core.Account, error) {
	return read(s, func(v *view) (core.Account, error) { return v.GetAccount(ctx, familyID, id) })
}

func (s *Store) GetTransaction(ctx context.Context, familyID, id string) (core.Transaction, error) {
	return read(s, func(v *view) (core.Transaction, error) { return v.GetTransaction(ctx, familyID, id) })
}

func (s *Store) GetCategory(ctx context.Context, familyID, id string) (core.Category, error) {
	return read(s, func(v *view) (core.Category, error) { return v.GetCategory(ctx, familyID, id) })
}

func (s *Store) GetBudget(ctx context.Context, familyID, id string) (core.Budget, error) {
	return read(s, func(v *view) (core.Budget, error) { return v.GetBudget(ctx, familyID, id) })
}

func (s *Store) GetGoal(ctx context.Context, familyID, id string) (core.Goal, error) {
	return read(s, func(v *view) (core.Goal, error) { return v.GetGoal(ctx, familyID, id) })
}

func (s *Store) GetEvent(ctx context.Context, familyID, id string) (core.Event, error) {
	return read(s, func(v *view) (core.Event, error) { return v.GetEvent(ctx, familyID, id) })
}

func (s *Store) GetEventCategory(ctx context.Context, familyID, id string) (core.EventCategory, error) {
	return read(s, func(v *view) (core.EventCategory, error) { return v.GetEventCategory(ctx, familyID, id) })
}

func (s *Store) GetFamily(ctx context.Context, id string) (core.Family, error) {
	return read(s, func(v *view) (core.Family, error) { return v.GetFamily(ctx, id) })
}

func (s *Store) FindFamilyByInviteCode(ctx context.Context, code string) (core.Family, error) {
	return read(s, func(v *view) (core.Family, error) { return v.FindFamilyByInviteCode(ctx, code) })
}

func (s *Store) GetUser(ctx context.Context, uid string) (core.User, error) {
	return read(s, func(v *view) (core.User, error) { return v.GetUser(ctx, uid) })
}

func (s *Store) ListUsers(ctx context.Context, familyID string) ([]core.User, error) {
	return read(s, func(v *view) ([]core.User, error) { return v.ListUsers(ctx, familyID) })
}

func (s *Store) ListAccounts(ctx context.Context, familyID string) ([]core.Account, error) {
	return read(s, func(v *view) ([]core.Account, error) { return v.ListAccounts(ctx, familyID) })
}

func (s *Store) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]core.Transaction, error) {
	return read(s, func(v *view) ([]core.Transaction, error) { return v.ListTransactions(ctx, f) })
}

func (s *Store) ListCategories(ctx context.Context, familyID string, t core.TransactionType) ([]core.Category, error) {
	return read(s, func(v *view) ([]core.Category, error) { return v.ListCategories(ctx, familyID, t) })
}

func (s *Store) ListBudgets(ctx context.Context, familyID string) ([]core.Budget, error) {
	return read(s, func(v *view) ([]core.Budget, error) { return v.ListBudgets(ctx, familyID) })
}

func (s *Store) ListGoals(ctx context.Context, familyID string) ([]core.Goal, error) {
	return read(s, func(v *view) ([]core.Goal, error) { return v.ListGoals(ctx, familyID) })
}

func (s *Store) ListEvents(ctx context.Context, familyID string) ([]core.Event, error) {
	return read(s, func(v *view) ([]core.Event, error) { return v.ListEvents(ctx, familyID) })
}

func (s *Store) ListEventCategories(ctx context.Context, familyID, eventID string) ([]core.EventCategory, error) {
	return read(s, func(v *view) ([]core.EventCategory, error) { return v.ListEventCategories(ctx, familyID, eventID) })
}

// view reads and writes one state; inside Atomic it is the ledger.Tx.
type view struct {
	st *state
}

var _ ledger.Tx = (*view)(nil)

func notFound(kind, id string) error {
	return core.NotFoundf("memory.get_"+strings.ReplaceAll(kind, " ", "_"), "%s %q not found", kind, id)
}

func scoped[T any](m map[string]T, kind, familyID, id string, family func(T) string) (T, error) {
	v, ok := m[id]
	if !ok || family(v) != familyID {
		var zero T
		return zero, notFound(kind, id)
	}
	return v, nil
}

func (v *view) GetAccount(_ context.Context, familyID, id string) (core.Account, error) {
	return scoped(v.st.accounts, "account", familyID, id, func(a core.Account) string { return a.FamilyID })
}

func (v *view) GetTransaction(_ context.Context, familyID, id string) (core.Transaction, error) {
	return scoped(v.st.transactions, "transaction", familyID, id, func(t core.Transaction) string { return t.FamilyID })
}

func (v *view) GetCategory(_ context.Context, familyID, id string) (core.Category, error) {
	c, err := scoped(v.st.categories, "category", familyID, id, func(c core.Category) string { return c.FamilyID })
	return copyCategory(c), err
}

func (v *view) GetBudget(_ context.Context, familyID, id string) (core.Budget, error) {
	return scoped(v.st.budgets, "budget", familyID, id, func(b core.Budget) string { return b.FamilyID })
}

func (v *view) GetGoal(_ context.Context, familyID, id string) (core.Goal, error) {
	return scoped(v.st.goals, "goal", familyID, id, func(g core.Goal) string { return g.FamilyID })
}

func (v *view) GetEvent(_ context.Context, familyID, id string) (core.Event, error) {
	return scoped(v.st.events, "event", familyID, id, func(e core.Event) string { return e.FamilyID })
}

func (v *view) GetEventCategory(_ context.Context, familyID, id string) (core.EventCategory, error) {
	return scoped(v.st.eventCategories, "event category", familyID, id, func(c core.EventCategory) string { return c.FamilyID })
}

func (v *view) GetFamily(_ context.Context, id string) (core.Family, error) {
	f, ok := v.st.families[id]
	if !ok {
		return core.Family{}, notFound("family", id)
	}
	return f, nil
}

func (v *view) FindFamilyByInviteCode(_ context.Context, code string) (core.Family, error) {
	code = strings.TrimSpace(code)
	for _, f := range v.st.families {
		if code != "" && strings.EqualFold(f.InviteCode, code) {
			return f, nil
		}
	}
	return core.Family{}, core.NotFoundf("memory.find_family", "no family with invite code %q", code)
}

func (v *view) GetUser(_ context.Context, uid string) (core.User, error) {
	u, ok := v.st.users[uid]
	if !ok {
		return core.User{}, notFound("user", uid)
	}
	return u, nil
}

func (v *view) ListUsers(_ context.Context, familyID string) ([]core.User, error) {
	out := collect(v.st.users, func(u core.User) bool { return u.FamilyID == familyID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email != out[j].Email {
			return out[i].Email < out[j].Email
		}
		return out[i].UID < out[j].UID
	})
	return out, nil
}

func (v *view) ListAccounts(_ context.Context, familyID string) ([]core.Account, error) {
	out := collect(v.st.accounts, func(a core.Account) bool { return a.FamilyID == familyID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]core.Transaction, error) {
	out := collect(v.st.transactions, func(t core.Transaction) bool { return matches(f, t) })
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func matches(f ledger.TransactionFilter, t core.Transaction) bool {
	switch {
	case t.FamilyID != f.FamilyID:
		return false
	case f.AccountID != "" && t.AccountID != f.AccountID:
		return false
	case f.GoalID != "" && t.GoalID != f.GoalID:
		return false
	case f.EventID != "" && t.EventID != f.EventID:
		return false
	case f.EventCategoryID != "" && t.EventCategoryID != f.EventCategoryID:
		return false
	case f.Type != "" && t.Type != f.Type:
		return false
	case !f.From.IsZero() && t.Date.Before(f.From):
		return false
	case !f.To.IsZero() && t.Date.After(f.To):
		return false
	}
	return true
}

func (v *view) ListCategories(_ context.Context, familyID string, t core.TransactionType) ([]core.Category, error) {
	out := collect(v.st.categories, func(c core.Category) bool {
		return c.FamilyID == familyID && (t == "" || c.Type == t)
	})
	for i := range out {
		out[i] = copyCategory(out[i])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) ListBudgets(_ context.Context, familyID string) ([]core.Budget, error) {
	out := collect(v.st.budgets, func(b core.Budget) bool { return b.FamilyID == familyID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) ListGoals(_ context.Context, familyID string) ([]core.Goal, error) {
	out := collect(v.st.goals, func(g core.Goal) bool { return g.FamilyID == familyID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TargetDate.Equal(out[j].TargetDate) {
			return out[i].TargetDate.Before(out[j].TargetDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) ListEvents(_ context.Context, familyID string) ([]core.Event, error) {
	out := collect(v.st.events, func(e core.Event) bool { return e.FamilyID == familyID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].EventDate.Before(out[j].EventDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) ListEventCategories(_ context.Context, familyID, eventID string) ([]core.EventCategory, error) {
	out := collect(v.st.eventCategories, func(c core.EventCategory) bool {
		return c.FamilyID == familyID && c.EventID == eventID
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) InsertAccount(_ context.Context, a core.Account) error {
	if _, ok := v.st.accounts[a.ID]; ok {
		return core.Conflict("memory.insert_account", errors.New("duplicate id"))
	}
	v.st.accounts[a.ID] = a
	return nil
}

func (v *view) UpdateAccount(_ context.Context, a core.Account) error {
	cur, ok := v.st.accounts[a.ID]
	if !ok || cur.FamilyID != a.FamilyID || cur.Version != a.Version {
		return core.Conflict("memory.update_account", errVersionMismatch)
	}
	a.Version++
	v.st.accounts[a.ID] = a
	return nil
}

func (v *view) InsertTransaction(_ context.Context, t core.Transaction) error {
	if _, ok := v.st.transactions[t.ID]; ok {
		return core.Conflict("memory.insert_transaction", errors.New("duplicate id"))
	}
	v.st.transactions[t.ID] = t
	return nil
}

func (v *view) UpdateTransaction(_ context.Context, t core.Transaction) error {
	cur, ok := v.st.transactions[t.ID]
	if !ok || cur.FamilyID != t.FamilyID || cur.Version != t.Version {
		return core.Conflict("memory.update_transaction", errVersionMismatch)
	}
	t.Version++
	v.st.transactions[t.ID] = t
	return nil
}

func (v *view) DeleteTransaction(_ context.Context, t core.Transaction) error {
	cur, ok := v.st.transactions[t.ID]
	if !ok || cur.FamilyID != t.FamilyID || cur.Version != t.Version {
		return core.Conflict("memory.delete_transaction", errVersionMismatch)
	}
	delete(v.st.transactions, t.ID)
	return nil
}

func (v *view) InsertCategory(_ context.Context, c core.Category) error {
	v.st.categories[c.ID] = copyCategory(c)
	return nil
}

func (v *view) DeleteCategory(_ context.Context, familyID, id string) error {
	c, ok := v.st.categories[id]
	if !ok || c.FamilyID != familyID {
		return notFound("category", id)
	}
	delete(v.st.categories, id)
	return nil
}

func (v *view) InsertBudget(_ context.Context, b core.Budget) error {
	v.st.budgets[b.ID] = b
	return nil
}

func (v *view) InsertGoal(_ context.Context, g core.Goal) error {
	v.st.goals[g.ID] = g
	return nil
}

func (v *view) InsertEvent(_ context.Context, e core.Event) error {
	v.st.events[e.ID] = e
	return nil
}

func (v *view) InsertEventCategory(_ context.Context, c core.EventCategory) error {
	v.st.eventCategories[c.ID] = c
	return nil
}

func (v *view) InsertFamily(_ context.Context, f core.Family) error {
	for _, existing := range v.st.families {
		if strings.EqualFold(existing.InviteCode, f.InviteCode) {
			return core.Conflict("memory.insert_family", errors.New("invite code already in use"))
		}
	}
	v.st.families[f.ID] = f
	return nil
}

func (v *view) UpdateFamilyInviteCode(_ context.Context, familyID, code string) error {
	f, ok := v.st.families[familyID]
	if !ok {
		return notFound("family", familyID)
	}
	for id, existing := range v.st.families {
		if id != familyID && strings.EqualFold(existing.InviteCode, code) {
			return core.Conflict("memory.update_invite_code", errors.New("invite code already in use"))
		}
	}
	f.InviteCode = code
	v.st.families[familyID] = f
	return nil
}

func (v *view) InsertUser(_ context.Context, u core.User) error {
	if _, ok := v.st.users[u.UID]; ok {
		return core.Conflict("memory.insert_user", errors.New("user already exists"))
	}
	v.st.users[u.UID] = u
	return nil
}

func (v *view) UpdateUser(_ context.Context, u core.User) error {
	cur, ok := v.st.users[u.UID]
	if !ok || cur.Version != u.Version {
		return core.Conflict("memory.update_user", errVersionMismatch)
	}
	u.Version++
	v.st.users[u.UID] = u
	return nil
}

func collect[T any](m map[string]T, keep func(T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func copyCategory(c core.Category) core.Category {
	c.Subcategories = append([]string(nil), c.Subcategories...)
	return c
}
