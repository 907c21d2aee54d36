// Package aggregate derives budget, goal, event and dashboard figures from
// the transaction ledger. Every function is pure: results depend only on the
// arguments and nothing is cached between calls.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kanakku/internal/core"
)

// Window is an inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindow spans the calendar month from its first to its last instant in loc.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

type Summary struct {
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal // magnitude
	NetBalance    decimal.Decimal
}

// MonthlySummary totals the family's income and expenses dated inside w.
func MonthlySummary(familyID string, w Window, txs []core.Transaction) Summary {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		if t.FamilyID != familyID || !w.Contains(t.Date) {
			continue
		}
		switch t.Type {
		case core.Income:
			income = income.Add(t.Amount)
		case core.Expense:
			expense = expense.Add(t.Amount)
		}
	}
	return Summary{
		TotalIncome:   income,
		TotalExpenses: expense.Abs(),
		NetBalance:    income.Add(expense),
	}
}

type BudgetStatus struct {
	Budget      core.Budget
	Spent       decimal.Decimal
	Remaining   decimal.Decimal
	ProgressPct decimal.Decimal // not clamped
}

// BudgetProgress sums expenses whose top-level category and month label match
// the budget, both compared case-insensitively. Transaction months are read
// in loc, the reporting time zone (UTC when nil).
func BudgetProgress(b core.Budget, txs []core.Transaction, loc *time.Location) BudgetStatus {
	if loc == nil {
		loc = time.UTC
	}
	spent := decimal.Zero
	category := strings.TrimSpace(b.Category)
	for _, t := range txs {
		if t.FamilyID != b.FamilyID || t.Type != core.Expense {
			continue
		}
		if !strings.EqualFold(core.MainCategory(t.Category), category) {
			continue
		}
		if !core.SameMonthLabel(core.MonthLabel(t.Date.In(loc)), b.Month) {
			continue
		}
		spent = spent.Add(t.Amount.Abs())
	}
	return BudgetStatus{
		Budget:      b,
		Spent:       spent,
		Remaining:   b.Amount.Sub(spent),
		ProgressPct: core.Percent(spent, b.Amount),
	}
}

type GoalStatus struct {
	Goal          core.Goal
	CurrentAmount decimal.Decimal
	ProgressPct   decimal.Decimal
}

// GoalProgress sums the signed amounts tagged with the goal, so an expense
// tagged with a goal reduces its progress.
func GoalProgress(g core.Goal, txs []core.Transaction) GoalStatus {
	current := decimal.Zero
	for _, t := range txs {
		if t.FamilyID == g.FamilyID && t.GoalID != "" && t.GoalID == g.ID {
			current = current.Add(t.Amount)
		}
	}
	return GoalStatus{
		Goal:          g,
		CurrentAmount: current,
		ProgressPct:   core.Percent(current, g.TargetAmount),
	}
}

type EventStatus struct {
	Event       core.Event
	CurrentCost decimal.Decimal
	ProgressPct decimal.Decimal
}

// EventCost sums expense magnitudes tagged with the event.
func EventCost(e core.Event, txs []core.Transaction) EventStatus {
	cost := expenseMagnitude(txs, func(t core.Transaction) bool {
		return t.FamilyID == e.FamilyID && t.EventID != "" && t.EventID == e.ID
	})
	return EventStatus{
		Event:       e,
		CurrentCost: cost,
		ProgressPct: core.Percent(cost, e.EstimatedCost),
	}
}

type EventCategoryStatus struct {
	Category    core.EventCategory
	Spent       decimal.Decimal
	ProgressPct decimal.Decimal
}

// EventCategorySpend is EventCost restricted to one category of the event.
func EventCategorySpend(c core.EventCategory, txs []core.Transaction) EventCategoryStatus {
	spent := expenseMagnitude(txs, func(t core.Transaction) bool {
		return t.FamilyID == c.FamilyID && t.EventID == c.EventID &&
			t.EventCategoryID != "" && t.EventCategoryID == c.ID
	})
	return EventCategoryStatus{
		Category:    c,
		Spent:       spent,
		ProgressPct: core.Percent(spent, c.EstimatedBudget),
	}
}

type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}

// CategoryBreakdown totals expense magnitudes per category label inside w,
// largest first.
func CategoryBreakdown(familyID string, w Window, txs []core.Transaction) []CategoryTotal {
	totals := map[string]decimal.Decimal{}
	for _, t := range txs {
		if t.FamilyID != familyID || t.Type != core.Expense || !w.Contains(t.Date) {
			continue
		}
		label := t.Category
		if label == "" {
			label = "Uncategorized"
		}
		totals[label] = totals[label].Add(t.Amount.Abs())
	}
	out := make([]CategoryTotal, 0, len(totals))
	for label, amount := range totals {
		out = append(out, CategoryTotal{Category: label, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

type TrendPoint struct {
	Label    string // "Jan 2006"
	Window   Window
	Income   decimal.Decimal
	Expenses decimal.Decimal // magnitude
}

// MonthlyTrend returns income and expense totals for the n months ending with
// the month containing last, oldest first.
func MonthlyTrend(familyID string, txs []core.Transaction, last time.Time, n int, loc *time.Location) []TrendPoint {
	if n <= 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	last = last.In(loc)
	out := make([]TrendPoint, n)
	for i := 0; i < n; i++ {
		first := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, i-(n-1), 0)
		w := MonthWindow(first.Year(), first.Month(), loc)
		s := MonthlySummary(familyID, w, txs)
		out[i] = TrendPoint{
			Label:    first.Format("Jan 2006"),
			Window:   w,
			Income:   s.TotalIncome,
			Expenses: s.TotalExpenses,
		}
	}
	return out
}

func expenseMagnitude(txs []core.Transaction, keep func(core.Transaction) bool) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		if t.Type == core.Expense && keep(t) {
			sum = sum.Add(t.Amount.Abs())
		}
	}
	return sum
}
