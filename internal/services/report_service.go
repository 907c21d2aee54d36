package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"kanakku/internal/aggregate"
	"kanakku/internal/core"
	"kanakku/internal/ledger"
	"kanakku/internal/watch"
)

// trendMonths is how many months the dashboard trend covers.
const trendMonths = 6

// Dashboard is the monthly overview of a family.
type Dashboard struct {
	Year        int
	Month       time.Month
	Label       string
	Summary     aggregate.Summary
	Accounts    []core.Account
	Budgets     []aggregate.BudgetStatus
	Goals       []aggregate.GoalStatus
	Events      []aggregate.EventStatus
	Breakdown   []aggregate.CategoryTotal
	Trend       []aggregate.TrendPoint
	NeedsReview int
}

// EventPlan is the spending of one event against its plan.
type EventPlan struct {
	Event      aggregate.EventStatus
	Categories []aggregate.EventCategoryStatus
}

// ReportService computes read models from the ledger. Every call recomputes
// from the store; nothing aggregated is cached.
type ReportService struct {
	store ledger.Reader
	hub   *watch.Hub
	loc   *time.Location
}

func NewReportService(store ledger.Reader, hub *watch.Hub, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{store: store, hub: hub, loc: loc}
}

// Dashboard loads the family's documents concurrently and aggregates them
// for the given calendar month.
func (s *ReportService) Dashboard(ctx context.Context, actor core.Actor, year int, month time.Month) (Dashboard, error) {
	const op = "reports.dashboard"
	if err := actor.RequireFamily(op); err != nil {
		return Dashboard{}, err
	}
	if month < time.January || month > time.December {
		return Dashboard{}, core.Validationf(op, "month must be between 1 and 12")
	}
	if year < 1900 || year > 9999 {
		return Dashboard{}, core.Validationf(op, "year %d is out of range", year)
	}

	fam := actor.FamilyID
	var (
		accounts []core.Account
		txs      []core.Transaction
		budgets  []core.Budget
		goals    []core.Goal
		events   []core.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx, fam)
		return err
	})
	g.Go(func() (err error) {
		txs, err = s.store.ListTransactions(gctx, ledger.TransactionFilter{FamilyID: fam})
		return err
	})
	g.Go(func() (err error) {
		budgets, err = s.store.ListBudgets(gctx, fam)
		return err
	})
	g.Go(func() (err error) {
		goals, err = s.store.ListGoals(gctx, fam)
		return err
	})
	g.Go(func() (err error) {
		events, err = s.store.ListEvents(gctx, fam)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, core.Classify(op, err)
	}

	w := aggregate.MonthWindow(year, month, s.loc)
	label := core.MonthLabel(w.Start)
	d := Dashboard{
		Year:      year,
		Month:     month,
		Label:     label,
		Summary:   aggregate.MonthlySummary(fam, w, txs),
		Accounts:  accounts,
		Budgets:   make([]aggregate.BudgetStatus, 0, len(budgets)),
		Goals:     make([]aggregate.GoalStatus, 0, len(goals)),
		Events:    make([]aggregate.EventStatus, 0, len(events)),
		Breakdown: aggregate.CategoryBreakdown(fam, w, txs),
		Trend:     aggregate.MonthlyTrend(fam, txs, w.Start, trendMonths, s.loc),
	}
	for _, b := range budgets {
		if core.SameMonthLabel(b.Month, label) {
			d.Budgets = append(d.Budgets, aggregate.BudgetProgress(b, txs, s.loc))
		}
	}
	for _, goal := range goals {
		d.Goals = append(d.Goals, aggregate.GoalProgress(goal, txs))
	}
	for _, e := range events {
		d.Events = append(d.Events, aggregate.EventCost(e, txs))
	}
	for _, t := range txs {
		if t.NeedsReview {
			d.NeedsReview++
		}
	}
	return d, nil
}

// EventPlan reports an event's cost and the spend of each planned category.
func (s *ReportService) EventPlan(ctx context.Context, actor core.Actor, eventID string) (EventPlan, error) {
	const op = "reports.event_plan"
	if err := actor.RequireFamily(op); err != nil {
		return EventPlan{}, err
	}

	fam := actor.FamilyID
	var (
		event core.Event
		cats  []core.EventCategory
		txs   []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		event, err = s.store.GetEvent(gctx, fam, eventID)
		return err
	})
	g.Go(func() (err error) {
		cats, err = s.store.ListEventCategories(gctx, fam, eventID)
		return err
	})
	g.Go(func() (err error) {
		txs, err = s.store.ListTransactions(gctx, ledger.TransactionFilter{FamilyID: fam, EventID: eventID})
		return err
	})
	if err := g.Wait(); err != nil {
		return EventPlan{}, core.Classify(op, err)
	}

	plan := EventPlan{
		Event:      aggregate.EventCost(event, txs),
		Categories: make([]aggregate.EventCategoryStatus, 0, len(cats)),
	}
	for _, c := range cats {
		plan.Categories = append(plan.Categories, aggregate.EventCategorySpend(c, txs))
	}
	return plan, nil
}

// WatchDashboard streams the dashboard, recomputed after every change in
// the actor's family. The stream lives in a child of scope.
func (s *ReportService) WatchDashboard(ctx context.Context, scope *watch.Scope, actor core.Actor, year int, month time.Month) (*watch.Stream[Dashboard], error) {
	if err := actor.RequireFamily("reports.watch_dashboard"); err != nil {
		return nil, err
	}
	topic := watch.Topic{FamilyID: actor.FamilyID}
	return watch.Watch(ctx, scope, s.hub, topic, func(ctx context.Context) (Dashboard, error) {
		return s.Dashboard(ctx, actor, year, month)
	}), nil
}

// PlanUpdate is one recomputed event plan.
type PlanUpdate struct {
	EventID string
	Plan    EventPlan
	Err     error
}

// PlanFeed merges the plan streams of every event of a family.
type PlanFeed struct {
	c     chan PlanUpdate
	scope *watch.Scope
}

func (f *PlanFeed) C() <-chan PlanUpdate { return f.c }

func (f *PlanFeed) Done() <-chan struct{} { return f.scope.Done() }

func (f *PlanFeed) Close() { f.scope.Close() }

// WatchEventPlans watches the family's event list and keeps one plan stream
// per event. Whenever the list changes the per-event streams are disposed
// and rebuilt for the new list.
func (s *ReportService) WatchEventPlans(ctx context.Context, scope *watch.Scope, actor core.Actor) (*PlanFeed, error) {
	if err := actor.RequireFamily("reports.watch_event_plans"); err != nil {
		return nil, err
	}
	fam := actor.FamilyID
	root := scope.Child()
	feed := &PlanFeed{c: make(chan PlanUpdate, 16), scope: root}

	events := watch.Watch(ctx, root, s.hub, watch.Topic{FamilyID: fam, Collection: watch.Events},
		func(ctx context.Context) ([]core.Event, error) {
			return s.store.ListEvents(ctx, fam)
		})

	watch.Cascade(root, events, func(child *watch.Scope, list []core.Event) {
		for _, e := range list {
			eventID := e.ID
			plan := watch.Watch(ctx, child, s.hub, watch.Topic{FamilyID: fam},
				func(ctx context.Context) (EventPlan, error) {
					return s.EventPlan(ctx, actor, eventID)
				})
			go func() {
				for r := range plan.C() {
					select {
					case feed.c <- PlanUpdate{EventID: eventID, Plan: r.Value, Err: r.Err}:
					case <-child.Done():
						return
					}
				}
			}()
		}
	})
	return feed, nil
}
