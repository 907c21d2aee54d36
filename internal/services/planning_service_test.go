package services

import (
	"testing"
	"time"

	"kanakku/internal/amqp"
	"kanakku/internal/core"
	"kanakku/internal/watch"
)

func TestPlanningService_Categories(t *testing.T) {
	e := newEnv(t)
	sub := e.hub.Subscribe(watch.Topic{FamilyID: e.actor.FamilyID, Collection: watch.Categories})

	expense, err := e.planning.Categories(e.ctx, e.actor, core.Expense)
	if err != nil {
		t.Fatal(err)
	}
	if len(expense) != 8 {
		t.Fatalf("expense categories = %d, want 8", len(expense))
	}

	pets, err := e.planning.AddCategory(e.ctx, e.actor, core.Category{
		Name:          " Pets ",
		Type:          core.Expense,
		IsDefault:     true,
		Subcategories: []string{"Food ", "Vet"},
	})
	if err != nil {
		t.Fatalf("add category: %v", err)
	}
	if pets.Name != "Pets" || pets.IsDefault || pets.Subcategories[0] != "Food" {
		t.Fatalf("added category = %+v", pets)
	}
	if !pending(sub) {
		t.Fatal("category subscribers were not notified")
	}

	// The cached list is invalidated by the write.
	expense, err = e.planning.Categories(e.ctx, e.actor, core.Expense)
	if err != nil || len(expense) != 9 {
		t.Fatalf("after add: %d categories, %v", len(expense), err)
	}

	t.Run("duplicate names are rejected ignoring case", func(t *testing.T) {
		_, err := e.planning.AddCategory(e.ctx, e.actor, core.Category{Name: "pets", Type: core.Expense})
		wantKind(t, err, core.ErrValidation)
	})

	t.Run("the same name is fine for the other type", func(t *testing.T) {
		if _, err := e.planning.AddCategory(e.ctx, e.actor, core.Category{Name: "Pets", Type: core.Income}); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		_, err := e.planning.AddCategory(e.ctx, e.actor, core.Category{Name: "Food: More", Type: core.Expense})
		wantKind(t, err, core.ErrValidation)
		_, err = e.planning.AddCategory(e.ctx, e.actor, core.Category{Name: "  ", Type: core.Expense})
		wantKind(t, err, core.ErrValidation)
	})

	t.Run("default categories cannot be deleted", func(t *testing.T) {
		err := e.planning.DeleteCategory(e.ctx, e.actor, e.category(t, "Food").ID)
		wantKind(t, err, core.ErrValidation)
	})

	t.Run("custom categories can be deleted", func(t *testing.T) {
		if err := e.planning.DeleteCategory(e.ctx, e.actor, pets.ID); err != nil {
			t.Fatal(err)
		}
		err := e.planning.DeleteCategory(e.ctx, e.actor, pets.ID)
		wantKind(t, err, core.ErrNotFound)
		cats, _ := e.planning.Categories(e.ctx, e.actor, core.Expense)
		if len(cats) != 8 {
			t.Fatalf("after delete: %d categories, want 8", len(cats))
		}
	})

	t.Run("another family cannot delete", func(t *testing.T) {
		bob := e.onboard(t, "bob")
		err := e.planning.DeleteCategory(e.ctx, bob, e.category(t, "Food").ID)
		wantKind(t, err, core.ErrNotFound)
	})
}

func TestPlanningService_Budgets(t *testing.T) {
	e := newEnv(t)

	b, err := e.planning.AddBudget(e.ctx, e.actor, core.Budget{Category: "Food", Amount: dec("500.005"), Month: " october 2025 "})
	if err != nil {
		t.Fatalf("add budget: %v", err)
	}
	if b.Month != "October 2025" || !b.Amount.Equal(dec("500.01")) || b.FamilyID != e.actor.FamilyID {
		t.Fatalf("budget = %+v", b)
	}
	events := e.planPub.published()
	if len(events) == 0 {
		t.Fatal("budget change was not published")
	}
	last := events[len(events)-1]
	if last.Type != amqp.PlanningChanged || last.Collection != string(watch.Budgets) ||
		last.FamilyID != e.actor.FamilyID || last.Origin != "test-instance" {
		t.Fatalf("published %+v", last)
	}

	tests := []struct {
		name   string
		budget core.Budget
	}{
		{"zero amount", core.Budget{Category: "Food", Amount: dec("0"), Month: "October 2025"}},
		{"negative amount", core.Budget{Category: "Food", Amount: dec("-5"), Month: "October 2025"}},
		{"bad month", core.Budget{Category: "Food", Amount: dec("5"), Month: "2025-10"}},
		{"no category", core.Budget{Amount: dec("5"), Month: "October 2025"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.planning.AddBudget(e.ctx, e.actor, tt.budget)
			wantKind(t, err, core.ErrValidation)
		})
	}

	budgets, err := e.planning.Budgets(e.ctx, e.actor)
	if err != nil || len(budgets) != 1 {
		t.Fatalf("budgets = %v, %v", budgets, err)
	}
}

func TestPlanningService_GoalsAndEvents(t *testing.T) {
	e := newEnv(t)
	goalSub := e.hub.Subscribe(watch.Topic{FamilyID: e.actor.FamilyID, Collection: watch.Goals})

	goal, err := e.planning.AddGoal(e.ctx, e.actor, core.Goal{GoalName: "Car", TargetAmount: dec("5000"), TargetDate: date(2026, 6, 1)})
	if err != nil {
		t.Fatalf("add goal: %v", err)
	}
	if !pending(goalSub) {
		t.Fatal("goal subscribers were not notified")
	}
	_, err = e.planning.AddGoal(e.ctx, e.actor, core.Goal{GoalName: "Boat", TargetAmount: dec("-1"), TargetDate: date(2026, 6, 1)})
	wantKind(t, err, core.ErrValidation)

	goals, err := e.planning.Goals(e.ctx, e.actor)
	if err != nil || len(goals) != 1 || goals[0].ID != goal.ID {
		t.Fatalf("goals = %v, %v", goals, err)
	}

	event, err := e.planning.AddEvent(e.ctx, e.actor, core.Event{Name: "Wedding", EstimatedCost: dec("10000"), EventDate: date(2026, 9, 1)})
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	_, err = e.planning.AddEvent(e.ctx, e.actor, core.Event{Name: "Party", EstimatedCost: dec("100")})
	wantKind(t, err, core.ErrValidation)

	catSub := e.hub.Subscribe(watch.Topic{FamilyID: e.actor.FamilyID, Collection: watch.EventCategories, Key: event.ID})
	venue, err := e.planning.AddEventCategory(e.ctx, e.actor, core.EventCategory{EventID: event.ID, Name: "Venue", EstimatedBudget: dec("4000")})
	if err != nil {
		t.Fatalf("add event category: %v", err)
	}
	if !pending(catSub) {
		t.Fatal("event category subscribers were not notified")
	}

	_, err = e.planning.AddEventCategory(e.ctx, e.actor, core.EventCategory{EventID: "missing", Name: "Venue", EstimatedBudget: dec("1")})
	wantKind(t, err, core.ErrNotFound)
	_, err = e.planning.AddEventCategory(e.ctx, e.actor, core.EventCategory{EventID: event.ID, Name: "Flowers", EstimatedBudget: dec("0")})
	wantKind(t, err, core.ErrValidation)

	cats, err := e.planning.EventCategories(e.ctx, e.actor, event.ID)
	if err != nil || len(cats) != 1 || cats[0].ID != venue.ID {
		t.Fatalf("event categories = %v, %v", cats, err)
	}
	_, err = e.planning.EventCategories(e.ctx, e.actor, "missing")
	wantKind(t, err, core.ErrNotFound)

	events, err := e.planning.Events(e.ctx, e.actor)
	if err != nil || len(events) != 1 {
		t.Fatalf("events = %v, %v", events, err)
	}
}

func TestPlanningService_RequiresFamily(t *testing.T) {
	e := newEnv(t)
	onboarding := core.Actor{UID: "newcomer"}

	_, err := e.planning.Categories(e.ctx, onboarding, "")
	wantKind(t, err, core.ErrUnauthorized)
	_, err = e.planning.AddBudget(e.ctx, onboarding, core.Budget{Category: "Food", Amount: dec("1"), Month: "October 2025"})
	wantKind(t, err, core.ErrUnauthorized)
	_, err = e.planning.AddEvent(e.ctx, onboarding, core.Event{Name: "x", EstimatedCost: dec("1"), EventDate: time.Now()})
	wantKind(t, err, core.ErrUnauthorized)
}
