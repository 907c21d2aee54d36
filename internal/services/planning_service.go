package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"kanakku/internal/amqp"
	"kanakku/internal/core"
	"kanakku/internal/ledger"
	"kanakku/internal/log"
	"kanakku/internal/watch"
)

// PlanningService manages the reference and planning documents of a family:
// categories, budgets, goals, events and event categories. None of them
// touch account balances.
type PlanningService struct {
	store     ledger.Store
	hub       *watch.Hub
	catalog   *CategoryCatalog
	publisher Publisher
	origin    string
	now       func() time.Time
}

// NewPlanningService wires planning writes to the local hub and, when
// publisher is set, to other instances through the exchange.
func NewPlanningService(store ledger.Store, hub *watch.Hub, catalog *CategoryCatalog, publisher Publisher, origin string) *PlanningService {
	if catalog == nil {
		catalog = NewCategoryCatalog(store, 0)
	}
	return &PlanningService{store: store, hub: hub, catalog: catalog, publisher: publisher, origin: origin, now: time.Now}
}

// Categories lists the family's categories, optionally of one type.
func (s *PlanningService) Categories(ctx context.Context, actor core.Actor, t core.TransactionType) ([]core.Category, error) {
	const op = "planning.categories"
	if err := actor.RequireFamily(op); err != nil {
		return nil, err
	}
	cats, err := s.catalog.Categories(ctx, actor.FamilyID, t)
	return cats, core.Classify(op, err)
}

// AddCategory creates a custom category. Names are unique per type,
// ignoring case.
func (s *PlanningService) AddCategory(ctx context.Context, actor core.Actor, c core.Category) (core.Category, error) {
	const op = "planning.add_category"
	if err := actor.RequireFamily(op); err != nil {
		return core.Category{}, err
	}
	c.ID = core.NewID()
	c.FamilyID = actor.FamilyID
	c.Name = strings.TrimSpace(c.Name)
	c.IsDefault = false
	c.CreatedAt = s.now().UTC()
	subs := make([]string, 0, len(c.Subcategories))
	for _, sub := range c.Subcategories {
		subs = append(subs, strings.TrimSpace(sub))
	}
	c.Subcategories = subs
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		existing, err := tx.ListCategories(ctx, c.FamilyID, c.Type)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if strings.EqualFold(e.Name, c.Name) {
				return core.Validationf(op, "%s category %q already exists", c.Type, e.Name)
			}
		}
		return tx.InsertCategory(ctx, c)
	})
	if err != nil {
		return core.Category{}, core.Classify(op, err)
	}

	s.catalog.Invalidate(c.FamilyID)
	s.changed(ctx, actor, watch.Categories, c.ID, log.OpCreate)
	return c, nil
}

// DeleteCategory removes a custom category. Default categories cannot be
// deleted. Transactions keep the category label they were booked with.
func (s *PlanningService) DeleteCategory(ctx context.Context, actor core.Actor, id string) error {
	const op = "planning.delete_category"
	if err := actor.RequireFamily(op); err != nil {
		return err
	}
	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		c, err := tx.GetCategory(ctx, actor.FamilyID, id)
		if err != nil {
			return err
		}
		if c.IsDefault {
			return core.Validationf(op, "default category %q cannot be deleted", c.Name)
		}
		return tx.DeleteCategory(ctx, actor.FamilyID, id)
	})
	if err != nil {
		return core.Classify(op, err)
	}

	s.catalog.Invalidate(actor.FamilyID)
	s.changed(ctx, actor, watch.Categories, id, log.OpDelete)
	return nil
}

func (s *PlanningService) Budgets(ctx context.Context, actor core.Actor) ([]core.Budget, error) {
	const op = "planning.budgets"
	if err := actor.RequireFamily(op); err != nil {
		return nil, err
	}
	budgets, err := s.store.ListBudgets(ctx, actor.FamilyID)
	return budgets, core.Classify(op, err)
}

// AddBudget stores a monthly budget. The month label is normalized to its
// canonical "January 2006" form.
func (s *PlanningService) AddBudget(ctx context.Context, actor core.Actor, b core.Budget) (core.Budget, error) {
	const op = "planning.add_budget"
	if err := actor.RequireFamily(op); err != nil {
		return core.Budget{}, err
	}
	month, err := core.CanonicalMonthLabel(b.Month)
	if err != nil {
		return core.Budget{}, err
	}
	b.ID = core.NewID()
	b.FamilyID = actor.FamilyID
	b.Category = strings.TrimSpace(b.Category)
	b.Amount = core.RoundMoney(b.Amount)
	b.Month = month
	b.CreatedAt = s.now().UTC()
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	err = s.store.Atomic(ctx, func(tx ledger.Tx) error {
		return tx.InsertBudget(ctx, b)
	})
	if err != nil {
		return core.Budget{}, core.Classify(op, err)
	}
	s.changed(ctx, actor, watch.Budgets, b.ID, log.OpCreate)
	return b, nil
}

func (s *PlanningService) Goals(ctx context.Context, actor core.Actor) ([]core.Goal, error) {
	const op = "planning.goals"
	if err := actor.RequireFamily(op); err != nil {
		return nil, err
	}
	goals, err := s.store.ListGoals(ctx, actor.FamilyID)
	return goals, core.Classify(op, err)
}

func (s *PlanningService) AddGoal(ctx context.Context, actor core.Actor, g core.Goal) (core.Goal, error) {
	const op = "planning.add_goal"
	if err := actor.RequireFamily(op); err != nil {
		return core.Goal{}, err
	}
	g.ID = core.NewID()
	g.FamilyID = actor.FamilyID
	g.GoalName = strings.TrimSpace(g.GoalName)
	g.TargetAmount = core.RoundMoney(g.TargetAmount)
	g.CreatedAt = s.now().UTC()
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}

	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		return tx.InsertGoal(ctx, g)
	})
	if err != nil {
		return core.Goal{}, core.Classify(op, err)
	}
	s.changed(ctx, actor, watch.Goals, g.ID, log.OpCreate)
	return g, nil
}

func (s *PlanningService) Events(ctx context.Context, actor core.Actor) ([]core.Event, error) {
	const op = "planning.events"
	if err := actor.RequireFamily(op); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, actor.FamilyID)
	return events, core.Classify(op, err)
}

func (s *PlanningService) AddEvent(ctx context.Context, actor core.Actor, e core.Event) (core.Event, error) {
	const op = "planning.add_event"
	if err := actor.RequireFamily(op); err != nil {
		return core.Event{}, err
	}
	e.ID = core.NewID()
	e.FamilyID = actor.FamilyID
	e.Name = strings.TrimSpace(e.Name)
	e.EstimatedCost = core.RoundMoney(e.EstimatedCost)
	e.CreatedAt = s.now().UTC()
	if err := e.Validate(); err != nil {
		return core.Event{}, err
	}

	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		return tx.InsertEvent(ctx, e)
	})
	if err != nil {
		return core.Event{}, core.Classify(op, err)
	}
	s.changed(ctx, actor, watch.Events, e.ID, log.OpCreate)
	return e, nil
}

// EventCategories lists the spending categories planned for an event.
func (s *PlanningService) EventCategories(ctx context.Context, actor core.Actor, eventID string) ([]core.EventCategory, error) {
	const op = "planning.event_categories"
	if err := actor.RequireFamily(op); err != nil {
		return nil, err
	}
	if _, err := s.store.GetEvent(ctx, actor.FamilyID, eventID); err != nil {
		return nil, core.Classify(op, err)
	}
	cats, err := s.store.ListEventCategories(ctx, actor.FamilyID, eventID)
	return cats, core.Classify(op, err)
}

// AddEventCategory plans a spending category under an existing event.
func (s *PlanningService) AddEventCategory(ctx context.Context, actor core.Actor, c core.EventCategory) (core.EventCategory, error) {
	const op = "planning.add_event_category"
	if err := actor.RequireFamily(op); err != nil {
		return core.EventCategory{}, err
	}
	c.ID = core.NewID()
	c.FamilyID = actor.FamilyID
	c.Name = strings.TrimSpace(c.Name)
	c.EstimatedBudget = core.RoundMoney(c.EstimatedBudget)
	c.CreatedAt = s.now().UTC()
	if err := c.Validate(); err != nil {
		return core.EventCategory{}, err
	}

	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		if _, err := tx.GetEvent(ctx, c.FamilyID, c.EventID); err != nil {
			return err
		}
		return tx.InsertEventCategory(ctx, c)
	})
	if err != nil {
		return core.EventCategory{}, core.Classify(op, err)
	}
	s.changed(ctx, actor, watch.EventCategories, c.EventID, log.OpCreate)
	return c, nil
}

func (s *PlanningService) changed(ctx context.Context, actor core.Actor, coll watch.Collection, key, op string) {
	slog.InfoContext(ctx, "Planning document changed",
		log.FieldFamilyID, actor.FamilyID,
		log.FieldUID, actor.UID,
		"collection", coll,
		"key", key,
		log.FieldOperation, op)
	if s.hub != nil {
		s.hub.Publish(watch.Topic{FamilyID: actor.FamilyID, Collection: coll, Key: key})
	}
	publishEvent(ctx, s.publisher, amqp.NewPlanningEvent(actor.FamilyID, string(coll), key, s.origin))
}
