package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kanakku/internal/amqp"
	"kanakku/internal/core"
	"kanakku/internal/family"
	"kanakku/internal/storage/memory"
	"kanakku/internal/watch"
)

const wait = 2 * time.Second

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// recordingPublisher keeps every published event; err makes Publish fail.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []*amqp.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.LedgerEvent(nil), p.events...)
}

type env struct {
	ctx      context.Context
	store    *memory.Store
	hub      *watch.Hub
	pub      *recordingPublisher
	planPub  *recordingPublisher
	families *family.Service
	ledger   *LedgerService
	planning *PlanningService
	reports  *ReportService
	actor    core.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	hub := watch.NewHub()
	t.Cleanup(hub.Close)
	pub, planPub := &recordingPublisher{}, &recordingPublisher{}

	e := &env{
		ctx:      context.Background(),
		store:    store,
		hub:      hub,
		pub:      pub,
		planPub:  planPub,
		families: family.NewService(store),
		ledger:   NewLedgerService(store, hub, pub, "test-instance"),
		planning: NewPlanningService(store, hub, NewCategoryCatalog(store, time.Minute), planPub, "test-instance"),
		reports:  NewReportService(store, hub, time.UTC),
	}
	e.actor = e.onboard(t, "alice")
	return e
}

// onboard signs uid in and makes them the owner of a new family.
func (e *env) onboard(t *testing.T, uid string) core.Actor {
	t.Helper()
	if _, err := e.families.SignIn(e.ctx, uid, uid+"@example.com", ""); err != nil {
		t.Fatalf("sign in %s: %v", uid, err)
	}
	_, user, err := e.families.CreateFamily(e.ctx, uid)
	if err != nil {
		t.Fatalf("create family for %s: %v", uid, err)
	}
	return user.Actor()
}

func (e *env) category(t *testing.T, name string) core.Category {
	t.Helper()
	cats, err := e.store.ListCategories(e.ctx, e.actor.FamilyID, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cats {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("category %q not seeded", name)
	return core.Category{}
}

func (e *env) account(t *testing.T, name string) core.Account {
	t.Helper()
	acc, err := e.ledger.OpenAccount(e.ctx, e.actor, name, core.Checking)
	if err != nil {
		t.Fatalf("open account %s: %v", name, err)
	}
	return acc
}

func (e *env) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acc, err := e.store.GetAccount(e.ctx, e.actor.FamilyID, id)
	if err != nil {
		t.Fatal(err)
	}
	return acc.Balance
}

func pending(sub *watch.Subscription) bool {
	select {
	case <-sub.C():
		return true
	default:
		return false
	}
}

func wantKind(t *testing.T, err error, kind *core.Error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("got %v, want %s", err, kind.Kind)
	}
}
