package services

import (
	"context"
	"log/slog"

	"kanakku/internal/amqp"
	"kanakku/internal/core"
	"kanakku/internal/ledger"
	"kanakku/internal/log"
	"kanakku/internal/watch"
)

// Publisher announces committed ledger changes to other processes.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService orchestrates ledger writes: the mutator commits, then the
// in-process hub and the AMQP exchange are told about the change.
type LedgerService struct {
	mutator   *ledger.Mutator
	store     ledger.Store
	hub       *watch.Hub
	publisher Publisher
	origin    string
}

// NewLedgerService wires the mutator to its notifiers. hub and publisher may
// be nil; origin tags published events so an instance can skip its own.
func NewLedgerService(store ledger.Store, hub *watch.Hub, publisher Publisher, origin string) *LedgerService {
	return &LedgerService{
		mutator:   ledger.NewMutator(store),
		store:     store,
		hub:       hub,
		publisher: publisher,
		origin:    origin,
	}
}

// OpenAccount creates an account with a zero balance.
func (s *LedgerService) OpenAccount(ctx context.Context, actor core.Actor, name string, typ core.AccountType) (core.Account, error) {
	acc, err := s.mutator.OpenAccount(ctx, actor, name, typ)
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account opened",
		log.FieldFamilyID, acc.FamilyID, log.FieldAccountID, acc.ID, log.FieldOperation, log.OpCreate)

	s.notify(watch.Topic{FamilyID: acc.FamilyID, Collection: watch.Accounts, Key: acc.ID})
	s.publish(ctx, amqp.NewAccountEvent(acc, s.origin))
	return acc, nil
}

func (s *LedgerService) Accounts(ctx context.Context, actor core.Actor) ([]core.Account, error) {
	const op = "ledger.accounts"
	if err := actor.RequireFamily(op); err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccounts(ctx, actor.FamilyID)
	return accounts, core.Classify(op, err)
}

func (s *LedgerService) Transaction(ctx context.Context, actor core.Actor, id string) (core.Transaction, error) {
	const op = "ledger.transaction"
	if err := actor.RequireFamily(op); err != nil {
		return core.Transaction{}, err
	}
	tx, err := s.store.GetTransaction(ctx, actor.FamilyID, id)
	return tx, core.Classify(op, err)
}

// Transactions lists the actor's transactions; the filter's FamilyID is
// always replaced by the actor's family.
func (s *LedgerService) Transactions(ctx context.Context, actor core.Actor, filter ledger.TransactionFilter) ([]core.Transaction, error) {
	const op = "ledger.transactions"
	if err := actor.RequireFamily(op); err != nil {
		return nil, err
	}
	filter.FamilyID = actor.FamilyID
	txs, err := s.store.ListTransactions(ctx, filter)
	return txs, core.Classify(op, err)
}

func (s *LedgerService) CreateTransaction(ctx context.Context, actor core.Actor, in ledger.CreateInput) (ledger.Change, error) {
	change, err := s.mutator.Create(ctx, actor, in)
	if err != nil {
		s.logFailure(ctx, "Transaction create failed", actor, "", err)
		return ledger.Change{}, err
	}
	s.committed(ctx, amqp.TransactionCreated, change)
	return change, nil
}

func (s *LedgerService) EditTransaction(ctx context.Context, actor core.Actor, id string, in ledger.EditInput) (ledger.Change, error) {
	change, err := s.mutator.Edit(ctx, actor, id, in)
	if err != nil {
		s.logFailure(ctx, "Transaction edit failed", actor, id, err)
		return ledger.Change{}, err
	}
	s.committed(ctx, amqp.TransactionUpdated, change)
	return change, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, actor core.Actor, id string, expectedVersion int64) (ledger.Change, error) {
	change, err := s.mutator.Delete(ctx, actor, id, expectedVersion)
	if err != nil {
		s.logFailure(ctx, "Transaction delete failed", actor, id, err)
		return ledger.Change{}, err
	}
	s.committed(ctx, amqp.TransactionDeleted, change)
	return change, nil
}

// ReviewTransaction marks a flagged transaction as reviewed by the actor.
func (s *LedgerService) ReviewTransaction(ctx context.Context, actor core.Actor, id string, expectedVersion int64) (ledger.Change, error) {
	change, err := s.mutator.Review(ctx, actor, id, expectedVersion)
	if err != nil {
		s.logFailure(ctx, "Transaction review failed", actor, id, err)
		return ledger.Change{}, err
	}
	s.committed(ctx, amqp.TransactionUpdated, change)
	return change, nil
}

// Reconcile compares every stored balance with the sum of its transactions.
func (s *LedgerService) Reconcile(ctx context.Context, actor core.Actor) (ledger.Report, error) {
	report, err := ledger.ReconcileFamily(ctx, s.store, actor)
	if err != nil {
		return ledger.Report{}, err
	}
	if !report.Consistent() {
		slog.WarnContext(ctx, "Ledger is not consistent",
			log.FieldFamilyID, actor.FamilyID,
			"discrepancies", len(report.Discrepancies),
			"sign_violations", len(report.SignViolations))
	}
	return report, nil
}

// committed runs after a successful commit. Notification failures are
// logged and never change the outcome of the write.
func (s *LedgerService) committed(ctx context.Context, typ amqp.EventType, change ledger.Change) {
	tx := change.Transaction
	slog.InfoContext(ctx, "Ledger change committed",
		log.NewFields().
			WithMutation(tx.FamilyID, tx.ID, tx.AccountID, tx.Version).
			WithOperation(string(typ)).ToSlice()...)

	s.notify(watch.Topic{FamilyID: tx.FamilyID, Collection: watch.Transactions, Key: tx.ID})
	for _, acc := range change.Accounts {
		s.notify(watch.Topic{FamilyID: acc.FamilyID, Collection: watch.Accounts, Key: acc.ID})
	}
	s.publish(ctx, amqp.NewTransactionEvent(typ, tx, s.origin))
}

func (s *LedgerService) notify(topic watch.Topic) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(topic)
}

func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	publishEvent(ctx, s.publisher, ev)
}

// publishEvent is best effort: failures are logged, never returned.
func publishEvent(ctx context.Context, publisher Publisher, ev *amqp.LedgerEvent) {
	if publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping ledger event",
			log.FieldEventType, ev.Type)
		return
	}
	if err := publisher.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, ev.Type,
			log.FieldFamilyID, ev.FamilyID,
			log.FieldTransactionID, ev.TransactionID,
			log.FieldError, err)
	}
}

func (s *LedgerService) logFailure(ctx context.Context, msg string, actor core.Actor, id string, err error) {
	level := slog.LevelWarn
	if core.KindOf(err) == core.KindUnknown {
		level = slog.LevelError
	}
	slog.Log(ctx, level, msg,
		log.FieldUID, actor.UID,
		log.FieldFamilyID, actor.FamilyID,
		log.FieldTransactionID, id,
		log.FieldErrorKind, core.KindOf(err),
		log.FieldError, err)
}

// HubRelay returns an AMQP handler that refreshes local subscriptions for
// ledger changes committed by other instances. Events carrying origin were
// already published to the hub by this instance and are skipped.
func HubRelay(hub *watch.Hub, origin string) amqp.Handler {
	return func(ctx context.Context, ev *amqp.LedgerEvent) error {
		if ev.Origin != "" && ev.Origin == origin {
			return nil
		}
		if ev.Type == amqp.PlanningChanged {
			hub.Publish(watch.Topic{FamilyID: ev.FamilyID, Collection: watch.Collection(ev.Collection), Key: ev.Key})
			slog.DebugContext(ctx, "Relayed remote planning change",
				log.FieldFamilyID, ev.FamilyID, "collection", ev.Collection, "origin", ev.Origin)
			return nil
		}
		if ev.TransactionID != "" {
			hub.Publish(watch.Topic{FamilyID: ev.FamilyID, Collection: watch.Transactions, Key: ev.TransactionID})
		}
		// Edits can move a transaction between accounts, so every account
		// subscription of the family is refreshed.
		hub.Publish(watch.Topic{FamilyID: ev.FamilyID, Collection: watch.Accounts})
		slog.DebugContext(ctx, "Relayed remote ledger event",
			log.FieldEventType, ev.Type, log.FieldFamilyID, ev.FamilyID, "origin", ev.Origin)
		return nil
	}
}
