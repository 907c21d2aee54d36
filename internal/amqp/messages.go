package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"kanakku/internal/core"
)

// EventType doubles as the routing key on the topic exchange.
type EventType string

const (
	TransactionCreated EventType = "ledger.transaction.created"
	TransactionUpdated EventType = "ledger.transaction.updated"
	TransactionDeleted EventType = "ledger.transaction.deleted"
	AccountCreated     EventType = "ledger.account.created"
	// PlanningChanged covers categories, budgets, goals and events. It only
	// refreshes watchers; nothing is exported for it.
	PlanningChanged EventType = "ledger.planning.changed"
)

// LedgerEvent announces a committed ledger change. It carries identifiers
// only; consumers read the current document from the store.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	FamilyID      string    `json:"familyId"`
	TransactionID string    `json:"transactionId,omitempty"`
	AccountID     string    `json:"accountId,omitempty"`
	Collection    string    `json:"collection,omitempty"`
	Key           string    `json:"key,omitempty"`
	Version       int64     `json:"version"`
	Origin        string    `json:"origin,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent describes a change to t. For deletions t is the
// document as it was before removal.
func NewTransactionEvent(typ EventType, t core.Transaction, origin string) *LedgerEvent {
	return &LedgerEvent{
		Type:          typ,
		FamilyID:      t.FamilyID,
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Version:       t.Version,
		Origin:        origin,
		Timestamp:     time.Now(),
	}
}

func NewAccountEvent(a core.Account, origin string) *LedgerEvent {
	return &LedgerEvent{
		Type:      AccountCreated,
		FamilyID:  a.FamilyID,
		AccountID: a.ID,
		Version:   a.Version,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// NewPlanningEvent announces a change to a planning collection of a family;
// key narrows it to one document or parent, when set.
func NewPlanningEvent(familyID, collection, key, origin string) *LedgerEvent {
	return &LedgerEvent{
		Type:       PlanningChanged,
		FamilyID:   familyID,
		Collection: collection,
		Key:        key,
		Origin:     origin,
		Timestamp:  time.Now(),
	}
}

func (e *LedgerEvent) RoutingKey() string {
	return string(e.Type)
}

func (e *LedgerEvent) Validate() error {
	if e.FamilyID == "" {
		return fmt.Errorf("event %q without family", e.Type)
	}
	switch e.Type {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
		if e.TransactionID == "" {
			return fmt.Errorf("event %q without transaction id", e.Type)
		}
	case AccountCreated:
		if e.AccountID == "" {
			return fmt.Errorf("event %q without account id", e.Type)
		}
	case PlanningChanged:
		if e.Collection == "" {
			return fmt.Errorf("event %q without collection", e.Type)
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}
