// Package watch replaces snapshot listeners with explicit subscriptions.
//
// A Hub fans change notifications out to Subscriptions. Scopes own
// subscriptions and child scopes so a parent tears down everything it
// created. Watch turns a subscription into a stream of recomputed values.
package watch

import "sync"

type Collection string

const (
	Accounts        Collection = "accounts"
	Transactions    Collection = "transactions"
	Categories      Collection = "categories"
	Budgets         Collection = "budgets"
	Goals           Collection = "goals"
	Events          Collection = "events"
	EventCategories Collection = "event_categories"
	Members         Collection = "members"
)

// Topic names a set of documents. An empty field matches any value, so
// Topic{FamilyID: f} selects every change of family f and a change published
// without a Key reaches keyed subscribers of the collection.
type Topic struct {
	FamilyID   string
	Collection Collection
	Key        string
}

func (t Topic) Matches(published Topic) bool {
	return wildcard(t.FamilyID, published.FamilyID) &&
		wildcard(string(t.Collection), string(published.Collection)) &&
		wildcard(t.Key, published.Key)
}

func wildcard(a, b string) bool {
	return a == "" || b == "" || a == b
}

// Hub delivers notifications to matching subscriptions. Delivery never
// blocks: a subscriber that has not consumed its pending notification
// receives no second one.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(topic Topic) *Subscription {
	s := &Subscription{topic: topic, c: make(chan struct{}, 1), hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.closed = true
		close(s.c)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish notifies every subscription whose topic matches and returns how
// many were notified or already had a notification pending.
func (h *Hub) Publish(topic Topic) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for s := range h.subs {
		if !s.topic.Matches(topic) {
			continue
		}
		select {
		case s.c <- struct{}{}:
		default:
		}
		n++
	}
	return n
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription; later subscriptions start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		s.closeLocked()
	}
}

// Subscription receives a value on C whenever a matching topic is
// published. C is closed when the subscription ends.
type Subscription struct {
	topic  Topic
	c      chan struct{}
	hub    *Hub
	closed bool
}

func (s *Subscription) C() <-chan struct{} { return s.c }

func (s *Subscription) Topic() Topic { return s.topic }

// Close is idempotent.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	delete(s.hub.subs, s)
	close(s.c)
}
