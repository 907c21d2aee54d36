package watch

import "sync"

// Scope owns resources and child scopes. Closing a scope closes its
// children first, then releases its own resources in reverse order of
// registration.
type Scope struct {
	mu       sync.Mutex
	parent   *Scope
	children map[*Scope]struct{}
	closers  []func()
	closed   bool
	done     chan struct{}
}

func NewScope() *Scope {
	return &Scope{children: make(map[*Scope]struct{}), done: make(chan struct{})}
}

// Child returns a scope closed together with s. The child of a closed
// scope starts closed.
func (s *Scope) Child() *Scope {
	c := NewScope()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.Close()
		return c
	}
	c.parent = s
	s.children[c] = struct{}{}
	s.mu.Unlock()
	return c
}

// Add registers closer to run when the scope closes. On a closed scope it
// runs immediately.
func (s *Scope) Add(closer func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		closer()
		return
	}
	s.closers = append(s.closers, closer)
	s.mu.Unlock()
}

// Subscribe subscribes to topic for the lifetime of the scope.
func (s *Scope) Subscribe(h *Hub, topic Topic) *Subscription {
	sub := h.Subscribe(topic)
	s.Add(sub.Close)
	return sub
}

func (s *Scope) Done() <-chan struct{} { return s.done }

func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Children reports the number of open child scopes.
func (s *Scope) Children() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// Close is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	children := make([]*Scope, 0, len(s.children))
	for c := range s.children {
		children = append(children, c)
	}
	s.children = nil
	closers := s.closers
	s.closers = nil
	parent := s.parent
	s.mu.Unlock()

	for _, c := range children {
		c.Close()
	}
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	if parent != nil {
		parent.mu.Lock()
		delete(parent.children, s)
		parent.mu.Unlock()
	}
	close(s.done)
}
