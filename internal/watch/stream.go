package watch

import (
	"context"
)

// Result is one recomputation. Seq starts at 1 and grows with every result.
type Result[T any] struct {
	Value T
	Err   error
	Seq   uint64
}

// Stream carries the latest Result. A reader that falls behind only ever
// sees the most recent value.
type Stream[T any] struct {
	c     chan Result[T]
	scope *Scope
}

func (s *Stream[T]) C() <-chan Result[T] { return s.c }

// Close ends the stream and everything its scope owns.
func (s *Stream[T]) Close() { s.scope.Close() }

func (s *Stream[T]) Done() <-chan struct{} { return s.scope.Done() }

// Watch runs compute once immediately and again after every notification on
// topic. The stream lives in a child of parent and ends when ctx is done,
// the stream is closed or parent is closed. C is closed at the end.
func Watch[T any](ctx context.Context, parent *Scope, hub *Hub, topic Topic, compute func(context.Context) (T, error)) *Stream[T] {
	scope := parent.Child()
	sub := scope.Subscribe(hub, topic)
	st := &Stream[T]{c: make(chan Result[T], 1), scope: scope}

	go func() {
		defer close(st.c)
		var seq uint64
		emit := func() {
			v, err := compute(ctx)
			seq++
			select {
			case <-st.c:
			default:
			}
			st.c <- Result[T]{Value: v, Err: err, Seq: seq}
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				scope.Close()
				return
			case <-scope.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				if ctx.Err() != nil || scope.Closed() {
					continue
				}
				emit()
			}
		}
	}()
	return st
}

// Cascade rebuilds dependent subscriptions on every result of source: the
// previous child scope is closed before build runs with a fresh one. Failed
// results close the children without rebuilding.
func Cascade[P any](scope *Scope, source *Stream[P], build func(child *Scope, value P)) {
	go func() {
		var child *Scope
		for {
			select {
			case <-scope.Done():
				return
			case r, ok := <-source.C():
				if !ok {
					if child != nil {
						child.Close()
					}
					return
				}
				if child != nil {
					child.Close()
					child = nil
				}
				if r.Err != nil {
					continue
				}
				child = scope.Child()
				build(child, r.Value)
			}
		}
	}()
}
