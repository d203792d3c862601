package servicex

import (
	"reflect"
	"sync"

	"github.com/centraunit/servicex/internal/shallow"
)

// QueryList is a live list of the T instances registered on the
// descendants of a node. It re-derives its items only when one of the
// watched nodes reports a change.
type QueryList[T Lifecycle] struct {
	tree *Tree
	root NodeID

	mu      sync.Mutex
	items   []T
	cancels []func()
	subs    map[uint64]func([]T)
	lastSub uint64
	closed  bool
}

// Query starts a QueryList rooted at node.
func Query[T Lifecycle](t *Tree, node NodeID) (*QueryList[T], error) {
	if !t.Exists(node) {
		return nil, &NodeNotFoundError{ID: node}
	}
	q := &QueryList[T]{tree: t, root: node, subs: make(map[uint64]func([]T))}
	q.refresh()
	return q, nil
}

// Items returns the current instances in breadth-first node order.
func (q *QueryList[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]T(nil), q.items...)
}

// Subscribe calls fn each time the item set changes.
func (q *QueryList[T]) Subscribe(fn func([]T)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lastSub++
	id := q.lastSub
	q.subs[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subs, id)
	}
}

// Close stops watching the tree.
func (q *QueryList[T]) Close() {
	q.mu.Lock()
	cancels := q.cancels
	q.cancels = nil
	q.closed = true
	q.subs = make(map[uint64]func([]T))
	q.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (q *QueryList[T]) refresh() {
	serviceType := typeOf[T]()

	q.tree.mu.Lock()
	if _, ok := q.tree.nodes[q.root]; !ok {
		q.tree.mu.Unlock()
		q.Close()
		return
	}
	watched := append([]NodeID{q.root}, q.tree.descendants(q.root)...)
	var items []T
	for _, id := range watched[1:] {
		inst, ok := q.tree.nodes[id].instances[serviceType]
		if !ok || !alive(inst) {
			continue
		}
		if v, ok := inst.(T); ok {
			items = append(items, v)
		}
	}
	q.tree.mu.Unlock()

	cancels := make([]func(), 0, len(watched))
	for _, id := range watched {
		if cancel, err := q.tree.Watch(id, q.refresh); err == nil {
			cancels = append(cancels, cancel)
		}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		for _, cancel := range cancels {
			cancel()
		}
		return
	}
	old := q.cancels
	q.cancels = cancels
	changed := !sameItems(q.items, items)
	if changed {
		q.items = items
	}
	subs := make([]func([]T), 0, len(q.subs))
	for _, fn := range q.subs {
		subs = append(subs, fn)
	}
	q.mu.Unlock()

	for _, cancel := range old {
		cancel()
	}
	if changed {
		for _, fn := range subs {
			fn(append([]T(nil), items...))
		}
	}
}

func sameItems[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !shallow.SameValue(reflect.ValueOf(&a[i]).Elem(), reflect.ValueOf(&b[i]).Elem()) {
			return false
		}
	}
	return true
}
