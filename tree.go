package servicex

import (
	"reflect"
	"sync"
)

// NodeID addresses a node of a Tree. The zero ID is never assigned.
type NodeID uint64

type treeNode struct {
	parent    NodeID
	children  []NodeID
	instances map[reflect.Type]Lifecycle
	watchers  map[uint64]func()
}

// Tree is a forest of scope nodes mirroring a UI tree. Nodes live in a
// flat table and link to each other by ID; removing a node is a table
// delete.
//
// A change at node X (a child linked or unlinked, an instance
// registered, X destroyed) notifies the watchers of X's parent only.
type Tree struct {
	container *Container

	mu        sync.Mutex
	nodes     map[NodeID]*treeNode
	lastID    NodeID
	lastWatch uint64
}

func NewTree(c *Container) *Tree {
	return &Tree{
		container: c,
		nodes:     make(map[NodeID]*treeNode),
	}
}

func (t *Tree) Container() *Container {
	return t.container
}

// NewRoot adds a node without a parent.
func (t *Tree) NewRoot() NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.newNode()
}

// NewChild adds a node under parent.
func (t *Tree) NewChild(parent NodeID) (NodeID, error) {
	t.mu.Lock()
	p, ok := t.nodes[parent]
	if !ok {
		t.mu.Unlock()
		return 0, &NodeNotFoundError{ID: parent}
	}
	id := t.newNode()
	t.nodes[id].parent = parent
	p.children = append(p.children, id)
	notify := t.watchersOf(parent)
	t.mu.Unlock()

	run(notify)
	return id, nil
}

func (t *Tree) newNode() NodeID {
	t.lastID++
	t.nodes[t.lastID] = &treeNode{
		instances: make(map[reflect.Type]Lifecycle),
		watchers:  make(map[uint64]func()),
	}
	return t.lastID
}

// AddChild links an existing parentless node under parent.
func (t *Tree) AddChild(parent, child NodeID) error {
	t.mu.Lock()
	p, ok := t.nodes[parent]
	if !ok {
		t.mu.Unlock()
		return &NodeNotFoundError{ID: parent}
	}
	c, ok := t.nodes[child]
	if !ok {
		t.mu.Unlock()
		return &NodeNotFoundError{ID: child}
	}
	if c.parent != 0 {
		t.mu.Unlock()
		return &InvalidTreeError{Parent: parent, Child: child, Reason: "child already has a parent"}
	}
	for id := parent; id != 0; id = t.nodes[id].parent {
		if id == child {
			t.mu.Unlock()
			return &InvalidTreeError{Parent: parent, Child: child, Reason: "link would create a cycle"}
		}
	}
	c.parent = parent
	p.children = append(p.children, child)
	notify := t.watchersOf(parent)
	t.mu.Unlock()

	run(notify)
	return nil
}

// RemoveChild unlinks child from parent; child becomes a root.
func (t *Tree) RemoveChild(parent, child NodeID) error {
	t.mu.Lock()
	p, ok := t.nodes[parent]
	if !ok {
		t.mu.Unlock()
		return &NodeNotFoundError{ID: parent}
	}
	c, ok := t.nodes[child]
	if !ok || c.parent != parent {
		t.mu.Unlock()
		return &NodeNotFoundError{ID: child}
	}
	c.parent = 0
	p.children = without(p.children, child)
	notify := t.watchersOf(parent)
	t.mu.Unlock()

	run(notify)
	return nil
}

// Destroy detaches id from its parent, unlinks its children (they become
// roots, they are not destroyed) and drops the node with its registered
// instances and watchers. Instances are not shut down.
func (t *Tree) Destroy(id NodeID) error {
	t.mu.Lock()
	n, ok := t.nodes[id]
	if !ok {
		t.mu.Unlock()
		return &NodeNotFoundError{ID: id}
	}
	var notify []func()
	if p, ok := t.nodes[n.parent]; ok {
		p.children = without(p.children, id)
		notify = t.watchersOf(n.parent)
	}
	for _, child := range n.children {
		if c, ok := t.nodes[child]; ok {
			c.parent = 0
		}
	}
	delete(t.nodes, id)
	t.mu.Unlock()

	run(notify)
	return nil
}

func (t *Tree) Exists(id NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.nodes[id]
	return ok
}

// Parent returns the parent of id; ok is false for roots and unknown nodes.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok || n.parent == 0 {
		return 0, false
	}
	return n.parent, true
}

func (t *Tree) Children(id NodeID) []NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return append([]NodeID(nil), n.children...)
}

// Watch calls fn whenever a direct child of id changes. The returned
// function removes the watcher.
func (t *Tree) Watch(id NodeID, fn func()) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	t.lastWatch++
	wid := t.lastWatch
	n.watchers[wid] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if n, ok := t.nodes[id]; ok {
			delete(n.watchers, wid)
		}
	}, nil
}

// watchersOf must be called with t.mu held.
func (t *Tree) watchersOf(id NodeID) []func() {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	fns := make([]func(), 0, len(n.watchers))
	for _, fn := range n.watchers {
		fns = append(fns, fn)
	}
	return fns
}

func (t *Tree) register(id NodeID, serviceType reflect.Type, instance Lifecycle) error {
	t.mu.Lock()
	n, ok := t.nodes[id]
	if !ok {
		t.mu.Unlock()
		return &NodeNotFoundError{ID: id}
	}
	n.instances[serviceType] = instance
	notify := t.watchersOf(n.parent)
	t.mu.Unlock()

	run(notify)
	return nil
}

// lookup walks from id towards the root, or checks id alone when
// inherit is false.
func (t *Tree) lookup(id NodeID, serviceType reflect.Type, inherit bool) (Lifecycle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	for n != nil {
		if inst, ok := n.instances[serviceType]; ok && alive(inst) {
			return inst, nil
		}
		if !inherit {
			break
		}
		n = t.nodes[n.parent]
	}
	return nil, nil
}

// descendants returns every node below id, breadth first.
func (t *Tree) descendants(id NodeID) []NodeID {
	var out []NodeID
	queue := append([]NodeID(nil), t.nodes[id].children...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		n, ok := t.nodes[next]
		if !ok {
			continue
		}
		out = append(out, next)
		queue = append(queue, n.children...)
	}
	return out
}

// InheritOption configures ResolveWithInheritance.
type InheritOption func(*inheritOptions)

type inheritOptions struct {
	inherit bool
	scope   ScopeToken
}

// WithInherit controls whether ancestors are searched. Defaults to true.
func WithInherit(inherit bool) InheritOption {
	return func(o *inheritOptions) {
		o.inherit = inherit
	}
}

// WithScope sets the token used when a fresh instance is needed.
// Defaults to Transient.
func WithScope(token ScopeToken) InheritOption {
	return func(o *inheritOptions) {
		o.scope = token
	}
}

// ResolveWithInheritance returns the instance of T registered on node or,
// with inheritance, on its nearest ancestor. Otherwise it resolves one
// from the container and registers it on node, unless the scope is
// Singleton.
func ResolveWithInheritance[T Lifecycle](t *Tree, node NodeID, opts ...InheritOption) (T, error) {
	var zero T
	o := inheritOptions{inherit: true, scope: Transient}
	for _, opt := range opts {
		opt(&o)
	}
	serviceType := typeOf[T]()

	found, err := t.lookup(node, serviceType, o.inherit)
	if err != nil {
		return zero, err
	}
	if found != nil {
		return typed[T](found)
	}

	instance, err := ResolveInScope[T](t.container, o.scope)
	if err != nil {
		return zero, err
	}
	if o.scope.IsSingleton() {
		return instance, nil
	}
	if err := t.register(node, serviceType, instance); err != nil {
		return zero, err
	}
	return instance, nil
}

// Register puts instance on node as its T.
func Register[T Lifecycle](t *Tree, node NodeID, instance T) error {
	return t.register(node, typeOf[T](), instance)
}

// Lookup finds T on node or its ancestors without resolving anything.
func Lookup[T Lifecycle](t *Tree, node NodeID) (T, bool) {
	var zero T
	found, err := t.lookup(node, typeOf[T](), true)
	if err != nil || found == nil {
		return zero, false
	}
	result, err := typed[T](found)
	return result, err == nil
}

func without(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
