package store

import (
	"sync"

	"github.com/centraunit/servicex/internal/shallow"
)

type subscriber[S any] struct {
	id uint64
	fn func(S)
}

// Cell holds a single state value and notifies subscribers when it
// changes. A Set that is shallow-equal to the current value is dropped.
//
// Notifications are delivered in Set order. A Set issued from inside a
// subscriber updates the value immediately and is delivered after the
// current round finishes.
type Cell[S any] struct {
	mu       sync.Mutex
	value    S
	subs     []subscriber[S]
	nextID   uint64
	pending  []S
	emitting bool
}

// NewCell returns a cell holding initial.
func NewCell[S any](initial S) *Cell[S] {
	return &Cell[S]{value: initial}
}

// Get returns the current value.
func (c *Cell[S]) Get() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores next and notifies subscribers unless it is shallow-equal
// to the current value.
func (c *Cell[S]) Set(next S) {
	if c.update(next) {
		c.flush()
	}
}

// Subscribe registers fn for future changes and returns a function that
// removes it. Calling the returned function more than once is safe.
func (c *Cell[S]) Subscribe(fn func(S)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber[S]{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Cell[S]) subscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Cell[S]) clear() {
	c.mu.Lock()
	c.subs = nil
	c.pending = nil
	c.mu.Unlock()
}

// update swaps the value and queues a notification. It reports whether
// anything was queued.
func (c *Cell[S]) update(next S) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if shallow.Equal(c.value, next) {
		return false
	}
	c.value = next
	c.pending = append(c.pending, next)
	return true
}

func (c *Cell[S]) flush() {
	c.mu.Lock()
	if c.emitting {
		c.mu.Unlock()
		return
	}
	c.emitting = true
	for len(c.pending) > 0 {
		v := c.pending[0]
		c.pending = c.pending[1:]
		subs := append([]subscriber[S](nil), c.subs...)
		c.mu.Unlock()

		for _, sub := range subs {
			sub.fn(v)
		}

		c.mu.Lock()
	}
	c.emitting = false
	c.mu.Unlock()
}
