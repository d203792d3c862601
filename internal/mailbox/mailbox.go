// Package mailbox provides an unbounded FIFO with per-consumer channel
// delivery.
package mailbox

import (
	"context"
	"sync"
)

// Mailbox buffers pushed values without blocking the producer. Values
// stay queued until a consumer actually takes them.
type Mailbox struct {
	mu     sync.Mutex
	queue  []any
	closed bool
	ready  chan struct{}
	done   chan struct{}

	// held by the goroutine behind a Forward channel for its whole life
	consumer sync.Mutex
}

func New() *Mailbox {
	return &Mailbox{ready: make(chan struct{}), done: make(chan struct{})}
}

// Push enqueues v. It returns false once the mailbox is closed.
func (m *Mailbox) Push(v any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.queue = append(m.queue, v)
	m.wake()
	return true
}

// Requeue puts v back at the head of the queue.
func (m *Mailbox) Requeue(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.queue = append([]any{v}, m.queue...)
	m.wake()
}

// Next removes and returns the oldest value, waiting for one if the
// queue is empty. ok is false when ctx is done or the mailbox is closed.
func (m *Mailbox) Next(ctx context.Context) (v any, ok bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, false
		}
		if len(m.queue) > 0 {
			v = m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return v, true
		}
		ready := m.ready
		m.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Forward returns a channel that delivers queued values until ctx is
// done or the mailbox is closed, then closes. A value taken from the
// queue but not delivered when ctx ends is put back, so the next
// Forward sees it first. Forward channels of one mailbox never deliver
// concurrently; a new one starts once the previous one has closed.
func (m *Mailbox) Forward(ctx context.Context) <-chan any {
	out := make(chan any)
	go func() {
		defer close(out)
		m.consumer.Lock()
		defer m.consumer.Unlock()

		for {
			v, ok := m.Next(ctx)
			if !ok {
				return
			}
			if ctx.Err() != nil {
				m.Requeue(v)
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				m.Requeue(v)
				return
			case <-m.done:
				return
			}
		}
	}()
	return out
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close drops everything still queued and ends every Next and Forward.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	close(m.done)
	m.wake()
}

// wake must be called with m.mu held.
func (m *Mailbox) wake() {
	close(m.ready)
	m.ready = make(chan struct{})
}
