package store

import (
	"context"
	"sync"

	"github.com/centraunit/servicex/internal/mailbox"
)

// Signal is the stream behind a defined action. Every value passed to
// Next is delivered to each current subscriber in order.
type Signal struct {
	name   string
	mu     sync.Mutex
	subs   map[uint64]*mailbox.Mailbox
	nextID uint64
	closed bool
}

func newSignal(name string) *Signal {
	return &Signal{name: name, subs: make(map[uint64]*mailbox.Mailbox)}
}

func (s *Signal) Name() string {
	return s.name
}

// Next publishes v. It returns false once the signal is closed.
func (s *Signal) Next(v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for _, mb := range s.subs {
		mb.Push(v)
	}
	return true
}

// Subscribe returns a channel of values published after the call. The
// subscription ends and the channel closes when ctx is done or the
// signal is closed.
func (s *Signal) Subscribe(ctx context.Context) <-chan any {
	mb := mailbox.New()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		mb.Close()
		return mb.Forward(ctx)
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = mb
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		mb.Close()
	}()
	return mb.Forward(ctx)
}

func (s *Signal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, mb := range s.subs {
		mb.Close()
		delete(s.subs, id)
	}
}
