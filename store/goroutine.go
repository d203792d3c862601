package store

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// goid returns the current goroutine ID.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	idField := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(idField, 10, 64)
	return id
}

// emitGate lets any number of emits run while no Sleep or Destroy is in
// progress. A goroutine that is inside an emit of the store (a subscriber
// reacting to the emitted action) may Sleep or Destroy it without
// waiting on itself.
type emitGate struct {
	rw sync.RWMutex

	mu       sync.Mutex
	emitters map[int64]int
}

// enter does not take the read lock again for a nested emit on the same
// goroutine, since a waiting close would block it.
func (g *emitGate) enter() func() {
	id := goid()
	g.mu.Lock()
	nested := g.emitters[id] > 0
	g.mu.Unlock()
	if !nested {
		g.rw.RLock()
	}

	g.mu.Lock()
	if g.emitters == nil {
		g.emitters = make(map[int64]int)
	}
	g.emitters[id]++
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		g.emitters[id]--
		if g.emitters[id] == 0 {
			delete(g.emitters, id)
		}
		g.mu.Unlock()
		if !nested {
			g.rw.RUnlock()
		}
	}
}

func (g *emitGate) close() func() {
	id := goid()
	g.mu.Lock()
	inside := g.emitters[id] > 0
	g.mu.Unlock()
	if inside {
		return func() {}
	}
	g.rw.Lock()
	return g.rw.Unlock
}
