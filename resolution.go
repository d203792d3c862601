package servicex

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// resolutionState is the chain of types currently under construction on
// one goroutine. rootID keys the bare Request scope for the whole chain.
type resolutionState struct {
	mu         sync.Mutex
	chain      map[reflect.Type]bool
	order      []reflect.Type
	rootID     any
	rootMinted bool
	// registered under a minted rootID; dropped when the chain ends
	forget []instanceKey
}

func newResolutionState() interface{} {
	return &resolutionState{chain: make(map[reflect.Type]bool, 8)}
}

// goid returns the current goroutine ID.
// Nested resolutions made by a factory run on the caller's goroutine, so
// the ID identifies one resolution chain.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	idField := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(idField, 10, 64)
	return id
}

func (c *Container) state() (*resolutionState, bool) {
	state, ok := c.resolutionState.Load(goid())
	if !ok {
		return nil, false
	}
	return state.(*resolutionState), true
}

// activeRoot returns the request key of the chain running on this
// goroutine, if any, and whether it was minted for the chain.
func (c *Container) activeRoot() (root any, minted bool, ok bool) {
	rs, found := c.state()
	if !found {
		return nil, false, false
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.order) == 0 {
		return nil, false, false
	}
	return rs.rootID, rs.rootMinted, true
}

// forgetAfterChain drops key from the instance table once the chain on
// this goroutine ends.
func (c *Container) forgetAfterChain(key instanceKey) {
	rs, ok := c.state()
	if !ok {
		return
	}
	rs.mu.Lock()
	rs.forget = append(rs.forget, key)
	rs.mu.Unlock()
}

func (c *Container) startResolving(serviceType reflect.Type) error {
	key := goid()
	state, loaded := c.resolutionState.Load(key)
	if !loaded {
		state, _ = c.resolutionState.LoadOrStore(key, c.statePool.Get())
	}
	rs := state.(*resolutionState)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.chain[serviceType] {
		chain := make([]string, len(rs.order))
		for i, t := range rs.order {
			chain[i] = t.String()
		}
		return &CircularDependencyError{Type: serviceType.String(), Chain: chain}
	}
	if len(rs.order) == 0 {
		if id := c.ctx.Value("request_id"); id != nil {
			rs.rootID, rs.rootMinted = id, false
		} else {
			rs.rootID, rs.rootMinted = uuid.NewString(), true
		}
	}
	rs.chain[serviceType] = true
	rs.order = append(rs.order, serviceType)
	return nil
}

func (c *Container) finishResolving(serviceType reflect.Type) {
	key := goid()
	state, ok := c.resolutionState.Load(key)
	if !ok {
		return
	}
	rs := state.(*resolutionState)

	rs.mu.Lock()
	delete(rs.chain, serviceType)
	if n := len(rs.order); n > 0 && rs.order[n-1] == serviceType {
		rs.order = rs.order[:n-1]
	}
	isEmpty := len(rs.order) == 0
	var forget []instanceKey
	if isEmpty {
		forget = rs.forget
		rs.forget = nil
		rs.rootID = nil
		rs.rootMinted = false
		clear(rs.chain)
	}
	rs.mu.Unlock()

	if !isEmpty {
		return
	}
	c.resolutionState.Delete(key)
	c.statePool.Put(rs)

	if len(forget) > 0 {
		c.mu.Lock()
		for _, k := range forget {
			delete(c.instances, k)
		}
		c.mu.Unlock()
	}
}
