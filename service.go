package servicex

import (
	"sync"

	"github.com/centraunit/servicex/store"
)

type storeStatus int

const (
	storeUninitialized storeStatus = iota
	storeBuilding
	storeReady
	storeDestroyed
)

// Service owns exactly one store. Embed *Service[S] in a struct that
// also holds the service's collaborators:
//
//	type Car struct {
//		*servicex.Service[CarState]
//		Engine *Engine
//	}
//
// The store is built once, by OnBoot, after the factory returns.
type Service[S any] struct {
	def  *store.Definition[S]
	opts []store.Option

	mu     sync.Mutex
	status storeStatus
	store  *store.Store[S]
}

// NewService returns a service whose store is built from def on boot.
func NewService[S any](def *store.Definition[S], opts ...store.Option) *Service[S] {
	return &Service[S]{def: def, opts: opts}
}

// OnBoot builds the store with the container's logger, sink and context.
func (s *Service[S]) OnBoot(ctx *ContainerContext) error {
	opts := []store.Option{store.WithContext(ctx)}
	if c := ctx.Container(); c != nil {
		opts = append(opts, store.WithLogger(c.logger), store.WithSink(c.sink))
	}
	return s.Init(opts...)
}

// OnShutdown destroys the store.
func (s *Service[S]) OnShutdown(*ContainerContext) error {
	s.Destroy()
	return nil
}

// Init builds the store outside a container. Options given here are
// applied after the ones passed to NewService. A second call is a no-op.
func (s *Service[S]) Init(opts ...store.Option) error {
	s.mu.Lock()
	switch s.status {
	case storeReady:
		s.mu.Unlock()
		return nil
	case storeBuilding:
		s.mu.Unlock()
		return &StoreLoopError{Type: s.Name()}
	case storeDestroyed:
		s.mu.Unlock()
		return &DestroyedError{Name: s.Name()}
	}
	s.status = storeBuilding
	s.mu.Unlock()

	st, err := store.NewStore(s.def, append(append([]store.Option(nil), s.opts...), opts...)...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == storeDestroyed {
		if st != nil {
			st.Destroy()
		}
		return &DestroyedError{Name: s.Name()}
	}
	if err != nil {
		s.status = storeUninitialized
		return err
	}
	s.store = st
	s.status = storeReady
	return nil
}

// Store returns the live store.
//
// Returns StoreNotInitializedError before OnBoot, StoreLoopError while
// the store is being built and DestroyedError after Destroy.
func (s *Service[S]) Store() (*store.Store[S], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case storeUninitialized:
		return nil, &StoreNotInitializedError{Type: s.Name()}
	case storeBuilding:
		return nil, &StoreLoopError{Type: s.Name()}
	case storeDestroyed:
		return nil, &DestroyedError{Name: s.Name()}
	}
	return s.store, nil
}

func (s *Service[S]) mustStore() *store.Store[S] {
	st, err := s.Store()
	if err != nil {
		panic(err)
	}
	return st
}

// Name returns the store name of the definition.
func (s *Service[S]) Name() string {
	return s.def.Name()
}

// State returns the current state. It panics with the Store error when
// the store is unavailable.
func (s *Service[S]) State() S {
	return s.mustStore().State()
}

// Subscribe calls fn with every new state. It panics with the Store
// error when the store is unavailable.
func (s *Service[S]) Subscribe(fn func(S)) func() {
	return s.mustStore().Subscribe(fn)
}

// Actions returns the trigger of every action. It panics with the Store
// error when the store is unavailable. Triggers kept past Destroy do
// nothing.
func (s *Service[S]) Actions() store.TriggerActions {
	return s.mustStore().Actions()
}

// Dispatch invokes action; it implements store.ActionTarget.
func (s *Service[S]) Dispatch(action string, params any) error {
	st, err := s.Store()
	if err != nil {
		return err
	}
	return st.Dispatch(action, params)
}

// To addresses action on this service from an effect.
func (s *Service[S]) To(action string, params any) store.EffectAction {
	return store.To(s, action, params)
}

// Sleep pauses the store's effects.
func (s *Service[S]) Sleep() error {
	st, err := s.Store()
	if err != nil {
		return err
	}
	st.Sleep()
	return nil
}

// Awake restarts the store's effects.
func (s *Service[S]) Awake() error {
	st, err := s.Store()
	if err != nil {
		return err
	}
	st.Awake()
	return nil
}

// Destroy tears down the store. Later access fails with DestroyedError.
func (s *Service[S]) Destroy() {
	s.mu.Lock()
	st := s.store
	s.store = nil
	s.status = storeDestroyed
	s.mu.Unlock()

	if st != nil {
		st.Destroy()
	}
}

// Destroyed reports whether Destroy was called.
func (s *Service[S]) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == storeDestroyed
}
