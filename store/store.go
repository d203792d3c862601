// Package store implements the per-service reactive store: a state cell,
// the action dispatch loop built from a Definition, and the awake/asleep
// controller for effect bodies.
package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/centraunit/servicex/internal/draft"
	"github.com/centraunit/servicex/internal/mailbox"
)

// Option configures a Store.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	sink        Sink
	ctx         context.Context
	startAsleep bool
}

// WithLogger sets the logger used for warnings and effect failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSink sets the observer every dispatched action is reported to.
func WithSink(sink Sink) Option {
	return func(c *config) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithContext sets the parent context of every effect activation.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithStartAsleep leaves effects asleep after construction.
func WithStartAsleep() Option {
	return func(c *config) {
		c.startAsleep = true
	}
}

// Store is the live dispatch loop of one service.
type Store[S any] struct {
	name   string
	def    *Definition[S]
	cell   *Cell[S]
	logger *slog.Logger
	sink   Sink
	ctx    context.Context

	// serialises reducer application so each sees the previous result
	dispatchMu sync.Mutex

	// emits hold it shared across their generation check and redispatch;
	// Sleep and Destroy take it exclusively
	gate emitGate

	mu        sync.RWMutex
	destroyed bool
	triggers  TriggerActions
	inputs    map[string]*mailbox.Mailbox
	signals   map[string]*Signal
	life      lifecycle
}

// NewStore builds the dispatch loop for def. Unless WithStartAsleep is
// given, effects are awake when NewStore returns.
func NewStore[S any](def *Definition[S], opts ...Option) (*Store[S], error) {
	if def.Err() != nil {
		return nil, def.Err()
	}

	cfg := config{
		logger: slog.Default(),
		sink:   noopSink{},
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store[S]{
		name:    def.name,
		def:     def,
		cell:    NewCell(def.defaultState),
		logger:  cfg.logger.With("store", def.name),
		sink:    cfg.sink,
		ctx:     cfg.ctx,
		inputs:  make(map[string]*mailbox.Mailbox),
		signals: make(map[string]*Signal),
	}

	s.triggers = make(TriggerActions, len(def.entries))
	for name, e := range def.entries {
		switch e.kind {
		case KindEffect:
			s.inputs[name] = mailbox.New()
		case KindDefinedAction:
			s.signals[name] = newSignal(name)
		}
		s.triggers[name] = s.trigger(name)
	}

	if !cfg.startAsleep {
		s.Awake()
	}
	return s, nil
}

func (s *Store[S]) trigger(action string) func(any) {
	return func(params any) {
		if err := s.Dispatch(action, params); err != nil {
			s.logger.Warn("trigger ignored", "action", action, "error", err)
		}
	}
}

// Name returns the name the store was defined with.
func (s *Store[S]) Name() string {
	return s.name
}

// Definition returns the table the store was built from.
func (s *Store[S]) Definition() *Definition[S] {
	return s.def
}

// State returns the current state. It keeps returning the last state
// after Destroy.
func (s *Store[S]) State() S {
	return s.cell.Get()
}

// Subscribe calls fn with every new state until the returned function
// is called or the store is destroyed.
func (s *Store[S]) Subscribe(fn func(S)) func() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return func() {}
	}
	return s.cell.Subscribe(fn)
}

// Actions returns the trigger for every registered action. The map is a
// copy; after Destroy it is empty.
func (s *Store[S]) Actions() TriggerActions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(TriggerActions, len(s.triggers))
	for name, fn := range s.triggers {
		out[name] = fn
	}
	return out
}

// Signal returns the stream behind a defined action.
func (s *Store[S]) Signal(action string) (*Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[action]
	return sig, ok
}

// Dispatch invokes action with params. Reducers are applied before it
// returns. Effect input is dropped with a warning while asleep.
func (s *Store[S]) Dispatch(action string, params any) error {
	s.mu.RLock()
	if s.destroyed {
		s.mu.RUnlock()
		return &DestroyedError{Name: s.name}
	}
	e, ok := s.def.entries[action]
	if !ok {
		s.mu.RUnlock()
		return &UnknownActionError{Name: s.name, Action: action}
	}
	awake := s.life.awake
	input := s.inputs[action]
	sig := s.signals[action]
	s.mu.RUnlock()

	switch e.kind {
	case KindReducer:
		return s.reduce(action, params, func(state S) S {
			return e.reducer(state, params)
		})
	case KindDraftReducer:
		return s.reduce(action, params, func(state S) S {
			return draft.Produce(state, func(d *S) { e.draft(d, params) })
		})
	case KindEffect:
		if !awake {
			s.logger.Warn("effect is asleep, dropping trigger", "action", action)
			return nil
		}
		input.Push(params)
	case KindDefinedAction:
		sig.Next(params)
	}
	return nil
}

func (s *Store[S]) reduce(action string, params any, next func(S) S) error {
	s.dispatchMu.Lock()
	if s.Destroyed() {
		s.dispatchMu.Unlock()
		return &DestroyedError{Name: s.name}
	}
	state := next(s.cell.Get())
	report(s.sink, s.logger, s.name, LogEntry{
		Action:   action,
		Params:   params,
		State:    state,
		HasState: true,
	})
	changed := s.cell.update(state)
	s.dispatchMu.Unlock()

	if changed {
		s.cell.flush()
	}
	return nil
}

// Destroyed reports whether Destroy has been called.
func (s *Store[S]) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// Destroy stops every effect, closes all input streams and drops all
// subscribers and triggers. It is idempotent.
func (s *Store[S]) Destroy() {
	unlock := s.gate.close()
	defer unlock()

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.life.stop()
	s.triggers = TriggerActions{}
	inputs, signals := s.inputs, s.signals
	s.mu.Unlock()

	for _, mb := range inputs {
		mb.Close()
	}
	for _, sig := range signals {
		sig.Close()
	}
	s.cell.clear()
}
