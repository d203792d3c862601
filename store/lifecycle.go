package store

import (
	"context"
	"errors"
	"fmt"
)

// lifecycle is the single awake flag of a store. Each Awake starts a new
// activation; emits carry the generation they were started under and are
// discarded once it is stale.
type lifecycle struct {
	awake      bool
	generation uint64
	cancel     context.CancelFunc
}

func (l *lifecycle) stop() {
	l.awake = false
	l.generation++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Awake starts every effect body. It is a no-op when already awake or
// destroyed. Input triggered while asleep is not replayed; input queued
// before Sleep and not yet taken is delivered to the new activation.
// Each activation reads its own channel, and the channel of the previous
// one is closed, so a body still ranging over it ends.
func (s *Store[S]) Awake() {
	s.mu.Lock()
	if s.destroyed || s.life.awake {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.life.awake = true
	s.life.generation++
	s.life.cancel = cancel
	gen := s.life.generation

	type run struct {
		name string
		fn   EffectFunc[S]
		in   <-chan any
	}
	runs := make([]run, 0, len(s.inputs))
	for _, name := range s.def.namesOf(KindEffect) {
		runs = append(runs, run{name: name, fn: s.def.entries[name].effect, in: s.inputs[name].Forward(ctx)})
	}
	s.mu.Unlock()

	for _, r := range runs {
		env := &EffectEnv[S]{store: s, action: r.name, generation: gen, ctx: ctx}
		go s.runEffect(ctx, r.fn, r.in, env)
	}
	s.logger.Debug("effects awake", "generation", gen)
}

// Sleep cancels every running effect body. Until the next Awake, effect
// triggers are dropped and nothing an effect emits is applied.
//
// Sleep waits for effect output already being applied to finish; output
// that has not passed the gate yet is discarded.
func (s *Store[S]) Sleep() {
	unlock := s.gate.close()
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.life.awake {
		return
	}
	s.life.stop()
	s.logger.Debug("effects asleep", "generation", s.life.generation)
}

// IsAwake reports whether effect bodies are running.
func (s *Store[S]) IsAwake() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.life.awake
}

func (s *Store[S]) current(generation uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.destroyed && s.life.awake && s.life.generation == generation
}

func (s *Store[S]) runEffect(ctx context.Context, fn EffectFunc[S], in <-chan any, env *EffectEnv[S]) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("effect failed", "action", env.action, "error", &EffectPanicError{Action: env.action, Value: r})
		}
	}()

	err := fn(ctx, in, env)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("effect failed", "action", env.action, "error", err)
	}
}

// emit reports a to the sink and redispatches it through the target's
// own trigger path.
func (s *Store[S]) emit(env *EffectEnv[S], a EffectAction) bool {
	leave := s.gate.enter()
	defer leave()

	if !s.current(env.generation) {
		return false
	}
	if a.Target == nil {
		s.logger.Warn("effect emitted an action without target", "action", env.action, "target_action", a.Action)
		return true
	}
	report(s.sink, s.logger, s.name, LogEntry{
		Action: fmt.Sprintf("%s/->%s/%s", env.action, a.Target.Name(), a.Action),
		Params: a.Params,
	})
	if err := a.Target.Dispatch(a.Action, a.Params); err != nil {
		s.logger.Warn("redispatch failed", "action", env.action, "target", a.Target.Name(), "target_action", a.Action, "error", err)
	}
	return true
}
