package store

import (
	"context"
	"log/slog"
	"sync"
)

// EffectEnv is what an effect body sees of its store during one activation.
type EffectEnv[S any] struct {
	store      *Store[S]
	action     string
	generation uint64
	ctx        context.Context
}

// State returns the store's current state.
func (e *EffectEnv[S]) State() S {
	return e.store.State()
}

// Self is the store the effect belongs to, for emitting to its own reducers.
func (e *EffectEnv[S]) Self() ActionTarget {
	return e.store
}

// Emit redispatches a. It returns false once the activation is over, in
// which case a was discarded.
func (e *EffectEnv[S]) Emit(a EffectAction) bool {
	return e.store.emit(e, a)
}

// Signal subscribes to a defined action of the same store for the rest
// of the activation. An unknown name yields a closed channel.
func (e *EffectEnv[S]) Signal(action string) <-chan any {
	sig, ok := e.store.Signal(action)
	if !ok {
		ch := make(chan any)
		close(ch)
		return ch
	}
	return sig.Subscribe(e.ctx)
}

func (e *EffectEnv[S]) Action() string {
	return e.action
}

func (e *EffectEnv[S]) Logger() *slog.Logger {
	return e.store.logger.With("action", e.action)
}

// Handler computes the output of a single effect invocation.
type Handler[S any] func(ctx context.Context, payload any, env *EffectEnv[S]) ([]EffectAction, error)

// Each runs h once per payload, one at a time, in arrival order. A failed
// invocation is logged and the next payload is handled normally.
func Each[S any](h Handler[S]) EffectFunc[S] {
	return func(ctx context.Context, in <-chan any, env *EffectEnv[S]) error {
		for payload := range in {
			actions, ok := invoke(ctx, h, payload, env)
			if !ok {
				continue
			}
			for _, a := range actions {
				if !env.Emit(a) {
					return nil
				}
			}
		}
		return nil
	}
}

// Latest runs h for every payload but cancels the invocation still in
// flight when a newer payload arrives; only the newest invocation emits.
func Latest[S any](h Handler[S]) EffectFunc[S] {
	return func(ctx context.Context, in <-chan any, env *EffectEnv[S]) error {
		var (
			mu     sync.Mutex
			seq    uint64
			cancel context.CancelFunc = func() {}
			wg     sync.WaitGroup
		)
		defer func() {
			mu.Lock()
			cancel()
			mu.Unlock()
			wg.Wait()
		}()

		for payload := range in {
			payload := payload
			mu.Lock()
			cancel()
			seq++
			mine := seq
			callCtx, callCancel := context.WithCancel(ctx)
			cancel = callCancel
			mu.Unlock()

			wg.Add(1)
			go func() {
				defer wg.Done()
				actions, ok := invoke(callCtx, h, payload, env)
				if !ok {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if mine != seq || callCtx.Err() != nil {
					return
				}
				for _, a := range actions {
					if !env.Emit(a) {
						return
					}
				}
			}()
		}
		return nil
	}
}

func invoke[S any](ctx context.Context, h Handler[S], payload any, env *EffectEnv[S]) (actions []EffectAction, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			env.Logger().Error("effect invocation failed", "error", &EffectPanicError{Action: env.action, Value: r})
			actions, ok = nil, false
		}
	}()

	actions, err := h(ctx, payload, env)
	if err != nil {
		if ctx.Err() == nil {
			env.Logger().Error("effect invocation failed", "error", err)
		}
		return nil, false
	}
	return actions, true
}
