// Package mock holds services shared by the container and store tests.
package mock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/centraunit/servicex"
	"github.com/centraunit/servicex/store"
)

// Counter

type CounterState struct {
	Count int
}

type Counter struct {
	*servicex.Service[CounterState]
}

func CounterDefinition() *store.Definition[CounterState] {
	return store.Define("Counter", CounterState{}).
		Reducer("setCount", func(s CounterState, p any) CounterState {
			s.Count = p.(int)
			return s
		}).
		DraftReducer("increase", func(d *CounterState, p any) {
			d.Count += p.(int)
		}).
		Effect("subtract", store.Each(func(ctx context.Context, p any, env *store.EffectEnv[CounterState]) ([]store.EffectAction, error) {
			return []store.EffectAction{
				store.To(env.Self(), "setCount", env.State().Count-p.(int)),
			}, nil
		})).
		Effect("delayedSet", store.Latest(func(ctx context.Context, p any, env *store.EffectEnv[CounterState]) ([]store.EffectAction, error) {
			d := p.(Delayed)
			select {
			case <-time.After(d.After):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return []store.EffectAction{store.To(env.Self(), "setCount", d.Count)}, nil
		})).
		Effect("fail", store.Each(func(ctx context.Context, p any, env *store.EffectEnv[CounterState]) ([]store.EffectAction, error) {
			if p == nil {
				return nil, errors.New("simulated effect failure")
			}
			return []store.EffectAction{store.To(env.Self(), "setCount", p)}, nil
		})).
		Effect("crash", func(ctx context.Context, in <-chan any, env *store.EffectEnv[CounterState]) error {
			for range in {
				panic("simulated effect panic")
			}
			return nil
		}).
		DefineAction("reset").
		Effect("watchReset", func(ctx context.Context, _ <-chan any, env *store.EffectEnv[CounterState]) error {
			resets := env.Signal("reset")
			for {
				select {
				case <-ctx.Done():
					return nil
				case v, ok := <-resets:
					if !ok {
						return nil
					}
					to := 0
					if n, isInt := v.(int); isInt {
						to = n
					}
					env.Emit(store.To(env.Self(), "setCount", to))
				}
			}
		})
}

// Delayed is the payload of Counter's delayedSet effect.
type Delayed struct {
	Count int
	After time.Duration
}

func NewCounter(ctx *servicex.ContainerContext) (*Counter, error) {
	return &Counter{Service: servicex.NewService(CounterDefinition())}, nil
}

// Engine and Car: Car injects a transient Engine and drives it from an effect.

type EngineState struct {
	Speed int
}

type Engine struct {
	*servicex.Service[EngineState]
}

func NewEngine(ctx *servicex.ContainerContext) (*Engine, error) {
	def := store.Define("Engine", EngineState{}).
		Reducer("setSpeed", func(s EngineState, p any) EngineState {
			return EngineState{Speed: p.(int)}
		})
	return &Engine{Service: servicex.NewService(def)}, nil
}

type CarState struct {
	Model  string
	Shifts int
}

type Car struct {
	*servicex.Service[CarState]
	Engine *Engine
}

func NewCar(ctx *servicex.ContainerContext) (*Car, error) {
	engine, err := servicex.Inject[*Engine](ctx, servicex.Transient)
	if err != nil {
		return nil, err
	}
	car := &Car{Engine: engine}
	def := store.Define("Car", CarState{Model: "roadster"}).
		Reducer("shift", func(s CarState, _ any) CarState {
			s.Shifts++
			return s
		}).
		Effect("accelerate", store.Each(func(ctx context.Context, p any, env *store.EffectEnv[CarState]) ([]store.EffectAction, error) {
			return []store.EffectAction{car.Engine.To("setSpeed", p)}, nil
		}))
	car.Service = servicex.NewService(def)
	return car, nil
}

// Circular pair: each needs a freshly built instance of the other.

type CircularA struct {
	*servicex.Service[struct{}]
	B *CircularB
}

type CircularB struct {
	*servicex.Service[struct{}]
	A *CircularA
}

func NewCircularA(ctx *servicex.ContainerContext) (*CircularA, error) {
	b, err := servicex.Inject[*CircularB](ctx, servicex.Transient)
	if err != nil {
		return nil, err
	}
	return &CircularA{Service: servicex.NewService(store.Define("CircularA", struct{}{})), B: b}, nil
}

func NewCircularB(ctx *servicex.ContainerContext) (*CircularB, error) {
	a, err := servicex.Inject[*CircularA](ctx, servicex.Transient)
	if err != nil {
		return nil, err
	}
	return &CircularB{Service: servicex.NewService(store.Define("CircularB", struct{}{})), A: a}, nil
}

// Session reads the request id from its context; it is used for request scope tests.

type Session struct {
	*servicex.Service[struct{}]
	RequestID any
	Counter   *Counter
}

func NewSession(ctx *servicex.ContainerContext) (*Session, error) {
	counter, err := servicex.Inject[*Counter](ctx, servicex.Request)
	if err != nil {
		return nil, err
	}
	return &Session{
		Service:   servicex.NewService(store.Define("Session", struct{}{})),
		RequestID: ctx.Value("request_id"),
		Counter:   counter,
	}, nil
}

// Failing services

type FailingBoot struct {
	*servicex.Service[struct{}]
}

func (f *FailingBoot) OnBoot(ctx *servicex.ContainerContext) error {
	return fmt.Errorf("simulated boot failure")
}

func NewFailingBoot(ctx *servicex.ContainerContext) (*FailingBoot, error) {
	return &FailingBoot{Service: servicex.NewService(store.Define("FailingBoot", struct{}{}))}, nil
}

type FailingShutdown struct {
	*servicex.Service[struct{}]
}

func (f *FailingShutdown) OnShutdown(ctx *servicex.ContainerContext) error {
	f.Destroy()
	return fmt.Errorf("simulated shutdown failure")
}

func NewFailingShutdown(ctx *servicex.ContainerContext) (*FailingShutdown, error) {
	return &FailingShutdown{Service: servicex.NewService(store.Define("FailingShutdown", struct{}{}))}, nil
}
