package store

import (
	"context"
	"sort"
)

// Kind classifies a registered action.
type Kind int

const (
	KindEffect Kind = iota + 1
	KindReducer
	KindDraftReducer
	KindDefinedAction
)

func (k Kind) String() string {
	switch k {
	case KindEffect:
		return "effect"
	case KindReducer:
		return "reducer"
	case KindDraftReducer:
		return "draft-reducer"
	case KindDefinedAction:
		return "defined-action"
	}
	return "unknown"
}

// ReducerFunc returns a complete replacement state.
type ReducerFunc[S any] func(state S, params any) S

// DraftReducerFunc edits a private copy of the state in place.
type DraftReducerFunc[S any] func(draft *S, params any)

// EffectFunc is a long-lived effect body started once per activation. It
// receives the action's input for that activation; in is closed and ctx
// cancelled when the activation ends. Output goes through env.Emit.
type EffectFunc[S any] func(ctx context.Context, in <-chan any, env *EffectEnv[S]) error

type entry[S any] struct {
	kind    Kind
	reducer ReducerFunc[S]
	draft   DraftReducerFunc[S]
	effect  EffectFunc[S]
}

// Definition is the registration table of a service: its default state
// and every action keyed by name.
type Definition[S any] struct {
	name         string
	defaultState S
	entries      map[string]entry[S]
	err          error
}

// Define starts a definition. name identifies the store in logs.
func Define[S any](name string, defaultState S) *Definition[S] {
	return &Definition[S]{
		name:         name,
		defaultState: defaultState,
		entries:      make(map[string]entry[S]),
	}
}

func (d *Definition[S]) Reducer(action string, fn ReducerFunc[S]) *Definition[S] {
	if fn == nil {
		return d.fail(&InvalidActionError{Name: d.name, Action: action, Reason: "nil reducer"})
	}
	return d.add(action, entry[S]{kind: KindReducer, reducer: fn})
}

func (d *Definition[S]) DraftReducer(action string, fn DraftReducerFunc[S]) *Definition[S] {
	if fn == nil {
		return d.fail(&InvalidActionError{Name: d.name, Action: action, Reason: "nil draft reducer"})
	}
	return d.add(action, entry[S]{kind: KindDraftReducer, draft: fn})
}

func (d *Definition[S]) Effect(action string, fn EffectFunc[S]) *Definition[S] {
	if fn == nil {
		return d.fail(&InvalidActionError{Name: d.name, Action: action, Reason: "nil effect"})
	}
	return d.add(action, entry[S]{kind: KindEffect, effect: fn})
}

// DefineAction registers a bare signal. Triggering it notifies every
// effect listening through EffectEnv.Signal.
func (d *Definition[S]) DefineAction(action string) *Definition[S] {
	return d.add(action, entry[S]{kind: KindDefinedAction})
}

func (d *Definition[S]) add(action string, e entry[S]) *Definition[S] {
	if action == "" {
		return d.fail(&InvalidActionError{Name: d.name, Action: action, Reason: "empty name"})
	}
	if _, ok := d.entries[action]; ok {
		return d.fail(&DuplicateActionError{Name: d.name, Action: action})
	}
	d.entries[action] = e
	return d
}

func (d *Definition[S]) fail(err error) *Definition[S] {
	if d.err == nil {
		d.err = err
	}
	return d
}

// Err returns the first registration error, if any.
func (d *Definition[S]) Err() error {
	return d.err
}

func (d *Definition[S]) Name() string {
	return d.name
}

func (d *Definition[S]) DefaultState() S {
	return d.defaultState
}

// Kind reports how action was registered.
func (d *Definition[S]) Kind(action string) (Kind, bool) {
	e, ok := d.entries[action]
	return e.kind, ok
}

// Names returns every action name in sorted order.
func (d *Definition[S]) Names() []string {
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Definition[S]) namesOf(kind Kind) []string {
	var names []string
	for _, name := range d.Names() {
		if d.entries[name].kind == kind {
			names = append(names, name)
		}
	}
	return names
}
