package store

// ActionTarget is anything an effect can redispatch to: a store or a
// service wrapping one.
type ActionTarget interface {
	Name() string
	Dispatch(action string, params any) error
}

// EffectAction asks the loop to invoke Action on Target with Params. It
// carries no state itself.
type EffectAction struct {
	Target ActionTarget
	Action string
	Params any
}

// ReducerAction is a fully computed next state.
type ReducerAction[S any] struct {
	Action    string
	Params    any
	NextState S
}

// To builds an EffectAction.
func To(target ActionTarget, action string, params any) EffectAction {
	return EffectAction{Target: target, Action: action, Params: params}
}

// TriggerActions is the callable action surface of a store.
type TriggerActions map[string]func(params any)
