package store

import "fmt"

// DestroyedError is returned when a destroyed store is used.
type DestroyedError struct {
	Name string
}

func (e *DestroyedError) Error() string {
	return fmt.Sprintf("store %s has been destroyed", e.Name)
}

// UnknownActionError represents a dispatch to an action the store does not define.
type UnknownActionError struct {
	Name   string
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("store %s has no action %q", e.Name, e.Action)
}

// DuplicateActionError represents two registrations under one action name.
type DuplicateActionError struct {
	Name   string
	Action string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("action %q registered twice on %s", e.Action, e.Name)
}

// InvalidActionError represents a registration with an empty name or nil function.
type InvalidActionError struct {
	Name   string
	Action string
	Reason string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q on %s: %s", e.Action, e.Name, e.Reason)
}

// EffectPanicError wraps a value recovered from a panicking effect body.
type EffectPanicError struct {
	Action string
	Value  any
}

func (e *EffectPanicError) Error() string {
	return fmt.Sprintf("effect %s panicked: %v", e.Action, e.Value)
}
