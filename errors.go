package servicex

import (
	"fmt"
	"strings"

	"github.com/centraunit/servicex/store"
)

// CircularDependencyError represents a circular dependency detection error.
type CircularDependencyError struct {
	Type  string
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("circular dependency detected for type: %s", e.Type)
	}
	return fmt.Sprintf("circular dependency detected for type: %s (%s -> %s)", e.Type, strings.Join(e.Chain, " -> "), e.Type)
}

// BindingNotFoundError represents a missing binding error.
type BindingNotFoundError struct {
	Type string
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("no binding found for type: %s", e.Type)
}

// NilServiceError represents a nil factory or a factory that built nothing.
type NilServiceError struct {
	Type string
}

func (e *NilServiceError) Error() string {
	return fmt.Sprintf("nil service provided for type: %s", e.Type)
}

// InitializationError represents a service construction or boot failure.
type InitializationError struct {
	Type string
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed for type %s: %v", e.Type, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// MissingContextValueError represents a missing required context value.
type MissingContextValueError struct {
	Key string
}

func (e *MissingContextValueError) Error() string {
	return fmt.Sprintf("required context value not found: %s", e.Key)
}

// TypeMismatchError represents a type assertion failure.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// ShutdownError represents a service shutdown failure.
type ShutdownError struct {
	Type string
	Err  error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown failed for type %s: %v", e.Type, e.Err)
}

func (e *ShutdownError) Unwrap() error {
	return e.Err
}

// InvalidScopeError represents an invalid scope usage.
type InvalidScopeError struct {
	Type  string
	Scope string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope %s for type %s", e.Scope, e.Type)
}

// StoreNotInitializedError represents access to a service store before boot.
type StoreNotInitializedError struct {
	Type string
}

func (e *StoreNotInitializedError) Error() string {
	return fmt.Sprintf("store of %s accessed before initialization", e.Type)
}

// StoreLoopError represents access to a service store while it is being built.
type StoreLoopError struct {
	Type string
}

func (e *StoreLoopError) Error() string {
	return fmt.Sprintf("store loop created, check the service %s and its effects", e.Type)
}

// DestroyedError is returned when a destroyed service or store is used.
type DestroyedError = store.DestroyedError

// NodeNotFoundError represents a context tree lookup of a removed or unknown node.
type NodeNotFoundError struct {
	ID NodeID
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("context node %d not found", e.ID)
}

// InvalidTreeError represents a link that would break the tree shape.
type InvalidTreeError struct {
	Parent NodeID
	Child  NodeID
	Reason string
}

func (e *InvalidTreeError) Error() string {
	return fmt.Sprintf("cannot link node %d under %d: %s", e.Child, e.Parent, e.Reason)
}
