package servicex

import (
	"context"
	"log/slog"
	"sync"
)

// ContainerContext extends the standard context.Context with container-specific functionality.
// Factories receive one to resolve their collaborators; services receive it in OnBoot.
type ContainerContext struct {
	context.Context
	values    sync.Map
	container *Container
	scope     ScopeToken
}

// NewContainerContext creates a new ContainerContext wrapping a standard context.Context.
func NewContainerContext(parent context.Context) *ContainerContext {
	if parent == nil {
		parent = context.Background()
	}
	return &ContainerContext{
		Context: parent,
	}
}

// WithValue returns a new ContainerContext with the provided key-value pair.
// The new context inherits all values from the receiver.
func (c *ContainerContext) WithValue(key, val interface{}) *ContainerContext {
	newCtx := c.derive()
	newCtx.values.Store(key, val)
	return newCtx
}

func (c *ContainerContext) Parent() context.Context {
	return c.Context
}

func (c *ContainerContext) Value(key interface{}) interface{} {
	if c == nil {
		return nil
	}
	if val, ok := c.values.Load(key); ok {
		return val
	}
	if c.Context != nil {
		return c.Context.Value(key)
	}
	return nil
}

// MergeWith combines values from another ContainerContext.
// Values from the other context override existing values with the same key.
func (c *ContainerContext) MergeWith(other *ContainerContext) *ContainerContext {
	newCtx := c.derive()
	if other != nil {
		other.values.Range(func(k, v interface{}) bool {
			newCtx.values.Store(k, v)
			return true
		})
	}
	return newCtx
}

// Container returns the container the current resolution runs in.
func (c *ContainerContext) Container() *Container {
	return c.container
}

// Scope returns the token the instance is being built under.
func (c *ContainerContext) Scope() ScopeToken {
	return c.scope
}

// Logger returns the container's logger, or slog.Default outside a container.
func (c *ContainerContext) Logger() *slog.Logger {
	if c.container == nil {
		return slog.Default()
	}
	return c.container.logger
}

func (c *ContainerContext) derive() *ContainerContext {
	newCtx := &ContainerContext{
		Context:   c.Context,
		container: c.container,
		scope:     c.scope,
	}
	c.values.Range(func(k, v interface{}) bool {
		newCtx.values.Store(k, v)
		return true
	})
	return newCtx
}

func (c *ContainerContext) forResolution(container *Container, token ScopeToken) *ContainerContext {
	newCtx := c.derive()
	newCtx.container = container
	newCtx.scope = token
	return newCtx
}
