package servicex

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"

	"github.com/centraunit/servicex/store"
)

// binding represents a service binding in the container.
// It holds the factory and the scope used when none is asked for.
type binding struct {
	scope   ScopeToken
	factory func(ctx *ContainerContext) (Lifecycle, error)
}

type instanceKey struct {
	serviceType reflect.Type
	token       ScopeToken
}

type registration struct {
	instance Lifecycle
	ctx      *ContainerContext
}

// Container binds service types to factories and hands out instances
// keyed by (type, scope token). Containers are independent of each other.
type Container struct {
	bindings        map[reflect.Type]binding
	instances       map[instanceKey]registration
	ctx             *ContainerContext
	logger          *slog.Logger
	sink            store.Sink
	mu              sync.RWMutex
	resolutionState sync.Map
	statePool       sync.Pool
}

// ContainerOption configures a Container.
type ContainerOption func(*Container)

// WithLogger sets the logger handed to every service store.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSink sets the action observer handed to every service store.
func WithSink(sink store.Sink) ContainerOption {
	return func(c *Container) {
		c.sink = sink
	}
}

// WithContext sets the base context. Its values are visible to every
// factory and its cancellation stops every effect.
func WithContext(ctx *ContainerContext) ContainerOption {
	return func(c *Container) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// New returns an empty container.
func New(opts ...ContainerOption) *Container {
	c := &Container{
		bindings:  make(map[reflect.Type]binding, 32),
		instances: make(map[instanceKey]registration, 32),
		ctx:       NewContainerContext(context.Background()),
		logger:    slog.Default(),
		statePool: sync.Pool{New: newResolutionState},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Bind registers factory for T. scope is the token Resolve uses and
// defaults to Singleton. Binding again replaces the factory; instances
// already built are kept.
func Bind[T Lifecycle](c *Container, factory Factory[T], scope ...ScopeToken) error {
	serviceType := typeOf[T]()
	if factory == nil {
		return &NilServiceError{Type: serviceType.String()}
	}
	token := Singleton
	if len(scope) > 0 {
		token = scope[0]
	}
	if err := token.validate(serviceType); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[serviceType] = binding{
		scope: token,
		factory: func(ctx *ContainerContext) (Lifecycle, error) {
			return factory(ctx)
		},
	}
	return nil
}

// Unbind removes the binding of T and forgets its instances without
// shutting them down.
func Unbind[T Lifecycle](c *Container) error {
	serviceType := typeOf[T]()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bindings[serviceType]; !ok {
		return &BindingNotFoundError{Type: serviceType.String()}
	}
	delete(c.bindings, serviceType)
	for key := range c.instances {
		if key.serviceType == serviceType {
			delete(c.instances, key)
		}
	}
	return nil
}

// IsBound reports whether T has a binding.
func IsBound[T Lifecycle](c *Container) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[typeOf[T]()]
	return ok
}

// ScopeOf returns the default scope T was bound with.
func ScopeOf[T Lifecycle](c *Container) (ScopeToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bindings[typeOf[T]()]
	return b.scope, ok
}

// IsBoundInScope reports whether a live instance of T is registered
// under token.
func IsBoundInScope[T Lifecycle](c *Container, token ScopeToken) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.instances[instanceKey{serviceType: typeOf[T](), token: token}]
	return ok && alive(reg.instance)
}

// Resolve resolves T in the scope it was bound with.
func Resolve[T Lifecycle](c *Container) (T, error) {
	var zero T
	serviceType := typeOf[T]()
	c.mu.RLock()
	b, ok := c.bindings[serviceType]
	c.mu.RUnlock()
	if !ok {
		return zero, &BindingNotFoundError{Type: serviceType.String()}
	}
	return ResolveInScope[T](c, b.scope)
}

// Inject resolves a collaborator from inside a factory.
func Inject[T Lifecycle](ctx *ContainerContext, token ScopeToken) (T, error) {
	var zero T
	if ctx == nil || ctx.container == nil {
		return zero, &MissingContextValueError{Key: "container"}
	}
	return ResolveInScope[T](ctx.container, token)
}

// ResolveInScope returns the live instance of T registered under token,
// building and booting one when there is none.
//
// Returns BindingNotFoundError if T is not bound.
// Returns CircularDependencyError if T is already being built on this chain.
// Returns InitializationError if the factory or OnBoot fails.
func ResolveInScope[T Lifecycle](c *Container, token ScopeToken) (T, error) {
	var zero T
	serviceType := typeOf[T]()

	token, reach, err := c.concreteToken(serviceType, token)
	if err != nil {
		return zero, err
	}
	key := instanceKey{serviceType: serviceType, token: token}

	c.mu.RLock()
	reg, found := c.instances[key]
	b, bound := c.bindings[serviceType]
	c.mu.RUnlock()

	if found && alive(reg.instance) {
		return typed[T](reg.instance)
	}
	if !bound {
		return zero, &BindingNotFoundError{Type: serviceType.String()}
	}

	if err := c.startResolving(serviceType); err != nil {
		return zero, err
	}
	defer c.finishResolving(serviceType)

	ctx := c.ctx.forResolution(c, token)
	instance, err := b.factory(ctx)
	if err != nil {
		return zero, &InitializationError{Type: serviceType.String(), Err: err}
	}
	if instance == nil || (reflect.ValueOf(instance).Kind() == reflect.Pointer && reflect.ValueOf(instance).IsNil()) {
		return zero, &NilServiceError{Type: serviceType.String()}
	}
	result, err := typed[T](instance)
	if err != nil {
		return zero, err
	}
	if err := instance.OnBoot(ctx); err != nil {
		return zero, &InitializationError{Type: serviceType.String(), Err: err}
	}
	if reach == reachNone {
		// nobody can ask for this token again; the caller owns the instance
		c.logger.Debug("service resolved", "type", serviceType.String(), "scope", token.String())
		return result, nil
	}

	c.mu.Lock()
	if existing, ok := c.instances[key]; ok && alive(existing.instance) {
		// built concurrently; keep the first one
		c.mu.Unlock()
		if err := instance.OnShutdown(ctx); err != nil {
			c.logger.Warn("discarding duplicate instance", "type", serviceType.String(), "error", err)
		}
		return typed[T](existing.instance)
	}
	if _, stillBound := c.bindings[serviceType]; stillBound {
		c.instances[key] = registration{instance: instance, ctx: ctx}
		if reach == reachChain {
			c.forgetAfterChain(key)
		}
	}
	c.mu.Unlock()

	c.logger.Debug("service resolved", "type", serviceType.String(), "scope", token.String())
	return result, nil
}

// Release shuts down the instance of T registered under token and
// forgets it.
func Release[T Lifecycle](c *Container, token ScopeToken) error {
	serviceType := typeOf[T]()
	if token.bare() {
		return &InvalidScopeError{Type: serviceType.String(), Scope: token.String()}
	}
	key := instanceKey{serviceType: serviceType, token: token}

	c.mu.Lock()
	reg, ok := c.instances[key]
	delete(c.instances, key)
	c.mu.Unlock()

	if !ok {
		return &BindingNotFoundError{Type: serviceType.String()}
	}
	if err := reg.instance.OnShutdown(reg.ctx); err != nil {
		return &ShutdownError{Type: serviceType.String(), Err: err}
	}
	return nil
}

// Shutdown shuts down every registered non-singleton instance, and the
// singletons too when clearSingletons is set. Failures are joined.
//
// Instances resolved with the bare Transient token are never registered;
// whoever resolved them destroys them.
func (c *Container) Shutdown(clearSingletons bool) error {
	c.mu.Lock()
	toShutdown := make(map[instanceKey]registration)
	for key, reg := range c.instances {
		if !key.token.IsSingleton() || clearSingletons {
			toShutdown[key] = reg
			delete(c.instances, key)
		}
	}
	c.mu.Unlock()

	var errs []error
	for key, reg := range toShutdown {
		if err := reg.instance.OnShutdown(reg.ctx); err != nil {
			errs = append(errs, &ShutdownError{Type: key.serviceType.String(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// Reset clears all container state.
// It removes all bindings and instances without shutting them down.
func (c *Container) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = make(map[reflect.Type]binding, 32)
	c.instances = make(map[instanceKey]registration, 32)
}

// Context returns the base context of the container.
func (c *Container) Context() *ContainerContext {
	return c.ctx.forResolution(c, ScopeToken{})
}

// tokenReach says who can resolve a concrete token again.
type tokenReach int

const (
	// reachAny: the caller named the token or can rebuild it.
	reachAny tokenReach = iota
	// reachChain: only the current resolution chain knows the token.
	reachChain
	// reachNone: the token was minted for this one resolution.
	reachNone
)

// concreteToken fills in the key of a bare Transient or Request token.
// Instances under a minted key are not kept past the point where the key
// is lost, so the instance table only holds reachable entries.
func (c *Container) concreteToken(serviceType reflect.Type, token ScopeToken) (ScopeToken, tokenReach, error) {
	if err := token.validate(serviceType); err != nil {
		return ScopeToken{}, reachAny, err
	}
	if !token.bare() {
		return token, reachAny, nil
	}
	if token.scope == ScopeTransient {
		return NewTransientToken(), reachNone, nil
	}
	if root, minted, ok := c.activeRoot(); ok {
		if minted {
			return RequestToken(root), reachChain, nil
		}
		return RequestToken(root), reachAny, nil
	}
	if id := c.ctx.Value("request_id"); id != nil {
		return RequestToken(id), reachAny, nil
	}
	return ScopeToken{}, reachAny, &MissingContextValueError{Key: "request_id"}
}

func typed[T Lifecycle](instance Lifecycle) (T, error) {
	if t, ok := instance.(T); ok {
		return t, nil
	}
	var zero T
	return zero, &TypeMismatchError{Expected: typeOf[T]().String(), Got: reflect.TypeOf(instance).String()}
}
