// Package servicex provides a scoped dependency container for reactive
// state services.
package servicex

// Lifecycle defines the interface for services managed by a Container.
type Lifecycle interface {
	// OnBoot runs exactly once, after the factory has resolved every
	// collaborator. Services build their store here.
	OnBoot(ctx *ContainerContext) error

	// OnShutdown releases everything the service holds.
	OnShutdown(ctx *ContainerContext) error
}

// Factory builds a service. Collaborators are resolved through ctx
// before the factory returns.
type Factory[T Lifecycle] func(ctx *ContainerContext) (T, error)

// destroyable is implemented by services that know when they are dead.
// Dead instances are never handed out again.
type destroyable interface {
	Destroyed() bool
}

func alive(instance Lifecycle) bool {
	d, ok := instance.(destroyable)
	return !ok || !d.Destroyed()
}
