package servicex

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Scope names the sharing behaviour of a ScopeToken.
type Scope string

// Available service scopes
const (
	// ScopeTransient creates a new instance for each resolution
	ScopeTransient Scope = "transient"
	// ScopeRequest shares an instance within a request
	ScopeRequest Scope = "request"
	// ScopeSingleton shares a single instance across the container
	ScopeSingleton Scope = "singleton"
	// ScopeCustom shares an instance among callers using the same key
	ScopeCustom Scope = "custom"
)

// ScopeToken selects which instance a resolution returns. Resolutions of
// one type with equal tokens share an instance.
//
// The bare Transient token mints a fresh key on every resolution. The
// bare Request token shares per top-level resolution.
type ScopeToken struct {
	scope Scope
	key   any
}

var (
	Singleton = ScopeToken{scope: ScopeSingleton}
	Transient = ScopeToken{scope: ScopeTransient}
	Request   = ScopeToken{scope: ScopeRequest}
)

// NewTransientToken returns a transient token that can be passed to
// several resolutions to share one instance.
func NewTransientToken() ScopeToken {
	return ScopeToken{scope: ScopeTransient, key: uuid.New()}
}

// RequestToken keys request scope on id.
func RequestToken(id any) ScopeToken {
	return ScopeToken{scope: ScopeRequest, key: id}
}

// CustomScope shares instances among every resolution using key. The
// key must be comparable.
func CustomScope(key any) ScopeToken {
	return ScopeToken{scope: ScopeCustom, key: key}
}

func (t ScopeToken) Scope() Scope {
	return t.scope
}

func (t ScopeToken) Key() any {
	return t.key
}

func (t ScopeToken) IsSingleton() bool {
	return t.scope == ScopeSingleton
}

func (t ScopeToken) String() string {
	if t.key == nil {
		return string(t.scope)
	}
	return fmt.Sprintf("%s(%v)", t.scope, t.key)
}

// bare reports whether the key still has to be filled in at resolution.
func (t ScopeToken) bare() bool {
	return t.key == nil && (t.scope == ScopeTransient || t.scope == ScopeRequest)
}

func (t ScopeToken) validate(serviceType reflect.Type) error {
	switch t.scope {
	case ScopeSingleton, ScopeTransient, ScopeRequest:
	case ScopeCustom:
		if t.key == nil || !reflect.TypeOf(t.key).Comparable() {
			return &InvalidScopeError{Type: serviceType.String(), Scope: t.String()}
		}
	default:
		return &InvalidScopeError{Type: serviceType.String(), Scope: t.String()}
	}
	if t.key != nil && !reflect.TypeOf(t.key).Comparable() {
		return &InvalidScopeError{Type: serviceType.String(), Scope: t.String()}
	}
	return nil
}
