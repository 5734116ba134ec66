// Package guard provides the constructor guard pattern used by domain objects
// to ensure instances are only created through their factory functions.
//
// A zero-value ConstructorGuard fails validation, so any struct embedding a
// guard and exposing a Validate method can detect instances that bypassed
// the constructor (e.g. created via struct literal or zero value).
package guard

import "errors"

// ErrDefaultConstructorGuard is returned by Validate when no custom error
// is provided and the guarded object was not properly constructed.
var ErrDefaultConstructorGuard = errors.New("object must be created via its constructor")

// ConstructorGuard marks an object as properly constructed.
// The zero value is "not constructed"; only NewConstructorGuard produces
// a guard that passes validation.
type ConstructorGuard struct {
	constructed bool
}

// NewConstructorGuard creates a guard in the "constructed" state.
// Domain constructors embed the returned value into the object they build.
func NewConstructorGuard() ConstructorGuard {
	return ConstructorGuard{constructed: true}
}

// Validate returns nil if the object carrying this guard was created through
// its constructor. Otherwise it returns notConstructed, or
// ErrDefaultConstructorGuard when notConstructed is nil.
func (g ConstructorGuard) Validate(notConstructed error) error {
	if g.constructed {
		return nil
	}

	if notConstructed == nil {
		return ErrDefaultConstructorGuard
	}

	return notConstructed
}
