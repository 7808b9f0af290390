// core/errors.go
package core

import "errors"

var (
	// ErrDuplicateKind indicates a catalog name was registered twice.
	ErrDuplicateKind = errors.New("action kind already registered")
	// ErrUnknownKind indicates a reference to a kind the catalog does not hold.
	ErrUnknownKind = errors.New("unknown action kind")
	// ErrUnknownParamType indicates a schema declared a parameter type the
	// builder cannot resolve against any population.
	ErrUnknownParamType = errors.New("unknown parameter type in schema")
	// ErrUnknownRule indicates a kind referenced a constraint rule that is
	// not part of the closed rule set.
	ErrUnknownRule = errors.New("unknown constraint rule")
	// ErrTypeMismatch indicates a constraint was invoked on an entity type
	// outside its declared jurisdiction. This is a wiring bug and is never
	// swallowed.
	ErrTypeMismatch = errors.New("constraint invoked outside its jurisdiction")
	// ErrDuplicateAction indicates the builder emitted the same concrete
	// action twice, which would break the bijection.
	ErrDuplicateAction = errors.New("duplicate concrete action")
	// ErrUnknownEntity indicates a notification referenced an entity the
	// world view cannot resolve.
	ErrUnknownEntity = errors.New("unknown entity")
)
