package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema reports a caller schema bug detected at construction.
var ErrInvalidSchema = errors.New("domain: invalid attribute schema")

// ErrValidation is the parent of every recoverable write rejection.
var ErrValidation = errors.New("domain: validation failed")

var (
	// ErrOutOfRange indicates a numeric or axis value outside its declared bounds.
	ErrOutOfRange = fmt.Errorf("%w: value out of range", ErrValidation)
	// ErrInvalidCategory indicates a category index outside the declared list.
	ErrInvalidCategory = fmt.Errorf("%w: category out of range", ErrValidation)
	// ErrTypeMismatch indicates an accessor used against the wrong attribute type.
	ErrTypeMismatch = fmt.Errorf("%w: attribute type mismatch", ErrValidation)
)

// ErrInvalidOperation is the parent of every structural error. It is distinct
// from ErrValidation so callers can tell schema misuse from bad values.
var ErrInvalidOperation = errors.New("domain: invalid operation")

var (
	// ErrBoundContainer indicates a structural mutation against a bound container.
	ErrBoundContainer = fmt.Errorf("%w: container is bound", ErrInvalidOperation)
	// ErrAlreadyBound indicates a second Bind call.
	ErrAlreadyBound = fmt.Errorf("%w: container already bound", ErrInvalidOperation)
	// ErrDuplicateName indicates a name collision inside a container.
	ErrDuplicateName = fmt.Errorf("%w: duplicate name", ErrInvalidOperation)
	// ErrAlreadyAttached indicates an attribute or entity that belongs to another container.
	ErrAlreadyAttached = fmt.Errorf("%w: already attached to a container", ErrInvalidOperation)
)

// ErrNotFound indicates a lookup by name that matched nothing.
var ErrNotFound = errors.New("domain: not found")
