package optim

import "github.com/pkg/errors"

// Apply and Build failures. They are wrapped with context; test with errors.Is.
var (
	// ErrUnbuilt is returned when the optimizer is used before Build.
	ErrUnbuilt = errors.New("optimizer is not built")
	// ErrAlreadyBuilt is returned by a second call to Build.
	ErrAlreadyBuilt = errors.New("optimizer is already built")
	// ErrCardinalityMismatch is returned when gradients and variables do not pair up one-to-one.
	ErrCardinalityMismatch = errors.New("gradient count does not match variable count")
	// ErrUnknownVariable is returned for a variable the optimizer was not built with.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrShapeMismatch is returned when a gradient's shape differs from its variable's.
	ErrShapeMismatch = errors.New("gradient shape does not match variable shape")
	// ErrInvalidConfig is returned for inconsistent optimizer settings.
	ErrInvalidConfig = errors.New("invalid optimizer configuration")
)

// Build failures.
var (
	// ErrNotTrainable is returned when Build is given a frozen variable.
	ErrNotTrainable = errors.New("variable is not trainable")
	// ErrDuplicateVariable is returned when Build is given the same variable twice.
	ErrDuplicateVariable = errors.New("duplicate variable")
)
