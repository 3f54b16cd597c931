package framework

import (
	"errors"
	"fmt"

	"gosgi/internal/module"
	"gosgi/internal/resolver"
)

// ResolutionError is returned when a bundle cannot be resolved.
type ResolutionError = resolver.ResolutionError

// ActivationError is returned when a bundle activator fails to start or stop.
// The bundle is left RESOLVED.
type ActivationError struct {
	Bundle       module.BundleID
	SymbolicName string
	Phase        string // "start" or "stop"
	Err          error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activator of bundle %s [%d] failed to %s: %v", e.SymbolicName, e.Bundle, e.Phase, e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// IsActivationError checks whether err is (or wraps) an ActivationError.
func IsActivationError(err error) bool {
	var ae *ActivationError
	return errors.As(err, &ae)
}

// ClassNotFoundError is returned by LoadClass.
type ClassNotFoundError struct {
	Bundle module.BundleID
	Class  string
	Err    error
}

func (e *ClassNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("class %s not found from bundle %d: %v", e.Class, e.Bundle, e.Err)
	}
	return fmt.Sprintf("class %s not found from bundle %d", e.Class, e.Bundle)
}

func (e *ClassNotFoundError) Unwrap() error {
	return e.Err
}

// IsClassNotFound checks whether err is (or wraps) a ClassNotFoundError.
func IsClassNotFound(err error) bool {
	var ce *ClassNotFoundError
	return errors.As(err, &ce)
}

// panicError turns a recovered activator panic into an error.
func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
