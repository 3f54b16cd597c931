package resolver

import (
	"errors"
	"fmt"

	"gosgi/internal/module"
)

// ResolutionError records why a module could not be resolved.
type ResolutionError struct {
	Module       module.ID
	Bundle       module.BundleID
	SymbolicName string
	Requirement  module.Requirement
	Reason       string
}

func (e *ResolutionError) Error() string {
	if e.Requirement.Name == "" {
		return fmt.Sprintf("unable to resolve %s [%d]: %s", e.SymbolicName, e.Bundle, e.Reason)
	}
	return fmt.Sprintf("unable to resolve %s [%d]: %s %s;version=%q: %s",
		e.SymbolicName, e.Bundle, e.Requirement.Kind, e.Requirement.Name, e.Requirement.Range, e.Reason)
}

// IsResolutionError checks whether err is (or wraps) a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// UnknownModuleError is returned when a requested module is not in the snapshot.
type UnknownModuleError struct {
	Module module.ID
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("module %d not found", e.Module)
}

const (
	reasonNoCandidate  = "missing requirement, no matching capability"
	reasonNoResolvable = "missing requirement, no matching capability could be resolved"
	reasonPending      = "module is removal pending"
)
