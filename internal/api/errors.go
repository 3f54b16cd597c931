package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a resource not found error with contextual information.
// This standardized error type provides consistent error handling across the
// framework for bundles, modules and services that do not exist.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "bundle", "module", "service")
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
//
// Example:
//
//	b, err := fw.Bundle(id)
//	if api.IsNotFound(err) {
//	    return nil
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// Specific NotFoundError constructors for each resource type.
var (
	// NewBundleNotFoundError creates a bundle not found error.
	NewBundleNotFoundError = func(id int64) *NotFoundError {
		return NewNotFoundError("bundle", fmt.Sprintf("%d", id))
	}

	// NewServiceNotFoundError creates a service not found error.
	NewServiceNotFoundError = func(id int64) *NotFoundError {
		return NewNotFoundError("service", fmt.Sprintf("%d", id))
	}

	// NewActivatorNotFoundError creates an activator not found error.
	NewActivatorNotFoundError = func(name string) *NotFoundError {
		return NewNotFoundError("activator", name)
	}
)

// IllegalStateError is returned when an operation is requested on a bundle,
// service or framework whose state does not allow it.
type IllegalStateError struct {
	Operation string
	Subject   string
	State     string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("cannot %s %s in state %s", e.Operation, e.Subject, e.State)
}

// IsIllegalState checks if an error is an IllegalStateError.
func IsIllegalState(err error) bool {
	var ise *IllegalStateError
	return errors.As(err, &ise)
}

// NewIllegalStateError creates an IllegalStateError.
func NewIllegalStateError(operation, subject, state string) *IllegalStateError {
	return &IllegalStateError{Operation: operation, Subject: subject, State: state}
}
