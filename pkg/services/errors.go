package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found within the
	// caller's tenant. Cross-tenant access reads identically, so existence
	// never leaks.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to create a duplicate entity
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoTenant is returned when a tenant-scoped service is constructed
	// without a tenant id (a wiring bug, never a user error).
	ErrNoTenant = errors.New("tenant-scoped service requires a tenant id")

	// ErrGenerationInProgress is returned when a structure generation is
	// already running for the course.
	ErrGenerationInProgress = errors.New("structure generation already in progress")

	// ErrNoReadyMaterial is returned when generation is requested before
	// any source material finished ingestion.
	ErrNoReadyMaterial = errors.New("course has no ready source material")
)

// ValidationError wraps field-specific validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
