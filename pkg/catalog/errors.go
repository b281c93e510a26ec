package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownAction is returned when a chain is requested for an action
	// absent from the routing table.
	ErrUnknownAction = errors.New("unknown action")

	// ErrCatalogNotFound is returned when the catalog file does not exist.
	ErrCatalogNotFound = errors.New("catalog file not found")

	// ErrInvalidYAML is returned when the catalog file fails to parse.
	ErrInvalidYAML = errors.New("invalid catalog YAML")
)

// ValidationError aggregates every catalog validation failure so operators
// can fix all of them in one pass. It is fatal at startup.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog validation failed with %d problem(s):\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// IsValidationError reports whether err is a catalog validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
