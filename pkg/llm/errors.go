package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStructuredOutput marks a response that failed schema validation.
	// It is transient: the router retries it like a transport failure.
	ErrStructuredOutput = errors.New("structured output validation failed")

	// ErrProviderDisabled marks a provider skipped because its enabled flag
	// is off.
	ErrProviderDisabled = errors.New("provider disabled")

	// ErrProviderNotRegistered marks a model whose provider was never
	// constructed (missing credentials).
	ErrProviderNotRegistered = errors.New("provider not registered")
)

// ModelError pairs a model id with the error that exhausted it.
type ModelError struct {
	ModelID string `json:"model_id"`
	Message string `json:"message"`
}

// AllModelsFailedError is returned when every model in every attempted
// strategy has been exhausted. It carries the full per-model error trail.
type AllModelsFailedError struct {
	Action          string       `json:"action"`
	StrategiesTried []string     `json:"strategies_tried"`
	Errors          []ModelError `json:"errors"`
}

func (e *AllModelsFailedError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, me := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", me.ModelID, me.Message))
	}
	return fmt.Sprintf("all models failed for action %q (strategies tried: %s): %s",
		e.Action, strings.Join(e.StrategiesTried, ", "), strings.Join(parts, "; "))
}

// IsAllModelsFailed reports whether err is a chain-exhaustion failure.
func IsAllModelsFailed(err error) bool {
	var amf *AllModelsFailedError
	return errors.As(err, &amf)
}

// ProviderError wraps a vendor API failure with enough context to log.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}
