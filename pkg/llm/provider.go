package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// Provider is the uniform adapter over one vendor SDK. Implementations are
// safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier (e.g. "gemini", "anthropic").
	Name() string

	// Complete sends a free-form completion request to the given model.
	Complete(ctx context.Context, modelID string, req Request) (*Response, error)

	// CompleteStructured sends a completion request whose output must
	// unmarshal into out (a pointer to struct). Validation failure returns
	// ErrStructuredOutput.
	CompleteStructured(ctx context.Context, modelID string, req Request, out any) (*Response, error)

	// Enabled reports the runtime enable flag. Disabled providers are
	// skipped by the router.
	Enabled() bool

	// SetEnabled flips the runtime enable flag (operator policy).
	SetEnabled(bool)
}

// enabledFlag implements the runtime enable switch shared by all adapters.
// Single writer (operator policy), many readers (router), so an atomic
// boolean is sufficient.
type enabledFlag struct {
	disabled atomic.Bool
}

func (f *enabledFlag) Enabled() bool      { return !f.disabled.Load() }
func (f *enabledFlag) SetEnabled(on bool) { f.disabled.Store(!on) }

// Validatable lets structured-output targets enforce their own invariants
// beyond JSON shape.
type Validatable interface {
	Validate() error
}

// decodeStructured parses raw model output into out and runs its validation.
// Markdown code fences are stripped first since several vendors wrap JSON in
// them even when asked not to.
func decodeStructured(content string, out any) error {
	cleaned := stripCodeFence(content)
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrStructuredOutput, err)
	}
	if v, ok := out.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrStructuredOutput, err)
		}
	}
	return nil
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// structuredSystemPrompt injects the output contract into the system prompt
// for vendors without a native structured-output mode.
func structuredSystemPrompt(base string, out any) string {
	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a single JSON object only, no prose and no markdown fences.")
	if shape, err := json.Marshal(out); err == nil && string(shape) != "null" {
		b.WriteString(" The object must follow this shape: ")
		b.Write(shape)
	}
	return b.String()
}
