package architect

import (
	"context"

	"github.com/courseforge/courseforge/pkg/ingest"
	"github.com/courseforge/courseforge/pkg/llm"
)

// courseStructuringAction is the routed action the agent invokes.
const courseStructuringAction = "course_structuring"

// Default generation parameters.
const (
	DefaultPromptPath = "prompts/architect/v1.yaml"
	defaultMaxTokens  = 8192
)

// Agent is the two-step architect pipeline: prepare prompts from the course
// context, then generate a validated structure through the router. The split
// keeps it promotable to a multi-step orchestrator later.
type Agent struct {
	router      *llm.Router
	promptPath  string
	temperature float64
	maxTokens   int
	strategy    string
}

// AgentOption customizes the agent.
type AgentOption func(*Agent)

// WithPromptPath overrides the prompt pack location.
func WithPromptPath(path string) AgentOption {
	return func(a *Agent) { a.promptPath = path }
}

// WithStrategy selects the routing strategy for generation.
func WithStrategy(strategy string) AgentOption {
	return func(a *Agent) { a.strategy = strategy }
}

// WithMaxTokens overrides the output token budget.
func WithMaxTokens(n int) AgentOption {
	return func(a *Agent) { a.maxTokens = n }
}

// NewAgent creates an architect agent with deterministic defaults
// (temperature 0).
func NewAgent(router *llm.Router, opts ...AgentOption) *Agent {
	a := &Agent{
		router:     router,
		promptPath: DefaultPromptPath,
		maxTokens:  defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PreparePrompts is step one: serialize the context into the versioned
// prompt pack.
func (a *Agent) PreparePrompts(courseCtx *ingest.CourseContext) (*PreparedPrompt, error) {
	return PreparePrompts(a.promptPath, courseCtx)
}

// Generate is step two: one structured router call. Router errors propagate
// verbatim; the agent never swallows them.
func (a *Agent) Generate(ctx context.Context, prepared *PreparedPrompt) (*CourseStructure, error) {
	opts := []llm.CallOption{
		llm.WithSystemPrompt(prepared.SystemPrompt),
		llm.WithTemperature(a.temperature),
		llm.WithMaxTokens(a.maxTokens),
	}
	if a.strategy != "" {
		opts = append(opts, llm.WithStrategy(a.strategy))
	}

	var structure CourseStructure
	if _, err := a.router.CompleteStructured(ctx, courseStructuringAction, prepared.UserPrompt, &structure, opts...); err != nil {
		return nil, err
	}
	return &structure, nil
}

// Run executes both steps.
func (a *Agent) Run(ctx context.Context, courseCtx *ingest.CourseContext) (*CourseStructure, error) {
	prepared, err := a.PreparePrompts(courseCtx)
	if err != nil {
		return nil, err
	}
	return a.Generate(ctx, prepared)
}
