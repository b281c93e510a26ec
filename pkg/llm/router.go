package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/courseforge/courseforge/pkg/catalog"
)

// Router dispatches actions across model chains with two-level fallback:
// within the chain of the requested strategy, then across to the default
// strategy. Each invocation is independent; the only shared mutable state is
// the per-provider enabled flag.
type Router struct {
	registry   *catalog.Registry
	providers  map[string]Provider
	maxRetries int
	retryWait  time.Duration
	record     RecordFunc
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithMaxRetries sets the per-model attempt budget.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryWait sets the initial backoff interval between retries of the
// same model. Zero disables waiting (tests).
func WithRetryWait(d time.Duration) RouterOption {
	return func(r *Router) { r.retryWait = d }
}

// WithRecordFunc installs the ledger callback.
func WithRecordFunc(fn RecordFunc) RouterOption {
	return func(r *Router) { r.record = fn }
}

// NewRouter creates a router over a validated catalog and a provider map.
func NewRouter(registry *catalog.Registry, providers map[string]Provider, opts ...RouterOption) *Router {
	r := &Router{
		registry:   registry,
		providers:  providers,
		maxRetries: 2,
		retryWait:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CallOption customizes a single router call.
type CallOption func(*Request)

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(s string) CallOption {
	return func(req *Request) { req.SystemPrompt = s }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(req *Request) { req.Temperature = t }
}

// WithMaxTokens sets the output token budget.
func WithMaxTokens(n int) CallOption {
	return func(req *Request) { req.MaxTokens = n }
}

// WithStrategy selects the routing strategy (default strategy otherwise).
func WithStrategy(s string) CallOption {
	return func(req *Request) { req.Strategy = s }
}

// Complete dispatches a free-form completion for the action.
func (r *Router) Complete(ctx context.Context, action, prompt string, opts ...CallOption) (*Response, error) {
	return r.dispatch(ctx, action, prompt, nil, opts)
}

// CompleteStructured dispatches a completion whose output must unmarshal and
// validate into out. Structured-output failures are retried like transport
// failures.
func (r *Router) CompleteStructured(ctx context.Context, action, prompt string, out any, opts ...CallOption) (*Response, error) {
	return r.dispatch(ctx, action, prompt, out, opts)
}

func (r *Router) dispatch(ctx context.Context, action, prompt string, out any, opts []CallOption) (*Response, error) {
	req := Request{
		Prompt:   prompt,
		Action:   action,
		Strategy: catalog.DefaultStrategy,
	}
	for _, opt := range opts {
		opt(&req)
	}
	requested := req.Strategy

	trail := &AllModelsFailedError{Action: action}

	// An unknown strategy already resolves to the default chain inside the
	// registry; running the default chain a second time would be wasted work.
	effectiveDefault := requested == catalog.DefaultStrategy || !r.registry.HasStrategy(action, requested)

	resp, err := r.attemptChain(ctx, action, requested, req, out, trail)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	if !effectiveDefault {
		slog.Warn("Strategy chain exhausted, falling back to default",
			"action", action, "strategy", requested)

		resp, err = r.attemptChain(ctx, action, catalog.DefaultStrategy, req, out, trail)
		if err == nil {
			// Preserve provenance of the cross-strategy hop.
			resp.Strategy = fmt.Sprintf("%s→%s", requested, catalog.DefaultStrategy)
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, trail
}

// attemptChain walks one strategy's chain in declared order, retrying each
// model up to maxRetries before moving on. It appends every terminal model
// failure and provider skip to the trail.
func (r *Router) attemptChain(ctx context.Context, action, strategy string, req Request, out any, trail *AllModelsFailedError) (*Response, error) {
	chain, err := r.registry.Chain(action, strategy)
	if err != nil {
		return nil, err
	}
	trail.StrategiesTried = append(trail.StrategiesTried, strategy)
	req.Strategy = strategy

	log := slog.With("action", action, "strategy", strategy)

	for _, model := range chain {
		provider, registered := r.providers[model.Provider]
		if !registered {
			trail.Errors = append(trail.Errors, ModelError{ModelID: model.ModelID, Message: ErrProviderNotRegistered.Error()})
			log.Warn("Skipping model: provider not registered", "model_id", model.ModelID, "provider", model.Provider)
			continue
		}
		if !provider.Enabled() {
			trail.Errors = append(trail.Errors, ModelError{ModelID: model.ModelID, Message: ErrProviderDisabled.Error()})
			log.Warn("Skipping model: provider disabled", "model_id", model.ModelID, "provider", model.Provider)
			continue
		}

		resp, attemptErr := r.attemptModel(ctx, provider, model, req, out, log)
		if attemptErr == nil {
			return resp, nil
		}
		trail.Errors = append(trail.Errors, ModelError{ModelID: model.ModelID, Message: attemptErr.Error()})
		if ctx.Err() != nil {
			// Cancellation is terminal: no further models, no cross-strategy hop.
			return nil, attemptErr
		}
	}

	return nil, trail
}

// attemptModel retries a single model up to maxRetries. It emits exactly one
// ledger event per terminal outcome: the success, or the final failed retry.
func (r *Router) attemptModel(ctx context.Context, provider Provider, model catalog.ModelConfig, req Request, out any, log *slog.Logger) (*Response, error) {
	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = r.retryWait

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		start := time.Now()

		var resp *Response
		var err error
		if out != nil {
			resp, err = provider.CompleteStructured(ctx, model.ModelID, req, out)
		} else {
			resp, err = provider.Complete(ctx, model.ModelID, req)
		}

		if err == nil {
			r.enrich(resp, model, req)
			r.emit(ctx, resp, true, "")
			return resp, nil
		}

		lastErr = err
		log.Warn("Model attempt failed",
			"model_id", model.ModelID,
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"error", err)

		if ctx.Err() != nil {
			break
		}
		if attempt < r.maxRetries && r.retryWait > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(wait.NextBackOff()):
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	failed := &Response{
		Provider:   provider.Name(),
		ModelID:    model.ModelID,
		Action:     req.Action,
		Strategy:   req.Strategy,
		FinishedAt: time.Now().UTC(),
	}
	r.emit(ctx, failed, false, lastErr.Error())
	return nil, lastErr
}

// enrich stamps action/strategy and attaches the cost estimate when both
// token counts are known.
func (r *Router) enrich(resp *Response, model catalog.ModelConfig, req Request) {
	resp.Action = req.Action
	resp.Strategy = req.Strategy
	if resp.TokensIn != nil && resp.TokensOut != nil {
		resp.CostUSD = float64Ptr(model.EstimateCost(*resp.TokensIn, *resp.TokensOut))
	}
}

// emit invokes the ledger callback, containing any panic so accounting can
// never fail a business call.
func (r *Router) emit(ctx context.Context, resp *Response, success bool, errMsg string) {
	if r.record == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Ledger callback panicked", "panic", rec, "model_id", resp.ModelID)
		}
	}()
	r.record(ctx, resp, success, errMsg)
}
