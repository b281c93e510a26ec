// Package llm provides the provider adapters and the model router that
// dispatches actions across them with fallback, retry, and cost accounting.
package llm

import (
	"context"
	"time"
)

// Request is a uniform completion request handed to a provider adapter.
type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int

	// Action and Strategy are carried through for observability; adapters
	// ignore them, the router stamps them onto the response.
	Action   string
	Strategy string
}

// Response is the uniform result of one provider call.
type Response struct {
	Content    string    `json:"content"`
	Provider   string    `json:"provider"`
	ModelID    string    `json:"model_id"`
	TokensIn   *int      `json:"tokens_in,omitempty"`
	TokensOut  *int      `json:"tokens_out,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	CostUSD    *float64  `json:"cost_usd,omitempty"`
	Action     string    `json:"action"`
	Strategy   string    `json:"strategy"`
	FinishedAt time.Time `json:"finished_at"`
}

// RecordFunc is the optional ledger callback invoked for every terminal
// per-model attempt, success or failure. The request context is passed
// through so implementations can attribute the call to a tenant.
// Implementations must be safe for concurrent use; the router swallows
// panics from the callback.
type RecordFunc func(ctx context.Context, resp *Response, success bool, errMsg string)

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }
