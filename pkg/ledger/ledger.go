// Package ledger persists one record per LLM call for cost and latency
// attribution. Writes are asynchronous and failure-isolated: a ledger error
// can never fail the business request that triggered the call.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/auth"
	"github.com/courseforge/courseforge/pkg/llm"
	"github.com/courseforge/courseforge/pkg/models"
)

// Recorder writes ledger rows on its own database session, distinct from any
// business transaction, so it survives business rollbacks.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates a ledger recorder over its own session.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db.Session(&gorm.Session{NewDB: true})}
}

// RecordFunc returns the router callback. Tenant attribution is read from
// the request context; calls without one are recorded as system-initiated
// with a null tenant.
func (r *Recorder) RecordFunc() llm.RecordFunc {
	return func(ctx context.Context, resp *llm.Response, success bool, errMsg string) {
		var tenantID *string
		if tc, ok := auth.TenantFromContext(ctx); ok {
			id := tc.TenantID
			tenantID = &id
		}
		go r.write(tenantID, resp, success, errMsg)
	}
}

// write persists one row, swallowing every failure with a structured log
// entry that keeps the call observable even when the write is lost.
func (r *Recorder) write(tenantID *string, resp *llm.Response, success bool, errMsg string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Ledger write panicked", "panic", rec, "model_id", resp.ModelID)
		}
	}()

	row := models.LLMCall{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Action:    resp.Action,
		Strategy:  resp.Strategy,
		Provider:  resp.Provider,
		ModelID:   resp.ModelID,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		LatencyMS: resp.LatencyMS,
		CostUSD:   resp.CostUSD,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	}
	if errMsg != "" {
		row.ErrorMessage = &errMsg
	}

	if err := r.db.Create(&row).Error; err != nil {
		slog.Error("Failed to persist LLM call ledger row",
			"error", err,
			"action", resp.Action,
			"strategy", resp.Strategy,
			"provider", resp.Provider,
			"model_id", resp.ModelID,
			"call_success", success,
			"call_error", errMsg)
	}
}

// Noop is a ledger callback that records nothing (tests, admin tooling).
func Noop() llm.RecordFunc {
	return func(context.Context, *llm.Response, bool, string) {}
}
