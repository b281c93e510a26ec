package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/models"
)

// LLMCallService reads the call ledger. Unlike the other services it accepts
// a nil tenant for system-originated reads; tenant-scoped instances still
// filter every query.
type LLMCallService struct {
	db       *gorm.DB
	tenantID *string
}

// NewLLMCallService creates a ledger read service. tenantID may be nil for
// system-level access.
func NewLLMCallService(db *gorm.DB, tenantID *string) *LLMCallService {
	return &LLMCallService{db: db, tenantID: tenantID}
}

// CostReportRow aggregates ledger rows per (action, model).
type CostReportRow struct {
	Action     string  `json:"action"`
	ModelID    string  `json:"model_id"`
	Provider   string  `json:"provider"`
	Calls      int64   `json:"calls"`
	Failures   int64   `json:"failures"`
	TokensIn   int64   `json:"tokens_in"`
	TokensOut  int64   `json:"tokens_out"`
	CostUSD    float64 `json:"cost_usd"`
	AvgLatency float64 `json:"avg_latency_ms"`
}

// CostReport aggregates the ledger by action and model for the scope's
// tenant.
func (s *LLMCallService) CostReport(ctx context.Context) ([]CostReportRow, error) {
	query := s.db.WithContext(ctx).Model(&models.LLMCall{}).
		Select(`action, model_id, provider,
			COUNT(*) AS calls,
			SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failures,
			COALESCE(SUM(tokens_in), 0) AS tokens_in,
			COALESCE(SUM(tokens_out), 0) AS tokens_out,
			COALESCE(SUM(cost_usd), 0) AS cost_usd,
			COALESCE(AVG(latency_ms), 0) AS avg_latency`).
		Group("action, model_id, provider").
		Order("cost_usd DESC")

	if s.tenantID != nil {
		query = query.Where("tenant_id = ?", *s.tenantID)
	}

	var rows []CostReportRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListRecent returns the newest ledger rows for the scope's tenant.
func (s *LLMCallService) ListRecent(ctx context.Context, limit int) ([]models.LLMCall, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if s.tenantID != nil {
		query = query.Where("tenant_id = ?", *s.tenantID)
	}

	var calls []models.LLMCall
	if err := query.Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}
