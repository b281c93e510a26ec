// Package auth implements API-key authentication, scope enforcement, and the
// per-tenant rate-limit gate. It is the only path that mints tenant context;
// repositories refuse to run without one.
package auth

import (
	"context"

	"github.com/courseforge/courseforge/pkg/models"
)

// TenantContext is the ephemeral per-request identity resolved from an API
// key. It never carries the key itself.
type TenantContext struct {
	TenantID       string
	TenantName     string
	Scopes         []models.Scope
	RateLimitPrep  int
	RateLimitCheck int
	KeyPrefix      string
}

// HasScope reports whether the tenant's key grants the scope.
func (tc *TenantContext) HasScope(s models.Scope) bool {
	for _, have := range tc.Scopes {
		if have == s {
			return true
		}
	}
	return false
}

// LimitFor returns the per-minute limit attached to the scope.
func (tc *TenantContext) LimitFor(s models.Scope) int {
	if s == models.ScopeCheck {
		return tc.RateLimitCheck
	}
	return tc.RateLimitPrep
}

type contextKey struct{}

// WithTenant attaches the tenant context to a request context.
func WithTenant(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// TenantFromContext extracts the tenant context minted by the auth gate.
func TenantFromContext(ctx context.Context) (*TenantContext, bool) {
	tc, ok := ctx.Value(contextKey{}).(*TenantContext)
	return tc, ok
}
