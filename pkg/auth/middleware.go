package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge/pkg/models"
	"github.com/courseforge/courseforge/pkg/ratelimit"
)

// HeaderName is the request header carrying the API key.
const HeaderName = "X-API-Key"

// rateWindow is the sliding window the per-scope limits are expressed over.
const rateWindow = time.Minute

const tenantContextKey = "tenant_context"

// Authenticate returns gin middleware that resolves the API key header into
// a TenantContext, aborting with 401 otherwise. The context is stored on both
// the gin context and the request context so it flows into the service layer.
func Authenticate(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderName)
		tc, err := svc.Authenticate(c.Request.Context(), key)
		if err != nil {
			switch {
			case errors.Is(err, ErrExpiredKey):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "API key expired"})
			case errors.Is(err, ErrInvalidKey):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid API key"})
			default:
				slog.Error("Authentication lookup failed", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
			}
			return
		}

		c.Set(tenantContextKey, tc)
		c.Request = c.Request.WithContext(WithTenant(c.Request.Context(), tc))
		c.Next()
	}
}

// RequireScope returns gin middleware enforcing scopes and the matched
// scope's rate limit. The first required scope present in the tenant's
// scopes wins, deterministically by declaration order; the limiter is then
// consulted with key (tenant_id, matched_scope) and the scope's limit.
func RequireScope(limiter ratelimit.Limiter, required ...models.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := MustTenant(c)

		var matched models.Scope
		for _, scope := range required {
			if tc.HasScope(scope) {
				matched = scope
				break
			}
		}
		if matched == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "insufficient scope"})
			return
		}

		limit := tc.LimitFor(matched)
		key := fmt.Sprintf("%s:%s", tc.TenantID, matched)
		allowed, retryAfter := limiter.Check(key, limit, rateWindow)
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// MustTenant returns the TenantContext minted by Authenticate. It panics if
// the middleware chain did not run, which is a wiring bug.
func MustTenant(c *gin.Context) *TenantContext {
	v, ok := c.Get(tenantContextKey)
	if !ok {
		panic("auth: handler reached without tenant context; middleware not wired")
	}
	return v.(*TenantContext)
}
