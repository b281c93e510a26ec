package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/config"
	"github.com/courseforge/courseforge/pkg/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedTenantWithKey(t *testing.T, db *gorm.DB, name string, scopes []models.Scope) (tenant models.Tenant, plaintext string) {
	t.Helper()
	plaintext, err := GenerateKey(config.EnvDevelopment)
	require.NoError(t, err)
	keyHash, keyPrefix := KeyParts(plaintext)

	tenant = models.Tenant{ID: uuid.NewString(), Name: name, Active: true, CreatedAt: time.Now()}
	require.NoError(t, db.Create(&tenant).Error)

	key := models.APIKey{
		ID:             uuid.NewString(),
		TenantID:       tenant.ID,
		KeyHash:        keyHash,
		KeyPrefix:      keyPrefix,
		Scopes:         scopes,
		RateLimitPrep:  10,
		RateLimitCheck: 20,
		Active:         true,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, db.Create(&key).Error)
	return tenant, plaintext
}

func TestGenerateKey_Format(t *testing.T) {
	live, err := GenerateKey(config.EnvProduction)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^cs_live_[0-9a-f]{32}$`), live)

	test, err := GenerateKey(config.EnvDevelopment)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^cs_test_[0-9a-f]{32}$`), test)

	other, err := GenerateKey(config.EnvDevelopment)
	require.NoError(t, err)
	assert.NotEqual(t, test, other)
}

func TestKeyParts(t *testing.T) {
	keyHash, keyPrefix := KeyParts("cs_test_0123456789abcdef0123456789abcdef")
	assert.Len(t, keyHash, 64)
	assert.Equal(t, "cs_test_0123", keyPrefix)
	// Deterministic: same plaintext, same hash.
	again, _ := KeyParts("cs_test_0123456789abcdef0123456789abcdef")
	assert.Equal(t, keyHash, again)
}

func TestAuthenticate_ResolvesTenantContext(t *testing.T) {
	db := testDB(t)
	tenant, plaintext := seedTenantWithKey(t, db, "acme", []models.Scope{models.ScopePrep})

	svc := NewService(db)
	tc, err := svc.Authenticate(context.Background(), plaintext)
	require.NoError(t, err)

	assert.Equal(t, tenant.ID, tc.TenantID)
	assert.Equal(t, "acme", tc.TenantName)
	assert.Equal(t, []models.Scope{models.ScopePrep}, tc.Scopes)
	assert.Equal(t, 10, tc.RateLimitPrep)
	assert.Equal(t, 20, tc.RateLimitCheck)
	assert.Equal(t, plaintext[:12], tc.KeyPrefix)
}

func TestAuthenticate_Rejections(t *testing.T) {
	db := testDB(t)
	_, plaintext := seedTenantWithKey(t, db, "acme", []models.Scope{models.ScopePrep})
	svc := NewService(db)

	t.Run("missing key", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "cs_test_ffffffffffffffffffffffffffffffff")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("inactive key", func(t *testing.T) {
		require.NoError(t, db.Model(&models.APIKey{}).Where("1 = 1").Update("active", false).Error)
		_, err := svc.Authenticate(context.Background(), plaintext)
		assert.ErrorIs(t, err, ErrInvalidKey)
		require.NoError(t, db.Model(&models.APIKey{}).Where("1 = 1").Update("active", true).Error)
	})

	t.Run("inactive tenant", func(t *testing.T) {
		require.NoError(t, db.Model(&models.Tenant{}).Where("1 = 1").Update("active", false).Error)
		_, err := svc.Authenticate(context.Background(), plaintext)
		assert.ErrorIs(t, err, ErrInvalidKey)
		require.NoError(t, db.Model(&models.Tenant{}).Where("1 = 1").Update("active", true).Error)
	})

	t.Run("expired key", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		require.NoError(t, db.Model(&models.APIKey{}).Where("1 = 1").Update("expires_at", past).Error)
		_, err := svc.Authenticate(context.Background(), plaintext)
		assert.ErrorIs(t, err, ErrExpiredKey)
	})
}

// fixedLimiter scripts limiter outcomes for middleware tests.
type fixedLimiter struct {
	allowed    bool
	retryAfter int
	lastKey    string
	lastLimit  int
}

func (f *fixedLimiter) Check(key string, limit int, _ time.Duration) (bool, int) {
	f.lastKey = key
	f.lastLimit = limit
	return f.allowed, f.retryAfter
}

func middlewareRig(t *testing.T, db *gorm.DB, limiter *fixedLimiter, required ...models.Scope) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/probe",
		Authenticate(NewService(db)),
		RequireScope(limiter, required...),
		func(c *gin.Context) {
			tc := MustTenant(c)
			c.JSON(http.StatusOK, gin.H{"tenant": tc.TenantID})
		})
	return engine
}

func TestMiddleware_MissingKeyIs401(t *testing.T) {
	engine := middlewareRig(t, testDB(t), &fixedLimiter{allowed: true}, models.ScopePrep)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "detail")
}

func TestMiddleware_ScopeMismatchIs403(t *testing.T) {
	db := testDB(t)
	_, plaintext := seedTenantWithKey(t, db, "acme", []models.Scope{models.ScopeCheck})
	engine := middlewareRig(t, db, &fixedLimiter{allowed: true}, models.ScopePrep)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderName, plaintext)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMiddleware_FirstDeclaredScopeWins(t *testing.T) {
	db := testDB(t)
	_, plaintext := seedTenantWithKey(t, db, "acme", []models.Scope{models.ScopePrep, models.ScopeCheck})
	limiter := &fixedLimiter{allowed: true}
	// check declared first: the guard must match check, not prep.
	engine := middlewareRig(t, db, limiter, models.ScopeCheck, models.ScopePrep)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderName, plaintext)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, limiter.lastKey, ":check")
	assert.Equal(t, 20, limiter.lastLimit)
}

func TestMiddleware_RateLimitedIs429WithRetryAfter(t *testing.T) {
	db := testDB(t)
	_, plaintext := seedTenantWithKey(t, db, "acme", []models.Scope{models.ScopePrep})
	engine := middlewareRig(t, db, &fixedLimiter{allowed: false, retryAfter: 7}, models.ScopePrep)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderName, plaintext)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "7", w.Header().Get("Retry-After"))
}

func TestMiddleware_AdmitsAndMintsContext(t *testing.T) {
	db := testDB(t)
	tenant, plaintext := seedTenantWithKey(t, db, "acme", []models.Scope{models.ScopePrep})
	limiter := &fixedLimiter{allowed: true}
	engine := middlewareRig(t, db, limiter, models.ScopePrep)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderName, plaintext)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tenant.ID)
	assert.Equal(t, tenant.ID+":prep", limiter.lastKey)
	assert.Equal(t, 10, limiter.lastLimit)
}

func TestTenantContext_Propagation(t *testing.T) {
	tc := &TenantContext{TenantID: "t1"}
	ctx := WithTenant(context.Background(), tc)
	got, ok := TenantFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "t1", got.TenantID)

	_, ok = TenantFromContext(context.Background())
	assert.False(t, ok)
}
