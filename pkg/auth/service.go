package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/models"
)

var (
	// ErrInvalidKey covers missing, unknown, and inactive keys, and inactive
	// tenants. Callers surface all of them identically as 401.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrExpiredKey marks a key past its expires_at.
	ErrExpiredKey = errors.New("API key expired")
)

// Service resolves plaintext API keys into tenant contexts.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates an auth service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Authenticate resolves a plaintext key to a TenantContext. Comparison is by
// SHA-256 hash; the plaintext is never used in a query predicate.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (*TenantContext, error) {
	if plaintext == "" {
		return nil, ErrInvalidKey
	}

	hash := HashKey(plaintext)

	var key models.APIKey
	err := s.db.WithContext(ctx).
		Where("key_hash = ? AND active = ?", hash, true).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("looking up API key: %w", err)
	}

	if key.ExpiresAt != nil && key.ExpiresAt.Before(s.now()) {
		return nil, ErrExpiredKey
	}

	var tenant models.Tenant
	err = s.db.WithContext(ctx).
		Where("id = ? AND active = ?", key.TenantID, true).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("looking up tenant: %w", err)
	}

	return &TenantContext{
		TenantID:       tenant.ID,
		TenantName:     tenant.Name,
		Scopes:         key.Scopes,
		RateLimitPrep:  key.RateLimitPrep,
		RateLimitCheck: key.RateLimitCheck,
		KeyPrefix:      key.KeyPrefix,
	}, nil
}
