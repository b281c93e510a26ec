package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/architect"
	"github.com/courseforge/courseforge/pkg/models"
)

var timecodePattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

// SnapshotService stores structure generation results keyed by a fingerprint
// of the inputs, making repeated generation over the same material set
// idempotent.
type SnapshotService struct {
	db       *gorm.DB
	tenantID string
}

// NewSnapshotService creates a snapshot service scoped to a tenant.
func NewSnapshotService(db *gorm.DB, tenantID string) (*SnapshotService, error) {
	if tenantID == "" {
		return nil, ErrNoTenant
	}
	return &SnapshotService{db: db, tenantID: tenantID}, nil
}

// Fingerprint derives the content hash of a generation request: the sorted
// ready-material ids plus the mode. Identical inputs produce identical
// fingerprints.
func Fingerprint(materialIDs []string, mode string) string {
	sorted := make([]string, len(materialIDs))
	copy(sorted, materialIDs)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(mode + "|" + strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:])
}

// Find returns the stored structure for a fingerprint, or ErrNotFound.
func (s *SnapshotService) Find(ctx context.Context, courseID, fingerprint string) (*architect.CourseStructure, string, error) {
	var row models.StructureSnapshot
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND tenant_id = ? AND fingerprint = ?", courseID, s.tenantID, fingerprint).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}

	var structure architect.CourseStructure
	if err := json.Unmarshal([]byte(row.StructureJSON), &structure); err != nil {
		return nil, "", err
	}
	return &structure, row.ID, nil
}

// Save stores a generation result under its fingerprint.
func (s *SnapshotService) Save(ctx context.Context, courseID, fingerprint string, structure *architect.CourseStructure) (string, error) {
	payload, err := json.Marshal(structure)
	if err != nil {
		return "", err
	}

	row := models.StructureSnapshot{
		ID:            uuid.NewString(),
		TenantID:      s.tenantID,
		CourseID:      courseID,
		Fingerprint:   fingerprint,
		StructureJSON: string(payload),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}
