package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/ingest"
	"github.com/courseforge/courseforge/pkg/models"
)

// MaterialService manages source materials for one tenant.
type MaterialService struct {
	db       *gorm.DB
	tenantID string
}

// NewMaterialService creates a material service scoped to a tenant.
func NewMaterialService(db *gorm.DB, tenantID string) (*MaterialService, error) {
	if tenantID == "" {
		return nil, ErrNoTenant
	}
	return &MaterialService{db: db, tenantID: tenantID}, nil
}

// Create enqueues a new material in pending state. ObjectKey points at the
// uploaded payload in object storage; URL-only materials leave it empty.
func (s *MaterialService) Create(ctx context.Context, courseID string, sourceType ingest.SourceType, sourceURL, title, objectKey string) (*models.SourceMaterial, error) {
	if err := s.assertCourse(ctx, courseID); err != nil {
		return nil, err
	}

	switch sourceType {
	case ingest.SourceVideo, ingest.SourcePresentation, ingest.SourceText, ingest.SourceWeb:
	default:
		return nil, NewValidationError("source_type", "unknown source type")
	}

	material := models.SourceMaterial{
		ID:         uuid.NewString(),
		TenantID:   s.tenantID,
		CourseID:   courseID,
		SourceType: string(sourceType),
		SourceURL:  sourceURL,
		Title:      title,
		ObjectKey:  objectKey,
		Status:     models.MaterialPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

// ListByCourse returns the materials of a course in creation order.
func (s *MaterialService) ListByCourse(ctx context.Context, courseID string) ([]models.SourceMaterial, error) {
	if err := s.assertCourse(ctx, courseID); err != nil {
		return nil, err
	}

	var materials []models.SourceMaterial
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND tenant_id = ?", courseID, s.tenantID).
		Order("created_at").
		Find(&materials).Error
	return materials, err
}

// ReadyDocuments loads the processed documents of every ready material of a
// course, in creation order.
func (s *MaterialService) ReadyDocuments(ctx context.Context, courseID string) ([]ingest.Document, []string, error) {
	if err := s.assertCourse(ctx, courseID); err != nil {
		return nil, nil, err
	}

	var materials []models.SourceMaterial
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND tenant_id = ? AND status = ?", courseID, s.tenantID, models.MaterialReady).
		Order("created_at").
		Find(&materials).Error
	if err != nil {
		return nil, nil, err
	}
	if len(materials) == 0 {
		return nil, nil, ErrNoReadyMaterial
	}

	docs := make([]ingest.Document, 0, len(materials))
	ids := make([]string, 0, len(materials))
	for _, material := range materials {
		var doc ingest.Document
		if err := json.Unmarshal([]byte(material.DocumentJSON), &doc); err != nil {
			return nil, nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, material.ID)
	}
	return docs, ids, nil
}

func (s *MaterialService) assertCourse(ctx context.Context, courseID string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Course{}).
		Where("id = ? AND tenant_id = ?", courseID, s.tenantID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// MappingService manages slide-video mappings for one tenant.
type MappingService struct {
	db       *gorm.DB
	tenantID string
}

// NewMappingService creates a mapping service scoped to a tenant.
func NewMappingService(db *gorm.DB, tenantID string) (*MappingService, error) {
	if tenantID == "" {
		return nil, ErrNoTenant
	}
	return &MappingService{db: db, tenantID: tenantID}, nil
}

// MappingResult reports a partial-success bulk upsert.
type MappingResult struct {
	Accepted []ingest.SlideVideoMapping
	Rejected []RejectedMapping
}

// RejectedMapping is one mapping entry that failed validation.
type RejectedMapping struct {
	Entry  ingest.SlideVideoMapping `json:"entry"`
	Reason string                   `json:"reason"`
}

// Replace validates and stores a mapping set for a course, replacing any
// previous set. Invalid entries are rejected individually so callers can
// report partial success.
func (s *MappingService) Replace(ctx context.Context, courseID string, entries []ingest.SlideVideoMapping) (*MappingResult, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Course{}).
		Where("id = ? AND tenant_id = ?", courseID, s.tenantID).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	result := &MappingResult{}
	for _, entry := range entries {
		if reason := validateMapping(entry); reason != "" {
			result.Rejected = append(result.Rejected, RejectedMapping{Entry: entry, Reason: reason})
			continue
		}
		result.Accepted = append(result.Accepted, entry)
	}
	if len(result.Accepted) == 0 {
		return result, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ? AND tenant_id = ?", courseID, s.tenantID).
			Delete(&models.SlideMapping{}).Error; err != nil {
			return err
		}
		for _, entry := range result.Accepted {
			row := models.SlideMapping{
				ID:            uuid.NewString(),
				TenantID:      s.tenantID,
				CourseID:      courseID,
				SlideNumber:   entry.SlideNumber,
				VideoTimecode: entry.VideoTimecode,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByCourse returns the stored mappings of a course.
func (s *MappingService) ListByCourse(ctx context.Context, courseID string) ([]ingest.SlideVideoMapping, error) {
	var rows []models.SlideMapping
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND tenant_id = ?", courseID, s.tenantID).
		Order("slide_number").
		Find(&rows).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	mappings := make([]ingest.SlideVideoMapping, 0, len(rows))
	for _, row := range rows {
		mappings = append(mappings, ingest.SlideVideoMapping{
			SlideNumber:   row.SlideNumber,
			VideoTimecode: row.VideoTimecode,
		})
	}
	return mappings, nil
}

func validateMapping(entry ingest.SlideVideoMapping) string {
	if entry.SlideNumber < 1 {
		return "slide_number must be positive"
	}
	if !timecodePattern.MatchString(entry.VideoTimecode) {
		return "video_timecode must be HH:MM:SS"
	}
	return ""
}
