// Package services implements the tenant-scoped persistence boundary. Every
// service is constructed with the caller's tenant id and injects it into
// every created row and every query predicate.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/architect"
	"github.com/courseforge/courseforge/pkg/models"
)

// CourseService manages courses and their persisted structure for one tenant.
type CourseService struct {
	db       *gorm.DB
	tenantID string
}

// NewCourseService creates a course service scoped to a tenant.
func NewCourseService(db *gorm.DB, tenantID string) (*CourseService, error) {
	if tenantID == "" {
		return nil, ErrNoTenant
	}
	return &CourseService{db: db, tenantID: tenantID}, nil
}

// Create persists a new course owned by the tenant.
func (s *CourseService) Create(ctx context.Context, title, description string) (*models.Course, error) {
	if title == "" {
		return nil, NewValidationError("title", "must not be empty")
	}

	now := time.Now().UTC()
	course := models.Course{
		ID:          uuid.NewString(),
		TenantID:    s.tenantID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// GetByID loads a course with its structure and material states. A course
// owned by a foreign tenant reads as not found.
func (s *CourseService) GetByID(ctx context.Context, courseID string) (*models.Course, error) {
	var course models.Course
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", courseID, s.tenantID).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("order_index") }).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("order_index") }).
		Preload("Modules.Lessons.Concepts").
		Preload("Modules.Lessons.Exercises").
		Preload("Materials").
		First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &course, nil
}

// GetLesson loads one lesson of a course, verifying course ownership first.
func (s *CourseService) GetLesson(ctx context.Context, courseID, lessonID string) (*models.Lesson, error) {
	if err := s.assertCourse(ctx, courseID); err != nil {
		return nil, err
	}

	var lesson models.Lesson
	err := s.db.WithContext(ctx).
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id").
		Where("lessons.id = ? AND course_modules.course_id = ?", lessonID, courseID).
		Preload("Concepts").
		Preload("Exercises").
		First(&lesson).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// SaveStructure replaces the course's persisted outline with a validated
// generation result, in one transaction.
func (s *CourseService) SaveStructure(ctx context.Context, courseID string, structure *architect.CourseStructure) error {
	if err := s.assertCourse(ctx, courseID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Replace the previous outline wholesale; lessons and below cascade.
		if err := tx.Where("course_id = ?", courseID).Delete(&models.CourseModule{}).Error; err != nil {
			return err
		}

		for _, mod := range structure.Modules {
			moduleRow := models.CourseModule{
				ID:       uuid.NewString(),
				CourseID: courseID,
				Title:    mod.Title,
				Order:    mod.Order,
			}
			if err := tx.Create(&moduleRow).Error; err != nil {
				return err
			}

			for _, lesson := range mod.Lessons {
				lessonRow := models.Lesson{
					ID:                 uuid.NewString(),
					ModuleID:           moduleRow.ID,
					Title:              lesson.Title,
					Order:              lesson.Order,
					VideoStartTimecode: lesson.VideoStartTimecode,
					VideoEndTimecode:   lesson.VideoEndTimecode,
				}
				if lesson.SlideRange != nil {
					start, end := lesson.SlideRange.Start, lesson.SlideRange.End
					lessonRow.SlideRangeStart = &start
					lessonRow.SlideRangeEnd = &end
				}
				if err := tx.Create(&lessonRow).Error; err != nil {
					return err
				}

				for _, concept := range lesson.Concepts {
					refs := make([]models.WebReference, 0, len(concept.WebReferences))
					for _, ref := range concept.WebReferences {
						refs = append(refs, models.WebReference(ref))
					}
					conceptRow := models.Concept{
						ID:              uuid.NewString(),
						LessonID:        lessonRow.ID,
						Title:           concept.Title,
						Definition:      concept.Definition,
						Examples:        concept.Examples,
						Timecodes:       concept.Timecodes,
						SlideReferences: concept.SlideReferences,
						WebReferences:   refs,
					}
					if err := tx.Create(&conceptRow).Error; err != nil {
						return err
					}
				}

				for _, exercise := range lesson.Exercises {
					exerciseRow := models.Exercise{
						ID:                uuid.NewString(),
						LessonID:          lessonRow.ID,
						Description:       exercise.Description,
						ReferenceSolution: exercise.ReferenceSolution,
						GradingCriteria:   exercise.GradingCriteria,
						DifficultyLevel:   exercise.DifficultyLevel,
					}
					if err := tx.Create(&exerciseRow).Error; err != nil {
						return err
					}
				}
			}
		}

		course := models.Course{}
		return tx.Model(&course).
			Where("id = ? AND tenant_id = ?", courseID, s.tenantID).
			Updates(map[string]any{
				"title":       structure.Title,
				"description": structure.Description,
				"updated_at":  time.Now().UTC(),
			}).Error
	})
}

// assertCourse verifies the course exists within the tenant.
func (s *CourseService) assertCourse(ctx context.Context, courseID string) error {
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
