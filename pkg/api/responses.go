package api

import (
	"time"

	"github.com/courseforge/courseforge/pkg/catalog"
	"github.com/courseforge/courseforge/pkg/database"
	"github.com/courseforge/courseforge/pkg/models"
	"github.com/courseforge/courseforge/pkg/queue"
	"github.com/courseforge/courseforge/pkg/services"
)

// healthResponse is the GET /health body.
type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  healthChecks      `json:"checks"`
	Catalog catalog.Stats     `json:"catalog"`
	Workers *queue.PoolHealth `json:"workers,omitempty"`
}

type healthChecks struct {
	DB *database.HealthStatus `json:"db"`
	S3 string                 `json:"s3"`
}

// courseResponse is the GET /courses/:id body.
type courseResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Modules     []moduleResponse   `json:"modules"`
	Materials   []materialResponse `json:"materials"`
}

type moduleResponse struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Order   int              `json:"order"`
	Lessons []lessonResponse `json:"lessons"`
}

type lessonResponse struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Order              int               `json:"order"`
	VideoStartTimecode *string           `json:"video_start_timecode,omitempty"`
	VideoEndTimecode   *string           `json:"video_end_timecode,omitempty"`
	SlideRangeStart    *int              `json:"slide_range_start,omitempty"`
	SlideRangeEnd      *int              `json:"slide_range_end,omitempty"`
	Concepts           []models.Concept  `json:"concepts"`
	Exercises          []models.Exercise `json:"exercises"`
}

type materialResponse struct {
	ID           string     `json:"id"`
	SourceType   string     `json:"source_type"`
	SourceURL    string     `json:"source_url,omitempty"`
	Title        string     `json:"title,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// mappingResponse is the POST /courses/:id/slide-mapping body.
type mappingResponse struct {
	Accepted int                        `json:"accepted"`
	Rejected []services.RejectedMapping `json:"rejected,omitempty"`
}

// generateResponse is the POST /courses/:id/structure/generate body.
type generateResponse struct {
	Status      string `json:"status"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Structure   any    `json:"structure,omitempty"`
}

func courseToResponse(course *models.Course) courseResponse {
	resp := courseResponse{
		ID:          course.ID,
		Title:       course.Title,
		Description: course.Description,
		CreatedAt:   course.CreatedAt,
		UpdatedAt:   course.UpdatedAt,
		Modules:     []moduleResponse{},
		Materials:   []materialResponse{},
	}
	for _, module := range course.Modules {
		resp.Modules = append(resp.Modules, moduleToResponse(module))
	}
	for _, material := range course.Materials {
		resp.Materials = append(resp.Materials, materialToResponse(material))
	}
	return resp
}

func moduleToResponse(module models.CourseModule) moduleResponse {
	resp := moduleResponse{
		ID:      module.ID,
		Title:   module.Title,
		Order:   module.Order,
		Lessons: []lessonResponse{},
	}
	for _, lesson := range module.Lessons {
		resp.Lessons = append(resp.Lessons, lessonToResponse(lesson))
	}
	return resp
}

func lessonToResponse(lesson models.Lesson) lessonResponse {
	return lessonResponse{
		ID:                 lesson.ID,
		Title:              lesson.Title,
		Order:              lesson.Order,
		VideoStartTimecode: lesson.VideoStartTimecode,
		VideoEndTimecode:   lesson.VideoEndTimecode,
		SlideRangeStart:    lesson.SlideRangeStart,
		SlideRangeEnd:      lesson.SlideRangeEnd,
		Concepts:           lesson.Concepts,
		Exercises:          lesson.Exercises,
	}
}

func materialToResponse(material models.SourceMaterial) materialResponse {
	return materialResponse{
		ID:           material.ID,
		SourceType:   material.SourceType,
		SourceURL:    material.SourceURL,
		Title:        material.Title,
		Status:       string(material.Status),
		ErrorMessage: material.ErrorMessage,
		CreatedAt:    material.CreatedAt,
		ProcessedAt:  material.ProcessedAt,
	}
}
