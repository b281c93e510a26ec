package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/ingest"
	"github.com/courseforge/courseforge/pkg/models"
	"github.com/courseforge/courseforge/pkg/objectstore"
)

// ProcessorSet resolves a processor per source type.
type ProcessorSet struct {
	Video        ingest.Processor
	Presentation ingest.Processor
	Text         ingest.Processor
	Web          ingest.Processor
}

// forType returns the processor handling the given source type.
func (ps ProcessorSet) forType(t ingest.SourceType) (ingest.Processor, error) {
	switch t {
	case ingest.SourceVideo:
		return ps.Video, nil
	case ingest.SourcePresentation:
		return ps.Presentation, nil
	case ingest.SourceText:
		return ps.Text, nil
	case ingest.SourceWeb:
		return ps.Web, nil
	default:
		return nil, fmt.Errorf("%w: %s", ingest.ErrUnsupportedFormat, t)
	}
}

// Executor processes one claimed material end to end.
type Executor struct {
	db         *gorm.DB
	store      *objectstore.Store
	processors ProcessorSet
}

// NewExecutor creates a material executor. store may be nil when only
// URL-based materials are ingested (tests).
func NewExecutor(db *gorm.DB, store *objectstore.Store, processors ProcessorSet) *Executor {
	return &Executor{db: db, store: store, processors: processors}
}

// Execute runs the processor for a material and records the terminal state.
// A processing failure marks the row errored; it never propagates.
func (e *Executor) Execute(ctx context.Context, material *models.SourceMaterial) {
	doc, err := e.process(ctx, material)
	if err != nil {
		e.markError(ctx, material, err)
		return
	}
	e.markReady(ctx, material, doc)
}

func (e *Executor) process(ctx context.Context, material *models.SourceMaterial) (*ingest.Document, error) {
	sourceType := ingest.SourceType(material.SourceType)

	processor, err := e.processors.forType(sourceType)
	if err != nil {
		return nil, err
	}
	if processor == nil {
		return nil, fmt.Errorf("no processor configured for %s materials", sourceType)
	}

	source := ingest.Source{
		SourceType: sourceType,
		SourceURL:  material.SourceURL,
		Title:      material.Title,
	}

	// File-based materials live in object storage; stage them locally.
	if material.ObjectKey != "" {
		if e.store == nil {
			return nil, fmt.Errorf("material %s has a payload but no object store is configured", material.ID)
		}
		localPath, err := e.store.FetchToTemp(ctx, material.ObjectKey)
		if err != nil {
			return nil, err
		}
		defer os.Remove(localPath)
		source.LocalPath = localPath
	}

	return processor.Process(ctx, source)
}

func (e *Executor) markReady(ctx context.Context, material *models.SourceMaterial, doc *ingest.Document) {
	payload, err := json.Marshal(doc)
	if err != nil {
		e.markError(ctx, material, err)
		return
	}
	now := time.Now().UTC()
	err = e.db.WithContext(ctx).Model(&models.SourceMaterial{}).
		Where("id = ?", material.ID).
		Updates(map[string]any{
			"status":        models.MaterialReady,
			"document_json": string(payload),
			"processed_at":  now,
			"error_message": nil,
		}).Error
	if err != nil {
		slog.Error("Failed to mark material ready", "material_id", material.ID, "error", err)
	}
}

func (e *Executor) markError(ctx context.Context, material *models.SourceMaterial, cause error) {
	slog.Warn("Material processing failed", "material_id", material.ID, "error", cause)
	err := e.db.WithContext(ctx).Model(&models.SourceMaterial{}).
		Where("id = ?", material.ID).
		Updates(map[string]any{
			"status":        models.MaterialError,
			"error_message": cause.Error(),
		}).Error
	if err != nil {
		slog.Error("Failed to mark material errored", "material_id", material.ID, "error", err)
	}
}
