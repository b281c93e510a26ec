package ingest

import (
	"context"
	"log/slog"
)

// CompositeVideoProcessor tries the primary (vision) video path and, when
// enabled, falls back to the local processor on any primary failure.
type CompositeVideoProcessor struct {
	primary         Processor
	fallback        Processor
	fallbackEnabled bool
}

// NewCompositeVideoProcessor creates the composite. fallback may be nil when
// fallbackEnabled is false.
func NewCompositeVideoProcessor(primary, fallback Processor, fallbackEnabled bool) *CompositeVideoProcessor {
	return &CompositeVideoProcessor{
		primary:         primary,
		fallback:        fallback,
		fallbackEnabled: fallbackEnabled,
	}
}

// Process implements Processor.
func (p *CompositeVideoProcessor) Process(ctx context.Context, source Source) (*Document, error) {
	doc, err := p.primary.Process(ctx, source)
	if err == nil {
		return doc, nil
	}
	if !p.fallbackEnabled || p.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	slog.Warn("Primary video processing failed, trying local fallback",
		"source_url", source.SourceURL, "error", err)
	return p.fallback.Process(ctx, source)
}
