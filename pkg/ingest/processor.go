package ingest

import (
	"context"
	"errors"
	"fmt"
)

// Processor extracts one source into a Document. Implementations that need
// LLM capability receive the router at construction.
type Processor interface {
	Process(ctx context.Context, source Source) (*Document, error)
}

var (
	// ErrUnsupportedFormat is returned for unknown file extensions or a
	// source type the processor does not handle. Never retried.
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrNoDocuments is returned by the merge step for an empty input list.
	ErrNoDocuments = errors.New("no documents to merge")
)

// ProcessingError wraps an extraction failure (fetch, subprocess, parse)
// with the source it occurred on.
type ProcessingError struct {
	SourceURL string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing %s: %v", e.SourceURL, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// processingErr wraps err for the given source.
func processingErr(source Source, err error) error {
	return &ProcessingError{SourceURL: source.SourceURL, Err: err}
}

// expectSourceType rejects sources handed to the wrong processor.
func expectSourceType(source Source, want SourceType) error {
	if source.SourceType != want {
		return fmt.Errorf("%w: processor handles %s sources, got %s",
			ErrUnsupportedFormat, want, source.SourceType)
	}
	return nil
}
