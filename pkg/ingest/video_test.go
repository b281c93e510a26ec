package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampedTranscript(t *testing.T) {
	raw := "[00:05-00:12] Welcome to the course.\n" +
		"[00:12-01:03] Today we cover routing.\n" +
		"A line without timestamps.\n" +
		"\n" +
		"[12:30-12:45] Closing remarks."

	chunks := parseTimestampedTranscript(raw)
	require.Len(t, chunks, 4)

	assert.Equal(t, ChunkTranscript, chunks[0].Type)
	assert.Equal(t, "Welcome to the course.", chunks[0].Text)
	assert.Equal(t, float64(5), chunks[0].Metadata["start_sec"])
	assert.Equal(t, float64(12), chunks[0].Metadata["end_sec"])

	assert.Equal(t, float64(12), chunks[1].Metadata["start_sec"])
	assert.Equal(t, float64(63), chunks[1].Metadata["end_sec"])

	// Timestamp-less lines survive as plain transcript chunks.
	assert.Equal(t, "A line without timestamps.", chunks[2].Text)
	assert.Nil(t, chunks[2].Metadata)

	assert.Equal(t, float64(750), chunks[3].Metadata["start_sec"])
	assert.Equal(t, float64(765), chunks[3].Metadata["end_sec"])

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

// stubProcessor scripts composite-fallback outcomes.
type stubProcessor struct {
	doc   *Document
	err   error
	calls int
}

func (s *stubProcessor) Process(_ context.Context, _ Source) (*Document, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

func TestComposite_PrimarySuccessSkipsFallback(t *testing.T) {
	primary := &stubProcessor{doc: &Document{Metadata: map[string]any{"strategy": "gemini"}}}
	fallback := &stubProcessor{doc: &Document{Metadata: map[string]any{"strategy": "whisper"}}}

	composite := NewCompositeVideoProcessor(primary, fallback, true)
	doc, err := composite.Process(context.Background(), Source{SourceType: SourceVideo})
	require.NoError(t, err)
	assert.Equal(t, "gemini", doc.Metadata["strategy"])
	assert.Zero(t, fallback.calls)
}

func TestComposite_FallbackOnPrimaryFailure(t *testing.T) {
	primary := &stubProcessor{err: errors.New("vision quota exhausted")}
	fallback := &stubProcessor{doc: &Document{Metadata: map[string]any{"strategy": "whisper"}}}

	composite := NewCompositeVideoProcessor(primary, fallback, true)
	doc, err := composite.Process(context.Background(), Source{SourceType: SourceVideo})
	require.NoError(t, err)
	assert.Equal(t, "whisper", doc.Metadata["strategy"])
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestComposite_FallbackDisabledReRaisesPrimaryError(t *testing.T) {
	primaryErr := errors.New("vision quota exhausted")
	primary := &stubProcessor{err: primaryErr}
	fallback := &stubProcessor{doc: &Document{}}

	composite := NewCompositeVideoProcessor(primary, fallback, false)
	_, err := composite.Process(context.Background(), Source{SourceType: SourceVideo})
	assert.ErrorIs(t, err, primaryErr)
	assert.Zero(t, fallback.calls)
}

func TestWhisper_MissingTranscoderBinary(t *testing.T) {
	p := NewWhisperVideoProcessor("definitely-not-a-real-binary-9000", "whisper", 1)
	_, err := p.Process(context.Background(), Source{
		SourceType: SourceVideo,
		SourceURL:  "lecture.mp4",
		LocalPath:  "/tmp/lecture.mp4",
	})
	require.Error(t, err)

	var pe *ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "not found")
}

func TestVideoProcessors_RejectWrongSourceType(t *testing.T) {
	whisper := NewWhisperVideoProcessor("", "", 1)
	_, err := whisper.Process(context.Background(), Source{SourceType: SourceText})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
