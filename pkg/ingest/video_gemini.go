package ingest

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/courseforge/courseforge/pkg/llm"
)

const videoTranscriptPrompt = `Transcribe the spoken content of this video.
Emit one line per utterance in the form [MM:SS-MM:SS] text, using the
utterance's start and end time. Do not add commentary.`

// GeminiVideoProcessor is the primary video path: the media is uploaded to
// the provider's file store and a vision model produces timestamped
// transcript lines.
type GeminiVideoProcessor struct {
	gemini  *llm.GeminiProvider
	modelID string
}

// NewGeminiVideoProcessor creates the vision-based video processor.
func NewGeminiVideoProcessor(gemini *llm.GeminiProvider, modelID string) *GeminiVideoProcessor {
	return &GeminiVideoProcessor{gemini: gemini, modelID: modelID}
}

// Process implements Processor.
func (p *GeminiVideoProcessor) Process(ctx context.Context, source Source) (*Document, error) {
	if err := expectSourceType(source, SourceVideo); err != nil {
		return nil, err
	}

	f, err := os.Open(source.LocalPath)
	if err != nil {
		return nil, processingErr(source, err)
	}
	defer f.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(source.LocalPath))
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	fileURI, err := p.gemini.UploadFile(ctx, f, mimeType)
	if err != nil {
		return nil, processingErr(source, fmt.Errorf("uploading video: %w", err))
	}

	resp, err := p.gemini.AnalyzeMedia(ctx, p.modelID, llm.Request{
		Prompt:    videoTranscriptPrompt,
		MaxTokens: 8192,
	}, fileURI, mimeType)
	if err != nil {
		return nil, processingErr(source, fmt.Errorf("analyzing video: %w", err))
	}

	return &Document{
		SourceType:  SourceVideo,
		SourceURL:   source.SourceURL,
		Title:       source.Title,
		Chunks:      parseTimestampedTranscript(resp.Content),
		ProcessedAt: time.Now().UTC(),
		Metadata:    map[string]any{"strategy": "gemini", "model_id": p.modelID},
	}, nil
}

var transcriptLine = regexp.MustCompile(`^\[(\d{1,2}):(\d{2})-(\d{1,2}):(\d{2})\]\s*(.*)$`)

// parseTimestampedTranscript turns "[MM:SS-MM:SS] text" lines into transcript
// chunks with fractional-second bounds. Lines without a timestamp are kept
// as plain transcript chunks.
func parseTimestampedTranscript(raw string) []Chunk {
	var chunks []Chunk
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := transcriptLine.FindStringSubmatch(line)
		if m == nil {
			chunks = append(chunks, Chunk{Type: ChunkTranscript, Text: line, Index: len(chunks)})
			continue
		}

		startMin, _ := strconv.Atoi(m[1])
		startSec, _ := strconv.Atoi(m[2])
		endMin, _ := strconv.Atoi(m[3])
		endSec, _ := strconv.Atoi(m[4])

		chunks = append(chunks, Chunk{
			Type:  ChunkTranscript,
			Text:  strings.TrimSpace(m[5]),
			Index: len(chunks),
			Metadata: map[string]any{
				"start_sec": float64(startMin*60 + startSec),
				"end_sec":   float64(endMin*60 + endSec),
			},
		})
	}
	return chunks
}
