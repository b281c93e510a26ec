package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"
)

// WhisperVideoProcessor is the local fallback video path: ffmpeg extracts a
// mono 16 kHz PCM track, then a local speech-to-text binary transcribes it.
// Transcription is CPU-bound, so at most maxConcurrent runs proceed at once,
// bounded by a weighted semaphore.
type WhisperVideoProcessor struct {
	ffmpegBin  string
	whisperBin string
	workers    *semaphore.Weighted
}

// NewWhisperVideoProcessor creates the local fallback processor with the
// given concurrency bound for transcription runs.
func NewWhisperVideoProcessor(ffmpegBin, whisperBin string, maxConcurrent int64) *WhisperVideoProcessor {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if whisperBin == "" {
		whisperBin = "whisper"
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &WhisperVideoProcessor{
		ffmpegBin:  ffmpegBin,
		whisperBin: whisperBin,
		workers:    semaphore.NewWeighted(maxConcurrent),
	}
}

// whisperOutput mirrors the transcription tool's JSON report.
type whisperOutput struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Process implements Processor.
func (p *WhisperVideoProcessor) Process(ctx context.Context, source Source) (*Document, error) {
	if err := expectSourceType(source, SourceVideo); err != nil {
		return nil, err
	}

	if _, err := exec.LookPath(p.ffmpegBin); err != nil {
		return nil, processingErr(source, fmt.Errorf("transcoder binary %q not found: %w", p.ffmpegBin, err))
	}

	if err := p.workers.Acquire(ctx, 1); err != nil {
		return nil, processingErr(source, err)
	}
	defer p.workers.Release(1)

	workDir, err := os.MkdirTemp("", "courseforge-whisper-*")
	if err != nil {
		return nil, processingErr(source, err)
	}
	defer os.RemoveAll(workDir)

	wavPath := filepath.Join(workDir, "audio.wav")
	if err := p.extractAudio(ctx, source.LocalPath, wavPath); err != nil {
		return nil, processingErr(source, err)
	}

	segments, err := p.transcribe(ctx, wavPath, workDir)
	if err != nil {
		return nil, processingErr(source, err)
	}

	var chunks []Chunk
	for _, seg := range segments.Segments {
		chunks = append(chunks, Chunk{
			Type:  ChunkTranscript,
			Text:  seg.Text,
			Index: len(chunks),
			Metadata: map[string]any{
				"start_sec": seg.Start,
				"end_sec":   seg.End,
			},
		})
	}

	return &Document{
		SourceType:  SourceVideo,
		SourceURL:   source.SourceURL,
		Title:       source.Title,
		Chunks:      chunks,
		ProcessedAt: time.Now().UTC(),
		Metadata:    map[string]any{"strategy": "whisper"},
	}, nil
}

// extractAudio shells out to ffmpeg for a mono 16 kHz PCM WAV.
func (p *WhisperVideoProcessor) extractAudio(ctx context.Context, videoPath, wavPath string) error {
	cmd := exec.CommandContext(ctx, p.ffmpegBin,
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		"-y", wavPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("audio extraction failed: %w: %s", err, truncate(string(out), 512))
	}
	return nil
}

// transcribe runs the speech-to-text tool, which writes a JSON report next
// to the audio file.
func (p *WhisperVideoProcessor) transcribe(ctx context.Context, wavPath, workDir string) (*whisperOutput, error) {
	cmd := exec.CommandContext(ctx, p.whisperBin,
		wavPath,
		"--output_format", "json",
		"--output_dir", workDir,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("transcription failed: %w: %s", err, truncate(string(out), 512))
	}

	reportPath := filepath.Join(workDir, "audio.json")
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("reading transcription report: %w", err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing transcription report: %w", err)
	}
	return &parsed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
