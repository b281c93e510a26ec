package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// WebProcessor fetches a page and extracts its main content. The raw HTML is
// preserved in document metadata as a snapshot.
type WebProcessor struct {
	client *http.Client
}

// NewWebProcessor creates a web processor.
func NewWebProcessor(client *http.Client) *WebProcessor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebProcessor{client: client}
}

// Process implements Processor.
func (p *WebProcessor) Process(ctx context.Context, source Source) (*Document, error) {
	if err := expectSourceType(source, SourceWeb); err != nil {
		return nil, err
	}

	pageURL, err := url.Parse(source.SourceURL)
	if err != nil {
		return nil, processingErr(source, fmt.Errorf("invalid URL: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.SourceURL, nil)
	if err != nil {
		return nil, processingErr(source, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, processingErr(source, fmt.Errorf("fetching page: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, processingErr(source, fmt.Errorf("fetching page: status %d", resp.StatusCode))
	}

	rawHTML, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, processingErr(source, fmt.Errorf("reading page body: %w", err))
	}

	article, err := readability.FromReader(strings.NewReader(string(rawHTML)), pageURL)
	if err != nil {
		return nil, processingErr(source, fmt.Errorf("extracting content: %w", err))
	}

	// Empty extraction is not an error: the document just has no chunks.
	var chunks []Chunk
	for _, block := range strings.Split(article.TextContent, "\n\n") {
		text := strings.TrimSpace(block)
		if text == "" {
			continue
		}
		chunks = append(chunks, Chunk{Type: ChunkWebContent, Text: text, Index: len(chunks)})
	}

	title := source.Title
	if title == "" {
		title = article.Title
	}

	return &Document{
		SourceType:  SourceWeb,
		SourceURL:   source.SourceURL,
		Title:       title,
		Chunks:      chunks,
		ProcessedAt: time.Now().UTC(),
		Metadata: map[string]any{
			"content_snapshot": string(rawHTML),
			"domain":           pageURL.Hostname(),
		},
	}, nil
}
