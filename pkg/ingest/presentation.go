package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/courseforge/courseforge/pkg/llm"
)

// slideAnalysisAction is the routed action for per-slide visual analysis.
const slideAnalysisAction = "slide_analysis"

// PresentationProcessor extracts PDF and PPTX decks into slide_text chunks,
// numbered 1-based. With a router it additionally asks a vision-capable
// model for a per-slide description; vision failures degrade gracefully and
// the text chunk survives.
type PresentationProcessor struct {
	router *llm.Router
}

// NewPresentationProcessor creates a presentation processor. router may be
// nil to disable slide descriptions.
func NewPresentationProcessor(router *llm.Router) *PresentationProcessor {
	return &PresentationProcessor{router: router}
}

// Process implements Processor.
func (p *PresentationProcessor) Process(ctx context.Context, source Source) (*Document, error) {
	if err := expectSourceType(source, SourcePresentation); err != nil {
		return nil, err
	}

	var slides []string
	var err error

	switch ext := strings.ToLower(filepath.Ext(source.LocalPath)); ext {
	case ".pdf":
		slides, err = extractPDFPages(source.LocalPath)
	case ".pptx":
		slides, err = extractPPTXSlides(source.LocalPath)
	default:
		return nil, fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, processingErr(source, err)
	}

	var chunks []Chunk
	for i, text := range slides {
		slideNumber := i + 1
		chunks = append(chunks, Chunk{
			Type:     ChunkSlideText,
			Text:     text,
			Index:    len(chunks),
			Metadata: map[string]any{"slide_number": slideNumber},
		})

		if p.router == nil || strings.TrimSpace(text) == "" {
			continue
		}
		if desc := p.describeSlide(ctx, slideNumber, text); desc != "" {
			chunks = append(chunks, Chunk{
				Type:     ChunkSlideDescription,
				Text:     desc,
				Index:    len(chunks),
				Metadata: map[string]any{"slide_number": slideNumber},
			})
		}
	}

	return &Document{
		SourceType:  SourcePresentation,
		SourceURL:   source.SourceURL,
		Title:       source.Title,
		Chunks:      chunks,
		ProcessedAt: time.Now().UTC(),
		Metadata:    map[string]any{"slide_count": len(slides)},
	}, nil
}

// describeSlide asks the routed vision action for a short description.
// Failures are logged and swallowed: the slide keeps its text chunk.
func (p *PresentationProcessor) describeSlide(ctx context.Context, slideNumber int, text string) string {
	prompt := fmt.Sprintf(
		"Describe the teaching content of this presentation slide in two or three sentences.\n\nSlide %d:\n%s",
		slideNumber, text)

	resp, err := p.router.Complete(ctx, slideAnalysisAction, prompt, llm.WithMaxTokens(512))
	if err != nil {
		slog.Warn("Slide analysis failed, keeping text chunk only",
			"slide_number", slideNumber, "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

func extractPDFPages(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the deck.
			slog.Warn("Failed to extract PDF page text", "page", i, "error", err)
			text = ""
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

var pptxSlidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractPPTXSlides(path string) ([]string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening pptx archive: %w", err)
	}
	defer archive.Close()

	type numbered struct {
		n    int
		text string
	}
	var slides []numbered

	for _, file := range archive.File {
		m := pptxSlidePath.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])

		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}

		text, err := pptxSlideText(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file.Name, err)
		}
		slides = append(slides, numbered{n: n, text: text})
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	out := make([]string, 0, len(slides))
	for _, s := range slides {
		out = append(out, s.text)
	}
	return out, nil
}

// pptxSlideText pulls every a:t run from a slide XML, one line per run.
// Namespace prefixes vary between producers, so matching is on local
// element names via a token walk rather than a fixed struct path.
func pptxSlideText(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var runs []string
	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				runs = append(runs, string(t))
			}
		}
	}
	return strings.TrimSpace(strings.Join(runs, "\n")), nil
}
