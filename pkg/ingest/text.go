package ingest

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// TextProcessor extracts markdown, DOCX, HTML, and plain-text materials.
// Pure extraction, no LLM involvement.
type TextProcessor struct{}

// NewTextProcessor creates a text processor.
func NewTextProcessor() *TextProcessor { return &TextProcessor{} }

// Process implements Processor.
func (p *TextProcessor) Process(_ context.Context, source Source) (*Document, error) {
	if err := expectSourceType(source, SourceText); err != nil {
		return nil, err
	}

	var chunks []Chunk
	var err error

	switch ext := strings.ToLower(filepath.Ext(source.LocalPath)); ext {
	case ".md", ".markdown":
		chunks, err = p.processMarkdown(source.LocalPath)
	case ".docx":
		chunks, err = p.processDocx(source.LocalPath)
	case ".html", ".htm":
		chunks, err = p.processHTML(source.LocalPath)
	case ".txt":
		chunks, err = p.processPlain(source.LocalPath)
	default:
		return nil, fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, processingErr(source, err)
	}

	return &Document{
		SourceType:  SourceText,
		SourceURL:   source.SourceURL,
		Title:       source.Title,
		Chunks:      chunks,
		ProcessedAt: time.Now().UTC(),
	}, nil
}

var markdownHeading = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// processMarkdown splits on ATX headings; text between headings becomes
// paragraph chunks split on blank lines.
func (p *TextProcessor) processMarkdown(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	var paragraph []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(paragraph, "\n"))
		paragraph = paragraph[:0]
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{Type: ChunkParagraph, Text: text, Index: len(chunks)})
	}

	for _, line := range strings.Split(string(data), "\n") {
		if m := markdownHeading.FindStringSubmatch(line); m != nil {
			flush()
			chunks = append(chunks, Chunk{
				Type:     ChunkHeading,
				Text:     strings.TrimSpace(m[2]),
				Index:    len(chunks),
				Metadata: map[string]any{"level": len(m[1])},
			})
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		paragraph = append(paragraph, line)
	}
	flush()

	return chunks, nil
}

// docx XML fragments we care about: paragraphs, their style, and text runs.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []struct {
		Texts []string `xml:"t"`
	} `xml:"r"`
}

func (dp docxParagraph) text() string {
	var b strings.Builder
	for _, run := range dp.Runs {
		for _, t := range run.Texts {
			b.WriteString(t)
		}
	}
	return strings.TrimSpace(b.String())
}

// headingLevel infers a heading level from the paragraph style name, e.g.
// "Heading2" → 2. Zero means not a heading.
func (dp docxParagraph) headingLevel() int {
	style := dp.Props.Style.Val
	if !strings.HasPrefix(style, "Heading") {
		return 0
	}
	level, err := strconv.Atoi(strings.TrimPrefix(style, "Heading"))
	if err != nil || level < 1 || level > 9 {
		return 1
	}
	return level
}

// processDocx walks the OOXML paragraph stream, detecting headings by their
// paragraph style names.
func (p *TextProcessor) processDocx(path string) ([]Chunk, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening docx archive: %w", err)
	}
	defer archive.Close()

	var doc docxDocument
	found := false
	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		err = xml.NewDecoder(rc).Decode(&doc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing document.xml: %w", err)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("docx archive has no word/document.xml")
	}

	var chunks []Chunk
	for _, para := range doc.Body.Paragraphs {
		text := para.text()
		if text == "" {
			continue
		}
		if level := para.headingLevel(); level > 0 {
			chunks = append(chunks, Chunk{
				Type:     ChunkHeading,
				Text:     text,
				Index:    len(chunks),
				Metadata: map[string]any{"level": level},
			})
			continue
		}
		chunks = append(chunks, Chunk{Type: ChunkParagraph, Text: text, Index: len(chunks)})
	}
	return chunks, nil
}

// processHTML walks h1..h6 and p elements in document order.
func (p *TextProcessor) processHTML(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return htmlChunks(f)
}

func htmlChunks(r io.Reader) ([]Chunk, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var chunks []Chunk
	doc.Find("h1, h2, h3, h4, h5, h6, p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		tag := goquery.NodeName(sel)
		if strings.HasPrefix(tag, "h") {
			level, _ := strconv.Atoi(strings.TrimPrefix(tag, "h"))
			chunks = append(chunks, Chunk{
				Type:     ChunkHeading,
				Text:     text,
				Index:    len(chunks),
				Metadata: map[string]any{"level": level},
			})
			return
		}
		chunks = append(chunks, Chunk{Type: ChunkParagraph, Text: text, Index: len(chunks)})
	})
	return chunks, nil
}

// processPlain emits the whole file as one paragraph chunk; empty content
// yields an empty chunk list.
func (p *TextProcessor) processPlain(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Chunk{{Type: ChunkParagraph, Text: text, Index: 0}}, nil
}
