package ingest

import (
	"sort"
	"time"
)

// sourcePriority orders documents in the merged context. Unknown types sort
// last.
var sourcePriority = map[SourceType]int{
	SourceVideo:        0,
	SourcePresentation: 1,
	SourceText:         2,
	SourceWeb:          3,
}

func priorityOf(t SourceType) int {
	if p, ok := sourcePriority[t]; ok {
		return p
	}
	return len(sourcePriority)
}

// Merge composes processed documents and optional slide-video mappings into
// a CourseContext. It is pure and deterministic: inputs are never mutated,
// annotated chunks are copies, and the sort is stable.
func Merge(docs []Document, mappings []SlideVideoMapping) (*CourseContext, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorityOf(sorted[i].SourceType) < priorityOf(sorted[j].SourceType)
	})

	if len(mappings) > 0 {
		timecodeBySlide := make(map[int]string, len(mappings))
		for _, m := range mappings {
			timecodeBySlide[m.SlideNumber] = m.VideoTimecode
		}
		for i, doc := range sorted {
			if doc.SourceType == SourcePresentation {
				sorted[i] = crossReferenceSlides(doc, timecodeBySlide)
			}
		}
	}

	return &CourseContext{
		Documents: sorted,
		Mappings:  mappings,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// crossReferenceSlides returns a copy of the document in which every
// slide_text chunk with a mapped slide_number gains a video_timecode.
// Unmatched slides and chunks of other types are carried over untouched.
func crossReferenceSlides(doc Document, timecodeBySlide map[int]string) Document {
	annotated := doc
	annotated.Chunks = make([]Chunk, len(doc.Chunks))

	for i, chunk := range doc.Chunks {
		if chunk.Type != ChunkSlideText {
			annotated.Chunks[i] = chunk
			continue
		}
		slideNumber, ok := slideNumberOf(chunk)
		if !ok {
			annotated.Chunks[i] = chunk
			continue
		}
		timecode, ok := timecodeBySlide[slideNumber]
		if !ok {
			annotated.Chunks[i] = chunk
			continue
		}

		dup := chunk.clone()
		if dup.Metadata == nil {
			dup.Metadata = make(map[string]any, 1)
		}
		dup.Metadata["video_timecode"] = timecode
		annotated.Chunks[i] = dup
	}
	return annotated
}

// slideNumberOf reads the slide_number chunk metadata, tolerating the
// numeric widening a JSON round-trip introduces.
func slideNumberOf(chunk Chunk) (int, bool) {
	switch v := chunk.Metadata["slide_number"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
