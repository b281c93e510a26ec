package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slideDoc(slideNumbers ...int) Document {
	doc := Document{SourceType: SourcePresentation, SourceURL: "deck.pdf"}
	for _, n := range slideNumbers {
		doc.Chunks = append(doc.Chunks, Chunk{
			Type:     ChunkSlideText,
			Text:     "slide text",
			Index:    len(doc.Chunks),
			Metadata: map[string]any{"slide_number": n},
		})
	}
	return doc
}

func TestMerge_RejectsEmptyInput(t *testing.T) {
	_, err := Merge(nil, nil)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestMerge_SortsBySourcePriority(t *testing.T) {
	docs := []Document{
		{SourceType: SourceWeb, SourceURL: "w"},
		{SourceType: SourceText, SourceURL: "t"},
		{SourceType: SourceVideo, SourceURL: "v"},
		{SourceType: SourcePresentation, SourceURL: "p"},
	}

	ctx, err := Merge(docs, nil)
	require.NoError(t, err)

	order := make([]SourceType, 0, len(ctx.Documents))
	for _, doc := range ctx.Documents {
		order = append(order, doc.SourceType)
	}
	assert.Equal(t, []SourceType{SourceVideo, SourcePresentation, SourceText, SourceWeb}, order)
}

func TestMerge_UnknownTypeSortsLast(t *testing.T) {
	docs := []Document{
		{SourceType: SourceType("mystery"), SourceURL: "m"},
		{SourceType: SourceWeb, SourceURL: "w"},
	}

	ctx, err := Merge(docs, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceWeb, ctx.Documents[0].SourceType)
	assert.Equal(t, SourceType("mystery"), ctx.Documents[1].SourceType)
}

func TestMerge_StableWithinPriority(t *testing.T) {
	docs := []Document{
		{SourceType: SourceText, SourceURL: "first"},
		{SourceType: SourceText, SourceURL: "second"},
	}

	ctx, err := Merge(docs, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", ctx.Documents[0].SourceURL)
	assert.Equal(t, "second", ctx.Documents[1].SourceURL)
}

func TestMerge_CrossReferencesSlides(t *testing.T) {
	doc := slideDoc(1, 2, 3)
	mappings := []SlideVideoMapping{
		{SlideNumber: 1, VideoTimecode: "00:10:00"},
		{SlideNumber: 3, VideoTimecode: "00:25:00"},
	}

	ctx, err := Merge([]Document{doc}, mappings)
	require.NoError(t, err)

	merged := ctx.Documents[0]
	assert.Equal(t, "00:10:00", merged.Chunks[0].Metadata["video_timecode"])
	assert.NotContains(t, merged.Chunks[1].Metadata, "video_timecode")
	assert.Equal(t, "00:25:00", merged.Chunks[2].Metadata["video_timecode"])

	// Original document is untouched.
	for _, chunk := range doc.Chunks {
		assert.NotContains(t, chunk.Metadata, "video_timecode")
	}

	assert.Equal(t, mappings, ctx.Mappings)
}

func TestMerge_OnlySlideTextChunksAnnotated(t *testing.T) {
	doc := Document{
		SourceType: SourcePresentation,
		Chunks: []Chunk{
			{Type: ChunkSlideText, Metadata: map[string]any{"slide_number": 1}},
			{Type: ChunkSlideDescription, Metadata: map[string]any{"slide_number": 1}},
		},
	}
	mappings := []SlideVideoMapping{{SlideNumber: 1, VideoTimecode: "00:01:00"}}

	ctx, err := Merge([]Document{doc}, mappings)
	require.NoError(t, err)
	assert.Equal(t, "00:01:00", ctx.Documents[0].Chunks[0].Metadata["video_timecode"])
	assert.NotContains(t, ctx.Documents[0].Chunks[1].Metadata, "video_timecode")
}

func TestMerge_SlideNumberSurvivesJSONRoundTrip(t *testing.T) {
	// A document reloaded from storage carries float64 metadata values.
	doc := Document{
		SourceType: SourcePresentation,
		Chunks: []Chunk{
			{Type: ChunkSlideText, Metadata: map[string]any{"slide_number": float64(2)}},
		},
	}
	mappings := []SlideVideoMapping{{SlideNumber: 2, VideoTimecode: "00:05:00"}}

	ctx, err := Merge([]Document{doc}, mappings)
	require.NoError(t, err)
	assert.Equal(t, "00:05:00", ctx.Documents[0].Chunks[0].Metadata["video_timecode"])
}

func TestMerge_Deterministic(t *testing.T) {
	docs := []Document{slideDoc(1, 2), {SourceType: SourceVideo, SourceURL: "v"}}
	mappings := []SlideVideoMapping{{SlideNumber: 1, VideoTimecode: "00:00:30"}}

	first, err := Merge(docs, mappings)
	require.NoError(t, err)
	second, err := Merge(docs, mappings)
	require.NoError(t, err)

	require.Len(t, second.Documents, len(first.Documents))
	for i := range first.Documents {
		assert.Equal(t, first.Documents[i].SourceURL, second.Documents[i].SourceURL)
		assert.Equal(t, first.Documents[i].Chunks, second.Documents[i].Chunks)
	}
}
