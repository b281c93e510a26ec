package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Routing Deep Dive</title></head><body>
<article>
<h1>Routing Deep Dive</h1>
<p>Model routers pick a chain of candidate models for every action and walk it in order until one succeeds. This keeps vendor outages from failing user requests.</p>
<p>Fallback chains are declared in configuration rather than code, so operators can reorder them without a deploy.</p>
</article>
</body></html>`

func TestWebProcessor_ExtractsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	doc, err := NewWebProcessor(srv.Client()).Process(context.Background(), Source{
		SourceType: SourceWeb,
		SourceURL:  srv.URL + "/posts/routing",
	})
	require.NoError(t, err)

	assert.Equal(t, SourceWeb, doc.SourceType)
	assert.NotEmpty(t, doc.Chunks)
	for _, chunk := range doc.Chunks {
		assert.Equal(t, ChunkWebContent, chunk.Type)
	}

	snapshot, ok := doc.Metadata["content_snapshot"].(string)
	require.True(t, ok)
	assert.Contains(t, snapshot, "<article>")
	assert.Equal(t, "127.0.0.1", doc.Metadata["domain"])
}

func TestWebProcessor_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewWebProcessor(srv.Client()).Process(context.Background(), Source{
		SourceType: SourceWeb,
		SourceURL:  srv.URL,
	})
	require.Error(t, err)

	var pe *ProcessingError
	assert.ErrorAs(t, err, &pe)
}

func TestWebProcessor_RejectsWrongSourceType(t *testing.T) {
	_, err := NewWebProcessor(nil).Process(context.Background(), Source{SourceType: SourceText})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
