package rag_test

import (
	"context"
	"strings"
	"testing"

	"github.com/loomdb/loomdb/pkg/audit"
	"github.com/loomdb/loomdb/pkg/chunk"
	"github.com/loomdb/loomdb/pkg/engine"
	"github.com/loomdb/loomdb/pkg/rag"
)

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	v := make([]float64, f.dims)
	for i, r := range text {
		v[i%f.dims] += float64(r)
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int  { return f.dims }
func (f *fakeEmbedder) Provider() string { return "fake" }

func newTestPipeline(t *testing.T) (*rag.Pipeline, *engine.Engine) {
	t.Helper()
	e := engine.New(engine.Config{})
	t.Cleanup(func() { e.Close() })
	ctx := context.Background()
	if _, err := e.CreateCollection(ctx, "kb", engine.CollectionOptions{Dimension: 4}); err != nil {
		t.Fatal(err)
	}
	target := &rag.EngineTarget{Engine: e, Collection: "kb"}
	embedder := &fakeEmbedder{dims: 4}
	pipeline := rag.New(target, embedder, chunk.Options{ChunkSize: 40, Overlap: 5}, e.AuditLog(), "kb")
	return pipeline, e
}

func TestIngestStoresOneDocumentPerChunk(t *testing.T) {
	pipeline, e := newTestPipeline(t)
	ctx := context.Background()

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 5)
	ids, err := pipeline.Ingest(ctx, "doc-1", text, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) == 0 {
		t.Fatal("expected at least one chunk inserted")
	}

	info, _ := e.GetCollection("kb")
	if info.Count != len(ids) {
		t.Fatalf("expected collection count %d to match inserted ids %d", info.Count, len(ids))
	}
}

func TestIngestTagsChunkMetadata(t *testing.T) {
	pipeline, e := newTestPipeline(t)
	ctx := context.Background()

	ids, err := pipeline.Ingest(ctx, "doc-2", "short text", nil)
	if err != nil {
		t.Fatal(err)
	}
	meta, ok := e.DocumentMetadata("kb", ids[0])
	if !ok {
		t.Fatal("expected metadata")
	}
	src, _ := meta["_source_doc"].AsString()
	if src != "doc-2" {
		t.Fatalf("expected _source_doc doc-2, got %q", src)
	}
}

func TestIngestEmptyTextReturnsNoChunks(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	ids, err := pipeline.Ingest(context.Background(), "doc-3", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if ids != nil {
		t.Fatalf("expected no ids for empty text, got %v", ids)
	}
}

func TestRetrieveAssemblesContextFromResults(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	ctx := context.Background()

	if _, err := pipeline.Ingest(ctx, "doc-4", "alpha beta gamma delta", nil); err != nil {
		t.Fatal(err)
	}

	result, err := pipeline.Retrieve(ctx, "alpha beta gamma delta", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Context == "" {
		t.Fatal("expected non-empty assembled context")
	}
	if len(result.Results) == 0 {
		t.Fatal("expected at least one retrieval result")
	}
}

func TestPipelineRecordsAuditEvents(t *testing.T) {
	pipeline, e := newTestPipeline(t)
	ctx := context.Background()

	pipeline.Ingest(ctx, "doc-5", "some content to ingest", nil)
	pipeline.Retrieve(ctx, "content", 3, nil)

	stats := e.AuditLog().Stats()
	if stats.ByAction[audit.ActionRAGIngest] != 1 {
		t.Errorf("expected 1 rag_ingest entry, got %d", stats.ByAction[audit.ActionRAGIngest])
	}
	if stats.ByAction[audit.ActionRAGRetrieve] != 1 {
		t.Errorf("expected 1 rag_retrieve entry, got %d", stats.ByAction[audit.ActionRAGRetrieve])
	}
}
