// Package rag composes chunking, embedding, and storage into a minimal
// retrieval-augmented-generation pipeline: Ingest splits and stores a
// document, Retrieve embeds a query and assembles a context string from the
// nearest chunks.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loomdb/loomdb/pkg/audit"
	"github.com/loomdb/loomdb/pkg/chunk"
	"github.com/loomdb/loomdb/pkg/embed"
	"github.com/loomdb/loomdb/pkg/engine"
	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/tenant"
)

// InsertDoc, QueryOptions, and QueryResult alias the canonical engine/tenant
// request and response shapes, so a Target can be backed by either an
// *engine.Engine (via EngineTarget) or a *tenant.Wrapper directly.
type (
	InsertDoc    = tenant.InsertDoc
	QueryOptions = tenant.QueryOptions
	QueryResult  = tenant.QueryResult
)

// Inserter is the store-side half of a Target.
type Inserter interface {
	Insert(ctx context.Context, docs []InsertDoc) ([]string, error)
}

// Querier is the retrieve-side half of a Target.
type Querier interface {
	Query(ctx context.Context, vec []float64, opts QueryOptions) (QueryResult, error)
}

// Target is whatever a Pipeline reads from and writes to. *tenant.Wrapper
// satisfies this directly; EngineTarget adapts a raw *engine.Engine plus a
// collection name to it.
type Target interface {
	Inserter
	Querier
}

// EngineTarget pins a collection name onto an *engine.Engine so it can serve
// as a Target.
type EngineTarget struct {
	Engine     *engine.Engine
	Collection string
}

// Insert forwards to the engine's collection.
func (t *EngineTarget) Insert(ctx context.Context, docs []InsertDoc) ([]string, error) {
	return t.Engine.Insert(ctx, t.Collection, docs)
}

// Query forwards to the engine's collection.
func (t *EngineTarget) Query(ctx context.Context, vec []float64, opts QueryOptions) (QueryResult, error) {
	return t.Engine.Query(ctx, t.Collection, vec, opts)
}

const (
	metaSourceDoc  = "_source_doc"
	metaChunkIndex = "_chunk_index"
	metaChunkCount = "_chunk_count"
	metaText       = "_text"
)

// Pipeline chunks and embeds text on ingest, and embeds and searches on
// retrieve.
type Pipeline struct {
	target     Target
	embedder   embed.Embedder
	chunkOpts  chunk.Options
	auditLog   *audit.Log
	collection string // label only, for audit entries
}

// New builds a Pipeline. auditLog may be nil to skip audit logging.
func New(target Target, embedder embed.Embedder, chunkOpts chunk.Options, auditLog *audit.Log, collectionLabel string) *Pipeline {
	return &Pipeline{
		target:     target,
		embedder:   embedder,
		chunkOpts:  chunkOpts,
		auditLog:   auditLog,
		collection: collectionLabel,
	}
}

// Ingest chunks text, embeds every chunk in one batch call, and inserts one
// document per chunk. metadata is merged under the pipeline's reserved
// chunk-tracking keys, which always win on collision.
func (p *Pipeline) Ingest(ctx context.Context, docID, text string, metadata filter.Metadata) ([]string, error) {
	start := time.Now()
	chunks := chunk.ChunkText(text, p.chunkOpts)
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("rag: embed chunks for %q: %w", docID, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	docs := make([]InsertDoc, len(chunks))
	for i, c := range chunks {
		meta := metadata.Clone()
		if meta == nil {
			meta = filter.Metadata{}
		}
		meta[metaSourceDoc] = filter.String(docID)
		meta[metaChunkIndex] = filter.Int(int64(c.Index))
		meta[metaChunkCount] = filter.Int(int64(len(chunks)))
		meta[metaText] = filter.String(c.Text)
		docs[i] = InsertDoc{Vector: vectors[i], Metadata: meta}
	}

	ids, err := p.target.Insert(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("rag: insert chunks for %q: %w", docID, err)
	}

	if p.auditLog != nil {
		elapsed := time.Since(start)
		p.auditLog.Record(audit.ActionRAGIngest, "system", p.collection, len(ids), &elapsed, map[string]any{"sourceDoc": docID})
	}
	return ids, nil
}

// RetrievalResult is the outcome of a Retrieve call.
type RetrievalResult struct {
	Results []QueryResult
	Context string
}

// Retrieve embeds query, runs the search, and joins the hits' text in
// descending score order into a single context string.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK int, f filter.Filter) (RetrievalResult, error) {
	start := time.Now()
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("rag: embed query: %w", err)
	}

	result, err := p.target.Query(ctx, vec, QueryOptions{TopK: topK, Filter: f})
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("rag: query: %w", err)
	}

	var sb strings.Builder
	for i, r := range result.Results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if text, ok := r.Metadata[metaText].(string); ok {
			sb.WriteString(text)
		}
	}

	if p.auditLog != nil {
		elapsed := time.Since(start)
		p.auditLog.Record(audit.ActionRAGRetrieve, "system", p.collection, len(result.Results), &elapsed, nil)
	}

	return RetrievalResult{Results: result.Results, Context: sb.String()}, nil
}
