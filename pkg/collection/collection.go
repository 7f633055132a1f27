// Package collection owns a document store coupled with either an HNSW
// index or brute-force scoring, plus the metadata filter evaluator that
// both paths share.
package collection

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/hnsw"
	"github.com/loomdb/loomdb/pkg/vecmath"
)

// IndexType selects the retrieval strategy a collection uses.
type IndexType string

const (
	IndexHNSW IndexType = "hnsw"
	IndexFlat IndexType = "flat"
)

var (
	ErrDimensionMismatch   = errors.New("collection: vector dimension mismatch")
	ErrInvalidVector       = errors.New("collection: vector is empty or non-numeric")
	ErrDuplicateID         = errors.New("collection: document id already exists")
	ErrSnapshotUnsupported = errors.New("collection: snapshot requires an hnsw-indexed collection")
)

// Document is one stored (vector, metadata) pair, addressable by id.
type Document struct {
	ID       string
	Vector   []float64
	Metadata filter.Metadata
}

// Options configures a new collection.
type Options struct {
	Dimension int
	Metric    vecmath.Metric
	IndexType IndexType
	HNSW      hnsw.Config // used only when IndexType == IndexHNSW
}

// Collection couples a document store with an HNSW graph or brute-force
// fallback and operational counters. count == hnsw.Len() is maintained as an
// invariant for HNSW-backed collections.
type Collection struct {
	mu sync.RWMutex

	Name      string
	Dimension int
	Metric    vecmath.Metric
	Type      IndexType
	CreatedAt time.Time

	documents map[string]Document
	graph     *hnsw.Graph // nil when Type == IndexFlat
}

// New creates an empty collection per opts.
func New(name string, opts Options) *Collection {
	c := &Collection{
		Name:      name,
		Dimension: opts.Dimension,
		Metric:    opts.Metric,
		Type:      opts.IndexType,
		CreatedAt: time.Now(),
		documents: make(map[string]Document),
	}
	if c.Type == IndexHNSW {
		cfg := opts.HNSW
		cfg.Dimension = opts.Dimension
		cfg.Metric = opts.Metric
		c.graph = hnsw.New(cfg)
	}
	return c
}

// Count returns the number of live documents.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.documents)
}

// Insert stores a document, minting an id via UUIDv7 when id is empty.
// Rejects dimension mismatches and duplicate ids before they reach the
// graph or vecmath.
func (c *Collection) Insert(id string, vector []float64, metadata filter.Metadata) (string, error) {
	if len(vector) == 0 {
		return "", ErrInvalidVector
	}
	if len(vector) != c.Dimension {
		return "", ErrDimensionMismatch
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	if _, exists := c.documents[id]; exists {
		return "", ErrDuplicateID
	}

	vecCopy := make([]float64, len(vector))
	copy(vecCopy, vector)
	meta := metadata.Clone()

	if c.graph != nil {
		if err := c.graph.Insert(id, vecCopy, meta); err != nil {
			return "", err
		}
	}
	c.documents[id] = Document{ID: id, Vector: vecCopy, Metadata: meta}

	return id, nil
}

// Delete removes ids from the collection, returning how many were present.
func (c *Collection) Delete(ids []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, id := range ids {
		if _, ok := c.documents[id]; !ok {
			continue
		}
		delete(c.documents, id)
		if c.graph != nil {
			c.graph.Delete(id)
		}
		count++
	}
	return count
}

// Get returns the document for id, if present.
func (c *Collection) Get(id string) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.documents[id]
	return doc, ok
}

// QueryOptions configures a single query.
type QueryOptions struct {
	TopK      int
	Filter    filter.Filter
	ForceFlat bool
	EfSearch  int
}

// QueryResult is one scored hit.
type QueryResult struct {
	ID       string
	Vector   []float64
	Metadata map[string]any
	Score    float64
}

// QueryOutcome reports the results of a query plus its operational cost.
type QueryOutcome struct {
	Results     []QueryResult
	Comparisons uint64
	Total       int
	Method      string // "hnsw" or "flat"
}

// Query runs the over-fetch + post-filter + TTL-hiding pipeline described by
// the engine query path, routing between the HNSW graph and brute force.
// TTL hiding is parameterized by now so callers control the sweep instant.
func (c *Collection) Query(vector []float64, opts QueryOptions, now time.Time) (QueryOutcome, error) {
	if len(vector) != c.Dimension {
		return QueryOutcome{}, ErrDimensionMismatch
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.documents)

	useHNSW := c.graph != nil && !opts.ForceFlat
	if useHNSW {
		return c.queryHNSW(vector, opts, now, total), nil
	}
	return c.queryFlat(vector, opts, now, total), nil
}

func (c *Collection) queryHNSW(vector []float64, opts QueryOptions, now time.Time, total int) QueryOutcome {
	fetchK := opts.TopK
	if opts.Filter != nil {
		fetchK = opts.TopK * 10
		if fetchK > total {
			fetchK = total
		}
	}

	ef := opts.EfSearch
	if ef <= 0 {
		ef = c.graph.Config().EfSearch
	}
	if fetchK > ef {
		ef = fetchK
	}

	found := c.graph.Search(vector, fetchK, ef)

	results := make([]QueryResult, 0, len(found))
	for _, r := range found {
		doc, ok := c.documents[r.ID]
		if !ok {
			continue
		}
		if !c.passesFilterAndTTL(doc, opts.Filter, now) {
			continue
		}
		results = append(results, QueryResult{
			ID:       r.ID,
			Vector:   r.Vector,
			Metadata: doc.Metadata.ToAny(),
			Score:    r.Score,
		})
		if len(results) >= opts.TopK {
			break
		}
	}

	return QueryOutcome{
		Results:     results,
		Comparisons: c.graph.LastQueryComparisons(),
		Total:       total,
		Method:      "hnsw",
	}
}

func (c *Collection) queryFlat(vector []float64, opts QueryOptions, now time.Time, total int) QueryOutcome {
	type scored struct {
		doc   Document
		score float64
	}

	candidates := make([]scored, 0, total)
	var comparisons uint64
	for _, doc := range c.documents {
		if opts.Filter != nil && !opts.Filter.Matches(doc.Metadata) {
			continue
		}
		if isExpired(doc, now) {
			continue
		}
		s := vecmath.Score(vector, doc.Vector, c.Metric)
		comparisons++
		candidates = append(candidates, scored{doc: doc, score: s})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	topK := opts.TopK
	if topK > len(candidates) {
		topK = len(candidates)
	}

	results := make([]QueryResult, topK)
	for i := 0; i < topK; i++ {
		results[i] = QueryResult{
			ID:       candidates[i].doc.ID,
			Vector:   candidates[i].doc.Vector,
			Metadata: candidates[i].doc.Metadata.ToAny(),
			Score:    candidates[i].score,
		}
	}

	return QueryOutcome{
		Results:     results,
		Comparisons: comparisons,
		Total:       total,
		Method:      "flat",
	}
}

func (c *Collection) passesFilterAndTTL(doc Document, f filter.Filter, now time.Time) bool {
	if f != nil && !f.Matches(doc.Metadata) {
		return false
	}
	return !isExpired(doc, now)
}

func isExpired(doc Document, now time.Time) bool {
	v, ok := doc.Metadata["_ttl_expires"]
	if !ok {
		return false
	}
	expiresMs, ok := v.AsFloat()
	if !ok {
		return false
	}
	return int64(expiresMs) <= now.UnixMilli()
}

// ExpiredIDs returns the ids of every live document whose _ttl_expires has
// passed as of now, for the TTL sweeper.
func (c *Collection) ExpiredIDs(now time.Time) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []string
	for id, doc := range c.documents {
		if isExpired(doc, now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Stats returns the HNSW graph's statistics. Flat collections have no graph
// and report only Nodes, set to their document count.
func (c *Collection) Stats() hnsw.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.graph == nil {
		return hnsw.Stats{Nodes: len(c.documents)}
	}
	return c.graph.Stats()
}

// Snapshot captures the collection's HNSW graph for export. Flat collections
// have no graph state to capture and return ErrSnapshotUnsupported.
func (c *Collection) Snapshot() (hnsw.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.graph == nil {
		return hnsw.Snapshot{}, ErrSnapshotUnsupported
	}
	return c.graph.Snapshot(), nil
}

// FromSnapshot rebuilds an HNSW-backed collection named name from a
// previously captured Snapshot, restoring both the graph and the document
// store the graph's metadata is derived from.
func FromSnapshot(name string, snap hnsw.Snapshot) *Collection {
	c := &Collection{
		Name:      name,
		Dimension: snap.Dimension,
		Metric:    vecmath.Metric(snap.Metric),
		Type:      IndexHNSW,
		CreatedAt: time.Now(),
		documents: make(map[string]Document, len(snap.Nodes)),
		graph:     hnsw.FromSnapshot(snap),
	}
	for _, n := range snap.Nodes {
		c.documents[n.ID] = Document{
			ID:       n.ID,
			Vector:   append([]float64(nil), n.Vector...),
			Metadata: filter.MetadataFromAny(n.Metadata),
		}
	}
	return c
}
