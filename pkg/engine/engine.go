// Package engine orchestrates collections: lifecycle, insert, delete, and
// the over-fetch + post-filter + TTL-hiding query path, with every action
// recorded to an audit log and expired documents reaped by a TTL sweeper.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomdb/loomdb/pkg/audit"
	"github.com/loomdb/loomdb/pkg/collection"
	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/hnsw"
	"github.com/loomdb/loomdb/pkg/tenant"
	"github.com/loomdb/loomdb/pkg/ttlx"
	"github.com/loomdb/loomdb/pkg/vecmath"
)

var (
	ErrCollectionExists    = errors.New("engine: collection already exists")
	ErrCollectionNotFound  = errors.New("engine: collection not found")
	ErrInvalidArgument     = errors.New("engine: invalid argument")
	ErrDimensionMismatch   = collection.ErrDimensionMismatch
	ErrInvalidVector       = collection.ErrInvalidVector
	ErrInvalidTTL          = ttlx.ErrInvalidTTL
	ErrSnapshotUnsupported = collection.ErrSnapshotUnsupported
)

// CollectionOptions configures CreateCollection.
type CollectionOptions struct {
	Dimension int
	Metric    vecmath.Metric
	IndexType collection.IndexType
	HNSW      hnsw.Config
}

// CollectionInfo, InsertDoc, QueryOptions, and QueryResult are aliases onto
// pkg/tenant's definitions: the tenant wrapper forwards to an Engine through
// an interface declared there, so the concrete types must live in a package
// neither side needs to import the other to reach.
type (
	CollectionInfo = tenant.CollectionInfo
	InsertDoc      = tenant.InsertDoc
	QueryOptions   = tenant.QueryOptions
	QueryResult    = tenant.QueryResult
)

// Engine owns every collection and the shared audit log and TTL sweeper.
type Engine struct {
	collections *registry
	auditLog    *audit.Log
	sweeper     *ttlx.Sweeper
}

// Config configures a new Engine.
type Config struct {
	AuditCapacity int           // default audit.DefaultMaxEntries
	SweepInterval time.Duration // default ttlx.DefaultInterval
}

// New creates an engine with its audit log and TTL sweeper started.
func New(cfg Config) *Engine {
	e := &Engine{
		collections: newRegistry(),
		auditLog:    audit.New(cfg.AuditCapacity),
	}
	e.sweeper = ttlx.New(sweepAdapter{e}, cfg.SweepInterval)
	e.sweeper.OnSweep = func(name string, deleted int, duration time.Duration) {
		e.auditLog.Record(audit.ActionTTLSweep, "system", name, deleted, &duration, nil)
	}
	e.sweeper.Start()
	return e
}

// CreateCollection creates a new collection, failing if name is taken or
// invalid.
func (e *Engine) CreateCollection(ctx context.Context, name string, opts CollectionOptions) (CollectionInfo, error) {
	if name == "" {
		return CollectionInfo{}, fmt.Errorf("%w: collection name must not be empty", ErrInvalidArgument)
	}
	if opts.IndexType == "" {
		opts.IndexType = collection.IndexHNSW
	}
	if opts.IndexType != collection.IndexHNSW && opts.IndexType != collection.IndexFlat {
		return CollectionInfo{}, fmt.Errorf("%w: unrecognized indexType %q", ErrInvalidArgument, opts.IndexType)
	}
	if opts.Metric != "" && !vecmath.ValidMetric(opts.Metric) {
		return CollectionInfo{}, fmt.Errorf("%w: unrecognized metric %q", ErrInvalidArgument, opts.Metric)
	}
	if opts.Metric == "" {
		opts.Metric = vecmath.Cosine
	}

	c := collection.New(name, collection.Options{
		Dimension: opts.Dimension,
		Metric:    opts.Metric,
		IndexType: opts.IndexType,
		HNSW:      opts.HNSW,
	})

	if !e.collections.add(name, c) {
		return CollectionInfo{}, ErrCollectionExists
	}

	e.auditLog.Record(audit.ActionCreateCollection, "system", name, 0, nil, nil)
	return infoOf(c), nil
}

// DropCollection removes a collection, releasing its memory. Returns false
// if it did not exist.
func (e *Engine) DropCollection(ctx context.Context, name string) bool {
	ok := e.collections.remove(name)
	if ok {
		e.auditLog.Record(audit.ActionDropCollection, "system", name, 0, nil, nil)
	}
	return ok
}

// ListCollections returns a summary of every collection.
func (e *Engine) ListCollections() []CollectionInfo {
	var out []CollectionInfo
	for _, c := range e.collections.all() {
		out = append(out, infoOf(c))
	}
	return out
}

// GetCollection returns a collection's summary, if it exists.
func (e *Engine) GetCollection(name string) (CollectionInfo, bool) {
	c, ok := e.collections.get(name)
	if !ok {
		return CollectionInfo{}, false
	}
	return infoOf(c), true
}

// DocumentMetadata returns a document's current metadata, used by the
// tenant wrapper to verify ownership before deleting. It never fabricates a
// result for a missing collection or document.
func (e *Engine) DocumentMetadata(name, id string) (filter.Metadata, bool) {
	c, ok := e.collections.get(name)
	if !ok {
		return nil, false
	}
	doc, ok := c.Get(id)
	if !ok {
		return nil, false
	}
	return doc.Metadata, true
}

// Insert adds docs to collection name in order, returning their ids in the
// same order.
func (e *Engine) Insert(ctx context.Context, name string, docs []InsertDoc) ([]string, error) {
	c, ok := e.collections.get(name)
	if !ok {
		return nil, ErrCollectionNotFound
	}

	ids := make([]string, 0, len(docs))
	now := time.Now()
	for _, d := range docs {
		meta := d.Metadata.Clone()
		if meta == nil {
			meta = filter.Metadata{}
		}
		if d.TTL != nil {
			expiresAt, original, err := ttlx.ExpiresAt(d.TTL, now)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidTTL, err)
			}
			meta["_ttl_expires"] = filter.Float(float64(expiresAt.UnixMilli()))
			meta["_ttl_duration"] = filter.String(original)
		}

		id, err := c.Insert(d.ID, d.Vector, meta)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	e.auditLog.Record(audit.ActionInsert, "system", name, len(ids), nil, nil)
	return ids, nil
}

// Delete removes ids from collection name, returning how many were
// present.
func (e *Engine) Delete(ctx context.Context, name string, ids []string) (int, error) {
	c, ok := e.collections.get(name)
	if !ok {
		return 0, ErrCollectionNotFound
	}
	count := c.Delete(ids)
	e.auditLog.Record(audit.ActionDelete, "system", name, count, nil, nil)
	return count, nil
}

// Query runs the engine query path against collection name.
func (e *Engine) Query(ctx context.Context, name string, vec []float64, opts QueryOptions) (QueryResult, error) {
	c, ok := e.collections.get(name)
	if !ok {
		return QueryResult{}, ErrCollectionNotFound
	}

	start := time.Now()
	outcome, err := c.Query(vec, collection.QueryOptions{
		TopK:      opts.TopK,
		Filter:    opts.Filter,
		ForceFlat: opts.ForceFlat,
		EfSearch:  opts.EfSearch,
	}, start)
	if err != nil {
		return QueryResult{}, err
	}
	elapsed := time.Since(start)

	if !opts.IncludeVectors {
		for i := range outcome.Results {
			outcome.Results[i].Vector = nil
		}
	}

	e.auditLog.Record(audit.ActionQuery, "system", name, len(outcome.Results), &elapsed, nil)

	return QueryResult{
		Results:     outcome.Results,
		ElapsedMs:   float64(elapsed) / float64(time.Millisecond),
		Comparisons: outcome.Comparisons,
		Total:       outcome.Total,
		Method:      outcome.Method,
	}, nil
}

// ExportSnapshot captures collection name's HNSW graph as a plain,
// encoding-agnostic Snapshot. Flat collections return
// collection.ErrSnapshotUnsupported.
func (e *Engine) ExportSnapshot(name string) (hnsw.Snapshot, error) {
	c, ok := e.collections.get(name)
	if !ok {
		return hnsw.Snapshot{}, ErrCollectionNotFound
	}
	snap, err := c.Snapshot()
	if err != nil {
		return hnsw.Snapshot{}, err
	}
	e.auditLog.Record(audit.ActionSnapshotExport, "system", name, len(snap.Nodes), nil, nil)
	return snap, nil
}

// ImportSnapshot creates a new collection named name from a previously
// exported Snapshot, failing if name is already taken.
func (e *Engine) ImportSnapshot(name string, snap hnsw.Snapshot) (CollectionInfo, error) {
	if name == "" {
		return CollectionInfo{}, fmt.Errorf("%w: collection name must not be empty", ErrInvalidArgument)
	}

	c := collection.FromSnapshot(name, snap)
	if !e.collections.add(name, c) {
		return CollectionInfo{}, ErrCollectionExists
	}

	e.auditLog.Record(audit.ActionSnapshotImport, "system", name, len(snap.Nodes), nil, nil)
	return infoOf(c), nil
}

// Tenant returns a tenant-scoped wrapper around collection name.
func (e *Engine) Tenant(name, tenantID string) *tenant.Wrapper {
	return tenant.New(e, name, tenantID)
}

// AuditLog exposes the engine's audit log for external inspection.
func (e *Engine) AuditLog() *audit.Log {
	return e.auditLog
}

// Close cancels the TTL sweeper and waits for it to stop.
func (e *Engine) Close() error {
	e.sweeper.Stop()
	return nil
}

func infoOf(c *collection.Collection) CollectionInfo {
	return CollectionInfo{
		Name:      c.Name,
		Dimension: c.Dimension,
		Metric:    c.Metric,
		IndexType: c.Type,
		Count:     c.Count(),
		CreatedAt: c.CreatedAt,
	}
}

// sweepAdapter bridges Engine to ttlx.SweepTarget without exposing the
// registry or collection.Collection to the ttlx package.
type sweepAdapter struct{ e *Engine }

func (s sweepAdapter) CollectionNames() []string {
	var names []string
	for _, c := range s.e.collections.all() {
		names = append(names, c.Name)
	}
	return names
}

func (s sweepAdapter) ExpiredIDs(name string, now time.Time) []string {
	c, ok := s.e.collections.get(name)
	if !ok {
		return nil
	}
	return c.ExpiredIDs(now)
}

func (s sweepAdapter) DeleteExpired(name string, ids []string) (int, error) {
	c, ok := s.e.collections.get(name)
	if !ok {
		return 0, ErrCollectionNotFound
	}
	return c.Delete(ids), nil
}
