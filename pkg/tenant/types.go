package tenant

import (
	"context"
	"time"

	"github.com/loomdb/loomdb/pkg/collection"
	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/vecmath"
)

// InsertDoc is one document to insert through an Engine.
type InsertDoc struct {
	ID       string
	Vector   []float64
	Metadata filter.Metadata
	TTL      any
}

// QueryOptions configures an Engine query.
type QueryOptions struct {
	TopK           int
	Filter         filter.Filter
	ForceFlat      bool
	EfSearch       int
	IncludeVectors bool
}

// QueryResult is the outcome of an Engine query.
type QueryResult struct {
	Results     []collection.QueryResult
	ElapsedMs   float64
	Comparisons uint64
	Total       int
	Method      string
}

// CollectionInfo summarizes a collection's configuration and size.
type CollectionInfo struct {
	Name      string
	Dimension int
	Metric    vecmath.Metric
	IndexType collection.IndexType
	Count     int
	CreatedAt time.Time
}

// Engine is the subset of *engine.Engine the tenant wrapper forwards to.
// Declared here rather than in pkg/engine so pkg/engine can implement it
// without this package importing pkg/engine back.
type Engine interface {
	Insert(ctx context.Context, name string, docs []InsertDoc) ([]string, error)
	Delete(ctx context.Context, name string, ids []string) (int, error)
	Query(ctx context.Context, name string, vec []float64, opts QueryOptions) (QueryResult, error)
	GetCollection(name string) (CollectionInfo, bool)
	DocumentMetadata(name, id string) (filter.Metadata, bool)
}
