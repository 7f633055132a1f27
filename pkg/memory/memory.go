// Package memory provides three preconfigured, tenant-scoped collections —
// episodic, semantic, and procedural — mirroring a decaying three-tier
// memory model without a standalone decay engine: episodic memories carry a
// default TTL, the other two are kept until explicitly removed.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/loomdb/loomdb/pkg/collection"
	"github.com/loomdb/loomdb/pkg/engine"
	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/tenant"
	"github.com/loomdb/loomdb/pkg/vecmath"
)

const (
	episodicCollection   = "memory_episodic"
	semanticCollection   = "memory_semantic"
	proceduralCollection = "memory_procedural"

	episodicDefaultTTL = "168h" // 7 days

	metaContent = "_content"
	metaTags    = "_tags"
)

// Facade is a tenant-scoped memory collection. The backing collection is
// created lazily, at the dimension of the first vector Remember sees.
type Facade struct {
	engine         *engine.Engine
	collectionName string
	tenantID       string
	defaultTTL     any

	mu      sync.Mutex
	ensured bool
	wrapper *tenant.Wrapper
}

// Episodic returns a facade over tenantID's episodic memory, defaulting new
// entries to a 7-day TTL.
func Episodic(e *engine.Engine, tenantID string) *Facade {
	return &Facade{engine: e, collectionName: episodicCollection, tenantID: tenantID, defaultTTL: episodicDefaultTTL}
}

// Semantic returns a facade over tenantID's semantic memory. Entries have no
// default TTL.
func Semantic(e *engine.Engine, tenantID string) *Facade {
	return &Facade{engine: e, collectionName: semanticCollection, tenantID: tenantID}
}

// Procedural returns a facade over tenantID's procedural memory. Entries
// have no default TTL.
func Procedural(e *engine.Engine, tenantID string) *Facade {
	return &Facade{engine: e, collectionName: proceduralCollection, tenantID: tenantID}
}

// ensure creates the backing collection at dimension on first use. A
// collection-already-exists race from a concurrent first use is swallowed.
func (f *Facade) ensure(ctx context.Context, dimension int) (*tenant.Wrapper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensured {
		return f.wrapper, nil
	}

	_, err := f.engine.CreateCollection(ctx, f.collectionName, engine.CollectionOptions{
		Dimension: dimension,
		Metric:    vecmath.Cosine,
	})
	if err != nil && !errors.Is(err, engine.ErrCollectionExists) {
		return nil, err
	}

	f.wrapper = f.engine.Tenant(f.collectionName, f.tenantID)
	f.ensured = true
	return f.wrapper, nil
}

// Remember stores content and its vector, tagged with tags, under the
// facade's default TTL (if any), and returns the new document's id.
func (f *Facade) Remember(ctx context.Context, content string, vector []float64, tags []string) (string, error) {
	w, err := f.ensure(ctx, len(vector))
	if err != nil {
		return "", err
	}

	meta := filter.Metadata{metaContent: filter.String(content)}
	if len(tags) > 0 {
		items := make([]filter.Value, len(tags))
		for i, t := range tags {
			items[i] = filter.String(t)
		}
		meta[metaTags] = filter.List(items)
	}

	ids, err := w.Insert(ctx, []tenant.InsertDoc{{Vector: vector, Metadata: meta, TTL: f.defaultTTL}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// Recall returns the topK memories nearest queryVector.
func (f *Facade) Recall(ctx context.Context, queryVector []float64, topK int) ([]collection.QueryResult, error) {
	w, err := f.ensure(ctx, len(queryVector))
	if err != nil {
		return nil, err
	}

	result, err := w.Query(ctx, queryVector, tenant.QueryOptions{TopK: topK})
	if err != nil {
		return nil, err
	}
	return result.Results, nil
}
