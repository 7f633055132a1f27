// Package tenant provides a scoped view of an Engine that enforces
// soft multi-tenancy by mandatory metadata tagging: every insert is tagged
// with the wrapper's tenant id, every query is conjoined with a tenant-id
// predicate, and every delete is pre-filtered to the caller's own
// documents.
package tenant

import (
	"context"

	"github.com/loomdb/loomdb/pkg/filter"
)

// TenantIDKey is the reserved metadata key holding a document's owning
// tenant.
const TenantIDKey = "_tenant_id"

// Wrapper is a non-owning, tenant-scoped handle on a collection within an
// Engine. It exposes only insert, query, and delete: no path through a
// Wrapper can read, mutate, or remove a document belonging to a different
// tenant, even if the caller crafts a filter or id that names one.
type Wrapper struct {
	engine     Engine
	collection string
	tenantID   string
}

// New constructs a tenant-scoped wrapper around collection within engine.
func New(engine Engine, collection, tenantID string) *Wrapper {
	return &Wrapper{engine: engine, collection: collection, tenantID: tenantID}
}

// Insert tags every document's metadata with the wrapper's tenant id,
// overriding any caller-supplied value for that key, and forwards to the
// engine.
func (w *Wrapper) Insert(ctx context.Context, docs []InsertDoc) ([]string, error) {
	tagged := make([]InsertDoc, len(docs))
	for i, d := range docs {
		meta := d.Metadata.Clone()
		if meta == nil {
			meta = filter.Metadata{}
		}
		meta[TenantIDKey] = filter.String(w.tenantID)
		tagged[i] = InsertDoc{ID: d.ID, Vector: d.Vector, Metadata: meta, TTL: d.TTL}
	}
	return w.engine.Insert(ctx, w.collection, tagged)
}

// Query conjoins the caller's filter with a tenant-id equality predicate,
// the tenant predicate winning on key collision, and forwards to the
// engine.
func (w *Wrapper) Query(ctx context.Context, vec []float64, opts QueryOptions) (QueryResult, error) {
	merged := make(filter.Filter, len(opts.Filter)+1)
	for k, v := range opts.Filter {
		merged[k] = v
	}
	merged[TenantIDKey] = filter.Eq(filter.String(w.tenantID))
	opts.Filter = merged

	return w.engine.Query(ctx, w.collection, vec, opts)
}

// Delete looks up each id's current tenant before forwarding to the
// engine, silently skipping ids that belong to another tenant or do not
// exist. The returned count distinguishes actual deletions from silent
// skips.
func (w *Wrapper) Delete(ctx context.Context, ids []string) (int, error) {
	owned := make([]string, 0, len(ids))
	for _, id := range ids {
		meta, ok := w.engine.DocumentMetadata(w.collection, id)
		if !ok {
			continue
		}
		tenantID, _ := meta[TenantIDKey].AsString()
		if tenantID == w.tenantID {
			owned = append(owned, id)
		}
	}
	if len(owned) == 0 {
		return 0, nil
	}
	return w.engine.Delete(ctx, w.collection, owned)
}
