package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loomdb/loomdb/pkg/collection"
	"github.com/loomdb/loomdb/pkg/engine"
	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/hnsw"
	"github.com/loomdb/loomdb/pkg/tenant"
	"github.com/loomdb/loomdb/pkg/vecmath"
)

func metricFromString(s string) vecmath.Metric { return vecmath.Metric(s) }

func indexTypeFromString(s string) collection.IndexType { return collection.IndexType(s) }

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// documentTarget is the insert/delete/query surface a request is routed
// through: a tenant.Wrapper when the request carries a tenant claim, or the
// raw engine when anonymous access is allowed.
type documentTarget interface {
	Insert(ctx context.Context, docs []tenant.InsertDoc) ([]string, error)
	Delete(ctx context.Context, ids []string) (int, error)
	Query(ctx context.Context, vec []float64, opts tenant.QueryOptions) (tenant.QueryResult, error)
}

// rawTarget adapts a collection on the unscoped engine to documentTarget.
type rawTarget struct {
	engine     *engine.Engine
	collection string
}

func (t rawTarget) Insert(ctx context.Context, docs []tenant.InsertDoc) ([]string, error) {
	return t.engine.Insert(ctx, t.collection, docs)
}

func (t rawTarget) Delete(ctx context.Context, ids []string) (int, error) {
	return t.engine.Delete(ctx, t.collection, ids)
}

func (t rawTarget) Query(ctx context.Context, vec []float64, opts tenant.QueryOptions) (tenant.QueryResult, error) {
	return t.engine.Query(ctx, t.collection, vec, opts)
}

func (s *Server) targetFor(r *http.Request, collection string) documentTarget {
	if tenantID, ok := tenantFromContext(r.Context()); ok {
		return s.engine.Tenant(collection, tenantID)
	}
	return rawTarget{engine: s.engine, collection: collection}
}

// createCollectionRequest is the POST /collections body.
type createCollectionRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	IndexType string `json:"indexType"`
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := s.engine.CreateCollection(r.Context(), req.Name, engine.CollectionOptions{
		Dimension: req.Dimension,
		Metric:    metricFromString(req.Metric),
		IndexType: indexTypeFromString(req.IndexType),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListCollections())
}

func (s *Server) handleDropCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.engine.DropCollection(r.Context(), name) {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// documentRequest is one entry in the POST .../documents body.
type documentRequest struct {
	ID       string         `json:"id,omitempty"`
	Vector   []float64      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
	TTL      any            `json:"ttl,omitempty"`
}

type insertDocumentsRequest struct {
	Documents []documentRequest `json:"documents"`
}

func (s *Server) handleInsertDocuments(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req insertDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	docs := make([]tenant.InsertDoc, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = tenant.InsertDoc{
			ID:       d.ID,
			Vector:   d.Vector,
			Metadata: filter.MetadataFromAny(d.Metadata),
			TTL:      d.TTL,
		}
	}

	ids, err := s.targetFor(r, name).Insert(r.Context(), docs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ids": ids})
}

type deleteDocumentsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleDeleteDocuments(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req deleteDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := s.targetFor(r, name).Delete(r.Context(), req.IDs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}

type queryRequest struct {
	Vector         []float64      `json:"vector"`
	TopK           int            `json:"topK"`
	Filter         map[string]any `json:"filter,omitempty"`
	IncludeVectors bool           `json:"includeVectors,omitempty"`
	ForceFlat      bool           `json:"forceFlat,omitempty"`
	EfSearch       int            `json:"efSearch,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var f filter.Filter
	if len(req.Filter) > 0 {
		var err error
		f, err = filter.FromMap(req.Filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := s.targetFor(r, name).Query(r.Context(), req.Vector, tenant.QueryOptions{
		TopK:           req.TopK,
		Filter:         f,
		IncludeVectors: req.IncludeVectors,
		ForceFlat:      req.ForceFlat,
		EfSearch:       req.EfSearch,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	snap, err := s.engine.ExportSnapshot(name)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var snap hnsw.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := s.engine.ImportSnapshot(name, snap)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrCollectionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrCollectionExists),
		errors.Is(err, engine.ErrInvalidArgument),
		errors.Is(err, engine.ErrDimensionMismatch),
		errors.Is(err, engine.ErrInvalidVector),
		errors.Is(err, engine.ErrInvalidTTL),
		errors.Is(err, engine.ErrSnapshotUnsupported),
		errors.Is(err, filter.ErrFilterError):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
