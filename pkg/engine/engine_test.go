package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loomdb/loomdb/pkg/collection"
	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/vecmath"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Config{SweepInterval: time.Hour})
	t.Cleanup(func() { e.Close() })
	return e
}

func TestCreateCollectionRejectsDuplicateName(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 4}); !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}
}

func TestCreateCollectionRejectsEmptyName(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.CreateCollection(context.Background(), "", CollectionOptions{Dimension: 4}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 4, Metric: vecmath.Cosine}); err != nil {
		t.Fatal(err)
	}

	ids, err := e.Insert(ctx, "docs", []InsertDoc{
		{Vector: []float64{1, 0, 0, 0}},
		{Vector: []float64{0, 1, 0, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}

	result, err := e.Query(ctx, "docs", []float64{1, 0, 0, 0}, QueryOptions{TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 1 || result.Results[0].ID != ids[0] {
		t.Fatalf("expected top result %s, got %+v", ids[0], result.Results)
	}
	if result.Method != "hnsw" {
		t.Fatalf("expected hnsw method, got %s", result.Method)
	}
}

func TestInsertRejectsUnknownCollection(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Insert(context.Background(), "missing", []InsertDoc{{Vector: []float64{1}}}); !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestInsertRejectsInvalidTTL(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 2})
	_, err := e.Insert(ctx, "docs", []InsertDoc{{Vector: []float64{1, 0}, TTL: "nonsense"}})
	if !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestQueryHidesVectorsUnlessRequested(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 2})
	e.Insert(ctx, "docs", []InsertDoc{{Vector: []float64{1, 0}}})

	result, err := e.Query(ctx, "docs", []float64{1, 0}, QueryOptions{TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	if result.Results[0].Vector != nil {
		t.Fatal("expected vector omitted by default")
	}

	result, err = e.Query(ctx, "docs", []float64{1, 0}, QueryOptions{TopK: 1, IncludeVectors: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Results[0].Vector == nil {
		t.Fatal("expected vector included when requested")
	}
}

func TestDropCollectionReleasesState(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 2})

	if !e.DropCollection(ctx, "docs") {
		t.Fatal("expected drop to succeed")
	}
	if e.DropCollection(ctx, "docs") {
		t.Fatal("expected second drop to report false")
	}
	if _, ok := e.GetCollection("docs"); ok {
		t.Fatal("expected collection to be gone")
	}
}

func TestTTLSweeperDeletesExpiredDocuments(t *testing.T) {
	e := New(Config{SweepInterval: 15 * time.Millisecond})
	defer e.Close()
	ctx := context.Background()
	e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 2})
	e.Insert(ctx, "docs", []InsertDoc{{Vector: []float64{1, 0}, TTL: "5ms"}})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		info, _ := e.GetCollection("docs")
		if info.Count == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected TTL sweep to remove expired document")
}

func TestFlatCollectionQuery(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.CreateCollection(ctx, "flat-docs", CollectionOptions{Dimension: 2, IndexType: collection.IndexFlat})
	e.Insert(ctx, "flat-docs", []InsertDoc{{Vector: []float64{1, 0}}})

	result, err := e.Query(ctx, "flat-docs", []float64{1, 0}, QueryOptions{TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	if result.Method != "flat" {
		t.Fatalf("expected flat method, got %s", result.Method)
	}
}

func TestAuditLogRecordsLifecycleActions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 2})
	e.Insert(ctx, "docs", []InsertDoc{{Vector: []float64{1, 0}}})

	stats := e.AuditLog().Stats()
	if stats.ByAction["create_collection"] != 1 {
		t.Errorf("expected 1 create_collection entry, got %d", stats.ByAction["create_collection"])
	}
	if stats.ByAction["insert"] != 1 {
		t.Errorf("expected 1 insert entry, got %d", stats.ByAction["insert"])
	}
}

func TestExportImportSnapshotRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 2, Metric: vecmath.Cosine})
	ids, _ := e.Insert(ctx, "docs", []InsertDoc{
		{Vector: []float64{1, 0}},
		{Vector: []float64{0, 1}},
	})

	snap, err := e.ExportSnapshot("docs")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Nodes) != 2 {
		t.Fatalf("expected 2 snapshot nodes, got %d", len(snap.Nodes))
	}

	info, err := e.ImportSnapshot("docs-restored", snap)
	if err != nil {
		t.Fatal(err)
	}
	if info.Count != 2 {
		t.Fatalf("expected 2 restored documents, got %d", info.Count)
	}

	result, err := e.Query(ctx, "docs-restored", []float64{1, 0}, QueryOptions{TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 1 || result.Results[0].ID != ids[0] {
		t.Fatalf("expected restored collection to serve queries, got %+v", result.Results)
	}
}

func TestExportSnapshotRejectsUnknownCollection(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.ExportSnapshot("missing"); !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestExportSnapshotRejectsFlatCollection(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.CreateCollection(ctx, "flat-docs", CollectionOptions{Dimension: 2, IndexType: collection.IndexFlat})

	if _, err := e.ExportSnapshot("flat-docs"); !errors.Is(err, ErrSnapshotUnsupported) {
		t.Fatalf("expected ErrSnapshotUnsupported, got %v", err)
	}
}

func TestImportSnapshotRejectsDuplicateName(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 2})
	e.Insert(ctx, "docs", []InsertDoc{{Vector: []float64{1, 0}}})
	snap, _ := e.ExportSnapshot("docs")

	if _, err := e.ImportSnapshot("docs", snap); !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}
}

func TestDocumentMetadataReturnsStoredMetadata(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.CreateCollection(ctx, "docs", CollectionOptions{Dimension: 2})
	ids, _ := e.Insert(ctx, "docs", []InsertDoc{{Vector: []float64{1, 0}, Metadata: filter.Metadata{"k": filter.String("v")}}})

	meta, ok := e.DocumentMetadata("docs", ids[0])
	if !ok {
		t.Fatal("expected metadata to be found")
	}
	if s, _ := meta["k"].AsString(); s != "v" {
		t.Fatalf("expected k=v, got %v", meta["k"])
	}
}
