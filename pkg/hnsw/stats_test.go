package hnsw

import "testing"

func TestStatsReflectsGraphShape(t *testing.T) {
	g := newTestGraph(4)
	for i := 0; i < 50; i++ {
		v := randomUnitVector(4)
		if err := g.Insert("n"+itoa(i), v, nil); err != nil {
			t.Fatal(err)
		}
	}

	stats := g.Stats()
	if stats.Nodes != 50 {
		t.Fatalf("expected 50 nodes, got %d", stats.Nodes)
	}
	if stats.TotalEdges <= 0 {
		t.Fatal("expected some edges in a 50-node graph")
	}
	if stats.MaxLevel != g.maxLevel {
		t.Fatalf("expected maxLevel %d, got %d", g.maxLevel, stats.MaxLevel)
	}
	if stats.LevelDistribution[0] != 50 {
		t.Fatalf("expected 50 nodes at layer 0, got %d", stats.LevelDistribution[0])
	}
}

func TestStatsComparisonsResetPerSearch(t *testing.T) {
	g := newTestGraph(4)
	for i := 0; i < 20; i++ {
		g.Insert("n"+itoa(i), randomUnitVector(4), nil)
	}

	g.Search(randomUnitVector(4), 5, 0)
	first := g.Stats().LastQueryComparisons
	if first == 0 {
		t.Fatal("expected nonzero comparisons after a search")
	}

	g.Search(randomUnitVector(4), 5, 0)
	second := g.Stats().LastQueryComparisons
	if second == 0 {
		t.Fatal("expected nonzero comparisons after second search")
	}
}
