package hnsw

import (
	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/vecmath"
)

// SnapshotNode is the serialized form of one graph node.
type SnapshotNode struct {
	ID        string
	Vector    []float64
	Metadata  map[string]any
	Level     int
	Neighbors map[int][]string // layer -> neighbor ids
}

// Snapshot is a versionless, plain-structure serialization of a graph. Any
// encoding of this shape (JSON, gob, ...) round-trips faithfully.
type Snapshot struct {
	Dimension      int
	Metric         string
	M              int
	M0             int
	EfConstruction int
	EfSearch       int
	EntryPoint     string
	MaxLevel       int
	Nodes          []SnapshotNode
}

// Snapshot captures the graph's full state as a plain, encoding-agnostic
// structure.
func (g *Graph) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Dimension:      g.config.Dimension,
		Metric:         string(g.config.Metric),
		M:              g.config.M,
		M0:             g.config.M0,
		EfConstruction: g.config.EfConstruction,
		EfSearch:       g.config.EfSearch,
		MaxLevel:       g.maxLevel,
	}
	if g.entryPoint != noEntry {
		s.EntryPoint = g.arena[g.entryPoint].id
	}

	for _, n := range g.arena {
		if n == nil {
			continue
		}
		sn := SnapshotNode{
			ID:        n.id,
			Vector:    append([]float64(nil), n.vector...),
			Metadata:  n.metadata.ToAny(),
			Level:     n.level,
			Neighbors: make(map[int][]string, len(n.neighbors)),
		}
		for l, layerNeighbors := range n.neighbors {
			ids := make([]string, len(layerNeighbors))
			for i, idx := range layerNeighbors {
				ids[i] = g.arena[idx].id
			}
			sn.Neighbors[l] = ids
		}
		s.Nodes = append(s.Nodes, sn)
	}

	return s
}

// FromSnapshot reconstructs a graph from a previously captured Snapshot.
// The reconstructed graph preserves arena indices by id insertion order, so
// neighbor lists can be resolved directly from the snapshot's node ids.
func FromSnapshot(s Snapshot) *Graph {
	config := Config{
		Dimension:      s.Dimension,
		Metric:         vecmath.Metric(s.Metric),
		M:              s.M,
		M0:             s.M0,
		EfConstruction: s.EfConstruction,
		EfSearch:       s.EfSearch,
	}.normalize()

	g := &Graph{
		config:     config,
		ids:        make(map[string]int32, len(s.Nodes)),
		entryPoint: noEntry,
		maxLevel:   s.MaxLevel,
	}

	for _, sn := range s.Nodes {
		n := &node{
			id:        sn.ID,
			vector:    append([]float64(nil), sn.Vector...),
			metadata:  filter.MetadataFromAny(sn.Metadata),
			level:     sn.Level,
			neighbors: make([][]int32, sn.Level+1),
		}
		idx := g.allocate(n)
		g.ids[sn.ID] = idx
	}

	for _, sn := range s.Nodes {
		idx := g.ids[sn.ID]
		n := g.arena[idx]
		for l, neighborIDs := range sn.Neighbors {
			if l >= len(n.neighbors) {
				continue
			}
			layerNeighbors := make([]int32, 0, len(neighborIDs))
			for _, nid := range neighborIDs {
				if nidx, ok := g.ids[nid]; ok {
					layerNeighbors = append(layerNeighbors, nidx)
				}
			}
			n.neighbors[l] = sortInt32(layerNeighbors)
		}
	}

	if s.EntryPoint != "" {
		if idx, ok := g.ids[s.EntryPoint]; ok {
			g.entryPoint = idx
		}
	}

	return g
}

func sortInt32(s []int32) []int32 {
	out := make([]int32, 0, len(s))
	for _, v := range s {
		out = insertSorted(out, v)
	}
	return out
}
