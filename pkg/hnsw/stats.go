package hnsw

// Stats summarizes the graph's current shape and the cost of its last
// search.
type Stats struct {
	Nodes                int
	TotalEdges           int // undirected count: directed edge count / 2
	MaxLevel             int
	MaxEdgesPerNode      int
	LevelDistribution    map[int]int // layer -> node count present at that layer
	LastQueryComparisons uint64
	Config               Config
}

// Stats computes a snapshot of the graph's structural statistics.
func (g *Graph) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	dist := make(map[int]int)
	directedEdges := 0
	maxEdges := 0

	for _, n := range g.arena {
		if n == nil {
			continue
		}
		for l := 0; l <= n.level; l++ {
			dist[l]++
		}
		for _, layerNeighbors := range n.neighbors {
			directedEdges += len(layerNeighbors)
			if len(layerNeighbors) > maxEdges {
				maxEdges = len(layerNeighbors)
			}
		}
	}

	return Stats{
		Nodes:                len(g.ids),
		TotalEdges:           directedEdges / 2,
		MaxLevel:             g.maxLevel,
		MaxEdgesPerNode:      maxEdges,
		LevelDistribution:    dist,
		LastQueryComparisons: g.lastQueryComparisons,
		Config:               g.config,
	}
}
