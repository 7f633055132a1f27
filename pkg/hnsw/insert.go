package hnsw

import "github.com/loomdb/loomdb/pkg/filter"

// Insert adds a new vector under id to the graph, per the paper's
// INSERT(hnsw, q, M, Mmax, efConstruction, mL):
//
//  1. Draw the new node's level from the exponential level distribution.
//  2. If the graph is empty, the new node becomes the sole entry point.
//  3. Otherwise, greedily descend from the current entry point down to
//     level+1, tracking the single best node found at each layer.
//  4. From min(entryLevel, level) down to 0, beam-search the layer for
//     efConstruction candidates, pick neighbors with the diversity
//     heuristic, and wire bidirectional edges, pruning any neighbor that
//     now exceeds its per-layer connection cap.
//  5. If level exceeds the graph's current max level, the new node becomes
//     the entry point.
func (g *Graph) Insert(id string, vec []float64, metadata filter.Metadata) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == "" {
		return ErrEmptyID
	}
	if _, exists := g.ids[id]; exists {
		return ErrDuplicateID
	}
	if len(vec) != g.config.Dimension {
		return ErrDimensionMismatch
	}

	vecCopy := make([]float64, len(vec))
	copy(vecCopy, vec)

	level := randomLevel(g.config.levelScale())
	n := &node{
		id:        id,
		vector:    vecCopy,
		metadata:  metadata.Clone(),
		level:     level,
		neighbors: make([][]int32, level+1),
	}
	idx := g.allocate(n)
	g.ids[id] = idx

	if g.entryPoint == noEntry {
		g.entryPoint = idx
		g.maxLevel = level
		return nil
	}

	entry := g.entryPoint
	entryLevel := g.maxLevel

	for l := entryLevel; l > level; l-- {
		entry = g.greedyDescend(vecCopy, entry, l)
	}

	top := entryLevel
	if level < top {
		top = level
	}
	for l := top; l >= 0; l-- {
		found := g.searchLayer(vecCopy, entry, g.config.EfConstruction, l)
		if len(found) == 0 {
			continue
		}

		maxConn := g.config.M
		if l == 0 {
			maxConn = g.config.M0
		}

		neighbors := g.selectNeighbors(found, maxConn)
		n.neighbors[l] = neighbors

		for _, nb := range neighbors {
			nbNode := g.arena[nb]
			if l >= len(nbNode.neighbors) {
				continue
			}
			nbNode.neighbors[l] = insertSorted(nbNode.neighbors[l], idx)

			nbCap := g.config.M
			if l == 0 {
				nbCap = g.config.M0
			}
			if len(nbNode.neighbors[l]) > nbCap {
				g.pruneNeighbors(nb, l, nbCap)
			}
		}

		entry = found[0].idx
	}

	if level > g.maxLevel {
		g.entryPoint = idx
		g.maxLevel = level
	}

	return nil
}
