package hnsw

// Delete removes id from the graph, reports whether it was present.
//
// Deletion does not re-link the removed node's neighbors to each other: it
// only strips the node's arena index from every neighbor's adjacency list at
// every layer it appeared in, then frees the arena slot. This keeps deletion
// O(level * M) instead of requiring a repair pass, at the cost of slightly
// sparser local connectivity until the next insert nearby restores it.
func (g *Graph) Delete(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.ids[id]
	if !ok {
		return false
	}
	n := g.arena[idx]

	for l := 0; l <= n.level && l < len(n.neighbors); l++ {
		for _, nb := range n.neighbors[l] {
			nbNode := g.arena[nb]
			if l < len(nbNode.neighbors) {
				nbNode.neighbors[l] = removeSorted(nbNode.neighbors[l], idx)
			}
		}
	}

	delete(g.ids, id)
	g.arena[idx] = nil
	g.free = append(g.free, idx)

	if g.entryPoint == idx {
		g.reassignEntryPoint()
	}

	return true
}

// reassignEntryPoint scans the live nodes for the one with the highest
// level, used when the current entry point is removed. Empties the graph's
// entry point if no nodes remain.
func (g *Graph) reassignEntryPoint() {
	g.entryPoint = noEntry
	g.maxLevel = 0
	for idx, n := range g.arena {
		if n == nil {
			continue
		}
		if g.entryPoint == noEntry || n.level > g.maxLevel {
			g.entryPoint = int32(idx)
			g.maxLevel = n.level
		}
	}
}
