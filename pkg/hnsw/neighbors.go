package hnsw

import "sort"

// selectNeighbors implements the paper's SELECT-NEIGHBORS-HEURISTIC
// (Algorithm 4): rather than keeping the m closest candidates outright, it
// walks candidates nearest-first and only keeps one that is not "shadowed"
// by an already-selected neighbor, i.e. one that is closer to the new
// element than it is to any neighbor already picked. This spreads
// connections across directions instead of clustering them, which is what
// gives HNSW search its logarithmic behavior on clustered data.
//
// To guarantee the result is never degenerate, the first half of m slots
// (rounded down) are filled unconditionally from the nearest candidates
// before the heuristic starts rejecting shadowed ones.
func (g *Graph) selectNeighbors(candidates []candidateItem, m int) []int32 {
	if m <= 0 {
		return nil
	}
	if len(candidates) <= m {
		return sortedIndices(candidates)
	}

	sorted := make([]candidateItem, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	guaranteed := m / 2
	selected := make([]candidateItem, 0, m)

	for _, c := range sorted {
		if len(selected) >= m {
			break
		}
		if len(selected) < guaranteed {
			selected = append(selected, c)
			continue
		}

		toNew := c.score
		shadowed := false
		for _, s := range selected {
			toSelected := g.scoreBetween(c.idx, s.idx)
			if toSelected > toNew {
				shadowed = true
				break
			}
		}
		if !shadowed {
			selected = append(selected, c)
		}
	}

	return sortedIndices(selected)
}

// sortedIndices extracts and ascending-sorts the arena indices of cands, the
// invariant neighbor lists are stored under.
func sortedIndices(cands []candidateItem) []int32 {
	out := make([]int32, len(cands))
	for i, c := range cands {
		out[i] = c.idx
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// insertSorted inserts idx into a sorted-ascending slice if not already
// present, returning the updated slice.
func insertSorted(s []int32, idx int32) []int32 {
	pos := sort.Search(len(s), func(i int) bool { return s[i] >= idx })
	if pos < len(s) && s[pos] == idx {
		return s
	}
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = idx
	return s
}

// removeSorted removes idx from a sorted-ascending slice if present,
// returning the updated slice.
func removeSorted(s []int32, idx int32) []int32 {
	pos := sort.Search(len(s), func(i int) bool { return s[i] >= idx })
	if pos >= len(s) || s[pos] != idx {
		return s
	}
	return append(s[:pos], s[pos+1:]...)
}

// pruneNeighbors shrinks a node's neighbor list at layer down to maxConn
// using the same diversity heuristic, run against the node's own vector, and
// removes the reverse edge from every neighbor it drops so edges stay
// bidirectional.
func (g *Graph) pruneNeighbors(idx int32, layer, maxConn int) {
	n := g.arena[idx]
	if layer >= len(n.neighbors) || len(n.neighbors[layer]) <= maxConn {
		return
	}
	cands := make([]candidateItem, len(n.neighbors[layer]))
	for i, nb := range n.neighbors[layer] {
		cands[i] = candidateItem{idx: nb, score: g.scoreBetween(idx, nb)}
	}
	kept := g.selectNeighbors(cands, maxConn)
	keep := make(map[int32]bool, len(kept))
	for _, k := range kept {
		keep[k] = true
	}
	for _, nb := range n.neighbors[layer] {
		other := g.arena[nb]
		if keep[nb] || layer >= len(other.neighbors) {
			continue
		}
		// Copy first: the caller may be ranging over this slice.
		other.neighbors[layer] = removeSorted(append([]int32(nil), other.neighbors[layer]...), idx)
	}
	n.neighbors[layer] = kept
}
