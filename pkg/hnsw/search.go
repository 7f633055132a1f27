package hnsw

import "container/heap"

// Result is one scored hit returned from Search.
type Result struct {
	ID       string
	Vector   []float64
	Metadata map[string]any
	Score    float64
}

// greedyDescend performs a width-1 search at layer from entry, hill-climbing
// to the best-scoring neighbor at that layer until no neighbor improves on
// the current node. Used to walk from the top layer down to layer 1 before
// the final beam search at layer 0.
func (g *Graph) greedyDescend(q []float64, entry int32, layer int) int32 {
	current := entry
	best := g.score(q, current)
	for {
		improved := false
		n := g.arena[current]
		if layer < len(n.neighbors) {
			for _, nb := range n.neighbors[layer] {
				s := g.score(q, nb)
				if s > best {
					best = s
					current = nb
					improved = true
				}
			}
		}
		if !improved {
			return current
		}
	}
}

// searchLayer runs a bounded beam search at layer from entry, maintaining a
// best-first candidate pool and a results pool bounded to ef, per the HNSW
// paper's Algorithm 2. Returns the results pool sorted by descending score.
func (g *Graph) searchLayer(q []float64, entry int32, ef, layer int) []candidateItem {
	visited := make(map[int32]bool)

	candidates := &maxHeap{}
	results := &minHeap{}

	startScore := g.score(q, entry)
	heap.Push(candidates, candidateItem{entry, startScore})
	heap.Push(results, candidateItem{entry, startScore})
	visited[entry] = true

	for candidates.Len() > 0 {
		current := heap.Pop(candidates).(candidateItem)

		if results.Len() >= ef {
			worst := (*results)[0]
			if current.score < worst.score {
				break
			}
		}

		n := g.arena[current.idx]
		if layer >= len(n.neighbors) {
			continue
		}
		for _, nb := range n.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			s := g.score(q, nb)
			if results.Len() < ef || s > (*results)[0].score {
				heap.Push(candidates, candidateItem{nb, s})
				heap.Push(results, candidateItem{nb, s})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidateItem, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidateItem)
	}
	return out
}

// Search returns the topK nearest neighbors to q. If ef is 0 the graph's
// configured EfSearch is used; callers performing post-filter over-fetch
// pass a larger ef/topK (fetchK) directly, per the over-fetch design in the
// Collection/Engine layer.
func (g *Graph) Search(q []float64, topK, ef int) []Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.comparisons = 0
	defer func() { g.lastQueryComparisons = g.comparisons }()

	if g.entryPoint == noEntry || topK <= 0 {
		return nil
	}

	if ef <= 0 {
		ef = g.config.EfSearch
	}
	if ef < topK {
		ef = topK
	}

	entry := g.entryPoint
	for l := g.maxLevel; l > 0; l-- {
		entry = g.greedyDescend(q, entry, l)
	}

	found := g.searchLayer(q, entry, ef, 0)

	if len(found) > topK {
		found = found[:topK]
	}

	results := make([]Result, len(found))
	for i, c := range found {
		n := g.arena[c.idx]
		results[i] = Result{
			ID:       n.id,
			Vector:   n.vector,
			Metadata: n.metadata.ToAny(),
			Score:    c.score,
		}
	}
	return results
}

// LastQueryComparisons returns the number of Score() calls performed during
// the most recently completed Search call.
func (g *Graph) LastQueryComparisons() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastQueryComparisons
}
