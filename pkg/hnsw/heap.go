package hnsw

// candidateItem pairs an arena index with its score against the active
// query, used by both priority queues during a layer beam search.
type candidateItem struct {
	idx   int32
	score float64
}

// maxHeap pops the highest-scoring (best) item first. Used as the
// "candidates to explore" pool in searchLayer, per the HNSW beam-search
// algorithm: the best unvisited candidate is expanded first.
type maxHeap []candidateItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].score > h[j].score }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(candidateItem)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// minHeap pops the lowest-scoring (worst) item first. Used as the "results
// found so far" pool, bounded to ef entries, so the worst member can be
// evicted in O(log ef) when a better candidate is found.
type minHeap []candidateItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidateItem)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
