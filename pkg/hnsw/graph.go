// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest-neighbor search over dense float64 vectors.
//
// HNSW builds a multi-layer graph where upper layers are sparse long-range
// shortcuts over a subset of nodes, and layer 0 contains every node. Search
// descends greedily through the upper layers to find a good entry point,
// then runs a bounded beam search at layer 0 to collect the final
// candidates.
//
// Performance Characteristics:
//   - Construction: O(N log N) average case
//   - Search: O(log N) average case
//   - Recall: tunable via M / efConstruction / efSearch, not contractual
//
// The graph is safe for concurrent use: every operation, including Search,
// holds the graph's single mutex for its duration.
package hnsw

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/vecmath"
)

// Config holds the tunable HNSW construction/search parameters.
type Config struct {
	Dimension      int
	Metric         vecmath.Metric
	M              int // max connections per node at layers >= 1
	M0             int // max connections per node at layer 0 (default 2*M)
	EfConstruction int // beam width used during insertion
	EfSearch       int // default beam width used during search
}

// DefaultConfig returns the spec's default tuning for the given dimension
// and metric: M=16, M0=32, efConstruction=200, efSearch=50.
func DefaultConfig(dimension int, metric vecmath.Metric) Config {
	return Config{
		Dimension:      dimension,
		Metric:         metric,
		M:              16,
		M0:             32,
		EfConstruction: 200,
		EfSearch:       50,
	}
}

// normalize fills in zero-valued fields with their defaults and derives M0
// when the caller didn't set it explicitly.
func (c Config) normalize() Config {
	if c.M <= 0 {
		c.M = 16
	}
	if c.M0 <= 0 {
		c.M0 = 2 * c.M
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 50
	}
	if c.Metric == "" {
		c.Metric = vecmath.Cosine
	}
	return c
}

// levelScale is mL = 1/ln(M), the exponential level-assignment scale.
func (c Config) levelScale() float64 {
	return 1.0 / math.Log(float64(c.M))
}

// node is one vertex of the graph, addressed internally by a dense arena
// index rather than its external string id.
type node struct {
	id       string
	vector   []float64
	metadata filter.Metadata
	level    int
	// neighbors[l] holds the arena indices of this node's neighbors at
	// layer l, kept sorted ascending so membership tests and removal are
	// O(log M) binary searches instead of O(M) scans.
	neighbors [][]int32
}

// Graph is a concurrency-safe HNSW index keyed by external string ids.
//
// A single mutex guards the whole graph rather than a reader/writer split:
// Insert, Delete and Search all mutate the shared comparisons counter. The
// owning Collection serializes inserts and deletes under its write lock but
// runs queries under a shared read lock, so concurrent searches on one graph
// take this mutex in turn.
type Graph struct {
	mu     sync.Mutex
	config Config

	arena []*node          // index -> node, nil where removed (tombstone slot)
	ids   map[string]int32 // external id -> arena index
	free  []int32          // recycled arena indices available for reuse

	entryPoint int32 // arena index of the entry point, -1 if empty
	maxLevel   int

	comparisons         uint64 // Score() calls since the last Search began; Search resets it to 0
	lastQueryComparisons uint64
}

const noEntry int32 = -1

// New creates an empty HNSW graph with the given configuration. Zero-valued
// tuning fields are replaced with their spec defaults.
func New(config Config) *Graph {
	config = config.normalize()
	return &Graph{
		config:     config,
		ids:        make(map[string]int32),
		entryPoint: noEntry,
	}
}

// Config returns a copy of the graph's active configuration.
func (g *Graph) Config() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.config
}

// Len returns the number of live nodes in the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ids)
}

// Contains reports whether id is present in the graph.
func (g *Graph) Contains(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.ids[id]
	return ok
}

// randomLevel draws level = floor(-ln(U) * mL) with U ~ Uniform(0,1].
func randomLevel(scale float64) int {
	u := rand.Float64()
	for u == 0 {
		u = rand.Float64()
	}
	return int(math.Floor(-math.Log(u) * scale))
}

// allocate reserves an arena slot for a new node, reusing a freed slot when
// available.
func (g *Graph) allocate(n *node) int32 {
	if len(g.free) > 0 {
		idx := g.free[len(g.free)-1]
		g.free = g.free[:len(g.free)-1]
		g.arena[idx] = n
		return idx
	}
	g.arena = append(g.arena, n)
	return int32(len(g.arena) - 1)
}

// score computes vecmath.Score between a query vector and arena node idx,
// counting one comparison.
func (g *Graph) score(q []float64, idx int32) float64 {
	g.comparisons++
	return vecmath.Score(q, g.arena[idx].vector, g.config.Metric)
}

// scoreBetween computes vecmath.Score between two arena nodes, counting one
// comparison.
func (g *Graph) scoreBetween(i, j int32) float64 {
	g.comparisons++
	return vecmath.Score(g.arena[i].vector, g.arena[j].vector, g.config.Metric)
}
