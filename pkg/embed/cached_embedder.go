package embed

import (
	"container/list"
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
)

// CachedEmbedder decorates an Embedder with an LRU cache keyed by FNV-1a
// hash of the input text, so repeated text (a re-ingested chunk, a repeated
// query) skips the underlying provider call entirely.
type CachedEmbedder struct {
	base Embedder

	mu      sync.RWMutex
	cache   map[string]*list.Element
	lru     *list.List
	maxSize int

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key       string
	embedding []float64
}

// NewCachedEmbedder wraps base with an LRU cache of maxSize entries. A
// non-positive maxSize uses a default of 10000.
func NewCachedEmbedder(base Embedder, maxSize int) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &CachedEmbedder{
		base:    base,
		cache:   make(map[string]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

func hashText(text string) string {
	h := fnv.New64a()
	h.Write([]byte(text))
	return strconv.FormatUint(h.Sum64(), 36)
}

// Embed returns a cached embedding if text was seen before, else computes
// and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := hashText(text)

	c.mu.RLock()
	elem, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		atomic.AddUint64(&c.hits, 1)
		c.mu.Lock()
		c.lru.MoveToFront(elem)
		c.mu.Unlock()
		return elem.Value.(*cacheEntry).embedding, nil
	}

	atomic.AddUint64(&c.misses, 1)
	embedding, err := c.base.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).embedding, nil
	}
	for c.lru.Len() >= c.maxSize {
		c.evictOldest()
	}
	entry := &cacheEntry{key: key, embedding: embedding}
	c.cache[key] = c.lru.PushFront(entry)
	return embedding, nil
}

// EmbedBatch checks the cache per text and forwards only the misses to the
// underlying embedder in one call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	results := make([][]float64, len(texts))
	var misses []int
	var missTexts []string

	for i, text := range texts {
		key := hashText(text)
		c.mu.RLock()
		elem, ok := c.cache[key]
		c.mu.RUnlock()
		if ok {
			results[i] = elem.Value.(*cacheEntry).embedding
			atomic.AddUint64(&c.hits, 1)
			c.mu.Lock()
			c.lru.MoveToFront(elem)
			c.mu.Unlock()
			continue
		}
		atomic.AddUint64(&c.misses, 1)
		misses = append(misses, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		embeddings, err := c.base.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		for j, embedding := range embeddings {
			i := misses[j]
			results[i] = embedding

			key := hashText(missTexts[j])
			if _, ok := c.cache[key]; !ok {
				for c.lru.Len() >= c.maxSize {
					c.evictOldest()
				}
				entry := &cacheEntry{key: key, embedding: embedding}
				c.cache[key] = c.lru.PushFront(entry)
			}
		}
		c.mu.Unlock()
	}

	return results, nil
}

// Dimensions delegates to the wrapped embedder.
func (c *CachedEmbedder) Dimensions() int { return c.base.Dimensions() }

// Provider delegates to the wrapped embedder.
func (c *CachedEmbedder) Provider() string { return c.base.Provider() }

// CacheStats reports LRU cache performance.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns current cache statistics.
func (c *CachedEmbedder) Stats() CacheStats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	c.mu.RLock()
	size := c.lru.Len()
	c.mu.RUnlock()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return CacheStats{Size: size, MaxSize: c.maxSize, Hits: hits, Misses: misses, HitRate: hitRate}
}

// Clear empties the cache.
func (c *CachedEmbedder) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element, c.maxSize)
	c.lru.Init()
}

// evictOldest removes the least recently used entry. Caller must hold mu.
func (c *CachedEmbedder) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	delete(c.cache, entry.key)
	c.lru.Remove(elem)
}
