package core

import (
	"fmt"
	"strconv"
	"sync"
)

// PairKey identifies an unordered treatment pair.
type PairKey struct {
	First, Second string
}

// NewPairKey orders a and b so that (a, b) and (b, a) produce the same key.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{First: a, Second: b}
}

func (k PairKey) String() string { return fmt.Sprintf("%s,%s", k.First, k.Second) }

// flightKey encodes k without ambiguity; treatment keys may contain commas.
func (k PairKey) flightKey() string { return strconv.Quote(k.First) + "," + strconv.Quote(k.Second) }

// ComparisonCache holds loaded comparisons for the lifetime of its owner.
// Entries are never replaced or evicted.
type ComparisonCache interface {
	Get(key PairKey) (*PairwiseComparison, bool)
	// Add stores c unless key is already present, and returns the stored value.
	Add(key PairKey, c *PairwiseComparison) *PairwiseComparison
	Len() int
}

// MemoryCache is a ComparisonCache safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[PairKey]*PairwiseComparison
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[PairKey]*PairwiseComparison)}
}

// Get implements ComparisonCache.
func (m *MemoryCache) Get(key PairKey) (*PairwiseComparison, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.entries[key]
	return c, ok
}

// Add implements ComparisonCache.
func (m *MemoryCache) Add(key PairKey, c *PairwiseComparison) *PairwiseComparison {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[key]; ok {
		return existing
	}
	m.entries[key] = c
	return c
}

// Len implements ComparisonCache.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
