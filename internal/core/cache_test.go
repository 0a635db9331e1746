package core

import (
	"sync"
	"testing"
)

func TestPairKeyIsUnordered(t *testing.T) {
	if NewPairKey("heat", "ctrl") != NewPairKey("ctrl", "heat") {
		t.Fatalf("pair key depends on argument order")
	}
	if got := NewPairKey("heat", "ctrl").String(); got != "ctrl,heat" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestMemoryCacheKeepsFirstEntry(t *testing.T) {
	cache := NewMemoryCache()
	key := NewPairKey("a", "b")
	first := NewPairwiseComparison("a", "b", nil)
	second := NewPairwiseComparison("a", "b", nil)
	if got := cache.Add(key, first); got != first {
		t.Fatalf("first add should store its value")
	}
	if got := cache.Add(key, second); got != first {
		t.Fatalf("entries must not be replaced")
	}
	if c, ok := cache.Get(NewPairKey("b", "a")); !ok || c != first {
		t.Fatalf("lookup by reversed pair failed")
	}
	if _, ok := cache.Get(NewPairKey("a", "c")); ok {
		t.Fatalf("unexpected hit")
	}
	if cache.Len() != 1 {
		t.Fatalf("len %d", cache.Len())
	}
}

func TestMemoryCacheConcurrentAdds(t *testing.T) {
	cache := NewMemoryCache()
	key := NewPairKey("a", "b")
	var wg sync.WaitGroup
	stored := make([]*PairwiseComparison, 16)
	for i := range stored {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored[i] = cache.Add(key, NewPairwiseComparison("a", "b", nil))
		}()
	}
	wg.Wait()
	for _, c := range stored[1:] {
		if c != stored[0] {
			t.Fatalf("concurrent adds returned different values")
		}
	}
}
