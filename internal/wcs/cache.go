package wcs

import (
	"container/list"
	"sync"

	"github.com/tessloc/tessloc/pkg/tess"
)

// DefaultCacheSize comfortably exceeds the number of triples in the known
// data set, so eviction only occurs as a safety net against unbounded
// growth if the mission keeps extending.
const DefaultCacheSize = 4096

// ResolutionCache memoizes parsed WCS solutions per (sector, camera, ccd)
// triple with LRU eviction. Repeated resolutions of the same triple return
// the identical *WCS.
type ResolutionCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[tess.CCDKey]*list.Element
}

type cacheEntry struct {
	key tess.CCDKey
	wcs *WCS
}

// NewResolutionCache creates a cache holding at most capacity solutions.
// Non-positive capacities select DefaultCacheSize.
func NewResolutionCache(capacity int) *ResolutionCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &ResolutionCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[tess.CCDKey]*list.Element),
	}
}

// Resolve returns the parsed solution for key, parsing header only on the
// first call per key.
func (c *ResolutionCache) Resolve(key tess.CCDKey, header string) (*WCS, error) {
	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		w := elem.Value.(*cacheEntry).wcs
		c.mu.Unlock()
		return w, nil
	}
	c.mu.Unlock()

	w, err := ParseHeader(header)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another resolver may have raced us here; keep the first entry so the
	// identity guarantee holds.
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry).wcs, nil
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, wcs: w})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
	return w, nil
}

// Len returns the number of cached solutions.
func (c *ResolutionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Reset drops every cached solution.
func (c *ResolutionCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[tess.CCDKey]*list.Element)
}
