package eval

import lru "github.com/hashicorp/golang-lru"

// ComputeStateCache holds per-node scratch state that survives across
// suspensions and restarts of the same evaluation attempt.
//
// The cache is bounded: entries may be evicted between restarts, so
// Functions must treat stored state as best-effort and recompute from
// scratch when it is gone. State is removed eagerly when a node reaches a
// terminal state.
type ComputeStateCache struct {
	cache *lru.Cache
}

// NewComputeStateCache creates a bounded cache holding at most size
// entries. Size must be positive.
func NewComputeStateCache(size int) (*ComputeStateCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, &EvalError{
			Message: "invalid compute-state cache size: " + err.Error(),
			Code:    "BAD_CACHE_SIZE",
		}
	}
	return &ComputeStateCache{cache: cache}, nil
}

// Get returns the scratch state stored for key, or nil if absent or
// evicted.
func (c *ComputeStateCache) Get(key NodeKey) any {
	if state, ok := c.cache.Get(key); ok {
		return state
	}
	return nil
}

// Put stores scratch state for key, possibly evicting another node's
// state.
func (c *ComputeStateCache) Put(key NodeKey, state any) {
	c.cache.Add(key, state)
}

// Remove drops the scratch state for key. Called when the node completes.
func (c *ComputeStateCache) Remove(key NodeKey) {
	c.cache.Remove(key)
}

// Len returns the number of cached entries.
func (c *ComputeStateCache) Len() int {
	return c.cache.Len()
}
