package eval

import "sync"

// Reason describes why a batch of node entries is being requested. It is
// metadata only: diagnostics and storage backends may use it for logging
// or prefetch tuning, but it carries no semantic effect on the returned
// entries beyond whether missing entries are created.
type Reason int

const (
	// ReasonDep: a running task is declaring the keys as dependencies.
	// Missing entries are created.
	ReasonDep Reason = iota

	// ReasonEnqueue: the keys are evaluation roots being enqueued.
	// Missing entries are created.
	ReasonEnqueue

	// ReasonEvaluation: a task is fetching its own entry to evaluate it.
	// Missing entries are created.
	ReasonEvaluation

	// ReasonSignalDep: a completed node is fetching its parents to signal
	// them. Lookup only.
	ReasonSignalDep

	// ReasonCycleCheck: cycle detection is walking the unfinished graph.
	// Lookup only.
	ReasonCycleCheck

	// ReasonPrefetch: a backend-directed warm-up request. Lookup only.
	ReasonPrefetch
)

// String returns the reason's wire name.
func (r Reason) String() string {
	switch r {
	case ReasonDep:
		return "dep"
	case ReasonEnqueue:
		return "enqueue"
	case ReasonEvaluation:
		return "evaluation"
	case ReasonSignalDep:
		return "signal_dep"
	case ReasonCycleCheck:
		return "cycle_check"
	case ReasonPrefetch:
		return "prefetch"
	default:
		return "unknown"
	}
}

// createsMissing reports whether a batch request with this reason creates
// entries for absent keys.
func (r Reason) createsMissing() bool {
	switch r {
	case ReasonDep, ReasonEnqueue, ReasonEvaluation:
		return true
	default:
		return false
	}
}

// NodeBatch maps requested keys to their entries. Keys absent from the
// graph under a lookup-only reason are omitted.
type NodeBatch map[NodeKey]*NodeEntry

// Graph is the storage abstraction mapping node identity to node entry.
//
// Implementations must guarantee an identity map: at most one entry object
// exists per key at any time, and concurrent overlapping batch requests
// observe the same entry objects. Batch requests are atomic per key, not
// across the batch.
type Graph interface {
	// GetBatch fetches (and, depending on reason, creates) the entries for
	// keys. requester names the node on whose behalf the batch is
	// requested; it is diagnostic metadata and may be nil for roots.
	GetBatch(requester NodeKey, reason Reason, keys []NodeKey) (NodeBatch, error)

	// Get is the single-key convenience form of GetBatch.
	Get(requester NodeKey, reason Reason, key NodeKey) (*NodeEntry, error)
}

// InMemoryGraph is the process-local Graph implementation backing one
// evaluation. It is safe for concurrent use.
type InMemoryGraph struct {
	mu      sync.RWMutex
	entries map[NodeKey]*NodeEntry
}

// NewInMemoryGraph creates an empty in-memory graph.
func NewInMemoryGraph() *InMemoryGraph {
	return &InMemoryGraph{entries: make(map[NodeKey]*NodeEntry)}
}

// GetBatch implements Graph.
func (g *InMemoryGraph) GetBatch(_ NodeKey, reason Reason, keys []NodeKey) (NodeBatch, error) {
	batch := make(NodeBatch, len(keys))

	g.mu.RLock()
	misses := 0
	for _, key := range keys {
		if entry, ok := g.entries[key]; ok {
			batch[key] = entry
		} else {
			misses++
		}
	}
	g.mu.RUnlock()

	if misses == 0 || !reason.createsMissing() {
		return batch, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, key := range keys {
		if _, ok := batch[key]; ok {
			continue
		}
		entry, ok := g.entries[key]
		if !ok {
			entry = NewNodeEntry(key)
			g.entries[key] = entry
		}
		batch[key] = entry
	}
	return batch, nil
}

// Get implements Graph.
func (g *InMemoryGraph) Get(requester NodeKey, reason Reason, key NodeKey) (*NodeEntry, error) {
	batch, err := g.GetBatch(requester, reason, []NodeKey{key})
	if err != nil {
		return nil, err
	}
	return batch[key], nil
}

// Len returns the number of entries in the graph.
func (g *InMemoryGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Keys returns every key present in the graph, in no particular order.
func (g *InMemoryGraph) Keys() []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]NodeKey, 0, len(g.entries))
	for k := range g.entries {
		keys = append(keys, k)
	}
	return keys
}
