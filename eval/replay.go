package eval

import (
	"sync"

	"github.com/dshills/skygraph-go/eval/emit"
	"github.com/dshills/skygraph-go/eval/store"
)

// EventSetLookup resolves a recorded event set by its identity. Backed by
// the value store during evaluation; tests can supply a map.
type EventSetLookup func(id string) (store.EventSet, bool)

// ReplayingEventVisitor forwards the recorded events of cached node values
// to the active reporter, exactly once per distinct event set across the
// whole evaluation.
//
// Recorded event sets nest: one node's set references the sets of its
// dependencies, so overlapping result sets share members. The visitor
// keeps a shared visited set keyed by event-set identity; a set already
// replayed (directly or as another node's child) is skipped entirely.
//
// Safe for concurrent use from multiple evaluation tasks.
type ReplayingEventVisitor struct {
	mu       sync.Mutex
	visited  map[string]struct{}
	reporter emit.Emitter
}

// NewReplayingEventVisitor creates a visitor forwarding replayed events to
// reporter.
func NewReplayingEventVisitor(reporter emit.Emitter) *ReplayingEventVisitor {
	return &ReplayingEventVisitor{
		visited:  make(map[string]struct{}),
		reporter: reporter,
	}
}

// Visit replays the event set and, transitively, every not-yet-visited
// child set, forwarding each distinct event to the reporter once.
func (r *ReplayingEventVisitor) Visit(set store.EventSet, lookup EventSetLookup) {
	if !r.markVisited(set.ID) {
		return
	}

	// Collect the frontier first so the lock is never held while the
	// reporter runs.
	pending := []store.EventSet{set}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		for _, event := range current.Events {
			r.reporter.Emit(event)
		}
		for _, childID := range current.Children {
			if !r.markVisited(childID) {
				continue
			}
			if child, ok := lookup(childID); ok {
				pending = append(pending, child)
			}
		}
	}
}

// Visited reports whether the set identity was already replayed.
func (r *ReplayingEventVisitor) Visited(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.visited[id]
	return ok
}

// markVisited claims the identity, returning false when a concurrent or
// earlier Visit already claimed it. Empty identities are never replayed.
func (r *ReplayingEventVisitor) markVisited(id string) bool {
	if id == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.visited[id]; ok {
		return false
	}
	r.visited[id] = struct{}{}
	return true
}
