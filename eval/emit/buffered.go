package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// Events are organized per node key for efficient retrieval, with a
// parallel flat list preserving global emission order. Intended for tests,
// debugging and post-evaluation analysis.
//
// Warning: all events are retained until cleared. For long evaluations
// with high event volume prefer a log or tracing backend.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	ev := eval.New(registry, nil, emitter, eval.Options{})
//	ev.Evaluate(ctx, version, root)
//	done := emitter.History("file_hash(/src/main.go)")
type BufferedEmitter struct {
	mu      sync.RWMutex
	byKey   map[string][]Event
	ordered []Event
}

// HistoryFilter selects events from a node's history. Empty fields match
// everything; set fields combine with AND logic.
type HistoryFilter struct {
	// Msg filters by exact event message.
	Msg string

	// Version filters by graph version; nil means any version.
	Version *int64
}

// NewBufferedEmitter creates an empty in-memory emitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{byKey: make(map[string][]Event)}
}

// Emit stores one event. Safe for concurrent use.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byKey[event.Key] = append(b.byKey[event.Key], event)
	b.ordered = append(b.ordered, event)
}

// History returns all events recorded for a node key, in emission order.
// Returns an empty slice when the key has no events.
func (b *BufferedEmitter) History(key string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	events := b.byKey[key]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// HistoryWithFilter returns the node's events matching the filter, in
// emission order.
func (b *BufferedEmitter) HistoryWithFilter(key string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make([]Event, 0)
	for _, event := range b.byKey[key] {
		if filter.Msg != "" && event.Msg != filter.Msg {
			continue
		}
		if filter.Version != nil && event.Version != *filter.Version {
			continue
		}
		result = append(result, event)
	}
	return result
}

// All returns every recorded event across all keys in global emission
// order.
func (b *BufferedEmitter) All() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make([]Event, len(b.ordered))
	copy(result, b.ordered)
	return result
}

// Count returns the number of events matching msg across all keys. Handy
// for exactly-once assertions in tests.
func (b *BufferedEmitter) Count(msg string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, event := range b.ordered {
		if event.Msg == msg {
			n++
		}
	}
	return n
}

// Clear removes stored events. A non-empty key clears only that node's
// events (the global ordered list keeps other keys' events); an empty key
// clears everything.
func (b *BufferedEmitter) Clear(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if key == "" {
		b.byKey = make(map[string][]Event)
		b.ordered = nil
		return
	}
	delete(b.byKey, key)
	filtered := b.ordered[:0]
	for _, event := range b.ordered {
		if event.Key != key {
			filtered = append(filtered, event)
		}
	}
	b.ordered = filtered
}
