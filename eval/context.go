package eval

import (
	"context"
	"sync"

	"github.com/dshills/skygraph-go/eval/emit"
	"github.com/dshills/skygraph-go/eval/store"
)

// evalContext holds the shared services every concurrent evaluation task
// reads: the graph, the version window, the function registry, the
// reporter and replaying event visitor, the failure policy, and the
// lazily constructed worker pool. Tasks treat it as read-only.
//
// Also used during cycle detection.
type evalContext struct {
	graph          Graph
	graphVersion   Version
	minimalVersion Version
	registry       *Registry

	reporter      emit.Emitter
	replayVisitor *ReplayingEventVisitor
	eventFilter   func(key NodeKey, msg string) bool

	keepGoing     bool
	progress      ProgressReceiver
	errorInfo     ErrorInfoManager
	inconsistency InconsistencyReceiver
	metrics       *PrometheusMetrics
	valueStore    store.Store
	stateCache    *ComputeStateCache

	// The visitor is built on first use so evaluations that resolve
	// entirely from cache never pay the pool startup cost.
	visitorOnce sync.Once
	visitor     *NodeEntryVisitor
	makeVisitor func() *NodeEntryVisitor
}

// getVisitor returns the shared worker pool, constructing it on first
// use.
func (ec *evalContext) getVisitor() *NodeEntryVisitor {
	ec.visitorOnce.Do(func() {
		ec.visitor = ec.makeVisitor()
	})
	return ec.visitor
}

// signalParentsAndEnqueueIfReady signals every parent of key that it
// completed at version, and enqueues each parent that became eligible to
// resume. Parents whose identity declares partial re-evaluation support
// are enqueued opportunistically on every signal.
//
// Parents already done are skipped: with cycles a parent can legitimately
// finish before its child, and done entries must not be re-signaled.
func (ec *evalContext) signalParentsAndEnqueueIfReady(key NodeKey, parents []NodeKey, version Version, priority int) error {
	if len(parents) == 0 {
		return nil
	}
	batch, err := ec.graph.GetBatch(key, ReasonSignalDep, parents)
	if err != nil {
		return err
	}
	for _, parent := range parents {
		entry, ok := batch[parent]
		if !ok {
			continue
		}
		if entry.IsDone() {
			continue
		}
		evaluationRequired := entry.SignalDep(version, key)
		if evaluationRequired || parent.SupportsPartialReevaluation() {
			ec.progress.Enqueued(parent)
			ec.getVisitor().EnqueueEvaluation(parent, priority)
		}
	}
	return nil
}

// signalParentsOnAbort signals every not-yet-done parent of key so that
// reverse-dep and pending-signal bookkeeping stays consistent for
// post-abort diagnostics, but never enqueues new work: the evaluation is
// aborting.
func (ec *evalContext) signalParentsOnAbort(key NodeKey, parents []NodeKey, version Version) error {
	if len(parents) == 0 {
		return nil
	}
	batch, err := ec.graph.GetBatch(key, ReasonSignalDep, parents)
	if err != nil {
		return err
	}
	for _, parent := range parents {
		entry, ok := batch[parent]
		if !ok {
			continue
		}
		if !entry.IsDone() {
			entry.SignalDep(version, key)
		}
	}
	return nil
}

// restartPermitted consults the inconsistency policy for key.
func (ec *evalContext) restartPermitted(key NodeKey, missing []NodeKey) bool {
	return ec.inconsistency.RestartPermitted(key, missing)
}

// storeEvents reports whether an event with msg should be persisted with
// key's value for later replay.
func (ec *evalContext) storeEvents(key NodeKey, msg string) bool {
	if ec.eventFilter == nil {
		return true
	}
	return ec.eventFilter(key, msg)
}

// lookupEventSet resolves recorded event sets through the value store.
func (ec *evalContext) lookupEventSet(ctx context.Context) EventSetLookup {
	return func(id string) (store.EventSet, bool) {
		if ec.valueStore == nil {
			return store.EventSet{}, false
		}
		set, ok, err := ec.valueStore.LookupEventSet(ctx, id)
		if err != nil || !ok {
			return store.EventSet{}, false
		}
		return set, true
	}
}

// emit delivers an engine event to the reporter, if one is configured.
func (ec *evalContext) emit(event emit.Event) {
	if ec.reporter != nil {
		ec.reporter.Emit(event)
	}
}
