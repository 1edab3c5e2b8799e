package eval

import (
	"go.uber.org/multierr"

	"github.com/dshills/skygraph-go/eval/emit"
)

// Environment is the facade a Function uses to declare dependencies,
// read their values, report events, and keep scratch state across
// suspensions. An Environment is valid only for the duration of one
// Compute invocation; Functions must not retain it.
//
// An Environment is used by a single task and is not safe for concurrent
// use.
type Environment struct {
	ec    *evalContext
	key   NodeKey
	entry *NodeEntry

	// newUnmet are the dependencies registered for the first time by this
	// invocation that were not yet done. Their count feeds the suspend
	// accounting; the keys themselves get enqueued.
	newUnmet []NodeKey

	// missing are the dependencies requested by this invocation that were
	// not done, whether newly registered or carried over from an earlier
	// invocation of the same attempt.
	missing []NodeKey

	// inconsistent are dependencies whose graph entries did not match what
	// this attempt previously established: the backend dropped or recreated
	// them. Non-empty inconsistency triggers the restart policy.
	inconsistent []NodeKey

	childErrors []*ErrorInfo
	childErrSet map[NodeKey]struct{}

	// events are the reported events to persist with the value if this
	// invocation completes the node.
	events []emit.Event
}

func newEnvironment(ec *evalContext, key NodeKey, entry *NodeEntry) *Environment {
	return &Environment{ec: ec, key: key, entry: entry}
}

// GetValue declares dep as a dependency of this node and returns its
// value.
//
// Returns (nil, nil) when the dependency has not finished: the caller
// should eventually return (nil, nil) itself to suspend, and will be
// re-invoked once the dependency completes. Returns (nil, err) with the
// dependency's ErrorInfo when the dependency failed.
func (e *Environment) GetValue(dep NodeKey) (Value, error) {
	values, err := e.GetValues(dep)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// GetValues declares every dep as a dependency and returns their values,
// aligned with deps. Unfinished dependencies yield nil values; failed
// dependencies yield nil values and contribute to the combined error.
// Batching dependency declarations lets backends fetch entries in one
// round trip.
func (e *Environment) GetValues(deps ...NodeKey) ([]Value, error) {
	values := make([]Value, len(deps))
	if len(deps) == 0 {
		return values, nil
	}

	batch, err := e.ec.graph.GetBatch(e.key, ReasonDep, deps)
	if err != nil {
		return nil, err
	}

	var combined error
	for i, dep := range deps {
		entry, ok := batch[dep]
		if !ok {
			// The backend failed to produce an entry under a creating
			// reason. Treat as an inconsistency and leave the value
			// missing.
			e.inconsistent = append(e.inconsistent, dep)
			e.missing = append(e.missing, dep)
			continue
		}

		isNew := e.entry.AddTemporaryDirectDep(dep)
		if isNew {
			if done := entry.AddReverseDepAndCheckIfDone(e.key); !done {
				e.newUnmet = append(e.newUnmet, dep)
				e.missing = append(e.missing, dep)
				continue
			}
		} else {
			if entry.State() == StateNotStarted {
				// Previously established dependency came back with a fresh
				// entry: the backend dropped it since the last invocation.
				e.inconsistent = append(e.inconsistent, dep)
				e.missing = append(e.missing, dep)
				continue
			}
			if !entry.IsDone() {
				e.missing = append(e.missing, dep)
				continue
			}
		}

		if info := entry.ErrorInfo(); info != nil {
			e.recordChildError(dep, info)
			combined = multierr.Append(combined, info)
			continue
		}
		values[i] = entry.Value()
	}
	return values, combined
}

// ValuesMissing reports whether any dependency requested during this
// invocation has not finished yet. A Function whose dependencies are
// missing should return (nil, nil) to suspend.
func (e *Environment) ValuesMissing() bool {
	return len(e.missing) > 0
}

// Report delivers a computation event. The event reaches the live
// reporter immediately; if the event filter admits it, it is also
// recorded with the node's value so cache hits in later runs replay it.
//
// Events reported by invocations that suspend are delivered live each
// time; only the completing invocation's events are persisted.
func (e *Environment) Report(msg string, meta map[string]interface{}) {
	event := emit.Event{
		Key:     keyString(e.key),
		Version: int64(e.ec.graphVersion),
		Msg:     msg,
		Meta:    meta,
	}
	e.ec.emit(event)
	if e.ec.storeEvents(e.key, msg) {
		e.events = append(e.events, event)
	}
}

// ComputeState returns the scratch state stored by an earlier invocation
// of this node's attempt, or nil if none was stored or it was evicted.
func (e *Environment) ComputeState() any {
	return e.ec.stateCache.Get(e.key)
}

// SetComputeState stores scratch state that survives suspensions of this
// attempt. The state cache is bounded; state may be evicted and must be
// reconstructible.
func (e *Environment) SetComputeState(state any) {
	e.ec.stateCache.Put(e.key, state)
}

// Version returns the graph version this evaluation runs at.
func (e *Environment) Version() Version {
	return e.ec.graphVersion
}

// DepErrors returns the error infos of failed dependencies observed by
// this invocation, in discovery order. Functions in error-tolerant flows
// can inspect them instead of propagating the combined error.
func (e *Environment) DepErrors() []*ErrorInfo {
	infos := make([]*ErrorInfo, len(e.childErrors))
	copy(infos, e.childErrors)
	return infos
}

func (e *Environment) recordChildError(dep NodeKey, info *ErrorInfo) {
	if e.childErrSet == nil {
		e.childErrSet = make(map[NodeKey]struct{})
	}
	if _, ok := e.childErrSet[dep]; ok {
		return
	}
	e.childErrSet[dep] = struct{}{}
	e.childErrors = append(e.childErrors, info)
}

// isChildError reports whether err is (or wraps exactly) the error info
// of one of this invocation's failed dependencies, meaning the Function
// chose to propagate it unchanged.
func (e *Environment) isChildError(err error) bool {
	for _, info := range e.childErrors {
		if err == info {
			return true
		}
	}
	if merr := multierr.Errors(err); len(merr) > 1 {
		for _, part := range merr {
			if e.isChildError(part) {
				return true
			}
		}
	}
	return false
}
