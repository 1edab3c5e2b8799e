package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/skygraph-go/eval/emit"
	"github.com/dshills/skygraph-go/eval/store"
)

// Evaluator drives versioned, memoizing, parallel evaluation of node
// graphs. Construct one with New or NewWithOptions, then call Evaluate
// with the roots to compute.
//
// An Evaluator is safe for sequential reuse across Evaluate calls that
// share the same graph; values computed by earlier calls are served
// without recomputation.
type Evaluator struct {
	registry *Registry
	graph    Graph
	emitter  emit.Emitter
	opts     Options
}

// New creates an Evaluator. A nil graph gets a fresh in-memory graph; a
// nil emitter gets the null emitter.
func New(registry *Registry, graph Graph, emitter emit.Emitter, opts Options) *Evaluator {
	if graph == nil {
		graph = NewInMemoryGraph()
	}
	if emitter == nil {
		emitter = &emit.NullEmitter{}
	}
	return &Evaluator{
		registry: registry,
		graph:    graph,
		emitter:  emitter,
		opts:     opts.withDefaults(),
	}
}

// NewWithOptions creates an Evaluator from functional options.
//
// Example:
//
//	ev, err := eval.NewWithOptions(registry, nil, emitter,
//	    eval.WithKeepGoing(true),
//	    eval.WithParallelism(16),
//	)
func NewWithOptions(registry *Registry, graph Graph, emitter emit.Emitter, opts ...Option) (*Evaluator, error) {
	var options Options
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, err
		}
	}
	return New(registry, graph, emitter, options), nil
}

// Evaluate computes the given roots at the given graph version and
// returns their values and errors.
//
// In fail-fast mode (the default) the first node error aborts the run
// and is returned; the Result still carries whatever roots completed
// before the abort. In keep-going mode node errors are collected per
// root in the Result and the returned error is nil unless the
// infrastructure itself failed.
//
// Cancelling ctx aborts the run. Functions receive the same ctx and
// must honor it for cancellation to be prompt.
func (e *Evaluator) Evaluate(ctx context.Context, version Version, roots ...NodeKey) (*Result, error) {
	result := newResult()
	if len(roots) == 0 {
		return result, nil
	}
	if e.registry == nil {
		return nil, &EvalError{Message: "evaluator has no function registry", Code: "NO_REGISTRY"}
	}
	if version < MinimalVersion {
		return nil, &EvalError{Message: "evaluation version cannot be negative", Code: "BAD_VERSION"}
	}

	stateCache, err := NewComputeStateCache(e.opts.StateCacheSize)
	if err != nil {
		return nil, err
	}

	ec := &evalContext{
		graph:          e.graph,
		graphVersion:   version,
		minimalVersion: e.opts.MinimalVersion,
		registry:       e.registry,
		reporter:       e.emitter,
		replayVisitor:  NewReplayingEventVisitor(e.emitter),
		eventFilter:    e.opts.EventFilter,
		keepGoing:      e.opts.KeepGoing,
		progress:       e.opts.Progress,
		errorInfo:      e.opts.ErrorInfo,
		inconsistency:  e.opts.Inconsistency,
		metrics:        e.opts.Metrics,
		valueStore:     e.opts.Store,
		stateCache:     stateCache,
	}
	ec.makeVisitor = func() *NodeEntryVisitor {
		return newNodeEntryVisitor(ctx, e.opts.Parallelism, ec.metrics, func(taskCtx context.Context, key NodeKey, priority int) error {
			return ec.runTask(taskCtx, key, priority)
		})
	}

	batch, err := e.graph.GetBatch(nil, ReasonEnqueue, roots)
	if err != nil {
		return nil, err
	}
	enqueued := false
	for _, root := range roots {
		entry := batch[root]
		if entry == nil || entry.IsDone() {
			continue
		}
		enqueued = true
		ec.progress.Enqueued(root)
		ec.getVisitor().EnqueueEvaluation(root, 0)
	}

	var fatal error
	if enqueued {
		fatal = ec.getVisitor().Wait()
		ec.getVisitor().Close()
	}

	if fatal == nil {
		// Quiescence without a fatal error. Roots still unfinished are
		// stuck on dependency cycles; find and record them.
		ec.detectCycles(roots)
	}

	for _, root := range roots {
		entry, gerr := e.graph.Get(nil, ReasonCycleCheck, root)
		if gerr != nil || entry == nil {
			continue
		}
		switch entry.State() {
		case StateDone:
			result.addValue(root, entry.Value())
		case StateError:
			result.addError(root, entry.ErrorInfo())
		}
	}

	if fatal != nil {
		if info, ok := fatal.(*ErrorInfo); ok {
			if _, present := result.Error(info.Key); !present {
				for _, root := range roots {
					if root == info.Key {
						result.addError(root, info)
					}
				}
			}
		}
		return result, fatal
	}
	if !e.opts.KeepGoing && result.HasError() {
		return result, result.Err()
	}
	return result, nil
}

// runTask is one scheduled evaluation attempt for key. It acquires the
// entry, tries the cross-run cache, invokes the Function, and routes the
// outcome: completion, suspension, restart, or error. A non-nil return
// aborts the whole visitor.
func (ec *evalContext) runTask(ctx context.Context, key NodeKey, priority int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, err := ec.graph.Get(key, ReasonEvaluation, key)
	if err != nil {
		return err
	}
	if !entry.AcquireForEvaluation() {
		// Already terminal, or another task owns the node. Duplicate
		// enqueues are expected and harmless.
		return nil
	}

	start := time.Now()
	fnName := key.FunctionName()

	if done, err := ec.tryCacheHit(ctx, key, entry, priority, start); done || err != nil {
		return err
	}

	fn, ok := ec.registry.Lookup(fnName)
	if !ok {
		info := &ErrorInfo{Key: key, Err: fmt.Errorf("%w: %s", ErrNoFunction, fnName)}
		return ec.completeError(entry, info, priority, fnName, start)
	}

	env := newEnvironment(ec, key, entry)
	ec.progress.Computing(key)
	value, fnErr := fn.Compute(ctx, key, env)

	if len(env.inconsistent) > 0 {
		return ec.handleInconsistency(key, entry, env, priority, fnName, start)
	}

	if fnErr != nil {
		if ctx.Err() != nil && errors.Is(fnErr, ctx.Err()) {
			// Interrupted, not failed. Release ownership without recording
			// a terminal state and abort the visitor.
			entry.MarkWaiting(0)
			return fnErr
		}
		var info *ErrorInfo
		switch {
		case env.isChildError(fnErr):
			info = ec.errorInfo.FromChildErrors(key, env.childErrors)
		default:
			if ei, ok := fnErr.(*ErrorInfo); ok {
				info = ei
			} else {
				info = &ErrorInfo{Key: key, Err: fnErr}
			}
		}
		return ec.completeError(entry, info, priority, fnName, start)
	}

	if value != nil {
		return ec.completeDone(ctx, key, entry, env, value, priority, fnName, start)
	}

	// Suspension: no value, no error.
	if len(env.missing) == 0 {
		if len(env.childErrors) > 0 {
			info := ec.errorInfo.FromChildErrors(key, env.childErrors)
			return ec.completeError(entry, info, priority, fnName, start)
		}
		info := &ErrorInfo{Key: key, Err: ErrNoValue}
		return ec.completeError(entry, info, priority, fnName, start)
	}

	for _, dep := range env.newUnmet {
		ec.progress.Enqueued(dep)
		ec.getVisitor().EnqueueEvaluation(dep, priority+1)
	}
	ec.metrics.RecordTask(fnName, "suspended", time.Since(start))
	if entry.MarkWaiting(len(env.newUnmet)) {
		// Every awaited dependency signaled before the suspend took
		// effect; no further signal will re-enqueue this node, so do it
		// here.
		ec.progress.Enqueued(key)
		ec.getVisitor().EnqueueEvaluation(key, priority)
	}
	return nil
}

// tryCacheHit serves key from the cross-run value store when a record at
// an acceptable version exists, replaying its recorded events. Returns
// done=true when the node was completed from cache.
func (ec *evalContext) tryCacheHit(ctx context.Context, key NodeKey, entry *NodeEntry, priority int, start time.Time) (bool, error) {
	if ec.valueStore == nil || entry.Version() != NoVersion {
		return false, nil
	}
	rec, ok, err := ec.valueStore.LookupValue(ctx, key.FunctionName(), key.Argument(), int64(ec.graphVersion))
	if err != nil || !ok {
		// Lookup failures degrade to recomputation.
		return false, nil
	}
	if Version(rec.Version) < ec.minimalVersion {
		return false, nil
	}

	parents := entry.MarkDone(rec.Value, Version(rec.Version), nil, rec.EventSetID)
	ec.stateCache.Remove(key)

	if rec.EventSetID != "" {
		lookup := ec.lookupEventSet(ctx)
		if set, found := lookup(rec.EventSetID); found {
			ec.replayVisitor.Visit(set, lookup)
		}
	}

	ec.emit(emit.Event{
		Key:     keyString(key),
		Version: int64(ec.graphVersion),
		Msg:     "node_cache_hit",
		Meta:    map[string]interface{}{"cached_version": rec.Version},
	})
	ec.progress.Done(key, StateDone)
	ec.metrics.RecordTask(key.FunctionName(), "cache_hit", time.Since(start))
	return true, ec.signalParentsAndEnqueueIfReady(key, parents, ec.graphVersion, priority)
}

// handleInconsistency routes a detected dependency inconsistency: restart
// the attempt from scratch when the policy permits, fail the node
// otherwise.
func (ec *evalContext) handleInconsistency(key NodeKey, entry *NodeEntry, env *Environment, priority int, fnName string, start time.Time) error {
	if ec.restartPermitted(key, env.inconsistent) {
		discarded := entry.Restart()
		if batch, berr := ec.graph.GetBatch(key, ReasonSignalDep, discarded); berr == nil {
			for _, dep := range discarded {
				if child, ok := batch[dep]; ok {
					child.RemoveReverseDep(key)
				}
			}
		}
		ec.stateCache.Remove(key)
		ec.metrics.RecordRestart(fnName)
		ec.metrics.RecordTask(fnName, "restart", time.Since(start))
		ec.emit(emit.Event{
			Key:     keyString(key),
			Version: int64(ec.graphVersion),
			Msg:     "node_restarted",
			Meta:    map[string]interface{}{"missing_deps": len(env.inconsistent)},
		})
		entry.MarkWaiting(0)
		ec.progress.Enqueued(key)
		ec.getVisitor().EnqueueEvaluation(key, priority)
		return nil
	}
	missing := make([]string, len(env.inconsistent))
	for i, dep := range env.inconsistent {
		missing[i] = keyString(dep)
	}
	info := &ErrorInfo{Key: key, Err: fmt.Errorf("%w: missing %v", ErrInconsistency, missing)}
	return ec.completeError(entry, info, priority, fnName, start)
}

// completeDone records a successful value, persists it with its recorded
// events, and signals the node's parents.
func (ec *evalContext) completeDone(ctx context.Context, key NodeKey, entry *NodeEntry, env *Environment, value Value, priority int, fnName string, start time.Time) error {
	deps := entry.TemporaryDirectDeps()

	eventSetID := ec.buildEventSet(ctx, key, env, deps)

	parents := entry.MarkDone(value, ec.graphVersion, deps, eventSetID)
	ec.stateCache.Remove(key)

	if ec.valueStore != nil {
		rec := store.Record{
			Function:   key.FunctionName(),
			Argument:   key.Argument(),
			Version:    int64(ec.graphVersion),
			Value:      value,
			EventSetID: eventSetID,
		}
		if serr := ec.valueStore.SaveValue(ctx, rec); serr != nil {
			ec.emit(emit.Event{
				Key:     keyString(key),
				Version: int64(ec.graphVersion),
				Msg:     "store_error",
				Meta:    map[string]interface{}{"error": serr.Error()},
			})
		}
	}

	ec.emit(emit.Event{
		Key:     keyString(key),
		Version: int64(ec.graphVersion),
		Msg:     "node_done",
		Meta:    map[string]interface{}{"deps": len(deps)},
	})
	ec.progress.Done(key, StateDone)
	ec.metrics.RecordTask(fnName, "done", time.Since(start))
	return ec.signalParentsAndEnqueueIfReady(key, parents, ec.graphVersion, priority)
}

// buildEventSet assembles and persists the event set recorded with key's
// value: the invocation's own stored events plus references to the event
// sets of its dependencies. Returns "" when there is nothing to record.
func (ec *evalContext) buildEventSet(ctx context.Context, key NodeKey, env *Environment, deps []NodeKey) string {
	var children []string
	if len(deps) > 0 {
		if batch, berr := ec.graph.GetBatch(key, ReasonSignalDep, deps); berr == nil {
			for _, dep := range deps {
				if child, ok := batch[dep]; ok {
					if id := child.EventSetID(); id != "" {
						children = append(children, id)
					}
				}
			}
		}
	}
	if len(env.events) == 0 && len(children) == 0 {
		return ""
	}

	id := keyString(key) + "@" + ec.graphVersion.String()
	set := store.EventSet{ID: id, Events: env.events, Children: children}
	ec.replayVisitor.markVisited(id)
	if ec.valueStore != nil {
		if serr := ec.valueStore.SaveEventSet(ctx, set); serr != nil {
			ec.emit(emit.Event{
				Key:     keyString(key),
				Version: int64(ec.graphVersion),
				Msg:     "store_error",
				Meta:    map[string]interface{}{"error": serr.Error()},
			})
			return ""
		}
	}
	return id
}

// completeError records a node failure. In keep-going mode the failure
// propagates through normal signaling; in fail-fast mode parents are
// signaled for bookkeeping only and the error aborts the visitor.
func (ec *evalContext) completeError(entry *NodeEntry, info *ErrorInfo, priority int, fnName string, start time.Time) error {
	key := entry.Key()
	parents := entry.MarkError(info, ec.graphVersion)
	ec.stateCache.Remove(key)

	ec.emit(emit.Event{
		Key:     keyString(key),
		Version: int64(ec.graphVersion),
		Msg:     "node_error",
		Meta:    map[string]interface{}{"error": info.Error(), "propagated": info.Propagated},
	})
	ec.progress.Done(key, StateError)
	ec.metrics.RecordTask(fnName, "error", time.Since(start))

	if ec.keepGoing {
		return ec.signalParentsAndEnqueueIfReady(key, parents, ec.graphVersion, priority)
	}
	if serr := ec.signalParentsOnAbort(key, parents, ec.graphVersion); serr != nil {
		return serr
	}
	return info
}
