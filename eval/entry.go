package eval

import (
	"sync"
	"sync/atomic"
)

// LifecycleState is the position of a node entry in its lifecycle.
type LifecycleState int32

const (
	// StateNotStarted means the entry exists but nothing references it yet.
	StateNotStarted LifecycleState = iota

	// StateAdded means at least one reverse dependency (or a root request)
	// registered the node, but no task has begun evaluating it.
	StateAdded

	// StateEvaluating means a task owns the node's computation, or the node
	// is suspended waiting for dependency signals.
	StateEvaluating

	// StateDone means the node completed with a value at some version.
	StateDone

	// StateError means the node completed with an error at some version.
	StateError
)

// String returns the lowercase name of the state.
func (s LifecycleState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateAdded:
		return "added"
	case StateEvaluating:
		return "evaluating"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Value is the result payload of a successful node computation. Values are
// opaque to the engine; persistent stores additionally require them to be
// JSON-serializable.
type Value any

// NodeEntry is the mutable record for one node. Entries are owned by the
// Graph (identity map: at most one entry object per key) and referenced by
// key from evaluation tasks.
//
// Mutation discipline:
//   - Only the task that acquired the entry (AcquireForEvaluation) may
//     record computation results (MarkDone, MarkError, MarkWaiting,
//     Restart, temporary direct deps).
//   - Only the signaling protocol mutates the pending-signal counter and
//     reverse-dependency set (SignalDep, AddReverseDepAndCheckIfDone).
//
// The pending-signal counter is an atomic so that exactly one signal
// observes the zero crossing and triggers exactly one re-enqueue.
type NodeEntry struct {
	key NodeKey

	mu    sync.Mutex
	state LifecycleState

	// owned is true while a single task holds the evaluation phase.
	owned bool

	// Result fields, valid once state is StateDone or StateError.
	value   Value
	errInfo *ErrorInfo
	version Version

	// eventSetID names the recorded event set persisted with the value,
	// empty when the evaluation produced no stored events.
	eventSetID string

	// directDeps are the dependencies read by the last successful
	// computation, in discovery order.
	directDeps []NodeKey

	// tempDeps accumulate dependencies declared by the in-flight attempt.
	// Discarded on restart, promoted to directDeps on completion.
	tempDeps   []NodeKey
	tempDepSet map[NodeKey]struct{}

	// reverseDeps are the parents to signal when this node completes.
	reverseDeps map[NodeKey]struct{}

	// signaled records the children that already delivered a completion
	// signal, per child, to keep signaling idempotent within a version.
	signaled map[NodeKey]Version

	// pendingSignals counts outstanding dependency completions. It may go
	// negative transiently when children complete before the owning task
	// suspends; the zero crossing is only reachable once per wave.
	pendingSignals atomic.Int64
}

// NewNodeEntry creates an entry in StateNotStarted for the given key.
func NewNodeEntry(key NodeKey) *NodeEntry {
	return &NodeEntry{
		key:     key,
		state:   StateNotStarted,
		version: NoVersion,
	}
}

// Key returns the node identity this entry records.
func (n *NodeEntry) Key() NodeKey { return n.key }

// State returns the current lifecycle state.
func (n *NodeEntry) State() LifecycleState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// IsDone reports whether the entry reached a terminal state (value or
// error) for its current version.
func (n *NodeEntry) IsDone() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state == StateDone || n.state == StateError
}

// Value returns the recorded value, or nil if the entry is not StateDone.
func (n *NodeEntry) Value() Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateDone {
		return nil
	}
	return n.value
}

// ErrorInfo returns the recorded error info, or nil if the entry is not
// StateError.
func (n *NodeEntry) ErrorInfo() *ErrorInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateError {
		return nil
	}
	return n.errInfo
}

// Version returns the version of the last completed evaluation, or
// NoVersion if the node never completed.
func (n *NodeEntry) Version() Version {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version
}

// EventSetID returns the identity of the stored event set recorded with
// the node's value, or "" if none was recorded.
func (n *NodeEntry) EventSetID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eventSetID
}

// DirectDeps returns the dependencies recorded by the last successful
// computation, in discovery order.
func (n *NodeEntry) DirectDeps() []NodeKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	deps := make([]NodeKey, len(n.directDeps))
	copy(deps, n.directDeps)
	return deps
}

// TemporaryDirectDeps returns the dependencies declared by the in-flight
// attempt. Used by cycle detection to walk the unfinished subgraph.
func (n *NodeEntry) TemporaryDirectDeps() []NodeKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	deps := make([]NodeKey, len(n.tempDeps))
	copy(deps, n.tempDeps)
	return deps
}

// ReverseDeps returns a snapshot of the parents registered on this node.
func (n *NodeEntry) ReverseDeps() []NodeKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reverseDepsLocked()
}

func (n *NodeEntry) reverseDepsLocked() []NodeKey {
	parents := make([]NodeKey, 0, len(n.reverseDeps))
	for p := range n.reverseDeps {
		parents = append(parents, p)
	}
	return parents
}

// AddReverseDepAndCheckIfDone registers parent as a reverse dependency and
// reports whether this entry is already done (in which case the parent
// must not wait for a signal: none will come for the current version).
//
// The first registration moves a StateNotStarted entry to StateAdded.
// Registration is idempotent.
func (n *NodeEntry) AddReverseDepAndCheckIfDone(parent NodeKey) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reverseDeps == nil {
		n.reverseDeps = make(map[NodeKey]struct{})
	}
	n.reverseDeps[parent] = struct{}{}
	if n.state == StateNotStarted {
		n.state = StateAdded
	}
	return n.state == StateDone || n.state == StateError
}

// RemoveReverseDep unregisters a parent, used when a restarting parent
// discards the dependency declarations of an aborted attempt.
func (n *NodeEntry) RemoveReverseDep(parent NodeKey) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.reverseDeps, parent)
}

// AcquireForEvaluation claims the single-owner evaluation phase. It
// returns false if the entry is already terminal or another task currently
// owns it; the caller must then abandon the evaluation attempt.
func (n *NodeEntry) AcquireForEvaluation() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateDone || n.state == StateError || n.owned {
		return false
	}
	if n.state == StateNotStarted {
		n.state = StateAdded
	}
	n.state = StateEvaluating
	n.owned = true
	return true
}

// AddTemporaryDirectDep records a dependency declared by the in-flight
// attempt and reports whether it is new for this attempt. Only the owning
// task may call it.
func (n *NodeEntry) AddTemporaryDirectDep(dep NodeKey) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tempDepSet == nil {
		n.tempDepSet = make(map[NodeKey]struct{})
	}
	if _, ok := n.tempDepSet[dep]; ok {
		return false
	}
	n.tempDepSet[dep] = struct{}{}
	n.tempDeps = append(n.tempDeps, dep)
	return true
}

// MarkWaiting suspends the evaluation: it releases ownership and adds the
// number of newly declared unmet dependencies to the pending-signal
// counter. It reports whether the node is already eligible to resume,
// which happens when every awaited dependency signaled before the suspend
// took effect; the caller must then re-enqueue the node itself, since no
// further signal will arrive to do so.
func (n *NodeEntry) MarkWaiting(newUnmetDeps int) bool {
	n.mu.Lock()
	n.owned = false
	n.mu.Unlock()
	// The counter may be negative here if children signaled between their
	// registration and this suspend; the addition settles the balance.
	return n.pendingSignals.Add(int64(newUnmetDeps)) == 0
}

// SignalDep delivers a dependency-completion signal from child at the
// given version and reports whether the node is now eligible to resume
// (the signal that observes the pending counter's zero crossing).
//
// Signaling a terminal entry is a no-op returning false; with cycles a
// child can legitimately complete after its parent already finished.
// Duplicate signals from the same child at the same version are ignored.
func (n *NodeEntry) SignalDep(version Version, child NodeKey) bool {
	n.mu.Lock()
	if n.state == StateDone || n.state == StateError {
		n.mu.Unlock()
		return false
	}
	if n.signaled == nil {
		n.signaled = make(map[NodeKey]Version)
	}
	if v, ok := n.signaled[child]; ok && v == version {
		n.mu.Unlock()
		return false
	}
	n.signaled[child] = version
	n.mu.Unlock()
	return n.pendingSignals.Add(-1) == 0
}

// PendingSignals returns the current outstanding-signal count. Diagnostic
// only; the value may be stale by the time the caller inspects it.
func (n *NodeEntry) PendingSignals() int64 {
	return n.pendingSignals.Load()
}

// MarkDone records a successful computation: the value, the version, the
// dependencies actually read (in discovery order) and the identity of the
// stored event set. It releases ownership and returns the snapshot of
// parents to signal.
func (n *NodeEntry) MarkDone(value Value, version Version, deps []NodeKey, eventSetID string) []NodeKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = StateDone
	n.owned = false
	n.value = value
	n.errInfo = nil
	n.version = version
	n.eventSetID = eventSetID
	n.directDeps = deps
	n.tempDeps = nil
	n.tempDepSet = nil
	return n.reverseDepsLocked()
}

// MarkError records a failed computation at the given version, releases
// ownership and returns the snapshot of parents to signal.
func (n *NodeEntry) MarkError(info *ErrorInfo, version Version) []NodeKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = StateError
	n.owned = false
	n.value = nil
	n.errInfo = info
	n.version = version
	n.directDeps = nil
	n.tempDeps = nil
	n.tempDepSet = nil
	return n.reverseDepsLocked()
}

// Restart discards the in-flight attempt's accumulated dependency
// declarations and signal bookkeeping, keeping the entry in
// StateEvaluating under the current owner. It returns the discarded
// dependencies so the caller can unregister the matching reverse deps.
func (n *NodeEntry) Restart() []NodeKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	discarded := n.tempDeps
	n.tempDeps = nil
	n.tempDepSet = nil
	n.signaled = nil
	n.pendingSignals.Store(0)
	n.state = StateEvaluating
	return discarded
}
