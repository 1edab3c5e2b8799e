package eval

// ProgressReceiver is notified of node lifecycle transitions for external
// progress/UI tracking. Notifications are side-effect only; return values
// are never consulted and implementations must not block.
//
// Receivers are driven concurrently from every worker in the pool.
type ProgressReceiver interface {
	// Enqueued is called when a node is submitted to the scheduler.
	Enqueued(key NodeKey)

	// Computing is called when a task acquires the node for evaluation.
	Computing(key NodeKey)

	// Done is called when a node reaches a terminal state.
	Done(key NodeKey, state LifecycleState)
}

// NullProgressReceiver discards all progress notifications.
type NullProgressReceiver struct{}

// Enqueued implements ProgressReceiver.
func (NullProgressReceiver) Enqueued(NodeKey) {}

// Computing implements ProgressReceiver.
func (NullProgressReceiver) Computing(NodeKey) {}

// Done implements ProgressReceiver.
func (NullProgressReceiver) Done(NodeKey, LifecycleState) {}

// InconsistencyReceiver decides whether a node whose declared dependency
// shape became inconsistent mid-evaluation (a dependency vanished from
// the graph, or changed incompatibly) may restart its computation from
// scratch. It is called synchronously during evaluation.
//
// The detection policy itself lives outside the engine; the engine only
// honors the restart-or-fail decision.
type InconsistencyReceiver interface {
	// RestartPermitted reports whether key may discard its in-flight
	// attempt and restart. missing names the dependencies whose entries
	// were expected but not found.
	RestartPermitted(key NodeKey, missing []NodeKey) bool
}

// RefuseRestarts is the default InconsistencyReceiver: inconsistencies
// are fatal for the affected node.
type RefuseRestarts struct{}

// RestartPermitted implements InconsistencyReceiver.
func (RefuseRestarts) RestartPermitted(NodeKey, []NodeKey) bool { return false }

// PermitRestarts allows every inconsistency-triggered restart.
type PermitRestarts struct{}

// RestartPermitted implements InconsistencyReceiver.
func (PermitRestarts) RestartPermitted(NodeKey, []NodeKey) bool { return true }
