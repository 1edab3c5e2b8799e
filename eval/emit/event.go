package emit

// Event represents an observability event produced during graph
// evaluation.
//
// Events cover both engine activity (node enqueued, computed, restarted,
// served from cache) and output produced by node computations themselves
// (build warnings, progress lines). Computation output is persisted with
// the node's value and replayed when the value is later served from cache,
// so emitters must tolerate seeing the same logical message once per
// evaluation even when the node was not recomputed.
type Event struct {
	// Key is the canonical "function(arg)" form of the node this event
	// belongs to. Empty for evaluation-level events.
	Key string `json:"key"`

	// Version is the graph version of the evaluation that produced the
	// event.
	Version int64 `json:"version"`

	// Msg is a short machine-matchable description, e.g. "node_done",
	// "node_restarted", "cache_hit", or a computation's own output line.
	Msg string `json:"msg"`

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": task execution duration in milliseconds
	//   - "error": error details
	//   - "deps": number of direct dependencies recorded
	//   - "priority": scheduling priority of the task
	Meta map[string]interface{} `json:"meta,omitempty"`
}
