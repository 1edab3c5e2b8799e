// Package eval provides an incremental, parallel, memoizing evaluation
// engine over a versioned dependency graph.
//
// Computations are identified by opaque NodeKeys and performed by Functions
// registered per function name. A Function may discover dependencies while
// it runs; unmet dependencies suspend the computation, which is re-enqueued
// once all of its declared dependencies have completed. Results are
// memoized per graph version, optionally persisted across runs via
// eval/store, and cached log output is replayed through eval/emit with
// exactly-once deduplication.
//
// The engine is a fixed-point computation: roots are enqueued on a bounded
// worker pool, each task may grow the graph by requesting new dependencies,
// and completion signals propagate to parents until no work remains.
package eval
