package emit

// Emitter receives observability events from graph evaluation.
//
// Emitters enable pluggable observability backends:
//   - Logging: stdout, files, structured zap output
//   - Distributed tracing: OpenTelemetry
//   - In-memory capture for tests and dashboards
//
// Implementations must be safe for concurrent use: the evaluator drives an
// emitter from every worker in its pool, and replayed cached events arrive
// interleaved with live ones. Emit must not panic and should not block
// evaluation; slow backends should buffer or drop internally.
type Emitter interface {
	// Emit sends one event to the configured backend.
	Emit(event Event)
}
