package eval

import "github.com/dshills/skygraph-go/eval/store"

const (
	defaultParallelism    = 8
	defaultStateCacheSize = 1024
)

// Options configures evaluator behavior. Zero values are valid; the
// evaluator fills in sensible defaults.
type Options struct {
	// KeepGoing selects the failure-propagation policy for a run. When
	// true, errors are recorded per node and evaluation continues on
	// independent subgraphs, aggregating every reachable error. When
	// false, the first error aborts the whole evaluation.
	KeepGoing bool

	// Parallelism bounds the worker pool driving node evaluations.
	// Defaults to 8.
	Parallelism int

	// StateCacheSize bounds the restartable compute-state cache.
	// Defaults to 1024 entries.
	StateCacheSize int

	// MinimalVersion is the oldest version whose cached values are still
	// acceptable. Values recorded before it are recomputed.
	MinimalVersion Version

	// Metrics enables Prometheus metrics collection when non-nil.
	Metrics *PrometheusMetrics

	// Progress receives node lifecycle notifications. Defaults to
	// NullProgressReceiver.
	Progress ProgressReceiver

	// Inconsistency decides whether inconsistency-triggered restarts are
	// permitted. Defaults to RefuseRestarts.
	Inconsistency InconsistencyReceiver

	// ErrorInfo combines child errors into a parent's error. Defaults to
	// FirstChildErrorManager.
	ErrorInfo ErrorInfoManager

	// EventFilter decides which computation events are persisted with a
	// node's value for later replay. Nil persists everything. Live
	// delivery to the emitter is unaffected.
	EventFilter func(key NodeKey, msg string) bool

	// Store is the cross-run value cache. Nil disables caching across
	// runs; memoization within one run always happens in the graph.
	Store store.Store
}

// Option is a functional option for configuring an Evaluator, usable
// with NewWithOptions alongside or instead of a literal Options struct.
type Option func(*Options) error

// WithKeepGoing selects collect-all-errors mode instead of fail-fast.
func WithKeepGoing(keepGoing bool) Option {
	return func(o *Options) error {
		o.KeepGoing = keepGoing
		return nil
	}
}

// WithParallelism bounds the evaluation worker pool.
//
// Tuning guidance:
//   - CPU-bound node functions: runtime.NumCPU()
//   - I/O-bound node functions: 10-50 depending on external limits
func WithParallelism(n int) Option {
	return func(o *Options) error {
		if n < 0 {
			return &EvalError{Message: "parallelism cannot be negative", Code: "BAD_PARALLELISM"}
		}
		o.Parallelism = n
		return nil
	}
}

// WithStateCacheSize bounds the restartable compute-state cache. Nodes
// whose scratch state is evicted recompute from scratch, so smaller
// caches trade memory for repeated work.
func WithStateCacheSize(n int) Option {
	return func(o *Options) error {
		if n <= 0 {
			return &EvalError{Message: "state cache size must be positive", Code: "BAD_CACHE_SIZE"}
		}
		o.StateCacheSize = n
		return nil
	}
}

// WithMinimalVersion sets the oldest version whose cached values are
// still served without recomputation.
func WithMinimalVersion(v Version) Option {
	return func(o *Options) error {
		o.MinimalVersion = v
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	ev, err := eval.NewWithOptions(fns, nil, emitter,
//	    eval.WithMetrics(eval.NewPrometheusMetrics(registry)),
//	)
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(o *Options) error {
		o.Metrics = metrics
		return nil
	}
}

// WithProgressReceiver registers a receiver for node lifecycle
// notifications.
func WithProgressReceiver(p ProgressReceiver) Option {
	return func(o *Options) error {
		o.Progress = p
		return nil
	}
}

// WithInconsistencyReceiver sets the restart-or-fail policy consulted
// when a node's dependency shape becomes inconsistent.
func WithInconsistencyReceiver(r InconsistencyReceiver) Option {
	return func(o *Options) error {
		o.Inconsistency = r
		return nil
	}
}

// WithErrorInfoManager sets the policy combining child errors into a
// parent's error info.
func WithErrorInfoManager(m ErrorInfoManager) Option {
	return func(o *Options) error {
		o.ErrorInfo = m
		return nil
	}
}

// WithEventFilter restricts which computation events are persisted with
// node values for later replay.
func WithEventFilter(filter func(key NodeKey, msg string) bool) Option {
	return func(o *Options) error {
		o.EventFilter = filter
		return nil
	}
}

// WithStore enables the cross-run value cache.
func WithStore(s store.Store) Option {
	return func(o *Options) error {
		o.Store = s
		return nil
	}
}

// withDefaults returns a copy of o with zero values replaced by
// defaults.
func (o Options) withDefaults() Options {
	if o.Parallelism <= 0 {
		o.Parallelism = defaultParallelism
	}
	if o.StateCacheSize <= 0 {
		o.StateCacheSize = defaultStateCacheSize
	}
	if o.Progress == nil {
		o.Progress = NullProgressReceiver{}
	}
	if o.Inconsistency == nil {
		o.Inconsistency = RefuseRestarts{}
	}
	if o.ErrorInfo == nil {
		o.ErrorInfo = FirstChildErrorManager{}
	}
	return o
}
