package eval

// NodeKey identifies a unit of memoized computation.
//
// A key carries a function name (the discriminant used to dispatch to a
// registered Function) and an opaque argument payload. Implementations
// must be comparable so keys can be used directly as map keys; the engine
// relies on key equality to guarantee at most one node entry per key.
//
// SupportsPartialReevaluation declares that the node's Function can make
// use of an early wake-up while some of its dependencies are still
// missing, consuming partial results instead of waiting for all signals.
// Most keys should return false.
type NodeKey interface {
	// FunctionName returns the discriminant used to look up the Function
	// that computes this node.
	FunctionName() string

	// Argument returns the opaque argument payload for the computation.
	Argument() string

	// SupportsPartialReevaluation reports whether the node may be enqueued
	// opportunistically while it is still waiting on other dependencies.
	SupportsPartialReevaluation() bool
}

// Key is the standard NodeKey implementation: a (function, argument) pair
// with no partial re-evaluation support.
//
// Example:
//
//	key := eval.NewKey("file_hash", "/src/main.go")
type Key struct {
	// Function is the registered function name computing this node.
	Function string

	// Arg is the opaque argument payload.
	Arg string
}

// NewKey creates a Key for the given function name and argument.
func NewKey(function, arg string) Key {
	return Key{Function: function, Arg: arg}
}

// FunctionName implements NodeKey.
func (k Key) FunctionName() string { return k.Function }

// Argument implements NodeKey.
func (k Key) Argument() string { return k.Arg }

// SupportsPartialReevaluation implements NodeKey. Plain keys never
// request opportunistic wake-ups.
func (k Key) SupportsPartialReevaluation() bool { return false }

// String returns "function(arg)", the form used in diagnostics and event
// set identities.
func (k Key) String() string { return k.Function + "(" + k.Arg + ")" }

// PartialReevalKey wraps a Key to declare partial re-evaluation support.
// Nodes keyed this way are woken opportunistically whenever any of their
// dependencies completes, in addition to the normal all-signals wake-up.
// The wake-up is a best-effort hint: if the node's previous task is still
// running, the opportunistic task exits without evaluating.
type PartialReevalKey struct {
	Key
}

// NewPartialReevalKey creates a key whose node is enqueued opportunistically
// on every dependency completion.
func NewPartialReevalKey(function, arg string) PartialReevalKey {
	return PartialReevalKey{Key: NewKey(function, arg)}
}

// SupportsPartialReevaluation implements NodeKey.
func (k PartialReevalKey) SupportsPartialReevaluation() bool { return true }

// keyString renders any NodeKey in the canonical "function(arg)" form.
func keyString(key NodeKey) string {
	if s, ok := key.(interface{ String() string }); ok {
		return s.String()
	}
	return key.FunctionName() + "(" + key.Argument() + ")"
}
