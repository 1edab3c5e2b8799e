package eval

import "go.uber.org/multierr"

// Result holds the outcome of one Evaluate call: a value or an error per
// requested root. Under keep-going mode the result can carry both values
// and errors for independent subgraphs; in fail-fast mode it carries at
// most the state reached before the abort.
type Result struct {
	values map[NodeKey]Value
	errors map[NodeKey]*ErrorInfo
	keys   []NodeKey
}

func newResult() *Result {
	return &Result{
		values: make(map[NodeKey]Value),
		errors: make(map[NodeKey]*ErrorInfo),
	}
}

func (r *Result) addValue(key NodeKey, value Value) {
	if _, seen := r.values[key]; !seen {
		if _, errSeen := r.errors[key]; !errSeen {
			r.keys = append(r.keys, key)
		}
	}
	r.values[key] = value
}

func (r *Result) addError(key NodeKey, info *ErrorInfo) {
	if _, seen := r.errors[key]; !seen {
		if _, valSeen := r.values[key]; !valSeen {
			r.keys = append(r.keys, key)
		}
	}
	r.errors[key] = info
}

// Get returns the value computed for a root key.
func (r *Result) Get(key NodeKey) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Error returns the error info recorded for a root key.
func (r *Result) Error(key NodeKey) (*ErrorInfo, bool) {
	info, ok := r.errors[key]
	return info, ok
}

// Keys returns the requested roots in request order.
func (r *Result) Keys() []NodeKey {
	keys := make([]NodeKey, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// HasError reports whether any root failed.
func (r *Result) HasError() bool { return len(r.errors) > 0 }

// Err aggregates the errors of all failed roots into a single error, or
// nil when every root succeeded. Under keep-going mode this names every
// reachable failure.
func (r *Result) Err() error {
	var err error
	for _, key := range r.keys {
		if info, ok := r.errors[key]; ok {
			err = multierr.Append(err, info)
		}
	}
	return err
}
