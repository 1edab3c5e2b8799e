package eval

import (
	"context"
	"sync"
)

// Function computes the value of a node from its key and its
// dependencies, accessed through the Environment facade.
//
// Contract:
//   - Request dependencies via env.GetValue / env.GetValues. A nil value
//     for a dependency means it has not finished yet.
//   - When any requested dependency is missing, return (nil, nil). The
//     computation is suspended and re-invoked from the top once all
//     declared dependencies complete. In-memory locals do not survive the
//     suspension; state worth keeping must go through env.SetComputeState.
//   - Return (value, nil) when done, or (nil, err) on failure.
//
// A Function may be invoked multiple times for the same key across
// suspensions and restarts and must tolerate partial prior progress being
// discarded.
type Function interface {
	Compute(ctx context.Context, key NodeKey, env *Environment) (Value, error)
}

// FunctionFunc adapts a plain function to the Function interface.
//
// Example:
//
//	hash := eval.FunctionFunc(func(ctx context.Context, key eval.NodeKey, env *eval.Environment) (eval.Value, error) {
//	    data, err := env.GetValue(eval.NewKey("file_read", key.Argument()))
//	    if err != nil {
//	        return nil, err
//	    }
//	    if env.ValuesMissing() {
//	        return nil, nil
//	    }
//	    return hashOf(data), nil
//	})
type FunctionFunc func(ctx context.Context, key NodeKey, env *Environment) (Value, error)

// Compute implements Function.
func (f FunctionFunc) Compute(ctx context.Context, key NodeKey, env *Environment) (Value, error) {
	return f(ctx, key, env)
}

// Registry maps function names to Function implementations. Keys dispatch
// to their computation through the registry by FunctionName.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewRegistry creates an empty function registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Function)}
}

// Register binds a function name to its implementation.
//
// Returns an error if:
//   - name is empty
//   - fn is nil
//   - the name is already registered
func (r *Registry) Register(name string, fn Function) error {
	if name == "" {
		return &EvalError{Message: "function name cannot be empty"}
	}
	if fn == nil {
		return &EvalError{Message: "function cannot be nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[name]; exists {
		return &EvalError{
			Message: "duplicate function name: " + name,
			Code:    "DUPLICATE_FUNCTION",
		}
	}
	r.funcs[name] = fn
	return nil
}

// Lookup returns the Function registered under name.
func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered function names, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}
