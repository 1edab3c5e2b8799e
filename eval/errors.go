package eval

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoFunction indicates a key referenced a function name with no
// registered Function.
var ErrNoFunction = errors.New("no function registered for key")

// ErrNoValue indicates a Function returned neither a value, an error, nor
// unmet dependencies. This is a bug in the Function implementation.
var ErrNoValue = errors.New("function returned no value and declared no missing dependencies")

// ErrInconsistency indicates the declared dependency shape did not match
// the graph's expectations and the inconsistency receiver refused a
// restart.
var ErrInconsistency = errors.New("graph inconsistency detected and restart not permitted")

// ErrCycle indicates a node participates in a dependency cycle with no
// acyclic resolution order.
var ErrCycle = errors.New("dependency cycle detected")

// EvalError represents an error from evaluator configuration or
// operation, carrying a machine-readable code.
type EvalError struct {
	Message string
	Code    string
}

func (e *EvalError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// CycleInfo describes one dependency cycle found during evaluation.
type CycleInfo struct {
	// Path is the acyclic chain from a requested root to the first node of
	// the cycle, excluding cycle members.
	Path []NodeKey

	// Cycle is the minimal cycle in dependency order; the last node
	// depends on the first.
	Cycle []NodeKey
}

// String renders the cycle as "a -> b -> c -> a" with the leading path.
func (c CycleInfo) String() string {
	var b strings.Builder
	for _, k := range c.Path {
		b.WriteString(keyString(k))
		b.WriteString(" -> ")
	}
	b.WriteString("[")
	for i, k := range c.Cycle {
		if i > 0 {
			b.WriteString(" -> ")
		}
		b.WriteString(keyString(k))
	}
	if len(c.Cycle) > 0 {
		b.WriteString(" -> ")
		b.WriteString(keyString(c.Cycle[0]))
	}
	b.WriteString("]")
	return b.String()
}

// ErrorInfo is the terminal error payload of a node entry. It names the
// failing node, the triggering error, any cycles the node participates in,
// and whether the error was propagated from a dependency rather than
// produced by the node's own computation.
type ErrorInfo struct {
	// Key is the node this error is attributed to.
	Key NodeKey

	// Err is the triggering error. Nil only for pure cycle errors.
	Err error

	// Cycles lists the dependency cycles attributed to this node.
	Cycles []CycleInfo

	// Propagated is true when the error came from a failed dependency
	// rather than this node's own computation.
	Propagated bool
}

// Error implements the error interface.
func (e *ErrorInfo) Error() string {
	switch {
	case e.Err != nil && len(e.Cycles) > 0:
		return fmt.Sprintf("%s: %v (cycles: %s)", keyString(e.Key), e.Err, e.cycleSummary())
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", keyString(e.Key), e.Err)
	case len(e.Cycles) > 0:
		return fmt.Sprintf("%s: %v: %s", keyString(e.Key), ErrCycle, e.cycleSummary())
	default:
		return keyString(e.Key) + ": unknown evaluation error"
	}
}

// Unwrap returns the triggering error, or ErrCycle for pure cycle errors,
// enabling errors.Is checks against sentinel errors.
func (e *ErrorInfo) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if len(e.Cycles) > 0 {
		return ErrCycle
	}
	return nil
}

// IsCycle reports whether this error records at least one cycle.
func (e *ErrorInfo) IsCycle() bool { return len(e.Cycles) > 0 }

func (e *ErrorInfo) cycleSummary() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = c.String()
	}
	return strings.Join(parts, "; ")
}

// ErrorInfoManager decides how child errors combine into a parent's error
// info. It is consulted when a node observes failed dependencies and does
// not produce its own error.
type ErrorInfoManager interface {
	// FromChildErrors builds the parent's ErrorInfo from the errors of its
	// failed dependencies, in discovery order.
	FromChildErrors(parent NodeKey, childErrors []*ErrorInfo) *ErrorInfo
}

// FirstChildErrorManager is the default ErrorInfoManager: the parent
// adopts the first failed dependency's error, marked as propagated, and
// inherits all child cycles.
type FirstChildErrorManager struct{}

// FromChildErrors implements ErrorInfoManager.
func (FirstChildErrorManager) FromChildErrors(parent NodeKey, childErrors []*ErrorInfo) *ErrorInfo {
	if len(childErrors) == 0 {
		return nil
	}
	info := &ErrorInfo{
		Key:        parent,
		Err:        childErrors[0].Unwrap(),
		Propagated: true,
	}
	for _, child := range childErrors {
		info.Cycles = append(info.Cycles, child.Cycles...)
	}
	return info
}
