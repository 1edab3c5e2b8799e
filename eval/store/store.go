package store

import (
	"context"
	"errors"

	"github.com/dshills/skygraph-go/eval/emit"
)

// ErrNotFound is returned by lookups for records that do not exist.
var ErrNotFound = errors.New("not found")

// Record is one memoized node value: the (function, argument) identity,
// the graph version it was computed at, the value itself, and the identity
// of the event set recorded while computing it (empty when the
// computation produced no stored events).
type Record struct {
	Function   string
	Argument   string
	Version    int64
	Value      any
	EventSetID string
}

// EventSet is the log output recorded with one node's value. Sets nest:
// Children names the event sets of the node's dependencies, so one node's
// recorded output can be a superset of a sibling's. Replay walks the
// nesting and deduplicates by set ID.
type EventSet struct {
	ID       string
	Events   []emit.Event
	Children []string
}

// Store persists node values and their recorded events across evaluation
// runs.
//
// The evaluator consults the store before computing a node: a hit at a
// version no newer than the current graph version is served without
// recomputation, with its recorded events replayed. Invalidation is the
// caller's concern: a record present in the store is assumed valid, and
// tools that detect changed inputs must delete or overwrite the affected
// records before evaluating.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveValue persists one memoized value, overwriting any record with
	// the same (function, argument, version).
	SaveValue(ctx context.Context, rec Record) error

	// LookupValue returns the newest record for (function, argument) with
	// version <= the requested version. The bool result reports whether a
	// record was found; absence is not an error.
	LookupValue(ctx context.Context, function, argument string, version int64) (Record, bool, error)

	// SaveEventSet persists one recorded event set by its identity.
	SaveEventSet(ctx context.Context, set EventSet) error

	// LookupEventSet returns the event set with the given identity. The
	// bool result reports whether it was found.
	LookupEventSet(ctx context.Context, id string) (EventSet, bool, error)

	// Close releases backend resources.
	Close() error
}
