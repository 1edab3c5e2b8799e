package eval

import "strconv"

// Version is a totally ordered token stamping graph state. A node's value
// recorded at version V is considered up to date for any evaluation at a
// version W where V <= W, unless the node was invalidated in between.
//
// Versions are opaque to Functions; only the evaluator compares them.
type Version int64

// NoVersion marks a node entry that has never completed an evaluation.
const NoVersion Version = -1

// MinimalVersion is the lowest valid graph version. Fresh evaluations that
// do not care about incrementality can run everything at MinimalVersion.
const MinimalVersion Version = 0

// AtMost reports whether v <= other. It is the comparison used to decide
// "has this dependency possibly changed since version other".
func (v Version) AtMost(other Version) bool {
	return v <= other
}

// Next returns the version following v. Callers bump the graph version
// between evaluation runs after invalidating changed nodes.
func (v Version) Next() Version {
	return v + 1
}

// String returns the decimal form of the version, or "none" for NoVersion.
func (v Version) String() string {
	if v == NoVersion {
		return "none"
	}
	return strconv.FormatInt(int64(v), 10)
}
