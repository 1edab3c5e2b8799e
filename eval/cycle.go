package eval

// Cycle detection runs after the visitor reaches quiescence with no
// fatal error. Any root still unfinished at that point is stuck behind
// at least one dependency cycle: every acyclic chain would have drained
// through normal signaling. A depth-first walk over the in-flight
// dependency declarations finds the cycles, records a cycle error on
// each member, and propagates the failure up the stuck chains so every
// unfinished root ends with an attributable error.

const (
	colorWhite = iota
	colorGray
	colorBlack
)

// detectCycles walks the unfinished graph from roots and records errors
// on every stuck node. Done nodes are never touched.
func (ec *evalContext) detectCycles(roots []NodeKey) {
	cd := &cycleDetector{
		ec:     ec,
		colors: make(map[NodeKey]int),
	}
	for _, root := range roots {
		if cd.colors[root] == colorWhite {
			cd.visit(root)
		}
	}
}

type cycleDetector struct {
	ec     *evalContext
	colors map[NodeKey]int
	path   []NodeKey
}

// visit processes key depth-first and returns its terminal error info,
// or nil when the node finished with a value. On return the node is
// terminal: stuck nodes get marked with a cycle or propagated error.
func (cd *cycleDetector) visit(key NodeKey) *ErrorInfo {
	entry, err := cd.ec.graph.Get(key, ReasonCycleCheck, key)
	if err != nil || entry == nil {
		cd.colors[key] = colorBlack
		return nil
	}
	if entry.IsDone() {
		cd.colors[key] = colorBlack
		return entry.ErrorInfo()
	}

	cd.colors[key] = colorGray
	cd.path = append(cd.path, key)

	var childErrors []*ErrorInfo
	for _, dep := range entry.TemporaryDirectDeps() {
		switch cd.colors[dep] {
		case colorGray:
			// Back edge: the path suffix starting at dep is a cycle.
			info := cd.markCycle(dep)
			if info != nil {
				childErrors = append(childErrors, info)
			}
		case colorWhite:
			if info := cd.visit(dep); info != nil {
				childErrors = append(childErrors, info)
			}
		default:
			depEntry, derr := cd.ec.graph.Get(key, ReasonCycleCheck, dep)
			if derr == nil && depEntry != nil {
				if info := depEntry.ErrorInfo(); info != nil {
					childErrors = append(childErrors, info)
				}
			}
		}
	}

	cd.path = cd.path[:len(cd.path)-1]
	cd.colors[key] = colorBlack

	if entry.IsDone() {
		// Marked as a cycle member while this frame was still active.
		return entry.ErrorInfo()
	}

	// Stuck behind failing dependencies without being on a cycle itself.
	var info *ErrorInfo
	if len(childErrors) > 0 {
		info = cd.ec.errorInfo.FromChildErrors(key, childErrors)
	} else {
		// No cycle and no failed dependency found below, yet the node
		// never completed. A lost signal or an external graph backend
		// dropping entries can produce this.
		info = &ErrorInfo{Key: key, Err: ErrInconsistency}
	}
	entry.MarkError(info, cd.ec.graphVersion)
	cd.ec.progress.Done(key, StateError)
	return info
}

// markCycle extracts the cycle closed by a back edge to first and records
// a cycle error on every member. Returns the error info of the member
// the back edge points at.
func (cd *cycleDetector) markCycle(first NodeKey) *ErrorInfo {
	start := -1
	for i, k := range cd.path {
		if k == first {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	ci := CycleInfo{
		Path:  append([]NodeKey(nil), cd.path[:start]...),
		Cycle: append([]NodeKey(nil), cd.path[start:]...),
	}

	var firstInfo *ErrorInfo
	for _, member := range ci.Cycle {
		entry, err := cd.ec.graph.Get(member, ReasonCycleCheck, member)
		if err != nil || entry == nil {
			continue
		}
		if entry.IsDone() {
			if member == first {
				firstInfo = entry.ErrorInfo()
			}
			continue
		}
		info := &ErrorInfo{Key: member, Cycles: []CycleInfo{ci}}
		entry.MarkError(info, cd.ec.graphVersion)
		cd.ec.progress.Done(member, StateError)
		if member == first {
			firstInfo = info
		}
	}
	return firstInfo
}
