package eval

import (
	"sync"
	"testing"
)

func TestNodeEntryLifecycle(t *testing.T) {
	t.Run("new entry starts not started", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		if entry.State() != StateNotStarted {
			t.Errorf("expected not_started, got %s", entry.State())
		}
		if entry.Version() != NoVersion {
			t.Errorf("expected NoVersion, got %d", entry.Version())
		}
		if entry.IsDone() {
			t.Error("fresh entry should not be done")
		}
	})

	t.Run("reverse dep registration moves to added", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		done := entry.AddReverseDepAndCheckIfDone(NewKey("g", "p"))
		if done {
			t.Error("fresh entry reported done")
		}
		if entry.State() != StateAdded {
			t.Errorf("expected added, got %s", entry.State())
		}
	})

	t.Run("acquire moves to evaluating and is exclusive", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		if !entry.AcquireForEvaluation() {
			t.Fatal("first acquire failed")
		}
		if entry.State() != StateEvaluating {
			t.Errorf("expected evaluating, got %s", entry.State())
		}
		if entry.AcquireForEvaluation() {
			t.Error("second acquire succeeded while owned")
		}
	})

	t.Run("mark done records value and version", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		entry.AddReverseDepAndCheckIfDone(NewKey("g", "p"))
		entry.AcquireForEvaluation()

		deps := []NodeKey{NewKey("h", "x")}
		parents := entry.MarkDone("result", 3, deps, "f(a)@3")

		if entry.State() != StateDone {
			t.Errorf("expected done, got %s", entry.State())
		}
		if got := entry.Value(); got != "result" {
			t.Errorf("expected result, got %v", got)
		}
		if entry.Version() != 3 {
			t.Errorf("expected version 3, got %d", entry.Version())
		}
		if entry.EventSetID() != "f(a)@3" {
			t.Errorf("unexpected event set id %q", entry.EventSetID())
		}
		if len(parents) != 1 || parents[0] != NodeKey(NewKey("g", "p")) {
			t.Errorf("unexpected parents snapshot %v", parents)
		}
		if len(entry.DirectDeps()) != 1 {
			t.Errorf("expected 1 direct dep, got %d", len(entry.DirectDeps()))
		}
		if len(entry.TemporaryDirectDeps()) != 0 {
			t.Error("temporary deps not cleared on completion")
		}
	})

	t.Run("mark error is terminal with error info", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		entry.AcquireForEvaluation()
		entry.MarkError(&ErrorInfo{Key: entry.Key(), Err: ErrNoValue}, 2)

		if entry.State() != StateError {
			t.Errorf("expected error, got %s", entry.State())
		}
		if entry.ErrorInfo() == nil {
			t.Fatal("missing error info")
		}
		if entry.Value() != nil {
			t.Error("errored entry returned a value")
		}
	})

	t.Run("terminal entry cannot be reacquired", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		entry.AcquireForEvaluation()
		entry.MarkDone("v", 1, nil, "")
		if entry.AcquireForEvaluation() {
			t.Error("acquired a done entry")
		}
	})

	t.Run("registering on a done entry reports done", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		entry.AcquireForEvaluation()
		entry.MarkDone("v", 1, nil, "")
		if !entry.AddReverseDepAndCheckIfDone(NewKey("g", "p")) {
			t.Error("done entry reported not done to a late parent")
		}
	})
}

func TestNodeEntrySignaling(t *testing.T) {
	t.Run("exactly one signal observes the zero crossing", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		entry.AcquireForEvaluation()
		entry.AddTemporaryDirectDep(NewKey("c", "1"))
		entry.AddTemporaryDirectDep(NewKey("c", "2"))

		if entry.MarkWaiting(2) {
			t.Fatal("suspend with 2 unmet deps reported ready")
		}
		if entry.SignalDep(1, NewKey("c", "1")) {
			t.Error("first of two signals reported ready")
		}
		if !entry.SignalDep(1, NewKey("c", "2")) {
			t.Error("last signal did not report ready")
		}
	})

	t.Run("duplicate signals from same child and version are ignored", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		entry.AcquireForEvaluation()
		entry.MarkWaiting(2)

		child := NewKey("c", "1")
		entry.SignalDep(1, child)
		if entry.SignalDep(1, child) {
			t.Error("duplicate signal decremented the counter to zero")
		}
		if got := entry.PendingSignals(); got != 1 {
			t.Errorf("expected 1 pending signal, got %d", got)
		}
	})

	t.Run("signal before suspend settles through negative balance", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		entry.AcquireForEvaluation()

		// The child completed between its registration and the parent's
		// suspend. The suspend itself must then report readiness.
		entry.SignalDep(1, NewKey("c", "1"))
		if got := entry.PendingSignals(); got != -1 {
			t.Fatalf("expected -1 pending, got %d", got)
		}
		if !entry.MarkWaiting(1) {
			t.Error("suspend after early signal did not report ready")
		}
	})

	t.Run("signaling a terminal entry is a no-op", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		entry.AcquireForEvaluation()
		entry.MarkDone("v", 1, nil, "")
		if entry.SignalDep(1, NewKey("c", "1")) {
			t.Error("signal on done entry reported ready")
		}
		if got := entry.PendingSignals(); got != 0 {
			t.Errorf("signal on done entry mutated counter: %d", got)
		}
	})

	t.Run("concurrent signals produce exactly one readiness", func(t *testing.T) {
		entry := NewNodeEntry(NewKey("f", "a"))
		entry.AcquireForEvaluation()

		const children = 32
		for i := 0; i < children; i++ {
			entry.AddTemporaryDirectDep(NewKey("c", string(rune('a'+i))))
		}
		entry.MarkWaiting(children)

		var wg sync.WaitGroup
		var mu sync.Mutex
		ready := 0
		for i := 0; i < children; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if entry.SignalDep(1, NewKey("c", string(rune('a'+i)))) {
					mu.Lock()
					ready++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		if ready != 1 {
			t.Errorf("expected exactly 1 readiness, got %d", ready)
		}
	})
}

func TestNodeEntryTemporaryDeps(t *testing.T) {
	entry := NewNodeEntry(NewKey("f", "a"))
	entry.AcquireForEvaluation()

	if !entry.AddTemporaryDirectDep(NewKey("c", "1")) {
		t.Error("first declaration not reported new")
	}
	if entry.AddTemporaryDirectDep(NewKey("c", "1")) {
		t.Error("repeat declaration reported new")
	}
	entry.AddTemporaryDirectDep(NewKey("c", "2"))

	deps := entry.TemporaryDirectDeps()
	if len(deps) != 2 {
		t.Fatalf("expected 2 temp deps, got %d", len(deps))
	}
	if deps[0] != NodeKey(NewKey("c", "1")) || deps[1] != NodeKey(NewKey("c", "2")) {
		t.Errorf("deps not in discovery order: %v", deps)
	}
}

func TestNodeEntryRestart(t *testing.T) {
	entry := NewNodeEntry(NewKey("f", "a"))
	entry.AcquireForEvaluation()
	entry.AddTemporaryDirectDep(NewKey("c", "1"))
	entry.AddTemporaryDirectDep(NewKey("c", "2"))
	entry.SignalDep(1, NewKey("c", "1"))

	discarded := entry.Restart()

	if len(discarded) != 2 {
		t.Fatalf("expected 2 discarded deps, got %d", len(discarded))
	}
	if entry.State() != StateEvaluating {
		t.Errorf("restart left state %s", entry.State())
	}
	if got := entry.PendingSignals(); got != 0 {
		t.Errorf("restart left pending counter at %d", got)
	}
	if len(entry.TemporaryDirectDeps()) != 0 {
		t.Error("restart kept temporary deps")
	}

	// A fresh attempt re-declares deps as new.
	if !entry.AddTemporaryDirectDep(NewKey("c", "1")) {
		t.Error("re-declaration after restart not reported new")
	}
}
