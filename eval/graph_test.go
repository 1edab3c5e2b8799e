package eval

import (
	"sync"
	"testing"
)

func TestInMemoryGraph(t *testing.T) {
	t.Run("creating reasons create missing entries", func(t *testing.T) {
		g := NewInMemoryGraph()
		key := NewKey("f", "a")

		entry, err := g.Get(nil, ReasonEnqueue, key)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if entry == nil {
			t.Fatal("creating reason returned no entry")
		}
		if g.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", g.Len())
		}
	})

	t.Run("lookup reasons omit missing entries", func(t *testing.T) {
		g := NewInMemoryGraph()
		batch, err := g.GetBatch(nil, ReasonSignalDep, []NodeKey{NewKey("f", "a")})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		if len(batch) != 0 {
			t.Errorf("lookup reason created entries: %v", batch)
		}
		if g.Len() != 0 {
			t.Error("lookup reason grew the graph")
		}
	})

	t.Run("identity map returns the same entry object", func(t *testing.T) {
		g := NewInMemoryGraph()
		key := NewKey("f", "a")
		first, _ := g.Get(nil, ReasonDep, key)
		second, _ := g.Get(nil, ReasonEvaluation, key)
		if first != second {
			t.Error("same key yielded different entry objects")
		}
	})

	t.Run("concurrent creates converge on one entry", func(t *testing.T) {
		g := NewInMemoryGraph()
		key := NewKey("f", "a")

		const goroutines = 16
		entries := make([]*NodeEntry, goroutines)
		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				entries[i], _ = g.Get(nil, ReasonDep, key)
			}(i)
		}
		wg.Wait()

		for i := 1; i < goroutines; i++ {
			if entries[i] != entries[0] {
				t.Fatal("concurrent creates produced distinct entries")
			}
		}
		if g.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", g.Len())
		}
	})

	t.Run("batch mixes hits and creates", func(t *testing.T) {
		g := NewInMemoryGraph()
		a := NewKey("f", "a")
		b := NewKey("f", "b")
		g.Get(nil, ReasonDep, a)

		batch, err := g.GetBatch(nil, ReasonDep, []NodeKey{a, b})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		if len(batch) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(batch))
		}
		if len(g.Keys()) != 2 {
			t.Errorf("expected 2 keys, got %v", g.Keys())
		}
	})
}

func TestReasonString(t *testing.T) {
	cases := map[Reason]string{
		ReasonDep:        "dep",
		ReasonEnqueue:    "enqueue",
		ReasonEvaluation: "evaluation",
		ReasonSignalDep:  "signal_dep",
		ReasonCycleCheck: "cycle_check",
		ReasonPrefetch:   "prefetch",
	}
	for reason, want := range cases {
		if got := reason.String(); got != want {
			t.Errorf("reason %d: got %q, want %q", reason, got, want)
		}
	}
}
