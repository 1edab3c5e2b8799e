package emit

import (
	"sync"
	"testing"
)

func TestBufferedEmitter(t *testing.T) {
	t.Run("history preserves per-key emission order", func(t *testing.T) {
		e := NewBufferedEmitter()
		e.Emit(Event{Key: "f(a)", Version: 1, Msg: "first"})
		e.Emit(Event{Key: "f(b)", Version: 1, Msg: "other"})
		e.Emit(Event{Key: "f(a)", Version: 1, Msg: "second"})

		history := e.History("f(a)")
		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		if history[0].Msg != "first" || history[1].Msg != "second" {
			t.Errorf("order lost: %v", history)
		}
	})

	t.Run("all preserves global order", func(t *testing.T) {
		e := NewBufferedEmitter()
		e.Emit(Event{Key: "f(a)", Msg: "one"})
		e.Emit(Event{Key: "f(b)", Msg: "two"})

		all := e.All()
		if len(all) != 2 || all[0].Msg != "one" || all[1].Msg != "two" {
			t.Errorf("global order lost: %v", all)
		}
	})

	t.Run("filter by msg and version", func(t *testing.T) {
		e := NewBufferedEmitter()
		e.Emit(Event{Key: "f(a)", Version: 1, Msg: "node_done"})
		e.Emit(Event{Key: "f(a)", Version: 2, Msg: "node_done"})
		e.Emit(Event{Key: "f(a)", Version: 2, Msg: "node_error"})

		v2 := int64(2)
		got := e.HistoryWithFilter("f(a)", HistoryFilter{Msg: "node_done", Version: &v2})
		if len(got) != 1 {
			t.Fatalf("expected 1 match, got %d", len(got))
		}
		if got[0].Version != 2 {
			t.Errorf("wrong event matched: %v", got[0])
		}
	})

	t.Run("count across keys", func(t *testing.T) {
		e := NewBufferedEmitter()
		e.Emit(Event{Key: "f(a)", Msg: "node_done"})
		e.Emit(Event{Key: "f(b)", Msg: "node_done"})
		e.Emit(Event{Key: "f(b)", Msg: "node_error"})
		if got := e.Count("node_done"); got != 2 {
			t.Errorf("count %d, want 2", got)
		}
	})

	t.Run("clear one key keeps the rest", func(t *testing.T) {
		e := NewBufferedEmitter()
		e.Emit(Event{Key: "f(a)", Msg: "m"})
		e.Emit(Event{Key: "f(b)", Msg: "m"})
		e.Clear("f(a)")

		if len(e.History("f(a)")) != 0 {
			t.Error("cleared key still has events")
		}
		if len(e.History("f(b)")) != 1 {
			t.Error("other key lost events")
		}
		if len(e.All()) != 1 {
			t.Error("global list not rebuilt")
		}
	})

	t.Run("clear all", func(t *testing.T) {
		e := NewBufferedEmitter()
		e.Emit(Event{Key: "f(a)", Msg: "m"})
		e.Clear("")
		if len(e.All()) != 0 {
			t.Error("clear-all left events")
		}
	})

	t.Run("concurrent emits are recorded completely", func(t *testing.T) {
		e := NewBufferedEmitter()
		var wg sync.WaitGroup
		const n = 100
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				e.Emit(Event{Key: "f(a)", Msg: "m"})
			}()
		}
		wg.Wait()
		if got := e.Count("m"); got != n {
			t.Errorf("lost events: %d of %d", got, n)
		}
	})
}

func TestNullEmitter(t *testing.T) {
	var e NullEmitter
	// Must simply not panic.
	e.Emit(Event{Key: "f(a)", Msg: "ignored"})
}
