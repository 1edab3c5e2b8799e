package eval

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorInfo(t *testing.T) {
	t.Run("unwraps the triggering error", func(t *testing.T) {
		cause := errors.New("cause")
		info := &ErrorInfo{Key: NewKey("f", "a"), Err: cause}
		if !errors.Is(info, cause) {
			t.Error("errors.Is lost the cause")
		}
		if !strings.Contains(info.Error(), "f(a)") {
			t.Errorf("message lacks the key: %q", info.Error())
		}
	})

	t.Run("pure cycle errors unwrap to ErrCycle", func(t *testing.T) {
		info := &ErrorInfo{
			Key:    NewKey("a", "x"),
			Cycles: []CycleInfo{{Cycle: []NodeKey{NewKey("a", "x"), NewKey("b", "x")}}},
		}
		if !errors.Is(info, ErrCycle) {
			t.Error("cycle error does not match ErrCycle")
		}
		if !info.IsCycle() {
			t.Error("IsCycle false")
		}
	})
}

func TestCycleInfoString(t *testing.T) {
	ci := CycleInfo{
		Path:  []NodeKey{NewKey("root", "r")},
		Cycle: []NodeKey{NewKey("a", "x"), NewKey("b", "x")},
	}
	want := "root(r) -> [a(x) -> b(x) -> a(x)]"
	if got := ci.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFirstChildErrorManager(t *testing.T) {
	parent := NewKey("p", "1")
	childA := &ErrorInfo{Key: NewKey("c", "a"), Err: errors.New("a broke")}
	childB := &ErrorInfo{
		Key:    NewKey("c", "b"),
		Cycles: []CycleInfo{{Cycle: []NodeKey{NewKey("c", "b")}}},
	}

	info := FirstChildErrorManager{}.FromChildErrors(parent, []*ErrorInfo{childA, childB})
	if info == nil {
		t.Fatal("nil info")
	}
	if !info.Propagated {
		t.Error("not marked propagated")
	}
	if !errors.Is(info, childA.Err) {
		t.Error("first child's cause lost")
	}
	if len(info.Cycles) != 1 {
		t.Errorf("child cycles not inherited: %v", info.Cycles)
	}

	if got := (FirstChildErrorManager{}).FromChildErrors(parent, nil); got != nil {
		t.Errorf("empty child list produced %v", got)
	}
}

func TestEvalError(t *testing.T) {
	withCode := &EvalError{Message: "bad", Code: "CODE"}
	if withCode.Error() != "CODE: bad" {
		t.Errorf("got %q", withCode.Error())
	}
	plain := &EvalError{Message: "bad"}
	if plain.Error() != "bad" {
		t.Errorf("got %q", plain.Error())
	}
}
