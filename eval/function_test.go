package eval

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry(t *testing.T) {
	t.Run("register and lookup", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register("f", constFn(1)); err != nil {
			t.Fatalf("register: %v", err)
		}
		if _, ok := r.Lookup("f"); !ok {
			t.Error("registered function not found")
		}
		if _, ok := r.Lookup("g"); ok {
			t.Error("unregistered function found")
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		if err := NewRegistry().Register("", constFn(1)); err == nil {
			t.Error("empty name accepted")
		}
	})

	t.Run("nil function rejected", func(t *testing.T) {
		if err := NewRegistry().Register("f", nil); err == nil {
			t.Error("nil function accepted")
		}
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		r := NewRegistry()
		_ = r.Register("f", constFn(1))
		err := r.Register("f", constFn(2))
		if err == nil {
			t.Fatal("duplicate accepted")
		}
		var ee *EvalError
		if !errors.As(err, &ee) || ee.Code != "DUPLICATE_FUNCTION" {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("names lists registrations", func(t *testing.T) {
		r := NewRegistry()
		_ = r.Register("a", constFn(1))
		_ = r.Register("b", constFn(2))
		if len(r.Names()) != 2 {
			t.Errorf("names %v", r.Names())
		}
	})
}

func TestFunctionFunc(t *testing.T) {
	fn := FunctionFunc(func(_ context.Context, key NodeKey, _ *Environment) (Value, error) {
		return key.Argument(), nil
	})
	value, err := fn.Compute(context.Background(), NewKey("f", "a"), nil)
	if err != nil || value != "a" {
		t.Errorf("got %v %v", value, err)
	}
}

func TestComputeStateCache(t *testing.T) {
	cache, err := NewComputeStateCache(2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	a, b, c := NewKey("f", "a"), NewKey("f", "b"), NewKey("f", "c")
	cache.Put(a, "sa")
	cache.Put(b, "sb")
	if cache.Get(a) != "sa" {
		t.Error("state lost")
	}

	// Capacity 2: inserting a third evicts the least recently used.
	cache.Put(c, "sc")
	if cache.Len() != 2 {
		t.Errorf("len %d", cache.Len())
	}
	if cache.Get(b) != nil {
		t.Error("lru entry survived eviction")
	}

	cache.Remove(a)
	if cache.Get(a) != nil {
		t.Error("removed entry still present")
	}

	if _, err := NewComputeStateCache(0); err == nil {
		t.Error("zero size accepted")
	}
}
