package store

import (
	"context"
	"testing"

	"github.com/dshills/skygraph-go/eval/emit"
)

func TestMemStoreValues(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	defer st.Close()

	t.Run("lookup on empty store misses", func(t *testing.T) {
		_, ok, err := st.LookupValue(ctx, "f", "a", 10)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if ok {
			t.Error("empty store reported a hit")
		}
	})

	t.Run("lookup returns newest record at or below version", func(t *testing.T) {
		for _, v := range []int64{1, 3, 7} {
			if err := st.SaveValue(ctx, Record{Function: "f", Argument: "a", Version: v, Value: v * 10}); err != nil {
				t.Fatalf("save v%d: %v", v, err)
			}
		}

		rec, ok, err := st.LookupValue(ctx, "f", "a", 5)
		if err != nil || !ok {
			t.Fatalf("lookup: %v %v", ok, err)
		}
		if rec.Version != 3 || rec.Value != int64(30) {
			t.Errorf("unexpected record %+v", rec)
		}

		rec, ok, _ = st.LookupValue(ctx, "f", "a", 7)
		if !ok || rec.Version != 7 {
			t.Errorf("exact version lookup %+v %v", rec, ok)
		}

		_, ok, _ = st.LookupValue(ctx, "f", "a", 0)
		if ok {
			t.Error("lookup below all records reported a hit")
		}
	})

	t.Run("saving the same version overwrites", func(t *testing.T) {
		if err := st.SaveValue(ctx, Record{Function: "f", Argument: "a", Version: 3, Value: "replaced"}); err != nil {
			t.Fatalf("save: %v", err)
		}
		rec, _, _ := st.LookupValue(ctx, "f", "a", 3)
		if rec.Value != "replaced" {
			t.Errorf("overwrite lost: %+v", rec)
		}
	})

	t.Run("identities are independent", func(t *testing.T) {
		_, ok, _ := st.LookupValue(ctx, "f", "other", 10)
		if ok {
			t.Error("lookup crossed identities")
		}
	})
}

func TestMemStoreEventSets(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	defer st.Close()

	set := EventSet{
		ID:       "f(a)@1",
		Events:   []emit.Event{{Key: "f(a)", Version: 1, Msg: "computed"}},
		Children: []string{"g(b)@1"},
	}
	if err := st.SaveEventSet(ctx, set); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := st.LookupEventSet(ctx, "f(a)@1")
	if err != nil || !ok {
		t.Fatalf("lookup: %v %v", ok, err)
	}
	if len(got.Events) != 1 || got.Events[0].Msg != "computed" {
		t.Errorf("events lost: %+v", got.Events)
	}
	if len(got.Children) != 1 || got.Children[0] != "g(b)@1" {
		t.Errorf("children lost: %+v", got.Children)
	}

	_, ok, _ = st.LookupEventSet(ctx, "missing@0")
	if ok {
		t.Error("missing set reported found")
	}
}
