package corpus

import (
	"testing"

	"github.com/rgale/corpusqa/internal/record"
)

func TestStore_StartsEmpty(t *testing.T) {
	s := NewStore()
	if !s.Current().Empty() {
		t.Error("new store should hold an empty snapshot")
	}
}

func TestStore_ReplaceSwapsWholesale(t *testing.T) {
	s := NewStore()
	old := s.Current()

	snap := &Snapshot{
		LoadID:  "load-1",
		Records: []record.Record{{ID: 1, Kind: record.KindEmail, Subject: "x"}},
	}
	s.Replace(snap)

	got := s.Current()
	if got == old {
		t.Fatal("snapshot pointer did not change")
	}
	if got.LoadID != "load-1" || len(got.Records) != 1 {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	// the old snapshot is untouched by the swap
	if len(old.Records) != 0 {
		t.Error("old snapshot mutated")
	}
}

func TestSnapshot_ByID(t *testing.T) {
	snap := &Snapshot{Records: []record.Record{
		{ID: 1, Subject: "a"},
		{ID: 3, Subject: "b"}, // id 2 rejected during load
	}}
	if r, ok := snap.ByID(3); !ok || r.Subject != "b" {
		t.Errorf("ByID(3) = %+v, %v", r, ok)
	}
	if _, ok := snap.ByID(2); ok {
		t.Error("ByID(2) should miss")
	}
}
