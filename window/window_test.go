package window

import (
	"testing"
	"time"
)

func at(seconds int) time.Time {
	return time.Unix(1000, 0).Add(time.Duration(seconds) * time.Second)
}

func TestDropOldEvictsByTime(t *testing.T) {
	w := New(5*time.Second, 0)
	w.Update([]Entry{{Raw: "a", Time: at(0)}})
	w.Update([]Entry{{Raw: "b", Time: at(3)}})
	w.Update([]Entry{{Raw: "c", Time: at(8)}})

	got := w.Entries()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (entries: %v)", len(got), got)
	}
	if got[0].Raw != "b" || got[1].Raw != "c" {
		t.Fatalf("entries = %v, want [b c]", got)
	}
}

func TestDropOldEnforcesMaxEntries(t *testing.T) {
	w := New(time.Hour, 2)
	w.Update([]Entry{{Raw: "a", Time: at(0)}})
	w.Update([]Entry{{Raw: "b", Time: at(1)}})
	w.Update([]Entry{{Raw: "c", Time: at(2)}})

	got := w.Entries()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Raw != "b" || got[1].Raw != "c" {
		t.Fatalf("entries = %v, want [b c]", got)
	}
}

func TestInsertNewDoesNotEvictUntilDropOld(t *testing.T) {
	w := New(time.Second, 0)
	w.InsertNew([]Entry{{Raw: "a", Time: at(0)}})
	w.InsertNew([]Entry{{Raw: "b", Time: at(100)}})
	if w.Len() != 2 {
		t.Fatalf("len = %d, want 2 before DropOld", w.Len())
	}
	w.DropOld()
	if w.Len() != 1 {
		t.Fatalf("len = %d, want 1 after DropOld", w.Len())
	}
}
