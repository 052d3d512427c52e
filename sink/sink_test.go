package sink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kelora-go/kelora/worker"
)

func lines(texts ...string) []worker.Line {
	out := make([]worker.Line, len(texts))
	for i, t := range texts {
		out[i] = worker.Line{Text: t, Source: "f", LineNo: i + 1}
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestSinkReordersOutOfOrderBatches(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, 0, false, nil)

	done, err := s.Accept(worker.Result{ID: 1, Lines: lines("b")})
	if err != nil || done {
		t.Fatalf("Accept(1): done=%v err=%v", done, err)
	}
	if out.Len() != 0 {
		t.Fatalf("batch 1 should be buffered, not written yet; got %q", out.String())
	}

	done, err = s.Accept(worker.Result{ID: 0, Lines: lines("a")})
	if err != nil || done {
		t.Fatalf("Accept(0): done=%v err=%v", done, err)
	}

	got := strings.TrimRight(out.String(), "\n")
	want := "a\nb"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSinkUnorderedWritesOnArrival(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, 0, true, nil)

	if _, err := s.Accept(worker.Result{ID: 1, Lines: lines("b")}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Accept(worker.Result{ID: 0, Lines: lines("a")}); err != nil {
		t.Fatal(err)
	}

	got := strings.TrimRight(out.String(), "\n")
	want := "b\na"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSinkTakeLimitStopsWritingAndDrains(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, 0, false, intPtr(2))

	done, err := s.Accept(worker.Result{ID: 0, Lines: lines("a", "b", "c")})
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected take limit to be reached mid-batch")
	}
	if s.Emitted() != 2 {
		t.Fatalf("expected exactly 2 lines emitted, got %d", s.Emitted())
	}

	// A later batch must be accepted (drained) without writing or blocking.
	done, err = s.Accept(worker.Result{ID: 1, Lines: lines("d", "e")})
	if err != nil || !done {
		t.Fatalf("expected draining accept to report done with no error, got done=%v err=%v", done, err)
	}
	if s.Emitted() != 2 {
		t.Fatalf("expected no further lines written while draining, got %d emitted", s.Emitted())
	}
}

func TestSinkTakeZeroEmitsNothing(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, 0, false, intPtr(0))

	done, err := s.Accept(worker.Result{ID: 0, Lines: lines("a", "b")})
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected a take limit of 0 to finish immediately")
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output for --take 0, got %q", out.String())
	}
	if s.Emitted() != 0 {
		t.Fatalf("expected 0 lines emitted, got %d", s.Emitted())
	}
}

func TestSinkCloseTransitionsToDone(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, 0, false, nil)
	if s.State() != Waiting {
		t.Fatal("expected initial state Waiting")
	}
	s.Close()
	if s.State() != Done {
		t.Fatal("expected state Done after Close")
	}
	if _, err := s.Accept(worker.Result{ID: 0, Lines: lines("x")}); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Fatal("Accept after Close must not write")
	}
}
