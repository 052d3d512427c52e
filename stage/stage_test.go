package stage

import (
	"testing"

	"github.com/kelora-go/kelora/event"
	"github.com/kelora-go/kelora/script"
)

func mustEngine(t *testing.T, specs []script.StageSpec) *script.Engine {
	t.Helper()
	eng, err := script.NewEngine(specs, nil)
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func TestGraphFilterDropsEvent(t *testing.T) {
	eng := mustEngine(t, []script.StageSpec{{Name: "keep-errors", Kind: script.KindFilter, Source: `level == "error"`}})
	g := New(eng, Resilient)

	ev := event.New("")
	ev.Set("level", event.String("info"))
	out, err := g.Run(ev)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("out = %v, want empty", out)
	}
}

func TestGraphTransformFanOut(t *testing.T) {
	eng := mustEngine(t, []script.StageSpec{{Name: "split", Kind: script.KindTransform, Source: `emit_each("tag", ["a","b"])`}})
	g := New(eng, Resilient)

	out, err := g.Run(event.New(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("out = %d events, want 2", len(out))
	}
}

func TestGraphStrictModePropagatesFatal(t *testing.T) {
	eng := mustEngine(t, []script.StageSpec{{Name: "bad", Kind: script.KindFilter, Source: `read_file("/etc/hostname") == "x"`}})
	g := New(eng, Strict)

	_, err := g.Run(event.New(""))
	if err == nil {
		t.Fatal("expected fatal error in strict mode")
	}
	var fe *FatalError
	if !assertIsFatal(err, &fe) {
		t.Fatalf("error = %v, want *FatalError", err)
	}
}

func assertIsFatal(err error, target **FatalError) bool {
	fe, ok := err.(*FatalError)
	if ok {
		*target = fe
	}
	return ok
}

func TestGraphResilientRestoresOnTransformError(t *testing.T) {
	eng := mustEngine(t, []script.StageSpec{
		{Name: "bad", Kind: script.KindTransform, Source: `set("will_not_apply", missing_field.nested)`},
	})
	g := New(eng, Resilient)

	ev := event.New("")
	ev.Set("existing", event.String("value"))
	out, err := g.Run(ev)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("out = %d events, want 1", len(out))
	}
	if _, ok := out[0].Fields.Get("will_not_apply"); ok {
		t.Fatal("expected failed transform's mutation to be rolled back")
	}
}
