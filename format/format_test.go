package format

import (
	"strings"
	"testing"

	"github.com/kelora-go/kelora/event"
)

func sampleEvent() *event.Event {
	ev := event.New(`{"status":200}`)
	ev.Set("status", event.Int(200))
	ev.Set("method", event.String("GET"))
	return ev
}

func TestJSONFormatterPreservesOrder(t *testing.T) {
	f, err := New("json", Options{})
	if err != nil {
		t.Fatal(err)
	}
	line, emit, err := f.Format(sampleEvent())
	if err != nil || !emit {
		t.Fatalf("err=%v emit=%v", err, emit)
	}
	want := `{"status":200,"method":"GET"}`
	if line != want {
		t.Fatalf("got %q, want %q", line, want)
	}
}

func TestKVFormatter(t *testing.T) {
	f, _ := New("kv", Options{})
	line, _, err := f.Format(sampleEvent())
	if err != nil {
		t.Fatal(err)
	}
	if line != `status=200 method=GET` {
		t.Fatalf("got %q", line)
	}
}

func TestKVFormatterQuotesValuesWithSpaces(t *testing.T) {
	ev := event.New("x")
	ev.Set("message", event.String("hello world"))
	f, _ := New("kv", Options{})
	line, _, err := f.Format(ev)
	if err != nil {
		t.Fatal(err)
	}
	if line != `message="hello world"` {
		t.Fatalf("got %q", line)
	}
}

func TestDefaultFormatterNoColor(t *testing.T) {
	f, _ := New("default", Options{})
	line, _, err := f.Format(sampleEvent())
	if err != nil {
		t.Fatal(err)
	}
	if line != `status='200' method='GET'` {
		t.Fatalf("got %q", line)
	}
}

func TestDefaultFormatterColor(t *testing.T) {
	f, _ := New("default", Options{Color: true})
	line, _, err := f.Format(sampleEvent())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(line, ansiKeyColor) {
		t.Fatalf("expected ANSI color escape, got %q", line)
	}
}

func TestBriefFormatter(t *testing.T) {
	f, _ := New("brief", Options{})
	line, _, err := f.Format(sampleEvent())
	if err != nil {
		t.Fatal(err)
	}
	if line != "200 GET" {
		t.Fatalf("got %q", line)
	}
}

func TestHideAndNullFormattersNeverEmit(t *testing.T) {
	hide, _ := New("hide", Options{})
	if _, emit, _ := hide.Format(sampleEvent()); emit {
		t.Fatal("hide formatter should never emit")
	}
	null, _ := New("null", Options{})
	if _, emit, _ := null.Format(sampleEvent()); emit {
		t.Fatal("null formatter should never emit")
	}
}

func TestCSVFormatterWithHeader(t *testing.T) {
	f, err := New("csv", Options{WithHeader: true})
	if err != nil {
		t.Fatal(err)
	}
	d := f.(*delimited)
	ev := sampleEvent()
	d.SetColumnsFromFirst(ev)

	header, ok := d.Header()
	if !ok {
		t.Fatal("expected header")
	}
	if header != "status,method" {
		t.Fatalf("header = %q", header)
	}
	line, _, err := d.Format(ev)
	if err != nil {
		t.Fatal(err)
	}
	if line != "200,GET" {
		t.Fatalf("row = %q", line)
	}
}

func TestTSVFormatterFixedColumns(t *testing.T) {
	f, err := New("tsv", Options{Columns: []string{"method", "status"}})
	if err != nil {
		t.Fatal(err)
	}
	line, _, err := f.Format(sampleEvent())
	if err != nil {
		t.Fatal(err)
	}
	if line != "GET\t200" {
		t.Fatalf("got %q", line)
	}
}

func TestUnknownFormat(t *testing.T) {
	if _, err := New("bogus", Options{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestGapMarkerFiresOnThreshold(t *testing.T) {
	g := NewGapMarker(2)
	if _, ok := g.Observe(event.Metadata{Source: "a", Line: 1}); ok {
		t.Fatal("first observation should never fire")
	}
	if _, ok := g.Observe(event.Metadata{Source: "a", Line: 2}); ok {
		t.Fatal("contiguous line should not fire")
	}
	marker, ok := g.Observe(event.Metadata{Source: "a", Line: 10})
	if !ok {
		t.Fatal("expected gap marker to fire")
	}
	if marker != "--- 7 lines skipped ---" {
		t.Fatalf("marker = %q", marker)
	}
}

func TestGapMarkerPerSource(t *testing.T) {
	g := NewGapMarker(1)
	g.Observe(event.Metadata{Source: "a", Line: 100})
	if _, ok := g.Observe(event.Metadata{Source: "b", Line: 1}); ok {
		t.Fatal("new source should not trigger a gap against another source's history")
	}
}
