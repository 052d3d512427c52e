package chunker

import "testing"

func feedAll(c Chunker, lines []string) []string {
	var chunks []string
	for _, l := range lines {
		if chunk, ok := c.Feed(l); ok {
			chunks = append(chunks, chunk)
		}
	}
	if chunk, ok := c.Flush(); ok {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestNoneChunker(t *testing.T) {
	c := NewNone()
	chunks := feedAll(c, []string{"a", "b", "c"})
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
}

func TestAllChunker(t *testing.T) {
	c := NewAll()
	chunks := feedAll(c, []string{"a", "b", "c"})
	if len(chunks) != 1 || chunks[0] != "a\nb\nc" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestTimestampChunker(t *testing.T) {
	c, err := NewTimestamp(`^\d{4}-\d{2}-\d{2}`)
	if err != nil {
		t.Fatal(err)
	}
	lines := []string{
		"2026-01-01 start",
		"  continuation 1",
		"  continuation 2",
		"2026-01-02 next event",
	}
	chunks := feedAll(c, lines)
	want := []string{
		"2026-01-01 start\n  continuation 1\n  continuation 2",
		"2026-01-02 next event",
	}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestIndentChunker(t *testing.T) {
	c := NewIndent("spaces")
	lines := []string{
		"event one",
		"  detail a",
		"  detail b",
		"event two",
	}
	chunks := feedAll(c, lines)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %v", len(chunks), chunks)
	}
	if chunks[0] != "event one\n  detail a\n  detail b" {
		t.Errorf("chunk 0 = %q", chunks[0])
	}
}

func TestStartChunker(t *testing.T) {
	c, err := NewStart(`^BEGIN`)
	if err != nil {
		t.Fatal(err)
	}
	chunks := feedAll(c, []string{"BEGIN a", "line 2", "BEGIN b", "line 3"})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %v", len(chunks), chunks)
	}
}

func TestEndChunker(t *testing.T) {
	c, err := NewEnd(`END$`)
	if err != nil {
		t.Fatal(err)
	}
	chunks := feedAll(c, []string{"line 1", "line 2 END", "line 3", "line 4 END"})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %v", len(chunks), chunks)
	}
	if chunks[0] != "line 1\nline 2 END" {
		t.Errorf("chunk 0 = %q", chunks[0])
	}
}

func TestBoundaryChunker(t *testing.T) {
	c, err := NewBoundary(`^<record>`, `^</record>`)
	if err != nil {
		t.Fatal(err)
	}
	lines := []string{"noise before", "<record>", "body", "</record>", "noise after"}
	chunks := feedAll(c, lines)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1: %v", len(chunks), chunks)
	}
	if chunks[0] != "<record>\nbody\n</record>" {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestBackslashChunker(t *testing.T) {
	c := NewBackslash('\\')
	chunks := feedAll(c, []string{`line one \`, `continued`, `line two`})
	want := []string{"line one continued", "line two"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestNewUnknownStrategy(t *testing.T) {
	if _, err := New("bogus", "", "", 0); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
