package decompress

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"testing"
)

func TestWrapPlainText(t *testing.T) {
	r, err := Wrap(bytes.NewBufferString("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hello world" {
		t.Fatalf("got %q", b)
	}
}

func TestWrapGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("compressed payload"))
	gz.Close()

	r, err := Wrap(&buf)
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "compressed payload" {
		t.Fatalf("got %q", b)
	}
}

func TestHasPrefixShortInput(t *testing.T) {
	r, err := Wrap(bytes.NewBufferString("ab"))
	if err != nil {
		t.Fatal(err)
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		t.Fatalf("expected passthrough *bufio.Reader for short input, got %T", r)
	}
	b, _ := br.Peek(2)
	if string(b) != "ab" {
		t.Fatalf("peek = %q", b)
	}
}
