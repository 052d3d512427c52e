package batch

import (
	"context"
	"testing"
	"time"

	"github.com/kelora-go/kelora/chunker"
)

func noneChunker(t *testing.T) chunker.Chunker {
	t.Helper()
	ck, err := chunker.New("none", "", "", 0)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	return ck
}

func TestBatcherSealsOnSize(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b := New(noneChunker(t), 2, 0)
	in := make(chan Line, 8)
	out := make(chan Batch, 8)

	for i := 1; i <= 5; i++ {
		in <- Line{Raw: "line", Num: i, Source: "f"}
	}
	close(in)

	if err := b.Run(ctx, in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var batches []Batch
	for batch := range out {
		batches = append(batches, batch)
	}
	// 5 lines at batch size 2: sealed batches of 2, 2, 1.
	if len(batches) != 3 {
		t.Fatalf("expected 3 sealed batches, got %d", len(batches))
	}
	if len(batches[0].Chunks) != 2 || len(batches[1].Chunks) != 2 || len(batches[2].Chunks) != 1 {
		t.Fatalf("unexpected batch sizes: %#v", batches)
	}
	if batches[0].ID != 0 || batches[1].ID != 1 || batches[2].ID != 2 {
		t.Fatalf("expected strictly increasing ids starting at 0, got %d/%d/%d",
			batches[0].ID, batches[1].ID, batches[2].ID)
	}
	if batches[0].StartLine != 1 || batches[1].StartLine != 3 || batches[2].StartLine != 5 {
		t.Fatalf("unexpected start lines: %#v", batches)
	}
}

func TestBatcherSealsOnHeaderBoundary(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b := New(noneChunker(t), 100, 0)
	in := make(chan Line, 8)
	out := make(chan Batch, 8)

	in <- Line{Raw: "status,method", Num: 1, Source: "f1", Header: true}
	in <- Line{Raw: "200,GET", Num: 2, Source: "f1"}
	in <- Line{Raw: "status,method", Num: 1, Source: "f2", Header: true}
	in <- Line{Raw: "404,POST", Num: 2, Source: "f2"}
	close(in)

	if err := b.Run(ctx, in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var batches []Batch
	for batch := range out {
		batches = append(batches, batch)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches split at the header boundary, got %d", len(batches))
	}
	if batches[0].HeaderLine != "status,method" || batches[1].HeaderLine != "status,method" {
		t.Fatalf("expected both batches to carry their file's header, got %#v", batches)
	}
	if batches[0].Source != "f1" || batches[1].Source != "f2" {
		t.Fatalf("unexpected sources: %#v", batches)
	}
}

func TestBatcherSealsOnTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b := New(noneChunker(t), 100, 20*time.Millisecond)
	in := make(chan Line, 4)
	out := make(chan Batch, 4)

	in <- Line{Raw: "line", Num: 1, Source: "f"}

	go func() {
		time.Sleep(80 * time.Millisecond)
		close(in)
	}()

	if err := b.Run(ctx, in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	batch, ok := <-out
	if !ok {
		t.Fatal("expected a batch sealed by the timeout before the channel closed")
	}
	if len(batch.Chunks) != 1 {
		t.Fatalf("expected the timeout to seal the single pending chunk, got %d", len(batch.Chunks))
	}
}

func TestBatcherFlushesChunkerAtEOF(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// "start" chunker strategy: a line matching the pattern opens a new
	// chunk; the trailing open chunk only surfaces via Flush at EOF.
	ck, err := chunker.New("start", `^BEGIN`, "", 0)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	b := New(ck, 100, 0)
	in := make(chan Line, 4)
	out := make(chan Batch, 4)

	in <- Line{Raw: "BEGIN one", Num: 1, Source: "f"}
	in <- Line{Raw: "continued", Num: 2, Source: "f"}
	close(in)

	if err := b.Run(ctx, in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var batches []Batch
	for batch := range out {
		batches = append(batches, batch)
	}
	if len(batches) != 1 {
		t.Fatalf("expected the flushed trailing chunk in its own sealed batch, got %d", len(batches))
	}
	if len(batches[0].Chunks) != 1 {
		t.Fatalf("expected exactly one flushed chunk, got %d", len(batches[0].Chunks))
	}
}
