package worker

import (
	"context"
	"testing"
	"time"

	"github.com/kelora-go/kelora/batch"
	"github.com/kelora-go/kelora/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Input:  config.Input{Format: "apache-combined"},
		Output: config.Output{Format: "json"},
	}
}

const sampleLine = `192.168.1.100 - - [01/Jan/2025:10:15:30 +0000] "GET /api/users HTTP/1.1" 200 1024 "-" "Mozilla/5.0"`

func TestWorkerProcessesBatchPreservingOrder(t *testing.T) {
	w, err := New(baseConfig(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := batch.Batch{
		ID: 7,
		Chunks: []batch.Chunk{
			{Raw: sampleLine, Line: 1, Source: "f"},
			{Raw: sampleLine, Line: 2, Source: "f"},
			{Raw: sampleLine, Line: 3, Source: "f"},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	in := make(chan batch.Batch, 1)
	out := make(chan Result, 1)
	in <- b
	close(in)

	if err := w.Run(ctx, in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := <-out
	if res.ID != 7 {
		t.Fatalf("expected result id 7, got %d", res.ID)
	}
	if len(res.Lines) != 3 {
		t.Fatalf("expected 3 output lines, got %d", len(res.Lines))
	}
}

func TestWorkerReinitsHeaderFromBatch(t *testing.T) {
	cfg := &config.Config{
		Input:  config.Input{Format: "csv", HasHeader: true},
		Output: config.Output{Format: "json"},
	}
	w, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := batch.Batch{
		ID:         0,
		HeaderLine: "status,method",
		Chunks: []batch.Chunk{
			{Raw: "200,GET", Line: 2, Source: "f"},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	in := make(chan batch.Batch, 1)
	out := make(chan Result, 1)
	in <- b
	close(in)

	if err := w.Run(ctx, in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := <-out
	if len(res.Lines) != 1 {
		t.Fatalf("expected 1 formatted line, got %d", len(res.Lines))
	}
}

func TestWorkerResilientModeSkipsParseErrors(t *testing.T) {
	cfg := &config.Config{
		Input:  config.Input{Format: "json"},
		Output: config.Output{Format: "json"},
	}
	w, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := batch.Batch{
		Chunks: []batch.Chunk{
			{Raw: "not json", Line: 1, Source: "f"},
			{Raw: `{"status":200}`, Line: 2, Source: "f"},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	in := make(chan batch.Batch, 1)
	out := make(chan Result, 1)
	in <- b
	close(in)

	if err := w.Run(ctx, in, out); err != nil {
		t.Fatalf("Run should not fail in resilient mode: %v", err)
	}
	res := <-out
	if len(res.Lines) != 1 {
		t.Fatalf("expected 1 surviving line, got %d", len(res.Lines))
	}
	if w.ParseErrors() != 1 {
		t.Fatalf("expected 1 parse error counted, got %d", w.ParseErrors())
	}
}

func TestWorkerStrictModeAbortsOnParseError(t *testing.T) {
	cfg := &config.Config{
		Input:      config.Input{Format: "json"},
		Output:     config.Output{Format: "json"},
		Processing: config.Processing{Strict: true},
	}
	w, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := batch.Batch{
		Chunks: []batch.Chunk{
			{Raw: "not json", Line: 1, Source: "f"},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	in := make(chan batch.Batch, 1)
	out := make(chan Result, 1)
	in <- b
	close(in)

	if err := w.Run(ctx, in, out); err == nil {
		t.Fatal("expected strict mode to abort on parse error")
	}
}
