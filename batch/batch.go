// Package batch implements the parallel-mode batcher spec.md §4.7
// describes: it owns the chunker, accumulates completed chunks into a
// batch, and seals the batch when the size limit, the timeout, EOF, or a
// header boundary (so headers never straddle two batches) is reached.
//
// Grounded on parser.go's parseFileWithStreamingIO batched-channel shape
// (a reader goroutine feeding fixed-size batches into a worker channel)
// and on other_examples' bibbl-log-stream worker_pool.go's
// batchCollector (ticker-driven timeout flush alongside a size-driven
// one, both racing in the same select loop).
package batch

import (
	"context"
	"time"

	"github.com/kelora-go/kelora/chunker"
)

// Line is one filtered, surviving input line handed to the batcher by a
// Reader (or any other producer), already past skip/section/keep/ignore/
// head filtering (spec.md §4.6 steps 1-3, applied identically in
// parallel mode so sequential and parallel runs see the same input).
type Line struct {
	Raw    string
	Num    int // 1-based line number within Source
	Source string
	// Header marks this line as a header row for a header-bearing
	// tabular format rather than a data row: the batcher seals any
	// open batch and starts a fresh one carrying this as HeaderLine,
	// so a batch's chunks are never parsed against two different
	// header schemas (spec.md §4.7's "chunker reports a file boundary
	// for a header-bearing format" rule).
	Header bool
}

// Chunk is one chunker-completed record inside a sealed Batch. Line is
// the chunk's first source line, not the line that triggered completion
// — the same convention runner.handleChunkAt uses, so gap markers agree
// between sequential and parallel mode for multi-line chunks (spec.md §8).
type Chunk struct {
	Raw    string
	Line   int
	Source string
}

// Batch is a sealed, dispatchable unit of work. IDs are strictly
// increasing starting at 0, in seal order, matching spec.md §4.7's
// "every batch gets a strictly-increasing id".
type Batch struct {
	ID         int64
	StartLine  int
	Source     string
	HeaderLine string // non-empty: workers must SetHeader before parsing any Chunk
	Chunks     []Chunk
}

// Batcher turns a stream of Lines into sealed Batches.
type Batcher struct {
	ch      chunker.Chunker
	size    int
	timeout time.Duration
	nextID  int64
}

// New builds a Batcher over ch, sealing a batch once it holds size
// chunks or timeout has elapsed since the first chunk of the current
// batch, whichever comes first. timeout <= 0 disables the time-based
// seal (only size/EOF/header-boundary apply).
func New(ch chunker.Chunker, size int, timeout time.Duration) *Batcher {
	if size <= 0 {
		size = 1
	}
	return &Batcher{ch: ch, size: size, timeout: timeout}
}

// Run drives the batcher loop until in is closed or ctx is cancelled,
// sending sealed batches to out and closing out before returning. It is
// meant to run in its own goroutine, the batcher thread spec.md §5
// describes.
func (b *Batcher) Run(ctx context.Context, in <-chan Line, out chan<- Batch) error {
	defer close(out)

	var current Batch
	var timer *time.Timer
	var timerC <-chan time.Time
	var lastLine int
	var lastSource string

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	startTimerIfNeeded := func() {
		if b.timeout <= 0 || timer != nil {
			return
		}
		timer = time.NewTimer(b.timeout)
		timerC = timer.C
	}
	seal := func() bool {
		if len(current.Chunks) == 0 {
			current = Batch{}
			return true
		}
		current.ID = b.nextID
		b.nextID++
		select {
		case out <- current:
		case <-ctx.Done():
			return false
		}
		current = Batch{}
		stopTimer()
		return true
	}
	appendChunk := func(raw string, line int, source string) bool {
		if len(current.Chunks) == 0 {
			current.StartLine = line
			current.Source = source
			startTimerIfNeeded()
		}
		current.Chunks = append(current.Chunks, Chunk{Raw: raw, Line: line, Source: source})
		if len(current.Chunks) >= b.size {
			return seal()
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timerC:
			if !seal() {
				return ctx.Err()
			}
		case ln, ok := <-in:
			if !ok {
				if chunk, okc := b.ch.Flush(); okc {
					appendChunk(chunk, lastLine-chunker.LineSpan(chunk)+1, lastSource)
				}
				seal()
				return nil
			}
			lastLine = ln.Num
			lastSource = ln.Source
			if ln.Header {
				if !seal() {
					return ctx.Err()
				}
				current.HeaderLine = ln.Raw
				continue
			}
			chunk, okc := b.ch.Feed(ln.Raw)
			if !okc {
				continue
			}
			if !appendChunk(chunk, ln.Num-chunker.LineSpan(chunk)+1, ln.Source) {
				return ctx.Err()
			}
		}
	}
}
