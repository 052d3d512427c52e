// Package sink implements the parallel-mode reorder buffer spec.md
// §4.9/§4.10 describes: a next-to-emit id counter with a small
// id-indexed buffer for batches arriving out of order, a `--unordered`
// bypass, and cooperative `--take`-limit shutdown that drains (but does
// not write) any further in-flight batches.
//
// Grounded on the teacher's single-collector-goroutine pattern in
// parser.go's parseFileWithStreamingIO (`for batch := range resultsChan
// { results = append(results, batch...) }`) generalized from "append
// everything, order doesn't matter because the caller sorts once at the
// end" into "hold out-of-order arrivals until their predecessor shows
// up", the shape spec.md §4.10's reorder state machine requires.
package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/kelora-go/kelora/event"
	"github.com/kelora-go/kelora/format"
	"github.com/kelora-go/kelora/worker"
)

// State is the reorder buffer's position in spec.md §4.10's state
// machine: waiting(next_id, buffer) -> draining -> done.
type State int

const (
	Waiting State = iota
	Draining
	Done
)

// Sink writes worker.Results to out, either in strict id order (the
// default) or immediately on arrival (--unordered), enforcing the
// global --take limit across every worker's output.
type Sink struct {
	out       io.Writer
	unordered bool
	takeLimit *int
	gap       *format.GapMarker

	mu      sync.Mutex
	state   State
	next    int64
	buffer  map[int64]worker.Result
	emitted int
}

// New builds a Sink. gapThreshold <= 0 disables gap markers entirely
// (format.NewGapMarker's own contract); a nil takeLimit disables the
// take-limit shutdown, and a pointer to 0 drains everything without
// writing a single line.
func New(out io.Writer, gapThreshold int, unordered bool, takeLimit *int) *Sink {
	return &Sink{
		out:       out,
		unordered: unordered,
		takeLimit: takeLimit,
		gap:       format.NewGapMarker(gapThreshold),
		buffer:    make(map[int64]worker.Result),
	}
}

// State reports the sink's current position in the reorder state
// machine, mainly for tests and diagnostics.
func (s *Sink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Emitted is the number of output lines written so far.
func (s *Sink) Emitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

// Accept delivers one worker result to the sink. It returns done=true
// once the take limit has been reached (by this call or an earlier
// one) — the caller is expected to send a cooperative shutdown signal
// upstream the first time it observes done, but must keep calling
// Accept for any batches already in flight so producers never block on
// a sink that stopped listening (spec.md §4.9's "drains remaining
// in-flight batches without writing").
func (s *Sink) Accept(res worker.Result) (done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Waiting {
		return true, nil
	}

	if s.unordered {
		return s.writeLocked(res)
	}

	if res.ID != s.next {
		s.buffer[res.ID] = res
		return false, nil
	}

	if done, err := s.writeLocked(res); done || err != nil {
		return done, err
	}
	s.next++
	for {
		buffered, ok := s.buffer[s.next]
		if !ok {
			break
		}
		delete(s.buffer, s.next)
		if done, err := s.writeLocked(buffered); done || err != nil {
			return done, err
		}
		s.next++
	}
	return false, nil
}

// writeLocked writes res's lines in order, enforcing the take limit.
// Caller holds s.mu.
func (s *Sink) writeLocked(res worker.Result) (done bool, err error) {
	for _, ln := range res.Lines {
		if s.takeLimit != nil && s.emitted >= *s.takeLimit {
			s.state = Draining
			return true, nil
		}
		if marker, ok := s.gap.Observe(event.Metadata{Source: ln.Source, Line: ln.LineNo}); ok {
			if _, err := fmt.Fprintln(s.out, marker); err != nil {
				return false, err
			}
		}
		if _, err := fmt.Fprintln(s.out, ln.Text); err != nil {
			return false, err
		}
		s.emitted++
	}
	return false, nil
}

// Close transitions the sink from draining to done once the caller
// knows no further results are coming (every worker channel closed, or
// a shutdown signal was honoured). Calling Accept after Close is a
// harmless no-op.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Done
}
