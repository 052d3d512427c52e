// Package stage runs the pipeline stage graph spec.md §4.3 describes:
// an ordered sequence of filter/transform stages, executed in strict or
// resilient error mode, with fan-out support.
package stage

import (
	"fmt"

	"github.com/kelora-go/kelora/event"
	"github.com/kelora-go/kelora/pools"
	"github.com/kelora-go/kelora/script"
)

// Mode selects how a stage exception is handled.
type Mode int

const (
	// Resilient checkpoints the event before each stage; on exception the
	// event reverts to its pre-stage state and processing continues from
	// the next stage. A filter that throws drops the event. This is the
	// default (spec.md §4.3).
	Resilient Mode = iota
	// Strict aborts the whole pipeline on the first script exception.
	Strict
)

// FatalError is returned by Run in Strict mode when a stage script
// raises; callers propagate it to tear down the pipeline.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("stage %q failed (strict mode): %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Graph wraps a script.Engine with the strict/resilient policy spec.md
// §4.3 assigns to the stage sequence.
type Graph struct {
	engine *script.Engine
	mode   Mode
}

func New(engine *script.Engine, mode Mode) *Graph {
	return &Graph{engine: engine, mode: mode}
}

// Run executes every stage against ev, returning the surviving events
// after fan-out (zero, one, or many). A dropped event yields an empty
// slice, never an error, except in Strict mode where a raising script
// returns a *FatalError instead.
//
// Intermediate per-stage slices come from pools.Pools.EventSlices: only
// the initial single-event slice and the final returned slice are not
// pool-owned, since ownership of the latter passes to the caller (which
// is expected to return it once done ranging over it).
func (g *Graph) Run(ev *event.Event) ([]*event.Event, error) {
	current := []*event.Event{ev}
	for idx := 0; idx < g.engine.StageCount(); idx++ {
		next := pools.Pools.GetEventSlice()
		for _, e := range current {
			out, err := g.runOne(idx, e)
			if err != nil {
				pools.Pools.ReturnEventSlice(next)
				return nil, err
			}
			next = append(next, out...)
		}
		if idx > 0 {
			pools.Pools.ReturnEventSlice(current)
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return current, nil
}

func (g *Graph) runOne(idx int, e *event.Event) ([]*event.Event, error) {
	checkpoint := e.Clone()
	kind := g.engine.StageKind(idx)

	if kind == script.KindFilter {
		keep, err := g.engine.RunFilter(idx, e)
		if err != nil {
			if g.mode == Strict {
				return nil, &FatalError{Stage: stageNameOf(g.engine, idx), Err: err}
			}
			// resilient: a raising filter is treated as dropping the event
			e.Restore(checkpoint)
			return nil, nil
		}
		if !keep {
			return nil, nil
		}
		return []*event.Event{e}, nil
	}

	verdict, err := g.engine.RunTransform(idx, e)
	if err != nil {
		if g.mode == Strict {
			return nil, &FatalError{Stage: stageNameOf(g.engine, idx), Err: err}
		}
		// resilient: revert to the pre-stage checkpoint and carry on to
		// the next stage with the reverted event.
		e.Restore(checkpoint)
		return []*event.Event{e}, nil
	}
	if verdict.Emitted != nil {
		return verdict.Emitted, nil
	}
	if !verdict.Kept {
		return nil, nil
	}
	return []*event.Event{e}, nil
}

func stageNameOf(engine *script.Engine, idx int) string {
	specs := engine.Stages()
	if idx < len(specs) {
		return specs[idx].Name
	}
	return ""
}
