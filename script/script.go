// Package script adapts expr-lang/expr (github.com/expr-lang/expr) into
// the per-worker script engine spec.md §4.4 describes: one compiled
// program per stage per worker, a frozen conf map, a mutable metrics
// handle, and a small set of host-registered functions scripts may call.
package script

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kelora-go/kelora/event"
)

// Kind distinguishes the role a stage plays in the pipeline graph.
type Kind int

const (
	KindFilter Kind = iota
	KindTransform
	KindBegin
	KindEnd
)

// StageSpec is the user-authored definition of one pipeline stage.
type StageSpec struct {
	Name   string
	Kind   Kind
	Source string
}

// MetricsHandle is the subset of metrics.Accumulator the script engine
// calls into. Defined here (rather than imported from metrics) so script
// has no dependency on the metrics package; metrics.Accumulator satisfies
// it structurally.
type MetricsHandle interface {
	Count(key string, delta int64)
	Sum(key string, v float64)
	Min(key string, v float64)
	Max(key string, v float64)
	Avg(key string, v float64)
	Unique(key string, v any)
	Bucket(key, bucket string)
}

// CompileError wraps an expr compile failure with the offending stage name.
type CompileError struct {
	Stage string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Stage, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

type compiledStage struct {
	spec    StageSpec
	program *vm.Program
}

// Engine owns one worker's compiled stages, its frozen conf map, and its
// metrics handle. An Engine is never shared between workers (spec.md
// §4.4/§9's "scripts are never shared" shared-resource policy).
type Engine struct {
	metrics MetricsHandle
	window  WindowHandle
	conf    map[string]any

	begin  *compiledStage
	end    *compiledStage
	stages []compiledStage
}

// SetWindow attaches the sliding window of recent events a sequential
// run maintains, exposing it to scripts via the `window()` host
// function. Never called in parallel mode (DESIGN.md's Open Question
// resolution: window has no defined cross-worker merge).
func (e *Engine) SetWindow(w WindowHandle) { e.window = w }

// NewEngine compiles every stage spec. Compilation happens against an
// untyped environment (event fields are dynamic, discovered at runtime),
// matching expr-lang's dynamic-map mode rather than a statically typed
// struct env.
func NewEngine(specs []StageSpec, metrics MetricsHandle) (*Engine, error) {
	e := &Engine{metrics: metrics, conf: map[string]any{}}
	for _, spec := range specs {
		program, err := expr.Compile(spec.Source)
		if err != nil {
			return nil, &CompileError{Stage: spec.Name, Err: err}
		}
		cs := compiledStage{spec: spec, program: program}
		switch spec.Kind {
		case KindBegin:
			e.begin = &cs
		case KindEnd:
			e.end = &cs
		default:
			e.stages = append(e.stages, cs)
		}
	}
	return e, nil
}

// Stages returns the compiled filter/transform stages in declared order.
func (e *Engine) Stages() []StageSpec {
	specs := make([]StageSpec, len(e.stages))
	for i, cs := range e.stages {
		specs[i] = cs.spec
	}
	return specs
}

// HasBegin/HasEnd report whether one-shot stages were configured.
func (e *Engine) HasBegin() bool { return e.begin != nil }
func (e *Engine) HasEnd() bool   { return e.end != nil }

// RunBegin executes the begin stage once, in the process thread, before
// any worker starts. Its result, if a map, becomes the frozen conf every
// subsequent stage observes (spec.md §4.3).
func (e *Engine) RunBegin() error {
	if e.begin == nil {
		return nil
	}
	ctx := &evalContext{event: event.New(""), allowFileRead: true}
	env := buildEnv(ctx, e.conf, e.metrics, e.window)
	result, err := expr.Run(e.begin.program, env)
	if err != nil {
		return &CompileError{Stage: e.begin.spec.Name, Err: err}
	}
	if m, ok := result.(map[string]any); ok {
		e.conf = m
	}
	return nil
}

// SetConf freezes the conf map a begin stage produced elsewhere (e.g. the
// process thread ran begin once and distributed the result to every
// worker's Engine).
func (e *Engine) SetConf(conf map[string]any) { e.conf = conf }

// Conf returns the frozen conf map.
func (e *Engine) Conf() map[string]any { return e.conf }

// RunEnd executes the end stage once, after all input is processed and
// after cross-worker metrics merge.
func (e *Engine) RunEnd() error {
	if e.end == nil {
		return nil
	}
	ctx := &evalContext{event: event.New("")}
	env := buildEnv(ctx, e.conf, e.metrics, e.window)
	_, err := expr.Run(e.end.program, env)
	if err != nil {
		return &CompileError{Stage: e.end.spec.Name, Err: err}
	}
	return nil
}

// Verdict is the outcome of running one stage against one event.
type Verdict struct {
	Kept    bool
	Emitted []*event.Event // non-nil only for a fan-out transform
}

// RunFilter evaluates stage idx, which must be a KindFilter stage,
// returning whether ev survives.
func (e *Engine) RunFilter(idx int, ev *event.Event) (bool, error) {
	cs := e.stages[idx]
	ctx := &evalContext{event: ev}
	env := buildEnv(ctx, e.conf, e.metrics, e.window)
	result, err := expr.Run(cs.program, env)
	if err != nil {
		return false, &CompileError{Stage: cs.spec.Name, Err: err}
	}
	keep, ok := result.(bool)
	if !ok {
		return false, &CompileError{Stage: cs.spec.Name, Err: fmt.Errorf("filter must evaluate to bool, got %T", result)}
	}
	return keep, nil
}

// RunTransform evaluates stage idx, which must be a KindTransform stage.
// The transform may mutate ev in place via set/delete, drop it via
// drop(), or fan it out into several events via emit_each — see
// SPEC_FULL.md's script engine section for the exact contract.
func (e *Engine) RunTransform(idx int, ev *event.Event) (Verdict, error) {
	cs := e.stages[idx]
	ctx := &evalContext{event: ev}
	env := buildEnv(ctx, e.conf, e.metrics, e.window)
	result, err := expr.Run(cs.program, env)
	if err != nil {
		return Verdict{}, &CompileError{Stage: cs.spec.Name, Err: err}
	}
	if ctx.emitted != nil {
		return Verdict{Kept: false, Emitted: ctx.emitted}, nil
	}
	if ctx.dropped {
		return Verdict{Kept: false}, nil
	}
	if m, ok := result.(map[string]any); ok {
		applyFieldMap(ev, m)
	}
	return Verdict{Kept: true}, nil
}

// StageKind exposes stage idx's kind, used by the stage package to
// dispatch between RunFilter and RunTransform.
func (e *Engine) StageKind(idx int) Kind { return e.stages[idx].spec.Kind }

// StageCount is the number of filter/transform stages (excludes begin/end).
func (e *Engine) StageCount() int { return len(e.stages) }
