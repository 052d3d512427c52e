// Package worker implements the parallel-mode worker pool spec.md §4.8
// describes: each worker pulls batches off a shared channel, parses and
// runs the stage graph and formatter over every chunk in the batch,
// preserving intra-batch order, and emits one result batch per input
// batch. Workers are symmetric and hold no cross-batch state besides
// their own metrics accumulator and compiled stages (spec.md §4.8's
// "a worker is the sole owner of its script engine; the engine is never
// shared").
//
// Channel/goroutine shape grounded on logparser.go's
// parseFileWithStreamingIO worker loop (`for batch := range linesChan`,
// one compiled parser reused across the batch) and on other_examples'
// bibbl-log-stream worker_pool.go's `worker(ctx, id)` (select on the
// batch channel, ctx.Done for cooperative shutdown).
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kelora-go/kelora/batch"
	"github.com/kelora-go/kelora/config"
	"github.com/kelora-go/kelora/event"
	"github.com/kelora-go/kelora/format"
	"github.com/kelora-go/kelora/metrics"
	"github.com/kelora-go/kelora/parser"
	"github.com/kelora-go/kelora/pools"
	"github.com/kelora-go/kelora/script"
	"github.com/kelora-go/kelora/stage"
)

const (
	counterParseErrors   = metrics.ReservedPrefix + "parse_errors"
	counterEventsCreated = metrics.ReservedPrefix + "events_created"
)

// Line is one formatted output line, carrying the source metadata the
// sink's gap marker needs to detect a break in line-number continuity
// across the final, globally-ordered output (spec.md §6's formatter gap
// marker — computed in the sink rather than the worker in parallel mode,
// since only the sink sees events in final emission order).
type Line struct {
	Text   string
	Source string
	LineNo int
}

// Result is one formatted, order-preserved output of processing a Batch.
// Lines is empty-but-non-nil when every event in the batch was dropped
// (filtered out, or formatted with emit=false), so the sink can still
// advance its reorder counter past this id.
type Result struct {
	ID    int64
	Lines []Line
}

// Worker owns one script engine, one set of compiled stages, one
// metrics accumulator, and one lazily-resolved parser instance — never
// shared with any other worker.
type Worker struct {
	cfg    *config.Config
	logger *zap.Logger

	p          parser.Parser
	autoDetect bool
	graph      *stage.Graph
	engine     *script.Engine
	acc        *metrics.Accumulator
	fm         format.Formatter

	parseErrors int64
}

// New builds a Worker. conf is the frozen conf map a begin stage
// produced once in the process thread (spec.md §3.3); every worker's
// engine receives the same map by value, never runs begin/end itself
// (those are one-shot, process-thread-only stages per spec.md §4.8).
func New(cfg *config.Config, conf map[string]any, logger *zap.Logger) (*Worker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	acc := metrics.New()
	specs := workerStageSpecs(cfg)
	engine, err := script.NewEngine(specs, acc)
	if err != nil {
		return nil, err
	}
	engine.SetConf(conf)

	mode := stage.Resilient
	if cfg.Processing.Strict {
		mode = stage.Strict
	}
	graph := stage.New(engine, mode)

	var p parser.Parser
	autoDetect := cfg.Input.Format == ""
	if !autoDetect {
		p, err = parser.New(cfg.Input.Format, parserOptions(cfg))
		if err != nil {
			return nil, err
		}
	}

	fm, err := format.New(cfg.Output.Format, format.Options{
		Color:      cfg.Output.Color,
		Columns:    cfg.Output.Keys,
		WithHeader: cfg.Output.WithHeader,
	})
	if err != nil {
		return nil, err
	}

	return &Worker{
		cfg:        cfg,
		logger:     logger,
		p:          p,
		autoDetect: autoDetect,
		graph:      graph,
		engine:     engine,
		acc:        acc,
		fm:         fm,
	}, nil
}

// Accumulator exposes this worker's metrics, collected by the caller
// after Run returns for the cross-worker merge (spec.md §5's "contributes
// to the global merge at shutdown").
func (w *Worker) Accumulator() *metrics.Accumulator { return w.acc }

// ParseErrors reports how many chunks this worker failed to parse.
func (w *Worker) ParseErrors() int64 { return w.parseErrors }

func parserOptions(cfg *config.Config) parser.Options {
	return parser.Options{
		Separator: cfg.Input.Separator,
		HasHeader: cfg.Input.HasHeader,
		Pattern:   cfg.Input.Pattern,
	}
}

// workerStageSpecs is buildStageSpecs minus begin/end: those are
// one-shot stages the process thread runs exactly once, never inside a
// worker (spec.md §4.8).
func workerStageSpecs(cfg *config.Config) []script.StageSpec {
	var specs []script.StageSpec
	for i, s := range cfg.Processing.Stages {
		kind := script.KindTransform
		if s.Kind == "filter" {
			kind = script.KindFilter
		}
		specs = append(specs, script.StageSpec{
			Name:   fmt.Sprintf("stage-%d-%s", i, s.Kind),
			Kind:   kind,
			Source: s.Source,
		})
	}
	return specs
}

// Run pulls batches from in until it is closed or ctx is cancelled,
// sending one Result per Batch to out, preserving the batch's id. A
// strict-mode failure returns immediately (spec.md §4.8's "strict-mode
// failure inside a worker propagates as a fatal control message that
// tears down the pipeline" — the caller is expected to cancel its
// sibling workers' context on a non-nil return).
func (w *Worker) Run(ctx context.Context, in <-chan batch.Batch, out chan<- Result) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-in:
			if !ok {
				return nil
			}
			res, err := w.processBatch(b)
			if err != nil {
				return err
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// processBatch runs steps 1-2 of spec.md §4.8's worker loop over one
// batch, preserving the chunks' order in the returned Result.
func (w *Worker) processBatch(b batch.Batch) (Result, error) {
	if b.HeaderLine != "" {
		if ha, ok := w.p.(parser.HeaderAware); ok {
			if err := ha.SetHeader(b.HeaderLine); err != nil {
				w.acc.Count(counterParseErrors, 1)
				w.parseErrors++
				if w.cfg.Processing.Strict {
					return Result{}, err
				}
				w.logger.Warn("failed to set header", zap.String("source", b.Source), zap.Error(err))
			}
		}
	}

	result := Result{ID: b.ID, Lines: []Line{}}
	for _, c := range b.Chunks {
		lines, err := w.processChunk(c)
		if err != nil {
			return Result{}, err
		}
		result.Lines = append(result.Lines, lines...)
	}
	return result, nil
}

func (w *Worker) processChunk(c batch.Chunk) ([]Line, error) {
	if w.autoDetect && w.p == nil {
		p, err := parser.DetectAndNew(c.Raw, parserOptions(w.cfg))
		if err != nil {
			return nil, err
		}
		w.p = p
	}

	ev, err := w.p.Parse(c.Raw)
	if err != nil {
		w.acc.Count(counterParseErrors, 1)
		w.parseErrors++
		if w.cfg.Processing.Strict {
			return nil, err
		}
		w.logger.Warn("failed to parse chunk", zap.String("source", c.Source), zap.Int("line", c.Line), zap.Error(err))
		return nil, nil
	}
	w.acc.Count(counterEventsCreated, 1)

	if ts, ok := ev.Timestamp(w.cfg.Input.InputTZ); ok {
		if !withinTimeBounds(w.cfg, ts) {
			return nil, nil
		}
	}
	if !withinLevelBounds(w.cfg, ev) {
		return nil, nil
	}

	out, err := w.graph.Run(ev)
	if err != nil {
		return nil, err // *stage.FatalError in strict mode; resilient mode never errors here
	}
	defer pools.Pools.ReturnEventSlice(out)

	var lines []Line
	for _, e := range out {
		event.Project(e, w.cfg.Output.Keys, w.cfg.Output.ExcludeKeys, w.cfg.Output.Core)
		text, emit, err := w.fm.Format(e)
		if err != nil {
			return nil, err
		}
		if !emit {
			continue
		}
		lines = append(lines, Line{Text: text, Source: c.Source, LineNo: c.Line})
	}
	return lines, nil
}

func withinTimeBounds(cfg *config.Config, ts time.Time) bool {
	if cfg.Input.Since != nil && ts.Before(*cfg.Input.Since) {
		return false
	}
	if cfg.Input.Until != nil && ts.After(*cfg.Input.Until) {
		return false
	}
	return true
}

func withinLevelBounds(cfg *config.Config, ev *event.Event) bool {
	if len(cfg.Processing.Levels) == 0 && len(cfg.Processing.ExcludeLevels) == 0 {
		return true
	}
	level, ok := ev.Level()
	if !ok {
		return len(cfg.Processing.Levels) == 0
	}
	if len(cfg.Processing.Levels) > 0 && !containsFold(cfg.Processing.Levels, level) {
		return false
	}
	if containsFold(cfg.Processing.ExcludeLevels, level) {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
