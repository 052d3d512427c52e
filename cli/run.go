package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kelora-go/kelora/batch"
	"github.com/kelora-go/kelora/charts"
	"github.com/kelora-go/kelora/chunker"
	"github.com/kelora-go/kelora/config"
	"github.com/kelora-go/kelora/dashboard"
	"github.com/kelora-go/kelora/format"
	"github.com/kelora-go/kelora/metrics"
	"github.com/kelora-go/kelora/runner"
	"github.com/kelora-go/kelora/script"
	"github.com/kelora-go/kelora/sink"
	"github.com/kelora-go/kelora/worker"
)

const (
	counterParseErrors   = metrics.ReservedPrefix + "parse_errors"
	counterEventsCreated = metrics.ReservedPrefix + "events_created"
)

// buildChunker mirrors runner.buildChunker: cli needs its own chunker
// instance to hand to the batcher, and runner's helper is unexported
// (the same deliberate, documented duplication batch.Reader already
// uses for the filtering helpers it shares in shape, not in code, with
// runner.runOneSource).
func buildChunker(cfg *config.Config) (chunker.Chunker, error) {
	if cfg.Input.Multiline == "boundary" {
		return chunker.NewBoundary(cfg.Input.SectionStart, cfg.Input.SectionEnd)
	}
	var contChar byte
	if cfg.Input.ContinuationChar != "" {
		contChar = cfg.Input.ContinuationChar[0]
	}
	return chunker.New(cfg.Input.Multiline, cfg.Input.MultilinePattern, cfg.Input.IndentStyle, contChar)
}

// runAction is the single command's entry point: build a config,
// dispatch to the sequential or parallel engine, then report metrics
// (spec.md §7's error taxonomy maps to urfave/cli's ExitCoder via
// cli.Exit — configuration errors get exit 2, everything else exit 1;
// signals are handled separately below).
func runAction(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	ctx, cancel, exitCode := withSignalHandling(context.Background())
	defer cancel()

	var snap *metrics.Snapshot
	if cfg.Performance.Parallel {
		snap, err = runParallel(ctx, cfg, os.Stdout, logger)
	} else {
		snap, err = runSequential(ctx, cfg, os.Stdout, logger)
	}
	if err != nil {
		if code := exitCode(); code != 0 {
			return cli.Exit(err.Error(), code)
		}
		if isBrokenPipe(err) {
			return cli.Exit(err.Error(), 141)
		}
		return cli.Exit(err.Error(), 1)
	}
	if code := exitCode(); code != 0 {
		return cli.Exit("interrupted", code)
	}

	return reportMetrics(cfg, snap)
}

// isBrokenPipe reports whether err (or one it wraps) is the write side
// of a closed pipe — spec.md §6/§7's dedicated exit code 141, distinct
// from the generic error exit code 1.
func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}

// withSignalHandling returns a context cancelled on SIGINT/SIGTERM, plus
// a function reporting the exit code spec.md §6 assigns the signal that
// fired (130 for interrupt, 143 for termination), 0 if none fired yet.
func withSignalHandling(parent context.Context) (context.Context, context.CancelFunc, func() int) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var mu sync.Mutex
	code := 0
	go func() {
		select {
		case sig := <-sigCh:
			mu.Lock()
			if sig == syscall.SIGTERM {
				code = 143
			} else {
				code = 130
			}
			mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}, func() int {
		mu.Lock()
		defer mu.Unlock()
		return code
	}
}

func runSequential(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) (*metrics.Snapshot, error) {
	r, err := runner.New(cfg, out, logger)
	if err != nil {
		return nil, err
	}
	result, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}
	warnOnHighParseErrorRate(cfg, logger, result.LinesRead, result.ParseErrors)
	return result.Snapshot, nil
}

// runParallel assembles the reader -> batcher -> worker pool -> sink
// pipeline spec.md §5 describes. The begin stage (if any) runs once,
// here, before any worker starts; its conf map result is handed to every
// worker unchanged. The end stage runs once here too, after every
// worker has finished and every accumulator has been merged.
func runParallel(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) (*metrics.Snapshot, error) {
	if err := writeHeaderIfNeeded(cfg, out); err != nil {
		return nil, err
	}

	conf, err := runBeginStage(cfg)
	if err != nil {
		return nil, err
	}

	rd, err := batch.NewReader(cfg)
	if err != nil {
		return nil, err
	}
	ck, err := buildChunker(cfg)
	if err != nil {
		return nil, err
	}
	batcher := batch.New(ck, cfg.Performance.BatchSize, cfg.Performance.BatchTimeout)

	threads := cfg.Performance.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	workers := make([]*worker.Worker, threads)
	for i := range workers {
		w, err := worker.New(cfg, conf, logger)
		if err != nil {
			return nil, err
		}
		workers[i] = w
	}

	runCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	lines := make(chan batch.Line, threads*2)
	batches := make(chan batch.Batch, threads*2)
	results := make(chan worker.Result, threads*2)

	sk := sink.New(out, cfg.Output.GapThreshold, cfg.Performance.Unordered, cfg.Processing.Take)

	if cfg.Output.Dashboard {
		d := dashboard.New(func() *metrics.Snapshot {
			accs := make([]*metrics.Accumulator, len(workers))
			for i, w := range workers {
				accs[i] = w.Accumulator()
			}
			return metrics.Merge(accs...)
		})
		go d.Run(runCtx)
	}

	var wg sync.WaitGroup
	var readerErr, batcherErr error
	var firstWorkerErr error
	var workerErrOnce sync.Once

	wg.Add(1)
	go func() {
		defer wg.Done()
		readerErr = rd.Run(runCtx, lines)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		batcherErr = batcher.Run(runCtx, lines, batches)
	}()

	var workerWG sync.WaitGroup
	for _, w := range workers {
		workerWG.Add(1)
		go func(w *worker.Worker) {
			defer workerWG.Done()
			if err := w.Run(runCtx, batches, results); err != nil {
				workerErrOnce.Do(func() { firstWorkerErr = err })
				cancelWorkers()
			}
		}(w)
	}
	go func() {
		workerWG.Wait()
		close(results)
	}()

	var sinkErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		for res := range results {
			done, err := sk.Accept(res)
			if err != nil {
				sinkErr = err
				cancelWorkers()
				continue
			}
			if done {
				cancelWorkers()
			}
		}
		sk.Close()
	}()

	wg.Wait()

	if cfg.Processing.Strict {
		if readerErr != nil {
			return nil, readerErr
		}
		if batcherErr != nil {
			return nil, batcherErr
		}
		if firstWorkerErr != nil {
			return nil, firstWorkerErr
		}
	}
	if sinkErr != nil {
		return nil, sinkErr
	}

	accs := make([]*metrics.Accumulator, len(workers))
	var parseErrors int64
	for i, w := range workers {
		accs[i] = w.Accumulator()
		parseErrors += w.ParseErrors()
	}
	merged := metrics.MergeAccumulators(accs...)

	if err := runEndStage(cfg, conf, merged); err != nil {
		return nil, err
	}

	linesRead := int(merged.CounterValue(counterEventsCreated) + parseErrors)
	warnOnHighParseErrorRate(cfg, logger, linesRead, parseErrors)
	return metrics.Merge(accs...), nil
}

// writeHeaderIfNeeded writes the CSV/TSV header row once, up front, for
// parallel mode. config.Validate requires --keys whenever --parallel
// combines with --with-header and a delimited output format, so the
// column set is always fixed before any worker starts — unlike
// sequential mode, no worker ever needs to derive it from the first
// event it happens to see (spec.md §8's sequential/parallel parity).
func writeHeaderIfNeeded(cfg *config.Config, out io.Writer) error {
	fm, err := format.New(cfg.Output.Format, format.Options{
		Color:      cfg.Output.Color,
		Columns:    cfg.Output.Keys,
		WithHeader: cfg.Output.WithHeader,
	})
	if err != nil {
		return err
	}
	he, ok := fm.(format.HeaderEmitter)
	if !ok {
		return nil
	}
	line, emit := he.Header()
	if !emit {
		return nil
	}
	_, err = fmt.Fprintln(out, line)
	return err
}

// runBeginStage compiles and runs only the begin stage (if configured),
// in the process thread, returning the conf map it produced (spec.md
// §4.3/§9, SPEC_FULL §3.3). A run with no begin stage returns an empty,
// frozen map.
func runBeginStage(cfg *config.Config) (map[string]any, error) {
	if cfg.Processing.Begin == "" {
		return map[string]any{}, nil
	}
	specs := []script.StageSpec{{Name: "begin", Kind: script.KindBegin, Source: cfg.Processing.Begin}}
	engine, err := script.NewEngine(specs, metrics.New())
	if err != nil {
		return nil, err
	}
	if err := engine.RunBegin(); err != nil {
		return nil, err
	}
	return engine.Conf(), nil
}

// runEndStage compiles and runs only the end stage (if configured),
// against the cross-worker merged metrics accumulator, once every
// worker has finished.
func runEndStage(cfg *config.Config, conf map[string]any, merged *metrics.Accumulator) error {
	if cfg.Processing.End == "" {
		return nil
	}
	specs := []script.StageSpec{{Name: "end", Kind: script.KindEnd, Source: cfg.Processing.End}}
	engine, err := script.NewEngine(specs, merged)
	if err != nil {
		return err
	}
	engine.SetConf(conf)
	return engine.RunEnd()
}

// warnOnHighParseErrorRate implements spec.md §8's boundary behaviour:
// "parse error rate exceeding threshold when format was auto-detected to
// a non-line format: emit a diagnostic suggesting -f line".
func warnOnHighParseErrorRate(cfg *config.Config, logger *zap.Logger, linesRead int, parseErrors int64) {
	if cfg.Input.Format != "" || linesRead == 0 {
		return
	}
	if float64(parseErrors)/float64(linesRead) > 0.5 {
		logger.Warn("high parse error rate with auto-detected format; consider -f line",
			zap.Int("lines_read", linesRead), zap.Int64("parse_errors", parseErrors))
	}
}

func reportMetrics(cfg *config.Config, snap *metrics.Snapshot) error {
	if snap == nil {
		return nil
	}
	if cfg.Output.MetricsFile != "" {
		if err := writeMetricsFile(cfg.Output.MetricsFile, snap); err != nil {
			return err
		}
	}
	if cfg.Output.MetricsChart != "" {
		if err := charts.Render(snap, cfg.Output.MetricsChart); err != nil {
			return err
		}
	}
	return nil
}

func writeMetricsFile(path string, snap *metrics.Snapshot) error {
	doc := map[string]any{}
	for k, v := range snap.Counters {
		doc[k] = v
	}
	for k, v := range snap.Sums {
		doc[k] = v
	}
	for k, v := range snap.Mins {
		doc[k] = v
	}
	for k, v := range snap.Maxs {
		doc[k] = v
	}
	for k, v := range snap.Avgs {
		doc[k] = v
	}
	for k, v := range snap.Uniques {
		doc[k] = v
	}
	for k, v := range snap.Buckets {
		doc[k] = v
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing metrics file %s: %w", path, err)
	}
	return nil
}
