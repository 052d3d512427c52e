// Package runner drives the single-threaded pipeline spec.md §4.6
// describes: reader -> chunker -> parser -> stage graph -> formatter,
// honouring skip/ignore/keep/head/section bounds, header reinitialisation
// at file boundaries, and the take limit. It is the sequential half of
// the engine; batch/worker/sink implement the parallel half on top of
// the same parser/chunker/stage/format building blocks, and are expected
// to produce byte-identical output for the same input (spec.md §8).
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kelora-go/kelora/chunker"
	"github.com/kelora-go/kelora/config"
	"github.com/kelora-go/kelora/decompress"
	"github.com/kelora-go/kelora/event"
	"github.com/kelora-go/kelora/format"
	"github.com/kelora-go/kelora/metrics"
	"github.com/kelora-go/kelora/parser"
	"github.com/kelora-go/kelora/pools"
	"github.com/kelora-go/kelora/script"
	"github.com/kelora-go/kelora/stage"
	"github.com/kelora-go/kelora/suppressor"
	"github.com/kelora-go/kelora/window"
)

const (
	counterParseErrors   = metrics.ReservedPrefix + "parse_errors"
	counterEventsCreated = metrics.ReservedPrefix + "events_created"
)

// Result summarises a completed run for the caller (typically the cli
// package) to report to the user.
type Result struct {
	Snapshot    *metrics.Snapshot
	LinesRead   int
	EventsOut   int
	ParseErrors int64
}

// Runner owns every long-lived piece of the sequential pipeline.
type Runner struct {
	cfg    *config.Config
	out    io.Writer
	logger *zap.Logger

	p          parser.Parser // nil until the first chunk resolves it, if auto-detecting
	autoDetect bool
	ch         chunker.Chunker
	graph      *stage.Graph
	engine     *script.Engine
	acc        *metrics.Accumulator
	fm         format.Formatter
	gap        *format.GapMarker
	win        *window.Window
	suppr      *suppressor.Suppressor

	keepRe       *regexp.Regexp
	ignoreRe     *regexp.Regexp
	sectionStart *regexp.Regexp
	sectionEnd   *regexp.Regexp

	skipRemaining int
	headCount     int
	sectionActive bool

	headerWritten bool // csv/tsv: the output header row has been written

	currentSource string
	lineInRun     int
	emitted       int
	parseErrors   int64
}

// New builds a Runner from a resolved configuration. Building the
// engine/chunker/formatter eagerly means a bad script or an unknown
// format name fails before any input is read.
func New(cfg *config.Config, out io.Writer, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	acc := metrics.New()

	specs := buildStageSpecs(cfg)
	engine, err := script.NewEngine(specs, acc)
	if err != nil {
		return nil, err
	}

	var win *window.Window
	if cfg.Processing.Window > 0 {
		win = window.New(5*time.Minute, cfg.Processing.Window)
		engine.SetWindow(adaptWindow{win})
	}

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

	ck, err := buildChunker(cfg)
	if err != nil {
		return nil, err
	}

	fm, err := format.New(cfg.Output.Format, format.Options{
		Color:      cfg.Output.Color,
		Columns:    cfg.Output.Keys,
		WithHeader: cfg.Output.WithHeader,
	})
	if err != nil {
		return nil, err
	}

	sectionStartRe, err := compileOptional(cfg.Input.SectionStart)
	if err != nil {
		return nil, err
	}
	sectionEndRe, err := compileOptional(cfg.Input.SectionEnd)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:           cfg,
		out:           out,
		logger:        logger,
		p:             p,
		autoDetect:    autoDetect,
		ch:            ck,
		graph:         graph,
		engine:        engine,
		acc:           acc,
		fm:            fm,
		gap:           format.NewGapMarker(cfg.Output.GapThreshold),
		win:           win,
		suppr:         suppressor.New(),
		keepRe:        cfg.Input.KeepPattern,
		ignoreRe:      cfg.Input.IgnorePattern,
		sectionStart:  sectionStartRe,
		sectionEnd:    sectionEndRe,
		skipRemaining: cfg.Input.SkipLines,
		sectionActive: sectionStartRe == nil, // no start marker means "always in section"
	}, nil
}

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

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

func parserOptions(cfg *config.Config) parser.Options {
	return parser.Options{
		Separator: cfg.Input.Separator,
		HasHeader: cfg.Input.HasHeader,
		Pattern:   cfg.Input.Pattern,
	}
}

func buildStageSpecs(cfg *config.Config) []script.StageSpec {
	var specs []script.StageSpec
	if cfg.Processing.Begin != "" {
		specs = append(specs, script.StageSpec{Name: "begin", Kind: script.KindBegin, Source: cfg.Processing.Begin})
	}
	if cfg.Processing.End != "" {
		specs = append(specs, script.StageSpec{Name: "end", Kind: script.KindEnd, Source: cfg.Processing.End})
	}
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

// adaptWindow satisfies script.WindowHandle over a *window.Window,
// translating window.Entry to script.WindowEntry so the two packages
// stay independent of one another.
type adaptWindow struct{ w *window.Window }

func (a adaptWindow) Entries() []script.WindowEntry {
	entries := a.w.Entries()
	out := make([]script.WindowEntry, len(entries))
	for i, e := range entries {
		out[i] = script.WindowEntry{Raw: e.Raw, Time: e.Time}
	}
	return out
}

// Run executes the full sequential loop over the configured input files
// (or stdin, if none are given). ctx cancellation is checked once per
// input line, the same "control channel polled at each loop head"
// contract the parallel pipeline's components share (spec.md §5).
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.engine.RunBegin(); err != nil {
		return nil, err
	}

	sources := r.cfg.Input.Files
	if len(sources) == 0 {
		sources = []string{""} // "" selects stdin
	}

	takeExhausted := false
	for _, src := range sources {
		if takeExhausted {
			break
		}
		done, err := r.runOneSource(ctx, src)
		takeExhausted = done
		if err != nil {
			if r.cfg.Processing.Strict {
				return nil, err
			}
			r.logger.Error("reading source failed, continuing with next file",
				zap.String("source", displayName(src)), zap.Error(err))
		}
	}

	if chunk, ok := r.ch.Flush(); ok {
		meta := event.Metadata{Source: r.currentSource, Line: r.lineInRun}
		if err := r.handleChunkAt(chunk, meta); err != nil && r.cfg.Processing.Strict {
			return nil, err
		}
	}

	if err := r.engine.RunEnd(); err != nil {
		return nil, err
	}

	return &Result{
		Snapshot:    metrics.Merge(r.acc),
		LinesRead:   r.lineInRun,
		EventsOut:   r.emitted,
		ParseErrors: r.parseErrors,
	}, nil
}

func displayName(path string) string {
	if path == "" {
		return "stdin"
	}
	return path
}

func (r *Runner) openSource(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// runOneSource streams one file (or stdin) through steps 1-7 of the
// sequential loop. It returns done=true once the take limit has been
// reached, signalling Run to stop opening further sources.
func (r *Runner) runOneSource(ctx context.Context, path string) (done bool, err error) {
	f, err := r.openSource(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", displayName(path), err)
	}
	defer f.Close()

	rd, err := decompress.Wrap(f)
	if err != nil {
		return false, fmt.Errorf("decompress %s: %w", displayName(path), err)
	}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	r.currentSource = displayName(path)
	fileLine := 0
	needsHeader := r.headerAwareParser()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		line := scanner.Text()
		fileLine++
		r.lineInRun++

		if r.skipRemaining > 0 {
			r.skipRemaining--
			continue
		}

		if r.sectionStart != nil && !r.sectionActive {
			if !r.sectionStart.MatchString(line) {
				continue
			}
			r.sectionActive = true
		}
		if r.sectionActive && r.sectionEnd != nil && r.sectionEnd.MatchString(line) {
			r.sectionActive = false
			continue
		}

		if r.keepRe != nil && !r.keepRe.MatchString(line) {
			continue
		}
		if r.ignoreRe != nil && r.ignoreRe.MatchString(line) {
			continue
		}

		if r.cfg.Input.Head > 0 && r.headCount >= r.cfg.Input.Head {
			return true, scanner.Err()
		}
		r.headCount++

		if needsHeader {
			// Every file boundary gets a fresh header line, independent
			// of whether this parser instance has already seen one for
			// an earlier file (spec.md §4.6 step 3).
			if ha, ok := r.p.(parser.HeaderAware); ok {
				if err := ha.SetHeader(line); err != nil {
					r.acc.Count(counterParseErrors, 1)
					r.parseErrors++
					if r.cfg.Processing.Strict {
						return false, err
					}
					if !r.suppr.Should(r.currentSource + ":header") {
						r.logger.Warn("failed to set header",
							zap.String("source", r.currentSource), zap.Error(err))
					}
				}
			}
			needsHeader = false
			continue
		}

		chunk, ok := r.ch.Feed(line)
		if !ok {
			continue
		}

		meta := event.Metadata{Source: r.currentSource, Line: fileLine - chunker.LineSpan(chunk) + 1}
		if err := r.handleChunkAt(chunk, meta); err != nil && r.cfg.Processing.Strict {
			return false, err
		}

		if r.takeLimitReached() {
			return true, scanner.Err()
		}
	}
	return false, scanner.Err()
}

// headerAwareParser reports whether the current parser needs a header
// line re-read at this file boundary. Auto-detected parsers (r.p == nil
// until the first chunk resolves one) never need this, since a format
// auto-detected from data can't have been HeaderAware in the first
// place without the caller configuring a fixed format.
func (r *Runner) headerAwareParser() bool {
	if r.p == nil {
		return false
	}
	_, ok := r.p.(parser.HeaderAware)
	return ok && r.cfg.Input.HasHeader
}

// handleChunkAt runs steps 5-7 of the sequential loop for one chunk:
// parse, attach metadata, run the stage graph, project, format, write.
func (r *Runner) handleChunkAt(chunk string, meta event.Metadata) error {
	if r.autoDetect && r.p == nil {
		p, err := parser.DetectAndNew(chunk, parserOptions(r.cfg))
		if err != nil {
			return err
		}
		r.p = p
	}

	ev, err := r.p.Parse(chunk)
	if err != nil {
		r.acc.Count(counterParseErrors, 1)
		r.parseErrors++
		if r.cfg.Processing.Strict {
			return err
		}
		if !r.suppr.Should(meta.Source + ":parse") {
			r.logger.Warn("failed to parse chunk",
				zap.String("source", meta.Source), zap.Int("line", meta.Line), zap.Error(err))
		}
		return nil
	}
	r.acc.Count(counterEventsCreated, 1)
	meta.HasParsed = true
	if ts, ok := ev.Timestamp(r.cfg.Input.InputTZ); ok {
		meta.ParsedAt = ts
		if !r.withinTimeBounds(ts) {
			return nil
		}
	}
	if !r.withinLevelBounds(ev) {
		return nil
	}

	if r.win != nil {
		r.win.Update([]window.Entry{{Raw: ev.Raw, Time: windowTime(meta)}})
	}

	out, err := r.graph.Run(ev)
	if err != nil {
		return err // *stage.FatalError in strict mode; resilient mode never errors here
	}
	defer pools.Pools.ReturnEventSlice(out)

	for _, e := range out {
		if r.takeLimitReached() {
			break
		}
		event.Project(e, r.cfg.Output.Keys, r.cfg.Output.ExcludeKeys, r.cfg.Output.Core)
		if err := r.writeEvent(e, meta); err != nil {
			return err
		}
	}
	return nil
}

func windowTime(meta event.Metadata) time.Time {
	if !meta.ParsedAt.IsZero() {
		return meta.ParsedAt
	}
	return time.Now()
}

func (r *Runner) withinTimeBounds(ts time.Time) bool {
	if r.cfg.Input.Since != nil && ts.Before(*r.cfg.Input.Since) {
		return false
	}
	if r.cfg.Input.Until != nil && ts.After(*r.cfg.Input.Until) {
		return false
	}
	return true
}

func (r *Runner) withinLevelBounds(ev *event.Event) bool {
	if len(r.cfg.Processing.Levels) == 0 && len(r.cfg.Processing.ExcludeLevels) == 0 {
		return true
	}
	level, ok := ev.Level()
	if !ok {
		return len(r.cfg.Processing.Levels) == 0
	}
	if len(r.cfg.Processing.Levels) > 0 && !containsFold(r.cfg.Processing.Levels, level) {
		return false
	}
	if containsFold(r.cfg.Processing.ExcludeLevels, level) {
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

func (r *Runner) writeEvent(ev *event.Event, meta event.Metadata) error {
	if marker, ok := r.gap.Observe(meta); ok {
		if _, err := fmt.Fprintln(r.out, marker); err != nil {
			return err
		}
	}

	if he, ok := r.fm.(format.HeaderEmitter); ok && !r.headerWritten {
		if setter, ok := r.fm.(interface{ SetColumnsFromFirst(*event.Event) }); ok {
			setter.SetColumnsFromFirst(ev)
		}
		r.headerWritten = true
		if line, emit := he.Header(); emit {
			if _, err := fmt.Fprintln(r.out, line); err != nil {
				return err
			}
		}
	}

	line, emit, err := r.fm.Format(ev)
	if err != nil {
		return err
	}
	if !emit {
		return nil
	}
	if _, err := fmt.Fprintln(r.out, line); err != nil {
		return err
	}
	r.emitted++
	return nil
}

func (r *Runner) takeLimitReached() bool {
	t := r.cfg.Processing.Take
	return t != nil && r.emitted >= *t
}
