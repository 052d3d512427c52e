// Package config builds the immutable Config record spec.md §3/§6
// describes: input settings, processing settings, output settings, and
// performance settings, threaded by reference through the runner/
// worker/sink.
//
// Grounded on config/config.go's decode-into-map[string]any-then-
// manually-typed-assign pattern: `toml.Decode` into a raw map, then one
// parseXConfig helper per section rather than decoding straight into
// the typed struct, so a malformed or renamed field degrades to its
// zero value instead of a hard decode error. The `toml:",remain"` used
// there for per-trie sections is reused here for a `[scripts]` table of
// named script bodies, loaded into Config.Scripts. No stage option looks
// those names up: --filter and --exec always take inline source.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Input groups the settings that govern how raw bytes become chunks.
type Input struct {
	Format           string // parser name, or "" for auto-detect
	Files            []string
	FileOrder        string // "as-given", "name", "mtime"; not read by the runner or batch.Reader, files are read in the order given
	SkipLines        int
	KeepPattern      *regexp.Regexp
	IgnorePattern    *regexp.Regexp
	Head             int
	Multiline        string // chunker strategy name
	MultilinePattern string // timestamp/start/end/boundary regex
	IndentStyle      string // "spaces", "tabs", "mixed" (indent strategy only)
	ContinuationChar string // backslash strategy's continuation byte, first rune used
	SectionStart     string
	SectionEnd       string
	Since            *time.Time
	Until            *time.Time
	InputTZ          *time.Location

	Separator rune   // csv/tsv field separator; 0 means the format default
	HasHeader bool   // csv/tsv: first data row is a header, not a record
	Pattern   string // fixed-column layout string for the "fixed" format
}

// StageSource is one ordered pipeline stage as configured (spec.md §6:
// "filter / exec / exec-file — append a stage, ordering preserved
// across the three options").
type StageSource struct {
	Kind   string // "filter" or "exec"
	Source string
}

// Processing groups the stage-graph and event-selection settings.
type Processing struct {
	Stages        []StageSource
	Begin         string
	End           string
	Strict        bool
	Take          *int // nil means unlimited; Some(0) exhausts after the minimum input
	Window        int
	Levels        []string
	ExcludeLevels []string
}

// Output groups the formatter and projection settings.
type Output struct {
	Format        string
	Keys          []string
	ExcludeKeys   []string
	Core          bool
	Color         bool
	GapThreshold  int
	WithHeader    bool // csv/tsv output: emit a header row
	MetricsFile   string
	MetricsChart  string
	Dashboard     bool
}

// Performance groups the concurrency knobs.
type Performance struct {
	Parallel      bool
	Threads       int
	BatchSize     int
	BatchTimeout  time.Duration
	Unordered     bool
}

// Config is the complete, immutable configuration for one run.
type Config struct {
	Input       Input
	Processing  Processing
	Output      Output
	Performance Performance

	// Scripts holds named script bodies loaded from a config file's
	// [scripts] table. Nothing resolves --exec/--filter values against it.
	Scripts map[string]string
}

// rawFile mirrors the top-level TOML tables before type assignment;
// field names match the TOML keys exactly, as config.go's raw maps do.
type rawFile struct {
	Input       map[string]any `toml:"input"`
	Processing  map[string]any `toml:"processing"`
	Output      map[string]any `toml:"output"`
	Performance map[string]any `toml:"performance"`
	Scripts     map[string]string `toml:",remain"`
}

// LoadConfig reads a TOML config file and returns the sections it sets;
// callers overlay CLI flags on top (flags win, matching spec.md's
// "config files are read at start-up only" note).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw rawFile
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{Scripts: raw.Scripts}
	if raw.Input != nil {
		if err := parseInput(raw.Input, &cfg.Input); err != nil {
			return nil, err
		}
	}
	if raw.Processing != nil {
		if err := parseProcessing(raw.Processing, &cfg.Processing); err != nil {
			return nil, err
		}
	}
	if raw.Output != nil {
		parseOutput(raw.Output, &cfg.Output)
	}
	if raw.Performance != nil {
		if err := parsePerformance(raw.Performance, &cfg.Performance); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func parseInput(m map[string]any, in *Input) error {
	if v, ok := m["format"].(string); ok {
		in.Format = v
	}
	if v, ok := m["fileOrder"].(string); ok {
		in.FileOrder = v
	}
	if v, ok := m["skipLines"].(int64); ok {
		in.SkipLines = int(v)
	}
	if v, ok := m["head"].(int64); ok {
		in.Head = int(v)
	}
	if v, ok := m["multiline"].(string); ok {
		in.Multiline = v
	}
	if v, ok := m["multilinePattern"].(string); ok {
		in.MultilinePattern = v
	}
	if v, ok := m["indentStyle"].(string); ok {
		in.IndentStyle = v
	}
	if v, ok := m["continuationChar"].(string); ok {
		in.ContinuationChar = v
	}
	if v, ok := m["sectionStart"].(string); ok {
		in.SectionStart = v
	}
	if v, ok := m["sectionEnd"].(string); ok {
		in.SectionEnd = v
	}
	if v, ok := m["keepPattern"].(string); ok && v != "" {
		re, err := regexp.Compile(v)
		if err != nil {
			return fmt.Errorf("invalid keepPattern %q: %w", v, err)
		}
		in.KeepPattern = re
	}
	if v, ok := m["ignorePattern"].(string); ok && v != "" {
		re, err := regexp.Compile(v)
		if err != nil {
			return fmt.Errorf("invalid ignorePattern %q: %w", v, err)
		}
		in.IgnorePattern = re
	}
	if v, ok := m["files"].([]any); ok {
		for _, item := range v {
			if s, ok := item.(string); ok {
				in.Files = append(in.Files, s)
			}
		}
	}
	if v, ok := m["since"].(string); ok && v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid since %q: %w", v, err)
		}
		in.Since = &t
	}
	if v, ok := m["until"].(string); ok && v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid until %q: %w", v, err)
		}
		in.Until = &t
	}
	if v, ok := m["separator"].(string); ok && v != "" {
		in.Separator = []rune(v)[0]
	}
	if v, ok := m["hasHeader"].(bool); ok {
		in.HasHeader = v
	}
	if v, ok := m["pattern"].(string); ok {
		in.Pattern = v
	}
	if v, ok := m["inputTZ"].(string); ok && v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return fmt.Errorf("invalid inputTZ %q: %w", v, err)
		}
		in.InputTZ = loc
	}
	return nil
}

func parseProcessing(m map[string]any, p *Processing) error {
	if v, ok := m["begin"].(string); ok {
		p.Begin = v
	}
	if v, ok := m["end"].(string); ok {
		p.End = v
	}
	if v, ok := m["strict"].(bool); ok {
		p.Strict = v
	}
	if v, ok := m["take"].(int64); ok {
		take := int(v)
		p.Take = &take
	}
	if v, ok := m["window"].(int64); ok {
		p.Window = int(v)
	}
	if v, ok := m["levels"].([]any); ok {
		p.Levels = toStrings(v)
	}
	if v, ok := m["excludeLevels"].([]any); ok {
		p.ExcludeLevels = toStrings(v)
	}
	for _, entry := range toMapSlice(m["stages"]) {
		kind, _ := entry["kind"].(string)
		source, _ := entry["source"].(string)
		if kind == "" || source == "" {
			return fmt.Errorf("each [[processing.stages]] entry needs kind and source")
		}
		p.Stages = append(p.Stages, StageSource{Kind: kind, Source: source})
	}
	return nil
}

// toMapSlice normalizes an array-of-tables value decoded by
// BurntSushi/toml into interface{}, which surfaces as []map[string]any
// (not []any) when the target field itself is a bare map[string]any.
func toMapSlice(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func parseOutput(m map[string]any, o *Output) {
	if v, ok := m["format"].(string); ok {
		o.Format = v
	}
	if v, ok := m["color"].(bool); ok {
		o.Color = v
	}
	if v, ok := m["core"].(bool); ok {
		o.Core = v
	}
	if v, ok := m["gapThreshold"].(int64); ok {
		o.GapThreshold = int(v)
	}
	if v, ok := m["withHeader"].(bool); ok {
		o.WithHeader = v
	}
	if v, ok := m["metricsFile"].(string); ok {
		o.MetricsFile = v
	}
	if v, ok := m["metricsChart"].(string); ok {
		o.MetricsChart = v
	}
	if v, ok := m["keys"].([]any); ok {
		o.Keys = toStrings(v)
	}
	if v, ok := m["excludeKeys"].([]any); ok {
		o.ExcludeKeys = toStrings(v)
	}
}

func parsePerformance(m map[string]any, perf *Performance) error {
	if v, ok := m["parallel"].(bool); ok {
		perf.Parallel = v
	}
	if v, ok := m["threads"].(int64); ok {
		perf.Threads = int(v)
	}
	if v, ok := m["batchSize"].(int64); ok {
		perf.BatchSize = int(v)
	}
	if v, ok := m["unordered"].(bool); ok {
		perf.Unordered = v
	}
	if v, ok := m["batchTimeout"].(string); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid batchTimeout %q: %w", v, err)
		}
		perf.BatchTimeout = d
	}
	return nil
}

func toStrings(v []any) []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks cross-field constraints config.go's ValidateLive
// checks for its domain; here: the window/parallel incompatibility
// DESIGN.md's Open Question section resolves, a negative thread count,
// and a parallel csv/tsv output header without --keys.
func (c *Config) Validate() error {
	if c.Processing.Window > 0 && c.Performance.Parallel {
		return fmt.Errorf("--window is sequential-mode only; it cannot be combined with --parallel")
	}
	if c.Performance.Parallel && c.Performance.Threads < 0 {
		return fmt.Errorf("threads must be >= 0")
	}
	if c.Performance.Parallel && c.Output.WithHeader && isDelimited(c.Output.Format) && len(c.Output.Keys) == 0 {
		return fmt.Errorf("--with-header with --parallel and --output %s requires --keys, since each worker would otherwise derive its own column order from whichever event it happens to see first", c.Output.Format)
	}
	return nil
}

func isDelimited(format string) bool {
	return format == "csv" || format == "tsv"
}
