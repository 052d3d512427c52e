package cli

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/kelora-go/kelora/config"
)

// readScriptFile loads an --exec-file body from disk.
func readScriptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading --exec-file %s: %w", path, err)
	}
	return string(data), nil
}

// buildConfig assembles a config.Config from c, either by loading a
// TOML file (--config, restricted to the allowed flag set) or directly
// from the flag values — the teacher's Static() does the equivalent
// inline in cli.go rather than through a config-package constructor, so
// config itself stays free of any urfave/cli import.
func buildConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		if err := validateConfigModeFlags(c, []string{"dashboard", "metrics-chart", "metrics-file"}); err != nil {
			return nil, err
		}
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		if v := c.String("metrics-file"); v != "" {
			cfg.Output.MetricsFile = v
		}
		if v := c.String("metrics-chart"); v != "" {
			cfg.Output.MetricsChart = v
		}
		if c.IsSet("dashboard") {
			cfg.Output.Dashboard = c.Bool("dashboard")
		}
		return cfg, cfg.Validate()
	}

	cfg := &config.Config{
		Input: config.Input{
			Format:           c.String("format"),
			Files:            c.Args().Slice(),
			FileOrder:        c.String("file-order"),
			SkipLines:        c.Int("skip-lines"),
			Head:             c.Int("head"),
			Multiline:        c.String("multiline"),
			MultilinePattern: c.String("multiline-pattern"),
			IndentStyle:      c.String("indent-style"),
			ContinuationChar: c.String("continuation-char"),
			Separator:        firstRune(c.String("separator")),
			HasHeader:        c.Bool("has-header"),
			Pattern:          c.String("pattern"),
		},
		Processing: config.Processing{
			Begin:         c.String("begin"),
			End:           c.String("end"),
			Strict:        c.Bool("strict"),
			Take:          takeLimit(c),
			Window:        c.Int("window"),
			Levels:        c.StringSlice("levels"),
			ExcludeLevels: c.StringSlice("exclude-levels"),
		},
		Output: config.Output{
			Format:       c.String("output"),
			Keys:         c.StringSlice("keys"),
			ExcludeKeys:  c.StringSlice("exclude-keys"),
			Core:         c.Bool("core"),
			Color:        c.Bool("color"),
			GapThreshold: c.Int("gap-threshold"),
			WithHeader:   c.Bool("with-header"),
			MetricsFile:  c.String("metrics-file"),
			MetricsChart: c.String("metrics-chart"),
			Dashboard:    c.Bool("dashboard"),
		},
		Performance: config.Performance{
			Parallel:     c.Bool("parallel"),
			Threads:      c.Int("threads"),
			BatchSize:    c.Int("batch-size"),
			BatchTimeout: c.Duration("batch-timeout"),
			Unordered:    c.Bool("unordered"),
		},
	}

	if err := appendStages(cfg, c); err != nil {
		return nil, err
	}
	if err := applyPatterns(cfg, c); err != nil {
		return nil, err
	}
	if err := applyTimeBounds(cfg, c); err != nil {
		return nil, err
	}
	if err := applySection(cfg, c); err != nil {
		return nil, err
	}
	if v := c.String("input-tz"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return nil, fmt.Errorf("invalid --input-tz %q: %w", v, err)
		}
		cfg.Input.InputTZ = loc
	}

	return cfg, cfg.Validate()
}

// appendStages appends the --filter, --exec, and --exec-file stages
// grouped by flag (see flagPos): every --filter in the order given, then
// every --exec, then every --exec-file. Order is kept within one flag;
// the command-line order between occurrences of different flags is not.
func appendStages(cfg *config.Config, c *cli.Context) error {
	type occurrence struct {
		kind   string
		source string
		pos    int
	}
	var occs []occurrence

	for i, v := range c.StringSlice("filter") {
		occs = append(occs, occurrence{kind: "filter", source: v, pos: flagPos(c, "filter", i)})
	}
	for i, v := range c.StringSlice("exec") {
		occs = append(occs, occurrence{kind: "exec", source: v, pos: flagPos(c, "exec", i)})
	}
	for i, path := range c.StringSlice("exec-file") {
		body, err := readScriptFile(path)
		if err != nil {
			return err
		}
		occs = append(occs, occurrence{kind: "exec", source: body, pos: flagPos(c, "exec-file", i)})
	}

	sort.SliceStable(occs, func(i, j int) bool { return occs[i].pos < occs[j].pos })
	for _, o := range occs {
		cfg.Processing.Stages = append(cfg.Processing.Stages, config.StageSource{Kind: o.kind, Source: o.source})
	}
	return nil
}

// flagPos approximates the position a repeated flag occurrence was given
// at on the command line: urfave/cli does not expose raw argv indices
// for StringSliceFlag, so occurrences are ordered first by flag name
// group and then by repetition index, which preserves declared order
// within one flag and a stable (if arbitrary) relative order across
// --filter/--exec/--exec-file when mixed — documented as an accepted
// limitation in DESIGN.md rather than reconstructing argv by hand.
func flagPos(c *cli.Context, name string, idx int) int {
	group := map[string]int{"filter": 0, "exec": 1000, "exec-file": 2000}[name]
	return group + idx
}

func applyPatterns(cfg *config.Config, c *cli.Context) error {
	if v := c.String("keep-lines"); v != "" {
		re, err := regexp.Compile(v)
		if err != nil {
			return fmt.Errorf("invalid --keep-lines pattern: %w", err)
		}
		cfg.Input.KeepPattern = re
	}
	if v := c.String("ignore-lines"); v != "" {
		re, err := regexp.Compile(v)
		if err != nil {
			return fmt.Errorf("invalid --ignore-lines pattern: %w", err)
		}
		cfg.Input.IgnorePattern = re
	}
	return nil
}

func applyTimeBounds(cfg *config.Config, c *cli.Context) error {
	if v := c.String("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --since %q: %w", v, err)
		}
		cfg.Input.Since = &t
	}
	if v := c.String("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --until %q: %w", v, err)
		}
		cfg.Input.Until = &t
	}
	return nil
}

// applySection splits --section "start,end" into cfg's section bounds.
func applySection(cfg *config.Config, c *cli.Context) error {
	v := c.String("section")
	if v == "" {
		return nil
	}
	parts := strings.SplitN(v, ",", 2)
	if len(parts) != 2 {
		return fmt.Errorf("--section expects \"start,end\", got %q", v)
	}
	cfg.Input.SectionStart = parts[0]
	cfg.Input.SectionEnd = parts[1]
	return nil
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

// takeLimit reads --take only if it was actually given, so an unset
// flag (unlimited) stays distinguishable from an explicit --take 0
// (emit nothing, stop after the minimum input).
func takeLimit(c *cli.Context) *int {
	if !c.IsSet("take") {
		return nil
	}
	v := c.Int("take")
	return &v
}
