// Package parser implements the codec contract spec.md §4.1 describes:
// pure, reentrant conversion of one logical input chunk into an Event.
package parser

import (
	"fmt"

	"github.com/kelora-go/kelora/event"
)

// ParseError carries a human-readable reason a chunk could not be
// decoded. Parsers never touch metrics or configuration (spec.md §4.1).
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

func errf(format string, args ...any) error {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// Parser is the contract every format codec satisfies.
type Parser interface {
	// Parse converts one logical chunk (possibly multi-line) into an
	// Event, or fails with a *ParseError.
	Parse(chunk string) (*event.Event, error)
	// Name identifies the format, used in diagnostics and by auto-detect.
	Name() string
}

// HeaderAware is implemented by tabular parsers (CSV/TSV) that
// must reinitialize from a header line whenever the source file changes
// (spec.md §4.6 step 3, §4.7 "file boundary for a header-bearing format").
type HeaderAware interface {
	Parser
	// SetHeader reinitializes column names (and optionally types) from a
	// raw header line.
	SetHeader(headerLine string) error
	// NeedsHeader reports whether this parser has not yet seen a header.
	NeedsHeader() bool
}

// New constructs the named parser. Format-specific options (CSV
// separator, header flag, fixed-column layout string) are passed via
// opts; the syslog variant is selected by the format name itself. Each
// constructor below documents what it accepts.
func New(format string, opts Options) (Parser, error) {
	switch format {
	case "line":
		return NewLine(), nil
	case "json":
		return NewJSON(), nil
	case "kv", "logfmt":
		return NewKV(), nil
	case "syslog5424":
		return NewSyslog5424(), nil
	case "syslog3164":
		return NewSyslog3164(), nil
	case "apache-combined":
		return NewApache(ApacheCombined, "apache-combined")
	case "apache-common":
		return NewApache(ApacheCommon, "apache-common")
	case "nginx":
		return NewApache(NginxCombined, "nginx")
	case "cef":
		return NewCEF(), nil
	case "csv":
		return NewCSV(opts.Separator, opts.HasHeader)
	case "tsv":
		return NewCSV('\t', opts.HasHeader)
	case "fixed":
		return NewFixed(opts.Pattern)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// Options bundles the format-specific construction parameters New needs.
type Options struct {
	Separator rune
	HasHeader bool
	Pattern   string
}
