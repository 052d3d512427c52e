// Package format turns an Event into one line of output in the chosen
// sink format (spec.md §6's output-format list), plus the gap-marker
// helper that flags a break in line-number continuity between
// consecutive emitted events.
//
// The ordered-field JSON writer is grounded on output/json.go's
// MarshalIndent/Marshal compact-vs-pretty split (here: one-line-per-
// event compact JSON only, since json-lines output never indents);
// it walks event.Fields.Keys() directly rather than handing the map to
// encoding/json, because encoding/json sorts map keys alphabetically
// and would silently break the parser-observed field order spec.md §3
// requires formatters to preserve.
package format

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kelora-go/kelora/event"
	"github.com/kelora-go/kelora/pools"
)

// Formatter renders one event as a line of output. emit is false for
// the "hide"/"null" formats, which still run (so counters advance) but
// produce nothing for the sink to write.
type Formatter interface {
	Format(ev *event.Event) (line string, emit bool, err error)
}

// Options configures the formatters that need more than the event
// itself: color policy for the default formatter, and the fixed
// column set for CSV/TSV.
type Options struct {
	Color      bool
	Columns    []string // CSV/TSV only; nil means "derive from first row"
	WithHeader bool     // CSV/TSV only
}

// HeaderEmitter is implemented by formats that write a header line once,
// before the first data row (spec.md §6's "with or without headers").
// A runner/sink queries this once, ahead of the first Format call.
type HeaderEmitter interface {
	Header() (line string, emit bool)
}

// New builds the formatter named by kind: "json", "kv", "csv", "tsv",
// "default", "brief", "hide", "null".
func New(kind string, opts Options) (Formatter, error) {
	switch kind {
	case "json", "json-lines", "":
		return &jsonFormatter{}, nil
	case "kv", "logfmt":
		return &kvFormatter{}, nil
	case "csv":
		return newDelimited(',', opts.Columns, opts.WithHeader), nil
	case "tsv":
		return newDelimited('\t', opts.Columns, opts.WithHeader), nil
	case "default":
		return &defaultFormatter{color: opts.Color}, nil
	case "brief":
		return &briefFormatter{}, nil
	case "hide":
		return hideFormatter{}, nil
	case "null":
		return nullFormatter{}, nil
	default:
		return nil, fmt.Errorf("format: unknown output format %q", kind)
	}
}

// --- json ---

type jsonFormatter struct{}

func (jsonFormatter) Format(ev *event.Event) (string, bool, error) {
	b := pools.Pools.GetBuilder()
	defer pools.Pools.ReturnBuilder(b)
	writeOrderedJSON(b, ev.Fields)
	return b.String(), true, nil
}

func writeOrderedJSON(b *strings.Builder, f *event.Fields) {
	b.WriteByte('{')
	for i, k := range f.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(b, k)
		b.WriteByte(':')
		v, _ := f.Get(k)
		writeJSONValue(b, v)
	}
	b.WriteByte('}')
}

func writeJSONValue(b *strings.Builder, v event.Value) {
	switch v.Kind {
	case event.KindUnit:
		b.WriteString("null")
	case event.KindInt:
		fmt.Fprintf(b, "%d", v.Int)
	case event.KindFloat:
		fmt.Fprintf(b, "%g", v.Float)
	case event.KindBool:
		if v.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case event.KindString:
		writeJSONString(b, v.Str)
	case event.KindArray:
		b.WriteByte('[')
		for i, e := range v.Array {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONValue(b, e)
		}
		b.WriteByte(']')
	case event.KindMap:
		writeOrderedJSON(b, v.Map)
	}
}

func writeJSONString(b *strings.Builder, s string) {
	out, _ := json.Marshal(s)
	b.Write(out)
}

// --- kv (logfmt) ---

type kvFormatter struct{}

func (kvFormatter) Format(ev *event.Event) (string, bool, error) {
	b := pools.Pools.GetBuilder()
	defer pools.Pools.ReturnBuilder(b)
	for i, k := range ev.Fields.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		v, _ := ev.Fields.Get(k)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(logfmtValue(v))
	}
	return b.String(), true, nil
}

func logfmtValue(v event.Value) string {
	s := v.Render()
	if v.Kind == event.KindString && needsQuoting(s) {
		out, _ := json.Marshal(s)
		return string(out)
	}
	return s
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}

// --- default (human-readable) ---

type defaultFormatter struct {
	color bool
}

const (
	ansiKeyColor = "\x1b[36m"
	ansiReset    = "\x1b[0m"
)

func (d *defaultFormatter) Format(ev *event.Event) (string, bool, error) {
	b := pools.Pools.GetBuilder()
	defer pools.Pools.ReturnBuilder(b)
	for i, k := range ev.Fields.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		v, _ := ev.Fields.Get(k)
		if d.color {
			b.WriteString(ansiKeyColor)
			b.WriteString(k)
			b.WriteString(ansiReset)
		} else {
			b.WriteString(k)
		}
		b.WriteString("='")
		b.WriteString(v.Render())
		b.WriteByte('\'')
	}
	return b.String(), true, nil
}

// --- brief (values only) ---

type briefFormatter struct{}

func (briefFormatter) Format(ev *event.Event) (string, bool, error) {
	b := pools.Pools.GetBuilder()
	defer pools.Pools.ReturnBuilder(b)
	for i, k := range ev.Fields.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		v, _ := ev.Fields.Get(k)
		b.WriteString(v.Render())
	}
	return b.String(), true, nil
}

// --- hide / null ---

type hideFormatter struct{}

func (hideFormatter) Format(ev *event.Event) (string, bool, error) { return "", false, nil }

type nullFormatter struct{}

func (nullFormatter) Format(ev *event.Event) (string, bool, error) { return "", false, nil }

// --- csv / tsv ---

type delimited struct {
	sep        rune
	mu         sync.Mutex
	columns    []string
	fixed      bool
	withHeader bool
}

func newDelimited(sep rune, columns []string, withHeader bool) *delimited {
	return &delimited{sep: sep, columns: columns, fixed: len(columns) > 0, withHeader: withHeader}
}

func (d *delimited) writeRow(fields []string) (string, error) {
	buf := pools.Pools.GetBuilder()
	defer pools.Pools.ReturnBuilder(buf)
	w := csv.NewWriter(buf)
	w.Comma = d.sep
	if err := w.Write(fields); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\r\n"), nil
}

func (d *delimited) Format(ev *event.Event) (string, bool, error) {
	d.mu.Lock()
	if !d.fixed && d.columns == nil {
		d.columns = append([]string(nil), ev.Fields.Keys()...)
	}
	columns := d.columns
	d.mu.Unlock()

	row := pools.Pools.GetLineSlice()
	defer pools.Pools.ReturnLineSlice(row)
	for _, col := range columns {
		v := ev.Get(col)
		row = append(row, v.Render())
	}
	line, err := d.writeRow(row)
	return line, true, err
}

// Header returns the header row, deriving the column set from the
// caller-supplied first-event columns if none were configured. It must
// be called before the first Format call if the caller wants a header
// at all, since Format itself never emits one.
func (d *delimited) Header() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.withHeader || d.columns == nil {
		return "", false
	}
	line, err := d.writeRow(d.columns)
	if err != nil {
		return "", false
	}
	return line, true
}

// SetColumnsFromFirst primes the column set for header derivation when
// none were configured explicitly, so Header can be queried before the
// first Format call.
func (d *delimited) SetColumnsFromFirst(ev *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.fixed && d.columns == nil {
		d.columns = append([]string(nil), ev.Fields.Keys()...)
	}
}
