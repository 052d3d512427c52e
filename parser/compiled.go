package parser

import (
	"strings"

	"github.com/kelora-go/kelora/event"
)

// fieldSpec is a compiled placeholder from a named pattern string, in the
// spirit of logparser.go's FieldExtractor: a field type plus the delimiter,
// quoting and bracketing it's recognized by. Where the teacher's extractor
// maps onto a fixed Request struct, this one maps onto an arbitrary named
// event field, so the same compiled-scanner idiom serves both the built-in
// Apache/Nginx formats and user-supplied fixed patterns.
type fieldSpec struct {
	name     string
	quoted   bool
	bracket  bool
	delim    byte
	optional bool // field may be "-" meaning absent
}

// compilePattern turns a pattern like:
//
//	`%{host} %{ident} %{authuser} [%{time}] "%{request}" %{status} %{bytes}`
//
// into a list of fieldSpecs, detecting quoting and bracketing from the
// characters immediately surrounding each placeholder.
func compilePattern(pattern string) ([]fieldSpec, error) {
	var specs []fieldSpec
	i := 0
	for i < len(pattern) {
		start := strings.Index(pattern[i:], "%{")
		if start == -1 {
			break
		}
		start += i
		end := strings.IndexByte(pattern[start:], '}')
		if end == -1 {
			return nil, errf("unterminated placeholder in pattern %q", pattern)
		}
		end += start
		name := pattern[start+2 : end]
		if name == "" {
			return nil, errf("empty placeholder name in pattern %q", pattern)
		}

		spec := fieldSpec{name: name, delim: ' '}
		if start > 0 {
			switch pattern[start-1] {
			case '"':
				spec.quoted = true
			case '[':
				spec.bracket = true
			}
		}
		// delimiter is whatever literal character follows the closing brace
		// (and, for quoted/bracketed fields, follows the closing quote/bracket)
		after := end + 1
		if spec.quoted && after < len(pattern) && pattern[after] == '"' {
			after++
		} else if spec.bracket && after < len(pattern) && pattern[after] == ']' {
			after++
		}
		if after < len(pattern) && pattern[after] != '%' {
			spec.delim = pattern[after]
		}
		if name == "status" || name == "bytes" {
			spec.optional = true
		}
		specs = append(specs, spec)
		i = end + 1
	}
	if len(specs) == 0 {
		return nil, errf("pattern %q has no %%{name} placeholders", pattern)
	}
	return specs, nil
}

// scanFields walks chunk applying specs in order, producing ordered fields.
// It mirrors logparser.go's parseUsingCompiledFormatOpt: skip leading spaces,
// find the field's extent based on quoting/bracketing/delimiter, record it,
// then advance past the closing quote/bracket/delimiter.
func scanFields(chunk string, specs []fieldSpec) (*event.Fields, error) {
	fields := event.NewFields()
	pos := 0
	for i, spec := range specs {
		for pos < len(chunk) && chunk[pos] == ' ' {
			pos++
		}
		if pos >= len(chunk) {
			if spec.optional {
				continue
			}
			return nil, errf("chunk too short for field %q", spec.name)
		}

		start := pos
		isLast := i == len(specs)-1
		switch {
		case spec.quoted && chunk[pos] == '"':
			pos++
			start = pos
			if idx := strings.IndexByte(chunk[pos:], '"'); idx >= 0 {
				pos += idx
			} else {
				pos = len(chunk)
			}
		case spec.bracket && chunk[pos] == '[':
			pos++
			start = pos
			if idx := strings.IndexByte(chunk[pos:], ']'); idx >= 0 {
				pos += idx
			} else {
				pos = len(chunk)
			}
		case isLast:
			// an unquoted trailing field (typically "message") takes the
			// rest of the line rather than stopping at the first space
			pos = len(chunk)
		default:
			delim := spec.delim
			if delim == 0 {
				delim = ' '
			}
			for pos < len(chunk) && chunk[pos] != delim && chunk[pos] != ' ' {
				pos++
			}
		}

		raw := chunk[start:pos]
		assignField(fields, spec.name, raw)

		if spec.quoted && pos < len(chunk) && chunk[pos] == '"' {
			pos++
		} else if spec.bracket && pos < len(chunk) && chunk[pos] == ']' {
			pos++
		} else if pos < len(chunk) && chunk[pos] == spec.delim {
			pos++
		}
	}
	return fields, nil
}

// assignField records a scanned raw value under name, splitting the
// Apache/Nginx "request" field into method/uri/protocol the way the
// teacher's %r extractor splits a quoted request line.
func assignField(fields *event.Fields, name, raw string) {
	if name == "request" {
		parts := strings.SplitN(raw, " ", 3)
		switch len(parts) {
		case 3:
			fields.Set("method", event.String(parts[0]))
			fields.Set("uri", event.String(parts[1]))
			fields.Set("protocol", event.String(parts[2]))
		case 2:
			fields.Set("method", event.String(parts[0]))
			fields.Set("uri", event.String(parts[1]))
		default:
			fields.Set("uri", event.String(raw))
		}
		return
	}
	if raw == "-" {
		fields.Set(name, event.Unit())
		return
	}
	switch name {
	case "status", "bytes", "size":
		fields.Set(name, coerce(raw))
	default:
		fields.Set(name, event.String(raw))
	}
}
