package parser

import (
	"strconv"
	"strings"

	"github.com/kelora-go/kelora/event"
)

// kvParser decodes logfmt-style `key=value key2="quoted value"` lines,
// using the teacher's low-allocation byte-scanning idiom
// (logparser.go's parseEvent: strings.IndexByte rather than regexp on
// the hot path) instead of reaching for a third-party logfmt library.
type kvParser struct{}

func NewKV() Parser { return kvParser{} }

func (kvParser) Name() string { return "kv" }

func (kvParser) Parse(chunk string) (*event.Event, error) {
	e := event.New(chunk)
	s := chunk
	for len(s) > 0 {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			break
		}
		eq := strings.IndexByte(s, '=')
		if eq == -1 {
			// trailing bare token; ignore per logfmt convention
			break
		}
		key := s[:eq]
		s = s[eq+1:]

		var rawVal string
		if len(s) > 0 && s[0] == '"' {
			end := indexUnescapedQuote(s[1:])
			if end == -1 {
				return nil, errf("unterminated quoted value for key %q", key)
			}
			rawVal = unescapeQuoted(s[1 : 1+end])
			s = s[1+end+1:]
		} else {
			sp := strings.IndexByte(s, ' ')
			if sp == -1 {
				rawVal = s
				s = ""
			} else {
				rawVal = s[:sp]
				s = s[sp+1:]
			}
		}
		e.Set(key, coerce(rawVal))
	}
	return e, nil
}

func indexUnescapedQuote(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '"' {
			return i
		}
	}
	return -1
}

func unescapeQuoted(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// coerce turns a raw logfmt value into the narrowest matching Value type,
// falling back to string.
func coerce(raw string) event.Value {
	if raw == "" {
		return event.String("")
	}
	if raw == "true" {
		return event.Bool(true)
	}
	if raw == "false" {
		return event.Bool(false)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return event.Int(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return event.Float(f)
	}
	return event.String(raw)
}
