// Package event defines the in-memory record produced by a parser and
// threaded through the stage graph.
package event

import (
	"strconv"
	"time"
)

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KindUnit Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindArray
	KindMap
)

// Value is the dynamically-typed union every field holds. Exactly one of
// the typed fields is meaningful, selected by Kind; zero value is KindUnit
// (absent).
type Value struct {
	Kind   Kind
	Int    int64
	Float  float64
	Bool   bool
	Str    string
	Array  []Value
	Map    *Fields
}

func Unit() Value                 { return Value{Kind: KindUnit} }
func Int(v int64) Value           { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value       { return Value{Kind: KindFloat, Float: v} }
func Bool(v bool) Value           { return Value{Kind: KindBool, Bool: v} }
func String(v string) Value       { return Value{Kind: KindString, Str: v} }
func Array(v []Value) Value       { return Value{Kind: KindArray, Array: v} }
func Map(v *Fields) Value         { return Value{Kind: KindMap, Map: v} }

func (v Value) IsUnit() bool { return v.Kind == KindUnit }

// AsFloat64 coerces an Int or Float value to float64; ok is false for any
// other kind (including Unit).
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// Clone performs a deep copy, used by the stage graph's checkpoint
// mechanism (spec.md §4.3, §9: "clone the event at stage entry").
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		out := make([]Value, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.Clone()
		}
		return Value{Kind: KindArray, Array: out}
	case KindMap:
		return Value{Kind: KindMap, Map: v.Map.Clone()}
	default:
		return v
	}
}

// Render returns a human-readable rendering used by the default and
// brief formatters.
func (v Value) Render() string {
	switch v.Kind {
	case KindUnit:
		return ""
	case KindInt:
		return itoa(v.Int)
	case KindFloat:
		return ftoa(v.Float)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindString:
		return v.Str
	case KindArray:
		s := "["
		for i, e := range v.Array {
			if i > 0 {
				s += ", "
			}
			s += e.Render()
		}
		return s + "]"
	case KindMap:
		s := "{"
		first := true
		for _, k := range v.Map.Keys() {
			val, _ := v.Map.Get(k)
			if !first {
				s += ", "
			}
			first = false
			s += k + ": " + val.Render()
		}
		return s + "}"
	}
	return ""
}

// recognised "core" fields, promoted for fast access per spec.md §3.
const (
	FieldTimestamp = "timestamp"
	FieldLevel     = "level"
	FieldMessage   = "message"
)

// timestampAliases and levelAliases are probed in order; the first field
// present wins, matching the teacher's fixed-priority probing idiom
// (logparser's compiled extractor priorities).
var timestampAliases = []string{"timestamp", "time", "ts", "@timestamp"}
var levelAliases = []string{"level", "severity", "loglevel", "lvl"}
var messageAliases = []string{"message", "msg"}

// Event is a parsed, mutable record derived from one input chunk.
type Event struct {
	Raw    string
	Fields *Fields

	// cached derived accessors; invalidated whenever the backing field is
	// deleted or reassigned (spec.md §3 invariant).
	tsCache    *time.Time
	tsCacheSet bool
}

// New creates an empty event with Raw text set; fields are populated by
// the parser that constructs it.
func New(raw string) *Event {
	return &Event{Raw: raw, Fields: NewFields()}
}

// Clone performs the deep copy checkpoint-rollback needs (spec.md §9).
// Only transforms need this; filters never mutate (same note).
func (e *Event) Clone() *Event {
	return &Event{
		Raw:        e.Raw,
		Fields:     e.Fields.Clone(),
		tsCache:    e.tsCache,
		tsCacheSet: e.tsCacheSet,
	}
}

// Restore overwrites e's mutable state from a previously taken clone,
// in place, so callers holding a *Event reference observe the rollback.
func (e *Event) Restore(checkpoint *Event) {
	e.Raw = checkpoint.Raw
	e.Fields = checkpoint.Fields
	e.tsCache = checkpoint.tsCache
	e.tsCacheSet = checkpoint.tsCacheSet
}

// Get returns a field's value, or Unit if absent.
func (e *Event) Get(key string) Value {
	v, ok := e.Fields.Get(key)
	if !ok {
		return Unit()
	}
	return v
}

// Set assigns a field; assigning Unit removes it (spec.md §3 invariant).
func (e *Event) Set(key string, v Value) {
	if v.IsUnit() {
		e.Delete(key)
		return
	}
	e.Fields.Set(key, v)
	e.invalidateCache(key)
}

// Delete removes a field and any core-field cache derived from it.
func (e *Event) Delete(key string) {
	e.Fields.Delete(key)
	e.invalidateCache(key)
}

func (e *Event) invalidateCache(key string) {
	for _, a := range timestampAliases {
		if a == key {
			e.tsCacheSet = false
			e.tsCache = nil
			return
		}
	}
}

// Timestamp returns the normalised UTC instant of the first recognised
// timestamp field that parses, if any.
func (e *Event) Timestamp(loc *time.Location) (time.Time, bool) {
	if e.tsCacheSet {
		if e.tsCache == nil {
			return time.Time{}, false
		}
		return *e.tsCache, true
	}
	for _, a := range timestampAliases {
		v, ok := e.Fields.Get(a)
		if !ok {
			continue
		}
		if t, ok := ParseTimestamp(v, loc); ok {
			tt := t.UTC()
			e.tsCache = &tt
			e.tsCacheSet = true
			return tt, true
		}
	}
	e.tsCacheSet = true
	e.tsCache = nil
	return time.Time{}, false
}

// Level returns the first recognised severity field's string rendering.
func (e *Event) Level() (string, bool) {
	for _, a := range levelAliases {
		if v, ok := e.Fields.Get(a); ok {
			return v.Render(), true
		}
	}
	return "", false
}

// Message returns the first recognised message field's string rendering.
func (e *Event) Message() (string, bool) {
	for _, a := range messageAliases {
		if v, ok := e.Fields.Get(a); ok {
			return v.Render(), true
		}
	}
	return "", false
}

// Metadata accompanies an Event through the pipeline: owned by the
// worker/runner, read-only to scripts (spec.md §3).
type Metadata struct {
	Source    string // filename, or "" for stdin
	Line      int    // 1-based line number of the chunk's first line
	ParsedAt  time.Time
	HasParsed bool
	Span      bool // span assignment active (section-selector mode)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
