package script

import (
	"os"
	"strings"
	"time"

	"github.com/kelora-go/kelora/event"
)

// evalContext carries the per-Run side-effect state a host function
// closure mutates: the event being transformed, any fan-out it produced,
// and whether it asked to drop the event.
type evalContext struct {
	event         *event.Event
	emitted       []*event.Event
	dropped       bool
	allowFileRead bool
}

// WindowEntry is one recent raw record a script can inspect through the
// `window()` host function, shaped independently of window.Entry so this
// package has no import-time dependency on the window package (runner
// adapts a *window.Window into a WindowHandle instead).
type WindowEntry struct {
	Raw  string
	Time time.Time
}

// WindowHandle exposes the sliding window of recent events spec.md's
// `window N` option describes. Sequential-mode only: a parallel worker's
// Engine never has one set.
type WindowHandle interface {
	Entries() []WindowEntry
}

// buildEnv assembles the expr evaluation environment for one stage run:
// the event's fields flattened to top-level identifiers, the frozen conf
// map, and the host-registered functions spec.md §4.4 lists.
func buildEnv(ctx *evalContext, conf map[string]any, metrics MetricsHandle, win WindowHandle) map[string]any {
	env := make(map[string]any, ctx.event.Fields.Len()+16)
	for _, k := range ctx.event.Fields.Keys() {
		v, _ := ctx.event.Fields.Get(k)
		env[k] = valueToAny(v)
	}
	env["conf"] = conf

	env["has_path"] = func(path string) bool {
		_, ok := lookupPath(ctx.event, path)
		return ok
	}
	env["get_path"] = func(path string) any {
		v, ok := lookupPath(ctx.event, path)
		if !ok {
			return nil
		}
		return valueToAny(v)
	}
	env["set"] = func(key string, val any) any {
		ctx.event.Set(key, anyToValue(val))
		return nil
	}
	env["delete"] = func(key string) any {
		ctx.event.Delete(key)
		return nil
	}
	env["drop"] = func() any {
		ctx.dropped = true
		return nil
	}
	env["emit_each"] = func(field string, values []any) any {
		for _, v := range values {
			clone := ctx.event.Clone()
			clone.Set(field, anyToValue(v))
			ctx.emitted = append(ctx.emitted, clone)
		}
		ctx.dropped = true
		return nil
	}
	env["env"] = func(name string) string { return os.Getenv(name) }
	env["parse_timestamp"] = func(s string) time.Time {
		t, _ := event.ParseTimestamp(event.String(s), time.UTC)
		return t
	}
	env["parse_duration"] = func(s string) time.Duration {
		d, _ := time.ParseDuration(s)
		return d
	}
	if ctx.allowFileRead {
		env["read_file"] = func(path string) string {
			b, err := os.ReadFile(path)
			if err != nil {
				return ""
			}
			return string(b)
		}
	}

	if win != nil {
		env["window"] = func() []map[string]any {
			entries := win.Entries()
			out := make([]map[string]any, len(entries))
			for i, e := range entries {
				out[i] = map[string]any{"raw": e.Raw, "time": e.Time}
			}
			return out
		}
	}

	if metrics != nil {
		env["track_count"] = func(key string) any { metrics.Count(key, 1); return nil }
		env["track_sum"] = func(key string, v float64) any { metrics.Sum(key, v); return nil }
		env["track_min"] = func(key string, v float64) any { metrics.Min(key, v); return nil }
		env["track_max"] = func(key string, v float64) any { metrics.Max(key, v); return nil }
		env["track_avg"] = func(key string, v float64) any { metrics.Avg(key, v); return nil }
		env["track_unique"] = func(key string, v any) any { metrics.Unique(key, v); return nil }
		env["track_bucket"] = func(key string, v any) any { metrics.Bucket(key, toBucketKey(v)); return nil }
	}

	return env
}

func toBucketKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return anyToValue(v).Render()
}

// lookupPath resolves a dotted path like "user.id" against the event's
// top-level and nested map fields.
func lookupPath(ev *event.Event, path string) (event.Value, bool) {
	parts := strings.Split(path, ".")
	v, ok := ev.Fields.Get(parts[0])
	if !ok {
		return event.Value{}, false
	}
	for _, part := range parts[1:] {
		if v.Kind != event.KindMap || v.Map == nil {
			return event.Value{}, false
		}
		v, ok = v.Map.Get(part)
		if !ok {
			return event.Value{}, false
		}
	}
	return v, true
}

// applyFieldMap merges a transform stage's returned map into ev, deleting
// keys whose value is nil.
func applyFieldMap(ev *event.Event, m map[string]any) {
	for k, v := range m {
		if v == nil {
			ev.Delete(k)
			continue
		}
		ev.Set(k, anyToValue(v))
	}
}
