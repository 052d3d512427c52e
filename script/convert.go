package script

import "github.com/kelora-go/kelora/event"

// valueToAny surfaces an event.Value to expr as a plain Go value so
// scripts can use ordinary operators (==, +, string methods) on it.
func valueToAny(v event.Value) any {
	switch v.Kind {
	case event.KindInt:
		return v.Int
	case event.KindFloat:
		return v.Float
	case event.KindBool:
		return v.Bool
	case event.KindString:
		return v.Str
	case event.KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = valueToAny(e)
		}
		return out
	case event.KindMap:
		if v.Map == nil {
			return map[string]any{}
		}
		out := make(map[string]any, v.Map.Len())
		for _, k := range v.Map.Keys() {
			fv, _ := v.Map.Get(k)
			out[k] = valueToAny(fv)
		}
		return out
	default:
		return nil
	}
}

// anyToValue lifts a value a script produced (via set/emit_each, or a
// returned field map) back into the event Value union.
func anyToValue(v any) event.Value {
	switch t := v.(type) {
	case nil:
		return event.Unit()
	case event.Value:
		return t
	case bool:
		return event.Bool(t)
	case string:
		return event.String(t)
	case int:
		return event.Int(int64(t))
	case int32:
		return event.Int(int64(t))
	case int64:
		return event.Int(t)
	case float32:
		return event.Float(float64(t))
	case float64:
		return event.Float(t)
	case []any:
		arr := make([]event.Value, len(t))
		for i, e := range t {
			arr[i] = anyToValue(e)
		}
		return event.Array(arr)
	case map[string]any:
		fields := event.NewFields()
		for k, fv := range t {
			fields.Set(k, anyToValue(fv))
		}
		return event.Map(fields)
	default:
		return event.String(formatFallback(v))
	}
}

func formatFallback(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return ""
}
