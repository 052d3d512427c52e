package event

import (
	"strconv"
	"strings"
	"time"
)

// layouts are probed in order; this list follows the original kelora's
// timestamp.rs strategy (SPEC_FULL.md §3.2): try the unambiguous,
// zone-carrying layouts first, then the zone-less ones that need the
// configured input timezone applied afterward.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"02/Jan/2006:15:04:05 -0700", // Apache/Nginx
	"Jan _2 15:04:05",            // syslog RFC3164 (no year)
	"2006-01-02",
}

// ParseTimestamp attempts every recognised layout in turn, then falls back
// to a bare unix-epoch integer (seconds, or milliseconds if large enough
// to be implausible as seconds). loc is applied only to results that
// parsed without an explicit offset (SPEC_FULL.md §3.2, input-tz).
func ParseTimestamp(v Value, loc *time.Location) (time.Time, bool) {
	switch v.Kind {
	case KindInt:
		return fromEpoch(v.Int), true
	case KindFloat:
		return fromEpoch(int64(v.Float)), true
	case KindString:
		return parseTimestampString(v.Str, loc)
	}
	return time.Time{}, false
}

func fromEpoch(n int64) time.Time {
	if n > 1e12 || n < -1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func parseTimestampString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(n), true
	}
	for _, layout := range layouts {
		if loc == nil {
			loc = time.UTC
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			if layout == "Jan _2 15:04:05" {
				t = time.Date(time.Now().Year(), t.Month(), t.Day(),
					t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
			}
			return t, true
		}
	}
	return time.Time{}, false
}
