package parser

import (
	"strings"

	"github.com/kelora-go/kelora/event"
)

// cefParser decodes ArcSight Common Event Format:
// CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|[Extension]
type cefParser struct{}

func NewCEF() Parser { return cefParser{} }

func (cefParser) Name() string { return "cef" }

var cefHeaderFields = []string{
	"cef_version", "device_vendor", "device_product", "device_version",
	"signature_id", "name", "severity",
}

func (cefParser) Parse(chunk string) (*event.Event, error) {
	if !strings.HasPrefix(chunk, "CEF:") {
		return nil, errf("missing CEF prefix")
	}
	body := chunk[len("CEF:"):]

	parts := splitUnescapedPipe(body, len(cefHeaderFields)+1)
	if len(parts) < len(cefHeaderFields) {
		return nil, errf("truncated CEF header, got %d fields", len(parts))
	}

	e := event.New(chunk)
	for i, name := range cefHeaderFields {
		e.Set(name, event.String(unescapeCEF(parts[i])))
	}

	if len(parts) > len(cefHeaderFields) {
		ext := parts[len(cefHeaderFields)]
		for key, val := range splitCEFExtension(ext) {
			e.Set(key, coerce(val))
		}
	}
	return e, nil
}

// splitUnescapedPipe splits on '|' that is not preceded by a backslash,
// stopping after maxParts-1 splits (the last part keeps any remaining
// pipes, for the extension field).
func splitUnescapedPipe(s string, maxParts int) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < maxParts-1; i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '|' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func unescapeCEF(s string) string {
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

// splitCEFExtension parses "key1=val1 key2=val2 with spaces key3=val3"
// where a value runs until the next "word=" token.
func splitCEFExtension(s string) map[string]string {
	out := make(map[string]string)
	fields := tokenizeCEFExtension(s)
	for _, kv := range fields {
		eq := strings.IndexByte(kv, '=')
		if eq == -1 {
			continue
		}
		out[kv[:eq]] = unescapeCEF(kv[eq+1:])
	}
	return out
}

func tokenizeCEFExtension(s string) []string {
	var tokens []string
	var cur strings.Builder
	words := strings.Fields(s)
	for _, w := range words {
		if looksLikeKey(w) {
			if cur.Len() > 0 {
				tokens = append(tokens, strings.TrimPrefix(cur.String(), " "))
				cur.Reset()
			}
			cur.WriteString(w)
		} else {
			cur.WriteByte(' ')
			cur.WriteString(w)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, strings.TrimPrefix(cur.String(), " "))
	}
	return tokens
}

func looksLikeKey(tok string) bool {
	eq := strings.IndexByte(tok, '=')
	if eq <= 0 {
		return false
	}
	key := tok[:eq]
	for _, r := range key {
		if !(r == '_' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
