package parser

import "strings"

// Detect picks a format name for a sample chunk by probing cheap textual
// cues rather than running every parser. It never returns an error; when
// nothing matches it falls back to "line".
func Detect(sample string) string {
	s := strings.TrimSpace(sample)
	if s == "" {
		return "line"
	}
	switch s[0] {
	case '{':
		return "json"
	case '<':
		if idx := strings.IndexByte(s, '>'); idx > 0 && idx < 5 {
			if strings.HasPrefix(s, "CEF:") || strings.Contains(s[:min(len(s), 8)], "CEF") {
				return "cef"
			}
			return "syslog5424or3164"
		}
	}
	if strings.HasPrefix(s, "CEF:") {
		return "cef"
	}
	if looksLikeApache(s) {
		return "apache-combined"
	}
	if looksLikeKV(s) {
		return "kv"
	}
	return "line"
}

// DetectAndNew probes the sample and constructs the matching parser,
// resolving the syslog ambiguity (5424 carries a "1 " version token right
// after the PRI, 3164 does not) that Detect alone cannot settle from a
// format name.
func DetectAndNew(sample string, opts Options) (Parser, error) {
	name := Detect(sample)
	if name == "syslog5424or3164" {
		name = "syslog3164"
		if end := strings.IndexByte(sample, '>'); end != -1 && end+2 < len(sample) {
			if sample[end+1] == '1' && sample[end+2] == ' ' {
				name = "syslog5424"
			}
		}
	}
	return New(name, opts)
}

func looksLikeApache(s string) bool {
	return strings.Contains(s, "\"") && strings.Contains(s, "[") && strings.Contains(s, "]")
}

func looksLikeKV(s string) bool {
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return false
	}
	return !strings.ContainsAny(s[:eq], " \t")
}
