package parser

import (
	"strconv"
	"strings"

	"github.com/kelora-go/kelora/event"
)

// syslog5424Parser decodes RFC-5424 syslog:
// <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID [SD] MSG
type syslog5424Parser struct{}

func NewSyslog5424() Parser { return syslog5424Parser{} }

func (syslog5424Parser) Name() string { return "syslog5424" }

func (syslog5424Parser) Parse(chunk string) (*event.Event, error) {
	s := chunk
	if len(s) == 0 || s[0] != '<' {
		return nil, errf("missing PRI")
	}
	end := strings.IndexByte(s, '>')
	if end == -1 {
		return nil, errf("unterminated PRI")
	}
	pri, err := strconv.Atoi(s[1:end])
	if err != nil {
		return nil, errf("invalid PRI: %v", err)
	}
	s = s[end+1:]

	fields := strings.SplitN(s, " ", 7)
	if len(fields) < 7 {
		return nil, errf("truncated RFC5424 header")
	}

	e := event.New(chunk)
	e.Set("facility", event.Int(int64(pri/8)))
	e.Set("severity", event.Int(int64(pri%8)))
	e.Set("level", event.String(severityName(pri%8)))
	e.Set("version", event.String(fields[0]))
	e.Set("timestamp", event.String(fields[1]))
	e.Set("hostname", event.String(fields[2]))
	e.Set("app_name", event.String(fields[3]))
	e.Set("proc_id", event.String(fields[4]))
	e.Set("msg_id", event.String(fields[5]))

	rest := fields[6]
	msg := rest
	if strings.HasPrefix(rest, "[") || strings.HasPrefix(rest, "-") {
		if strings.HasPrefix(rest, "-") {
			msg = strings.TrimPrefix(rest, "- ")
		} else if close := strings.IndexByte(rest, ']'); close != -1 {
			e.Set("structured_data", event.String(rest[:close+1]))
			msg = strings.TrimPrefix(rest[close+1:], " ")
		}
	}
	e.Set("message", event.String(msg))
	return e, nil
}

var severityNames = []string{"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug"}

func severityName(n int) string {
	if n < 0 || n >= len(severityNames) {
		return "unknown"
	}
	return severityNames[n]
}

// syslog3164Parser decodes the older BSD syslog format:
// <PRI>Mon  2 15:04:05 hostname tag[pid]: message
type syslog3164Parser struct{}

func NewSyslog3164() Parser { return syslog3164Parser{} }

func (syslog3164Parser) Name() string { return "syslog3164" }

func (syslog3164Parser) Parse(chunk string) (*event.Event, error) {
	s := chunk
	if len(s) == 0 || s[0] != '<' {
		return nil, errf("missing PRI")
	}
	end := strings.IndexByte(s, '>')
	if end == -1 {
		return nil, errf("unterminated PRI")
	}
	pri, err := strconv.Atoi(s[1:end])
	if err != nil {
		return nil, errf("invalid PRI: %v", err)
	}
	s = s[end+1:]

	// timestamp is a fixed-width "Mon  2 15:04:05" (15 chars)
	if len(s) < 16 {
		return nil, errf("truncated RFC3164 header")
	}
	ts := s[:15]
	rest := strings.TrimPrefix(s[15:], " ")

	sp := strings.IndexByte(rest, ' ')
	if sp == -1 {
		return nil, errf("missing hostname")
	}
	hostname := rest[:sp]
	rest = rest[sp+1:]

	tag := rest
	msg := ""
	if colon := strings.IndexByte(rest, ':'); colon != -1 {
		tag = rest[:colon]
		msg = strings.TrimPrefix(rest[colon+1:], " ")
	}

	e := event.New(chunk)
	e.Set("facility", event.Int(int64(pri/8)))
	e.Set("severity", event.Int(int64(pri%8)))
	e.Set("level", event.String(severityName(pri%8)))
	e.Set("timestamp", event.String(ts))
	e.Set("hostname", event.String(hostname))
	e.Set("tag", event.String(tag))
	e.Set("message", event.String(msg))
	return e, nil
}
