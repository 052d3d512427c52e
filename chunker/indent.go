package chunker

import "strings"

// indentChunker starts a new chunk on an un-indented line; indented
// lines are appended to the chunk in progress. style selects which
// leading whitespace counts as indentation: "spaces", "tabs", or
// "mixed" (either, the default).
type indentChunker struct {
	style   string
	pending []string
}

func NewIndent(style string) Chunker {
	if style == "" {
		style = "mixed"
	}
	return &indentChunker{style: style}
}

func (c *indentChunker) isIndented(line string) bool {
	if line == "" {
		return false
	}
	switch c.style {
	case "spaces":
		return line[0] == ' '
	case "tabs":
		return line[0] == '\t'
	default:
		return line[0] == ' ' || line[0] == '\t'
	}
}

func (c *indentChunker) Feed(line string) (string, bool) {
	if !c.isIndented(line) {
		var out string
		ok := false
		if len(c.pending) > 0 {
			out = joinLines(c.pending)
			ok = true
		}
		c.pending = []string{line}
		return out, ok
	}
	c.pending = append(c.pending, strings.TrimRight(line, "\r"))
	return "", false
}

func (c *indentChunker) Flush() (string, bool) {
	if len(c.pending) == 0 {
		return "", false
	}
	chunk := joinLines(c.pending)
	c.pending = nil
	return chunk, true
}
