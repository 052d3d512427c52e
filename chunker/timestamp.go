package chunker

import "regexp"

// timestampChunker starts a new chunk whenever a line matches pattern;
// non-matching lines are appended to the chunk in progress.
type timestampChunker struct {
	re      *regexp.Regexp
	pending []string
}

func NewTimestamp(pattern string) (Chunker, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &timestampChunker{re: re}, nil
}

func (c *timestampChunker) Feed(line string) (string, bool) {
	if c.re.MatchString(line) {
		var out string
		ok := false
		if len(c.pending) > 0 {
			out = joinLines(c.pending)
			ok = true
		}
		c.pending = []string{line}
		return out, ok
	}
	c.pending = append(c.pending, line)
	return "", false
}

func (c *timestampChunker) Flush() (string, bool) {
	if len(c.pending) == 0 {
		return "", false
	}
	chunk := joinLines(c.pending)
	c.pending = nil
	return chunk, true
}
