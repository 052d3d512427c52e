package chunker

import "regexp"

// startChunker begins a new chunk on a line matching start; all lines up
// to (not including) the next start match belong to the chunk.
type startChunker struct {
	start   *regexp.Regexp
	pending []string
}

func NewStart(pattern string) (Chunker, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &startChunker{start: re}, nil
}

func (c *startChunker) Feed(line string) (string, bool) {
	if c.start.MatchString(line) {
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

func (c *startChunker) Flush() (string, bool) {
	if len(c.pending) == 0 {
		return "", false
	}
	chunk := joinLines(c.pending)
	c.pending = nil
	return chunk, true
}

// endChunker accumulates every line into the current chunk until one
// matches end, which terminates (and is included in) the chunk.
type endChunker struct {
	end     *regexp.Regexp
	pending []string
}

func NewEnd(pattern string) (Chunker, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &endChunker{end: re}, nil
}

func (c *endChunker) Feed(line string) (string, bool) {
	c.pending = append(c.pending, line)
	if c.end.MatchString(line) {
		chunk := joinLines(c.pending)
		c.pending = nil
		return chunk, true
	}
	return "", false
}

func (c *endChunker) Flush() (string, bool) {
	if len(c.pending) == 0 {
		return "", false
	}
	chunk := joinLines(c.pending)
	c.pending = nil
	return chunk, true
}

// boundaryChunker requires both an explicit start and end delimiter.
// A start match while a chunk is already open forces the stale chunk
// out first, so malformed input (a start with no matching end) cannot
// swallow the rest of the stream.
type boundaryChunker struct {
	start, end *regexp.Regexp
	pending    []string
	open       bool
}

func NewBoundary(startPattern, endPattern string) (Chunker, error) {
	start, err := compilePattern(startPattern)
	if err != nil {
		return nil, err
	}
	end, err := compilePattern(endPattern)
	if err != nil {
		return nil, err
	}
	return &boundaryChunker{start: start, end: end}, nil
}

func (c *boundaryChunker) Feed(line string) (string, bool) {
	if c.start.MatchString(line) {
		var out string
		ok := false
		if c.open && len(c.pending) > 0 {
			out = joinLines(c.pending)
			ok = true
		}
		c.pending = []string{line}
		c.open = true
		return out, ok
	}
	if !c.open {
		return "", false
	}
	c.pending = append(c.pending, line)
	if c.end.MatchString(line) {
		chunk := joinLines(c.pending)
		c.pending = nil
		c.open = false
		return chunk, true
	}
	return "", false
}

func (c *boundaryChunker) Flush() (string, bool) {
	if len(c.pending) == 0 {
		return "", false
	}
	chunk := joinLines(c.pending)
	c.pending = nil
	c.open = false
	return chunk, true
}
