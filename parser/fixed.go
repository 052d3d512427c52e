package parser

import "github.com/kelora-go/kelora/event"

// fixedParser applies a user-supplied named pattern (the same
// %{field} scanning engine the built-in Apache/Nginx formats use) so
// operators can describe arbitrary structured single-line formats
// without writing Go.
type fixedParser struct {
	specs []fieldSpec
}

// NewFixed compiles a user pattern like:
//
//	%{time} %{level} [%{component}] %{message}
func NewFixed(pattern string) (Parser, error) {
	if pattern == "" {
		return nil, errf("fixed format requires a non-empty pattern")
	}
	specs, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return fixedParser{specs: specs}, nil
}

func (fixedParser) Name() string { return "fixed" }

func (p fixedParser) Parse(chunk string) (*event.Event, error) {
	fields, err := scanFields(chunk, p.specs)
	if err != nil {
		return nil, err
	}
	e := event.New(chunk)
	e.Fields = fields
	return e, nil
}
