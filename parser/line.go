package parser

import "github.com/kelora-go/kelora/event"

// lineParser wraps the untouched chunk in a single "line" field; the
// universal fallback when no other format matches (spec.md §4.1).
type lineParser struct{}

func NewLine() Parser { return lineParser{} }

func (lineParser) Name() string { return "line" }

func (lineParser) Parse(chunk string) (*event.Event, error) {
	e := event.New(chunk)
	e.Set("line", event.String(chunk))
	return e, nil
}
