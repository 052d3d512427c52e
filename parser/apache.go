package parser

import "github.com/kelora-go/kelora/event"

// Named patterns grounded on logparser.go's compileFormat, generalized from
// fixed %h/%t/%r codes mapped to a Request struct into named %{field}
// placeholders mapped onto ordered event fields.
const (
	ApacheCommon   = `%{host} %{ident} %{authuser} [%{time}] "%{request}" %{status} %{bytes}`
	ApacheCombined = ApacheCommon + ` "%{referer}" "%{user_agent}"`
	NginxCombined  = ApacheCombined
)

type apachePattern struct {
	name  string
	specs []fieldSpec
}

// NewApache compiles one of the built-in Apache/Nginx combined or common log
// patterns into a Parser identified by name.
func NewApache(pattern, name string) (Parser, error) {
	specs, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return apachePattern{name: name, specs: specs}, nil
}

func (p apachePattern) Name() string { return p.name }

func (p apachePattern) Parse(chunk string) (*event.Event, error) {
	fields, err := scanFields(chunk, p.specs)
	if err != nil {
		return nil, err
	}
	e := event.New(chunk)
	e.Fields = fields
	return e, nil
}
