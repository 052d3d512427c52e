package parser

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/kelora-go/kelora/event"
)

// jsonParser decodes one JSON object per chunk (JSON-lines), preserving
// the key order the document was written in by walking json.Decoder
// tokens rather than decoding into a map[string]any (which Go does not
// order).
type jsonParser struct{}

func NewJSON() Parser { return jsonParser{} }

func (jsonParser) Name() string { return "json" }

func (jsonParser) Parse(chunk string) (*event.Event, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(chunk)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errf("invalid json: %v", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, errf("json line is not an object")
	}

	fields, err := decodeObjectBody(dec)
	if err != nil {
		return nil, errf("invalid json: %v", err)
	}

	e := event.New(chunk)
	e.Fields = fields
	return e, nil
}

func decodeObjectBody(dec *json.Decoder) (*event.Fields, error) {
	fields := event.NewFields()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, io.ErrUnexpectedEOF
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		fields.Set(key, v)
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeArrayBody(dec *json.Decoder) ([]event.Value, error) {
	var out []event.Value
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return nil, err
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (event.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return event.Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			fields, err := decodeObjectBody(dec)
			if err != nil {
				return event.Value{}, err
			}
			return event.Map(fields), nil
		case '[':
			arr, err := decodeArrayBody(dec)
			if err != nil {
				return event.Value{}, err
			}
			return event.Array(arr), nil
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return event.Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return event.Value{}, err
		}
		return event.Float(f), nil
	case string:
		return event.String(t), nil
	case bool:
		return event.Bool(t), nil
	case nil:
		return event.Unit(), nil
	}
	return event.Value{}, errf("unsupported json token %v", tok)
}
