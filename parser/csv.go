package parser

import (
	"encoding/csv"
	"strings"

	"github.com/kelora-go/kelora/event"
)

// csvParser decodes one delimited row per chunk. Column names come from
// either an explicit header row (HasHeader) or positional names (col1,
// col2, ...) when the source has none. Reinitializing on a new header is
// how the runner handles a file boundary for a header-bearing format
// (spec.md §4.6 step 3 / §4.7).
type csvParser struct {
	sep       rune
	hasHeader bool
	columns   []string
	needHdr   bool
}

// NewCSV builds a CSV/TSV parser for the given field separator.
func NewCSV(sep rune, hasHeader bool) (Parser, error) {
	if sep == 0 {
		sep = ','
	}
	return &csvParser{sep: sep, hasHeader: hasHeader, needHdr: hasHeader}, nil
}

func (p *csvParser) Name() string { return "csv" }

func (p *csvParser) NeedsHeader() bool { return p.needHdr }

func (p *csvParser) SetHeader(headerLine string) error {
	row, err := p.parseRow(headerLine)
	if err != nil {
		return errf("invalid header row: %v", err)
	}
	p.columns = row
	p.needHdr = false
	return nil
}

func (p *csvParser) Parse(chunk string) (*event.Event, error) {
	if p.hasHeader && p.needHdr {
		return nil, errf("header not yet set for csv parser")
	}
	row, err := p.parseRow(chunk)
	if err != nil {
		return nil, errf("invalid csv row: %v", err)
	}

	e := event.New(chunk)
	for i, val := range row {
		name := p.columnName(i)
		e.Set(name, coerce(val))
	}
	return e, nil
}

func (p *csvParser) parseRow(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = p.sep
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return r.Read()
}

func (p *csvParser) columnName(i int) string {
	if i < len(p.columns) {
		return p.columns[i]
	}
	return "col" + itoaIndex(i+1)
}

// itoaIndex is a tiny positive-int formatter to avoid importing strconv
// solely for column naming.
func itoaIndex(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
