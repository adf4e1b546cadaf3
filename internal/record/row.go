package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Column layout of a pfBlockerNG DNSBL row:
//
//	,domain,,timestamp,list,group[,strength]
const (
	FieldDomain   = 1
	FieldList     = 4
	FieldGroup    = 5
	FieldStrength = 6

	MinFields = 6
	MaxFields = 7
)

var (
	// ErrFieldCount is returned for rows that do not have 6 or 7 fields.
	ErrFieldCount = errors.New("unsupported number of fields")
	// ErrStrength is returned for a strength column outside {0,1,2}.
	ErrStrength = errors.New("unrecognized match strength")
)

// Row is one input line. Raw holds the exact bytes read, without the
// terminating newline, and is what gets written back on output.
type Row struct {
	Raw    string
	Fields []string
}

// ParseRow splits a raw line into its comma separated fields. Double quoted
// fields are unquoted the way encoding/csv does it; lines without a quote
// character take the fast path.
func ParseRow(raw string) Row {
	line := strings.TrimSuffix(raw, "\r")
	if !strings.ContainsRune(line, '"') {
		return Row{Raw: raw, Fields: strings.Split(line, ",")}
	}

	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		// not CSV after all; keep the literal text
		return Row{Raw: raw, Fields: strings.Split(line, ",")}
	}
	return Row{Raw: raw, Fields: fields}
}

func (r Row) field(i int) string {
	if i < len(r.Fields) {
		return r.Fields[i]
	}
	return ""
}

func (r Row) Width() int     { return len(r.Fields) }
func (r Row) Domain() string { return r.field(FieldDomain) }
func (r Row) List() string   { return r.field(FieldList) }
func (r Row) Group() string  { return r.field(FieldGroup) }

// Classify validates the row shape and returns its match strength. A row
// without the seventh column is a weak (exact match) entry.
func (r Row) Classify() (Strength, error) {
	if n := r.Width(); n < MinFields || n > MaxFields {
		return 0, fmt.Errorf("%w: %d", ErrFieldCount, n)
	}
	if r.Width() == MinFields {
		return Weak, nil
	}
	return ParseStrength(r.Fields[FieldStrength])
}

// ParseStrength parses the strength column. Only 0, 1 and 2 are accepted.
func ParseStrength(s string) (Strength, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < int(Weak) || v > int(Regex) {
		return 0, fmt.Errorf("%w: %q", ErrStrength, s)
	}
	return Strength(v), nil
}
