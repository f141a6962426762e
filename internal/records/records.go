// Package records parses bulk item files (a JSON array of objects, or CSV
// with a header row) into flat string records.
package records

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"
	"github.com/vbonduro/renobudget/internal/domain"
)

var (
	ErrEmpty       = errors.New("input is empty")
	ErrInvalidJSON = errors.New("invalid JSON")
	ErrNotArray    = errors.New("JSON is not an array")
	ErrNoRecords   = errors.New("no records")
)

type Format int

const (
	FormatCSV Format = iota
	FormatJSON
)

// Record is one parsed row. Keys are field names; missing keys mean the
// field was absent from the source, which differs from an empty value.
type Record map[string]string

// Fields maps the record onto the raw item fields.
func (r Record) Fields() domain.ItemFields {
	return domain.ItemFields{
		Type:        r["type"],
		Name:        r["name"],
		Description: r["description"],
		Cost:        r["cost"],
		URL:         r["url"],
		Note:        r["note"],
	}
}

// Has reports whether field was present in the source row.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Detect guesses the format of raw. Anything starting with '[' or '{' after
// leading whitespace is treated as JSON.
func Detect(raw string) Format {
	t := strings.TrimSpace(raw)
	if strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{") {
		return FormatJSON
	}
	return FormatCSV
}

// ParseJSON decodes an array of objects. Comments and trailing commas are
// tolerated. Elements that are not objects come back as empty records.
func ParseJSON(raw string) ([]Record, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmpty
	}

	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON([]byte(raw))))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", ErrInvalidJSON)
	}

	arr, ok := doc.([]any)
	if !ok {
		return nil, ErrNotArray
	}
	if len(arr) == 0 {
		return nil, ErrNoRecords
	}

	out := make([]Record, len(arr))
	for i, el := range arr {
		rec := Record{}
		if obj, ok := el.(map[string]any); ok {
			for k, v := range obj {
				rec[k] = stringify(v)
			}
		}
		out[i] = rec
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Row is one CSV data row with its 1-based line number in the source.
type Row struct {
	Line   int
	Values []string
}

type Table struct {
	Header []string
	Rows   []Row
}

// Record zips a row against the header. The caller must have checked that
// the row has as many values as the header.
func (t *Table) Record(row Row) Record {
	rec := make(Record, len(t.Header))
	for i, h := range t.Header {
		if i < len(row.Values) {
			rec[h] = row.Values[i]
		}
	}
	return rec
}

// ParseCSV reads a header row followed by data rows. Rows may have a
// different number of values than the header; callers decide how to report
// that. Quoted values with doubled quotes are unescaped.
func ParseCSV(raw string) (*Table, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmpty
	}

	r := csv.NewReader(strings.NewReader(strings.TrimSpace(raw)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var t Table
	for {
		values, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		for i := range values {
			values[i] = strings.TrimSpace(values[i])
		}
		if t.Header == nil {
			t.Header = values
			continue
		}
		line, _ := r.FieldPos(0)
		t.Rows = append(t.Rows, Row{Line: line, Values: values})
	}

	if len(t.Rows) == 0 {
		return nil, ErrNoRecords
	}
	return &t, nil
}
