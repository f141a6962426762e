package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/records"
)

// DefaultRequiredFields are the fields every imported record must carry.
var DefaultRequiredFields = []string{"type", "name", "cost"}

// BulkResult is the outcome of ValidateBulkRecords. Records is nil whenever
// Errors is non-empty.
type BulkResult struct {
	Valid   bool
	Errors  []string
	Records []records.Record
}

// ValidateBulkRecords parses raw as a JSON array or a CSV file with a header
// row, then checks required fields, room types, and the single-instance rule
// across the whole batch.
func (v *Validator) ValidateBulkRecords(raw string, required []string, room string) BulkResult {
	if records.Detect(raw) == records.FormatJSON {
		return v.validateJSON(raw, required, room)
	}
	return v.validateCSV(raw, required, room)
}

func (v *Validator) validateJSON(raw string, required []string, room string) BulkResult {
	recs, err := records.ParseJSON(raw)
	switch {
	case errors.Is(err, records.ErrEmpty):
		return failed("JSON file is empty")
	case errors.Is(err, records.ErrInvalidJSON):
		return failed("Invalid JSON format")
	case errors.Is(err, records.ErrNotArray):
		return failed("JSON must contain an array of items")
	case errors.Is(err, records.ErrNoRecords):
		return failed("JSON file must contain at least one item")
	case err != nil:
		return failed(err.Error())
	}

	b := v.newBatch(room)
	for i, rec := range recs {
		label := fmt.Sprintf("Item %d", i+1)
		if missing := missingFields(rec, required); len(missing) > 0 {
			b.errs = append(b.errs, fmt.Sprintf("%s is missing required fields: %s", label, strings.Join(missing, ", ")))
			continue
		}
		b.add(label, rec)
	}
	return b.result()
}

func (v *Validator) validateCSV(raw string, required []string, room string) BulkResult {
	tbl, err := records.ParseCSV(raw)
	switch {
	case errors.Is(err, records.ErrEmpty):
		return failed("CSV file is empty")
	case errors.Is(err, records.ErrNoRecords):
		return failed("CSV file must contain headers and at least one data row")
	case err != nil:
		return failed("Invalid CSV format")
	}

	var missing []string
	for _, h := range required {
		if !slices.Contains(tbl.Header, h) {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return failed("Missing required headers: " + strings.Join(missing, ", "))
	}

	b := v.newBatch(room)
	for _, row := range tbl.Rows {
		label := fmt.Sprintf("Line %d", row.Line)
		if len(row.Values) != len(tbl.Header) {
			b.errs = append(b.errs, fmt.Sprintf("%s has %d values, expected %d", label, len(row.Values), len(tbl.Header)))
			continue
		}
		b.add(label, tbl.Record(row))
	}
	return b.result()
}

// batch accumulates records while enforcing room membership and the
// single-instance rule.
type batch struct {
	v     *Validator
	room  string
	seen  map[string]bool
	recs  []records.Record
	errs  []string
	check bool
}

func (v *Validator) newBatch(room string) *batch {
	_, known := v.catalog.Room(room)
	return &batch{v: v, room: room, seen: map[string]bool{}, check: known}
}

func (b *batch) add(label string, rec records.Record) {
	typ := rec["type"]
	if b.check && !b.v.catalog.IsAllowed(b.room, typ) {
		b.errs = append(b.errs, fmt.Sprintf("%s has invalid type for %s", label, b.room))
		return
	}
	if !b.v.catalog.AllowsMultiple(b.room, typ) {
		if b.seen[typ] {
			b.errs = append(b.errs, fmt.Sprintf("Multiple entries for %s are not allowed", typ))
			return
		}
		b.seen[typ] = true
	}
	b.recs = append(b.recs, rec)
}

func (b *batch) result() BulkResult {
	if len(b.errs) > 0 {
		return BulkResult{Errors: b.errs}
	}
	return BulkResult{Valid: true, Records: b.recs}
}

func failed(msg string) BulkResult {
	return BulkResult{Errors: []string{msg}}
}

func missingFields(rec records.Record, required []string) []string {
	var missing []string
	for _, f := range required {
		if !rec.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// ValidateItems checks a complete replacement collection for room: every
// item on its own, then the single-instance rule across the collection.
func (v *Validator) ValidateItems(items []domain.Item, room string) []string {
	var errs []string
	seen := map[string]bool{}
	for i, item := range items {
		for _, msg := range v.ValidateItem(item, room) {
			errs = append(errs, fmt.Sprintf("Item %d: %s", i+1, msg))
		}
		if item.Type == "" || v.catalog.AllowsMultiple(room, item.Type) {
			continue
		}
		if seen[item.Type] {
			errs = append(errs, fmt.Sprintf("Multiple entries for %s are not allowed", item.Type))
		}
		seen[item.Type] = true
	}
	return errs
}
