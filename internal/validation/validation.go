// Package validation checks items, uploaded files, and bulk import files
// against the room catalog. Every check reports problems as a list of
// human-readable messages; an empty list means the input is valid.
package validation

import (
	"fmt"
	"html"
	"math"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vbonduro/renobudget/internal/catalog"
	"github.com/vbonduro/renobudget/internal/domain"
)

const (
	MaxDescriptionLen = 500
	MaxNoteLen        = 1000
	MaxImageBytes     = 5 * 1024 * 1024
)

// ImageMIMETypes are the image formats accepted for item attachments.
var ImageMIMETypes = []string{"image/jpeg", "image/png", "image/gif"}

type Validator struct {
	catalog *catalog.Catalog
}

func New(c *catalog.Catalog) *Validator {
	return &Validator{catalog: c}
}

func (v *Validator) Catalog() *catalog.Catalog {
	return v.catalog
}

// ValidateItem checks item against the rules for room. An empty room skips
// the type membership check.
func (v *Validator) ValidateItem(item domain.Item, room string) []string {
	var errs []string

	if item.Type == "" {
		errs = append(errs, "Item type is required")
	}
	if item.Name == "" {
		errs = append(errs, "Item name is required")
	}

	if room != "" && item.Type != "" && !v.catalog.IsAllowed(room, item.Type) {
		errs = append(errs, fmt.Sprintf("Invalid item type for %s. Allowed types: %s",
			room, strings.Join(v.catalog.AllowedTypes(room), ", ")))
	}

	switch {
	case math.IsNaN(item.Cost) || math.IsInf(item.Cost, 0):
		errs = append(errs, "Cost must be a valid number")
	case item.Cost < 0:
		errs = append(errs, "Cost cannot be negative")
	}

	if item.URL != "" && !IsValidURL(item.URL) {
		errs = append(errs, "Invalid URL format")
	}

	if utf8.RuneCountInString(item.Description) > MaxDescriptionLen {
		errs = append(errs, fmt.Sprintf("Description cannot exceed %d characters", MaxDescriptionLen))
	}
	if utf8.RuneCountInString(item.Note) > MaxNoteLen {
		errs = append(errs, fmt.Sprintf("Note cannot exceed %d characters", MaxNoteLen))
	}

	return errs
}

// IsValidURL reports whether s is an absolute URL. Entity-encoded text from
// the sanitizer is decoded first, so stored URLs validate the same as raw ones.
func IsValidURL(s string) bool {
	u, err := url.Parse(html.UnescapeString(s))
	if err != nil {
		return false
	}
	return u.Scheme != "" && (u.Host != "" || u.Opaque != "")
}

// ParseCost converts a raw cost field to a number. An empty field is zero.
// Text that is not a finite number comes back as NaN so that ValidateItem
// reports it.
func ParseCost(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

// CoerceCost converts a raw cost field to a non-negative number, mapping
// anything invalid or negative to zero.
func CoerceCost(raw string) float64 {
	f := ParseCost(raw)
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	return f
}

// ValidateGeneralCosts checks that every general cost key is present with a
// non-negative number.
func ValidateGeneralCosts(costs map[string]string) []string {
	var errs []string
	for _, key := range domain.GeneralCostKeys {
		raw, ok := costs[key]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s cost is required", key))
			continue
		}
		f := ParseCost(raw)
		switch {
		case math.IsNaN(f):
			errs = append(errs, fmt.Sprintf("%s cost must be a valid number", key))
		case f < 0:
			errs = append(errs, fmt.Sprintf("%s cost cannot be negative", key))
		}
	}
	return errs
}

type FileInfo struct {
	Name     string
	MIMEType string
	Size     int64
}

// ValidateFile checks a file's MIME type and size.
func ValidateFile(f FileInfo, allowed []string, maxBytes int64) []string {
	var errs []string
	if !slices.Contains(allowed, f.MIMEType) {
		errs = append(errs, fmt.Sprintf("File type %s is not allowed. Allowed types: %s",
			f.MIMEType, strings.Join(allowed, ", ")))
	}
	if f.Size > maxBytes {
		errs = append(errs, fmt.Sprintf("File size exceeds maximum allowed size of %sMB", formatMB(maxBytes)))
	}
	return errs
}

func formatMB(n int64) string {
	return strconv.FormatFloat(float64(n)/1024/1024, 'f', -1, 64)
}

var snapshotName = regexp.MustCompile(`^MACHINE_MADE_([a-z-]+)_(items|chat|sample|costs)_\d{2}\.\d{2}\.\d{2}\.\d{2}\.\d{2}\.\d{2}$`)

// ValidateSnapshotName reports whether name is a machine-made snapshot file
// name, returning the room and kind it encodes.
func ValidateSnapshotName(name string) (room, kind string, ok bool) {
	m := snapshotName.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
