// Package export renders a room's cost sheet as an xlsx workbook with an
// Items sheet and a Summary sheet.
package export

import (
	"fmt"
	"html"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vbonduro/renobudget/internal/domain"
)

const (
	ItemsSheet   = "Items"
	SummarySheet = "Summary"
)

var itemHeader = []string{"Type", "Name", "Description", "Cost", "URL", "Note", "Image"}

// Sheet is the data exported for one room.
type Sheet struct {
	Room   string
	Items  []domain.Item
	Costs  domain.GeneralCosts
	Totals domain.Totals
}

// FileName returns the dated download name, e.g. kitchen_2025-01-12.xlsx.
func FileName(room string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", room, now.Format("2006-01-02"))
}

// Write renders s as a workbook to w. Stored text is entity-encoded, so it
// is decoded before it goes into cells.
func Write(w io.Writer, s Sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ItemsSheet); err != nil {
		return fmt.Errorf("failed to name items sheet: %w", err)
	}
	if err := writeRow(f, ItemsSheet, 1, toAny(itemHeader)); err != nil {
		return err
	}
	for i, item := range s.Items {
		row := []any{
			html.UnescapeString(item.Type),
			html.UnescapeString(item.Name),
			html.UnescapeString(item.Description),
			item.Cost,
			html.UnescapeString(item.URL),
			html.UnescapeString(item.Note),
			item.ImagePath,
		}
		if err := writeRow(f, ItemsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summary := [][]any{
		{"Room", s.Room},
		{"Designer", s.Costs.Designer},
		{"Demolition", s.Costs.Demolition},
		{"Materials", s.Costs.Materials},
		{"Labor", s.Costs.Labor},
		{"Items Total", s.Totals.ItemsTotal},
		{"General Total", s.Totals.GeneralTotal},
		{"Grand Total", s.Totals.GrandTotal},
	}
	for i, row := range summary {
		if err := writeRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to address cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
