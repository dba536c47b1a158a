package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/m2o/internal/pricing"
)

// FileName returns the download name for an export in currency, e.g.
// masterdata_output_DACH_-_EURO.xlsx. Spaces become underscores and dots
// are dropped.
func FileName(currency, ext string) string {
	c := strings.ReplaceAll(strings.TrimSpace(currency), " ", "_")
	c = strings.ReplaceAll(c, ".", "")
	return fmt.Sprintf("masterdata_output_%s.%s", c, strings.TrimPrefix(ext, "."))
}

// WriteXLSX writes t as a single-sheet workbook. Found numeric prices are
// written as numbers, everything else as text.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, h := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header %q: %w", h, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style header %q: %w", h, err)
		}
	}

	numeric := make(map[int]pricing.Kind, len(t.PriceColumn))
	for kind, pos := range t.PriceColumn {
		numeric[pos] = kind
	}

	for r, row := range t.Rows {
		for c, v := range row.Cells {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)

			if kind, ok := numeric[c]; ok {
				if res := row.Prices[kind]; res.Outcome == pricing.Found && res.Price.Numeric {
					if err := f.SetCellFloat(SheetName, cell, res.Price.Value.InexactFloat64(), -1, 64); err != nil {
						return fmt.Errorf("write %s: %w", cell, err)
					}
					continue
				}
			}
			if v == "" {
				continue
			}
			if err := f.SetCellStr(SheetName, cell, v); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	for i, h := range t.Columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, columnWidth(h)); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func columnWidth(header string) float64 {
	w := float64(len(header)) + 2
	switch {
	case w < 12:
		return 12
	case w > 40:
		return 40
	}
	return w
}

// WriteCSV writes t as comma-separated values with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
