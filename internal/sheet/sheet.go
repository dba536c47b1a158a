// Package sheet reads tabular sources (xlsx workbooks and csv files) into a
// uniform header + rows shape and validates their headers.
//
// Every input of the configurator arrives through this package: the flat
// catalog, the wholesale and retail price matrices, and the masterdata
// template whose header row defines the export column order.
package sheet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingColumns is returned when a source lacks required headers.
	ErrMissingColumns = errors.New("missing required column")

	// ErrSheetNotFound is returned when a named worksheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrNoHeader is returned for a source without a header row.
	ErrNoHeader = errors.New("empty file: no header row")

	// ErrUnsupportedFormat is returned for file extensions we cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Sheet is one table: a header row followed by data rows.
// Rows may be shorter than Headers; missing trailing cells read as "".
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (s *Sheet) Len() int {
	return len(s.Rows)
}

// HeaderIndex maps lowercased column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a header row.
// The first occurrence of a repeated header wins.
func MakeHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		key := strings.ToLower(CleanCell(h))
		if key == "" {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

// Has reports whether the named column exists.
func (h HeaderIndex) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// Cell returns the cleaned value of the named column in row, or "".
func (h HeaderIndex) Cell(row []string, name string) string {
	pos, ok := h[strings.ToLower(name)]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// FieldSpec describes one expected column of a source.
type FieldSpec struct {
	Name     string // Header name, matched case-insensitively
	Required bool   // Source is rejected when the column is absent
}

// ValidateHeaders checks that every required column is present and returns
// the header index. The error names every missing column, not just the first.
func ValidateHeaders(headers []string, specs []FieldSpec) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)

	var missing []string
	for _, spec := range specs {
		if spec.Required && !idx.Has(spec.Name) {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return idx, nil
}

// CleanCell strips spreadsheet artifacts from a cell value: surrounding
// whitespace and one pair of double quotes wrapping the whole cell, with or
// without the Excel formula prefix (="..."). Quotes inside the value, such
// as the inch mark in Ply 6', are kept.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	switch {
	case len(s) >= 3 && strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`):
		s = s[2 : len(s)-1]
	case len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`):
		s = s[1 : len(s)-1]
	default:
		return s
	}

	return strings.TrimSpace(s)
}

// fromRows turns raw rows into a Sheet. The first non-empty row is the
// header; blank rows are dropped.
func fromRows(name string, rows [][]string) (*Sheet, error) {
	start := -1
	for i, row := range rows {
		if !blank(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoHeader)
	}

	headers := make([]string, len(rows[start]))
	for i, h := range rows[start] {
		headers[i] = CleanCell(h)
	}

	data := make([][]string, 0, len(rows)-start-1)
	for _, row := range rows[start+1:] {
		if blank(row) {
			continue
		}
		data = append(data, row)
	}

	return &Sheet{Name: name, Headers: headers, Rows: data}, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
