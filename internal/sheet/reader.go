package sheet

// reader.go opens workbooks and csv files.
//
// Workbooks are read with excelize using raw cell values, so article numbers
// and prices arrive as stored rather than as formatted by the cell style.
// CSV input passes through inputCleaner, which strips a UTF-8 BOM and
// replaces invalid UTF-8 bytes before encoding/csv sees them.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Open reads a tabular file, choosing the reader by extension.
// sheetName selects a worksheet in a workbook; "" means the first sheet.
// It is ignored for csv files.
func Open(path, sheetName string) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ReadXLSX(path, sheetName)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
		}
		defer f.Close()

		s, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		s.Name = filepath.Base(path)
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// ReadHeaders returns the non-empty header names of the first sheet of a file.
func ReadHeaders(path string) ([]string, error) {
	s, err := Open(path, "")
	if err != nil {
		return nil, err
	}

	headers := make([]string, 0, len(s.Headers))
	for _, h := range s.Headers {
		if h != "" {
			headers = append(headers, h)
		}
	}
	return headers, nil
}

// ReadXLSX reads one worksheet of a workbook on disk.
func ReadXLSX(path, sheetName string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	s, err := fromWorkbook(f, sheetName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

func fromWorkbook(f *excelize.File, sheetName string) (*Sheet, error) {
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	} else if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}

	return fromRows(sheetName, rows)
}

// ReadCSV reads a comma-separated table. Ragged rows are accepted.
func ReadCSV(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(newInputCleaner(r))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}

	return fromRows("csv", rows)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// inputCleaner drops a leading UTF-8 BOM and rewrites every invalid UTF-8
// byte as '?'. Memory use is bounded by the bufio buffer.
type inputCleaner struct {
	br         *bufio.Reader
	bomChecked bool
}

func newInputCleaner(r io.Reader) *inputCleaner {
	return &inputCleaner{br: bufio.NewReader(r)}
}

func (c *inputCleaner) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !c.bomChecked {
		c.bomChecked = true
		if head, err := c.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			c.br.Discard(len(utf8BOM))
		}
	}

	n := 0
	for n < len(p) {
		r, size, err := c.br.ReadRune()
		if err != nil {
			if n > 0 && err == io.EOF {
				return n, nil
			}
			return n, err
		}

		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
			continue
		}

		if utf8.RuneLen(r) > len(p)-n {
			// Does not fit; hand it out on the next call.
			c.br.UnreadRune()
			if n == 0 {
				return 0, io.ErrShortBuffer
			}
			return n, nil
		}
		n += utf8.EncodeRune(p[n:], r)
	}
	return n, nil
}
