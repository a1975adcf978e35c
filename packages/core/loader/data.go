package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/xuri/excelize/v2"
)

// LoadData reads a CSV or XLSX file into one mapping per data row, keyed by
// the header row. Cell values stay strings.
func (l *Loader) LoadData(path string) ([]map[string]any, error) {
	abs := l.Abs(path)
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("data file not found: %w", err)
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".csv":
		rows, err = readCSV(abs)
	case ".xlsx":
		rows, err = readXLSX(abs)
	default:
		return nil, fmt.Errorf("%w: data file should be .csv or .xlsx, got %s", failure.ErrFileFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tabulate(rows), nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrFileFormat, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// readXLSX reads the first sheet of a workbook.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrFileFormat, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", failure.ErrFileFormat)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// tabulate turns a header row plus data rows into mappings. Short rows fill
// missing columns with "", blank rows are skipped.
func tabulate(rows [][]string) []map[string]any {
	if len(rows) == 0 {
		return []map[string]any{}
	}
	header := rows[0]
	out := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		m := make(map[string]any, len(header))
		for i, name := range header {
			name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
			if name == "" {
				continue
			}
			if i < len(row) {
				m[name] = row[i]
			} else {
				m[name] = ""
			}
		}
		out = append(out, m)
	}
	return out
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
