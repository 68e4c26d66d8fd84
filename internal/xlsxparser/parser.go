// =============================================================================
// gigtax - XLSX Workbook Parser
// =============================================================================
//
// This module reads a bookkeeping workbook into raw rows. Each entity lives on
// its own sheet; row 1 of every sheet holds the column headers.
//
// WORKBOOK STRUCTURE (default sheet names):
//
//   | Sheet    | Typical columns                                        |
//   |----------|--------------------------------------------------------|
//   | Gigs     | Date, Platform, Payer, Amount, Fees, Tips, Category    |
//   | Expenses | Date, Category, Merchant, Amount, Business Use Pct     |
//   | Mileage  | Date, Origin, Destination, Purpose, Miles, Estimate    |
//   | Payers   | ID, Name, Tax ID, Email                                |
//
// CELL HANDLING:
//   - Values are read raw, so amounts keep full precision regardless of the
//     cell's display format.
//   - Date columns stored as spreadsheet serial numbers are converted to
//     YYYY-MM-DD.
//   - A missing sheet reads as an empty collection.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gigledger/gigtax/internal/normalizer"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// SHEET NAMES
// =============================================================================

// SheetNames maps each entity to the sheet that holds it. Sheet names match
// case-insensitively.
type SheetNames struct {
	Income   []string
	Expenses []string
	Mileage  []string
	Payers   []string
}

// DefaultSheetNames returns the default sheet names and their aliases.
func DefaultSheetNames() SheetNames {
	return SheetNames{
		Income:   []string{"Gigs", "Income"},
		Expenses: []string{"Expenses"},
		Mileage:  []string{"Mileage", "Trips"},
		Payers:   []string{"Payers", "Clients"},
	}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a workbook file with the default sheet names.
func Parse(path string) (*types.RawData, error) {
	return ParseWithSheets(path, DefaultSheetNames())
}

// ParseWithSheets reads a workbook file.
//
// PARAMETERS:
//   - path: The path to the .xlsx file.
//   - sheets: Which sheet holds which entity.
//
// RETURNS:
//   - The raw rows of every entity.
//   - An error if the file cannot be opened or a sheet cannot be read.
func ParseWithSheets(path string, sheets SheetNames) (*types.RawData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return parseFile(f, sheets)
}

// ParseReader reads a workbook from r.
func ParseReader(r io.Reader, sheets SheetNames) (*types.RawData, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return parseFile(f, sheets)
}

func parseFile(f *excelize.File, sheets SheetNames) (*types.RawData, error) {
	var data types.RawData
	targets := []struct {
		names []string
		dst   *[]types.RawRow
	}{
		{sheets.Income, &data.Income},
		{sheets.Expenses, &data.Expenses},
		{sheets.Mileage, &data.Mileage},
		{sheets.Payers, &data.Payers},
	}

	for _, t := range targets {
		sheet, ok := findSheet(f, t.names)
		if !ok {
			*t.dst = []types.RawRow{}
			continue
		}
		rows, err := parseSheet(f, sheet)
		if err != nil {
			return nil, fmt.Errorf("error parsing sheet '%s': %w", sheet, err)
		}
		*t.dst = rows
	}
	return &data, nil
}

func findSheet(f *excelize.File, names []string) (string, bool) {
	for _, want := range names {
		for _, have := range f.GetSheetList() {
			if strings.EqualFold(strings.TrimSpace(have), want) {
				return have, true
			}
		}
	}
	return "", false
}

// parseSheet reads one sheet: row 1 is the header, every later non-blank row
// becomes a RawRow.
func parseSheet(f *excelize.File, sheet string) ([]types.RawRow, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return []types.RawRow{}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = normalizer.CanonicalColumn(h)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	out := make([]types.RawRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isRowEmpty(row) {
			continue
		}
		raw := make(types.RawRow, len(headers))
		for i, h := range headers {
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if isDateColumn(h) {
				value = serialToDate(value)
			}
			raw[h] = value
		}
		out = append(out, raw)
	}
	return out, nil
}

// isDateColumn reports whether a canonical header names a date.
func isDateColumn(h string) bool {
	return h == "date" || strings.HasSuffix(h, "_date") || strings.HasPrefix(h, "date_")
}

// serialToDate converts a spreadsheet serial date to YYYY-MM-DD. Anything
// that is not a plausible serial is returned unchanged.
func serialToDate(v string) string {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial < 1 || serial > 2958465 {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Format("2006-01-02")
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
