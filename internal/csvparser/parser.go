// =============================================================================
// gigtax - CSV Parser Module
// =============================================================================
//
// This module reads the CSV exports users bring in (gig logs, expense
// ledgers, mileage logs, payer lists) into raw rows keyed by column name.
//
// FEATURES:
//   - Configurable delimiter (comma, pipe, tab, semicolon)
//   - Multi-line headers, merged into one name per column
//   - Custom data start row
//   - Header names canonicalized to lower_snake_case ("Payer Name" becomes
//     "payer_name") so the normalizer's column aliases match
//   - Lazy quotes and ragged rows tolerated
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gigledger/gigtax/internal/config"
	"github.com/gigledger/gigtax/internal/normalizer"
	"github.com/gigledger/gigtax/internal/types"
)

// ErrEmpty is returned for input with no rows at all.
var ErrEmpty = errors.New("CSV file is empty")

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents a parsed CSV file.
type CSVData struct {
	// Headers contains the canonical column names.
	Headers []string

	// Rows contains the data rows keyed by header. Blank rows are skipped.
	Rows []types.RawRow

	// SourceFile is the path the data came from, empty for readers.
	SourceFile string

	// RowCount is the number of data rows.
	RowCount int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings.
//
// RETURNS:
//   - The parsed data.
//   - ErrEmpty (wrapped) for a file without rows, or any read error.
func Parse(filePath string, settings config.CSVSettings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(bufio.NewReader(file), settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	data.SourceFile = filePath
	return data, nil
}

// ParseReader reads CSV from r.
//
// PARSING PROCESS:
//   1. Configure the reader with the delimiter
//   2. Read and merge the header rows
//   3. Read data rows from the configured start row
//   4. Convert each row to a RawRow keyed by header
func ParseReader(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	csvReader := csv.NewReader(r)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(allRows) == 0 {
		return nil, ErrEmpty
	}

	headers, err := extractHeaders(allRows, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to extract headers: %w", err)
	}

	rows := extractDataRows(allRows, headers, settings)
	return &CSVData{
		Headers:  headers,
		Rows:     rows,
		RowCount: len(rows),
	}, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Ragged rows are padded or truncated against the headers.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// extractHeaders extracts and merges the header rows.
//
// MULTI-LINE HEADER HANDLING:
//   Non-empty cells of each column are joined with a space, then the name is
//   canonicalized.
//
//   Row 1: "Payer", "",       "Trip"
//   Row 2: "Name",  "Amount", "Miles"
//   Result: "payer_name", "amount", "trip_miles"
func extractHeaders(allRows [][]string, settings config.CSVSettings) ([]string, error) {
	headerRows := settings.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}
	if len(allRows) < headerRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	maxCols := 0
	for i := 0; i < headerRows; i++ {
		if len(allRows[i]) > maxCols {
			maxCols = len(allRows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < headerRows; row++ {
			if col < len(allRows[row]) {
				if value := strings.TrimSpace(allRows[row][col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}
	return cleanHeaders(headers), nil
}

// cleanHeaders canonicalizes header names. Empty headers become column_N.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimPrefix(header, "\ufeff")
		header = normalizer.CanonicalColumn(header)
		if header == "" {
			header = fmt.Sprintf("column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// extractDataRows converts the data rows to RawRows. Missing trailing cells
// read as empty strings.
func extractDataRows(allRows [][]string, headers []string, settings config.CSVSettings) []types.RawRow {
	startIndex := settings.DataStartRow - 1
	if startIndex < 0 {
		startIndex = settings.HeaderRows
	}
	if startIndex < 1 {
		startIndex = 1
	}
	if startIndex >= len(allRows) {
		return []types.RawRow{}
	}

	rows := make([]types.RawRow, 0, len(allRows)-startIndex)
	for _, row := range allRows[startIndex:] {
		if isRowEmpty(row) {
			continue
		}
		rowMap := make(types.RawRow, len(headers))
		for colIndex, header := range headers {
			if colIndex < len(row) {
				rowMap[header] = strings.TrimSpace(row[colIndex])
			} else {
				rowMap[header] = ""
			}
		}
		rows = append(rows, rowMap)
	}
	return rows
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
