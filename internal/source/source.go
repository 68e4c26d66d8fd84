// =============================================================================
// gigtax - Data Sources
// =============================================================================
//
// This module loads the raw rows of one user and tax year. Three sources are
// supported:
//
//   | Type     | Location        | Reader                          |
//   |----------|-----------------|---------------------------------|
//   | dir      | directory       | gigs/expenses/mileage/payers.csv|
//   | workbook | .xlsx file      | one sheet per entity            |
//   | sqlite   | database file   | one table per entity            |
//
// Sources only move rows. Parsing amounts and dates, and checking them, is
// left to the normalizer and validator.
//
// =============================================================================

package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gigledger/gigtax/internal/config"
	"github.com/gigledger/gigtax/internal/csvparser"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/gigledger/gigtax/internal/xlsxparser"
)

// Query selects the rows to load.
type Query struct {
	// UserID filters multi-user sources. File sources ignore it.
	UserID string

	// TaxYear filters dated rows in sources that can query by date.
	TaxYear int
}

// Source loads raw input rows.
type Source interface {
	Load(ctx context.Context, q Query) (*types.RawData, error)
}

// Open returns the source described by settings.
//
// PARAMETERS:
//   - settings: The source type and location.
//   - csv: The CSV reader settings used by the dir source.
//
// RETURNS:
//   - The source. Call Close on it when it implements io.Closer.
//   - An error for an unknown type or a database that cannot be opened.
func Open(settings config.SourceSettings, csv config.CSVSettings) (Source, error) {
	switch settings.Type {
	case config.SourceDir, "":
		return &DirSource{Dir: settings.Path, Settings: csv}, nil
	case config.SourceWorkbook:
		return &WorkbookSource{Path: settings.Path, Sheets: xlsxparser.DefaultSheetNames()}, nil
	case config.SourceSQLite:
		return OpenSQLite(settings.Path)
	default:
		return nil, fmt.Errorf("unknown source type %q", settings.Type)
	}
}

// =============================================================================
// DIRECTORY SOURCE
// =============================================================================

// File names read by DirSource.
const (
	GigsFile     = "gigs.csv"
	ExpensesFile = "expenses.csv"
	MileageFile  = "mileage.csv"
	PayersFile   = "payers.csv"
)

// DirSource reads one CSV file per entity from a directory. A missing or
// empty file is an empty collection.
type DirSource struct {
	Dir      string
	Settings config.CSVSettings
}

// Load implements Source.
func (s *DirSource) Load(ctx context.Context, _ Query) (*types.RawData, error) {
	info, err := os.Stat(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", s.Dir)
	}

	var data types.RawData
	files := []struct {
		name string
		dst  *[]types.RawRow
	}{
		{GigsFile, &data.Income},
		{ExpensesFile, &data.Expenses},
		{MileageFile, &data.Mileage},
		{PayersFile, &data.Payers},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := s.readFile(filepath.Join(s.Dir, f.name))
		if err != nil {
			return nil, err
		}
		*f.dst = rows
	}
	return &data, nil
}

func (s *DirSource) readFile(path string) ([]types.RawRow, error) {
	parsed, err := csvparser.Parse(path, s.Settings)
	switch {
	case err == nil:
		return parsed.Rows, nil
	case errors.Is(err, os.ErrNotExist), errors.Is(err, csvparser.ErrEmpty):
		return []types.RawRow{}, nil
	default:
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
}

// =============================================================================
// WORKBOOK SOURCE
// =============================================================================

// WorkbookSource reads one sheet per entity from an .xlsx file.
type WorkbookSource struct {
	Path   string
	Sheets xlsxparser.SheetNames
}

// Load implements Source.
func (s *WorkbookSource) Load(ctx context.Context, _ Query) (*types.RawData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := xlsxparser.ParseWithSheets(s.Path, s.Sheets)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook %s: %w", s.Path, err)
	}
	return data, nil
}
