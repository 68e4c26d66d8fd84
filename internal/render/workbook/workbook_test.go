package workbook

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/gigledger/gigtax/internal/render"
	"github.com/gigledger/gigtax/internal/render/rendertest"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func open(t *testing.T) *excelize.File {
	t.Helper()
	arts, err := New().Render(context.Background(), rendertest.Package())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "tax_export_2024.xlsx", arts[0].Name)
	assert.Equal(t, render.ContentTypeXLSX, arts[0].ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(arts[0].Data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// amountFor finds the Summary row labelled label and returns its amount cell.
func amountFor(t *testing.T, f *excelize.File, label string) string {
	t.Helper()
	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	for i, r := range rows {
		if len(r) > 1 && r[1] == label {
			cell, _ := excelize.CoordinatesToCellName(3, i+1)
			return cell
		}
	}
	t.Fatalf("no summary row %q", label)
	return ""
}

func assertNumber(t *testing.T, f *excelize.File, sheet, cell string, want float64) {
	t.Helper()
	typ, err := f.GetCellType(sheet, cell)
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ, "%s!%s", sheet, cell)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ, "%s!%s", sheet, cell)

	raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	got, err := strconv.ParseFloat(raw, 64)
	require.NoError(t, err, "%s!%s = %q", sheet, cell, raw)
	assert.InDelta(t, want, got, 1e-9)
}

func TestRender_Sheets(t *testing.T) {
	f := open(t)
	assert.Equal(t, []string{SheetSummary, SheetIncome, SheetExpenses, SheetMileage, SheetPayers, SheetWarnings}, f.GetSheetList())
}

func TestRender_SummaryCellsAreNumbers(t *testing.T) {
	f := open(t)
	assertNumber(t, f, SheetSummary, amountFor(t, f, "Gross receipts or sales"), 1300.50)
	assertNumber(t, f, SheetSummary, amountFor(t, f, "Deductible meals"), 40)
	assertNumber(t, f, SheetSummary, amountFor(t, f, "Net profit (or loss)"), 1072.32)
	assertNumber(t, f, SheetSummary, amountFor(t, f, "Mileage deduction"), 80.74)
}

func TestRender_EntityGrids(t *testing.T) {
	f := open(t)

	income, err := f.GetRows(SheetIncome)
	require.NoError(t, err)
	require.Len(t, income, 3)
	assert.Equal(t, "ID", income[0][0])
	assert.Equal(t, rendertest.TrickyDescription, income[1][3])
	assertNumber(t, f, SheetIncome, "H2", 1000)
	assertNumber(t, f, SheetIncome, "J2", 100)

	mileage, err := f.GetRows(SheetMileage)
	require.NoError(t, err)
	require.Len(t, mileage, 3)
	assertNumber(t, f, SheetMileage, "F3", 20.5)

	payers, err := f.GetRows(SheetPayers)
	require.NoError(t, err)
	require.Len(t, payers, 3)
	assert.Equal(t, "RideCo Inc", payers[1][0])
	assertNumber(t, f, SheetPayers, "D2", 1100)
}

func TestRender_WarningsSheet(t *testing.T) {
	f := open(t)
	rows, err := f.GetRows(SheetWarnings)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "payer_name", rows[1][3])
	assert.Contains(t, rows[1][4], rendertest.MissingPayerWarning)
}

func TestRender_NilPackage(t *testing.T) {
	_, err := New().Render(context.Background(), nil)
	assert.True(t, types.IsContractError(err))
}
