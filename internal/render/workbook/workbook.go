// =============================================================================
// gigtax - Workbook Renderer
// =============================================================================
//
// This renderer writes the package as an XLSX workbook with the sheets
// Summary, Income, Expenses, Mileage, Payers and Warnings.
//
// CELL RULES:
//   - Money and miles are written as numbers, never as formatted strings, so
//     spreadsheet tools can re-aggregate them. A number format only changes
//     how they display.
//   - Every value comes from the package as-is; nothing is summed here.
//
// =============================================================================

package workbook

import (
	"context"
	"fmt"
	"time"

	"github.com/gigledger/gigtax/internal/money"
	"github.com/gigledger/gigtax/internal/render"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order.
const (
	SheetSummary  = "Summary"
	SheetIncome   = "Income"
	SheetExpenses = "Expenses"
	SheetMileage  = "Mileage"
	SheetPayers   = "Payers"
	SheetWarnings = "Warnings"
)

// numFmtMoney is the built-in "#,##0.00" format.
const numFmtMoney = 4

// Renderer renders the workbook.
type Renderer struct{}

// New creates a workbook renderer.
func New() *Renderer { return &Renderer{} }

// Format implements render.Renderer.
func (r *Renderer) Format() render.Format { return render.FormatXLSX }

// Render implements render.Renderer.
func (r *Renderer) Render(ctx context.Context, pkg *types.TaxExportPackage) ([]render.Artifact, error) {
	if err := render.CheckPackage(render.FormatXLSX, pkg); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	w, err := newWriter(f)
	if err != nil {
		return nil, err
	}

	sheets := []struct {
		name  string
		write func(*types.TaxExportPackage) error
	}{
		{SheetSummary, w.summary},
		{SheetIncome, w.income},
		{SheetExpenses, w.expenses},
		{SheetMileage, w.mileage},
		{SheetPayers, w.payers},
		{SheetWarnings, w.warnings},
	}
	for i, s := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return nil, fmt.Errorf("failed to name sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", s.name, err)
		}
		if err := s.write(pkg); err != nil {
			return nil, fmt.Errorf("failed to write sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return []render.Artifact{{
		Name:        render.BaseName(pkg) + ".xlsx",
		ContentType: render.ContentTypeXLSX,
		Data:        buf.Bytes(),
	}}, nil
}

// =============================================================================
// SHEET WRITERS
// =============================================================================

type writer struct {
	f      *excelize.File
	bold   int
	amount int
}

func newWriter(f *excelize.File) (*writer, error) {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
	if err != nil {
		return nil, fmt.Errorf("failed to create amount style: %w", err)
	}
	return &writer{f: f, bold: bold, amount: amount}, nil
}

// grid writes a header row and data rows starting at A1, styles the header
// bold and applies the money format to the listed 1-based columns.
func (w *writer) grid(sheet string, header []any, rows [][]any, moneyCols ...int) error {
	if err := w.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := w.f.SetCellStyle(sheet, "A1", last, w.bold); err != nil {
		return err
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := w.f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		for _, col := range moneyCols {
			top, _ := excelize.CoordinatesToCellName(col, 2)
			bottom, _ := excelize.CoordinatesToCellName(col, len(rows)+1)
			if err := w.f.SetCellStyle(sheet, top, bottom, w.amount); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *writer) summary(pkg *types.TaxExportPackage) error {
	meta := pkg.Metadata
	sc := pkg.ScheduleC

	rows := [][]any{
		{"Tax year", meta.TaxYear, ""},
		{"Period", fmt.Sprintf("%s to %s", day(meta.StartDate), day(meta.EndDate)), ""},
		{"Export ID", meta.ExportID, ""},
		{"Currency", meta.Currency, ""},
		{},
	}
	for _, li := range pkg.ScheduleCLineItems {
		rows = append(rows, []any{li.Number, li.Label, num(li.Amount)})
	}
	rows = append(rows,
		[]any{"28", "Total expenses", num(sc.TotalExpenses)},
		[]any{"31", "Net profit (or loss)", num(sc.NetProfit)},
		[]any{},
		[]any{"", "Mileage deduction", num(pkg.MileageSummary.Deduction)},
		[]any{"", "Self-employment tax basis", num(sc.SETaxBasis)},
		[]any{"", "Self-employment tax (estimate)", num(sc.SETax)},
		[]any{"", "Estimated quarterly payment", num(sc.EstimatedQuarterlyTax)},
	)
	for _, it := range sc.OtherExpenses {
		rows = append(rows, []any{"27a", it.Description, num(it.Amount)})
	}

	if err := w.grid(SheetSummary, []any{"Line", "Description", "Amount"}, rows, 3); err != nil {
		return err
	}
	return w.f.SetColWidth(SheetSummary, "B", "B", 44)
}

func (w *writer) income(pkg *types.TaxExportPackage) error {
	rows := make([][]any, 0, len(pkg.IncomeRows))
	for _, r := range pkg.IncomeRows {
		rows = append(rows, []any{r.ID, day(r.Date), r.Platform, r.Description, r.Category, r.PayerName, r.PayerTaxID,
			num(r.Amount), num(r.Fees), num(r.Tips)})
	}
	header := []any{"ID", "Date", "Platform", "Description", "Category", "Payer", "Payer Tax ID", "Amount", "Fees", "Tips"}
	return w.grid(SheetIncome, header, rows, 8, 9, 10)
}

func (w *writer) expenses(pkg *types.TaxExportPackage) error {
	rows := make([][]any, 0, len(pkg.ExpenseRows))
	for _, r := range pkg.ExpenseRows {
		rows = append(rows, []any{r.ID, day(r.Date), r.Category, r.Merchant, r.Description,
			num(r.Amount), r.Classification.Line.Label(), num(r.EffectiveFraction())})
	}
	header := []any{"ID", "Date", "Category", "Merchant", "Description", "Amount", "Schedule C Line", "Deductible Fraction"}
	return w.grid(SheetExpenses, header, rows, 6)
}

func (w *writer) mileage(pkg *types.TaxExportPackage) error {
	rows := make([][]any, 0, len(pkg.MileageRows))
	for _, r := range pkg.MileageRows {
		rows = append(rows, []any{r.ID, day(r.Date), r.Origin, r.Destination, r.Purpose, num(r.Miles), r.IsEstimate})
	}
	header := []any{"ID", "Date", "Origin", "Destination", "Purpose", "Miles", "Estimate"}
	return w.grid(SheetMileage, header, rows)
}

func (w *writer) payers(pkg *types.TaxExportPackage) error {
	rows := make([][]any, 0, len(pkg.PayerSummaryRows))
	for _, r := range pkg.PayerSummaryRows {
		rows = append(rows, []any{r.PayerName, r.TaxIDHint, r.PaymentCount, num(r.Gross), num(r.Fees), num(r.Net),
			day(r.FirstPayment), day(r.LastPayment)})
	}
	header := []any{"Payer", "Tax ID Hint", "Payments", "Gross", "Fees", "Net", "First Payment", "Last Payment"}
	return w.grid(SheetPayers, header, rows, 4, 5, 6)
}

func (w *writer) warnings(pkg *types.TaxExportPackage) error {
	rows := make([][]any, 0, len(pkg.Warnings))
	for _, is := range pkg.Warnings {
		rows = append(rows, []any{string(is.Entity), is.RecordID, is.Row, is.Field, is.Message})
	}
	return w.grid(SheetWarnings, []any{"Entity", "Record", "Row", "Field", "Message"}, rows)
}

func num(d decimal.Decimal) float64 {
	return money.Float(d)
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
