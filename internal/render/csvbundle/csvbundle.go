// =============================================================================
// gigtax - Delimited Bundle Renderer
// =============================================================================
//
// This renderer writes one comma-separated table per entity plus the
// Schedule C summary:
//
//   income.csv              one row per gig
//   expenses.csv            one row per expense, with its resolved line
//   mileage.csv             one row per trip
//   payers.csv              the per-payer rollup
//   mileage_summary.csv     a single row of mileage totals
//   schedule_c_summary.csv  line items, totals, line 27a breakdown, notes
//
// QUOTING (RFC 4180):
//   A field is quoted whenever it contains a comma, a double quote, a CR or
//   an LF; inner quotes are doubled. Re-reading the table yields the original
//   strings unchanged.
//
// OUTPUT SHAPE:
//   ShapeFiles returns one artifact per table. ShapeArchive returns a single
//   zip holding the same tables. Both shapes share every line of table code.
//
// =============================================================================

package csvbundle

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/gigledger/gigtax/internal/money"
	"github.com/gigledger/gigtax/internal/render"
	"github.com/gigledger/gigtax/internal/types"
)

// Shape selects how the tables are packaged.
type Shape int

const (
	// ShapeArchive packs every table into one zip artifact.
	ShapeArchive Shape = iota
	// ShapeFiles returns one artifact per table.
	ShapeFiles
)

// Table file names, in output order.
const (
	FileIncome         = "income.csv"
	FileExpenses       = "expenses.csv"
	FileMileage        = "mileage.csv"
	FilePayers         = "payers.csv"
	FileMileageSummary = "mileage_summary.csv"
	FileSummary        = "schedule_c_summary.csv"
)

// Options contains options for the bundle renderer.
type Options struct {
	// Shape selects archive or loose files.
	// Default: ShapeArchive
	Shape Shape

	// UseCRLF terminates records with \r\n instead of \n.
	// Default: false
	UseCRLF bool
}

// DefaultOptions returns the default bundle options.
func DefaultOptions() Options {
	return Options{Shape: ShapeArchive}
}

// Renderer renders the delimited bundle.
type Renderer struct {
	options Options
}

// New creates a bundle renderer with default options.
func New() *Renderer {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a bundle renderer with custom options.
func NewWithOptions(options Options) *Renderer {
	return &Renderer{options: options}
}

// Format implements render.Renderer.
func (r *Renderer) Format() render.Format { return render.FormatCSV }

// table is one named grid of string fields, header first.
type table struct {
	name string
	rows [][]string
}

// Render implements render.Renderer.
func (r *Renderer) Render(ctx context.Context, pkg *types.TaxExportPackage) ([]render.Artifact, error) {
	if err := render.CheckPackage(render.FormatCSV, pkg); err != nil {
		return nil, err
	}

	tables := buildTables(pkg)
	files := make([]render.Artifact, 0, len(tables))
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := r.encode(t.rows)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", t.name, err)
		}
		files = append(files, render.Artifact{Name: t.name, ContentType: render.ContentTypeCSV, Data: data})
	}

	if r.options.Shape == ShapeFiles {
		return files, nil
	}

	data, err := render.Zip(files, pkg.Metadata.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to build csv archive: %w", err)
	}
	return []render.Artifact{{
		Name:        render.BaseName(pkg) + ".zip",
		ContentType: render.ContentTypeZip,
		Data:        data,
	}}, nil
}

func (r *Renderer) encode(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = r.options.UseCRLF
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// =============================================================================
// TABLES
// =============================================================================

// buildTables builds every table of the bundle in output order.
func buildTables(pkg *types.TaxExportPackage) []table {
	return []table{
		{FileIncome, incomeTable(pkg.IncomeRows)},
		{FileExpenses, expenseTable(pkg.ExpenseRows)},
		{FileMileage, mileageTable(pkg.MileageRows)},
		{FilePayers, payerTable(pkg.PayerSummaryRows)},
		{FileMileageSummary, mileageSummaryTable(pkg.MileageSummary)},
		{FileSummary, summaryTable(pkg)},
	}
}

func incomeTable(rows []types.IncomeRow) [][]string {
	out := [][]string{{"id", "date", "platform", "description", "category", "payer_id", "payer_name", "payer_tax_id", "amount", "fees", "tips"}}
	for _, r := range rows {
		out = append(out, []string{
			r.ID, date(r.Date), r.Platform, r.Description, r.Category, r.PayerID, r.PayerName, r.PayerTaxID,
			money.FormatEntered(r.Amount), money.FormatEntered(r.Fees), money.FormatEntered(r.Tips),
		})
	}
	return out
}

func expenseTable(rows []types.ExpenseRow) [][]string {
	out := [][]string{{"id", "date", "category", "merchant", "description", "amount", "line", "deductible_fraction"}}
	for _, r := range rows {
		out = append(out, []string{
			r.ID, date(r.Date), r.Category, r.Merchant, r.Description,
			money.FormatEntered(r.Amount), string(r.Classification.Line), r.EffectiveFraction().String(),
		})
	}
	return out
}

func mileageTable(rows []types.MileageRow) [][]string {
	out := [][]string{{"id", "date", "origin", "destination", "purpose", "miles", "is_estimate"}}
	for _, r := range rows {
		out = append(out, []string{
			r.ID, date(r.Date), r.Origin, r.Destination, r.Purpose, r.Miles.String(), strconv.FormatBool(r.IsEstimate),
		})
	}
	return out
}

func payerTable(rows []types.PayerSummaryRow) [][]string {
	out := [][]string{{"payer_id", "payer_name", "tax_id_hint", "payment_count", "gross", "fees", "net", "first_payment", "last_payment"}}
	for _, r := range rows {
		out = append(out, []string{
			r.PayerID, r.PayerName, r.TaxIDHint, strconv.Itoa(r.PaymentCount),
			money.Format(r.Gross), money.Format(r.Fees), money.Format(r.Net),
			date(r.FirstPayment), date(r.LastPayment),
		})
	}
	return out
}

func mileageSummaryTable(m types.MileageSummary) [][]string {
	return [][]string{
		{"total_miles", "rate", "deduction", "entry_count", "has_estimates"},
		{m.TotalMiles.String(), m.Rate.String(), money.Format(m.Deduction), strconv.Itoa(m.EntryCount), strconv.FormatBool(m.HasEstimates)},
	}
}

// summaryTable lists the line items, then totals, then the line 27a
// breakdown, then one note row per warning.
func summaryTable(pkg *types.TaxExportPackage) [][]string {
	sc := pkg.ScheduleC
	out := [][]string{{"row_type", "line", "label", "amount"}}
	for _, li := range pkg.ScheduleCLineItems {
		out = append(out, []string{"line", li.Number, li.Label, money.Format(li.Amount)})
	}
	out = append(out,
		[]string{"total", "28", "Total expenses", money.Format(sc.TotalExpenses)},
		[]string{"total", "31", "Net profit (or loss)", money.Format(sc.NetProfit)},
		[]string{"estimate", "", "Self-employment tax basis", money.Format(sc.SETaxBasis)},
		[]string{"estimate", "", "Self-employment tax", money.Format(sc.SETax)},
		[]string{"estimate", "", "Estimated quarterly payment", money.Format(sc.EstimatedQuarterlyTax)},
	)
	for _, it := range sc.OtherExpenses {
		out = append(out, []string{"other_expense", "27a", it.Description, money.Format(it.Amount)})
	}
	for _, w := range pkg.Warnings {
		out = append(out, []string{"note", "", w.String(), ""})
	}
	return out
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
