// =============================================================================
// gigtax - Summary Document Renderer
// =============================================================================
//
// This renderer produces a paginated PDF for visual cross-checking of the
// totals the other formats carry.
//
// DOCUMENT LAYOUT:
//   1. Header: tax year, period, export ID, generation time
//   2. Schedule C table: every line item, total expenses, net profit
//   3. Other expenses (line 27a) breakdown
//   4. Mileage block
//   5. Payer block
//   6. Informational self-employment estimates
//   7. Warnings list
//   Every page carries a "Page N of M" footer.
//
// Content streams are left uncompressed by default so the text can be
// searched and diffed without a PDF toolkit.
//
// =============================================================================

package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gigledger/gigtax/internal/money"
	"github.com/gigledger/gigtax/internal/render"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/go-pdf/fpdf"
)

const (
	font       = "Helvetica"
	lineHeight = 6.0
	labelWidth = 130.0
	numWidth   = 20.0
)

// Options contains options for the summary document.
type Options struct {
	// PageSize is an fpdf page size name.
	// Default: "Letter"
	PageSize string

	// Compress enables content stream compression.
	// Default: false
	Compress bool
}

// DefaultOptions returns the default document options.
func DefaultOptions() Options {
	return Options{PageSize: "Letter"}
}

// Renderer renders the summary document.
type Renderer struct {
	options Options
}

// New creates a document renderer with default options.
func New() *Renderer {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a document renderer with custom options.
func NewWithOptions(options Options) *Renderer {
	if options.PageSize == "" {
		options.PageSize = DefaultOptions().PageSize
	}
	return &Renderer{options: options}
}

// Format implements render.Renderer.
func (r *Renderer) Format() render.Format { return render.FormatPDF }

// Render implements render.Renderer.
func (r *Renderer) Render(ctx context.Context, pkg *types.TaxExportPackage) ([]render.Artifact, error) {
	if err := render.CheckPackage(render.FormatPDF, pkg); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", r.options.PageSize, "")
	pdf.SetCompression(r.options.Compress)
	pdf.SetCreationDate(pkg.Metadata.GeneratedAt)
	pdf.SetModificationDate(pkg.Metadata.GeneratedAt)
	pdf.SetTitle(fmt.Sprintf("Schedule C Summary %d", pkg.Metadata.TaxYear), true)
	pdf.SetCreator("gigtax "+pkg.Metadata.EngineVersion, true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(font, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	d := &doc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	d.pdf.AddPage()
	d.header(pkg)
	d.scheduleC(pkg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.otherExpenses(pkg)
	d.mileage(pkg)
	d.payers(pkg)
	d.estimates(pkg)
	d.warnings(pkg)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write summary document: %w", err)
	}
	return []render.Artifact{{
		Name:        render.BaseName(pkg) + ".pdf",
		ContentType: render.ContentTypePDF,
		Data:        buf.Bytes(),
	}}, nil
}

// =============================================================================
// SECTIONS
// =============================================================================

type doc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (d *doc) text(w float64, s, align string) {
	d.pdf.CellFormat(w, lineHeight, d.tr(s), "", 0, align, false, 0, "")
}

func (d *doc) heading(s string) {
	d.pdf.Ln(4)
	d.pdf.SetFont(font, "B", 12)
	d.pdf.CellFormat(0, 8, d.tr(s), "B", 1, "L", false, 0, "")
	d.pdf.SetFont(font, "", 10)
}

// row prints a line number, a label and a right-aligned amount.
func (d *doc) row(number, label, amount string) {
	d.text(numWidth, number, "L")
	d.text(labelWidth, label, "L")
	d.text(0, amount, "R")
	d.pdf.Ln(lineHeight)
}

func (d *doc) header(pkg *types.TaxExportPackage) {
	meta := pkg.Metadata
	d.pdf.SetFont(font, "B", 16)
	d.pdf.CellFormat(0, 10, d.tr(fmt.Sprintf("Schedule C Summary - Tax Year %d", meta.TaxYear)), "", 1, "L", false, 0, "")
	d.pdf.SetFont(font, "", 10)
	d.text(0, fmt.Sprintf("Period: %s to %s", meta.StartDate.Format(time.DateOnly), meta.EndDate.Format(time.DateOnly)), "L")
	d.pdf.Ln(lineHeight)
	d.text(0, "Export ID: "+meta.ExportID, "L")
	d.pdf.Ln(lineHeight)
	d.text(0, "Generated: "+meta.GeneratedAt.Format(time.RFC3339)+"   Currency: "+meta.Currency, "L")
	d.pdf.Ln(lineHeight)
}

func (d *doc) scheduleC(pkg *types.TaxExportPackage) {
	sc := pkg.ScheduleC
	d.heading("Schedule C")
	d.pdf.SetFont(font, "B", 10)
	d.row("Line", "Description", "Amount")
	d.pdf.SetFont(font, "", 10)
	for _, li := range pkg.ScheduleCLineItems {
		d.row(li.Number, li.Label, money.FormatUSD(li.Amount))
	}
	d.pdf.SetFont(font, "B", 10)
	d.row("28", "Total expenses", money.FormatUSD(sc.TotalExpenses))
	d.row("31", "Net profit (or loss)", money.FormatUSD(sc.NetProfit))
	d.pdf.SetFont(font, "", 10)
}

func (d *doc) otherExpenses(pkg *types.TaxExportPackage) {
	if len(pkg.ScheduleC.OtherExpenses) == 0 {
		return
	}
	d.heading("Other Expenses (Line 27a)")
	for _, it := range pkg.ScheduleC.OtherExpenses {
		d.row("", it.Description, money.FormatUSD(it.Amount))
	}
}

func (d *doc) mileage(pkg *types.TaxExportPackage) {
	m := pkg.MileageSummary
	d.heading("Mileage")
	d.row("", "Trips logged", strconv.Itoa(m.EntryCount))
	d.row("", "Total business miles", m.TotalMiles.String())
	d.row("", "Standard mileage rate", "$"+m.Rate.String())
	d.row("9", "Mileage deduction", money.FormatUSD(m.Deduction))
	if m.HasEstimates {
		d.text(0, "Some trips are estimates rather than logged entries.", "L")
		d.pdf.Ln(lineHeight)
	}
}

func (d *doc) payers(pkg *types.TaxExportPackage) {
	if len(pkg.PayerSummaryRows) == 0 {
		return
	}
	d.heading("Payers")
	for _, p := range pkg.PayerSummaryRows {
		label := fmt.Sprintf("%s (%d payment(s))", p.PayerName, p.PaymentCount)
		if p.TaxIDHint != "" {
			label += " TIN " + p.TaxIDHint
		}
		d.row("", label, money.FormatUSD(p.Gross))
	}
}

func (d *doc) estimates(pkg *types.TaxExportPackage) {
	sc := pkg.ScheduleC
	d.heading("Self-Employment Tax Estimate")
	d.row("", "Self-employment tax basis", money.FormatUSD(sc.SETaxBasis))
	d.row("", "Self-employment tax", money.FormatUSD(sc.SETax))
	d.row("", "Estimated quarterly payment", money.FormatUSD(sc.EstimatedQuarterlyTax))
	d.pdf.SetFont(font, "I", 8)
	d.pdf.MultiCell(0, 4, d.tr("Informational only. This summary is not a tax return and does not compute tax liability."), "", "L", false)
	d.pdf.SetFont(font, "", 10)
}

func (d *doc) warnings(pkg *types.TaxExportPackage) {
	d.heading(fmt.Sprintf("Warnings (%d)", len(pkg.Warnings)))
	if len(pkg.Warnings) == 0 {
		d.text(0, "None.", "L")
		d.pdf.Ln(lineHeight)
		return
	}
	for i, w := range pkg.Warnings {
		d.pdf.SetFont(font, "B", 9)
		d.text(0, fmt.Sprintf("%d. %s %s (row %d), field %s", i+1, w.Entity, w.RecordID, w.Row, w.Field), "L")
		d.pdf.Ln(5)
		d.pdf.SetFont(font, "", 9)
		d.pdf.MultiCell(0, 5, d.tr(w.Message), "", "L", false)
	}
}
