// =============================================================================
// gigtax - Tax Exchange Format Renderer
// =============================================================================
//
// This renderer writes the Schedule C line items in the caret-delimited,
// line-oriented Tax Exchange Format (TXF v042).
//
// SUPPORTED CONSUMERS:
//   TXF is imported only by desktop tax-preparation software. Browser-based
//   tax products do not accept TXF files; users filing online should use the
//   workbook or CSV bundle instead.
//
// RECORD STRUCTURE:
//
//   V042                 <- version tag, always line 1
//   Agigtax              <- application name
//   D01/15/2025          <- export date
//   ^                    <- record terminator
//   TD                   <- detail record
//   N293                 <- TXF reference number of the line
//   C1                   <- copy number
//   L1                   <- line number within the copy
//   D12/31/2024          <- period end date
//   $1300.50             <- amount, exactly two decimals, no separators
//   XGross receipts...   <- optional free-text label
//   ^
//
// SIGN CONVENTION:
//   Income lines (1, 6) are written positive. Every amount that reduces
//   profit (returns, cost of goods, expense lines) is written negative. The
//   package itself always holds positive magnitudes.
//
// =============================================================================

package txf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gigledger/gigtax/internal/money"
	"github.com/gigledger/gigtax/internal/render"
	"github.com/gigledger/gigtax/internal/taxline"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/shopspring/decimal"
)

// Version is the TXF version tag written on line 1.
const Version = "V042"

const dateLayout = "01/02/2006"

// =============================================================================
// GENERATION OPTIONS
// =============================================================================

// Options contains options for TXF generation.
type Options struct {
	// AppName is written in the A record.
	// Default: "gigtax"
	AppName string

	// IncludeLabels adds an X record with the line label to every block.
	// Default: true
	IncludeLabels bool

	// LineEnding separates records.
	// Default: "\n"
	LineEnding string
}

// DefaultOptions returns the default generation options.
func DefaultOptions() Options {
	return Options{
		AppName:       "gigtax",
		IncludeLabels: true,
		LineEnding:    "\n",
	}
}

// Renderer renders TXF.
type Renderer struct {
	options Options
}

// New creates a TXF renderer with default options.
func New() *Renderer {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a TXF renderer with custom options. Empty fields
// take their defaults.
func NewWithOptions(options Options) *Renderer {
	def := DefaultOptions()
	if options.AppName == "" {
		options.AppName = def.AppName
	}
	if options.LineEnding == "" {
		options.LineEnding = def.LineEnding
	}
	return &Renderer{options: options}
}

// Format implements render.Renderer.
func (r *Renderer) Format() render.Format { return render.FormatTXF }

// Render implements render.Renderer.
func (r *Renderer) Render(_ context.Context, pkg *types.TaxExportPackage) ([]render.Artifact, error) {
	if err := render.CheckPackage(render.FormatTXF, pkg); err != nil {
		return nil, err
	}
	return []render.Artifact{{
		Name:        render.BaseName(pkg) + ".txf",
		ContentType: render.ContentTypeTXF,
		Data:        r.Generate(pkg),
	}}, nil
}

// Generate builds the TXF document.
//
// PARAMETERS:
//   - pkg: The assembled package.
//
// RETURNS:
//   - The document bytes. Only nonzero line items produce a detail block.
func (r *Renderer) Generate(pkg *types.TaxExportPackage) []byte {
	var buf bytes.Buffer
	rec := func(format string, args ...any) {
		fmt.Fprintf(&buf, format, args...)
		buf.WriteString(r.options.LineEnding)
	}

	rec("%s", Version)
	rec("A%s", r.options.AppName)
	rec("D%s", pkg.Metadata.GeneratedAt.Format(dateLayout))
	rec("^")

	period := pkg.Metadata.EndDate.Format(dateLayout)
	for _, li := range pkg.ScheduleCLineItems {
		if li.Amount.IsZero() {
			continue
		}
		rec("TD")
		rec("N%d", li.TXFRef)
		rec("C1")
		rec("L1")
		rec("D%s", period)
		rec("$%s", money.Format(signed(li)))
		if r.options.IncludeLabels {
			rec("X%s", li.Label)
		}
		rec("^")
	}
	return buf.Bytes()
}

func signed(li types.LineItem) decimal.Decimal {
	if li.Kind == taxline.KindIncome {
		return li.Amount
	}
	return li.Amount.Neg()
}
