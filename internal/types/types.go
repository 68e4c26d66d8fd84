// =============================================================================
// gigtax - Shared Types
// =============================================================================
//
// This package contains the types shared by every stage of the export
// pipeline, kept here to avoid import cycles. Types defined here are used by:
//   - normalizer  (produces rows)
//   - validation  (produces issues)
//   - aggregator  (produces summaries)
//   - assembler   (produces the package)
//   - render/...  (consume the package)
//
// Rows and packages are built once per export run and never mutated after
// construction.
//
// =============================================================================

package types

import (
	"time"

	"github.com/gigledger/gigtax/internal/taxline"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW INPUT
// =============================================================================

// RawRow is one untyped record as delivered by a data source. Keys are column
// names; the normalizer accepts common aliases.
type RawRow map[string]string

// RawData is the full input for one user and tax year.
type RawData struct {
	Income   []RawRow
	Expenses []RawRow
	Mileage  []RawRow
	Payers   []RawRow
}

// =============================================================================
// NORMALIZED ROWS
// =============================================================================

// IncomeRow is a normalized gig / income record. Amount, Fees and Tips keep
// full input precision and the sign they were entered with; the validator
// rejects negatives.
type IncomeRow struct {
	ID          string          `yaml:"id"`
	Row         int             `yaml:"row"`
	Date        time.Time       `yaml:"date"`
	Platform    string          `yaml:"platform"`
	Description string          `yaml:"description"`
	Category    string          `yaml:"category"`
	PayerID     string          `yaml:"payer_id"`
	PayerName   string          `yaml:"payer_name"`
	PayerTaxID  string          `yaml:"payer_tax_id"`
	Amount      decimal.Decimal `yaml:"amount"`
	Fees        decimal.Decimal `yaml:"fees"`
	Tips        decimal.Decimal `yaml:"tips"`
}

// ExpenseRow is a normalized expense record with its resolved line.
type ExpenseRow struct {
	ID          string          `yaml:"id"`
	Row         int             `yaml:"row"`
	Date        time.Time       `yaml:"date"`
	Category    string          `yaml:"category"`
	Merchant    string          `yaml:"merchant"`
	Description string          `yaml:"description"`
	Amount      decimal.Decimal `yaml:"amount"`
	// RecordedFraction is a user-entered deductible fraction that overrides
	// the classification's default. Nil when the user entered none.
	RecordedFraction *decimal.Decimal       `yaml:"recorded_fraction,omitempty"`
	Classification   taxline.Classification `yaml:"classification"`
}

// EffectiveFraction is the fraction the aggregator applies to this row.
func (e ExpenseRow) EffectiveFraction() decimal.Decimal {
	if e.RecordedFraction != nil {
		return *e.RecordedFraction
	}
	return e.Classification.DeductibleFraction
}

// MileageRow is a normalized trip log entry.
type MileageRow struct {
	ID          string          `yaml:"id"`
	Row         int             `yaml:"row"`
	Date        time.Time       `yaml:"date"`
	Origin      string          `yaml:"origin"`
	Destination string          `yaml:"destination"`
	Purpose     string          `yaml:"purpose"`
	Miles       decimal.Decimal `yaml:"miles"`
	// IsEstimate marks a user-supplied estimate rather than a logged trip.
	IsEstimate bool `yaml:"is_estimate"`
}

// PayerRow is a normalized payer (client / platform) record.
type PayerRow struct {
	ID        string `yaml:"id"`
	Row       int    `yaml:"row"`
	Name      string `yaml:"name"`
	TaxIDHint string `yaml:"tax_id_hint"`
	Email     string `yaml:"email"`
}

// =============================================================================
// VALIDATION ISSUES
// =============================================================================

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Entity is the record family an issue belongs to.
type Entity string

const (
	EntityGig     Entity = "gig"
	EntityExpense Entity = "expense"
	EntityMileage Entity = "mileage"
)

// EntityOrder is the fixed reporting order of entities.
func (e Entity) EntityOrder() int {
	switch e {
	case EntityGig:
		return 0
	case EntityExpense:
		return 1
	case EntityMileage:
		return 2
	default:
		return 3
	}
}

// Issue is a single validation finding.
type Issue struct {
	Severity Severity `yaml:"severity"`
	Entity   Entity   `yaml:"entity"`
	Field    string   `yaml:"field"`
	Message  string   `yaml:"message"`
	RecordID string   `yaml:"record_id"`
	Row      int      `yaml:"row"`
}

// IsError reports whether the issue blocks the export.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError
}

// String renders the issue for reports and rendered notes.
func (i Issue) String() string {
	return "[" + string(i.Severity) + "] " + string(i.Entity) + " " + i.RecordID + " " + i.Field + ": " + i.Message
}

// =============================================================================
// SUMMARIES
// =============================================================================

// OtherExpenseItem is one entry of the itemized line 27a breakdown.
type OtherExpenseItem struct {
	Description string          `yaml:"description"`
	Amount      decimal.Decimal `yaml:"amount"`
}

// ScheduleCSummary holds the derived Schedule C totals. Every amount is
// rounded to cents exactly once, by the aggregator. Expense totals are
// positive magnitudes; renderers choose their own sign convention.
type ScheduleCSummary struct {
	GrossReceipts       decimal.Decimal                      `yaml:"gross_receipts"`
	ReturnsAllowances   decimal.Decimal                      `yaml:"returns_allowances"`
	COGS                decimal.Decimal                      `yaml:"cogs"`
	OtherIncome         decimal.Decimal                      `yaml:"other_income"`
	ExpenseTotalsByLine map[taxline.LineCode]decimal.Decimal `yaml:"expense_totals_by_line"`
	OtherExpenses       []OtherExpenseItem                   `yaml:"other_expenses"`
	TotalExpenses       decimal.Decimal                      `yaml:"total_expenses"`
	NetProfit           decimal.Decimal                      `yaml:"net_profit"`

	// Informational estimates; the engine does not compute tax liability.
	SETaxBasis            decimal.Decimal `yaml:"se_tax_basis"`
	SETax                 decimal.Decimal `yaml:"se_tax"`
	EstimatedQuarterlyTax decimal.Decimal `yaml:"estimated_quarterly_tax"`
}

// MileageSummary rolls up the mileage log.
type MileageSummary struct {
	TotalMiles   decimal.Decimal `yaml:"total_miles"`
	Rate         decimal.Decimal `yaml:"rate"`
	Deduction    decimal.Decimal `yaml:"deduction"`
	EntryCount   int             `yaml:"entry_count"`
	HasEstimates bool            `yaml:"has_estimates"`
}

// PayerSummaryRow is a per-payer rollup used for 1099 reconciliation.
type PayerSummaryRow struct {
	PayerID      string          `yaml:"payer_id"`
	PayerName    string          `yaml:"payer_name"`
	TaxIDHint    string          `yaml:"tax_id_hint"`
	PaymentCount int             `yaml:"payment_count"`
	Gross        decimal.Decimal `yaml:"gross"`
	Fees         decimal.Decimal `yaml:"fees"`
	Net          decimal.Decimal `yaml:"net"`
	FirstPayment time.Time       `yaml:"first_payment"`
	LastPayment  time.Time       `yaml:"last_payment"`
}

// LineItem is one Schedule C line as every renderer presents it. Amount is
// the canonical positive magnitude.
type LineItem struct {
	Line   taxline.LineCode `yaml:"line"`
	Number string           `yaml:"number"`
	Label  string           `yaml:"label"`
	Kind   taxline.Kind     `yaml:"kind"`
	TXFRef int              `yaml:"txf_ref"`
	Amount decimal.Decimal  `yaml:"amount"`
}

// =============================================================================
// PACKAGE
// =============================================================================

// Rounding records the rounding policy applied by the aggregator.
type Rounding struct {
	Places int    `yaml:"places"`
	Mode   string `yaml:"mode"`
}

// Metadata describes an export run.
type Metadata struct {
	ExportID      string          `yaml:"export_id"`
	TaxYear       int             `yaml:"tax_year"`
	StartDate     time.Time       `yaml:"start_date"`
	EndDate       time.Time       `yaml:"end_date"`
	Currency      string          `yaml:"currency"`
	Rounding      Rounding        `yaml:"rounding"`
	IncludeTips   bool            `yaml:"include_tips"`
	IncludeFees   bool            `yaml:"include_fees"`
	MileageRate   decimal.Decimal `yaml:"mileage_rate"`
	GeneratedAt   time.Time       `yaml:"generated_at"`
	EngineVersion string          `yaml:"engine_version"`
}

// TaxExportPackage is the canonical, format-agnostic result of an export
// run. Every renderer reads the same instance and must not modify it.
type TaxExportPackage struct {
	Metadata           Metadata          `yaml:"metadata"`
	ScheduleC          ScheduleCSummary  `yaml:"schedule_c"`
	ScheduleCLineItems []LineItem        `yaml:"schedule_c_line_items"`
	IncomeRows         []IncomeRow       `yaml:"income_rows"`
	ExpenseRows        []ExpenseRow      `yaml:"expense_rows"`
	MileageRows        []MileageRow      `yaml:"mileage_rows"`
	PayerSummaryRows   []PayerSummaryRow `yaml:"payer_summary_rows"`
	MileageSummary     MileageSummary    `yaml:"mileage_summary"`
	// Warnings are the non-blocking issues of the run, carried so renderers
	// can embed them without access to the validator.
	Warnings []Issue `yaml:"warnings"`
}
