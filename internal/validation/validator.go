// =============================================================================
// gigtax - Export Validator
// =============================================================================
//
// This module runs the structural and business-rule checks over a normalized
// batch before anything is aggregated or rendered.
//
// VALIDATION STRATEGY:
//   Two severities:
//   1. Blocking errors: missing expense category, negative amounts, fees,
//      tips or miles, and every shape failure reported by the normalizer
//      (unparseable / out-of-range dates, unparseable numbers). Any blocking
//      error stops the export before a single renderer runs.
//   2. Warnings: missing payer name, a paid gig whose payer has no tax-ID
//      hint, mileage without purpose / origin / destination, a meals expense
//      recorded as zero percent deductible, a line 9 vehicle expense next to
//      standard-mileage trips. Warnings never block; they are
//      reported verbatim and embedded in the rendered outputs.
//
// ORDERING:
//   Errors first, then warnings. Within a severity: gigs, expenses, mileage;
//   then source row order; then the order the checks ran. The same batch
//   always yields the same list.
//
// =============================================================================

package validation

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gigledger/gigtax/internal/normalizer"
	"github.com/gigledger/gigtax/internal/taxline"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains the outcome of validating a batch.
type Result struct {
	// IsValid is true if there are no blocking errors.
	IsValid bool

	// Issues contains every finding, errors first.
	Issues []types.Issue

	// ErrorCount is the number of blocking errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// RowsValidated is the number of rows inspected across all entities.
	RowsValidated int
}

// Errors returns only the blocking issues.
func (r *Result) Errors() []types.Issue {
	return filter(r.Issues, types.SeverityError)
}

// Warnings returns only the non-blocking issues.
func (r *Result) Warnings() []types.Issue {
	return filter(r.Issues, types.SeverityWarning)
}

// Summary reduces the result to its single human-readable state.
func (r *Result) Summary() string {
	return Summary(r.Issues)
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options contains options for validation.
type Options struct {
	// TreatWarningsAsErrors promotes every warning to a blocking error.
	// Default: false
	TreatWarningsAsErrors bool
}

// DefaultOptions returns the default validation options.
func DefaultOptions() Options {
	return Options{TreatWarningsAsErrors: false}
}

// Validator performs validation on normalized batches.
type Validator struct {
	options Options
}

// NewValidator creates a new Validator with default options.
func NewValidator() *Validator {
	return &Validator{options: DefaultOptions()}
}

// NewValidatorWithOptions creates a new Validator with custom options.
func NewValidatorWithOptions(options Options) *Validator {
	return &Validator{options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate validates a batch with default options.
func Validate(batch *normalizer.Batch) *Result {
	return NewValidator().ValidateAll(batch)
}

// ValidateAll validates every row of the batch and returns a detailed result.
//
// PARAMETERS:
//   - batch: The normalized batch, including the normalizer's shape issues.
//
// RETURNS:
//   - A Result with the ordered issue list and counts. IsValid is false as
//     soon as one blocking error exists, regardless of how many warnings
//     coexist.
func (v *Validator) ValidateAll(batch *normalizer.Batch) *Result {
	issues := make([]types.Issue, 0, len(batch.Issues))
	issues = append(issues, batch.Issues...)

	for _, row := range batch.Income {
		issues = append(issues, v.ValidateIncome(row)...)
	}
	for _, row := range batch.Expenses {
		issues = append(issues, v.ValidateExpense(row)...)
	}
	for _, row := range batch.Mileage {
		issues = append(issues, v.ValidateMileage(row)...)
	}
	issues = append(issues, v.ValidateVehicleCosts(batch)...)

	if v.options.TreatWarningsAsErrors {
		for i := range issues {
			issues[i].Severity = types.SeverityError
		}
	}

	sortIssues(issues)

	result := &Result{
		IsValid:       true,
		Issues:        issues,
		RowsValidated: len(batch.Income) + len(batch.Expenses) + len(batch.Mileage),
	}
	for _, is := range issues {
		if is.IsError() {
			result.ErrorCount++
			result.IsValid = false
		} else {
			result.WarningCount++
		}
	}
	return result
}

// ValidateIncome validates a single gig row.
func (v *Validator) ValidateIncome(row types.IncomeRow) []types.Issue {
	var issues []types.Issue
	add := func(sev types.Severity, field, msg string) {
		issues = append(issues, issue(sev, types.EntityGig, row.ID, row.Row, field, msg))
	}

	if row.Amount.IsNegative() {
		add(types.SeverityError, "amount", fmt.Sprintf("amount %s is negative", row.Amount))
	}
	if row.Fees.IsNegative() {
		add(types.SeverityError, "fees", fmt.Sprintf("fees %s are negative", row.Fees))
	}
	if row.Tips.IsNegative() {
		add(types.SeverityError, "tips", fmt.Sprintf("tips %s are negative", row.Tips))
	}

	if strings.TrimSpace(row.PayerName) == "" {
		add(types.SeverityWarning, "payer_name", "gig has no payer name; it will be grouped as unassigned in the payer summary")
	} else if row.Amount.IsPositive() && strings.TrimSpace(row.PayerTaxID) == "" {
		add(types.SeverityWarning, "payer_tax_id",
			fmt.Sprintf("paid gig from %s has no payer tax ID hint for 1099 matching", row.PayerName))
	}
	return issues
}

// ValidateExpense validates a single expense row.
func (v *Validator) ValidateExpense(row types.ExpenseRow) []types.Issue {
	var issues []types.Issue
	add := func(sev types.Severity, field, msg string) {
		issues = append(issues, issue(sev, types.EntityExpense, row.ID, row.Row, field, msg))
	}

	if strings.TrimSpace(row.Category) == "" {
		add(types.SeverityError, "category", "expense has no category to classify")
	}
	if row.Amount.IsNegative() {
		add(types.SeverityError, "amount", fmt.Sprintf("amount %s is negative", row.Amount))
	}
	if f := row.RecordedFraction; f != nil {
		if f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1)) {
			add(types.SeverityError, "deductible_fraction",
				fmt.Sprintf("deductible fraction %s is outside 0..1", f))
		} else if f.IsZero() && taxline.IsMealsType(row.Category) {
			add(types.SeverityWarning, "deductible_fraction",
				"meals expense is recorded as 0% deductible; the standard 50% limit was not applied")
		}
	}
	return issues
}

// ValidateMileage validates a single mileage row.
func (v *Validator) ValidateMileage(row types.MileageRow) []types.Issue {
	var issues []types.Issue
	add := func(sev types.Severity, field, msg string) {
		issues = append(issues, issue(sev, types.EntityMileage, row.ID, row.Row, field, msg))
	}

	if row.Miles.IsNegative() {
		add(types.SeverityError, "miles", fmt.Sprintf("miles %s are negative", row.Miles))
	}
	if strings.TrimSpace(row.Purpose) == "" {
		add(types.SeverityWarning, "purpose", "trip has no business purpose")
	}
	if strings.TrimSpace(row.Origin) == "" {
		add(types.SeverityWarning, "origin", "trip has no origin")
	}
	if strings.TrimSpace(row.Destination) == "" {
		add(types.SeverityWarning, "destination", "trip has no destination")
	}
	return issues
}

// ValidateVehicleCosts warns on every expense filed on line 9 when the batch
// also claims standard-mileage trips, since the standard rate already covers
// fuel and upkeep.
func (v *Validator) ValidateVehicleCosts(batch *normalizer.Batch) []types.Issue {
	if len(batch.Mileage) == 0 {
		return nil
	}
	var issues []types.Issue
	for _, row := range batch.Expenses {
		if row.Classification.Line != taxline.Line9 {
			continue
		}
		issues = append(issues, issue(types.SeverityWarning, types.EntityExpense, row.ID, row.Row, "category",
			fmt.Sprintf("%s expense is filed on line 9 together with the standard mileage deduction; claim one or the other", row.Category)))
	}
	return issues
}

// =============================================================================
// SUMMARY AND FORMATTING
// =============================================================================

// Summary reduces an issue list to exactly one of three states:
// "All checks passed", "N blocking error(s)" or "N warning(s)".
func Summary(issues []types.Issue) string {
	errs, warns := 0, 0
	for _, is := range issues {
		if is.IsError() {
			errs++
		} else {
			warns++
		}
	}
	switch {
	case errs > 0:
		return fmt.Sprintf("%d blocking error(s)", errs)
	case warns > 0:
		return fmt.Sprintf("%d warning(s)", warns)
	default:
		return "All checks passed"
	}
}

// FormatIssues formats validation issues for display or logging.
func FormatIssues(issues []types.Issue) string {
	if len(issues) == 0 {
		return "All checks passed\n"
	}

	var builder strings.Builder
	builder.WriteString(Summary(issues))
	builder.WriteString(":\n\n")
	for i, is := range issues {
		fmt.Fprintf(&builder, "%d. [%s] %s %s (row %d), field '%s': %s\n",
			i+1, strings.ToUpper(string(is.Severity)), is.Entity, is.RecordID, is.Row, is.Field, is.Message)
	}
	return builder.String()
}

// WriteReport writes the formatted issue list to w.
func WriteReport(w io.Writer, issues []types.Issue) error {
	if _, err := io.WriteString(w, FormatIssues(issues)); err != nil {
		return fmt.Errorf("failed to write validation report: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func issue(sev types.Severity, entity types.Entity, id string, row int, field, msg string) types.Issue {
	return types.Issue{
		Severity: sev,
		Entity:   entity,
		Field:    field,
		Message:  msg,
		RecordID: id,
		Row:      row,
	}
}

func severityOrder(s types.Severity) int {
	if s == types.SeverityError {
		return 0
	}
	return 1
}

// sortIssues orders issues by severity, entity, row; ties keep check order.
func sortIssues(issues []types.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if sa, sb := severityOrder(a.Severity), severityOrder(b.Severity); sa != sb {
			return sa < sb
		}
		if ea, eb := a.Entity.EntityOrder(), b.Entity.EntityOrder(); ea != eb {
			return ea < eb
		}
		return a.Row < b.Row
	})
}

func filter(issues []types.Issue, sev types.Severity) []types.Issue {
	out := make([]types.Issue, 0, len(issues))
	for _, is := range issues {
		if is.Severity == sev {
			out = append(out, is)
		}
	}
	return out
}
