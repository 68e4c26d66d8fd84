// =============================================================================
// gigtax - Record Normalizer
// =============================================================================
//
// This module converts untyped rows delivered by a data source into the typed
// row variants the rest of the pipeline works with:
//   - RawData.Income   -> []types.IncomeRow
//   - RawData.Expenses -> []types.ExpenseRow
//   - RawData.Mileage  -> []types.MileageRow
//   - RawData.Payers   -> []types.PayerRow
//
// SHAPE CHECKS:
//   Rows that fail to parse are never dropped. Dropping a row would silently
//   understate income or overstate deductions, so every failure becomes a
//   blocking issue and the row is kept with a zero value in the bad field.
//   Business rules (negative amounts, missing categories, ...) are left to the
//   validator; amounts keep the sign they were entered with.
//
// =============================================================================

package normalizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/gigledger/gigtax/internal/money"
	"github.com/gigledger/gigtax/internal/taxline"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// OPTIONS AND RESULT
// =============================================================================

// Options are the run-level filters applied during normalization.
type Options struct {
	// Start and End bound the accepted dates, both inclusive.
	Start time.Time
	End   time.Time
}

// Batch is the normalized input of one export run.
type Batch struct {
	Income   []types.IncomeRow
	Expenses []types.ExpenseRow
	Mileage  []types.MileageRow
	Payers   []types.PayerRow

	// Issues are the shape failures found while parsing.
	Issues []types.Issue
}

// =============================================================================
// COLUMN ALIASES
// =============================================================================

// Each canonical column accepts the aliases that data sources commonly use.
var (
	colID          = []string{"id", "record_id", "uuid"}
	colDate        = []string{"date", "paid_date", "payment_date", "expense_date", "trip_date"}
	colPlatform    = []string{"platform", "source", "app"}
	colDescription = []string{"description", "note", "notes", "memo"}
	colCategory    = []string{"category", "type", "expense_type"}
	colPayerID     = []string{"payer_id", "client_id"}
	colPayerName   = []string{"payer_name", "payer", "client", "client_name"}
	colPayerTaxID  = []string{"payer_tax_id", "tax_id", "tin", "ein", "tax_id_hint"}
	colAmount      = []string{"amount", "gross", "gross_amount", "total"}
	colFees        = []string{"fees", "platform_fees", "fee"}
	colTips        = []string{"tips", "tip"}
	colMerchant    = []string{"merchant", "vendor", "payee"}
	colFraction    = []string{"deductible_fraction", "deductible_ratio"}
	colPercent     = []string{"deductible_percent", "business_use_pct", "deductible_pct"}
	colOrigin      = []string{"origin", "start_location", "from"}
	colDestination = []string{"destination", "end_location", "to"}
	colPurpose     = []string{"purpose", "reason"}
	colMiles       = []string{"miles", "distance", "business_miles"}
	colEstimate    = []string{"is_estimate", "estimate", "estimated"}
	colName        = []string{"name", "payer_name", "display_name"}
	colEmail       = []string{"email", "contact_email"}
)

// dateFormats are tried in order.
var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// =============================================================================
// NORMALIZE
// =============================================================================

// Normalize converts raw rows into typed rows and collects shape issues.
//
// PARAMETERS:
//   - raw: The four raw collections for one user and tax year.
//   - opts: The run-level date range.
//
// RETURNS:
//   - A Batch holding every input row, typed, plus the shape issues found.
//     Row order matches input order within each entity.
func Normalize(raw types.RawData, opts Options) *Batch {
	n := &normalizer{opts: opts, batch: &Batch{}}

	n.batch.Payers = make([]types.PayerRow, 0, len(raw.Payers))
	payers := make(map[string]types.PayerRow, len(raw.Payers))
	for i, r := range raw.Payers {
		p := n.payer(i+1, r)
		n.batch.Payers = append(n.batch.Payers, p)
		if p.ID != "" {
			payers[p.ID] = p
		}
	}

	n.batch.Income = make([]types.IncomeRow, 0, len(raw.Income))
	for i, r := range raw.Income {
		n.batch.Income = append(n.batch.Income, n.income(i+1, r, payers))
	}

	n.batch.Expenses = make([]types.ExpenseRow, 0, len(raw.Expenses))
	for i, r := range raw.Expenses {
		n.batch.Expenses = append(n.batch.Expenses, n.expense(i+1, r))
	}

	n.batch.Mileage = make([]types.MileageRow, 0, len(raw.Mileage))
	for i, r := range raw.Mileage {
		n.batch.Mileage = append(n.batch.Mileage, n.mileage(i+1, r))
	}

	return n.batch
}

type normalizer struct {
	opts  Options
	batch *Batch
}

func (n *normalizer) income(row int, r types.RawRow, payers map[string]types.PayerRow) types.IncomeRow {
	id := idOrDefault(r, "gig", row)
	out := types.IncomeRow{
		ID:          id,
		Row:         row,
		Platform:    get(r, colPlatform),
		Description: get(r, colDescription),
		Category:    get(r, colCategory),
		PayerID:     get(r, colPayerID),
		PayerName:   get(r, colPayerName),
		PayerTaxID:  get(r, colPayerTaxID),
	}
	out.Date = n.date(types.EntityGig, id, row, r)
	out.Amount = n.amount(types.EntityGig, id, row, "amount", get(r, colAmount), true)
	out.Fees = n.amount(types.EntityGig, id, row, "fees", get(r, colFees), false)
	out.Tips = n.amount(types.EntityGig, id, row, "tips", get(r, colTips), false)

	// Link the payer record when the row itself lacks the details.
	if p, ok := payers[out.PayerID]; ok && out.PayerID != "" {
		if out.PayerName == "" {
			out.PayerName = p.Name
		}
		if out.PayerTaxID == "" {
			out.PayerTaxID = p.TaxIDHint
		}
	}
	return out
}

func (n *normalizer) expense(row int, r types.RawRow) types.ExpenseRow {
	id := idOrDefault(r, "expense", row)
	out := types.ExpenseRow{
		ID:          id,
		Row:         row,
		Category:    get(r, colCategory),
		Merchant:    get(r, colMerchant),
		Description: get(r, colDescription),
	}
	out.Date = n.date(types.EntityExpense, id, row, r)
	out.Amount = n.amount(types.EntityExpense, id, row, "amount", get(r, colAmount), true)
	out.Classification = taxline.Classify(out.Category)

	if raw := get(r, colFraction); raw != "" {
		if f, ok := n.fraction(id, row, raw, decimal.NewFromInt(1)); ok {
			out.RecordedFraction = &f
		}
	} else if raw := get(r, colPercent); raw != "" {
		if f, ok := n.fraction(id, row, strings.TrimSuffix(raw, "%"), decimal.NewFromInt(100)); ok {
			out.RecordedFraction = &f
		}
	}
	return out
}

func (n *normalizer) mileage(row int, r types.RawRow) types.MileageRow {
	id := idOrDefault(r, "mileage", row)
	out := types.MileageRow{
		ID:          id,
		Row:         row,
		Origin:      get(r, colOrigin),
		Destination: get(r, colDestination),
		Purpose:     get(r, colPurpose),
	}
	out.Date = n.date(types.EntityMileage, id, row, r)
	out.Miles = n.amount(types.EntityMileage, id, row, "miles", get(r, colMiles), true)

	if raw := get(r, colEstimate); raw != "" {
		b, ok := parseBool(raw)
		if !ok {
			n.issue(types.SeverityWarning, types.EntityMileage, id, row, "is_estimate",
				fmt.Sprintf("unrecognized estimate flag %q, treated as a logged trip", raw))
		}
		out.IsEstimate = b
	}
	return out
}

func (n *normalizer) payer(row int, r types.RawRow) types.PayerRow {
	return types.PayerRow{
		ID:        idOrDefault(r, "payer", row),
		Row:       row,
		Name:      get(r, colName),
		TaxIDHint: get(r, colPayerTaxID),
		Email:     get(r, colEmail),
	}
}

// =============================================================================
// FIELD PARSERS
// =============================================================================

// date parses the row's date and checks it against the run's range.
func (n *normalizer) date(entity types.Entity, id string, row int, r types.RawRow) time.Time {
	raw := get(r, colDate)
	if raw == "" {
		n.issue(types.SeverityError, entity, id, row, "date", "date is required")
		return time.Time{}
	}
	d, ok := ParseDate(raw)
	if !ok {
		n.issue(types.SeverityError, entity, id, row, "date", fmt.Sprintf("unparseable date %q", raw))
		return time.Time{}
	}
	if !n.opts.Start.IsZero() && d.Before(n.opts.Start) || !n.opts.End.IsZero() && d.After(n.opts.End) {
		n.issue(types.SeverityError, entity, id, row, "date",
			fmt.Sprintf("date %s is outside the export range %s to %s",
				d.Format("2006-01-02"), n.opts.Start.Format("2006-01-02"), n.opts.End.Format("2006-01-02")))
	}
	return d
}

// amount parses a decimal column. Required columns report a missing value.
func (n *normalizer) amount(entity types.Entity, id string, row int, field, raw string, required bool) decimal.Decimal {
	d, present, err := money.Parse(raw)
	if err != nil {
		n.issue(types.SeverityError, entity, id, row, field, fmt.Sprintf("unparseable %s %q", field, raw))
		return decimal.Zero
	}
	if !present && required {
		n.issue(types.SeverityError, entity, id, row, field, field+" is required")
	}
	return d
}

// fraction parses a deductible fraction, dividing by scale (1 or 100).
func (n *normalizer) fraction(id string, row int, raw string, scale decimal.Decimal) (decimal.Decimal, bool) {
	d, _, err := money.Parse(raw)
	if err != nil {
		n.issue(types.SeverityError, types.EntityExpense, id, row, "deductible_fraction",
			fmt.Sprintf("unparseable deductible fraction %q", raw))
		return decimal.Zero, false
	}
	return d.Div(scale), true
}

func (n *normalizer) issue(sev types.Severity, entity types.Entity, id string, row int, field, msg string) {
	n.batch.Issues = append(n.batch.Issues, types.Issue{
		Severity: sev,
		Entity:   entity,
		Field:    field,
		Message:  msg,
		RecordID: id,
		Row:      row,
	})
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// ParseDate parses a calendar date in any of the accepted formats and returns
// it at UTC midnight.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, f := range dateFormats {
		if t, err := time.Parse(f, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// CanonicalColumn lower-cases a column name and joins its words with
// underscores, so "Payer Name" and "payer-name" both read as "payer_name".
func CanonicalColumn(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '/':
			return '_'
		}
		return r
	}, s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// get returns the first non-empty value among the aliases. Keys that do not
// match exactly are compared in canonical form.
func get(r types.RawRow, aliases []string) string {
	for _, a := range aliases {
		if v, ok := r[a]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	for _, a := range aliases {
		for k, v := range r {
			if CanonicalColumn(k) == a && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func idOrDefault(r types.RawRow, prefix string, row int) string {
	if id := get(r, colID); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d", prefix, row)
}

// parseBool accepts the usual spreadsheet spellings of a boolean.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "t", "x":
		return true, true
	case "false", "no", "n", "0", "f", "":
		return false, true
	default:
		return false, false
	}
}
