// =============================================================================
// gigtax - Schedule Aggregator
// =============================================================================
//
// This module sums a validated batch into Schedule C totals.
//
// AGGREGATION RULES:
//   - Expenses are grouped by resolved line. Each row's amount is multiplied
//     by its own deductible fraction at full precision, the products are
//     summed, and the group total is rounded once.
//   - Gig rows feed gross receipts: amount, plus tips when tips are included,
//     less fees when fees are included. Included fees are also reported on
//     line 10. Gigs categorized as other income feed line 6 instead.
//   - Mileage: total miles x standard rate, filed on line 9 (car and truck),
//     never on line 27a.
//   - Net profit = gross - returns - COGS + other income - sum(expense lines).
//
// ROUNDING:
//   Every total is rounded to cents exactly once, at the point it is
//   finalized (money.Round, half away from zero). Renderers never round.
//
// =============================================================================

package aggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/gigledger/gigtax/internal/money"
	"github.com/gigledger/gigtax/internal/normalizer"
	"github.com/gigledger/gigtax/internal/taxline"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/shopspring/decimal"
)

// Self-employment estimate factors. Informational only.
var (
	seBasisFactor = decimal.RequireFromString("0.9235")
	seTaxRate     = decimal.RequireFromString("0.153")
	quarters      = decimal.NewFromInt(4)
)

// RoundingDifference labels the 27a entry that reconciles the itemized
// breakdown with the line total.
const RoundingDifference = "Rounding difference"

// Params are the run-level settings the totals depend on.
type Params struct {
	IncludeTips bool
	IncludeFees bool
	// MileageRate is the standard per-mile rate for the tax year.
	MileageRate decimal.Decimal
}

// Output is everything the aggregator derives from a batch.
type Output struct {
	ScheduleC        types.ScheduleCSummary
	LineItems        []types.LineItem
	MileageSummary   types.MileageSummary
	PayerSummaryRows []types.PayerSummaryRow
}

// Aggregate derives the Schedule C summary, line items, mileage summary and
// payer rollup from a batch that passed validation.
func Aggregate(batch *normalizer.Batch, params Params) *Output {
	acc := newAccumulator()

	for _, row := range batch.Income {
		acc.addIncome(row, params)
	}
	for _, row := range batch.Expenses {
		acc.addExpense(row)
	}

	mileage := summarizeMileage(batch.Mileage, params.MileageRate)
	if mileage.EntryCount > 0 {
		acc.addLine(taxline.Line9, mileage.TotalMiles.Mul(params.MileageRate))
	}

	sc := acc.finalize()
	return &Output{
		ScheduleC:        sc,
		LineItems:        lineItems(sc),
		MileageSummary:   mileage,
		PayerSummaryRows: summarizePayers(batch.Income, params),
	}
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// accumulator holds unrounded running sums.
type accumulator struct {
	gross       decimal.Decimal
	returns     decimal.Decimal
	cogs        decimal.Decimal
	otherIncome decimal.Decimal
	lines       map[taxline.LineCode]decimal.Decimal
	// other itemizes line 27a by category label, in first-seen order.
	other      map[string]decimal.Decimal
	otherOrder []string
}

func newAccumulator() *accumulator {
	return &accumulator{
		gross:       decimal.Zero,
		returns:     decimal.Zero,
		cogs:        decimal.Zero,
		otherIncome: decimal.Zero,
		lines:       make(map[taxline.LineCode]decimal.Decimal),
		other:       make(map[string]decimal.Decimal),
	}
}

func (a *accumulator) addIncome(row types.IncomeRow, p Params) {
	receipts := row.Amount
	if p.IncludeTips {
		receipts = receipts.Add(row.Tips)
	}
	if p.IncludeFees {
		receipts = receipts.Sub(row.Fees)
		a.addLine(taxline.Line10, row.Fees)
	}

	if row.Category != "" && taxline.Classify(row.Category).Line == taxline.Line6 {
		a.otherIncome = a.otherIncome.Add(receipts)
		return
	}
	a.gross = a.gross.Add(receipts)
}

func (a *accumulator) addExpense(row types.ExpenseRow) {
	deductible := row.Amount.Mul(row.EffectiveFraction())

	switch line, _ := taxline.Lookup(row.Classification.Line); line.Kind {
	case taxline.KindReduction:
		a.returns = a.returns.Add(deductible)
	case taxline.KindCOGS:
		a.cogs = a.cogs.Add(deductible)
	case taxline.KindExpense:
		a.addLine(line.Code, deductible)
		if line.Code == taxline.Line27a {
			a.addOther(row.Category, deductible)
		}
	default:
		// Income-side categories on an expense row still count as a
		// deduction; they are itemized under other expenses.
		a.addLine(taxline.Line27a, deductible)
		a.addOther(row.Category, deductible)
	}
}

func (a *accumulator) addLine(code taxline.LineCode, v decimal.Decimal) {
	cur, ok := a.lines[code]
	if !ok {
		cur = decimal.Zero
	}
	a.lines[code] = cur.Add(v)
}

func (a *accumulator) addOther(category string, v decimal.Decimal) {
	label := strings.TrimSpace(category)
	if label == "" {
		label = "Uncategorized"
	}
	if _, ok := a.other[label]; !ok {
		a.otherOrder = append(a.otherOrder, label)
		a.other[label] = decimal.Zero
	}
	a.other[label] = a.other[label].Add(v)
}

// finalize rounds every total once and derives net profit.
func (a *accumulator) finalize() types.ScheduleCSummary {
	sc := types.ScheduleCSummary{
		GrossReceipts:       money.Round(a.gross),
		ReturnsAllowances:   money.Round(a.returns),
		COGS:                money.Round(a.cogs),
		OtherIncome:         money.Round(a.otherIncome),
		ExpenseTotalsByLine: make(map[taxline.LineCode]decimal.Decimal, len(a.lines)),
		OtherExpenses:       make([]types.OtherExpenseItem, 0, len(a.otherOrder)),
	}

	for code, raw := range a.lines {
		sc.ExpenseTotalsByLine[code] = money.Round(raw)
	}

	// The itemized 27a entries are rounded one by one; any cents lost that
	// way are carried as a final entry so the breakdown adds up to the line.
	itemized := decimal.Zero
	for _, label := range a.otherOrder {
		amt := money.Round(a.other[label])
		sc.OtherExpenses = append(sc.OtherExpenses, types.OtherExpenseItem{Description: label, Amount: amt})
		itemized = itemized.Add(amt)
	}
	if len(sc.OtherExpenses) > 0 {
		if diff := sc.ExpenseTotalsByLine[taxline.Line27a].Sub(itemized); !diff.IsZero() {
			sc.OtherExpenses = append(sc.OtherExpenses, types.OtherExpenseItem{Description: RoundingDifference, Amount: diff})
		}
	}

	total := decimal.Zero
	for _, v := range sc.ExpenseTotalsByLine {
		total = total.Add(v)
	}
	sc.TotalExpenses = total

	sc.NetProfit = sc.GrossReceipts.
		Sub(sc.ReturnsAllowances).
		Sub(sc.COGS).
		Add(sc.OtherIncome).
		Sub(sc.TotalExpenses)

	basis := decimal.Zero
	if sc.NetProfit.IsPositive() {
		basis = sc.NetProfit.Mul(seBasisFactor)
	}
	sc.SETaxBasis = money.Round(basis)
	sc.SETax = money.Round(sc.SETaxBasis.Mul(seTaxRate))
	sc.EstimatedQuarterlyTax = money.Round(sc.SETax.Div(quarters))
	return sc
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// lineItems lists the summary as ordered Schedule C lines. Gross receipts is
// always present; other Part I lines only when nonzero; expense lines when
// any row contributed to them.
func lineItems(sc types.ScheduleCSummary) []types.LineItem {
	items := []types.LineItem{item(taxline.Line1, sc.GrossReceipts)}
	if !sc.ReturnsAllowances.IsZero() {
		items = append(items, item(taxline.Line2, sc.ReturnsAllowances))
	}
	if !sc.COGS.IsZero() {
		items = append(items, item(taxline.Line4, sc.COGS))
	}
	if !sc.OtherIncome.IsZero() {
		items = append(items, item(taxline.Line6, sc.OtherIncome))
	}

	codes := make([]taxline.LineCode, 0, len(sc.ExpenseTotalsByLine))
	for code := range sc.ExpenseTotalsByLine {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].Order() < codes[j].Order() })
	for _, code := range codes {
		items = append(items, item(code, sc.ExpenseTotalsByLine[code]))
	}
	return items
}

func item(code taxline.LineCode, amount decimal.Decimal) types.LineItem {
	l := taxline.MustLookup(code)
	return types.LineItem{
		Line:   l.Code,
		Number: l.Number,
		Label:  l.Label,
		Kind:   l.Kind,
		TXFRef: l.TXFRef,
		Amount: amount,
	}
}

// =============================================================================
// MILEAGE AND PAYERS
// =============================================================================

func summarizeMileage(rows []types.MileageRow, rate decimal.Decimal) types.MileageSummary {
	miles := decimal.Zero
	estimates := false
	for _, r := range rows {
		miles = miles.Add(r.Miles)
		estimates = estimates || r.IsEstimate
	}
	return types.MileageSummary{
		TotalMiles:   miles,
		Rate:         rate,
		Deduction:    money.Round(miles.Mul(rate)),
		EntryCount:   len(rows),
		HasEstimates: estimates,
	}
}

type payerAcc struct {
	row   types.PayerSummaryRow
	gross decimal.Decimal
	fees  decimal.Decimal
}

// summarizePayers rolls gigs up per payer, keyed by payer ID, then by name.
// Gigs with neither land in a single "Unassigned" row.
func summarizePayers(rows []types.IncomeRow, p Params) []types.PayerSummaryRow {
	byKey := make(map[string]*payerAcc)
	var order []string

	for _, r := range rows {
		key := payerKey(r)
		acc, ok := byKey[key]
		if !ok {
			name := r.PayerName
			if name == "" && r.PayerID == "" {
				name = "Unassigned"
			}
			acc = &payerAcc{
				row:   types.PayerSummaryRow{PayerID: r.PayerID, PayerName: name, TaxIDHint: r.PayerTaxID},
				gross: decimal.Zero,
				fees:  decimal.Zero,
			}
			byKey[key] = acc
			order = append(order, key)
		}
		if acc.row.PayerName == "" {
			acc.row.PayerName = r.PayerName
		}
		if acc.row.TaxIDHint == "" {
			acc.row.TaxIDHint = r.PayerTaxID
		}

		gross := r.Amount
		if p.IncludeTips {
			gross = gross.Add(r.Tips)
		}
		acc.gross = acc.gross.Add(gross)
		acc.fees = acc.fees.Add(r.Fees)
		acc.row.PaymentCount++
		acc.row.FirstPayment = earliest(acc.row.FirstPayment, r.Date)
		acc.row.LastPayment = latest(acc.row.LastPayment, r.Date)
	}

	out := make([]types.PayerSummaryRow, 0, len(order))
	for _, key := range order {
		acc := byKey[key]
		acc.row.Gross = money.Round(acc.gross)
		acc.row.Fees = money.Round(acc.fees)
		acc.row.Net = acc.row.Gross.Sub(acc.row.Fees)
		out = append(out, acc.row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Gross.Cmp(out[j].Gross); c != 0 {
			return c > 0
		}
		return out[i].PayerName < out[j].PayerName
	})
	return out
}

func payerKey(r types.IncomeRow) string {
	switch {
	case r.PayerID != "":
		return "id:" + r.PayerID
	case r.PayerName != "":
		return "name:" + strings.ToLower(strings.TrimSpace(r.PayerName))
	default:
		return "unassigned"
	}
}

func earliest(cur, t time.Time) time.Time {
	if t.IsZero() {
		return cur
	}
	if cur.IsZero() || t.Before(cur) {
		return t
	}
	return cur
}

func latest(cur, t time.Time) time.Time {
	if t.After(cur) {
		return t
	}
	return cur
}
