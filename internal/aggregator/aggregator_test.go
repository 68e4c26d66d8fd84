package aggregator

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/gigledger/gigtax/internal/money"
	"github.com/gigledger/gigtax/internal/normalizer"
	"github.com/gigledger/gigtax/internal/taxline"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(m, d int) time.Time { return time.Date(2024, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

func expense(id, category, amount string) types.ExpenseRow {
	return types.ExpenseRow{ID: id, Date: date(1, 1), Category: category, Amount: dec(amount), Classification: taxline.Classify(category)}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got}, msgAndArgs...)...)
}

// netIdentity recomputes the documented identity from the summary fields.
func netIdentity(sc types.ScheduleCSummary) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range sc.ExpenseTotalsByLine {
		sum = sum.Add(v)
	}
	return sc.GrossReceipts.Sub(sc.ReturnsAllowances).Sub(sc.COGS).Add(sc.OtherIncome).Sub(sum)
}

func TestAggregate_GigWithFeesTipsAndMeals(t *testing.T) {
	batch := &normalizer.Batch{
		Income: []types.IncomeRow{{
			ID: "g-1", Date: date(3, 1), PayerName: "RideCo",
			Amount: dec("1000"), Fees: dec("50"), Tips: dec("100"),
		}},
		Expenses: []types.ExpenseRow{expense("e-1", "meals", "80")},
	}
	out := Aggregate(batch, Params{IncludeTips: true, IncludeFees: true, MileageRate: dec("0.67")})
	sc := out.ScheduleC

	assertDec(t, "1050", sc.GrossReceipts)
	assertDec(t, "50", sc.ExpenseTotalsByLine[taxline.Line10])
	assertDec(t, "40", sc.ExpenseTotalsByLine[taxline.Line24b])
	assertDec(t, "960", sc.NetProfit)
	assertDec(t, "90", sc.TotalExpenses)
	assertDec(t, sc.NetProfit.String(), netIdentity(sc))
}

func TestAggregate_IncludeFlagsOff(t *testing.T) {
	batch := &normalizer.Batch{Income: []types.IncomeRow{{ID: "g-1", Amount: dec("1000"), Fees: dec("50"), Tips: dec("100")}}}
	out := Aggregate(batch, Params{})
	assertDec(t, "1000", out.ScheduleC.GrossReceipts)
	_, hasFees := out.ScheduleC.ExpenseTotalsByLine[taxline.Line10]
	assert.False(t, hasFees)
	assertDec(t, "1000", out.ScheduleC.NetProfit)
}

func TestAggregate_MileageOnDedicatedLine(t *testing.T) {
	batch := &normalizer.Batch{
		Mileage:  []types.MileageRow{{ID: "m-1", Date: date(2, 2), Miles: dec("100")}},
		Expenses: []types.ExpenseRow{expense("e-1", "bank fees", "12.00")},
	}
	out := Aggregate(batch, Params{MileageRate: dec("0.67")})

	assertDec(t, "67.00", out.MileageSummary.Deduction)
	assertDec(t, "100", out.MileageSummary.TotalMiles)
	assert.Equal(t, 1, out.MileageSummary.EntryCount)
	assert.False(t, out.MileageSummary.HasEstimates)
	assertDec(t, "67", out.ScheduleC.ExpenseTotalsByLine[taxline.Line9])
	assertDec(t, "12", out.ScheduleC.ExpenseTotalsByLine[taxline.Line27a], "other expenses unaffected by mileage")
}

func TestAggregate_EmptyInput(t *testing.T) {
	out := Aggregate(&normalizer.Batch{}, Params{MileageRate: dec("0.67")})
	assert.True(t, out.ScheduleC.NetProfit.IsZero())
	assert.True(t, out.ScheduleC.GrossReceipts.IsZero())
	assert.Empty(t, out.ScheduleC.ExpenseTotalsByLine)
	require.Len(t, out.LineItems, 1)
	assert.Equal(t, taxline.Line1, out.LineItems[0].Line)
	assert.Empty(t, out.PayerSummaryRows)
	assert.Equal(t, 0, out.MileageSummary.EntryCount)
	assert.True(t, out.ScheduleC.SETax.IsZero())
}

func TestAggregate_FractionAppliedPerRowBeforeRounding(t *testing.T) {
	full := dec("1")
	a := expense("e-1", "meals", "33.33")
	b := expense("e-2", "meals", "33.33")
	c := expense("e-3", "meals", "10.01")
	c.RecordedFraction = &full

	out := Aggregate(&normalizer.Batch{Expenses: []types.ExpenseRow{a, b, c}}, Params{})
	// 16.665 + 16.665 + 10.01 = 43.34 exactly; rounding each product first
	// would give 16.67 + 16.67 + 10.01 = 43.35.
	assertDec(t, "43.34", out.ScheduleC.ExpenseTotalsByLine[taxline.Line24b])
}

func TestAggregate_ExpenseTotalsMatchRowProducts(t *testing.T) {
	categories := []string{"meals", "supplies", "phone", "travel", "food", "mystery", "software", "entertainment", "advertising"}
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		var rows []types.ExpenseRow
		want := map[taxline.LineCode]decimal.Decimal{}
		for i := 0; i < 1+rng.Intn(40); i++ {
			cat := categories[rng.Intn(len(categories))]
			amt := decimal.New(rng.Int63n(100000), -2)
			rows = append(rows, expense(fmt.Sprintf("e-%d", i), cat, amt.String()))
			cl := taxline.Classify(cat)
			prev, ok := want[cl.Line]
			if !ok {
				prev = decimal.Zero
			}
			want[cl.Line] = prev.Add(amt.Mul(cl.DeductibleFraction))
		}

		out := Aggregate(&normalizer.Batch{Expenses: rows}, Params{})
		sc := out.ScheduleC

		gotSum, wantSum := decimal.Zero, decimal.Zero
		for line, raw := range want {
			assertDec(t, money.Round(raw).String(), sc.ExpenseTotalsByLine[line], "trial %d line %s", trial, line)
			wantSum = wantSum.Add(money.Round(raw))
		}
		for _, v := range sc.ExpenseTotalsByLine {
			gotSum = gotSum.Add(v)
		}
		assertDec(t, wantSum.String(), gotSum, "trial %d", trial)
		assertDec(t, sc.NetProfit.String(), netIdentity(sc), "trial %d", trial)
	}
}

func TestAggregate_Line27aRoundedOnce(t *testing.T) {
	batch := &normalizer.Batch{Expenses: []types.ExpenseRow{
		expense("e-1", "alpha dues", "0.005"),
		expense("e-2", "beta dues", "0.005"),
		expense("e-3", "gamma dues", "0.005"),
	}}
	sc := Aggregate(batch, Params{}).ScheduleC

	assertDec(t, "0.02", sc.ExpenseTotalsByLine[taxline.Line27a], "0.015 rounded once")
	assertDec(t, "0.02", sc.TotalExpenses)
	assertDec(t, "-0.02", sc.NetProfit)

	require.Len(t, sc.OtherExpenses, 4)
	for _, it := range sc.OtherExpenses[:3] {
		assertDec(t, "0.01", it.Amount, it.Description)
	}
	assert.Equal(t, RoundingDifference, sc.OtherExpenses[3].Description)
	assertDec(t, "-0.01", sc.OtherExpenses[3].Amount)

	sum := decimal.Zero
	for _, it := range sc.OtherExpenses {
		sum = sum.Add(it.Amount)
	}
	assertDec(t, "0.02", sum, "breakdown reconciles with the line")
}

func TestAggregate_PartIAndCostOfGoods(t *testing.T) {
	batch := &normalizer.Batch{
		Income: []types.IncomeRow{
			{ID: "g-1", Amount: dec("2000")},
			{ID: "g-2", Category: "bonus", Amount: dec("150")},
		},
		Expenses: []types.ExpenseRow{
			expense("e-1", "inventory", "300"),
			expense("e-2", "refunds", "25"),
			expense("e-3", "supplies", "75.5"),
		},
	}
	out := Aggregate(batch, Params{})
	sc := out.ScheduleC
	assertDec(t, "2000", sc.GrossReceipts)
	assertDec(t, "150", sc.OtherIncome)
	assertDec(t, "300", sc.COGS)
	assertDec(t, "25", sc.ReturnsAllowances)
	assertDec(t, "75.5", sc.TotalExpenses)
	assertDec(t, "1749.5", sc.NetProfit)
	assertDec(t, sc.NetProfit.String(), netIdentity(sc))

	lines := make([]taxline.LineCode, 0, len(out.LineItems))
	for _, li := range out.LineItems {
		lines = append(lines, li.Line)
	}
	assert.Equal(t, []taxline.LineCode{taxline.Line1, taxline.Line2, taxline.Line4, taxline.Line6, taxline.Line22}, lines)
}

func TestAggregate_OtherExpensesItemized(t *testing.T) {
	batch := &normalizer.Batch{Expenses: []types.ExpenseRow{
		expense("e-1", "Bank Fees", "3.333"),
		expense("e-2", "Training", "10"),
		expense("e-3", "Bank Fees", "3.333"),
		expense("e-4", "", "1"),
	}}
	out := Aggregate(batch, Params{})
	sc := out.ScheduleC

	require.Len(t, sc.OtherExpenses, 3)
	assert.Equal(t, "Bank Fees", sc.OtherExpenses[0].Description)
	assertDec(t, "6.67", sc.OtherExpenses[0].Amount)
	assert.Equal(t, "Training", sc.OtherExpenses[1].Description)
	assert.Equal(t, "Uncategorized", sc.OtherExpenses[2].Description)

	sum := decimal.Zero
	for _, it := range sc.OtherExpenses {
		sum = sum.Add(it.Amount)
	}
	assertDec(t, sum.String(), sc.ExpenseTotalsByLine[taxline.Line27a])
}

func TestAggregate_SelfEmploymentEstimates(t *testing.T) {
	batch := &normalizer.Batch{Income: []types.IncomeRow{{ID: "g-1", Amount: dec("10000")}}}
	sc := Aggregate(batch, Params{}).ScheduleC
	assertDec(t, "9235", sc.SETaxBasis)
	assertDec(t, "1412.96", sc.SETax)
	assertDec(t, "353.24", sc.EstimatedQuarterlyTax)

	loss := Aggregate(&normalizer.Batch{Expenses: []types.ExpenseRow{expense("e", "supplies", "5")}}, Params{}).ScheduleC
	assertDec(t, "-5", loss.NetProfit)
	assert.True(t, loss.SETaxBasis.IsZero())
}

func TestAggregate_PayerSummary(t *testing.T) {
	batch := &normalizer.Batch{Income: []types.IncomeRow{
		{ID: "g-1", Date: date(5, 1), PayerID: "p-1", PayerName: "RideCo", PayerTaxID: "1234", Amount: dec("100"), Fees: dec("10"), Tips: dec("5")},
		{ID: "g-2", Date: date(2, 1), PayerID: "p-1", Amount: dec("200"), Fees: dec("20")},
		{ID: "g-3", Date: date(3, 1), PayerName: "Direct Client", Amount: dec("50")},
		{ID: "g-4", Date: date(4, 1), Amount: dec("1")},
	}}
	rows := Aggregate(batch, Params{IncludeTips: true}).PayerSummaryRows
	require.Len(t, rows, 3)

	assert.Equal(t, "RideCo", rows[0].PayerName)
	assert.Equal(t, 2, rows[0].PaymentCount)
	assertDec(t, "305", rows[0].Gross)
	assertDec(t, "30", rows[0].Fees)
	assertDec(t, "275", rows[0].Net)
	assert.Equal(t, date(2, 1), rows[0].FirstPayment)
	assert.Equal(t, date(5, 1), rows[0].LastPayment)
	assert.Equal(t, "1234", rows[0].TaxIDHint)

	assert.Equal(t, "Direct Client", rows[1].PayerName)
	assert.Equal(t, "Unassigned", rows[2].PayerName)
}

func TestAggregate_EstimatedMileageFlag(t *testing.T) {
	out := Aggregate(&normalizer.Batch{Mileage: []types.MileageRow{
		{ID: "m-1", Miles: dec("10.5")},
		{ID: "m-2", Miles: dec("4.5"), IsEstimate: true},
	}}, Params{MileageRate: dec("0.655")})
	assert.True(t, out.MileageSummary.HasEstimates)
	assertDec(t, "15", out.MileageSummary.TotalMiles)
	assertDec(t, "9.83", out.MileageSummary.Deduction) // 9.825 rounds away from zero
}
