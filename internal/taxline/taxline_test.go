package taxline

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		category string
		line     LineCode
		fraction string
	}{
		{name: "meals halved", category: "meals", line: Line24b, fraction: "0.5"},
		{name: "food halved", category: "Food", line: Line24b, fraction: "0.5"},
		{name: "entertainment halved", category: "  ENTERTAINMENT ", line: Line24b, fraction: "0.5"},
		{name: "ampersand alias", category: "Meals & Entertainment", line: Line24b, fraction: "0.5"},
		{name: "supplies full", category: "supplies", line: Line22, fraction: "1"},
		{name: "underscore separator", category: "platform_fees", line: Line10, fraction: "1"},
		{name: "phone is utilities", category: "Cell-Phone", line: Line25, fraction: "1"},
		{name: "unknown falls back", category: "llama grooming", line: Line27a, fraction: "1"},
		{name: "empty falls back", category: "", line: Line27a, fraction: "1"},
		{name: "cogs", category: "Inventory", line: Line4, fraction: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.category)
			assert.Equal(t, tt.line, got.Line)
			assert.True(t, decimal.RequireFromString(tt.fraction).Equal(got.DeductibleFraction),
				"fraction = %s", got.DeductibleFraction)
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	inputs := []string{"meals", "gas", "???", "", "Office Supplies", "home-office", "travel"}
	for _, in := range inputs {
		first := Classify(in)
		second := Classify(in)
		assert.Equal(t, first.Line, second.Line, in)
		assert.True(t, first.DeductibleFraction.Equal(second.DeductibleFraction), in)
	}
}

func TestClassify_EveryTableEntryResolves(t *testing.T) {
	for category, code := range categoryTable {
		_, ok := Lookup(code)
		require.True(t, ok, "category %q maps to unknown line %s", category, code)
		assert.True(t, Known(category))
	}
}

func TestFractionsWithinRange(t *testing.T) {
	one := decimal.NewFromInt(1)
	for category, f := range fractionTable {
		assert.True(t, f.GreaterThanOrEqual(decimal.Zero) && f.LessThanOrEqual(one), category)
		_, ok := categoryTable[category]
		assert.True(t, ok, "fraction entry %q has no line", category)
	}
}

func TestAll_SortedAndUniqueTXF(t *testing.T) {
	all := All()
	require.Len(t, all, len(lines))
	seen := map[int]LineCode{}
	for i, l := range all {
		if i > 0 {
			assert.Less(t, all[i-1].Order, l.Order)
		}
		prev, dup := seen[l.TXFRef]
		assert.False(t, dup, "TXF ref %d shared by %s and %s", l.TXFRef, prev, l.Code)
		seen[l.TXFRef] = l.Code
	}
}

func TestLineCodeHelpers(t *testing.T) {
	assert.Equal(t, "Deductible meals", Line24b.Label())
	assert.True(t, Line9.IsExpense())
	assert.False(t, Line1.IsExpense())
	assert.False(t, Line4.IsExpense())
	assert.Equal(t, "nope", LineCode("nope").Label())
	assert.Greater(t, LineCode("nope").Order(), Line30.Order())
	assert.True(t, IsMealsType("Meals"))
	assert.False(t, IsMealsType("travel"))
}

func TestCategories(t *testing.T) {
	entries := Categories()
	require.NotEmpty(t, entries)
	assert.Equal(t, Line1, entries[0].Line)

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		assert.LessOrEqual(t, prev.Line.Order(), cur.Line.Order())
	}

	for _, e := range entries {
		if e.Category == "meals" {
			assert.Equal(t, "0.5", e.DeductibleFraction.String())
			return
		}
	}
	t.Fatal("meals category missing")
}
