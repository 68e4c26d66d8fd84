// =============================================================================
// gigtax - Schedule C Line Codes and Category Classifier
// =============================================================================
//
// This package owns the fixed set of IRS Schedule C line identifiers and the
// static table that maps free-form user categories onto them. Every other
// stage of the export pipeline keys its totals by LineCode.
//
// CLASSIFICATION RULES:
//   - Every input maps to some line. Unknown or empty categories land on
//     Line27a ("Other expenses"), so dirty user data never stalls an export.
//   - Meals-type categories carry a deductible fraction of 0.5, everything
//     else 1.0.
//   - Classify is pure: the same string always yields the same result.
//
// CUSTOMIZATION:
//   Adding a category is a one-line change to categoryTable below.
//
// =============================================================================

package taxline

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LINE CODES
// =============================================================================

// LineCode identifies a Schedule C line.
type LineCode string

const (
	Line1   LineCode = "line_1"   // Gross receipts or sales
	Line2   LineCode = "line_2"   // Returns and allowances
	Line4   LineCode = "line_4"   // Cost of goods sold
	Line6   LineCode = "line_6"   // Other income
	Line8   LineCode = "line_8"   // Advertising
	Line9   LineCode = "line_9"   // Car and truck expenses
	Line10  LineCode = "line_10"  // Commissions and fees
	Line11  LineCode = "line_11"  // Contract labor
	Line13  LineCode = "line_13"  // Depreciation
	Line15  LineCode = "line_15"  // Insurance (other than health)
	Line16b LineCode = "line_16b" // Interest (other)
	Line17  LineCode = "line_17"  // Legal and professional services
	Line18  LineCode = "line_18"  // Office expense
	Line20a LineCode = "line_20a" // Rent: vehicles, machinery, equipment
	Line20b LineCode = "line_20b" // Rent: other business property
	Line21  LineCode = "line_21"  // Repairs and maintenance
	Line22  LineCode = "line_22"  // Supplies
	Line23  LineCode = "line_23"  // Taxes and licenses
	Line24a LineCode = "line_24a" // Travel
	Line24b LineCode = "line_24b" // Deductible meals
	Line25  LineCode = "line_25"  // Utilities
	Line26  LineCode = "line_26"  // Wages
	Line27a LineCode = "line_27a" // Other expenses
	Line30  LineCode = "line_30"  // Business use of home
)

// Kind groups lines by how they enter the net profit identity.
type Kind string

const (
	KindIncome    Kind = "income"
	KindReduction Kind = "reduction"
	KindCOGS      Kind = "cogs"
	KindExpense   Kind = "expense"
)

// Line holds the static metadata for a LineCode.
type Line struct {
	Code LineCode
	// Number is the printed line number on the form ("24b").
	Number string
	Label  string
	Kind   Kind
	// TXFRef is the tax exchange format reference number for this line.
	TXFRef int
	// Order is the display order across every renderer.
	Order int
}

// lines is the master table. Order follows the printed form.
var lines = map[LineCode]Line{
	Line1:   {Line1, "1", "Gross receipts or sales", KindIncome, 293, 10},
	Line2:   {Line2, "2", "Returns and allowances", KindReduction, 296, 20},
	Line4:   {Line4, "4", "Cost of goods sold", KindCOGS, 295, 40},
	Line6:   {Line6, "6", "Other income", KindIncome, 303, 60},
	Line8:   {Line8, "8", "Advertising", KindExpense, 304, 80},
	Line9:   {Line9, "9", "Car and truck expenses", KindExpense, 306, 90},
	Line10:  {Line10, "10", "Commissions and fees", KindExpense, 307, 100},
	Line11:  {Line11, "11", "Contract labor", KindExpense, 685, 110},
	Line13:  {Line13, "13", "Depreciation", KindExpense, 309, 130},
	Line15:  {Line15, "15", "Insurance (other than health)", KindExpense, 312, 150},
	Line16b: {Line16b, "16b", "Interest (other)", KindExpense, 314, 165},
	Line17:  {Line17, "17", "Legal and professional services", KindExpense, 298, 170},
	Line18:  {Line18, "18", "Office expense", KindExpense, 313, 180},
	Line20a: {Line20a, "20a", "Rent or lease: vehicles, machinery, equipment", KindExpense, 299, 200},
	Line20b: {Line20b, "20b", "Rent or lease: other business property", KindExpense, 300, 205},
	Line21:  {Line21, "21", "Repairs and maintenance", KindExpense, 301, 210},
	Line22:  {Line22, "22", "Supplies", KindExpense, 302, 220},
	Line23:  {Line23, "23", "Taxes and licenses", KindExpense, 305, 230},
	Line24a: {Line24a, "24a", "Travel", KindExpense, 310, 240},
	Line24b: {Line24b, "24b", "Deductible meals", KindExpense, 294, 245},
	Line25:  {Line25, "25", "Utilities", KindExpense, 311, 250},
	Line26:  {Line26, "26", "Wages", KindExpense, 297, 260},
	Line27a: {Line27a, "27a", "Other expenses", KindExpense, 308, 270},
	Line30:  {Line30, "30", "Business use of home", KindExpense, 315, 300},
}

// Lookup returns the metadata for a line code.
func Lookup(code LineCode) (Line, bool) {
	l, ok := lines[code]
	return l, ok
}

// MustLookup is Lookup for codes that come from this package's own constants.
func MustLookup(code LineCode) Line {
	l, ok := lines[code]
	if !ok {
		panic("taxline: unknown line code " + string(code))
	}
	return l
}

// All returns every line in display order.
func All() []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Label returns the printable label, or the raw code for unknown codes.
func (c LineCode) Label() string {
	if l, ok := lines[c]; ok {
		return l.Label
	}
	return string(c)
}

// Order returns the display order of the line; unknown codes sort last.
func (c LineCode) Order() int {
	if l, ok := lines[c]; ok {
		return l.Order
	}
	return 1 << 20
}

// IsExpense reports whether the line is a Part II expense line.
func (c LineCode) IsExpense() bool {
	l, ok := lines[c]
	return ok && l.Kind == KindExpense
}

// =============================================================================
// CATEGORY TABLE
// =============================================================================

// Classification is the result of classifying a category string.
type Classification struct {
	Line               LineCode        `yaml:"line"`
	DeductibleFraction decimal.Decimal `yaml:"deductible_fraction"`
}

var (
	full = decimal.NewFromInt(1)
	half = decimal.New(5, -1)
)

// categoryTable maps normalized category names to lines. Fractions other
// than 1.0 live in fractionTable.
var categoryTable = map[string]LineCode{
	// Part I
	"income":          Line1,
	"sales":           Line1,
	"gig":             Line1,
	"returns":         Line2,
	"refunds":         Line2,
	"allowances":      Line2,
	"cost of goods":   Line4,
	"cogs":            Line4,
	"inventory":       Line4,
	"materials":       Line4,
	"other income":    Line6,
	"bonus":           Line6,
	"referral":        Line6,
	"interest income": Line6,
	// Part II
	"advertising":             Line8,
	"marketing":               Line8,
	"promotion":               Line8,
	"car":                     Line9,
	"vehicle":                 Line9,
	"gas":                     Line9,
	"fuel":                    Line9,
	"parking":                 Line9,
	"tolls":                   Line9,
	"mileage":                 Line9,
	"fees":                    Line10,
	"platform fees":           Line10,
	"commissions":             Line10,
	"service fees":            Line10,
	"contract labor":          Line11,
	"contractors":             Line11,
	"freelancers":             Line11,
	"depreciation":            Line13,
	"equipment":               Line13,
	"insurance":               Line15,
	"interest":                Line16b,
	"loan interest":           Line16b,
	"legal":                   Line17,
	"accounting":              Line17,
	"professional":            Line17,
	"tax prep":                Line17,
	"office":                  Line18,
	"office supplies":         Line18,
	"software":                Line18,
	"subscriptions":           Line18,
	"postage":                 Line18,
	"equipment rental":        Line20a,
	"vehicle rental":          Line20a,
	"rent":                    Line20b,
	"coworking":               Line20b,
	"repairs":                 Line21,
	"maintenance":             Line21,
	"supplies":                Line22,
	"taxes":                   Line23,
	"licenses":                Line23,
	"permits":                 Line23,
	"travel":                  Line24a,
	"lodging":                 Line24a,
	"airfare":                 Line24a,
	"meals":                   Line24b,
	"food":                    Line24b,
	"entertainment":           Line24b,
	"meals and entertainment": Line24b,
	"utilities":               Line25,
	"phone":                   Line25,
	"internet":                Line25,
	"cell phone":              Line25,
	"wages":                   Line26,
	"payroll":                 Line26,
	"other":                   Line27a,
	"miscellaneous":           Line27a,
	"bank fees":               Line27a,
	"education":               Line27a,
	"home office":             Line30,
}

// fractionTable lists categories whose deductible fraction is not 1.0.
var fractionTable = map[string]decimal.Decimal{
	"meals":                   half,
	"food":                    half,
	"entertainment":           half,
	"meals and entertainment": half,
}

// =============================================================================
// CLASSIFY
// =============================================================================

// Classify maps a free-form category to its Schedule C line and deductible
// fraction. It never fails: unmapped input falls back to Line27a.
func Classify(category string) Classification {
	key := Normalize(category)
	line, ok := categoryTable[key]
	if !ok {
		return Classification{Line: Line27a, DeductibleFraction: full}
	}
	if f, ok := fractionTable[key]; ok {
		return Classification{Line: line, DeductibleFraction: f}
	}
	return Classification{Line: line, DeductibleFraction: full}
}

// Known reports whether category has an explicit table entry.
func Known(category string) bool {
	_, ok := categoryTable[Normalize(category)]
	return ok
}

// IsMealsType reports whether category is one of the reduced-fraction
// meals categories.
func IsMealsType(category string) bool {
	_, ok := fractionTable[Normalize(category)]
	return ok
}

// Normalize lower-cases the category, maps separators to spaces and
// collapses runs of whitespace.
func Normalize(category string) string {
	s := strings.ToLower(strings.TrimSpace(category))
	s = strings.NewReplacer("_", " ", "-", " ", "&", " and ", "/", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// CategoryEntry is one row of the category table.
type CategoryEntry struct {
	Category string
	Classification
}

// Categories returns the category table sorted by line order, then name.
func Categories() []CategoryEntry {
	out := make([]CategoryEntry, 0, len(categoryTable))
	for name := range categoryTable {
		out = append(out, CategoryEntry{Category: name, Classification: Classify(name)})
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := out[i].Line.Order(), out[j].Line.Order()
		if oi != oj {
			return oi < oj
		}
		return out[i].Category < out[j].Category
	})
	return out
}
