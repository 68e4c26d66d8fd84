// Package rendertest builds packages for renderer tests by running the real
// pipeline stages over small raw inputs.
package rendertest

import (
	"time"

	"github.com/gigledger/gigtax/internal/aggregator"
	"github.com/gigledger/gigtax/internal/assembler"
	"github.com/gigledger/gigtax/internal/normalizer"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/gigledger/gigtax/internal/validation"
	"github.com/shopspring/decimal"
)

// TrickyDescription contains a comma, a quote and a newline.
const TrickyDescription = "Airport run, \"red-eye\"\nsurge pricing"

// MissingPayerWarning is the message the validator emits for Raw's second gig.
const MissingPayerWarning = "gig has no payer name"

// GeneratedAt is the fixed generation time of every built package.
var GeneratedAt = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

// Raw is a small but complete input: two gigs (one without a payer name),
// a meals expense, an other-expense, a supply purchase and two trips.
func Raw() types.RawData {
	return types.RawData{
		Income: []types.RawRow{
			{"id": "g-1", "date": "2024-03-01", "platform": "RideCo", "description": TrickyDescription,
				"payer_id": "p-1", "amount": "1000", "fees": "50", "tips": "100"},
			{"id": "g-2", "date": "2024-04-12", "platform": "Direct", "amount": "250.50"},
		},
		Expenses: []types.RawRow{
			{"id": "e-1", "date": "2024-03-02", "category": "Meals", "merchant": "Diner", "amount": "80"},
			{"id": "e-2", "date": "2024-05-20", "category": "Bank Fees", "amount": "12.34"},
			{"id": "e-3", "date": "2024-06-01", "category": "supplies", "merchant": "Office, Inc.", "amount": "45.10"},
		},
		Mileage: []types.RawRow{
			{"id": "m-1", "date": "2024-03-01", "origin": "Home", "destination": "Airport", "purpose": "pickup", "miles": "100"},
			{"id": "m-2", "date": "2024-03-04", "origin": "Airport", "destination": "Home", "purpose": "return", "miles": "20.5", "is_estimate": "yes"},
		},
		Payers: []types.RawRow{
			{"id": "p-1", "name": "RideCo Inc", "tax_id": "**-***1234"},
		},
	}
}

// Package runs Raw through the pipeline for tax year 2024.
func Package() *types.TaxExportPackage {
	return Build(Raw())
}

// Build runs raw through normalize, validate, aggregate and assemble with
// tips and fees included and the 2024 mileage rate. It panics if the input
// does not produce a package.
func Build(raw types.RawData) *types.TaxExportPackage {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	rate := decimal.RequireFromString("0.67")

	batch := normalizer.Normalize(raw, normalizer.Options{Start: start, End: end})
	result := validation.Validate(batch)
	totals := aggregator.Aggregate(batch, aggregator.Params{IncludeTips: true, IncludeFees: true, MileageRate: rate})

	pkg, err := assembler.Assemble(assembler.Input{
		TaxYear:     2024,
		Start:       start,
		End:         end,
		IncludeTips: true,
		IncludeFees: true,
		MileageRate: rate,
		ExportID:    "7f1c2a5e-4b7d-4c1e-9a51-2f0c6d1b8e11",
		GeneratedAt: GeneratedAt,
		Batch:       batch,
		Validation:  result,
		Totals:      totals,
	})
	if err != nil {
		panic(err)
	}
	return pkg
}
