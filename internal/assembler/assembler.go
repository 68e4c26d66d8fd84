// Package assembler merges a passed validation and the aggregator's output
// into the canonical TaxExportPackage.
//
// The assembler is only ever reached after validation passed. Everything it
// can fail on is a contract violation (missing tax year, missing or inverted
// date range, a blocked validation result sneaking through) and is reported
// as a *types.ContractError, never as a user-facing validation issue.
package assembler

import (
	"fmt"
	"time"

	"github.com/gigledger/gigtax/internal/aggregator"
	"github.com/gigledger/gigtax/internal/money"
	"github.com/gigledger/gigtax/internal/normalizer"
	"github.com/gigledger/gigtax/internal/types"
	"github.com/gigledger/gigtax/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is recorded when the caller leaves Currency empty.
const DefaultCurrency = "USD"

// EngineVersion is stamped into every package.
var EngineVersion = "dev"

// Input is everything the assembler merges.
type Input struct {
	TaxYear     int
	Start       time.Time
	End         time.Time
	IncludeTips bool
	IncludeFees bool
	MileageRate decimal.Decimal
	Currency    string

	// ExportID and GeneratedAt are generated when zero.
	ExportID    string
	GeneratedAt time.Time

	Batch      *normalizer.Batch
	Validation *validation.Result
	Totals     *aggregator.Output
}

const op = "assemble"

// Assemble builds the package.
//
// PARAMETERS:
//   - in: The run metadata plus the batch, its validation result and the
//     aggregator output for that same batch.
//
// RETURNS:
//   - The package. Its row slices are fresh copies and never nil.
//   - A *types.ContractError if required metadata is missing or the
//     validation result carries blocking errors.
func Assemble(in Input) (*types.TaxExportPackage, error) {
	if err := check(in); err != nil {
		return nil, err
	}

	meta := types.Metadata{
		ExportID:      in.ExportID,
		TaxYear:       in.TaxYear,
		StartDate:     in.Start,
		EndDate:       in.End,
		Currency:      in.Currency,
		Rounding:      types.Rounding{Places: money.Places, Mode: money.RoundingMode},
		IncludeTips:   in.IncludeTips,
		IncludeFees:   in.IncludeFees,
		MileageRate:   in.MileageRate,
		GeneratedAt:   in.GeneratedAt,
		EngineVersion: EngineVersion,
	}
	if meta.ExportID == "" {
		meta.ExportID = uuid.New().String()
	}
	if meta.Currency == "" {
		meta.Currency = DefaultCurrency
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now().UTC().Truncate(time.Second)
	}

	sc := in.Totals.ScheduleC
	sc.ExpenseTotalsByLine = copyMap(sc.ExpenseTotalsByLine)
	sc.OtherExpenses = copySlice(sc.OtherExpenses)

	return &types.TaxExportPackage{
		Metadata:           meta,
		ScheduleC:          sc,
		ScheduleCLineItems: copySlice(in.Totals.LineItems),
		IncomeRows:         copySlice(in.Batch.Income),
		ExpenseRows:        copyExpenses(in.Batch.Expenses),
		MileageRows:        copySlice(in.Batch.Mileage),
		PayerSummaryRows:   copySlice(in.Totals.PayerSummaryRows),
		MileageSummary:     in.Totals.MileageSummary,
		Warnings:           copySlice(in.Validation.Warnings()),
	}, nil
}

func check(in Input) error {
	switch {
	case in.Batch == nil || in.Validation == nil || in.Totals == nil:
		return types.NewContractError(op, "batch, validation result and totals are all required")
	case in.TaxYear <= 0:
		return types.NewContractError(op, "tax year is missing")
	case in.Start.IsZero() || in.End.IsZero():
		return types.NewContractError(op, "date range is missing")
	case in.End.Before(in.Start):
		return types.NewContractError(op, fmt.Sprintf("date range is inverted: %s after %s",
			in.Start.Format(time.DateOnly), in.End.Format(time.DateOnly)))
	case !in.Validation.IsValid:
		return types.NewContractError(op, fmt.Sprintf("validation has %d blocking error(s)", in.Validation.ErrorCount))
	}
	return nil
}

func copySlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// copyExpenses also copies each recorded fraction so no pointer is shared
// with the batch.
func copyExpenses(in []types.ExpenseRow) []types.ExpenseRow {
	out := copySlice(in)
	for i := range out {
		if f := out[i].RecordedFraction; f != nil {
			v := *f
			out[i].RecordedFraction = &v
		}
	}
	return out
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
