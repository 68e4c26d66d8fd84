package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gigledger/gigtax/internal/taxline"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestExpenseRow_EffectiveFraction(t *testing.T) {
	row := ExpenseRow{Classification: taxline.Classify("meals")}
	assert.Equal(t, "0.5", row.EffectiveFraction().String())

	zero := decimal.Zero
	row.RecordedFraction = &zero
	assert.True(t, row.EffectiveFraction().IsZero())
}

func TestEntityOrder(t *testing.T) {
	assert.Less(t, EntityGig.EntityOrder(), EntityExpense.EntityOrder())
	assert.Less(t, EntityExpense.EntityOrder(), EntityMileage.EntityOrder())
	assert.Less(t, EntityMileage.EntityOrder(), Entity("other").EntityOrder())
}

func TestIssueString(t *testing.T) {
	is := Issue{Severity: SeverityWarning, Entity: EntityGig, Field: "payer_name", Message: "missing payer name", RecordID: "g-1"}
	assert.Equal(t, "[warning] gig g-1 payer_name: missing payer name", is.String())
	assert.False(t, is.IsError())
}

func TestErrorKinds(t *testing.T) {
	contract := fmt.Errorf("assemble: %w", NewContractError("assemble", "tax year is zero"))
	assert.True(t, IsContractError(contract))
	assert.False(t, IsValidationFailure(contract))
	assert.True(t, errors.Is(contract, ErrContract))

	blocked := fmt.Errorf("run: %w", &ValidationFailedError{ErrorCount: 2})
	assert.True(t, IsValidationFailure(blocked))
	assert.False(t, IsContractError(blocked))
	assert.Contains(t, blocked.Error(), "2 validation error(s)")
}
