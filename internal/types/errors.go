package types

import (
	"errors"
	"fmt"
)

// ErrContract marks programming / contract failures inside the engine:
// missing metadata reaching the assembler, a renderer handed a nil package.
// Callers should log and alert rather than show these to the user.
var ErrContract = errors.New("export engine contract violation")

// ContractError wraps ErrContract with the operation that detected it.
type ContractError struct {
	Op     string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrContract, e.Op, e.Reason)
}

func (e *ContractError) Unwrap() error {
	return ErrContract
}

// NewContractError builds a ContractError.
func NewContractError(op, reason string) error {
	return &ContractError{Op: op, Reason: reason}
}

// ValidationFailedError is returned when blocking issues stop an export. It
// carries the complete issue list, warnings included, so the caller can show
// the user everything at once.
type ValidationFailedError struct {
	Issues     []Issue
	ErrorCount int
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("export blocked by %d validation error(s)", e.ErrorCount)
}

// IsContractError reports whether err is an engine-side failure.
func IsContractError(err error) bool {
	return errors.Is(err, ErrContract)
}

// IsValidationFailure reports whether err is a user-data failure.
func IsValidationFailure(err error) bool {
	var vf *ValidationFailedError
	return errors.As(err, &vf)
}
