package economy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by stores when the requested phillboard does
// not exist.  Handlers translate it into a 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller tries to act on a phillboard
// they neither own nor administer.
var ErrForbidden = errors.New("forbidden")

// ErrBalanceNotFound signals that the acting user has no balance row.
// Balances are provisioned at registration, so this is a data problem
// rather than a user error.
var ErrBalanceNotFound = errors.New("balance not found")

// ValidationError reports bad input caught before any storage call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// InsufficientFundsError is the user-presentable failure of a debit.  It
// carries the amount required so the client can show exactly what is
// missing.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: this costs $%s and your balance is $%s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

// Shortfall is the amount the user is missing.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

// StorageError wraps a failed backing call together with the step that
// issued it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
