package economy

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProcessPayment debits amount from the user's balance.  The debit is a
// single conditional decrement, so two concurrent payments can never
// both pass the balance check and overdraw the account.  When the
// decrement is refused the balance is read only to describe the
// shortfall; no write is issued.
func (s *Service) ProcessPayment(ctx context.Context, userID uint64, amount decimal.Decimal) error {
	if userID == 0 {
		return &ValidationError{Field: "user", Reason: "must be signed in to pay"}
	}
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	ok, err := s.balances.DecrementIfAtLeast(ctx, userID, amount)
	if err != nil {
		return storageErr("debit balance", err)
	}
	if ok {
		return nil
	}
	available, found, err := s.balances.GetBalance(ctx, userID)
	if err != nil {
		return storageErr("read balance", err)
	}
	if !found {
		return storageErr("debit balance", ErrBalanceNotFound)
	}
	return &InsufficientFundsError{Required: amount, Available: available}
}

// PayoutResult describes a revenue share credit.
type PayoutResult struct {
	CreatorID uint64          `json:"creator_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Paid      bool            `json:"paid"`
}

// PayOriginalCreator credits the creator with their share of cost using
// the store's atomic increment.  Paying yourself, or paying nobody, is a
// no-op.  The returned error is for the caller to log; it must never
// undo the transaction being funded.
func (s *Service) PayOriginalCreator(ctx context.Context, creatorID, actingUserID uint64, cost decimal.Decimal) (PayoutResult, error) {
	if creatorID == 0 || creatorID == actingUserID {
		return PayoutResult{}, nil
	}
	share := s.CreatorShareOf(cost)
	res := PayoutResult{CreatorID: creatorID, Amount: share}
	if err := s.balances.AddToBalance(ctx, creatorID, share); err != nil {
		return res, storageErr("credit original creator", err)
	}
	res.Paid = true
	return res, nil
}

// CreatorShareOf returns the revenue share owed on cost, rounded to cents.
func (s *Service) CreatorShareOf(cost decimal.Decimal) decimal.Decimal {
	return cost.Mul(s.cfg.CreatorShare).Round(2)
}

// Balance returns a user's current balance.  A user without a balance
// row yields ErrBalanceNotFound wrapped in a *StorageError.
func (s *Service) Balance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	bal, found, err := s.balances.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, storageErr("read balance", err)
	}
	if !found {
		return decimal.Zero, storageErr("read balance", ErrBalanceNotFound)
	}
	return bal, nil
}

// SetBalance overwrites a user's balance.  It is an administrative
// correction, not a payment path, and is restricted to admins.
func (s *Service) SetBalance(ctx context.Context, actor Actor, userID uint64, balance decimal.Decimal) error {
	if !actor.IsAdmin {
		return ErrForbidden
	}
	if userID == 0 {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if balance.IsNegative() {
		return &ValidationError{Field: "balance", Reason: "must not be negative"}
	}
	if err := s.balances.SetBalance(ctx, userID, balance.Round(2), s.now()); err != nil {
		return storageErr("set balance", err)
	}
	return nil
}
