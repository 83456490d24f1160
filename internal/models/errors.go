package models

import "errors"

// Domain errors shared by the service and storage layers. The HTTP layer
// translates them into status codes.
var (
	// ErrAccountNotFound means a referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists means an account with the given id already exists.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidAmount means the amount is zero, negative, or an opening
	// balance is negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSameAccount means source and destination are the same account.
	ErrSameAccount = errors.New("source and destination accounts are the same")

	// ErrInsufficientFunds means applying the debit would leave the source
	// balance negative; the enclosing transaction is rolled back.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
