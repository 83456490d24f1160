package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer kinds. A deposit is a single-sided credit and carries no
// source account.
const (
	KindTransfer = "transfer"
	KindDeposit  = "deposit"
)

// Transfer represents an applied money movement. For KindTransfer both
// FromAccount and ToAccount are set; for KindDeposit FromAccount is empty.
type Transfer struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Kind           string          `json:"kind"`
	FromAccount    string          `json:"from_account,omitempty"`
	ToAccount      string          `json:"to_account"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}
