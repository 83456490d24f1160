package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a single row in the accounts table.
type Account struct {
	ID        string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
