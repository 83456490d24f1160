package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferCompleted is emitted after a movement has been committed.
type TransferCompleted struct {
	TransferID  string          `json:"transfer_id"`
	Kind        string          `json:"kind"`
	FromAccount string          `json:"from_account,omitempty"`
	ToAccount   string          `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
