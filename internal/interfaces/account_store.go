package interfaces

import (
	"context"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/models"
)

// AccountStore is the persistence seam for accounts and transfers. Both
// ApplyTransfer and ApplyDeposit must be all-or-nothing: either the balance
// change(s) and the transfer record are all persisted, or none are.
type AccountStore interface {
	CreateAccount(ctx context.Context, account models.Account) error
	CreateAccounts(ctx context.Context, accounts []models.Account) error
	GetAccount(ctx context.Context, accountID string) (models.Account, error)

	ApplyTransfer(ctx context.Context, transfer models.Transfer) error
	ApplyDeposit(ctx context.Context, deposit models.Transfer) error

	TransferExists(ctx context.Context, idempotencyKey string) (bool, error)
	ListTransfers(ctx context.Context) ([]models.Transfer, error)
	ListTransfersByAccount(ctx context.Context, accountID string) ([]models.Transfer, error)
}
