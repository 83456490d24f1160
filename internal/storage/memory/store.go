package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/interfaces"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/models"
)

// AccountStore is an in-memory implementation of interfaces.AccountStore.
// Every mutation happens inside a single critical section, so a transfer is
// applied all-or-nothing the same way the postgres store applies it inside a
// database transaction.
type AccountStore struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	transfers []models.Transfer
	byKey     map[string]models.Transfer // idempotency key -> applied transfer
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]models.Account),
		byKey:    make(map[string]models.Transfer),
	}
}

func (m *AccountStore) CreateAccount(ctx context.Context, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(account)
}

// CreateAccounts inserts all accounts or none of them.
func (m *AccountStore) CreateAccounts(ctx context.Context, accounts []models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		if _, exists := m.accounts[account.ID]; exists {
			return models.ErrAccountExists
		}
		if _, dup := seen[account.ID]; dup {
			return models.ErrAccountExists
		}
		seen[account.ID] = struct{}{}
	}
	for _, account := range accounts {
		if err := m.createLocked(account); err != nil {
			return err
		}
	}
	return nil
}

func (m *AccountStore) createLocked(account models.Account) error {
	if _, exists := m.accounts[account.ID]; exists {
		return models.ErrAccountExists
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *AccountStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	return account, nil
}

// ApplyTransfer debits the source, credits the destination and records the
// transfer. If the debit would leave the source negative nothing is changed.
func (m *AccountStore) ApplyTransfer(ctx context.Context, transfer models.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, ok := m.accounts[transfer.FromAccount]
	if !ok {
		return models.ErrAccountNotFound
	}
	to, ok := m.accounts[transfer.ToAccount]
	if !ok {
		return models.ErrAccountNotFound
	}

	debited := from.Balance.Sub(transfer.Amount)
	if debited.IsNegative() {
		return models.ErrInsufficientFunds
	}

	now := time.Now()
	from.Balance = debited
	from.UpdatedAt = now
	to.Balance = to.Balance.Add(transfer.Amount)
	to.UpdatedAt = now
	m.accounts[from.ID] = from
	m.accounts[to.ID] = to
	m.recordLocked(transfer)
	return nil
}

// ApplyDeposit credits a single account and records the deposit.
func (m *AccountStore) ApplyDeposit(ctx context.Context, deposit models.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[deposit.ToAccount]
	if !ok {
		return models.ErrAccountNotFound
	}

	account.Balance = account.Balance.Add(deposit.Amount)
	account.UpdatedAt = time.Now()
	m.accounts[account.ID] = account
	m.recordLocked(deposit)
	return nil
}

func (m *AccountStore) recordLocked(transfer models.Transfer) {
	m.transfers = append(m.transfers, transfer)
	if transfer.IdempotencyKey != "" {
		m.byKey[transfer.IdempotencyKey] = transfer
	}
}

func (m *AccountStore) TransferExists(ctx context.Context, idempotencyKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.byKey[idempotencyKey]
	return exists, nil
}

// ListTransfers returns a copy so callers cannot mutate internal state.
func (m *AccountStore) ListTransfers(ctx context.Context) ([]models.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.Transfer, len(m.transfers))
	copy(copied, m.transfers)
	return copied, nil
}

func (m *AccountStore) ListTransfersByAccount(ctx context.Context, accountID string) ([]models.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Transfer
	for _, t := range m.transfers {
		if t.FromAccount == accountID || t.ToAccount == accountID {
			result = append(result, t)
		}
	}
	return result, nil
}

var _ interfaces.AccountStore = (*AccountStore)(nil)
