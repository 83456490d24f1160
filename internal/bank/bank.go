package bank

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/interfaces"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/models"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/models/events"
)

// Service holds the core account and transfer logic. Persistence is behind
// interfaces.AccountStore; the per-account mutex map serialises movements
// touching the same account regardless of which store backs the service.
type Service struct {
	store     interfaces.AccountStore
	publisher interfaces.EventPublisher // optional
	logger    *slog.Logger

	muMap map[string]*sync.Mutex // one mutex per account id
	mapMu sync.Mutex             // protects muMap itself
}

// TransferRequest is the intent to move money between two accounts.
type TransferRequest struct {
	FromAccount    string
	ToAccount      string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// TransferResult reports the applied movement. Replayed is true when the
// idempotency key was already recorded and nothing was re-applied.
type TransferResult struct {
	Transfer models.Transfer
	Replayed bool
}

func NewService(store interfaces.AccountStore, publisher interfaces.EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		muMap:     make(map[string]*sync.Mutex),
	}
}

func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	if _, exists := s.muMap[accountID]; !exists {
		s.muMap[accountID] = &sync.Mutex{}
	}
	return s.muMap[accountID]
}

// CreateAccount opens a single account. The opening balance must not be
// negative.
func (s *Service) CreateAccount(ctx context.Context, accountID string, opening decimal.Decimal) (models.Account, error) {
	if opening.IsNegative() {
		return models.Account{}, models.ErrInvalidAmount
	}

	now := time.Now()
	account := models.Account{
		ID:        accountID,
		Balance:   opening,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return models.Account{}, err
	}
	s.logger.Info("account created", "account_id", account.ID, "balance", account.Balance)
	return account, nil
}

// CreateAccounts bulk-inserts opening accounts, all or none.
func (s *Service) CreateAccounts(ctx context.Context, accounts []models.Account) error {
	now := time.Now()
	for i := range accounts {
		if accounts[i].Balance.IsNegative() {
			return models.ErrInvalidAmount
		}
		accounts[i].CreatedAt = now
		accounts[i].UpdatedAt = now
	}
	if err := s.store.CreateAccounts(ctx, accounts); err != nil {
		return err
	}
	s.logger.Info("accounts seeded", "count", len(accounts))
	return nil
}

// Transfer debits the source and credits the destination as one unit. On any
// failure, including insufficient funds, neither balance changes.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if req.Amount.Cmp(decimal.Zero) <= 0 {
		return TransferResult{}, models.ErrInvalidAmount
	}
	if req.FromAccount == req.ToAccount {
		return TransferResult{}, models.ErrSameAccount
	}

	if req.IdempotencyKey != "" {
		exists, err := s.store.TransferExists(ctx, req.IdempotencyKey)
		if err != nil {
			return TransferResult{}, err
		}
		if exists {
			return TransferResult{Replayed: true}, nil
		}
	}

	debitMu := s.accountLock(req.FromAccount)
	creditMu := s.accountLock(req.ToAccount)

	// Lock in account-id order to avoid deadlocks between opposing transfers.
	if req.FromAccount < req.ToAccount {
		debitMu.Lock()
		creditMu.Lock()
	} else {
		creditMu.Lock()
		debitMu.Lock()
	}
	defer debitMu.Unlock()
	defer creditMu.Unlock()

	transfer := models.Transfer{
		ID:             uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		Kind:           models.KindTransfer,
		FromAccount:    req.FromAccount,
		ToAccount:      req.ToAccount,
		Amount:         req.Amount,
		CreatedAt:      time.Now(),
	}
	if err := s.store.ApplyTransfer(ctx, transfer); err != nil {
		return TransferResult{}, err
	}

	s.logger.Info("transfer applied",
		"transfer_id", transfer.ID,
		"from_account", transfer.FromAccount,
		"to_account", transfer.ToAccount,
		"amount", transfer.Amount,
	)
	s.publish(ctx, transfer)
	return TransferResult{Transfer: transfer}, nil
}

// Deposit credits a single account together with its movement record.
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (models.Transfer, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return models.Transfer{}, models.ErrInvalidAmount
	}

	mu := s.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	deposit := models.Transfer{
		ID:        uuid.New().String(),
		Kind:      models.KindDeposit,
		ToAccount: accountID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	if err := s.store.ApplyDeposit(ctx, deposit); err != nil {
		return models.Transfer{}, err
	}

	s.logger.Info("deposit applied", "transfer_id", deposit.ID, "account_id", accountID, "amount", amount)
	s.publish(ctx, deposit)
	return deposit, nil
}

// Balance returns the current balance of an account.
func (s *Service) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// Account returns the current account row.
func (s *Service) Account(ctx context.Context, accountID string) (models.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// Transfers returns all recorded movements.
func (s *Service) Transfers(ctx context.Context) ([]models.Transfer, error) {
	return s.store.ListTransfers(ctx)
}

// AccountTransfers returns movements touching the given account.
func (s *Service) AccountTransfers(ctx context.Context, accountID string) ([]models.Transfer, error) {
	return s.store.ListTransfersByAccount(ctx, accountID)
}

// publish emits a completed event after the movement has been committed.
// Broker failures must not undo money that already moved, so they are only
// logged.
func (s *Service) publish(ctx context.Context, transfer models.Transfer) {
	if s.publisher == nil {
		return
	}
	event := events.TransferCompleted{
		TransferID:  transfer.ID,
		Kind:        transfer.Kind,
		FromAccount: transfer.FromAccount,
		ToAccount:   transfer.ToAccount,
		Amount:      transfer.Amount,
		OccurredAt:  transfer.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish transfer event", "transfer_id", transfer.ID, "error", err)
	}
}
