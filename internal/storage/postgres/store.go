package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/interfaces"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/models"
)

// AccountStore is a postgres-backed implementation of interfaces.AccountStore.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (p *AccountStore) CreateAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts (account_id, balance, created_at, updated_at)
	VALUES ($1, $2, $3, $4)`

	_, err := p.db.ExecContext(ctx, query, account.ID, account.Balance, account.CreatedAt, account.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrAccountExists
	}
	return err
}

// CreateAccounts bulk-inserts the opening accounts inside one transaction.
func (p *AccountStore) CreateAccounts(ctx context.Context, accounts []models.Account) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO accounts (account_id, balance, created_at, updated_at)
	VALUES ($1, $2, $3, $4)`

	for _, account := range accounts {
		if _, err = tx.ExecContext(ctx, query, account.ID, account.Balance, account.CreatedAt, account.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				err = models.ErrAccountExists
			}
			return err
		}
	}
	return tx.Commit()
}

func (p *AccountStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	const query = `SELECT account_id, balance, created_at, updated_at FROM accounts
	WHERE account_id = $1`

	var account models.Account
	err := p.db.QueryRowContext(ctx, query, accountID).Scan(
		&account.ID,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, models.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// ApplyTransfer runs the debit, the post-condition check, the credit and the
// transfer record as a single database transaction. Any failure, including a
// source balance that would go negative, rolls the whole thing back and the
// accounts are left exactly as they were.
func (p *AccountStore) ApplyTransfer(ctx context.Context, transfer models.Transfer) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Row locks are taken in account-id order so two opposing transfers
	// cannot deadlock each other.
	if transfer.FromAccount < transfer.ToAccount {
		if err = p.debit(ctx, tx, transfer.FromAccount, transfer.Amount); err != nil {
			return err
		}
		if err = p.credit(ctx, tx, transfer.ToAccount, transfer.Amount); err != nil {
			return err
		}
	} else {
		if err = p.credit(ctx, tx, transfer.ToAccount, transfer.Amount); err != nil {
			return err
		}
		if err = p.debit(ctx, tx, transfer.FromAccount, transfer.Amount); err != nil {
			return err
		}
	}

	if err = p.record(ctx, tx, transfer); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyDeposit credits one account and records the deposit in the same
// transaction.
func (p *AccountStore) ApplyDeposit(ctx context.Context, deposit models.Transfer) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = p.credit(ctx, tx, deposit.ToAccount, deposit.Amount); err != nil {
		return err
	}
	if err = p.record(ctx, tx, deposit); err != nil {
		return err
	}
	return tx.Commit()
}

// debit subtracts amount and checks the post-condition on the returned
// balance. There is no CHECK constraint on the table; a negative result here
// is what triggers the rollback.
func (p *AccountStore) debit(ctx context.Context, tx *sql.Tx, accountID string, amount decimal.Decimal) error {
	const query = `UPDATE accounts SET balance = balance - $2, updated_at = now()
	WHERE account_id = $1
	RETURNING balance`

	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, query, accountID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if balance.IsNegative() {
		return models.ErrInsufficientFunds
	}
	return nil
}

func (p *AccountStore) credit(ctx context.Context, tx *sql.Tx, accountID string, amount decimal.Decimal) error {
	const query = `UPDATE accounts SET balance = balance + $2, updated_at = now()
	WHERE account_id = $1
	RETURNING balance`

	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, query, accountID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrAccountNotFound
	}
	return err
}

func (p *AccountStore) record(ctx context.Context, tx *sql.Tx, transfer models.Transfer) error {
	const query = `INSERT INTO transfers (id, idempotency_key, kind, from_account, to_account, amount, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.ExecContext(ctx, query,
		transfer.ID,
		nullable(transfer.IdempotencyKey),
		transfer.Kind,
		nullable(transfer.FromAccount),
		transfer.ToAccount,
		transfer.Amount,
		transfer.CreatedAt,
	)
	return err
}

func (p *AccountStore) TransferExists(ctx context.Context, idempotencyKey string) (bool, error) {
	const query = `SELECT 1 FROM transfers WHERE idempotency_key = $1 LIMIT 1`

	var exists int
	err := p.db.QueryRowContext(ctx, query, idempotencyKey).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *AccountStore) ListTransfers(ctx context.Context) ([]models.Transfer, error) {
	const query = `SELECT id, idempotency_key, kind, from_account, to_account, amount, created_at
	FROM transfers ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func (p *AccountStore) ListTransfersByAccount(ctx context.Context, accountID string) ([]models.Transfer, error) {
	const query = `SELECT id, idempotency_key, kind, from_account, to_account, amount, created_at
	FROM transfers
	WHERE from_account = $1 OR to_account = $1
	ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func scanTransfers(rows *sql.Rows) ([]models.Transfer, error) {
	var transfers []models.Transfer
	for rows.Next() {
		var (
			t    models.Transfer
			key  sql.NullString
			from sql.NullString
		)
		if err := rows.Scan(&t.ID, &key, &t.Kind, &from, &t.ToAccount, &t.Amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.IdempotencyKey = key.String
		t.FromAccount = from.String
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation reports whether err is postgres error class 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ interfaces.AccountStore = (*AccountStore)(nil)
