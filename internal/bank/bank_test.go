package bank

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/models"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// newSeededService returns a service over the memory store with the two
// demo accounts: A=1000.00, B=500.00.
func newSeededService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(memory.NewAccountStore(), nil, testLogger())
	err := svc.CreateAccounts(context.Background(), []models.Account{
		{ID: "A", Balance: dec(t, "1000.00")},
		{ID: "B", Balance: dec(t, "500.00")},
	})
	if err != nil {
		t.Fatalf("seed accounts: %v", err)
	}
	return svc
}

func requireBalance(t *testing.T, svc *Service, accountID, want string) {
	t.Helper()
	balance, err := svc.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("Balance(%s): %v", accountID, err)
	}
	if !balance.Equal(dec(t, want)) {
		t.Fatalf("balance of %s = %s, want %s", accountID, balance, want)
	}
}

// TestTransferSequence walks the full demonstration sequence: committed
// transfer, deposit, second transfer, then an over-draw that must roll back
// leaving both balances untouched.
func TestTransferSequence(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	requireBalance(t, svc, "A", "1000.00")
	requireBalance(t, svc, "B", "500.00")

	if _, err := svc.Transfer(ctx, TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "100.00")}); err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	requireBalance(t, svc, "A", "900.00")
	requireBalance(t, svc, "B", "600.00")

	if _, err := svc.Deposit(ctx, "A", dec(t, "100.00")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	requireBalance(t, svc, "A", "1000.00")
	requireBalance(t, svc, "B", "600.00")

	if _, err := svc.Transfer(ctx, TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "100.00")}); err != nil {
		t.Fatalf("second transfer: %v", err)
	}
	requireBalance(t, svc, "A", "900.00")
	requireBalance(t, svc, "B", "700.00")

	_, err := svc.Transfer(ctx, TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "10000.00")})
	if !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("over-draw transfer err = %v, want ErrInsufficientFunds", err)
	}
	requireBalance(t, svc, "A", "900.00")
	requireBalance(t, svc, "B", "700.00")
}

func TestTransferRollbackRecordsNothing(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	_, err := svc.Transfer(ctx, TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "10000.00")})
	if !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	transfers, err := svc.Transfers(ctx)
	if err != nil {
		t.Fatalf("Transfers: %v", err)
	}
	if len(transfers) != 0 {
		t.Fatalf("got %d transfer records after rollback, want 0", len(transfers))
	}
}

func TestTransferValidation(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	cases := []struct {
		name string
		req  TransferRequest
		want error
	}{
		{"zero amount", TransferRequest{FromAccount: "A", ToAccount: "B", Amount: decimal.Zero}, models.ErrInvalidAmount},
		{"negative amount", TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "-5.00")}, models.ErrInvalidAmount},
		{"same account", TransferRequest{FromAccount: "A", ToAccount: "A", Amount: dec(t, "1.00")}, models.ErrSameAccount},
		{"unknown source", TransferRequest{FromAccount: "X", ToAccount: "B", Amount: dec(t, "1.00")}, models.ErrAccountNotFound},
		{"unknown destination", TransferRequest{FromAccount: "A", ToAccount: "X", Amount: dec(t, "1.00")}, models.ErrAccountNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Transfer(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	// None of the rejected requests may have touched the balances.
	requireBalance(t, svc, "A", "1000.00")
	requireBalance(t, svc, "B", "500.00")
}

func TestIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	req := TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "100.00"), IdempotencyKey: "key-1"}

	first, err := svc.Transfer(ctx, req)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	if first.Replayed {
		t.Fatal("first transfer reported as replayed")
	}

	second, err := svc.Transfer(ctx, req)
	if err != nil {
		t.Fatalf("replayed transfer: %v", err)
	}
	if !second.Replayed {
		t.Fatal("second transfer with same key not reported as replayed")
	}

	requireBalance(t, svc, "A", "900.00")
	requireBalance(t, svc, "B", "600.00")
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	if _, err := svc.Deposit(ctx, "X", dec(t, "10.00")); !errors.Is(err, models.ErrAccountNotFound) {
		t.Fatalf("deposit to unknown account err = %v, want ErrAccountNotFound", err)
	}
	if _, err := svc.Deposit(ctx, "A", decimal.Zero); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("zero deposit err = %v, want ErrInvalidAmount", err)
	}

	deposit, err := svc.Deposit(ctx, "A", dec(t, "25.00"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if deposit.Kind != models.KindDeposit {
		t.Fatalf("deposit kind = %q, want %q", deposit.Kind, models.KindDeposit)
	}
	if deposit.FromAccount != "" {
		t.Fatalf("deposit has source account %q", deposit.FromAccount)
	}
	requireBalance(t, svc, "A", "1025.00")
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewAccountStore(), nil, testLogger())

	if _, err := svc.CreateAccount(ctx, "A", dec(t, "-1.00")); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("negative opening err = %v, want ErrInvalidAmount", err)
	}

	if _, err := svc.CreateAccount(ctx, "A", dec(t, "1000.00")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateAccount(ctx, "A", dec(t, "1.00")); !errors.Is(err, models.ErrAccountExists) {
		t.Fatalf("duplicate err = %v, want ErrAccountExists", err)
	}
}

func TestAccountTransfersHistory(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	if _, err := svc.Transfer(ctx, TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "100.00")}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Deposit(ctx, "A", dec(t, "100.00")); err != nil {
		t.Fatal(err)
	}

	forA, err := svc.AccountTransfers(ctx, "A")
	if err != nil {
		t.Fatalf("AccountTransfers(A): %v", err)
	}
	if len(forA) != 2 {
		t.Fatalf("A has %d movements, want 2", len(forA))
	}

	forB, err := svc.AccountTransfers(ctx, "B")
	if err != nil {
		t.Fatalf("AccountTransfers(B): %v", err)
	}
	if len(forB) != 1 {
		t.Fatalf("B has %d movements, want 1", len(forB))
	}
}

// TestConcurrentTransfersConserveTotal fires opposing transfers from many
// goroutines and checks that money is neither created nor destroyed.
func TestConcurrentTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	const workers = 10
	const iterations = 20
	amount := dec(t, "1.00")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		from, to := "A", "B"
		if i%2 == 0 {
			from, to = "B", "A"
		}
		wg.Add(1)
		go func(from, to string) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				_, err := svc.Transfer(ctx, TransferRequest{FromAccount: from, ToAccount: to, Amount: amount})
				if err != nil && !errors.Is(err, models.ErrInsufficientFunds) {
					t.Errorf("transfer %s->%s: %v", from, to, err)
					return
				}
			}
		}(from, to)
	}
	wg.Wait()

	a, err := svc.Balance(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Balance(ctx, "B")
	if err != nil {
		t.Fatal(err)
	}
	if total := a.Add(b); !total.Equal(dec(t, "1500.00")) {
		t.Fatalf("total = %s, want 1500.00", total)
	}
	if a.IsNegative() || b.IsNegative() {
		t.Fatalf("negative balance after concurrent transfers: A=%s B=%s", a, b)
	}
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (c *capturingPublisher) Publish(ctx context.Context, event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func TestTransferPublishesEvent(t *testing.T) {
	ctx := context.Background()
	pub := &capturingPublisher{}
	svc := NewService(memory.NewAccountStore(), pub, testLogger())
	if err := svc.CreateAccounts(ctx, []models.Account{
		{ID: "A", Balance: dec(t, "1000.00")},
		{ID: "B", Balance: dec(t, "500.00")},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Transfer(ctx, TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "100.00")}); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}

	// A failed transfer must not publish.
	if _, err := svc.Transfer(ctx, TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "10000.00")}); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatal(err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events after failed transfer, want 1", len(pub.events))
	}
}

func TestPublishFailureDoesNotFailTransfer(t *testing.T) {
	ctx := context.Background()
	pub := &capturingPublisher{err: errors.New("broker down")}
	svc := NewService(memory.NewAccountStore(), pub, testLogger())
	if err := svc.CreateAccounts(ctx, []models.Account{
		{ID: "A", Balance: dec(t, "1000.00")},
		{ID: "B", Balance: dec(t, "500.00")},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Transfer(ctx, TransferRequest{FromAccount: "A", ToAccount: "B", Amount: dec(t, "100.00")}); err != nil {
		t.Fatalf("transfer failed on publish error: %v", err)
	}
	requireBalance(t, svc, "A", "900.00")
}
