package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/bank"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/config"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/logging"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/models"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/storage/postgres"
)

// Seeds opening accounts in one bulk insert. Accounts are given as
// id=balance arguments; with no arguments the demo pair is used:
//
//	seed A=1000.00 B=500.00
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	logger := logging.New(cfg.Logging)

	accounts, err := parseAccounts(os.Args[1:])
	if err != nil {
		fatal(err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		fatal(err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		fatal(err)
	}

	service := bank.NewService(postgres.NewAccountStore(db), nil, logger)
	if err := service.CreateAccounts(context.Background(), accounts); err != nil {
		fatal(err)
	}
}

func parseAccounts(args []string) ([]models.Account, error) {
	if len(args) == 0 {
		args = []string{"A=1000.00", "B=500.00"}
	}

	var accounts []models.Account
	for _, arg := range args {
		id, raw, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid account argument %q, want id=balance", arg)
		}
		balance, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid balance in %q: %w", arg, err)
		}
		accounts = append(accounts, models.Account{ID: id, Balance: balance})
	}
	return accounts, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
