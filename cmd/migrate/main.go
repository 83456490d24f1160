package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/config"
)

// Usage: migrate <migrations-dir> <up|down|reset>
func main() {
	_ = godotenv.Load()

	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: migrate <migrations-dir> <up|down|reset>")
		os.Exit(2)
	}
	path, cmd := os.Args[1], os.Args[2]

	cfg, err := config.Load()
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

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		fatal(err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		fatal(err)
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "reset":
		err = m.Drop()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(2)
	}
	if err != nil && err != migrate.ErrNoChange {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
