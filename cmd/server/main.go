package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	natsio "github.com/nats-io/nats.go"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/bank"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/config"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/events/kafka"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/events/nats"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/interfaces"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/logging"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/server"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/storage/memory"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/storage/postgres"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	var (
		store  interfaces.AccountStore
		health server.HealthService
	)
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = postgres.NewAccountStore(db)
		health = server.DBHealthService{DB: db}
	case "memory":
		store = memory.NewAccountStore()
	}

	var publisher interfaces.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("kafka publisher enabled", "topic", cfg.Kafka.Topic)
	}

	service := bank.NewService(store, publisher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.NATS.URL != "" {
		conn, err := natsio.Connect(cfg.NATS.URL)
		if err != nil {
			logger.Error("failed to connect to nats", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		responder := nats.NewBalanceResponder(conn, cfg.NATS.Subject, service, logger)
		if err := responder.Start(ctx); err != nil {
			logger.Error("failed to start balance responder", "error", err)
			os.Exit(1)
		}
	}

	router := server.NewRouter(logger, server.RouterDependencies{
		Health: health,
		API:    server.NewAPIHandlers(logger, service),
	})
	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
