package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/tenanttruth/backend/internal/config"
	"github.com/tenanttruth/backend/internal/contact"
	"github.com/tenanttruth/backend/internal/handlers"
	"github.com/tenanttruth/backend/internal/housekeeping"
	"github.com/tenanttruth/backend/internal/ledger"
	"github.com/tenanttruth/backend/internal/messaging"
	"github.com/tenanttruth/backend/internal/pricing"
	"github.com/tenanttruth/backend/internal/reviews"
	"github.com/tenanttruth/backend/internal/router"
	"github.com/tenanttruth/backend/internal/topup"
	"github.com/tenanttruth/backend/internal/unlock"
	"github.com/tenanttruth/backend/internal/wallet"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	prices := pricing.NewTable(cfg.Pricing)

	// Ledger & wallet
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo)
	walletRepo := wallet.NewRepository(pool)
	walletSvc := wallet.NewService(walletRepo, ledgerRepo)

	// Unlocks
	unlockRepo := unlock.NewRepository(pool)
	authorizer := unlock.NewAuthorizer(unlockRepo, walletSvc, prices)

	// Contact requests & messaging
	contactRepo := contact.NewRepository(pool)
	broker := contact.NewBroker(contactRepo, walletSvc, prices, cfg.ContactRequestTTL)
	messageRepo := messaging.NewRepository(pool)
	threads := messaging.NewService(broker, messageRepo)

	// Top-ups
	topupRepo := topup.NewRepository(pool)
	topups := topup.NewService(topupRepo, walletSvc, prices, cfg.CheckoutBaseURL)

	reviewRepo := reviews.NewRepository(pool)

	// Housekeeping worker (sweeps overdue contact requests)
	workers := river.NewWorkers()
	river.AddWorker(workers, housekeeping.NewExpireContactRequestsWorker(broker, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers:      workers,
		PeriodicJobs: housekeeping.PeriodicJobs(),
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	paymentsHandler := &handlers.PaymentsHandler{
		Wallet:        walletSvc,
		Ledger:        ledgerSvc,
		Unlocks:       authorizer,
		Contacts:      broker,
		Topups:        topups,
		Reviews:       reviewRepo,
		Prices:        prices,
		WebhookSecret: []byte(cfg.WebhookSecret),
		Logger:        logger,
	}
	messagesHandler := &handlers.MessagesHandler{
		Contacts: broker,
		Threads:  threads,
		Logger:   logger,
	}
	reviewsHandler := &handlers.ReviewsHandler{
		Reviews: reviewRepo,
		Access:  authorizer,
		Logger:  logger,
	}

	apiRouter := router.New(paymentsHandler, messagesHandler, reviewsHandler, []byte(cfg.JWTSecret))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Start River client (runs the periodic expiry sweep)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
