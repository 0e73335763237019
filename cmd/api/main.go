package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"techshop/internal/config"
	"techshop/internal/database"
	"techshop/internal/handler"
	"techshop/internal/ledger"
	"techshop/internal/metrics"
	"techshop/internal/notify"
	"techshop/internal/outbox"
	"techshop/internal/payment"
	"techshop/internal/queue"
	"techshop/internal/repository"
	"techshop/internal/router"
	"techshop/internal/service"
	"techshop/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting techshop API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool and schema
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(pool, logger)
	productRepo := repository.NewProductRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)
	voucherRepo := repository.NewVoucherRepository(pool, logger)

	// Initialize ledgers
	inventoryLedger := ledger.NewInventoryLedger(productRepo, logger)
	loyaltyLedger := ledger.NewLoyaltyLedger(userRepo, logger)

	// Initialize the outbox and its background drain to Kafka
	outboxStore := outbox.NewStore(pool, logger)
	kafkaClient := queue.NewClient(cfg.Kafka.Brokers)
	dispatcher := outbox.NewDispatcher(
		outboxStore,
		kafkaClient,
		[]string{cfg.Kafka.NotificationsTopic, cfg.Kafka.EmailsTopic},
		logger,
	)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	notifier := notify.NewDispatcher(outboxStore, pool, cfg.Kafka.NotificationsTopic, cfg.Kafka.EmailsTopic, logger)

	// Initialize proof storage with S3 and local fallback
	fileStore := storage.NewFileStore(cfg.S3.LocalDir, logger)
	proofStore := fileStore
	if cfg.S3.Enabled {
		s3Store, err := storage.NewS3Store(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 proof store, falling back to local file system only")
		} else {
			proofStore = storage.NewFallbackStore(s3Store, fileStore, true, logger)
		}
	} else {
		logger.Info().Msg("using local file system for payment proofs (S3 disabled)")
	}

	// Initialize services
	applier := service.NewOrderApplier(ctx, orderRepo, pool, logger)
	statusService := service.NewStatusMachine(orderRepo, inventoryLedger, loyaltyLedger, pool, notifier, logger)
	orderService := service.NewOrderService(
		orderRepo, productRepo, userRepo, voucherRepo,
		inventoryLedger, loyaltyLedger,
		notifier, pool, applier, statusService,
		cfg.Loyalty, cfg.Order, logger,
	)
	cancellationService := service.NewCancellationService(orderRepo, statusService, pool, notifier, cfg.Order.CancelWindowHours, logger)

	gateway := payment.NewGateway(cfg.Payment, logger)
	paymentService := payment.NewService(gateway, orderRepo, pool, statusService, notifier, logger)

	// Initialize HTTP handlers
	orderHandler := handler.NewOrderHandler(orderService, statusService, cancellationService, proofStore, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)

	// Initialize router
	serverMetrics := metrics.NewServerMetrics("api")
	mux := router.New(orderHandler, paymentHandler, serverMetrics, cfg.Auth.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		// Let the outbox drain any events produced by in-flight requests
		dispatcher.Stop()

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
