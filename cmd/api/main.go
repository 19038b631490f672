package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/josh-kwaku/btc-wallet-core/internal/config"
	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fees"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/handler"
	"github.com/josh-kwaku/btc-wallet-core/internal/limits"
	"github.com/josh-kwaku/btc-wallet-core/internal/lock"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
	"github.com/josh-kwaku/btc-wallet-core/internal/middleware"
	"github.com/josh-kwaku/btc-wallet-core/internal/notification"
	"github.com/josh-kwaku/btc-wallet-core/internal/onchain"
	"github.com/josh-kwaku/btc-wallet-core/internal/repository"
	"github.com/josh-kwaku/btc-wallet-core/internal/service/history"
	"github.com/josh-kwaku/btc-wallet-core/internal/service/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("wallet-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("wallet api exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.Pool())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	checks := map[string]handler.Pinger{"db": db.PingContext}

	var (
		lockBackend lock.Backend = lock.NewMemoryBackend()
		idempotency func(http.Handler) http.Handler
	)
	if cfg.RedisURL != "" {
		rdb, err := newRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		lockBackend = lock.NewRedisBackend(rdb)
		idempotency = middleware.Idempotency(repository.NewIdempotencyStore(rdb, cfg.IdempotencyTTL))
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		slog.Warn("REDIS_URL not set, wallet locks are process-local and idempotency keys are ignored")
	}

	if cfg.PriceServiceURL == "" {
		slog.Warn("PRICE_SERVICE_URL not set, using static prices")
	}

	wallets := repository.NewWalletRepository(db)
	accounts := repository.NewAccountRepository(db)
	users := repository.NewUserRepository(db)
	ledger := repository.NewLedgerRepository(db)

	rates := fx.NewRateService(cfg.PriceSource(), cfg.DealerSpreadPct)
	chain := onchain.NewClient(cfg.ChainServiceURL)

	deps := payment.Deps{
		Wallets:   wallets,
		Accounts:  accounts,
		Users:     users,
		Ledger:    ledger,
		Chain:     chain,
		Locks:     lock.NewService(lockBackend, cfg.Lock()),
		Prices:    rates,
		Limits:    limits.NewChecker(cfg.Limits(), wallets, ledger),
		Fees:      fees.NewWithdrawalFeeCalculator(cfg.Withdrawal()),
		Imbalance: fees.NewImbalanceCalculator(cfg.Withdrawal(), ledger),
	}
	if len(cfg.KafkaBrokers) > 0 {
		writer := notification.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer writer.Close()
		deps.Notifier = notification.NewPublisher(writer)
	} else {
		slog.Warn("KAFKA_BROKERS not set, recipient notifications are disabled")
	}

	payments := payment.NewService(deps, cfg.Payment())
	translator := history.NewTranslator(cfg.History(), domain.NonEndUserWalletIDs())
	txHistory := history.NewService(translator, ledger, chain, rates, cfg.HistoryService())

	router := handler.NewRouter(handler.Handlers{
		Health:            handler.NewHealthHandler(checks),
		Payments:          handler.NewPaymentHandler(payments, accounts, wallets),
		Accounts:          handler.NewAccountHandler(accounts, wallets, txHistory),
		FX:                handler.NewFXHandler(rates),
		PaymentMiddleware: idempotency,
	})

	var h http.Handler = router
	h = middleware.Recovery(h)
	h = middleware.Logging(h)
	h = middleware.RequestID(h)
	h = otelhttp.NewHandler(h, "wallet-api")

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", addr, "network", cfg.BitcoinNetwork)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func newRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}
