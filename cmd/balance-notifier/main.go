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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josh-kwaku/btc-wallet-core/internal/config"
	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/limits"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
	"github.com/josh-kwaku/btc-wallet-core/internal/notification"
	"github.com/josh-kwaku/btc-wallet-core/internal/repository"
	"github.com/josh-kwaku/btc-wallet-core/internal/service/accounts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("balance-notifier", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("balance notifier exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.Pool())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	writer := notification.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer writer.Close()

	ledger := repository.NewLedgerRepository(db)

	svc := accounts.NewService(accounts.Deps{
		Accounts: repository.NewAccountRepository(db),
		Wallets:  repository.NewWalletRepository(db),
		Users:    repository.NewUserRepository(db),
		Ledger:   ledger,
		Activity: limits.NewActivityChecker(domain.Cents(cfg.ActivityThreshold), ledger),
		Prices:   fx.NewRateService(cfg.PriceSource(), cfg.DealerSpreadPct),
		Notifier: notification.NewPublisher(writer),
	})

	// A zero interval sends once and exits, for running under a cron.
	if cfg.BalanceNotifierInterval == 0 {
		sent, err := svc.SendDefaultWalletBalance(ctx)
		if err != nil {
			return fmt.Errorf("send balances: %w", err)
		}
		slog.Info("balance notifications sent", "sent", sent)
		return nil
	}

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	accounts.NewBalanceNotifier(svc, cfg.BalanceNotifierInterval).Start(ctx)
	return nil
}
