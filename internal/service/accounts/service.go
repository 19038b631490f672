package accounts

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
	"github.com/josh-kwaku/btc-wallet-core/internal/metrics"
	"github.com/josh-kwaku/btc-wallet-core/internal/notification"
)

var tracer = otel.Tracer("github.com/josh-kwaku/btc-wallet-core/internal/service/accounts")

type accountSource interface {
	Unlocked(ctx context.Context) iter.Seq2[domain.Account, error]
}

type walletRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Wallet, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type balanceReader interface {
	GetWalletBalance(ctx context.Context, wallet domain.WalletDescriptor) (domain.WalletAmount, error)
}

type activityChecker interface {
	AreRecentlyActive(ctx context.Context, wallets []domain.Wallet, ratio fx.WalletPriceRatio) (bool, error)
}

type priceService interface {
	MidPriceRatio(ctx context.Context) (fx.WalletPriceRatio, error)
	DisplayPriceRatio(ctx context.Context, currency domain.DisplayCurrency) (fx.DisplayPriceRatio, error)
}

type balancePublisher interface {
	SendBalance(ctx context.Context, args notification.BalanceArgs) error
}

type Deps struct {
	Accounts accountSource
	Wallets  walletRepo
	Users    userRepo
	Ledger   balanceReader
	Activity activityChecker
	Prices   priceService
	Notifier balancePublisher
}

type Service struct {
	accounts accountSource
	wallets  walletRepo
	users    userRepo
	ledger   balanceReader
	activity activityChecker
	prices   priceService
	notifier balancePublisher
}

func NewService(d Deps) *Service {
	return &Service{
		accounts: d.Accounts,
		wallets:  d.Wallets,
		users:    d.Users,
		ledger:   d.Ledger,
		activity: d.Activity,
		prices:   d.Prices,
		notifier: d.Notifier,
	}
}

// RecentlyActiveAccounts yields unlocked accounts whose wallets moved more
// than the activity threshold in the last month. An account whose wallets
// or volumes cannot be read is logged and skipped. Failing to price or to
// list accounts is yielded once and ends the sequence.
func (s *Service) RecentlyActiveAccounts(ctx context.Context) iter.Seq2[domain.Account, error] {
	return func(yield func(domain.Account, error) bool) {
		log := logging.FromContext(ctx)

		ratio, err := s.prices.MidPriceRatio(ctx)
		if err != nil {
			yield(domain.Account{}, fmt.Errorf("RecentlyActiveAccounts: %w", err))
			return
		}

		for account, err := range s.accounts.Unlocked(ctx) {
			if err != nil {
				yield(domain.Account{}, fmt.Errorf("RecentlyActiveAccounts: %w", err))
				return
			}

			wallets, err := s.wallets.ListByAccountID(ctx, account.ID)
			if err != nil {
				log.Error("failed to list account wallets", "account_id", account.ID, "error", err)
				continue
			}
			active, err := s.activity.AreRecentlyActive(ctx, wallets, ratio)
			if err != nil {
				log.Error("failed to check account activity", "account_id", account.ID, "error", err)
				continue
			}
			if active && !yield(account, nil) {
				return
			}
		}
	}
}

// SendDefaultWalletBalance notifies every recently active account of its
// default wallet balance. Failures for one account are logged and do not
// stop the run. It returns how many notifications were published.
func (s *Service) SendDefaultWalletBalance(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "accounts.SendDefaultWalletBalance")
	defer span.End()
	log := logging.FromContext(ctx)

	var sent int
	for account, err := range s.RecentlyActiveAccounts(ctx) {
		if err != nil {
			span.RecordError(err)
			return sent, fmt.Errorf("SendDefaultWalletBalance: %w", err)
		}
		ok, err := s.notifyBalance(ctx, account)
		if err != nil {
			metrics.IncBalanceNotification(err)
			log.Warn("balance notification failed", "account_id", account.ID, "error", err)
			continue
		}
		if ok {
			metrics.IncBalanceNotification(nil)
			sent++
		}
	}
	span.SetAttributes(attribute.Int("accounts.notified", sent))
	return sent, nil
}

// notifyBalance reports false when the account has no device to notify.
func (s *Service) notifyBalance(ctx context.Context, account domain.Account) (bool, error) {
	user, err := s.users.GetByID(ctx, account.UserID)
	if err != nil {
		return false, fmt.Errorf("notifyBalance: %w", err)
	}
	if len(user.DeviceTokens) == 0 {
		return false, nil
	}

	wallet, err := s.wallets.GetByID(ctx, account.DefaultWalletID)
	if err != nil {
		return false, fmt.Errorf("notifyBalance: %w", err)
	}
	balance, err := s.ledger.GetWalletBalance(ctx, wallet.Descriptor())
	if err != nil {
		return false, fmt.Errorf("notifyBalance: %w", err)
	}

	err = s.notifier.SendBalance(ctx, notification.BalanceArgs{
		AccountID:     account.ID,
		WalletID:      wallet.ID,
		Balance:       balance,
		DisplayAmount: s.displayBalance(ctx, account, balance),
		DeviceTokens:  user.DeviceTokens,
		Language:      user.Language,
	})
	if err != nil {
		return false, fmt.Errorf("notifyBalance: %w", err)
	}
	return true, nil
}

// displayBalance prices the balance in the account's display currency. USD
// balances go through sats at the mid price. When no price is available the
// zero amount is returned and the notification carries no display value.
func (s *Service) displayBalance(ctx context.Context, account domain.Account, balance domain.WalletAmount) domain.DisplayAmount {
	log := logging.FromContext(ctx)

	display, err := s.prices.DisplayPriceRatio(ctx, account.DisplayCurrency)
	if err != nil {
		log.Warn("display price unavailable", "account_id", account.ID, "error", err)
		return domain.DisplayAmount{}
	}

	var sats domain.BtcPaymentAmount
	switch balance.Currency {
	case domain.WalletCurrencyBTC:
		sats, err = balance.Btc()
	case domain.WalletCurrencyUSD:
		var cents domain.UsdPaymentAmount
		cents, err = balance.Usd()
		if err == nil {
			var ratio fx.WalletPriceRatio
			ratio, err = s.prices.MidPriceRatio(ctx)
			sats = ratio.ConvertFromUsd(cents)
		}
	default:
		err = domain.ErrInvalidCurrency
	}
	if err != nil {
		log.Warn("balance not priced", "account_id", account.ID, "error", err)
		return domain.DisplayAmount{}
	}
	return display.ConvertFromWallet(sats)
}
