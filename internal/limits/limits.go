package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
)

const DefaultWindow = 24 * time.Hour

// Config holds the per-category ceilings in USD cents for one rolling window.
type Config struct {
	Withdrawal        domain.UsdPaymentAmount
	Intraledger       domain.UsdPaymentAmount
	TradeIntraAccount domain.UsdPaymentAmount
	Window            time.Duration
}

type walletLister interface {
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Wallet, error)
}

type volumeSource interface {
	ExternalPaymentVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error)
	IntraledgerTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error)
	TradeIntraAccountTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error)
}

type volumeFn func(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error)

type Checker struct {
	cfg     Config
	wallets walletLister
	volumes volumeSource
	now     func() time.Time
}

func NewChecker(cfg Config, wallets walletLister, volumes volumeSource) *Checker {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Checker{cfg: cfg, wallets: wallets, volumes: volumes, now: time.Now}
}

// Check fails with *domain.LimitsExceededError when amount does not fit in
// what is left of the category's limit for the window.
func (c *Checker) Check(ctx context.Context, category domain.LimitCategory, accountID uuid.UUID, amount domain.UsdPaymentAmount, ratio fx.WalletPriceRatio) error {
	limit, volume, err := c.categoryFor(category)
	if err != nil {
		return fmt.Errorf("Check: %w", err)
	}

	used, err := c.outgoingUsd(ctx, accountID, volume, ratio)
	if err != nil {
		return fmt.Errorf("Check: %s: %w", category, err)
	}

	remaining := domain.ZeroCents
	if used.LessThan(limit) {
		remaining, _ = limit.Sub(used)
	}
	if remaining.LessThan(amount) {
		logging.FromContext(ctx).Info("limit exceeded",
			"account_id", accountID,
			"category", category,
			"limit_cents", limit.Amount,
			"used_cents", used.Amount,
			"amount_cents", amount.Amount,
		)
		return &domain.LimitsExceededError{Category: category, Limit: limit, Remaining: remaining}
	}
	return nil
}

func (c *Checker) CheckWithdrawal(ctx context.Context, accountID uuid.UUID, amount domain.UsdPaymentAmount, ratio fx.WalletPriceRatio) error {
	return c.Check(ctx, domain.LimitCategoryWithdrawal, accountID, amount, ratio)
}

func (c *Checker) CheckIntraledger(ctx context.Context, accountID uuid.UUID, amount domain.UsdPaymentAmount, ratio fx.WalletPriceRatio) error {
	return c.Check(ctx, domain.LimitCategoryIntraledger, accountID, amount, ratio)
}

func (c *Checker) CheckTradeIntraAccount(ctx context.Context, accountID uuid.UUID, amount domain.UsdPaymentAmount, ratio fx.WalletPriceRatio) error {
	return c.Check(ctx, domain.LimitCategoryTradeIntraAccount, accountID, amount, ratio)
}

func (c *Checker) categoryFor(category domain.LimitCategory) (domain.UsdPaymentAmount, volumeFn, error) {
	switch category {
	case domain.LimitCategoryWithdrawal:
		return c.cfg.Withdrawal, c.volumes.ExternalPaymentVolumeSince, nil
	case domain.LimitCategoryIntraledger:
		return c.cfg.Intraledger, c.volumes.IntraledgerTxBaseVolumeSince, nil
	case domain.LimitCategoryTradeIntraAccount:
		return c.cfg.TradeIntraAccount, c.volumes.TradeIntraAccountTxBaseVolumeSince, nil
	}
	return domain.ZeroCents, nil, fmt.Errorf("unknown limit category %q: %w", category, domain.ErrInvalidRequest)
}

func (c *Checker) outgoingUsd(ctx context.Context, accountID uuid.UUID, volume volumeFn, ratio fx.WalletPriceRatio) (domain.UsdPaymentAmount, error) {
	wallets, err := c.wallets.ListByAccountID(ctx, accountID)
	if err != nil {
		return domain.ZeroCents, fmt.Errorf("list wallets: %w", err)
	}

	since := c.now().Add(-c.cfg.Window)
	total := domain.ZeroCents
	for i := range wallets {
		v, err := volume(ctx, wallets[i].Descriptor(), since)
		if err != nil {
			return domain.ZeroCents, fmt.Errorf("volume for wallet %s: %w", wallets[i].ID, err)
		}
		total = total.Add(toUsd(v.Outgoing, v.Currency, ratio))
	}
	return total, nil
}

func toUsd(amount uint64, currency domain.WalletCurrency, ratio fx.WalletPriceRatio) domain.UsdPaymentAmount {
	if currency == domain.WalletCurrencyBTC {
		return ratio.ConvertFromBtc(domain.Sats(amount))
	}
	return domain.Cents(amount)
}
