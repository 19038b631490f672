package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
	"github.com/josh-kwaku/btc-wallet-core/internal/metrics"
)

var tracer = otel.Tracer("github.com/josh-kwaku/btc-wallet-core/internal/service/history")

type ledgerReader interface {
	ListWalletTransactions(ctx context.Context, walletIDs []uuid.UUID) ([]domain.LedgerTransaction, error)
}

type incomingSource interface {
	ListIncomingTransactions(ctx context.Context, scanDepth int) ([]domain.IncomingOnChainTransaction, error)
}

type priceService interface {
	MidPriceRatio(ctx context.Context) (fx.WalletPriceRatio, error)
	DisplayPriceRatio(ctx context.Context, currency domain.DisplayCurrency) (fx.DisplayPriceRatio, error)
}

type ServiceConfig struct {
	DepositFeeRatio   decimal.Decimal
	ScanDepthIncoming int
}

// Service reads wallet history: the confirmed ledger rows plus outputs still
// waiting for confirmation.
type Service struct {
	translator *Translator
	ledger     ledgerReader
	chain      incomingSource
	prices     priceService
	cfg        ServiceConfig
}

func NewService(translator *Translator, ledger ledgerReader, chain incomingSource, prices priceService, cfg ServiceConfig) *Service {
	return &Service{
		translator: translator,
		ledger:     ledger,
		chain:      chain,
		prices:     prices,
		cfg:        cfg,
	}
}

// TransactionsForWallets returns the history of the given wallets, pending
// incoming first and then confirmed rows newest first. If pending outputs
// cannot be read the confirmed history is still returned.
func (s *Service) TransactionsForWallets(ctx context.Context, wallets []domain.Wallet, displayCurrency domain.DisplayCurrency) ([]domain.WalletTransaction, error) {
	ctx, span := tracer.Start(ctx, "history.TransactionsForWallets")
	defer span.End()
	span.SetAttributes(attribute.Int("history.wallets", len(wallets)))

	if len(wallets) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(wallets))
	currencies := make(map[uuid.UUID]domain.WalletCurrency, len(wallets))
	for _, w := range wallets {
		ids = append(ids, w.ID)
		currencies[w.ID] = w.Currency
	}

	rows, err := s.ledger.ListWalletTransactions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("TransactionsForWallets: %w", err)
	}
	confirmed, err := s.translator.FromLedger(rows, currencies)
	if err != nil {
		return nil, fmt.Errorf("TransactionsForWallets: %w", err)
	}

	pending, err := s.pendingWallets(ctx, wallets, displayCurrency)
	if err == nil {
		var incoming []domain.IncomingOnChainTransaction
		incoming, err = s.chain.ListIncomingTransactions(ctx, s.cfg.ScanDepthIncoming)
		if err == nil {
			return confirmed.AddPendingIncoming(incoming, pending), nil
		}
	}

	metrics.IncBestEffortFailure("pending_incoming")
	logging.FromContext(ctx).Warn("pending incoming transactions unavailable",
		"wallet_count", len(wallets), "error", err)
	return confirmed.Transactions, nil
}

func (s *Service) pendingWallets(ctx context.Context, wallets []domain.Wallet, displayCurrency domain.DisplayCurrency) ([]PendingWallet, error) {
	display, err := s.prices.DisplayPriceRatio(ctx, displayCurrency)
	if err != nil {
		return nil, fmt.Errorf("pendingWallets: display ratio: %w", err)
	}

	var mid *fx.WalletPriceRatio
	out := make([]PendingWallet, 0, len(wallets))
	for _, w := range wallets {
		if len(w.OnChainAddresses) == 0 {
			continue
		}
		pw := PendingWallet{
			ID:              w.ID,
			Currency:        w.Currency,
			Addresses:       w.OnChainAddresses,
			DepositFeeRatio: s.cfg.DepositFeeRatio,
			DisplayRatio:    display,
		}
		if w.Currency == domain.WalletCurrencyUSD {
			if mid == nil {
				ratio, err := s.prices.MidPriceRatio(ctx)
				if err != nil {
					return nil, fmt.Errorf("pendingWallets: mid ratio: %w", err)
				}
				mid = &ratio
			}
			pw.PriceRatio = mid
		}
		out = append(out, pw)
	}
	return out, nil
}
