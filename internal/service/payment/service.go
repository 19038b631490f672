package payment

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fees"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/notification"
	"github.com/josh-kwaku/btc-wallet-core/internal/onchain"
)

var tracer = otel.Tracer("github.com/josh-kwaku/btc-wallet-core/internal/service/payment")

type walletRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	FindByAddress(ctx context.Context, address string) (*domain.Wallet, error)
}

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type ledgerRepo interface {
	GetWalletBalance(ctx context.Context, wallet domain.WalletDescriptor) (domain.WalletAmount, error)
	RecordIntraledger(ctx context.Context, args domain.RecordIntraledgerArgs) (uuid.UUID, error)
	RecordSend(ctx context.Context, args domain.RecordSendArgs) (uuid.UUID, error)
	RevertOnChainPayment(ctx context.Context, journalID uuid.UUID) error
	SetOnChainTxSendHash(ctx context.Context, journalID uuid.UUID, txHash string) error
}

type chainService interface {
	GetBalanceAmount(ctx context.Context) (domain.BtcPaymentAmount, error)
	GetOnChainFeeEstimate(ctx context.Context, address string, amount domain.BtcPaymentAmount, targetConfirmations int) (domain.BtcPaymentAmount, error)
	PayToAddress(ctx context.Context, args onchain.PayToAddressArgs) (string, error)
	LookupOnChainFee(ctx context.Context, txHash string, scanDepth int) (domain.BtcPaymentAmount, error)
}

type walletLocker interface {
	LockWalletID(ctx context.Context, walletID uuid.UUID, fn func(ctx context.Context) error) error
}

type priceService interface {
	MidPriceRatio(ctx context.Context) (fx.WalletPriceRatio, error)
	DisplayPriceRatio(ctx context.Context, currency domain.DisplayCurrency) (fx.DisplayPriceRatio, error)
	Mid() fx.Converter
	HedgeBuyUsd() fx.Converter
	HedgeSellUsd() fx.Converter
}

type limitChecker interface {
	CheckWithdrawal(ctx context.Context, accountID uuid.UUID, amount domain.UsdPaymentAmount, ratio fx.WalletPriceRatio) error
	CheckIntraledger(ctx context.Context, accountID uuid.UUID, amount domain.UsdPaymentAmount, ratio fx.WalletPriceRatio) error
	CheckTradeIntraAccount(ctx context.Context, accountID uuid.UUID, amount domain.UsdPaymentAmount, ratio fx.WalletPriceRatio) error
}

type notifier interface {
	IntraLedgerTxReceived(ctx context.Context, args notification.IntraLedgerTxReceivedArgs) error
}

type Config struct {
	Network                    onchain.Network
	DustThreshold              domain.BtcPaymentAmount
	DefaultTargetConfirmations int
	ScanDepthOutgoing          int
}

// Deps are the collaborators of the payment service.
type Deps struct {
	Wallets   walletRepo
	Accounts  accountRepo
	Users     userRepo
	Ledger    ledgerRepo
	Chain     chainService
	Locks     walletLocker
	Prices    priceService
	Limits    limitChecker
	Fees      *fees.WithdrawalFeeCalculator
	Imbalance imbalanceSource
	Notifier  notifier
}

type Service struct {
	wallets   walletRepo
	accounts  accountRepo
	users     userRepo
	ledger    ledgerRepo
	chain     chainService
	locks     walletLocker
	prices    priceService
	limits    limitChecker
	fees      *fees.WithdrawalFeeCalculator
	imbalance imbalanceSource
	notifier  notifier
	validate  *validator.Validate
	config    Config
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.DefaultTargetConfirmations == 0 {
		cfg.DefaultTargetConfirmations = 1
	}
	return &Service{
		wallets:   deps.Wallets,
		accounts:  deps.Accounts,
		users:     deps.Users,
		ledger:    deps.Ledger,
		chain:     deps.Chain,
		locks:     deps.Locks,
		prices:    deps.Prices,
		limits:    deps.Limits,
		fees:      deps.Fees,
		imbalance: deps.Imbalance,
		notifier:  deps.Notifier,
		validate:  validator.New(),
		config:    cfg,
	}
}

func (s *Service) conversion() Conversion {
	return Conversion{
		HedgeBuyUsd:  s.prices.HedgeBuyUsd(),
		HedgeSellUsd: s.prices.HedgeSellUsd(),
		Mid:          s.prices.Mid(),
	}
}

// priceRatioForLimits prefers the flow's own ratio and falls back to the mid
// price when one side of the amount is zero.
func (s *Service) priceRatioForLimits(ctx context.Context, amounts domain.PaymentAmounts) (fx.WalletPriceRatio, error) {
	if !amounts.Btc.IsZero() && !amounts.Usd.IsZero() {
		ratio, err := fx.NewWalletPriceRatio(amounts.Usd, amounts.Btc)
		if err != nil {
			return fx.WalletPriceRatio{}, fmt.Errorf("priceRatioForLimits: %w", err)
		}
		return ratio, nil
	}
	ratio, err := s.prices.MidPriceRatio(ctx)
	if err != nil {
		return fx.WalletPriceRatio{}, fmt.Errorf("priceRatioForLimits: %w", err)
	}
	return ratio, nil
}
