package fees

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

var basisPointsPerUnit = decimal.NewFromInt(10_000)

// OnChainDepositFee is floor(amount * ratio).
func OnChainDepositFee(amount uint64, ratio decimal.Decimal) uint64 {
	if ratio.IsNegative() || ratio.IsZero() {
		return 0
	}
	fee := fromUint(amount).Mul(ratio).Floor()
	return fee.BigInt().Uint64()
}

func LightningDepositFee() uint64 { return 0 }

// IntraledgerFees is zero on both legs.
func IntraledgerFees() domain.PaymentAmounts {
	return domain.PaymentAmounts{Btc: domain.ZeroSats, Usd: domain.ZeroCents}
}

type WithdrawalFeeMethod string

const (
	WithdrawalFeeMethodFlat                    WithdrawalFeeMethod = "flat"
	WithdrawalFeeMethodProportionalOnImbalance WithdrawalFeeMethod = "proportional_on_imbalance"
)

type WithdrawalConfig struct {
	Method             WithdrawalFeeMethod
	MinBankFee         domain.BtcPaymentAmount
	RatioBasisPoints   uint64
	ThresholdImbalance domain.BtcPaymentAmount
	DaysLookback       int
}

type WithdrawalFees struct {
	TotalFee domain.BtcPaymentAmount
	BankFee  domain.BtcPaymentAmount
}

type WithdrawalFeeCalculator struct {
	cfg WithdrawalConfig
}

func NewWithdrawalFeeCalculator(cfg WithdrawalConfig) *WithdrawalFeeCalculator {
	return &WithdrawalFeeCalculator{cfg: cfg}
}

func (c *WithdrawalFeeCalculator) Config() WithdrawalConfig { return c.cfg }

// WithdrawalFee charges the larger of minBankFee and the basis-point fee on
// the part of amount that pushes the imbalance past the threshold.
// minBankFee is usually the account override or the configured default.
func (c *WithdrawalFeeCalculator) WithdrawalFee(minerFee, amount domain.BtcPaymentAmount, imbalance int64, minBankFee domain.BtcPaymentAmount) (WithdrawalFees, error) {
	bankFee := minBankFee
	if c.cfg.Method == WithdrawalFeeMethodProportionalOnImbalance {
		imbalanceFee, err := c.imbalanceFee(amount, imbalance)
		if err != nil {
			return WithdrawalFees{}, fmt.Errorf("WithdrawalFee: %w", err)
		}
		if imbalanceFee.Amount > bankFee.Amount {
			bankFee = imbalanceFee
		}
	}
	return WithdrawalFees{
		TotalFee: minerFee.Add(bankFee),
		BankFee:  bankFee,
	}, nil
}

func (c *WithdrawalFeeCalculator) imbalanceFee(amount domain.BtcPaymentAmount, imbalance int64) (domain.BtcPaymentAmount, error) {
	amt, err := safecast.ToInt64(amount.Amount)
	if err != nil {
		return domain.ZeroSats, err
	}
	threshold, err := safecast.ToInt64(c.cfg.ThresholdImbalance.Amount)
	if err != nil {
		return domain.ZeroSats, err
	}

	base := amt + imbalance - threshold
	if base < 0 {
		base = 0
	}
	if base > amt {
		base = amt
	}

	fee := decimal.NewFromInt(base).
		Mul(fromUint(c.cfg.RatioBasisPoints)).
		Div(basisPointsPerUnit).
		Ceil()
	return domain.Sats(fee.BigInt().Uint64()), nil
}

type volumeSource interface {
	LightningTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error)
	OnChainTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error)
}

// ImbalanceCalculator measures how much a wallet has moved from lightning to
// on-chain over the lookback window, in the wallet's currency. A positive
// value means it pulled more on-chain than it brought in.
type ImbalanceCalculator struct {
	method   WithdrawalFeeMethod
	lookback time.Duration
	volumes  volumeSource
	now      func() time.Time
}

func NewImbalanceCalculator(cfg WithdrawalConfig, volumes volumeSource) *ImbalanceCalculator {
	return &ImbalanceCalculator{
		method:   cfg.Method,
		lookback: time.Duration(cfg.DaysLookback) * 24 * time.Hour,
		volumes:  volumes,
		now:      time.Now,
	}
}

func (c *ImbalanceCalculator) SwapOutImbalance(ctx context.Context, wallet domain.WalletDescriptor) (int64, error) {
	if c.method == WithdrawalFeeMethodFlat {
		return 0, nil
	}

	since := c.now().Add(-c.lookback)

	ln, err := c.volumes.LightningTxBaseVolumeSince(ctx, wallet, since)
	if err != nil {
		return 0, fmt.Errorf("SwapOutImbalance: lightning volume: %w", err)
	}
	onChain, err := c.volumes.OnChainTxBaseVolumeSince(ctx, wallet, since)
	if err != nil {
		return 0, fmt.Errorf("SwapOutImbalance: on-chain volume: %w", err)
	}

	lnNet, err := netInbound(ln)
	if err != nil {
		return 0, fmt.Errorf("SwapOutImbalance: %w", err)
	}
	onChainNet, err := netInbound(onChain)
	if err != nil {
		return 0, fmt.Errorf("SwapOutImbalance: %w", err)
	}
	return lnNet - onChainNet, nil
}

func netInbound(v domain.TxBaseVolume) (int64, error) {
	in, err := safecast.ToInt64(v.Incoming)
	if err != nil {
		return 0, err
	}
	out, err := safecast.ToInt64(v.Outgoing)
	if err != nil {
		return 0, err
	}
	return in - out, nil
}

func fromUint(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}
