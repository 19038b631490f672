package payment

import (
	"context"
	"fmt"

	"github.com/ccoveille/go-safecast"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fees"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/onchain"
)

type imbalanceSource interface {
	SwapOutImbalance(ctx context.Context, wallet domain.WalletDescriptor) (int64, error)
}

// BuilderConfig carries what the builder needs beyond the request.
type BuilderConfig struct {
	Network       onchain.Network
	DustThreshold domain.BtcPaymentAmount
	SendAll       bool

	// IsExternalAddress reports whether the destination belongs to no wallet
	// of this ledger. It may hit storage.
	IsExternalAddress func(ctx context.Context) (bool, error)
	// Balance is consulted by WithAmount when SendAll is set.
	Balance func(ctx context.Context, wallet domain.WalletDescriptor) (domain.WalletAmount, error)

	Fees      *fees.WithdrawalFeeCalculator
	Imbalance imbalanceSource
}

// Conversion holds the three quote sources a flow can be priced with.
type Conversion struct {
	HedgeBuyUsd  fx.Converter
	HedgeSellUsd fx.Converter
	Mid          fx.Converter
}

// flowState is shared by every stage. Stages copy it by value so an earlier
// stage can be reused after a later one has been derived from it. Once err
// is set every later call returns it unchanged.
type flowState struct {
	cfg BuilderConfig
	err error

	address    string
	sender     domain.WalletDescriptor
	account    domain.Account
	settlement domain.SettlementMethod
	recipient  *RecipientDetails

	input   domain.WalletAmount
	amounts domain.PaymentAmounts
	ratio   fx.WalletPriceRatio
}

func (s flowState) fail(err error) flowState {
	if s.err == nil {
		s.err = err
	}
	return s
}

// OnChainFlowBuilder is the empty stage of a send to an on-chain address.
type OnChainFlowBuilder struct{ s flowState }

func NewOnChainFlowBuilder(cfg BuilderConfig) OnChainFlowBuilder {
	return OnChainFlowBuilder{s: flowState{cfg: cfg}}
}

func (b OnChainFlowBuilder) WithAddress(address string) AddressStage {
	s := b.s
	checked, err := onchain.ValidateAddress(address, s.cfg.Network)
	if err != nil {
		return AddressStage{s: s.fail(fmt.Errorf("WithAddress: %w", err))}
	}
	s.address = checked
	return AddressStage{s: s}
}

type AddressStage struct{ s flowState }

func (a AddressStage) Err() error { return a.s.err }

func (a AddressStage) WithSenderWalletAndAccount(wallet domain.WalletDescriptor, account domain.Account) SenderStage {
	s := a.s
	if s.err != nil {
		return SenderStage{s: s}
	}
	if !account.IsActive() {
		return SenderStage{s: s.fail(fmt.Errorf("WithSenderWalletAndAccount: %w", domain.ErrInactiveAccount))}
	}
	if wallet.AccountID != account.ID {
		return SenderStage{s: s.fail(fmt.Errorf("WithSenderWalletAndAccount: wallet %s not owned by account: %w", wallet.ID, domain.ErrWalletNotFound))}
	}
	s.sender = wallet
	s.account = account
	return SenderStage{s: s}
}

type SenderStage struct{ s flowState }

func (ss SenderStage) Err() error { return ss.s.err }

// IsIntraLedger reports whether the destination address belongs to a wallet
// of this ledger.
func (ss SenderStage) IsIntraLedger(ctx context.Context) (bool, error) {
	if ss.s.err != nil {
		return false, ss.s.err
	}
	if ss.s.cfg.IsExternalAddress == nil {
		return false, nil
	}
	external, err := ss.s.cfg.IsExternalAddress(ctx)
	if err != nil {
		return false, fmt.Errorf("IsIntraLedger: %w", err)
	}
	return !external, nil
}

func (ss SenderStage) WithRecipientWallet(recipient RecipientDetails) RecipientStage {
	s := ss.s
	if s.err != nil {
		return RecipientStage{s: s}
	}
	if recipient.Wallet.ID == s.sender.ID {
		return RecipientStage{s: s.fail(fmt.Errorf("WithRecipientWallet: %w", domain.ErrSelfPayment))}
	}
	s.recipient = &recipient
	s.settlement = domain.SettlementMethodIntraLedger
	return RecipientStage{s: s}
}

func (ss SenderStage) WithoutRecipientWallet() RecipientStage {
	s := ss.s
	if s.err != nil {
		return RecipientStage{s: s}
	}
	s.settlement = domain.SettlementMethodOnChain
	return RecipientStage{s: s}
}

type RecipientStage struct{ s flowState }

func (r RecipientStage) Err() error { return r.s.err }

// WithAmount sets the amount to send. With SendAll the amount is replaced by
// the sender's current balance, which is re-checked later under the lock.
func (r RecipientStage) WithAmount(ctx context.Context, amount domain.WalletAmount) AmountStage {
	s := r.s
	if s.err != nil {
		return AmountStage{s: s}
	}

	if s.cfg.SendAll {
		if s.cfg.Balance == nil {
			return AmountStage{s: s.fail(fmt.Errorf("WithAmount: no balance source: %w", domain.ErrInvalidPaymentFlowState))}
		}
		balance, err := s.cfg.Balance(ctx, s.sender)
		if err != nil {
			return AmountStage{s: s.fail(fmt.Errorf("WithAmount: %w", err))}
		}
		if balance.Amount == 0 {
			return AmountStage{s: s.fail(fmt.Errorf("WithAmount: %w", &domain.InsufficientBalanceError{Balance: balance}))}
		}
		amount = balance
	}

	if !amount.Currency.IsValid() {
		return AmountStage{s: s.fail(fmt.Errorf("WithAmount: %s: %w", amount.Currency, domain.ErrInvalidCurrency))}
	}
	// A BTC wallet can only express amounts in sats.
	if s.sender.Currency == domain.WalletCurrencyBTC && amount.Currency != domain.WalletCurrencyBTC {
		return AmountStage{s: s.fail(fmt.Errorf("WithAmount: %s amount from BTC wallet: %w", amount.Currency, domain.ErrInvalidCurrency))}
	}
	if amount.Amount == 0 {
		return AmountStage{s: s.fail(fmt.Errorf("WithAmount: %w", domain.ErrInvalidAmount))}
	}

	s.input = amount
	return AmountStage{s: s}
}

type AmountStage struct{ s flowState }

func (a AmountStage) Err() error { return a.s.err }

// WithConversion prices the amount in the other currency. Same-currency
// flows use the mid price. Cross-currency flows use the dealer quote for the
// direction the sender is converting in.
func (a AmountStage) WithConversion(ctx context.Context, rates Conversion) ConversionStage {
	s := a.s
	if s.err != nil {
		return ConversionStage{s: s}
	}

	conv := pickConverter(s.sender.Currency, s.recipientCurrency(), rates)
	if conv == nil {
		return ConversionStage{s: s.fail(fmt.Errorf("WithConversion: missing quote source: %w", domain.ErrInvalidPaymentFlowState))}
	}

	switch s.input.Currency {
	case domain.WalletCurrencyBTC:
		btc := domain.Sats(s.input.Amount)
		usd, err := conv.UsdFromBtc(ctx, btc)
		if err != nil {
			return ConversionStage{s: s.fail(fmt.Errorf("WithConversion: %w", err))}
		}
		s.amounts = domain.PaymentAmounts{Btc: btc, Usd: usd}
	default:
		usd := domain.Cents(s.input.Amount)
		btc, err := conv.BtcFromUsd(ctx, usd)
		if err != nil {
			return ConversionStage{s: s.fail(fmt.Errorf("WithConversion: %w", err))}
		}
		s.amounts = domain.PaymentAmounts{Btc: btc, Usd: usd}
	}

	if s.amounts.Btc.IsZero() {
		return ConversionStage{s: s.fail(fmt.Errorf("WithConversion: %s converts to zero sats: %w", s.input.Currency, domain.ErrInvalidAmount))}
	}
	ratio, err := fx.NewWalletPriceRatio(s.amounts.Usd, s.amounts.Btc)
	if err != nil {
		return ConversionStage{s: s.fail(fmt.Errorf("WithConversion: %w", err))}
	}
	s.ratio = ratio

	if s.settlement == domain.SettlementMethodOnChain {
		if err := s.checkDust(s.amounts.Btc); err != nil {
			return ConversionStage{s: s.fail(fmt.Errorf("WithConversion: %w", err))}
		}
	}
	return ConversionStage{s: s}
}

func pickConverter(sender, recipient domain.WalletCurrency, rates Conversion) fx.Converter {
	switch {
	case sender == recipient:
		return rates.Mid
	case sender == domain.WalletCurrencyBTC:
		return rates.HedgeBuyUsd
	default:
		return rates.HedgeSellUsd
	}
}

// recipientCurrency is BTC for on-chain payouts.
func (s flowState) recipientCurrency() domain.WalletCurrency {
	if s.recipient != nil {
		return s.recipient.Wallet.Currency
	}
	return domain.WalletCurrencyBTC
}

func (s flowState) checkDust(btc domain.BtcPaymentAmount) error {
	if btc.LessThan(s.cfg.DustThreshold) {
		return fmt.Errorf("%s below %s: %w", btc, s.cfg.DustThreshold, domain.ErrLessThanDustThreshold)
	}
	return nil
}

// ConversionStage has frozen amounts. It resolves into a PaymentFlow once
// the fee is known and may be resolved more than once.
type ConversionStage struct{ s flowState }

func (c ConversionStage) Err() error { return c.s.err }

func (c ConversionStage) SenderWalletDescriptor() (domain.WalletDescriptor, error) {
	if c.s.err != nil {
		return domain.WalletDescriptor{}, c.s.err
	}
	return c.s.sender, nil
}

func (c ConversionStage) AddressForFlow() (string, error) {
	if c.s.err != nil {
		return "", c.s.err
	}
	return c.s.address, nil
}

// ProposedAmounts is the amount before fees.
func (c ConversionStage) ProposedAmounts() (domain.PaymentAmounts, error) {
	if c.s.err != nil {
		return domain.PaymentAmounts{}, c.s.err
	}
	return c.s.amounts, nil
}

// WithoutMinerFee resolves an intraledger flow. Intraledger sends carry no
// fee on either leg.
func (c ConversionStage) WithoutMinerFee() (PaymentFlow, error) {
	s := c.s
	if s.err != nil {
		return PaymentFlow{}, s.err
	}
	if s.settlement != domain.SettlementMethodIntraLedger {
		return PaymentFlow{}, fmt.Errorf("WithoutMinerFee: %s flow: %w", s.settlement, domain.ErrInvalidPaymentFlowState)
	}
	f := s.flow()
	zero := fees.IntraledgerFees()
	f.BtcProtocolAndBankFee, f.UsdProtocolAndBankFee = zero.Btc, zero.Usd
	return f, nil
}

// WithMinerFee resolves an on-chain flow: the bank fee is added on top of the
// miner fee, both charged with ceil rounding in USD. With SendAll the fee is
// taken out of the balance instead.
func (c ConversionStage) WithMinerFee(ctx context.Context, minerFee domain.BtcPaymentAmount) (PaymentFlow, error) {
	s := c.s
	if s.err != nil {
		return PaymentFlow{}, s.err
	}
	if s.settlement != domain.SettlementMethodOnChain {
		return PaymentFlow{}, fmt.Errorf("WithMinerFee: %s flow: %w", s.settlement, domain.ErrInvalidPaymentFlowState)
	}
	if s.cfg.Fees == nil {
		return PaymentFlow{}, fmt.Errorf("WithMinerFee: no fee calculator: %w", domain.ErrInvalidPaymentFlowState)
	}

	imbalance, err := s.imbalanceSats(ctx)
	if err != nil {
		return PaymentFlow{}, fmt.Errorf("WithMinerFee: %w", err)
	}

	minBankFee := s.cfg.Fees.Config().MinBankFee
	if s.account.WithdrawFee != nil {
		minBankFee = domain.Sats(*s.account.WithdrawFee)
	}
	wf, err := s.cfg.Fees.WithdrawalFee(minerFee, s.amounts.Btc, imbalance, minBankFee)
	if err != nil {
		return PaymentFlow{}, fmt.Errorf("WithMinerFee: %w", err)
	}

	f := s.flow()
	f.BtcMinerFee = minerFee
	f.BtcProtocolAndBankFee = wf.TotalFee
	f.UsdProtocolAndBankFee = s.ratio.ConvertFromBtcToCeil(wf.TotalFee)
	f.BtcBankFee = wf.BankFee
	f.UsdBankFee = s.ratio.ConvertFromBtcToCeil(wf.BankFee)

	if s.cfg.SendAll {
		if err := deductFeeFromAmount(&f, s.ratio); err != nil {
			return PaymentFlow{}, fmt.Errorf("WithMinerFee: %w", err)
		}
		if err := s.checkDust(f.BtcPaymentAmount); err != nil {
			return PaymentFlow{}, fmt.Errorf("WithMinerFee: %w", err)
		}
	}
	return f, nil
}

// imbalanceSats is the sender's swap-out imbalance in sats. USD wallets
// report it in cents and are converted at the flow ratio.
func (s flowState) imbalanceSats(ctx context.Context) (int64, error) {
	if s.cfg.Imbalance == nil {
		return 0, nil
	}
	imbalance, err := s.cfg.Imbalance.SwapOutImbalance(ctx, s.sender)
	if err != nil {
		return 0, err
	}
	if s.sender.Currency == domain.WalletCurrencyBTC || imbalance == 0 {
		return imbalance, nil
	}

	abs := imbalance
	if abs < 0 {
		abs = -abs
	}
	sats, err := safecast.ToInt64(s.ratio.ConvertFromUsd(domain.Cents(uint64(abs))).Amount)
	if err != nil {
		return 0, err
	}
	if imbalance < 0 {
		return -sats, nil
	}
	return sats, nil
}

// deductFeeFromAmount turns the whole balance into amount plus fee, in the
// sender's currency, so that the debit equals the balance.
func deductFeeFromAmount(f *PaymentFlow, ratio fx.WalletPriceRatio) error {
	if f.SenderWallet.Currency == domain.WalletCurrencyUSD {
		usd, err := f.UsdPaymentAmount.Sub(f.UsdProtocolAndBankFee)
		if err != nil || usd.IsZero() {
			return insufficientForFee(f)
		}
		f.UsdPaymentAmount = usd
		f.BtcPaymentAmount = ratio.ConvertFromUsd(usd)
		return nil
	}

	btc, err := f.BtcPaymentAmount.Sub(f.BtcProtocolAndBankFee)
	if err != nil || btc.IsZero() {
		return insufficientForFee(f)
	}
	f.BtcPaymentAmount = btc
	f.UsdPaymentAmount = ratio.ConvertFromBtc(btc)
	return nil
}

func insufficientForFee(f *PaymentFlow) error {
	return &domain.InsufficientBalanceError{
		Balance:  f.InputAmount,
		Required: f.ProtocolAndBankFee().In(f.SenderWallet.Currency),
	}
}

func (s flowState) flow() PaymentFlow {
	return PaymentFlow{
		SenderWallet:     s.sender,
		SenderAccount:    s.account,
		Recipient:        s.recipient,
		Address:          s.address,
		Settlement:       s.settlement,
		SendAll:          s.cfg.SendAll,
		InputAmount:      s.input,
		BtcPaymentAmount: s.amounts.Btc,
		UsdPaymentAmount: s.amounts.Usd,
		Ratio:            s.ratio,
	}
}
